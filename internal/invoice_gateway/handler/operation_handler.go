package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/invoice-ledger/internal/domain/invoice"
	"github.com/invoice-ledger/internal/invoice_gateway/middleware"
	"github.com/invoice-ledger/internal/invoice_gateway/service"
	"github.com/invoice-ledger/internal/submitter"
	"github.com/shopspring/decimal"
)

// OperationHandler handles HTTP requests that change ledger state. Every
// operation is acknowledged with 202 and settles asynchronously.
type OperationHandler struct {
	operationService service.OperationService
	logger           *slog.Logger
}

// NewOperationHandler creates a new operation handler
func NewOperationHandler(logger *slog.Logger, operationService service.OperationService) *OperationHandler {
	return &OperationHandler{
		operationService: operationService,
		logger:           logger,
	}
}

// CreateInvoice submits an invoice owned by the caller
func (h *OperationHandler) CreateInvoice(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	var id invoice.ID
	if req.ID != "" {
		parsed, err := invoice.ParseID(req.ID)
		if err != nil {
			RespondBadRequest(c, "Invalid invoice id")
			return
		}
		id = parsed
	}
	asset, err := invoice.ParseAddress(req.Asset)
	if err != nil {
		RespondBadRequest(c, "Invalid asset address")
		return
	}
	amount, ok := parseAmount(c, req.Amount)
	if !ok {
		return
	}

	sub, err := h.operationService.CreateInvoice(c.Request.Context(), submitter.CreateInvoiceRequest{
		Merchant:      caller,
		ID:            id,
		Asset:         asset,
		Amount:        amount,
		DueAt:         req.DueAt,
		CorrelationID: middleware.GetCorrelationID(c),
	})
	if err != nil {
		h.logger.Error("Failed to create invoice", "merchant", caller, "error", err)
		respondError(c, err)
		return
	}

	RespondSubmitted(c, mapSubmissionToResponse(sub))
}

// PayInvoice submits a payment of the invoice by the caller
func (h *OperationHandler) PayInvoice(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	id, ok := parseInvoiceID(c)
	if !ok {
		return
	}

	sub, err := h.operationService.PayInvoice(c.Request.Context(), submitter.PayInvoiceRequest{
		Payer:         caller,
		InvoiceID:     id,
		CorrelationID: middleware.GetCorrelationID(c),
	})
	if err != nil {
		h.logger.Warn("Failed to pay invoice", "invoice_id", id.Hex(), "payer", caller, "error", err)
		respondError(c, err)
		return
	}

	RespondSubmitted(c, mapSubmissionToResponse(sub))
}

// Approve sets the allowance a spender, by default the invoice store, may move
// from the caller
func (h *OperationHandler) Approve(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	asset, err := invoice.ParseAddress(req.Asset)
	if err != nil {
		RespondBadRequest(c, "Invalid asset address")
		return
	}
	var spender invoice.Address
	if req.Spender != "" {
		if spender, err = invoice.ParseAddress(req.Spender); err != nil {
			RespondBadRequest(c, "Invalid spender address")
			return
		}
	}
	// zero is a valid allowance: it revokes
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		RespondBadRequest(c, "Invalid amount")
		return
	}

	sub, err := h.operationService.ApproveSpending(c.Request.Context(), submitter.ApproveRequest{
		Owner:         caller,
		Asset:         asset,
		Spender:       spender,
		Amount:        amount,
		CorrelationID: middleware.GetCorrelationID(c),
	})
	if err != nil {
		h.logger.Error("Failed to approve spending", "owner", caller, "error", err)
		respondError(c, err)
		return
	}

	RespondSubmitted(c, mapSubmissionToResponse(sub))
}

// Mint issues units of the caller's own asset
func (h *OperationHandler) Mint(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	recipient, err := invoice.ParseAddress(req.Recipient)
	if err != nil {
		RespondBadRequest(c, "Invalid recipient address")
		return
	}
	amount, ok := parseAmount(c, req.Amount)
	if !ok {
		return
	}

	sub, err := h.operationService.Mint(c.Request.Context(), submitter.MintRequest{
		Asset:         caller,
		Recipient:     recipient,
		Amount:        amount,
		CorrelationID: middleware.GetCorrelationID(c),
	})
	if err != nil {
		h.logger.Error("Failed to mint", "asset", caller, "error", err)
		respondError(c, err)
		return
	}

	RespondSubmitted(c, mapSubmissionToResponse(sub))
}

// GetOperation reports the lifecycle of a submitted operation
func (h *OperationHandler) GetOperation(c *gin.Context) {
	idParam := c.Param("id")
	opID, err := uuid.Parse(idParam)
	if err != nil {
		RespondBadRequest(c, "Invalid operation ID")
		return
	}

	state, err := h.operationService.Lifecycle(c.Request.Context(), opID)
	if err != nil {
		h.logger.Error("Failed to get operation", "operation_id", idParam, "error", err)
		respondError(c, err)
		return
	}

	RespondOK(c, mapLifecycleToResponse(state))
}

func requireCaller(c *gin.Context) (invoice.Address, bool) {
	caller, ok := middleware.GetCaller(c)
	if !ok {
		RespondUnauthorized(c, "Missing "+middleware.CallerAddressHeader+" header")
		return "", false
	}
	return caller, true
}

func parseInvoiceID(c *gin.Context) (invoice.ID, bool) {
	id, err := invoice.ParseID(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid invoice ID")
		return invoice.ID{}, false
	}
	return id, true
}

func parseAmount(c *gin.Context, raw string) (decimal.Decimal, bool) {
	amount, err := invoice.ParseAmount(raw)
	if err != nil {
		RespondWithError(c, http.StatusBadRequest, "INVALID_AMOUNT", err.Error())
		return decimal.Zero, false
	}
	return amount, true
}
