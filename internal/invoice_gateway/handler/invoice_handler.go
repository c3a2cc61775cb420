package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/invoice-ledger/internal/domain/invoice"
	"github.com/invoice-ledger/internal/invoice_gateway/service"
)

// InvoiceHandler handles read requests reconciled against history
type InvoiceHandler struct {
	invoiceService service.InvoiceService
	logger         *slog.Logger
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(logger *slog.Logger, invoiceService service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: invoiceService,
		logger:         logger,
	}
}

// GetByID returns the invoice with its current status. Unknown invoices are a
// 404 whose body still carries status NOT_FOUND.
func (h *InvoiceHandler) GetByID(c *gin.Context) {
	id, ok := parseInvoiceID(c)
	if !ok {
		return
	}

	view, err := h.invoiceService.GetInvoice(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	response := mapInvoiceViewToResponse(id, view)
	if view.Status == invoice.StatusNotFound {
		RespondWithData(c, http.StatusNotFound, response)
		return
	}
	RespondOK(c, response)
}

// GetPayment returns the payment event of an invoice, 404 when none
func (h *InvoiceHandler) GetPayment(c *gin.Context) {
	id, ok := parseInvoiceID(c)
	if !ok {
		return
	}

	event, err := h.invoiceService.GetPaymentEvent(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if event == nil {
		RespondNotFound(c, "No payment recorded for invoice")
		return
	}

	RespondOK(c, mapPaymentEventToResponse(event))
}

// ListByMerchant returns every invoice the merchant created with its status
func (h *InvoiceHandler) ListByMerchant(c *gin.Context) {
	merchant, err := invoice.ParseAddress(c.Param("address"))
	if err != nil {
		RespondBadRequest(c, "Invalid merchant address")
		return
	}

	views, err := h.invoiceService.ListMerchantInvoices(c.Request.Context(), merchant)
	if err != nil {
		h.logger.Error("Failed to list merchant invoices", "merchant", merchant, "error", err)
		respondError(c, err)
		return
	}

	invoices := make([]InvoiceResponse, 0, len(views))
	asOf := ""
	for i := range views {
		invoices = append(invoices, mapInvoiceViewToResponse(views[i].Invoice.ID, &views[i]))
		asOf = formatAsOf(views[i].AsOf)
	}
	RespondWithList(c, invoices, len(invoices), asOf)
}
