package handler

import (
	"time"

	"github.com/invoice-ledger/internal/domain/history"
	"github.com/invoice-ledger/internal/domain/invoice"
	"github.com/invoice-ledger/internal/invoice_gateway/service"
	"github.com/invoice-ledger/internal/reconciliation"
	"github.com/invoice-ledger/internal/submitter"
)

// Amounts travel as decimal strings: they can exceed what a JSON number holds
// exactly.

// CreateInvoiceRequest represents a request to create a new invoice
type CreateInvoiceRequest struct {
	ID     string `json:"id,omitempty"`
	Asset  string `json:"asset" binding:"required"`
	Amount string `json:"amount" binding:"required"`
	DueAt  uint64 `json:"due_at"`
}

// ApproveRequest represents a request to set a spending allowance
type ApproveRequest struct {
	Asset   string `json:"asset" binding:"required"`
	Spender string `json:"spender,omitempty"`
	Amount  string `json:"amount" binding:"required"`
}

// MintRequest represents a request from an asset to issue new units
type MintRequest struct {
	Recipient string `json:"recipient" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
}

// SubmissionResponse acknowledges a queued operation
type SubmissionResponse struct {
	OperationID string `json:"operation_id"`
	InvoiceID   string `json:"invoice_id,omitempty"`
	Status      string `json:"status"`
}

// OperationResponse represents the lifecycle of an operation
type OperationResponse struct {
	OperationID   string `json:"operation_id"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
	Detail        string `json:"detail,omitempty"`
	Position      uint64 `json:"position,omitempty"`
	InvoiceID     string `json:"invoice_id,omitempty"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Merchant string `json:"merchant,omitempty"`
	Asset    string `json:"asset,omitempty"`
	Amount   string `json:"amount,omitempty"`
	DueAt    uint64 `json:"due_at,omitempty"`
	Paid     bool   `json:"paid"`
	Payer    string `json:"payer,omitempty"`
	PaidAt   uint64 `json:"paid_at,omitempty"`
}

// PaymentRecordResponse represents one payment record in history
type PaymentRecordResponse struct {
	InvoiceID string `json:"invoice_id"`
	Merchant  string `json:"merchant"`
	Payer     string `json:"payer"`
	Asset     string `json:"asset"`
	Amount    string `json:"amount"`
	PaidAt    uint64 `json:"paid_at"`
	Position  uint64 `json:"position"`
	LogIndex  uint32 `json:"log_index"`
	TxRef     string `json:"tx_ref"`
}

// PaymentEventResponse represents the settlement of an invoice
type PaymentEventResponse struct {
	Payment    PaymentRecordResponse   `json:"payment"`
	Duplicates []PaymentRecordResponse `json:"duplicates,omitempty"`
}

func mapSubmissionToResponse(sub *submitter.Submission) SubmissionResponse {
	response := SubmissionResponse{
		OperationID: sub.OperationID.String(),
		Status:      string(sub.Status),
	}
	if sub.InvoiceID != nil {
		response.InvoiceID = sub.InvoiceID.Hex()
	}
	return response
}

func mapLifecycleToResponse(state *submitter.Lifecycle) OperationResponse {
	return OperationResponse{
		OperationID:   state.OperationID.String(),
		Status:        string(state.Status),
		FailureReason: string(state.FailureReason),
		Detail:        state.Detail,
		Position:      state.Position,
		InvoiceID:     state.InvoiceID,
	}
}

func mapInvoiceViewToResponse(id invoice.ID, view *service.InvoiceView) InvoiceResponse {
	response := InvoiceResponse{
		ID:     id.Hex(),
		Status: string(view.Status),
	}
	if inv := view.Invoice; inv != nil {
		response.Merchant = inv.Merchant.String()
		response.Asset = inv.Asset.String()
		response.Amount = inv.Amount.String()
		response.DueAt = inv.DueAt
		response.Paid = inv.Paid
		response.PaidAt = inv.PaidAt
		if inv.Paid {
			response.Payer = inv.Payer.String()
		}
	}
	return response
}

func mapPaymentRecord(rec history.PaymentRecord) PaymentRecordResponse {
	return PaymentRecordResponse{
		InvoiceID: rec.InvoiceID.Hex(),
		Merchant:  rec.Merchant.String(),
		Payer:     rec.Payer.String(),
		Asset:     rec.Asset.String(),
		Amount:    rec.Amount.String(),
		PaidAt:    rec.PaidAt,
		Position:  rec.Position,
		LogIndex:  rec.LogIndex,
		TxRef:     rec.TxRef,
	}
}

func mapPaymentEventToResponse(event *reconciliation.PaymentEvent) PaymentEventResponse {
	response := PaymentEventResponse{Payment: mapPaymentRecord(event.Record)}
	for _, dup := range event.Duplicates {
		response.Duplicates = append(response.Duplicates, mapPaymentRecord(dup))
	}
	return response
}

func formatAsOf(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
