package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/invoice-ledger/internal/domain/invoice"
	"github.com/invoice-ledger/internal/reconciliation"
	"github.com/invoice-ledger/internal/submitter"
)

// OperationService submits ledger operations and reports on them
type OperationService interface {
	// CreateInvoice returns a validation error before anything is published
	CreateInvoice(ctx context.Context, req submitter.CreateInvoiceRequest) (*submitter.Submission, error)

	// PayInvoice fails fast with invoice.ErrNotFound, ErrAlreadyPaid or ErrExpired
	PayInvoice(ctx context.Context, req submitter.PayInvoiceRequest) (*submitter.Submission, error)

	ApproveSpending(ctx context.Context, req submitter.ApproveRequest) (*submitter.Submission, error)
	Mint(ctx context.Context, req submitter.MintRequest) (*submitter.Submission, error)

	// Lifecycle reports Submitted until the ledger node writes a receipt
	Lifecycle(ctx context.Context, opID uuid.UUID) (*submitter.Lifecycle, error)
}

// InvoiceService answers read queries reconciled against history
type InvoiceService interface {
	// GetInvoice returns a view with status NOT_FOUND and no record when the
	// invoice does not exist
	GetInvoice(ctx context.Context, id invoice.ID) (*InvoiceView, error)

	// GetPaymentEvent returns nil when the invoice has no payment in history
	GetPaymentEvent(ctx context.Context, id invoice.ID) (*reconciliation.PaymentEvent, error)

	// ListMerchantInvoices returns every invoice the merchant created, oldest first
	ListMerchantInvoices(ctx context.Context, merchant invoice.Address) ([]InvoiceView, error)
}

// InvoiceView is an invoice classified at AsOf
type InvoiceView struct {
	Status  invoice.Status
	Invoice *invoice.Invoice
	AsOf    time.Time
}

var _ OperationService = (*submitter.Submitter)(nil)
