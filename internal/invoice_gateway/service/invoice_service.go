package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/invoice-ledger/internal/domain/invoice"
	"github.com/invoice-ledger/internal/reconciliation"
)

// Reconciler is the subset of the reconciliation engine the gateway reads through
type Reconciler interface {
	ListForMerchant(ctx context.Context, merchant invoice.Address) ([]reconciliation.InvoiceSnapshot, error)
	PaymentEvent(ctx context.Context, id invoice.ID) (*reconciliation.PaymentEvent, error)
	InvoiceStatus(ctx context.Context, id invoice.ID, now time.Time) (invoice.Status, *invoice.Invoice, error)
}

var _ Reconciler = (*reconciliation.Engine)(nil)

// InvoiceServiceImpl implements the InvoiceService interface
type InvoiceServiceImpl struct {
	engine Reconciler
	clock  func() time.Time
	logger *slog.Logger
}

// NewInvoiceService creates a new invoice service. A nil clock means time.Now.
func NewInvoiceService(logger *slog.Logger, engine Reconciler, clock func() time.Time) InvoiceService {
	if clock == nil {
		clock = time.Now
	}
	return &InvoiceServiceImpl{
		engine: engine,
		clock:  clock,
		logger: logger,
	}
}

// GetInvoice reads the invoice and classifies it against the current time
func (s *InvoiceServiceImpl) GetInvoice(ctx context.Context, id invoice.ID) (*InvoiceView, error) {
	now := s.clock()
	status, inv, err := s.engine.InvoiceStatus(ctx, id, now)
	if err != nil {
		s.logger.Error("Failed to read invoice", "invoice_id", id.Hex(), "error", err)
		return nil, err
	}
	return &InvoiceView{Status: status, Invoice: inv, AsOf: now}, nil
}

func (s *InvoiceServiceImpl) GetPaymentEvent(ctx context.Context, id invoice.ID) (*reconciliation.PaymentEvent, error) {
	event, err := s.engine.PaymentEvent(ctx, id)
	if err != nil {
		s.logger.Error("Failed to read payment event", "invoice_id", id.Hex(), "error", err)
		return nil, err
	}
	return event, nil
}

// ListMerchantInvoices classifies every snapshot against one shared instant
func (s *InvoiceServiceImpl) ListMerchantInvoices(ctx context.Context, merchant invoice.Address) ([]InvoiceView, error) {
	snapshots, err := s.engine.ListForMerchant(ctx, merchant)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	views := make([]InvoiceView, 0, len(snapshots))
	for i := range snapshots {
		inv := snapshots[i].Invoice
		views = append(views, InvoiceView{
			Status:  snapshots[i].Status(now),
			Invoice: &inv,
			AsOf:    now,
		})
	}
	return views, nil
}
