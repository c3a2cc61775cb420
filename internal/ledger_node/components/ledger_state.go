package components

import (
	"context"

	"github.com/invoice-ledger/internal/domain/history"
	"github.com/invoice-ledger/internal/domain/invoice"
	"github.com/invoice-ledger/internal/domain/token"
	"github.com/invoice-ledger/internal/ledger"
)

// postgresState is the ledger.State of one database transaction. Reads lock
// the invoice row; emitted records are collected for the outbox and numbered
// in emission order.
type postgresState struct {
	*token.Book
	invoices  invoice.Repository
	logIndex  uint32
	creations []history.CreationRecord
	payments  []history.PaymentRecord
}

var _ ledger.State = (*postgresState)(nil)

func newPostgresState(invoices invoice.Repository, tokens token.Store) *postgresState {
	return &postgresState{
		Book:     token.NewBook(tokens),
		invoices: invoices,
	}
}

func (s *postgresState) Invoice(ctx context.Context, id invoice.ID) (*invoice.Invoice, error) {
	return s.invoices.LockForUpdate(ctx, id)
}

func (s *postgresState) InsertInvoice(ctx context.Context, inv *invoice.Invoice) error {
	return s.invoices.Create(ctx, inv)
}

func (s *postgresState) MarkPaid(ctx context.Context, id invoice.ID, payer invoice.Address, paidAt uint64) error {
	return s.invoices.MarkPaid(ctx, id, payer, paidAt)
}

func (s *postgresState) EmitCreation(_ context.Context, rec history.CreationRecord) error {
	rec.LogIndex = s.nextLogIndex()
	s.creations = append(s.creations, rec)
	return nil
}

func (s *postgresState) EmitPayment(_ context.Context, rec history.PaymentRecord) error {
	rec.LogIndex = s.nextLogIndex()
	s.payments = append(s.payments, rec)
	return nil
}

func (s *postgresState) nextLogIndex() uint32 {
	idx := s.logIndex
	s.logIndex++
	return idx
}
