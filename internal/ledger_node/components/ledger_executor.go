package components

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/invoice-ledger/internal/domain/invoice"
	"github.com/invoice-ledger/internal/domain/operation"
	"github.com/invoice-ledger/internal/domain/outbox"
	"github.com/invoice-ledger/internal/domain/token"
	"github.com/invoice-ledger/internal/ledger"
	"github.com/invoice-ledger/internal/ledger_node/service"
	"github.com/jackc/pgx/v5"
)

// PositionAllocator hands out ledger positions
type PositionAllocator interface {
	Next(ctx context.Context) (uint64, error)
}

// TxScoped binds a transaction-aware store to one transaction
type TxScoped[T any] func(tx pgx.Tx) T

type LedgerExecutorImpl struct {
	store       *ledger.Store
	invoiceRepo invoice.Repository
	tokens      TxScoped[token.Store]
	positions   TxScoped[PositionAllocator]
	clock       func() time.Time
	logger      *slog.Logger
}

func NewLedgerExecutor(
	store *ledger.Store,
	invoiceRepo invoice.Repository,
	tokens TxScoped[token.Store],
	positions TxScoped[PositionAllocator],
	clock func() time.Time,
	logger *slog.Logger,
) service.LedgerExecutor {
	if clock == nil {
		clock = time.Now
	}
	return &LedgerExecutorImpl{
		store:       store,
		invoiceRepo: invoiceRepo,
		tokens:      tokens,
		positions:   positions,
		clock:       clock,
		logger:      logger,
	}
}

// Execute allocates the operation's position, runs the transition and
// returns the confirmed receipt together with the emitted history
func (e *LedgerExecutorImpl) Execute(ctx context.Context, tx pgx.Tx, op *operation.Operation) (*outbox.Batch, error) {
	position, err := e.positions(tx).Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate ledger position: %w", err)
	}

	now := e.clock().UTC()
	call := ledger.Call{
		Caller:   op.Caller,
		Now:      invoice.UnixSeconds(now),
		Position: position,
		TxRef:    op.ID.String(),
	}

	st := newPostgresState(e.invoiceRepo.WithTx(tx), e.tokens(tx))
	if err := e.store.Apply(ctx, st, call, op); err != nil {
		return nil, err
	}

	e.logger.Debug("Applied operation",
		"operation_id", op.ID.String(),
		"position", position,
		"log_entries", st.logIndex,
	)

	return &outbox.Batch{
		Receipt:   operation.NewConfirmedReceipt(op, position, now),
		Creations: st.creations,
		Payments:  st.payments,
	}, nil
}
