// Package postgres provides PostgreSQL implementations of the ledger node's
// repositories: the invoice map, token balances, the history outbox and the
// position sequence. Every repository can be bound to a transaction so one
// ledger operation commits or rolls back as a unit.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/invoice-ledger/internal/domain/invoice"
	"github.com/invoice-ledger/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

// InvoiceRepository implements the invoice.Repository interface for PostgreSQL
type InvoiceRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

func NewInvoiceRepository(logger *slog.Logger, db *persistence.PostgresDB) invoice.Repository {
	return &InvoiceRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx binds the repository to a transaction
func (r *InvoiceRepository) WithTx(tx pgx.Tx) invoice.Repository {
	return &InvoiceRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create inserts an unpaid invoice. An existing id yields ErrDuplicateID.
func (r *InvoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	query := `
		INSERT INTO invoices (id, merchant, asset, amount, due_at, paid, payer, paid_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8)
	`

	_, err := r.querier.Exec(ctx, query,
		inv.ID.Hex(),
		string(inv.Merchant),
		string(inv.Asset),
		inv.Amount.String(),
		int64(inv.DueAt),
		inv.Paid,
		string(inv.Payer),
		int64(inv.PaidAt),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return invoice.ErrDuplicateID{ID: inv.ID}
		}
		r.logger.Error("Failed to create invoice", "id", inv.ID.Hex(), "error", err)
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	return nil
}

// GetByID retrieves the current state of an invoice
func (r *InvoiceRepository) GetByID(ctx context.Context, id invoice.ID) (*invoice.Invoice, error) {
	query := `
		SELECT id, merchant, asset, amount::text, due_at, paid, payer, paid_at
		FROM invoices
		WHERE id = $1
	`

	inv, err := scanInvoice(r.querier.QueryRow(ctx, query, id.Hex()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, invoice.ErrNotFound{ID: id}
		}
		r.logger.Error("Failed to get invoice", "id", id.Hex(), "error", err)
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}

	return inv, nil
}

// Exists reports whether a record is stored for id
func (r *InvoiceRepository) Exists(ctx context.Context, id invoice.ID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM invoices WHERE id = $1)`

	var exists bool
	if err := r.querier.QueryRow(ctx, query, id.Hex()).Scan(&exists); err != nil {
		r.logger.Error("Failed to check invoice existence", "id", id.Hex(), "error", err)
		return false, fmt.Errorf("failed to check invoice existence: %w", err)
	}
	return exists, nil
}

// LockForUpdate reads the invoice and holds its row lock until the transaction
// ends, serializing concurrent operations on the same id
func (r *InvoiceRepository) LockForUpdate(ctx context.Context, id invoice.ID) (*invoice.Invoice, error) {
	query := `
		SELECT id, merchant, asset, amount::text, due_at, paid, payer, paid_at
		FROM invoices
		WHERE id = $1
		FOR UPDATE
	`

	inv, err := scanInvoice(r.querier.QueryRow(ctx, query, id.Hex()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, invoice.ErrNotFound{ID: id}
		}
		r.logger.Error("Failed to lock invoice for update", "id", id.Hex(), "error", err)
		return nil, fmt.Errorf("failed to lock invoice for update: %w", err)
	}

	return inv, nil
}

// MarkPaid flips the paid flag. The paid = FALSE guard makes a second
// settlement impossible even without a prior lock.
func (r *InvoiceRepository) MarkPaid(ctx context.Context, id invoice.ID, payer invoice.Address, paidAt uint64) error {
	query := `
		UPDATE invoices
		SET paid = TRUE, payer = $1, paid_at = $2
		WHERE id = $3 AND paid = FALSE
	`

	result, err := r.querier.Exec(ctx, query, string(payer), int64(paidAt), id.Hex())
	if err != nil {
		r.logger.Error("Failed to mark invoice paid", "id", id.Hex(), "error", err)
		return fmt.Errorf("failed to mark invoice paid: %w", err)
	}

	if result.RowsAffected() == 0 {
		exists, err := r.Exists(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return invoice.ErrNotFound{ID: id}
		}
		return invoice.ErrAlreadyPaid{ID: id}
	}

	return nil
}

func scanInvoice(row pgx.Row) (*invoice.Invoice, error) {
	var (
		rawID, merchant, asset, amount, payer string
		dueAt, paidAt                         int64
		paid                                  bool
	)
	if err := row.Scan(&rawID, &merchant, &asset, &amount, &dueAt, &paid, &payer, &paidAt); err != nil {
		return nil, err
	}

	id, err := invoice.ParseID(rawID)
	if err != nil {
		return nil, fmt.Errorf("stored invoice id %q: %w", rawID, err)
	}
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("stored amount %q: %w", amount, err)
	}

	return &invoice.Invoice{
		ID:       id,
		Merchant: invoice.Address(merchant),
		Asset:    invoice.Address(asset),
		Amount:   value,
		DueAt:    uint64(dueAt),
		Paid:     paid,
		Payer:    invoice.Address(payer),
		PaidAt:   uint64(paidAt),
	}, nil
}
