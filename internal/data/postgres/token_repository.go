package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/invoice-ledger/internal/domain/invoice"
	"github.com/invoice-ledger/internal/domain/token"
	"github.com/invoice-ledger/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// TokenRepository implements token.Store for PostgreSQL. Balance reads lock the
// holder's row, creating it at zero first, so concurrent transfers touching the
// same holder serialize on that row.
type TokenRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

var _ token.Store = (*TokenRepository)(nil)

func NewTokenRepository(logger *slog.Logger, db *persistence.PostgresDB) *TokenRepository {
	return &TokenRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx binds the repository to a transaction
func (r *TokenRepository) WithTx(tx pgx.Tx) *TokenRepository {
	return &TokenRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Balance locks the holder's row and returns its amount. A holder without a
// row gets one at zero, otherwise FOR UPDATE would have nothing to lock and two
// credits to a new holder could both start from zero.
func (r *TokenRepository) Balance(ctx context.Context, asset, owner invoice.Address) (decimal.Decimal, error) {
	ensure := `
		INSERT INTO token_balances (asset, owner, amount)
		VALUES ($1, $2, 0)
		ON CONFLICT (asset, owner) DO NOTHING
	`
	if _, err := r.querier.Exec(ctx, ensure, string(asset), string(owner)); err != nil {
		r.logger.Error("Failed to create balance row", "asset", asset, "owner", owner, "error", err)
		return decimal.Zero, fmt.Errorf("failed to read balance: %w", err)
	}

	query := `
		SELECT amount::text
		FROM token_balances
		WHERE asset = $1 AND owner = $2
		FOR UPDATE
	`

	amount, err := r.readAmount(ctx, query, string(asset), string(owner))
	if err != nil {
		r.logger.Error("Failed to read balance", "asset", asset, "owner", owner, "error", err)
		return decimal.Zero, fmt.Errorf("failed to read balance: %w", err)
	}
	return amount, nil
}

func (r *TokenRepository) SetBalance(ctx context.Context, asset, owner invoice.Address, amount decimal.Decimal) error {
	query := `
		INSERT INTO token_balances (asset, owner, amount)
		VALUES ($1, $2, $3::numeric)
		ON CONFLICT (asset, owner) DO UPDATE SET amount = EXCLUDED.amount
	`

	if _, err := r.querier.Exec(ctx, query, string(asset), string(owner), amount.String()); err != nil {
		r.logger.Error("Failed to write balance", "asset", asset, "owner", owner, "error", err)
		return fmt.Errorf("failed to write balance: %w", err)
	}
	return nil
}

// Allowance returns zero when no grant exists
func (r *TokenRepository) Allowance(ctx context.Context, asset, owner, spender invoice.Address) (decimal.Decimal, error) {
	query := `
		SELECT amount::text
		FROM token_allowances
		WHERE asset = $1 AND owner = $2 AND spender = $3
		FOR UPDATE
	`

	amount, err := r.readAmount(ctx, query, string(asset), string(owner), string(spender))
	if err != nil {
		r.logger.Error("Failed to read allowance", "asset", asset, "owner", owner, "spender", spender, "error", err)
		return decimal.Zero, fmt.Errorf("failed to read allowance: %w", err)
	}
	return amount, nil
}

func (r *TokenRepository) SetAllowance(ctx context.Context, asset, owner, spender invoice.Address, amount decimal.Decimal) error {
	query := `
		INSERT INTO token_allowances (asset, owner, spender, amount)
		VALUES ($1, $2, $3, $4::numeric)
		ON CONFLICT (asset, owner, spender) DO UPDATE SET amount = EXCLUDED.amount
	`

	if _, err := r.querier.Exec(ctx, query, string(asset), string(owner), string(spender), amount.String()); err != nil {
		r.logger.Error("Failed to write allowance", "asset", asset, "owner", owner, "spender", spender, "error", err)
		return fmt.Errorf("failed to write allowance: %w", err)
	}
	return nil
}

func (r *TokenRepository) readAmount(ctx context.Context, query string, args ...interface{}) (decimal.Decimal, error) {
	var raw string
	err := r.querier.QueryRow(ctx, query, args...).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}
