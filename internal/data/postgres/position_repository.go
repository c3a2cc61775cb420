package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/invoice-ledger/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
)

// PositionRepository hands out ledger positions from a sequence. Positions of
// rolled back operations are never reused, so the history may contain gaps.
type PositionRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewPositionRepository(logger *slog.Logger, db *persistence.PostgresDB) *PositionRepository {
	return &PositionRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *PositionRepository) WithTx(tx pgx.Tx) *PositionRepository {
	return &PositionRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Next allocates the position of the operation being executed
func (r *PositionRepository) Next(ctx context.Context) (uint64, error) {
	var position int64
	if err := r.querier.QueryRow(ctx, `SELECT nextval('ledger_position_seq')`).Scan(&position); err != nil {
		r.logger.Error("Failed to allocate ledger position", "error", err)
		return 0, fmt.Errorf("failed to allocate ledger position: %w", err)
	}
	return uint64(position), nil
}
