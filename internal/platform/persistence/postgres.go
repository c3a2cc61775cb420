package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/invoice-ledger/internal/config"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier supports database operations for both pool and transactions
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

var _ Querier = (*pgxpool.Pool)(nil)
var _ Querier = (pgx.Tx)(nil)

// txPool is the part of *pgxpool.Pool the ledger uses
type txPool interface {
	Querier
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// maxTxAttempts bounds re-runs of a unit of work aborted by a deadlock or a
// serialization failure. Two payments racing for the same payer balance rows
// can deadlock; Postgres aborts one and the retry sees the winner's writes.
const maxTxAttempts = 3

type PostgresDB struct {
	pool   txPool
	logger *slog.Logger
}

// NewPostgresDB opens the pool. Schema migrations are applied separately by
// the ledger node, the only writer.
func NewPostgresDB(ctx context.Context, logger *slog.Logger, cfg *config.PostgresConfig) (*PostgresDB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PostgreSQL connection string: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	logger.Info("Connected to PostgreSQL",
		"host", poolConfig.ConnConfig.Host,
		"database", poolConfig.ConnConfig.Database,
		"max_conns", cfg.MaxConns,
	)

	return &PostgresDB{
		pool:   pool,
		logger: logger,
	}, nil
}

// Pool returns the querier repositories run non-transactional statements on
func (db *PostgresDB) Pool() Querier {
	return db.pool
}

func (db *PostgresDB) Close() {
	db.pool.Close()
	db.logger.Info("Closed PostgreSQL connection")
}

func (db *PostgresDB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// ExecuteTx runs fn as one ledger unit of work. Ledger operations read then
// write the same rows, so the transaction is READ COMMITTED with the row locks
// taken by the repositories doing the serializing. fn is re-run from scratch
// when the server aborts the transaction as a deadlock victim.
func (db *PostgresDB) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = db.runTx(ctx, fn)
		if err == nil || !isRetryableTxError(err) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Join(err, ctxErr)
		}
		db.logger.Warn("Retrying aborted ledger transaction", "attempt", attempt, "error", err)
	}
	return fmt.Errorf("transaction aborted %d times: %w", maxTxAttempts, err)
}

func (db *PostgresDB) runTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// isRetryableTxError reports serialization_failure and deadlock_detected
func isRetryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
