package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/invoice-ledger/internal/config"
	mongorepo "github.com/invoice-ledger/internal/data/mongo"
	"github.com/invoice-ledger/internal/data/postgres"
	"github.com/invoice-ledger/internal/invoice_gateway/service"
	"github.com/invoice-ledger/internal/ledgerclient"
	"github.com/invoice-ledger/internal/logger"
	"github.com/invoice-ledger/internal/platform/persistence"
	"github.com/invoice-ledger/internal/reconciliation"
)

// openLedger connects to the invoice table and the history index. Logs go to
// stderr so they never mix with rendered output.
func openLedger(ctx context.Context, configName string) (service.InvoiceService, func(), error) {
	cfg, err := config.LoadConfig(configName)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	log := logger.New(os.Stderr, cfg)

	pg, err := persistence.NewPostgresDB(ctx, log, &cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	mdb, err := persistence.NewMongoDB(ctx, log, &cfg.MongoDB)
	if err != nil {
		pg.Close()
		return nil, nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	client := ledgerclient.New(
		postgres.NewInvoiceRepository(log, pg),
		mongorepo.NewHistoryRepository(log, mdb.Database()),
		ledgerclient.WithTimeout(cfg.Ledger.ReadTimeout),
		ledgerclient.WithLogger(log),
	)

	engine, err := reconciliation.NewEngine(client, cfg.WorkerPool.Size, log)
	if err != nil {
		_ = mdb.Close(context.Background())
		pg.Close()
		return nil, nil, err
	}

	closeFn := func() {
		engine.Close()
		_ = mdb.Close(context.Background())
		pg.Close()
	}
	return service.NewInvoiceService(log, engine, nil), closeFn, nil
}
