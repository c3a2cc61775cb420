package components

import (
	"log/slog"
	"testing"

	"github.com/invoice-ledger/internal/config"
	"github.com/invoice-ledger/internal/ledger"
	"github.com/invoice-ledger/internal/ledger_node/service"
	"github.com/invoice-ledger/internal/platform/persistence"
	"github.com/stretchr/testify/assert"
)

func TestCreateProcessingService(t *testing.T) {
	repos := Repositories{
		Invoices: newInvoiceTable(),
		Outbox:   &MockOutboxRepo{},
		Receipts: &MockReceiptRepo{},
	}
	store := ledger.NewStore(storeAddr)
	logger := slog.Default()

	t.Run("wraps base service in a worker pool", func(t *testing.T) {
		cfg := &config.Config{WorkerPool: config.WorkerPoolConfig{Size: 5}}
		svc := CreateProcessingService(&persistence.PostgresDB{}, repos, store, logger, cfg)

		pooled, ok := svc.(*service.WorkerPoolProcessingService)
		assert.True(t, ok)
		if ok {
			assert.Equal(t, 5, pooled.Capacity())
			pooled.Shutdown()
		}
	})

	t.Run("non-positive pool size falls back to the base service", func(t *testing.T) {
		cfg := &config.Config{WorkerPool: config.WorkerPoolConfig{Size: 0}}
		svc := CreateProcessingService(&persistence.PostgresDB{}, repos, store, logger, cfg)
		assert.NotNil(t, svc)
		_, pooled := svc.(*service.WorkerPoolProcessingService)
		assert.False(t, pooled)
	})
}
