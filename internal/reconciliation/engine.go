// Package reconciliation rebuilds invoice views by joining the history log with
// point reads of current state.
package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/invoice-ledger/internal/domain/history"
	"github.com/invoice-ledger/internal/domain/invoice"
	"github.com/panjf2000/ants/v2"
)

// ErrIncompleteSnapshot means a record in the history log could not be joined
// with the invoice state it refers to
var ErrIncompleteSnapshot = errors.New("incomplete invoice snapshot")

// Ledger is the read surface the engine reconciles against
type Ledger interface {
	Invoice(ctx context.Context, id invoice.ID) (*invoice.Invoice, error)
	CreationRecords(ctx context.Context, merchant invoice.Address, rng history.Range) ([]history.CreationRecord, error)
	PaymentRecords(ctx context.Context, id invoice.ID, rng history.Range) ([]history.PaymentRecord, error)
}

// InvoiceSnapshot pairs a creation record with the invoice state read for it
type InvoiceSnapshot struct {
	Creation history.CreationRecord `json:"creation"`
	Invoice  invoice.Invoice        `json:"invoice"`
}

// Status classifies the snapshot at now
func (s InvoiceSnapshot) Status(now time.Time) invoice.Status {
	return invoice.DeriveStatus(&s.Invoice, now)
}

// PaymentEvent is the settlement of an invoice as seen in history. Duplicates
// holds later records for the same invoice, which only appear when history was
// replayed.
type PaymentEvent struct {
	Record     history.PaymentRecord   `json:"record"`
	Duplicates []history.PaymentRecord `json:"duplicates,omitempty"`
}

type Engine struct {
	ledger Ledger
	pool   *ants.Pool
	logger *slog.Logger
}

// NewEngine creates an engine whose point reads run on a pool of poolSize
// goroutines
func NewEngine(ledger Ledger, poolSize int, logger *slog.Logger) (*Engine, error) {
	if poolSize <= 0 {
		return nil, fmt.Errorf("pool size must be greater than 0, got %d", poolSize)
	}

	pool, err := ants.NewPool(poolSize, ants.WithPanicHandler(func(p interface{}) {
		logger.Error("Panic in reconciliation worker", "panic", p)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	return &Engine{
		ledger: ledger,
		pool:   pool,
		logger: logger,
	}, nil
}

// Close releases the worker pool
func (e *Engine) Close() {
	e.pool.Release()
}

// ListForMerchant returns every invoice created by merchant in history order,
// each joined with its current state. It rescans history from genesis on every
// call. A single failed point read fails the whole call.
func (e *Engine) ListForMerchant(ctx context.Context, merchant invoice.Address) ([]InvoiceSnapshot, error) {
	records, err := e.ledger.CreationRecords(ctx, merchant, history.FullRange)
	if err != nil {
		return nil, fmt.Errorf("failed to scan creation records: %w", err)
	}
	records = dedupeCreations(records)
	if len(records) == 0 {
		return []InvoiceSnapshot{}, nil
	}

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]InvoiceSnapshot, len(records))
	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for i := range records {
		if ctx.Err() != nil {
			break
		}

		i := i
		wg.Add(1)
		err := e.pool.Submit(func() {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					fail(fmt.Errorf("%w: point read of invoice %s panicked: %v", ErrIncompleteSnapshot, records[i].InvoiceID.Hex(), p))
				}
			}()
			if ctx.Err() != nil {
				return
			}
			inv, err := e.ledger.Invoice(ctx, records[i].InvoiceID)
			if err != nil {
				fail(fmt.Errorf("%w: invoice %s: %w", ErrIncompleteSnapshot, records[i].InvoiceID.Hex(), err))
				return
			}
			results[i] = InvoiceSnapshot{Creation: records[i], Invoice: *inv}
		})
		if err != nil {
			wg.Done()
			fail(fmt.Errorf("failed to schedule point read: %w", err))
		}
	}
	wg.Wait()

	if err := parent.Err(); err != nil {
		return nil, err
	}
	if firstErr != nil {
		e.logger.Error("Failed to reconcile merchant invoices", "merchant", merchant, "error", firstErr)
		return nil, firstErr
	}

	e.logger.Debug("Reconciled merchant invoices", "merchant", merchant, "count", len(results))
	return results, nil
}

// PaymentEvent returns the payment of id, or nil when history holds none. If
// history holds several, the earliest by position and log index wins.
func (e *Engine) PaymentEvent(ctx context.Context, id invoice.ID) (*PaymentEvent, error) {
	records, err := e.ledger.PaymentRecords(ctx, id, history.FullRange)
	if err != nil {
		return nil, fmt.Errorf("failed to scan payment records: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	sorted := make([]history.PaymentRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Locator.Before(sorted[j].Locator)
	})

	event := &PaymentEvent{Record: sorted[0]}
	if len(sorted) > 1 {
		event.Duplicates = sorted[1:]
		e.logger.Warn("Multiple payment records for invoice",
			"invoice_id", id.Hex(),
			"selected_position", sorted[0].Position,
			"duplicates", len(event.Duplicates))
	}
	return event, nil
}

// InvoiceStatus derives the status of id from a point read. A missing invoice
// is StatusNotFound, not an error.
func (e *Engine) InvoiceStatus(ctx context.Context, id invoice.ID, now time.Time) (invoice.Status, *invoice.Invoice, error) {
	inv, err := e.ledger.Invoice(ctx, id)
	if errors.Is(err, invoice.ErrNotFound{}) {
		return invoice.StatusNotFound, nil, nil
	}
	if err != nil {
		return "", nil, err
	}
	return invoice.DeriveStatus(inv, now), inv, nil
}

// dedupeCreations keeps the first record per invoice id. Replayed history can
// repeat a creation.
func dedupeCreations(records []history.CreationRecord) []history.CreationRecord {
	seen := make(map[invoice.ID]struct{}, len(records))
	out := records[:0:0]
	for _, rec := range records {
		if _, ok := seen[rec.InvoiceID]; ok {
			continue
		}
		seen[rec.InvoiceID] = struct{}{}
		out = append(out, rec)
	}
	return out
}
