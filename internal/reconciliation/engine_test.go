package reconciliation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/invoice-ledger/internal/domain/history"
	"github.com/invoice-ledger/internal/domain/invoice"
	"github.com/invoice-ledger/internal/ledger/memory"
	"github.com/invoice-ledger/internal/ledgerclient"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	storeAddr = invoice.MustParseAddress("0x00000000000000000000000000000000000001f5")
	asset     = invoice.MustParseAddress("0x00000000000000000000000000000000000000a5")
	merchant  = invoice.MustParseAddress("0x00000000000000000000000000000000000000cc")
	other     = invoice.MustParseAddress("0x00000000000000000000000000000000000000ee")
	payer     = invoice.MustParseAddress("0x00000000000000000000000000000000000000bb")
)

var testNow = time.Unix(1_700_000_000, 0).UTC()

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func invoiceID(b byte) invoice.ID {
	var id invoice.ID
	id[0] = 0x1e
	id[31] = b
	return id
}

func newLedger(t *testing.T) *memory.Ledger {
	t.Helper()
	return memory.New(storeAddr, memory.WithClock(func() time.Time { return testNow }))
}

func newEngine(t *testing.T, l Ledger) *Engine {
	t.Helper()
	e, err := NewEngine(l, 4, testLogger())
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func fundAndApprove(t *testing.T, l *memory.Ledger, amount int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, l.Mint(ctx, asset, payer, decimal.NewFromInt(amount)))
	require.NoError(t, l.Approve(ctx, payer, asset, storeAddr, decimal.NewFromInt(amount)))
}

func TestNewEngine_RejectsEmptyPool(t *testing.T) {
	l := newLedger(t)
	_, err := NewEngine(ledgerclient.New(l, l), 0, testLogger())
	assert.Error(t, err)
}

func TestListForMerchant(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	now := invoice.UnixSeconds(testNow)

	require.NoError(t, l.Create(ctx, merchant, invoiceID(1), asset, decimal.NewFromInt(100), 0))
	require.NoError(t, l.Create(ctx, other, invoiceID(2), asset, decimal.NewFromInt(5), 0))
	require.NoError(t, l.Create(ctx, merchant, invoiceID(3), asset, decimal.NewFromInt(50), now-10))
	require.NoError(t, l.Create(ctx, merchant, invoiceID(4), asset, decimal.NewFromInt(70), now+3600))
	fundAndApprove(t, l, 100)
	require.NoError(t, l.Pay(ctx, payer, invoiceID(1)))

	engine := newEngine(t, ledgerclient.New(l, l))
	snapshots, err := engine.ListForMerchant(ctx, merchant)
	require.NoError(t, err)
	require.Len(t, snapshots, 3)

	assert.Equal(t, invoiceID(1), snapshots[0].Invoice.ID)
	assert.Equal(t, invoiceID(3), snapshots[1].Invoice.ID)
	assert.Equal(t, invoiceID(4), snapshots[2].Invoice.ID)

	assert.Equal(t, invoice.StatusPaid, snapshots[0].Status(testNow))
	assert.Equal(t, invoice.StatusExpired, snapshots[1].Status(testNow))
	assert.Equal(t, invoice.StatusPending, snapshots[2].Status(testNow))

	for _, s := range snapshots {
		assert.Equal(t, s.Creation.InvoiceID, s.Invoice.ID)
		assert.Equal(t, merchant, s.Invoice.Merchant)
	}
	assert.Equal(t, payer, snapshots[0].Invoice.Payer)
}

func TestListForMerchant_NoInvoices(t *testing.T) {
	engine := newEngine(t, ledgerclient.New(newLedger(t), newLedger(t)))

	snapshots, err := engine.ListForMerchant(context.Background(), merchant)
	require.NoError(t, err)
	assert.NotNil(t, snapshots)
	assert.Empty(t, snapshots)
}

// stubLedger serves canned history and fails point reads for selected ids
type stubLedger struct {
	creations []history.CreationRecord
	payments  []history.PaymentRecord
	invoices  map[invoice.ID]*invoice.Invoice
	readErr   map[invoice.ID]error
	panics    map[invoice.ID]bool
	scanErr   error
	reads     atomic.Int32
	inFlight  atomic.Int32
	peak      atomic.Int32
	delay     time.Duration
}

func (s *stubLedger) Invoice(ctx context.Context, id invoice.ID) (*invoice.Invoice, error) {
	s.reads.Add(1)
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.panics[id] {
		var broken map[invoice.ID]int
		broken[id]++
	}
	if err := s.readErr[id]; err != nil {
		return nil, err
	}
	inv, ok := s.invoices[id]
	if !ok {
		return nil, invoice.ErrNotFound{ID: id}
	}
	cp := *inv
	return &cp, nil
}

func (s *stubLedger) CreationRecords(context.Context, invoice.Address, history.Range) ([]history.CreationRecord, error) {
	return s.creations, s.scanErr
}

func (s *stubLedger) PaymentRecords(context.Context, invoice.ID, history.Range) ([]history.PaymentRecord, error) {
	return s.payments, s.scanErr
}

func seededStub(n int) *stubLedger {
	s := &stubLedger{
		invoices: make(map[invoice.ID]*invoice.Invoice),
		readErr:  make(map[invoice.ID]error),
	}
	for i := 1; i <= n; i++ {
		id := invoiceID(byte(i))
		inv, _ := invoice.New(id, merchant, asset, decimal.NewFromInt(int64(i)), 0)
		s.invoices[id] = inv
		s.creations = append(s.creations, history.NewCreationRecord(inv, history.Locator{Position: uint64(i)}))
	}
	return s
}

func TestListForMerchant_PreservesHistoryOrderUnderConcurrency(t *testing.T) {
	stub := seededStub(40)
	stub.delay = 2 * time.Millisecond
	engine := newEngine(t, stub)

	snapshots, err := engine.ListForMerchant(context.Background(), merchant)
	require.NoError(t, err)
	require.Len(t, snapshots, 40)
	for i, s := range snapshots {
		assert.Equal(t, invoiceID(byte(i+1)), s.Invoice.ID)
	}
	assert.LessOrEqual(t, stub.peak.Load(), int32(4))
	assert.Greater(t, stub.peak.Load(), int32(1))
}

func TestListForMerchant_FailedPointReadFailsCall(t *testing.T) {
	stub := seededStub(10)
	ioErr := errors.New("connection reset")
	stub.readErr[invoiceID(6)] = ioErr
	engine := newEngine(t, stub)

	snapshots, err := engine.ListForMerchant(context.Background(), merchant)
	assert.Nil(t, snapshots)
	assert.ErrorIs(t, err, ErrIncompleteSnapshot)
	assert.ErrorIs(t, err, ioErr)
}

func TestListForMerchant_MissingStateFailsCall(t *testing.T) {
	stub := seededStub(3)
	delete(stub.invoices, invoiceID(2))
	engine := newEngine(t, stub)

	_, err := engine.ListForMerchant(context.Background(), merchant)
	assert.ErrorIs(t, err, ErrIncompleteSnapshot)
	assert.ErrorIs(t, err, invoice.ErrNotFound{ID: invoiceID(2)})
}

func TestListForMerchant_PanickingPointReadFailsCall(t *testing.T) {
	stub := seededStub(3)
	stub.panics = map[invoice.ID]bool{invoiceID(2): true}
	engine := newEngine(t, stub)

	snapshots, err := engine.ListForMerchant(context.Background(), merchant)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIncompleteSnapshot)
	assert.Contains(t, err.Error(), "panicked")
	assert.Nil(t, snapshots)
}

func TestListForMerchant_ScanError(t *testing.T) {
	stub := seededStub(1)
	stub.scanErr = errors.New("history unavailable")
	engine := newEngine(t, stub)

	_, err := engine.ListForMerchant(context.Background(), merchant)
	assert.ErrorIs(t, err, stub.scanErr)
	assert.Zero(t, stub.reads.Load())
}

func TestListForMerchant_Cancelled(t *testing.T) {
	stub := seededStub(20)
	stub.delay = 50 * time.Millisecond
	engine := newEngine(t, stub)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := engine.ListForMerchant(ctx, merchant)
	wg.Wait()
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, stub.reads.Load(), int32(20))
}

func TestListForMerchant_DedupesReplayedCreations(t *testing.T) {
	stub := seededStub(2)
	replay := stub.creations[0]
	replay.Position = 99
	stub.creations = append(stub.creations, replay)
	engine := newEngine(t, stub)

	snapshots, err := engine.ListForMerchant(context.Background(), merchant)
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Equal(t, uint64(1), snapshots[0].Creation.Position)
}

func TestPaymentEvent(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	require.NoError(t, l.Create(ctx, merchant, invoiceID(1), asset, decimal.NewFromInt(40), 0))
	require.NoError(t, l.Create(ctx, merchant, invoiceID(2), asset, decimal.NewFromInt(40), 0))
	fundAndApprove(t, l, 40)
	require.NoError(t, l.Pay(ctx, payer, invoiceID(1)))

	engine := newEngine(t, ledgerclient.New(l, l))

	t.Run("paid invoice", func(t *testing.T) {
		event, err := engine.PaymentEvent(ctx, invoiceID(1))
		require.NoError(t, err)
		require.NotNil(t, event)
		assert.Equal(t, payer, event.Record.Payer)
		assert.Equal(t, merchant, event.Record.Merchant)
		assert.True(t, event.Record.Amount.Equal(decimal.NewFromInt(40)))
		assert.Equal(t, invoice.UnixSeconds(testNow), event.Record.PaidAt)
		assert.Empty(t, event.Duplicates)
	})

	t.Run("unpaid invoice has no event", func(t *testing.T) {
		event, err := engine.PaymentEvent(ctx, invoiceID(2))
		require.NoError(t, err)
		assert.Nil(t, event)
	})

	t.Run("unknown invoice has no event", func(t *testing.T) {
		event, err := engine.PaymentEvent(ctx, invoiceID(9))
		require.NoError(t, err)
		assert.Nil(t, event)
	})

	t.Run("replayed history selects the earliest record", func(t *testing.T) {
		first, err := engine.PaymentEvent(ctx, invoiceID(1))
		require.NoError(t, err)

		later := first.Record
		later.Position = first.Record.Position + 5
		later.TxRef = "replayed"
		l.AppendPaymentRecord(later)

		sameBlock := first.Record
		sameBlock.LogIndex = first.Record.LogIndex + 1
		l.AppendPaymentRecord(sameBlock)

		event, err := engine.PaymentEvent(ctx, invoiceID(1))
		require.NoError(t, err)
		assert.Equal(t, first.Record.Locator, event.Record.Locator)
		require.Len(t, event.Duplicates, 2)
		assert.Equal(t, sameBlock.Locator, event.Duplicates[0].Locator)
		assert.Equal(t, later.Locator, event.Duplicates[1].Locator)
	})
}

func TestPaymentEvent_OutOfOrderScan(t *testing.T) {
	stub := &stubLedger{payments: []history.PaymentRecord{
		{InvoiceID: invoiceID(1), Locator: history.Locator{Position: 9}},
		{InvoiceID: invoiceID(1), Locator: history.Locator{Position: 4, LogIndex: 2}},
		{InvoiceID: invoiceID(1), Locator: history.Locator{Position: 4, LogIndex: 1}},
	}}
	engine := newEngine(t, stub)

	event, err := engine.PaymentEvent(context.Background(), invoiceID(1))
	require.NoError(t, err)
	assert.Equal(t, history.Locator{Position: 4, LogIndex: 1}, event.Record.Locator)
	assert.Len(t, event.Duplicates, 2)
	assert.Equal(t, uint64(9), stub.payments[0].Position)
}

func TestPaymentEvent_ScanError(t *testing.T) {
	stub := &stubLedger{scanErr: errors.New("timeout")}
	engine := newEngine(t, stub)

	event, err := engine.PaymentEvent(context.Background(), invoiceID(1))
	assert.Nil(t, event)
	assert.ErrorIs(t, err, stub.scanErr)
}

func TestInvoiceStatus(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	now := invoice.UnixSeconds(testNow)
	require.NoError(t, l.Create(ctx, merchant, invoiceID(1), asset, decimal.NewFromInt(1), now))
	engine := newEngine(t, ledgerclient.New(l, l))

	status, inv, err := engine.InvoiceStatus(ctx, invoiceID(1), testNow)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusPending, status)
	require.NotNil(t, inv)

	status, _, err = engine.InvoiceStatus(ctx, invoiceID(1), testNow.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusExpired, status)

	status, inv, err = engine.InvoiceStatus(ctx, invoiceID(2), testNow)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusNotFound, status)
	assert.Nil(t, inv)

	stub := &stubLedger{readErr: map[invoice.ID]error{invoiceID(3): errors.New("down")}}
	_, _, err = newEngine(t, stub).InvoiceStatus(ctx, invoiceID(3), testNow)
	assert.Error(t, err)
}
