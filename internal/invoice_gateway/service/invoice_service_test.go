package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/invoice-ledger/internal/domain/history"
	"github.com/invoice-ledger/internal/domain/invoice"
	"github.com/invoice-ledger/internal/reconciliation"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) ListForMerchant(ctx context.Context, merchant invoice.Address) ([]reconciliation.InvoiceSnapshot, error) {
	args := m.Called(ctx, merchant)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]reconciliation.InvoiceSnapshot), args.Error(1)
}

func (m *MockReconciler) PaymentEvent(ctx context.Context, id invoice.ID) (*reconciliation.PaymentEvent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliation.PaymentEvent), args.Error(1)
}

func (m *MockReconciler) InvoiceStatus(ctx context.Context, id invoice.ID, now time.Time) (invoice.Status, *invoice.Invoice, error) {
	args := m.Called(ctx, id, now)
	var inv *invoice.Invoice
	if args.Get(1) != nil {
		inv = args.Get(1).(*invoice.Invoice)
	}
	return args.Get(0).(invoice.Status), inv, args.Error(2)
}

var (
	testNow  = time.Unix(1_700_000_000, 0).UTC()
	merchant = invoice.MustParseAddress("0x00000000000000000000000000000000000000cc")
)

func newTestService(engine Reconciler) InvoiceService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewInvoiceService(logger, engine, func() time.Time { return testNow })
}

func TestInvoiceServiceImpl_GetInvoice(t *testing.T) {
	ctx := context.Background()
	id := invoice.ID{0x01}

	t.Run("Found", func(t *testing.T) {
		engine := new(MockReconciler)
		inv := &invoice.Invoice{ID: id, Merchant: merchant, Amount: decimal.NewFromInt(5)}
		engine.On("InvoiceStatus", ctx, id, testNow).Return(invoice.StatusPending, inv, nil).Once()

		view, err := newTestService(engine).GetInvoice(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, invoice.StatusPending, view.Status)
		assert.Same(t, inv, view.Invoice)
		assert.Equal(t, testNow, view.AsOf)
		engine.AssertExpectations(t)
	})

	t.Run("NotFound", func(t *testing.T) {
		engine := new(MockReconciler)
		engine.On("InvoiceStatus", ctx, id, testNow).Return(invoice.StatusNotFound, nil, nil).Once()

		view, err := newTestService(engine).GetInvoice(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, invoice.StatusNotFound, view.Status)
		assert.Nil(t, view.Invoice)
	})

	t.Run("ReadError", func(t *testing.T) {
		engine := new(MockReconciler)
		readErr := errors.New("pool closed")
		engine.On("InvoiceStatus", ctx, id, testNow).Return(invoice.Status(""), nil, readErr).Once()

		view, err := newTestService(engine).GetInvoice(ctx, id)
		assert.Nil(t, view)
		assert.Equal(t, readErr, err)
	})
}

func TestInvoiceServiceImpl_ListMerchantInvoices(t *testing.T) {
	ctx := context.Background()
	now := invoice.UnixSeconds(testNow)

	engine := new(MockReconciler)
	engine.On("ListForMerchant", ctx, merchant).Return([]reconciliation.InvoiceSnapshot{
		{Creation: history.CreationRecord{InvoiceID: invoice.ID{1}}, Invoice: invoice.Invoice{ID: invoice.ID{1}, Paid: true, DueAt: now - 100}},
		{Creation: history.CreationRecord{InvoiceID: invoice.ID{2}}, Invoice: invoice.Invoice{ID: invoice.ID{2}, DueAt: now - 100}},
		{Creation: history.CreationRecord{InvoiceID: invoice.ID{3}}, Invoice: invoice.Invoice{ID: invoice.ID{3}}},
	}, nil).Once()

	views, err := newTestService(engine).ListMerchantInvoices(ctx, merchant)
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, invoice.StatusPaid, views[0].Status)
	assert.Equal(t, invoice.StatusExpired, views[1].Status)
	assert.Equal(t, invoice.StatusPending, views[2].Status)
	assert.Equal(t, invoice.ID{2}, views[1].Invoice.ID)
	assert.Equal(t, invoice.ID{3}, views[2].Invoice.ID)

	failing := new(MockReconciler)
	failing.On("ListForMerchant", ctx, merchant).Return(nil, reconciliation.ErrIncompleteSnapshot).Once()
	_, err = newTestService(failing).ListMerchantInvoices(ctx, merchant)
	assert.ErrorIs(t, err, reconciliation.ErrIncompleteSnapshot)
}

func TestInvoiceServiceImpl_GetPaymentEvent(t *testing.T) {
	ctx := context.Background()
	id := invoice.ID{0x09}

	engine := new(MockReconciler)
	event := &reconciliation.PaymentEvent{Record: history.PaymentRecord{InvoiceID: id}}
	engine.On("PaymentEvent", ctx, id).Return(event, nil).Once()
	got, err := newTestService(engine).GetPaymentEvent(ctx, id)
	require.NoError(t, err)
	assert.Same(t, event, got)

	none := new(MockReconciler)
	none.On("PaymentEvent", ctx, id).Return(nil, nil).Once()
	got, err = newTestService(none).GetPaymentEvent(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)
}
