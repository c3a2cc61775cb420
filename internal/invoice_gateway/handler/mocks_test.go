package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/invoice-ledger/internal/domain/invoice"
	"github.com/invoice-ledger/internal/invoice_gateway/middleware"
	"github.com/invoice-ledger/internal/invoice_gateway/service"
	"github.com/invoice-ledger/internal/reconciliation"
	"github.com/invoice-ledger/internal/submitter"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockOperationService struct {
	mock.Mock
}

func (m *MockOperationService) CreateInvoice(ctx context.Context, req submitter.CreateInvoiceRequest) (*submitter.Submission, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*submitter.Submission), args.Error(1)
}

func (m *MockOperationService) PayInvoice(ctx context.Context, req submitter.PayInvoiceRequest) (*submitter.Submission, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*submitter.Submission), args.Error(1)
}

func (m *MockOperationService) ApproveSpending(ctx context.Context, req submitter.ApproveRequest) (*submitter.Submission, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*submitter.Submission), args.Error(1)
}

func (m *MockOperationService) Mint(ctx context.Context, req submitter.MintRequest) (*submitter.Submission, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*submitter.Submission), args.Error(1)
}

func (m *MockOperationService) Lifecycle(ctx context.Context, opID uuid.UUID) (*submitter.Lifecycle, error) {
	args := m.Called(ctx, opID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*submitter.Lifecycle), args.Error(1)
}

type MockInvoiceService struct {
	mock.Mock
}

func (m *MockInvoiceService) GetInvoice(ctx context.Context, id invoice.ID) (*service.InvoiceView, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.InvoiceView), args.Error(1)
}

func (m *MockInvoiceService) GetPaymentEvent(ctx context.Context, id invoice.ID) (*reconciliation.PaymentEvent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliation.PaymentEvent), args.Error(1)
}

func (m *MockInvoiceService) ListMerchantInvoices(ctx context.Context, merchant invoice.Address) ([]service.InvoiceView, error) {
	args := m.Called(ctx, merchant)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.InvoiceView), args.Error(1)
}

var (
	merchant = invoice.MustParseAddress("0x00000000000000000000000000000000000000cc")
	payer    = invoice.MustParseAddress("0x00000000000000000000000000000000000000bb")
	asset    = invoice.MustParseAddress("0x00000000000000000000000000000000000000a5")
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.CorrelationID())
	router.Use(middleware.CallerIdentity())
	return router
}

// doRequest sends body as JSON, acting as caller when it is non-empty
func doRequest(router *gin.Engine, method, path, body string, caller invoice.Address) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.CorrelationIDHeader, "corr-test")
	if caller != "" {
		req.Header.Set(middleware.CallerAddressHeader, string(caller))
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

type envelope struct {
	Data          json.RawMessage `json:"data"`
	Error         *ErrorInfo      `json:"error"`
	CorrelationID string          `json:"correlation_id"`
	Meta          *MetaInfo       `json:"meta"`
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}
