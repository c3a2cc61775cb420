// Package submitter validates invoice operations, publishes them to the ledger
// node and tracks them until the ledger settles them.
package submitter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/invoice-ledger/internal/domain/invoice"
	"github.com/invoice-ledger/internal/domain/operation"
	"github.com/invoice-ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Publisher hands an operation to the ledger node
type Publisher interface {
	PublishOperation(ctx context.Context, op *operation.Operation) error
}

// ReceiptReader looks up what the ledger node did with an operation
type ReceiptReader interface {
	GetByOperationID(ctx context.Context, id uuid.UUID) (*operation.Receipt, error)
}

// InvoiceReader is the point read used to pre-check payments
type InvoiceReader interface {
	Invoice(ctx context.Context, id invoice.ID) (*invoice.Invoice, error)
}

type Config struct {
	StoreAddress invoice.Address
	MaxDueWindow time.Duration
	PollInterval time.Duration
}

type Option func(*Submitter)

// WithClock overrides the clock used for due-time and expiry checks
func WithClock(clock func() time.Time) Option {
	return func(s *Submitter) {
		s.clock = clock
	}
}

// WithIDSource overrides the generator of invoice ids
func WithIDSource(next func() (invoice.ID, error)) Option {
	return func(s *Submitter) {
		s.newID = next
	}
}

type Submitter struct {
	publisher Publisher
	receipts  ReceiptReader
	invoices  InvoiceReader
	cfg       Config
	clock     func() time.Time
	newID     func() (invoice.ID, error)
	logger    *slog.Logger
}

func New(publisher Publisher, receipts ReceiptReader, invoices InvoiceReader, cfg Config, logger *slog.Logger, opts ...Option) *Submitter {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	s := &Submitter{
		publisher: publisher,
		receipts:  receipts,
		invoices:  invoices,
		cfg:       cfg,
		clock:     time.Now,
		newID:     NewInvoiceID,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submission acknowledges an operation accepted for processing
type Submission struct {
	OperationID uuid.UUID            `json:"operation_id"`
	InvoiceID   *invoice.ID          `json:"invoice_id,omitempty"`
	Status      shared.ReceiptStatus `json:"status"`
}

type CreateInvoiceRequest struct {
	Merchant      invoice.Address
	ID            invoice.ID // zero draws a random id
	Asset         invoice.Address
	Amount        decimal.Decimal
	DueAt         uint64
	CorrelationID string
}

type PayInvoiceRequest struct {
	Payer         invoice.Address
	InvoiceID     invoice.ID
	CorrelationID string
}

type ApproveRequest struct {
	Owner         invoice.Address
	Asset         invoice.Address
	Spender       invoice.Address // zero approves the invoice store
	Amount        decimal.Decimal
	CorrelationID string
}

type MintRequest struct {
	Asset         invoice.Address
	Recipient     invoice.Address
	Amount        decimal.Decimal
	CorrelationID string
}

// CreateInvoice submits a new invoice owned by the merchant
func (s *Submitter) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*Submission, error) {
	if err := validateAddress("merchant", req.Merchant); err != nil {
		return nil, err
	}
	if err := validateAddress("asset", req.Asset); err != nil {
		return nil, err
	}
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}
	if err := s.validateDueAt(req.DueAt); err != nil {
		return nil, err
	}

	id := req.ID
	if id.IsZero() {
		var err error
		if id, err = s.newID(); err != nil {
			return nil, err
		}
	}

	op := s.newOperation(shared.OperationKindCreate, req.Merchant, req.CorrelationID)
	op.InvoiceID = id
	op.Asset = req.Asset
	op.Amount = req.Amount
	op.DueAt = req.DueAt

	return s.submit(ctx, op)
}

// PayInvoice submits a payment after a point read rules out the failures the
// ledger would certainly report
func (s *Submitter) PayInvoice(ctx context.Context, req PayInvoiceRequest) (*Submission, error) {
	if err := validateAddress("payer", req.Payer); err != nil {
		return nil, err
	}
	if req.InvoiceID.IsZero() {
		return nil, invalid("invoice_id", "must not be zero", invoice.ErrMalformedID)
	}

	inv, err := s.invoices.Invoice(ctx, req.InvoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Paid {
		return nil, invoice.ErrAlreadyPaid{ID: inv.ID}
	}
	if now := invoice.UnixSeconds(s.clock()); inv.ExpiredAt(now) {
		return nil, invoice.ErrExpired{ID: inv.ID, DueAt: inv.DueAt, Now: now}
	}

	op := s.newOperation(shared.OperationKindPay, req.Payer, req.CorrelationID)
	op.InvoiceID = inv.ID
	op.Amount = inv.Amount

	return s.submit(ctx, op)
}

// ApproveSpending lets a spender, by default the invoice store, move the
// owner's funds of one asset
func (s *Submitter) ApproveSpending(ctx context.Context, req ApproveRequest) (*Submission, error) {
	if err := validateAddress("owner", req.Owner); err != nil {
		return nil, err
	}
	if err := validateAddress("asset", req.Asset); err != nil {
		return nil, err
	}
	spender := req.Spender
	if spender.IsZero() {
		spender = s.cfg.StoreAddress
	}
	if err := validateAddress("spender", spender); err != nil {
		return nil, err
	}
	if req.Amount.IsNegative() || !req.Amount.Equal(req.Amount.Truncate(0)) {
		return nil, invalid("amount", "must be a non-negative whole number", invoice.ErrInvalidAmount)
	}

	op := s.newOperation(shared.OperationKindApprove, req.Owner, req.CorrelationID)
	op.Asset = req.Asset
	op.Spender = spender
	op.Amount = req.Amount

	return s.submit(ctx, op)
}

// Mint issues new units of an asset. Only the asset itself may mint.
func (s *Submitter) Mint(ctx context.Context, req MintRequest) (*Submission, error) {
	if err := validateAddress("asset", req.Asset); err != nil {
		return nil, err
	}
	if err := validateAddress("recipient", req.Recipient); err != nil {
		return nil, err
	}
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}

	op := s.newOperation(shared.OperationKindMint, req.Asset, req.CorrelationID)
	op.Asset = req.Asset
	op.Recipient = req.Recipient
	op.Amount = req.Amount

	return s.submit(ctx, op)
}

func (s *Submitter) newOperation(kind shared.OperationKind, caller invoice.Address, correlationID string) *operation.Operation {
	return &operation.Operation{
		ID:            uuid.New(),
		Kind:          kind,
		Caller:        caller,
		Amount:        decimal.Zero,
		CorrelationID: correlationID,
		SubmittedAt:   s.clock().UTC(),
	}
}

func (s *Submitter) submit(ctx context.Context, op *operation.Operation) (*Submission, error) {
	logger := s.logger.With(
		"operation_id", op.ID,
		"kind", string(op.Kind),
		"caller", op.Caller,
		"correlation_id", op.CorrelationID,
	)

	if err := s.publisher.PublishOperation(ctx, op); err != nil {
		logger.Error("Failed to publish operation", "error", err)
		return nil, fmt.Errorf("failed to submit operation: %w", err)
	}
	logger.Info("Operation submitted")

	sub := &Submission{OperationID: op.ID, Status: shared.ReceiptStatusSubmitted}
	if !op.InvoiceID.IsZero() {
		id := op.InvoiceID
		sub.InvoiceID = &id
	}
	return sub, nil
}

// Lifecycle is the observed state of a submitted operation
type Lifecycle struct {
	OperationID   uuid.UUID            `json:"operation_id"`
	Status        shared.ReceiptStatus `json:"status"`
	FailureReason shared.FailureReason `json:"failure_reason,omitempty"`
	Detail        string               `json:"detail,omitempty"`
	Position      uint64               `json:"position,omitempty"`
	InvoiceID     string               `json:"invoice_id,omitempty"`
}

// Lifecycle reports the current state of an operation. One without a receipt
// is still Submitted.
func (s *Submitter) Lifecycle(ctx context.Context, opID uuid.UUID) (*Lifecycle, error) {
	receipt, err := s.receipts.GetByOperationID(ctx, opID)
	if errors.Is(err, operation.ErrReceiptNotFound{}) {
		return &Lifecycle{OperationID: opID, Status: shared.ReceiptStatusSubmitted}, nil
	}
	if err != nil {
		return nil, err
	}
	return &Lifecycle{
		OperationID:   receipt.OperationID,
		Status:        receipt.Status,
		FailureReason: receipt.FailureReason,
		Detail:        receipt.Detail,
		Position:      receipt.Position,
		InvoiceID:     receipt.InvoiceID,
	}, nil
}

// Await polls until the operation is Confirmed or Failed, or ctx ends. On
// ctx expiry the last observed state is returned with the context error.
func (s *Submitter) Await(ctx context.Context, opID uuid.UUID) (*Lifecycle, error) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		state, err := s.Lifecycle(ctx, opID)
		if err != nil {
			return nil, err
		}
		if state.Status.Terminal() {
			return state, nil
		}

		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Submitter) validateDueAt(dueAt uint64) error {
	if dueAt == 0 {
		return nil
	}
	now := s.clock()
	if dueAt <= invoice.UnixSeconds(now) {
		return invalid("due_at", "must be in the future", nil)
	}
	if s.cfg.MaxDueWindow > 0 && dueAt > invoice.UnixSeconds(now.Add(s.cfg.MaxDueWindow)) {
		return invalid("due_at", fmt.Sprintf("must be within %s of now", s.cfg.MaxDueWindow), nil)
	}
	return nil
}

func validateAmount(amount decimal.Decimal) error {
	if err := invoice.ValidateAmount(amount); err != nil {
		return invalid("amount", "must be a whole number between 1 and 2^256-1", err)
	}
	return nil
}

func validateAddress(field string, addr invoice.Address) error {
	if addr.IsZero() {
		return invalid(field, "is required", invoice.ErrMalformedAddress)
	}
	if _, err := invoice.ParseAddress(string(addr)); err != nil {
		return invalid(field, "must be a 20-byte hex address", err)
	}
	return nil
}
