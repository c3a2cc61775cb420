// Package ledgerclient is the read façade over the ledger: point reads of
// invoice state and historical scans of the record log. It adds deadlines and
// nothing else; errors from the backing stores are returned unchanged.
package ledgerclient

import (
	"context"
	"log/slog"
	"time"

	"github.com/invoice-ledger/internal/domain/history"
	"github.com/invoice-ledger/internal/domain/invoice"
)

// Client is safe for concurrent use when its readers are
type Client struct {
	invoices invoice.Reader
	history  history.Reader
	timeout  time.Duration
	logger   *slog.Logger
}

type Option func(*Client)

// WithTimeout bounds every read. Zero means the caller's context alone applies.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func New(invoices invoice.Reader, hist history.Reader, opts ...Option) *Client {
	c := &Client{
		invoices: invoices,
		history:  hist,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Invoice returns the current record, or invoice.ErrNotFound
func (c *Client) Invoice(ctx context.Context, id invoice.ID) (*invoice.Invoice, error) {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()
	return c.invoices.GetByID(ctx, id)
}

func (c *Client) Exists(ctx context.Context, id invoice.ID) (bool, error) {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()
	return c.invoices.Exists(ctx, id)
}

// CreationRecords scans creation history for merchant in ledger order
func (c *Client) CreationRecords(ctx context.Context, merchant invoice.Address, rng history.Range) ([]history.CreationRecord, error) {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	records, err := c.history.CreationRecords(ctx, merchant, rng)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Scanned creation records", "merchant", merchant, "from", rng.From, "to", rng.To, "count", len(records))
	return records, nil
}

// PaymentRecords scans payment history for one invoice in ledger order
func (c *Client) PaymentRecords(ctx context.Context, id invoice.ID, rng history.Range) ([]history.PaymentRecord, error) {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	records, err := c.history.PaymentRecords(ctx, id, rng)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Scanned payment records", "invoice_id", id.Hex(), "from", rng.From, "to", rng.To, "count", len(records))
	return records, nil
}

func (c *Client) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}
