package submitter

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/invoice-ledger/internal/domain/invoice"
)

// NewInvoiceID draws a fresh 256-bit identifier. The ledger rejects reuse, so
// ids must never be derived from anything guessable.
func NewInvoiceID() (invoice.ID, error) {
	return newInvoiceID(rand.Reader)
}

func newInvoiceID(r io.Reader) (invoice.ID, error) {
	var id invoice.ID
	if _, err := io.ReadFull(r, id[:]); err != nil {
		return invoice.ID{}, fmt.Errorf("failed to read random invoice id: %w", err)
	}
	return id, nil
}
