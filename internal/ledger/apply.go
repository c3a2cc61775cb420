package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/invoice-ledger/internal/domain/invoice"
	"github.com/invoice-ledger/internal/domain/operation"
	"github.com/invoice-ledger/internal/domain/shared"
	"github.com/invoice-ledger/internal/domain/token"
)

// ErrInvalidOperation is returned for operations missing a required field
var ErrInvalidOperation = errors.New("invalid operation")

// Apply dispatches a submitted operation to the matching transition
func (s *Store) Apply(ctx context.Context, st State, call Call, op *operation.Operation) error {
	if call.Caller.IsZero() {
		return fmt.Errorf("%w: missing caller", ErrInvalidOperation)
	}

	switch op.Kind {
	case shared.OperationKindCreate:
		if op.Asset.IsZero() {
			return fmt.Errorf("%w: create requires an asset", ErrInvalidOperation)
		}
		_, err := s.Create(ctx, st, call, op.InvoiceID, op.Asset, op.Amount, op.DueAt)
		return err
	case shared.OperationKindPay:
		_, err := s.Pay(ctx, st, call, op.InvoiceID)
		return err
	case shared.OperationKindApprove:
		if op.Asset.IsZero() {
			return fmt.Errorf("%w: approve requires an asset", ErrInvalidOperation)
		}
		return s.Approve(ctx, st, call, op.Asset, op.Spender, op.Amount)
	case shared.OperationKindMint:
		if op.Asset.IsZero() {
			return fmt.Errorf("%w: mint requires an asset", ErrInvalidOperation)
		}
		return s.Mint(ctx, st, call, op.Asset, op.Recipient, op.Amount)
	default:
		return fmt.Errorf("%w: %q", operation.ErrUnknownKind, op.Kind)
	}
}

// Classify maps a rejected operation to its receipt failure reason. The second
// result is false for errors that are not the ledger's verdict, such as I/O
// failures, which must not be recorded as a failed operation.
func Classify(err error) (shared.FailureReason, bool) {
	switch {
	case err == nil:
		return "", false
	case errors.Is(err, invoice.ErrDuplicateID{}):
		return shared.FailureReasonDuplicateID, true
	case errors.Is(err, invoice.ErrNotFound{}):
		return shared.FailureReasonNotFound, true
	case errors.Is(err, invoice.ErrAlreadyPaid{}):
		return shared.FailureReasonAlreadyPaid, true
	case errors.Is(err, invoice.ErrExpired{}):
		return shared.FailureReasonExpired, true
	case errors.Is(err, ErrTransferFailed):
		return shared.FailureReasonTransferFailed, true
	case errors.Is(err, invoice.ErrInvalidAmount), errors.Is(err, token.ErrInvalidAllowance):
		return shared.FailureReasonInvalidAmount, true
	case errors.Is(err, token.ErrUnauthorizedMint):
		return shared.FailureReasonUnauthorized, true
	case errors.Is(err, ErrInvalidOperation), errors.Is(err, operation.ErrUnknownKind):
		return shared.FailureReasonInvalidOperation, true
	}
	return "", false
}
