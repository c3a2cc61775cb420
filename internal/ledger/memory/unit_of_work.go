package memory

import (
	"context"
	"fmt"

	"github.com/invoice-ledger/internal/domain/history"
	"github.com/invoice-ledger/internal/domain/invoice"
	"github.com/invoice-ledger/internal/domain/token"
	"github.com/invoice-ledger/internal/ledger"
	"github.com/shopspring/decimal"
)

// unitOfWork writes straight to the ledger maps and journals an undo step for
// each write. It is only used while the ledger mutex is held.
type unitOfWork struct {
	l        *Ledger
	call     ledger.Call
	book     *token.Book
	undo     []func()
	logIndex uint32
}

var _ ledger.State = (*unitOfWork)(nil)
var _ token.Store = (*unitOfWork)(nil)

func (u *unitOfWork) rollback() {
	for i := len(u.undo) - 1; i >= 0; i-- {
		u.undo[i]()
	}
	u.undo = nil
}

func (u *unitOfWork) Invoice(_ context.Context, id invoice.ID) (*invoice.Invoice, error) {
	inv, ok := u.l.invoices[id]
	if !ok {
		return nil, invoice.ErrNotFound{ID: id}
	}
	return &inv, nil
}

func (u *unitOfWork) InsertInvoice(_ context.Context, inv *invoice.Invoice) error {
	if _, ok := u.l.invoices[inv.ID]; ok {
		return invoice.ErrDuplicateID{ID: inv.ID}
	}
	u.l.invoices[inv.ID] = *inv
	id := inv.ID
	u.undo = append(u.undo, func() { delete(u.l.invoices, id) })
	return nil
}

func (u *unitOfWork) MarkPaid(_ context.Context, id invoice.ID, payer invoice.Address, paidAt uint64) error {
	prev, ok := u.l.invoices[id]
	if !ok {
		return invoice.ErrNotFound{ID: id}
	}
	next := prev
	if err := next.MarkPaid(payer, paidAt); err != nil {
		return err
	}
	u.l.invoices[id] = next
	u.undo = append(u.undo, func() { u.l.invoices[id] = prev })
	return nil
}

func (u *unitOfWork) EmitCreation(_ context.Context, rec history.CreationRecord) error {
	rec.LogIndex = u.nextLogIndex()
	n := len(u.l.creations)
	u.l.creations = append(u.l.creations, rec)
	u.undo = append(u.undo, func() { u.l.creations = u.l.creations[:n] })
	return nil
}

func (u *unitOfWork) EmitPayment(_ context.Context, rec history.PaymentRecord) error {
	rec.LogIndex = u.nextLogIndex()
	n := len(u.l.payments)
	u.l.payments = append(u.l.payments, rec)
	u.undo = append(u.undo, func() { u.l.payments = u.l.payments[:n] })
	return nil
}

func (u *unitOfWork) nextLogIndex() uint32 {
	idx := u.logIndex
	u.logIndex++
	return idx
}

func (u *unitOfWork) BalanceOf(ctx context.Context, asset, owner invoice.Address) (decimal.Decimal, error) {
	return u.book.BalanceOf(ctx, asset, owner)
}

func (u *unitOfWork) Approve(ctx context.Context, asset, owner, spender invoice.Address, amount decimal.Decimal) error {
	return u.book.Approve(ctx, asset, owner, spender, amount)
}

func (u *unitOfWork) Mint(ctx context.Context, asset, minter, to invoice.Address, amount decimal.Decimal) error {
	return u.book.Mint(ctx, asset, minter, to, amount)
}

// TransferFrom moves funds, then hands control to the transfer hook
func (u *unitOfWork) TransferFrom(ctx context.Context, asset, spender, from, to invoice.Address, amount decimal.Decimal) error {
	if err := u.book.TransferFrom(ctx, asset, spender, from, to, amount); err != nil {
		return err
	}
	if u.l.hook == nil {
		return nil
	}
	if err := u.l.hook(ctx, &Reentry{tx: u}, asset, from, to, amount); err != nil {
		return fmt.Errorf("%w: %w", token.ErrTransferRejected, err)
	}
	return nil
}

// Balance reads zero for holders that never received the asset
func (u *unitOfWork) Balance(_ context.Context, asset, owner invoice.Address) (decimal.Decimal, error) {
	return u.l.balances[balanceKey{asset, owner}], nil
}

func (u *unitOfWork) SetBalance(_ context.Context, asset, owner invoice.Address, amount decimal.Decimal) error {
	key := balanceKey{asset, owner}
	prev, had := u.l.balances[key]
	u.l.balances[key] = amount
	u.undo = append(u.undo, func() {
		if had {
			u.l.balances[key] = prev
		} else {
			delete(u.l.balances, key)
		}
	})
	return nil
}

func (u *unitOfWork) Allowance(_ context.Context, asset, owner, spender invoice.Address) (decimal.Decimal, error) {
	return u.l.allowances[allowanceKey{asset, owner, spender}], nil
}

func (u *unitOfWork) SetAllowance(_ context.Context, asset, owner, spender invoice.Address, amount decimal.Decimal) error {
	key := allowanceKey{asset, owner, spender}
	prev, had := u.l.allowances[key]
	u.l.allowances[key] = amount
	u.undo = append(u.undo, func() {
		if had {
			u.l.allowances[key] = prev
		} else {
			delete(u.l.allowances, key)
		}
	})
	return nil
}
