// Package token implements the balance and allowance rules of the settlement
// asset that invoices are paid in.
package token

import (
	"context"
	"errors"
	"fmt"

	"github.com/invoice-ledger/internal/domain/invoice"
	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrUnauthorizedMint      = errors.New("only the asset address may mint")
	ErrInvalidAllowance      = errors.New("allowance must be a whole number between 0 and 2^256-1")
)

// Store persists balances keyed by (asset, owner) and allowances keyed by
// (asset, owner, spender). Missing entries read as zero.
type Store interface {
	Balance(ctx context.Context, asset, owner invoice.Address) (decimal.Decimal, error)
	SetBalance(ctx context.Context, asset, owner invoice.Address, amount decimal.Decimal) error
	Allowance(ctx context.Context, asset, owner, spender invoice.Address) (decimal.Decimal, error)
	SetAllowance(ctx context.Context, asset, owner, spender invoice.Address, amount decimal.Decimal) error
}

// Book applies transfer rules on top of a Store. It is only as atomic as the
// store it runs against; callers run it inside a unit of work.
type Book struct {
	store Store
}

func NewBook(store Store) *Book {
	return &Book{store: store}
}

func (b *Book) BalanceOf(ctx context.Context, asset, owner invoice.Address) (decimal.Decimal, error) {
	return b.store.Balance(ctx, asset, owner)
}

func (b *Book) Allowance(ctx context.Context, asset, owner, spender invoice.Address) (decimal.Decimal, error) {
	return b.store.Allowance(ctx, asset, owner, spender)
}

// Approve overwrites the allowance owner grants spender
func (b *Book) Approve(ctx context.Context, asset, owner, spender invoice.Address, amount decimal.Decimal) error {
	if !amount.IsZero() {
		if err := invoice.ValidateAmount(amount); err != nil {
			return ErrInvalidAllowance
		}
	}
	return b.store.SetAllowance(ctx, asset, owner, spender, amount)
}

// TransferFrom moves amount from one holder to another, consuming the
// allowance from granted to spender
func (b *Book) TransferFrom(ctx context.Context, asset, spender, from, to invoice.Address, amount decimal.Decimal) error {
	allowance, err := b.store.Allowance(ctx, asset, from, spender)
	if err != nil {
		return fmt.Errorf("read allowance: %w", err)
	}
	remaining, err := SpendAllowance(allowance, amount)
	if err != nil {
		return err
	}

	fromBalance, err := b.store.Balance(ctx, asset, from)
	if err != nil {
		return fmt.Errorf("read sender balance: %w", err)
	}
	debited, err := Debit(fromBalance, amount)
	if err != nil {
		return err
	}

	if err := b.store.SetAllowance(ctx, asset, from, spender, remaining); err != nil {
		return fmt.Errorf("update allowance: %w", err)
	}
	if err := b.store.SetBalance(ctx, asset, from, debited); err != nil {
		return fmt.Errorf("update sender balance: %w", err)
	}

	// read after the debit so a self-transfer nets to zero
	toBalance, err := b.store.Balance(ctx, asset, to)
	if err != nil {
		return fmt.Errorf("read recipient balance: %w", err)
	}
	credited, err := Credit(toBalance, amount)
	if err != nil {
		return err
	}
	if err := b.store.SetBalance(ctx, asset, to, credited); err != nil {
		return fmt.Errorf("update recipient balance: %w", err)
	}
	return nil
}

// Mint credits new units. Only the asset's own address is allowed to issue.
func (b *Book) Mint(ctx context.Context, asset, minter, to invoice.Address, amount decimal.Decimal) error {
	if minter != asset {
		return ErrUnauthorizedMint
	}
	if err := invoice.ValidateAmount(amount); err != nil {
		return err
	}
	balance, err := b.store.Balance(ctx, asset, to)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}
	credited, err := Credit(balance, amount)
	if err != nil {
		return err
	}
	return b.store.SetBalance(ctx, asset, to, credited)
}

// Debit subtracts amount from balance
func Debit(balance, amount decimal.Decimal) (decimal.Decimal, error) {
	if balance.LessThan(amount) {
		return balance, ErrInsufficientBalance
	}
	return balance.Sub(amount), nil
}

// Credit adds amount to balance, refusing to exceed the representable maximum
func Credit(balance, amount decimal.Decimal) (decimal.Decimal, error) {
	sum := balance.Add(amount)
	if err := invoice.ValidateAmount(sum); err != nil {
		return balance, fmt.Errorf("balance overflow: %w", err)
	}
	return sum, nil
}

// SpendAllowance returns the allowance left after spending amount
func SpendAllowance(allowance, amount decimal.Decimal) (decimal.Decimal, error) {
	if allowance.LessThan(amount) {
		return allowance, ErrInsufficientAllowance
	}
	return allowance.Sub(amount), nil
}

// ErrTransferRejected is returned when the asset refuses a transfer for a
// reason of its own
var ErrTransferRejected = errors.New("transfer rejected by asset")

// IsRejection reports whether err is the asset declining a transfer, as
// opposed to a failure to reach the asset's state
func IsRejection(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInsufficientAllowance) ||
		errors.Is(err, ErrTransferRejected) ||
		errors.Is(err, invoice.ErrInvalidAmount)
}
