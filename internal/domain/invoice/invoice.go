// Package invoice holds the ledger-resident invoice record and the identifiers
// shared by every layer that reads or writes it.
package invoice

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// IDLength is the size of an invoice identifier in bytes
const IDLength = 32

// AddressLength is the size of an account reference in bytes
const AddressLength = 20

var (
	ErrMalformedID      = errors.New("invoice id must be 32 bytes of 0x-prefixed hex")
	ErrMalformedAddress = errors.New("address must be 20 bytes of 0x-prefixed hex")
)

// maxAmount is 2^256-1, the largest amount the ledger can represent
var maxAmount = decimal.NewFromBigInt(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1)), 0)

// ID is the opaque 32-byte identifier chosen by the invoice creator
type ID [IDLength]byte

// ParseID decodes a 0x-prefixed (or bare) 64 character hex string
func ParseID(s string) (ID, error) {
	var id ID
	raw := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(raw) != IDLength*2 {
		return id, ErrMalformedID
	}
	if _, err := hex.Decode(id[:], []byte(raw)); err != nil {
		return id, ErrMalformedID
	}
	return id, nil
}

// Hex renders the id as lowercase 0x-prefixed hex
func (id ID) Hex() string {
	return "0x" + hex.EncodeToString(id[:])
}

func (id ID) String() string {
	return id.Hex()
}

// IsZero reports whether the id is all zero bytes
func (id ID) IsZero() bool {
	return id == ID{}
}

func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.Hex()), nil
}

func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := ParseID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Address is a normalized account reference: lowercase, 0x-prefixed, 40 hex chars
type Address string

// ZeroAddress is the empty account reference, used for the payer of an unpaid invoice
const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

// ParseAddress validates and normalizes an account reference
func ParseAddress(s string) (Address, error) {
	raw := strings.ToLower(strings.TrimSpace(s))
	raw = strings.TrimPrefix(raw, "0x")
	if len(raw) != AddressLength*2 {
		return "", ErrMalformedAddress
	}
	if _, err := hex.DecodeString(raw); err != nil {
		return "", ErrMalformedAddress
	}
	return Address("0x" + raw), nil
}

// MustParseAddress is ParseAddress for constants and tests
func MustParseAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(fmt.Sprintf("invalid address %q: %v", s, err))
	}
	return addr
}

func (a Address) String() string {
	return string(a)
}

// IsZero reports whether the address is empty or the zero account
func (a Address) IsZero() bool {
	return a == "" || a == ZeroAddress
}

// Invoice is the authoritative record held by the invoice store. Everything but
// the payment fields is fixed at creation.
type Invoice struct {
	ID       ID              `json:"id"`
	Merchant Address         `json:"merchant"`
	Asset    Address         `json:"asset"`
	Amount   decimal.Decimal `json:"amount"` // smallest unit of the asset
	DueAt    uint64          `json:"due_at"` // unix seconds, 0 means no expiry
	Paid     bool            `json:"paid"`
	Payer    Address         `json:"payer"`
	PaidAt   uint64          `json:"paid_at"`
}

// New builds an unpaid invoice after checking the amount
func New(id ID, merchant, asset Address, amount decimal.Decimal, dueAt uint64) (*Invoice, error) {
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	return &Invoice{
		ID:       id,
		Merchant: merchant,
		Asset:    asset,
		Amount:   amount,
		DueAt:    dueAt,
		Paid:     false,
		Payer:    ZeroAddress,
		PaidAt:   0,
	}, nil
}

// ExpiredAt reports whether the invoice can no longer be paid at the given unix time
func (i *Invoice) ExpiredAt(now uint64) bool {
	return i.DueAt != 0 && i.DueAt < now
}

// MarkPaid applies the only transition an invoice supports
func (i *Invoice) MarkPaid(payer Address, paidAt uint64) error {
	if i.Paid {
		return ErrAlreadyPaid{ID: i.ID}
	}
	i.Paid = true
	i.Payer = payer
	i.PaidAt = paidAt
	return nil
}

// ValidateAmount accepts whole, positive amounts that fit in 256 bits
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Truncate(0)) {
		return ErrInvalidAmount
	}
	if amount.GreaterThan(maxAmount) {
		return ErrInvalidAmount
	}
	return nil
}

// ParseAmount reads an integer amount in the asset's smallest unit
func ParseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if err := ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}
