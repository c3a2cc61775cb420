package cli

import (
	"github.com/invoice-ledger/internal/domain/history"
	"github.com/invoice-ledger/internal/invoice_gateway/service"
	"github.com/invoice-ledger/internal/reconciliation"
)

// invoiceView is the serialized form of one invoice. Amounts are strings so
// yaml and json carry all 256 bits.
type invoiceView struct {
	ID       string `json:"id" yaml:"id"`
	Status   string `json:"status" yaml:"status"`
	Merchant string `json:"merchant,omitempty" yaml:"merchant,omitempty"`
	Asset    string `json:"asset,omitempty" yaml:"asset,omitempty"`
	Amount   string `json:"amount,omitempty" yaml:"amount,omitempty"`
	DueAt    uint64 `json:"due_at" yaml:"due_at"`
	Payer    string `json:"payer,omitempty" yaml:"payer,omitempty"`
	PaidAt   uint64 `json:"paid_at,omitempty" yaml:"paid_at,omitempty"`
}

type paymentView struct {
	InvoiceID string `json:"invoice_id" yaml:"invoice_id"`
	Payer     string `json:"payer" yaml:"payer"`
	Merchant  string `json:"merchant" yaml:"merchant"`
	Asset     string `json:"asset" yaml:"asset"`
	Amount    string `json:"amount" yaml:"amount"`
	PaidAt    uint64 `json:"paid_at" yaml:"paid_at"`
	Position  uint64 `json:"position" yaml:"position"`
	LogIndex  uint32 `json:"log_index" yaml:"log_index"`
	TxRef     string `json:"tx_ref" yaml:"tx_ref"`
}

type paymentEventView struct {
	Payment    paymentView   `json:"payment" yaml:"payment"`
	Duplicates []paymentView `json:"duplicates,omitempty" yaml:"duplicates,omitempty"`
}

func toInvoiceView(id string, v service.InvoiceView) invoiceView {
	out := invoiceView{ID: id, Status: string(v.Status)}
	if inv := v.Invoice; inv != nil {
		out.Merchant = inv.Merchant.String()
		out.Asset = inv.Asset.String()
		out.Amount = inv.Amount.String()
		out.DueAt = inv.DueAt
		if inv.Paid {
			out.Payer = inv.Payer.String()
			out.PaidAt = inv.PaidAt
		}
	}
	return out
}

func toPaymentView(rec history.PaymentRecord) paymentView {
	return paymentView{
		InvoiceID: rec.InvoiceID.Hex(),
		Payer:     rec.Payer.String(),
		Merchant:  rec.Merchant.String(),
		Asset:     rec.Asset.String(),
		Amount:    rec.Amount.String(),
		PaidAt:    rec.PaidAt,
		Position:  rec.Position,
		LogIndex:  rec.LogIndex,
		TxRef:     rec.TxRef,
	}
}

func toPaymentEventView(event *reconciliation.PaymentEvent) paymentEventView {
	out := paymentEventView{Payment: toPaymentView(event.Record)}
	for _, dup := range event.Duplicates {
		out.Duplicates = append(out.Duplicates, toPaymentView(dup))
	}
	return out
}
