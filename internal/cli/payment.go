package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/invoice-ledger/internal/domain/invoice"
	"github.com/invoice-ledger/internal/invoice_gateway/service"
	"github.com/spf13/cobra"
)

// ErrNoPayment is returned when history holds no payment for the invoice
var ErrNoPayment = errors.New("no payment recorded")

func newPaymentCmd(open Opener, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "payment <invoice-id>",
		Short: "Show the payment event of an invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := invoice.ParseID(args[0])
			if err != nil {
				return fmt.Errorf("invalid invoice id %q: %w", args[0], err)
			}

			return withService(cmd, open, opts, func(ctx context.Context, svc service.InvoiceService) error {
				event, err := svc.GetPaymentEvent(ctx, id)
				if err != nil {
					return fmt.Errorf("reading payment: %w", err)
				}
				if event == nil {
					return fmt.Errorf("%w for invoice %s", ErrNoPayment, id.Hex())
				}

				view := toPaymentEventView(event)
				return render(cmd, opts.output, view, func(w io.Writer) error {
					p := view.Payment
					fmt.Fprintf(w, "Invoice:\t%s\n", p.InvoiceID)
					fmt.Fprintf(w, "Payer:\t%s\n", p.Payer)
					fmt.Fprintf(w, "Merchant:\t%s\n", p.Merchant)
					fmt.Fprintf(w, "Amount:\t%s %s\n", p.Amount, p.Asset)
					fmt.Fprintf(w, "Paid at:\t%d\n", p.PaidAt)
					fmt.Fprintf(w, "Position:\t%d/%d\n", p.Position, p.LogIndex)
					fmt.Fprintf(w, "Tx ref:\t%s\n", p.TxRef)
					if n := len(view.Duplicates); n > 0 {
						fmt.Fprintf(w, "Duplicates:\t%d later record(s) ignored\n", n)
					}
					return nil
				})
			})
		},
	}
}
