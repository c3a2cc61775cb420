package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/invoice-ledger/internal/domain/invoice"
	"github.com/invoice-ledger/internal/invoice_gateway/service"
	"github.com/spf13/cobra"
)

func newStatusCmd(open Opener, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <invoice-id>",
		Short: "Show the current status of an invoice",
		Long:  "Read the invoice and classify it as PENDING, PAID, EXPIRED or NOT_FOUND.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := invoice.ParseID(args[0])
			if err != nil {
				return fmt.Errorf("invalid invoice id %q: %w", args[0], err)
			}

			return withService(cmd, open, opts, func(ctx context.Context, svc service.InvoiceService) error {
				v, err := svc.GetInvoice(ctx, id)
				if err != nil {
					return fmt.Errorf("reading invoice: %w", err)
				}

				view := toInvoiceView(id.Hex(), *v)
				return render(cmd, opts.output, view, func(w io.Writer) error {
					fmt.Fprintf(w, "Invoice:\t%s\n", view.ID)
					fmt.Fprintf(w, "Status:\t%s\n", view.Status)
					if v.Invoice == nil {
						return nil
					}
					fmt.Fprintf(w, "Merchant:\t%s\n", view.Merchant)
					fmt.Fprintf(w, "Amount:\t%s %s\n", view.Amount, view.Asset)
					fmt.Fprintf(w, "Due at:\t%d\n", view.DueAt)
					if view.Payer != "" {
						fmt.Fprintf(w, "Payer:\t%s\n", view.Payer)
					}
					return nil
				})
			})
		},
	}
}
