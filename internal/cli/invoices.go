package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/invoice-ledger/internal/domain/invoice"
	"github.com/invoice-ledger/internal/invoice_gateway/service"
	"github.com/spf13/cobra"
)

func newInvoicesCmd(open Opener, opts *globalOptions) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "invoices <merchant-address>",
		Short: "List every invoice a merchant created",
		Long:  "Scan creation history from genesis and join each invoice with its current state.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			merchant, err := invoice.ParseAddress(args[0])
			if err != nil {
				return fmt.Errorf("invalid merchant address %q: %w", args[0], err)
			}

			return withService(cmd, open, opts, func(ctx context.Context, svc service.InvoiceService) error {
				views, err := svc.ListMerchantInvoices(ctx, merchant)
				if err != nil {
					return fmt.Errorf("listing invoices: %w", err)
				}

				out := make([]invoiceView, 0, len(views))
				for _, v := range views {
					if status != "" && string(v.Status) != status {
						continue
					}
					out = append(out, toInvoiceView(v.Invoice.ID.Hex(), v))
				}

				return render(cmd, opts.output, out, func(w io.Writer) error {
					fmt.Fprintln(w, "ID\tSTATUS\tAMOUNT\tDUE AT\tPAYER")
					for _, v := range out {
						fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", v.ID, v.Status, v.Amount, v.DueAt, v.Payer)
					}
					return nil
				})
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Only show invoices in this status (PENDING, PAID, EXPIRED)")
	return cmd
}
