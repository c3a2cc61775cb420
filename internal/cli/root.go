// Package cli implements invoicectl, the operator's read-only view of the
// invoice ledger.
package cli

import (
	"context"
	"time"

	"github.com/invoice-ledger/internal/invoice_gateway/service"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

// Opener connects to the ledger's read stores. The returned func releases them.
type Opener func(ctx context.Context, configName string) (service.InvoiceService, func(), error)

type globalOptions struct {
	configName string
	output     string
	timeout    time.Duration
}

func newRootCmd(open Opener) *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "invoicectl",
		Short:         "Inspect invoices on the ledger",
		Long:          "invoicectl reconciles the ledger's history with current invoice state and reports invoice status.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return validateFormat(opts.output)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configName, "config", "invoicectl", "Config file base name, looked up as <name>.env in ./configs and .")
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", formatText, "Output format: text, json or yaml")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Deadline for the whole command")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newInvoicesCmd(open, opts))
	cmd.AddCommand(newPaymentCmd(open, opts))
	cmd.AddCommand(newStatusCmd(open, opts))
	return cmd
}

func Execute() error {
	return newRootCmd(openLedger).Execute()
}

// withService runs fn against an opened ledger under the command deadline
func withService(cmd *cobra.Command, open Opener, opts *globalOptions, fn func(ctx context.Context, svc service.InvoiceService) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	svc, closeFn, err := open(ctx, opts.configName)
	if err != nil {
		return err
	}
	defer closeFn()

	return fn(ctx, svc)
}
