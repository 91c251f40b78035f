package cmd

import (
	"errors"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/hance08/keapay/internal/service"
	"github.com/hance08/keapay/internal/ui/views"
	"github.com/hance08/keapay/internal/utils"
)

type depositFlags struct {
	Asset string
}

type depositRunner struct {
	svc   *service.Service
	flags *depositFlags
}

func NewDepositCmd(svc func() *service.Service) *cobra.Command {
	flags := &depositFlags{}

	cmd := &cobra.Command{
		Use:   "deposit <account> <amount>",
		Short: "Create a pending deposit",
		Long: `Create a pending deposit for an account.

When a Crypto Pay token is configured an invoice is opened as well and its
payment URL is printed. The balance is credited once the invoice is paid.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner := &depositRunner{svc: svc(), flags: flags}
			return runner.Run(cmd, args)
		},
	}

	cmd.Flags().StringVar(&flags.Asset, "asset", "", "asset code (defaults to defaults.asset)")

	return cmd
}

func (r *depositRunner) Run(cmd *cobra.Command, args []string) error {
	amount, err := utils.ParseAmount(args[1])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	ledger := r.svc.Ledger

	tx, err := ledger.CreateDepositInvoice(ctx, args[0], amount, r.flags.Asset)
	switch {
	case errors.Is(err, service.ErrNoInvoiceCreator):
		if tx, err = ledger.RequestDeposit(ctx, args[0], amount, r.flags.Asset); err != nil {
			return err
		}
	case errors.Is(err, service.ErrInvoiceUnavailable):
		pterm.Warning.Printf("Invoice could not be created: %v\n", err)
	case err != nil:
		return err
	}

	views.RenderDepositCreated(tx)
	return nil
}
