package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hance08/keapay/internal/service"
	"github.com/hance08/keapay/internal/ui/views"
)

type balanceRunner struct {
	svc *service.Service
}

func NewBalanceCmd(svc func() *service.Service) *cobra.Command {
	return &cobra.Command{
		Use:     "balance <account>",
		Aliases: []string{"bal"},
		Short:   "Show the balance of an account",
		Long:    `Show the balance of an account. Unknown accounts have a balance of 0.`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner := &balanceRunner{svc: svc()}
			return runner.Run(cmd, args)
		},
	}
}

func (r *balanceRunner) Run(cmd *cobra.Command, args []string) error {
	balance, err := r.svc.Ledger.GetBalance(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	views.RenderBalance(args[0], balance, r.svc.Ledger.DefaultAsset())
	return nil
}
