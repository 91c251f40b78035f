package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/hance08/keapay/internal/service"
	"github.com/hance08/keapay/internal/ui/prompts"
	"github.com/hance08/keapay/internal/ui/views"
	"github.com/hance08/keapay/internal/utils"
)

type withdrawFlags struct {
	To    string
	Asset string
	Yes   bool
}

type withdrawRunner struct {
	svc   *service.Service
	flags *withdrawFlags
}

func NewWithdrawCmd(svc func() *service.Service) *cobra.Command {
	flags := &withdrawFlags{}

	cmd := &cobra.Command{
		Use:   "withdraw <account> <amount>",
		Short: "Debit an account and record a pending withdrawal",
		Long: `Debit an account and record a pending withdrawal to --to.

The debit happens immediately. Use "keapay tx complete" once the payout went
out, or "keapay tx fail" to refund it.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner := &withdrawRunner{svc: svc(), flags: flags}
			return runner.Run(cmd, args)
		},
	}

	cmd.Flags().StringVar(&flags.To, "to", "", "destination address")
	cmd.Flags().StringVar(&flags.Asset, "asset", "", "asset code (defaults to defaults.asset)")
	cmd.Flags().BoolVarP(&flags.Yes, "yes", "y", false, "skip the confirmation prompt")

	return cmd
}

func (r *withdrawRunner) Run(cmd *cobra.Command, args []string) error {
	accountID := args[0]
	amount, err := utils.ParseAmount(args[1])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	ledger := r.svc.Ledger

	dest := r.flags.To
	if dest == "" {
		if dest, err = prompts.PromptDestination(); err != nil {
			return err
		}
	}

	if !r.flags.Yes {
		balance, err := ledger.GetBalance(ctx, accountID)
		if err != nil {
			return err
		}
		asset := r.flags.Asset
		if asset == "" {
			asset = ledger.DefaultAsset()
		}
		if err := views.RenderWithdrawSummary(views.WithdrawSummaryItem{
			AccountID:   accountID,
			Amount:      amount,
			Asset:       asset,
			Destination: dest,
			Balance:     balance,
		}); err != nil {
			return err
		}

		ok, err := prompts.PromptConfirm("Create this withdrawal?", false)
		if err != nil {
			return err
		}
		if !ok {
			pterm.Warning.Println("Operation Cancelled")
			return nil
		}
	}

	res, err := ledger.RequestWithdraw(ctx, accountID, amount, r.flags.Asset, dest)
	if err != nil {
		return err
	}

	views.RenderWithdrawCreated(res.Transaction, res.Balance)
	return nil
}
