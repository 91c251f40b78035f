package transaction

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/hance08/keapay/internal/service"
	"github.com/hance08/keapay/internal/store"
	"github.com/hance08/keapay/internal/ui/prompts"
	"github.com/hance08/keapay/internal/ui/views"
)

type failFlags struct {
	Yes bool
}

type failRunner struct {
	svc   *service.Service
	flags *failFlags
}

func NewFailCmd(svc func() *service.Service) *cobra.Command {
	flags := &failFlags{}

	cmd := &cobra.Command{
		Use:   "fail <transaction-id>",
		Short: "Fail a pending transaction",
		Long: `Fail a pending transaction.

A failed withdrawal is refunded to its account. A failed deposit (expired or
abandoned invoice) never touched the balance and is only closed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner := &failRunner{svc: svc(), flags: flags}
			return runner.Run(cmd, args)
		},
	}

	cmd.Flags().BoolVarP(&flags.Yes, "yes", "y", false, "skip the confirmation prompt")

	return cmd
}

func (r *failRunner) Run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	ledger := r.svc.Ledger

	tx, err := ledger.GetTransaction(ctx, args[0])
	if err != nil {
		return err
	}
	if tx.Status != store.StatusPending {
		return fmt.Errorf("transaction %s is already %s", tx.ID, tx.Status)
	}

	if !r.flags.Yes {
		if err := views.RenderFailPreview(tx); err != nil {
			return err
		}

		ok, err := prompts.PromptConfirm(fmt.Sprintf("Fail this %s?", tx.Kind), false)
		if err != nil {
			return err
		}
		if !ok {
			pterm.Warning.Println("Operation Cancelled")
			return nil
		}
	}

	if tx.Kind == store.KindDeposit {
		tx, err = ledger.FailDeposit(ctx, store.StrVal(tx.ExternalRef))
	} else {
		tx, err = ledger.FailWithdraw(ctx, tx.ID)
	}
	if err != nil {
		return err
	}
	views.RenderFinalized(tx)
	return nil
}
