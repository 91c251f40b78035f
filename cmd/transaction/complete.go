package transaction

import (
	"github.com/spf13/cobra"

	"github.com/hance08/keapay/internal/service"
	"github.com/hance08/keapay/internal/ui/views"
)

type completeRunner struct {
	svc *service.Service
}

func NewCompleteCmd(svc func() *service.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <transaction-id>",
		Short: "Mark a pending withdrawal as paid out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner := &completeRunner{svc: svc()}
			return runner.Run(cmd, args)
		},
	}
}

func (r *completeRunner) Run(cmd *cobra.Command, args []string) error {
	tx, err := r.svc.Ledger.CompleteWithdraw(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	views.RenderFinalized(tx)
	return nil
}
