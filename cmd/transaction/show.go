package transaction

import (
	"github.com/spf13/cobra"

	"github.com/hance08/keapay/internal/service"
	"github.com/hance08/keapay/internal/ui/views"
)

type showRunner struct {
	svc *service.Service
}

func NewShowCmd(svc func() *service.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "show <transaction-id>",
		Short: "Show transaction details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner := &showRunner{svc: svc()}
			return runner.Run(cmd, args)
		},
	}
}

func (r *showRunner) Run(cmd *cobra.Command, args []string) error {
	tx, err := r.svc.Ledger.GetTransaction(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return views.RenderTransactionDetail(tx)
}
