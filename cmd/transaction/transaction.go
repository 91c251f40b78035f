package transaction

import (
	"github.com/spf13/cobra"

	"github.com/hance08/keapay/internal/service"
)

// NewTransactionCmd groups the commands that inspect and finalize ledger
// transactions. svc is resolved lazily, after the root command opened the
// store.
func NewTransactionCmd(svc func() *service.Service) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transaction",
		Aliases: []string{"tx"},
		Short:   "Manage transactions",
		Long:    "Manage transactions: list, view details, or finalize pending withdrawals.",
	}

	cmd.AddCommand(NewListCmd(svc))
	cmd.AddCommand(NewShowCmd(svc))
	cmd.AddCommand(NewCompleteCmd(svc))
	cmd.AddCommand(NewFailCmd(svc))

	return cmd
}
