package transaction

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hance08/keapay/internal/service"
	"github.com/hance08/keapay/internal/store"
	"github.com/hance08/keapay/internal/ui/views"
)

type listFlags struct {
	Account string
	Status  string
	Pending bool
	Limit   int
}

type listRunner struct {
	svc   *service.Service
	flags *listFlags
}

func NewListCmd(svc func() *service.Service) *cobra.Command {
	flags := &listFlags{}

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls", "l"},
		Short:   "List recent transactions",
		Long: `List recent transactions, newest first.

With --pending, every pending transaction is listed oldest first, which is
the order an operator should work through them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner := &listRunner{svc: svc(), flags: flags}
			return runner.Run(cmd)
		},
	}

	cmd.Flags().StringVarP(&flags.Account, "account", "a", "", "Filter transactions by account")
	cmd.Flags().StringVarP(&flags.Status, "status", "s", "", "Filter by status (pending, completed, failed)")
	cmd.Flags().BoolVarP(&flags.Pending, "pending", "p", false, "List all pending transactions, oldest first")
	cmd.Flags().IntVarP(&flags.Limit, "limit", "l", store.DefaultListLimit, "Maximum number of transactions to display")

	return cmd
}

func (r *listRunner) Run(cmd *cobra.Command) error {
	ctx := cmd.Context()

	if r.flags.Pending {
		txs, err := r.svc.Ledger.ListPending(ctx, r.flags.Account)
		if err != nil {
			return fmt.Errorf("failed to get pending transactions: %w", err)
		}
		return views.NewTransactionListView("Pending transactions").Render(txs)
	}

	txs, err := r.svc.Ledger.ListTransactions(ctx, store.TransactionFilter{
		AccountID: r.flags.Account,
		Status:    store.Status(r.flags.Status),
		Limit:     r.flags.Limit,
	})
	if err != nil {
		return fmt.Errorf("failed to get transactions: %w", err)
	}

	title := fmt.Sprintf("Recent transactions (limit: %d)", r.flags.Limit)
	if r.flags.Account != "" {
		title = fmt.Sprintf("Recent transactions for %s (limit: %d)", r.flags.Account, r.flags.Limit)
	}
	return views.NewTransactionListView(title).Render(txs)
}
