package views

import (
	"fmt"

	"github.com/pterm/pterm"

	"github.com/hance08/keapay/internal/constants"
	"github.com/hance08/keapay/internal/store"
	"github.com/hance08/keapay/internal/utils"
)

type TransactionListView struct {
	Title string
}

func NewTransactionListView(title string) *TransactionListView {
	return &TransactionListView{Title: title}
}

func (v *TransactionListView) Render(txs []*store.Transaction) error {
	if len(txs) == 0 {
		pterm.Warning.Println("No transactions found")
		return nil
	}

	pterm.DefaultSection.Println(v.Title)

	tableData := pterm.TableData{
		{"ID", "Date", "Account", "Kind", "Amount", "Status", "Destination"},
	}
	for _, tx := range txs {
		tableData = append(tableData, []string{
			tx.ID,
			tx.CreatedAt.Local().Format(constants.DateTimeFormat),
			tx.AccountID,
			string(tx.Kind),
			signedAmount(tx.Kind, utils.FormatAmount(tx.Amount, tx.Asset)),
			colorStatus(tx.Status),
			orDash(store.StrVal(tx.Destination)),
		})
	}

	if err := pterm.DefaultTable.WithHasHeader().WithData(tableData).Render(); err != nil {
		return err
	}
	pterm.Info.Println(fmt.Sprintf("Total: %d transactions", len(txs)))
	return nil
}
