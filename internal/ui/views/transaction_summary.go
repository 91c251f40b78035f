package views

import (
	"github.com/pterm/pterm"
	"github.com/shopspring/decimal"

	"github.com/hance08/keapay/internal/utils"
)

type WithdrawSummaryItem struct {
	AccountID   string
	Amount      decimal.Decimal
	Asset       string
	Destination string
	Balance     decimal.Decimal
}

// RenderWithdrawSummary shows what a withdrawal will do before it is
// confirmed.
func RenderWithdrawSummary(item WithdrawSummaryItem) error {
	pterm.DefaultSection.Println("Withdrawal Summary")

	after := item.Balance.Sub(item.Amount)
	tableData := pterm.TableData{
		{"Field", "Value"},
		{"Account", item.AccountID},
		{"Amount", utils.FormatAmount(item.Amount, item.Asset)},
		{"Destination", item.Destination},
		{"Balance", utils.FormatAmount(item.Balance, item.Asset)},
		{"Balance After", utils.FormatAmount(after, item.Asset)},
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(tableData).Render(); err != nil {
		return err
	}

	if after.IsNegative() {
		pterm.Warning.Println("Balance is not enough for this withdrawal")
	}
	return nil
}
