package views

import (
	"github.com/pterm/pterm"
	"github.com/shopspring/decimal"

	"github.com/hance08/keapay/internal/store"
	"github.com/hance08/keapay/internal/ui"
	"github.com/hance08/keapay/internal/utils"
)

func RenderBalance(accountID string, balance decimal.Decimal, asset string) {
	ui.PrintL1Title("Account %s", accountID)
	pterm.Printf("Balance: %s\n", pterm.Bold.Sprint(utils.FormatAmount(balance, asset)))
}

func RenderDepositCreated(tx *store.Transaction) {
	pterm.Success.Printf("Deposit %s created for %s (%s)\n",
		tx.ID, tx.AccountID, utils.FormatAmount(tx.Amount, tx.Asset))

	if url := store.StrVal(tx.PayURL); url != "" {
		pterm.Info.Printf("Pay here: %s\n", url)
		return
	}
	pterm.Info.Printf("No invoice attached. Confirm with reference %s\n", store.StrVal(tx.ExternalRef))
}

func RenderWithdrawCreated(tx *store.Transaction, balance decimal.Decimal) {
	pterm.Success.Printf("Withdrawal %s created, %s to %s\n",
		tx.ID, utils.FormatAmount(tx.Amount, tx.Asset), store.StrVal(tx.Destination))
	pterm.Info.Printf("New balance: %s\n", utils.FormatAmount(balance, tx.Asset))
}
