package views

import (
	"github.com/pterm/pterm"

	"github.com/hance08/keapay/internal/constants"
	"github.com/hance08/keapay/internal/store"
	"github.com/hance08/keapay/internal/ui"
	"github.com/hance08/keapay/internal/utils"
)

func RenderTransactionDetail(tx *store.Transaction) error {
	pterm.Println()
	ui.PrintL2Title("Transaction %s", tx.ID)

	infoData := pterm.TableData{
		{"Field", "Value"},
		{"Account", tx.AccountID},
		{"Kind", string(tx.Kind)},
		{"Amount", utils.FormatAmount(tx.Amount, tx.Asset)},
		{"Status", colorStatus(tx.Status)},
		{"Destination", orDash(store.StrVal(tx.Destination))},
		{"External Ref", orDash(store.StrVal(tx.ExternalRef))},
		{"Invoice", orDash(store.StrVal(tx.InvoiceID))},
		{"Pay URL", orDash(store.StrVal(tx.PayURL))},
		{"Created", tx.CreatedAt.Local().Format(constants.TimestampFormat)},
		{"Updated", tx.UpdatedAt.Local().Format(constants.TimestampFormat)},
	}

	return pterm.DefaultTable.
		WithHasHeader().
		WithHeaderStyle(pterm.NewStyle(pterm.FgGray)).
		WithData(infoData).
		Render()
}
