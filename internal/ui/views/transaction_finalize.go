package views

import (
	"github.com/pterm/pterm"

	"github.com/hance08/keapay/internal/store"
	"github.com/hance08/keapay/internal/ui"
	"github.com/hance08/keapay/internal/utils"
)

func RenderFailPreview(tx *store.Transaction) error {
	pterm.Warning.Printf("About to fail %s %s:\n", tx.Kind, tx.ID)

	info := pterm.TableData{
		{"Account", tx.AccountID},
		{"Amount", utils.FormatAmount(tx.Amount, tx.Asset)},
		{"Destination", orDash(store.StrVal(tx.Destination))},
	}
	if err := pterm.DefaultTable.WithData(info).Render(); err != nil {
		return err
	}
	if tx.Kind == store.KindWithdraw {
		pterm.Warning.Println("The amount will be refunded to the account. This cannot be undone!")
	} else {
		pterm.Warning.Println("A later payment for this deposit will no longer be credited!")
	}
	return nil
}

func RenderFinalized(tx *store.Transaction) {
	switch {
	case tx.Status == store.StatusFailed && tx.Kind == store.KindWithdraw:
		pterm.Success.Printf("Withdrawal %s failed, %s refunded to %s\n",
			tx.ID, utils.FormatAmount(tx.Amount, tx.Asset), tx.AccountID)
	default:
		pterm.Success.Printf("Transaction %s (%s) marked %s\n", tx.ID, tx.Kind, tx.Status)
	}
	ui.Separator()
}
