package views

import (
	"github.com/pterm/pterm"

	"github.com/hance08/keapay/internal/store"
)

func colorStatus(s store.Status) string {
	switch s {
	case store.StatusCompleted:
		return pterm.Green(string(s))
	case store.StatusFailed:
		return pterm.Red(string(s))
	default:
		return pterm.Yellow(string(s))
	}
}

// signedAmount renders deposits as credits and withdrawals as debits.
func signedAmount(kind store.Kind, amount string) string {
	if kind == store.KindWithdraw {
		return pterm.Red("-" + amount)
	}
	return pterm.Green("+" + amount)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
