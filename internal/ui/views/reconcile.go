package views

import (
	"github.com/pterm/pterm"

	"github.com/hance08/keapay/internal/service"
)

func RenderOutcome(ev service.Event, outcome service.Outcome) {
	switch outcome {
	case service.OutcomeApplied:
		pterm.Success.Printf("Deposit %s credited (%s %s)\n", ev.Payload, ev.Amount, ev.Asset)
	case service.OutcomeDuplicate:
		pterm.Info.Printf("Deposit %s was already credited\n", ev.Payload)
	case service.OutcomeRejected:
		pterm.Warning.Printf("Event for %s rejected, transaction left pending\n", ev.Payload)
	default:
		pterm.Info.Printf("Event ignored (type %q, status %q)\n", ev.UpdateType, ev.Status)
	}
}
