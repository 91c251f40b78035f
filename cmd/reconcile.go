package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hance08/keapay/internal/cryptopay"
	"github.com/hance08/keapay/internal/service"
	"github.com/hance08/keapay/internal/ui/views"
)

type reconcileRunner struct {
	svc *service.Service
}

func NewReconcileCmd(svc func() *service.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <event.json>",
		Short: "Replay a saved Crypto Pay webhook body",
		Long: `Feed a saved Crypto Pay webhook body through the same handler the
/webhook/crypto-bot endpoint uses. Use "-" to read from stdin.

Replaying an update that was already applied is safe; it is reported as a
duplicate and the balance is not credited again.`,
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{annotationLogs: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			runner := &reconcileRunner{svc: svc()}
			return runner.Run(cmd, args)
		},
	}
}

func (r *reconcileRunner) Run(cmd *cobra.Command, args []string) error {
	body, err := readEvent(args[0])
	if err != nil {
		return err
	}

	u, err := cryptopay.ParseUpdate(body)
	if err != nil {
		return fmt.Errorf("%s is not a crypto pay update: %w", args[0], err)
	}

	ev := service.EventFromUpdate(u)
	outcome, err := r.svc.Reconciler.Handle(cmd.Context(), ev)
	if err != nil {
		return err
	}

	views.RenderOutcome(ev, outcome)
	return nil
}

func readEvent(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read event: %w", err)
	}
	return body, nil
}
