package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/hance08/keapay/internal/cryptopay"
	"github.com/hance08/keapay/internal/store"
	"github.com/hance08/keapay/internal/utils"
)

// Event is a parsed confirmation delivered by the payment processor.
type Event struct {
	UpdateType string
	Status     string
	Amount     string
	Asset      string
	// Payload is the correlation id: the external_ref of a pending deposit.
	Payload   string
	InvoiceID string
}

func EventFromUpdate(u *cryptopay.Update) Event {
	return Event{
		UpdateType: u.UpdateType,
		Status:     u.Payload.Status,
		Amount:     u.Payload.Amount.String(),
		Asset:      u.Payload.Asset,
		Payload:    u.Payload.Payload,
		InvoiceID:  u.Payload.InvoiceID.String(),
	}
}

type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeRejected  Outcome = "rejected"
)

// Reconciler applies processor events to the ledger exactly once. Any
// outcome returned with a nil error is durable and should be acknowledged;
// a non-nil error is transient and the sender should retry.
type Reconciler struct {
	ledger *LedgerService
	logger *zap.Logger
}

func NewReconciler(ledger *LedgerService, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{ledger: ledger, logger: logger}
}

func (r *Reconciler) Handle(ctx context.Context, ev Event) (Outcome, error) {
	log := r.logger.With(
		zap.String("update_type", ev.UpdateType),
		zap.String("external_ref", ev.Payload),
		zap.String("invoice_id", ev.InvoiceID),
	)

	if ev.UpdateType != cryptopay.UpdateInvoicePaid || ev.Status != cryptopay.StatusPaid {
		log.Info("event ignored: not a paid invoice",
			zap.String("status", ev.Status),
			zap.String("outcome", string(OutcomeIgnored)))
		return OutcomeIgnored, nil
	}
	if strings.TrimSpace(ev.Payload) == "" {
		log.Warn("event ignored: missing correlation id",
			zap.String("outcome", string(OutcomeIgnored)))
		return OutcomeIgnored, nil
	}
	amount, err := utils.ParseAmount(ev.Amount)
	if err != nil {
		log.Warn("event ignored: unparsable amount",
			zap.Int("amount_len", len(ev.Amount)),
			zap.Error(err),
			zap.String("outcome", string(OutcomeIgnored)))
		return OutcomeIgnored, nil
	}

	conf, err := r.ledger.ConfirmDeposit(ctx, ev.Payload, amount, ev.Asset)
	switch {
	case errors.Is(err, store.ErrNotFound):
		log.Warn("event ignored: no transaction for correlation id",
			zap.String("outcome", string(OutcomeIgnored)))
		return OutcomeIgnored, nil
	case err != nil && IsRetryable(err):
		log.Error("event not applied: storage failure", zap.Error(err))
		return "", err
	case err != nil:
		// Domain failures are final; retrying the same event cannot help.
		log.Warn("event ignored", zap.Error(err),
			zap.String("outcome", string(OutcomeIgnored)))
		return OutcomeIgnored, nil
	}

	var outcome Outcome
	switch {
	case conf.Result == Applied:
		outcome = OutcomeApplied
	case conf.Duplicate():
		outcome = OutcomeDuplicate
	case conf.Mismatch():
		outcome = OutcomeRejected
	default:
		outcome = OutcomeIgnored
	}

	fields := []zap.Field{
		zap.String("transaction_id", conf.Transaction.ID),
		zap.String("account_id", conf.Transaction.AccountID),
		zap.String("amount", ev.Amount),
		zap.String("asset", ev.Asset),
		zap.String("outcome", string(outcome)),
	}
	switch outcome {
	case OutcomeRejected:
		log.Warn("event rejected, transaction left pending",
			append(fields,
				zap.String("reason", conf.Reason),
				zap.String("recorded_amount", conf.Transaction.Amount.String()),
				zap.String("recorded_asset", conf.Transaction.Asset))...)
	case OutcomeApplied:
		log.Info("event applied", fields...)
	default:
		log.Info("event not applied", append(fields, zap.String("reason", conf.Reason))...)
	}
	return outcome, nil
}
