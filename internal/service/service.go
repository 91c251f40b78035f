package service

import (
	"go.uber.org/zap"

	"github.com/hance08/keapay/internal/store"
)

type Config struct {
	DefaultAsset string
}

type Service struct {
	Ledger     *LedgerService
	Reconciler *Reconciler
}

type Option func(*options)

type options struct {
	logger   *zap.Logger
	invoices InvoiceCreator
}

// WithLogger sets the logger used by the ledger and the reconciler.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithInvoiceCreator enables CreateDepositInvoice.
func WithInvoiceCreator(ic InvoiceCreator) Option {
	return func(o *options) { o.invoices = ic }
}

func NewService(st store.Store, cfg Config, opts ...Option) *Service {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.DefaultAsset == "" {
		cfg.DefaultAsset = "TON"
	}

	ledger := NewLedgerService(st, cfg, o.logger, o.invoices)
	return &Service{
		Ledger:     ledger,
		Reconciler: NewReconciler(ledger, o.logger),
	}
}
