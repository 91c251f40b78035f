package service

import (
	"errors"

	"github.com/hance08/keapay/internal/store"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvoiceUnavailable = errors.New("invoice creation failed")
	ErrNoInvoiceCreator   = errors.New("no invoice creator configured")
)

// IsRetryable reports whether err is a transient storage failure that the
// caller may retry as-is.
func IsRetryable(err error) bool {
	return errors.Is(err, store.ErrStorageUnavailable)
}
