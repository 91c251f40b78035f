package store

import "errors"

var (
	ErrNotFound           = errors.New("record not found")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrConflict           = errors.New("duplicate external reference")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrNestedTx           = errors.New("store is already in a transaction")

	// Neither of these goes away on retry.
	ErrCorruptRecord       = errors.New("stored record is corrupt")
	ErrConstraintViolation = errors.New("record violates a storage constraint")
)
