package utils

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hance08/keapay/internal/constants"
)

var ErrAmountOutOfRange = errors.New("amount out of range")

// ParseAmount parses a user supplied amount such as "150", "150.5" or
// "0.000000001" without going through float64. Amounts that the ledger
// cannot store exactly are rejected with ErrAmountOutOfRange.
func ParseAmount(amountStr string) (decimal.Decimal, error) {
	s := strings.TrimSpace(amountStr)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount is required")
	}
	if len(s) > constants.MaxAmountInputLen {
		return decimal.Zero, fmt.Errorf("%w: more than %d characters", ErrAmountOutOfRange, constants.MaxAmountInputLen)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount: %s", amountStr)
	}
	if err := CheckAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// CheckAmount reports whether |d| has at most MaxAmountScale fractional
// digits and MaxAmountIntDigits integer digits. It only inspects the
// coefficient and exponent, so huge exponents are rejected without being
// expanded.
func CheckAmount(d decimal.Decimal) error {
	coef := new(big.Int).Abs(d.Coefficient())
	if coef.Sign() == 0 {
		return nil
	}
	// A coefficient wider than 128 bits has more than 38 significant digits.
	if coef.BitLen() > 128 {
		return fmt.Errorf("%w: too many significant digits", ErrAmountOutOfRange)
	}

	exp := int64(d.Exponent())
	ten := big.NewInt(10)
	rem := new(big.Int)
	for exp < 0 {
		q, r := new(big.Int).QuoRem(coef, ten, rem)
		if r.Sign() != 0 {
			break
		}
		coef = q
		exp++
	}

	if exp < -constants.MaxAmountScale {
		return fmt.Errorf("%w: more than %d decimal places", ErrAmountOutOfRange, constants.MaxAmountScale)
	}
	if int64(len(coef.String()))+exp > constants.MaxAmountIntDigits {
		return fmt.Errorf("%w: more than %d integer digits", ErrAmountOutOfRange, constants.MaxAmountIntDigits)
	}
	return nil
}

// FormatAmount renders d with its asset, e.g. "10.5 TON".
func FormatAmount(d decimal.Decimal, asset string) string {
	if asset == "" {
		return d.String()
	}
	return d.String() + " " + asset
}
