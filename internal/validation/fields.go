// Package validation checks user supplied ledger fields. The same rules back
// the service layer and the interactive prompts.
package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/hance08/keapay/internal/constants"
)

func AccountID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("account id is required")
	}
	if len(id) > constants.MaxAccountIDLen {
		return fmt.Errorf("account id too long (max %d characters)", constants.MaxAccountIDLen)
	}
	if strings.IndexFunc(id, unicode.IsControl) >= 0 {
		return fmt.Errorf("account id contains control characters")
	}
	return nil
}

// Asset accepts tickers such as TON or USDT in either case.
func Asset(asset string) error {
	if asset == "" {
		return fmt.Errorf("asset is required")
	}
	if len(asset) > constants.MaxAssetLen {
		return fmt.Errorf("asset too long (max %d characters)", constants.MaxAssetLen)
	}
	for _, r := range asset {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return fmt.Errorf("asset %q must be letters and digits only", asset)
		}
	}
	return nil
}

func Destination(dest string) error {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return fmt.Errorf("destination is required")
	}
	if len(dest) > constants.MaxDestinationLen {
		return fmt.Errorf("destination too long (max %d characters)", constants.MaxDestinationLen)
	}
	if strings.IndexFunc(dest, unicode.IsSpace) >= 0 {
		return fmt.Errorf("destination must not contain whitespace")
	}
	return nil
}

// Survey adapts a string validator to the survey.Validator signature.
func Survey(fn func(string) error) func(any) error {
	return func(val any) error {
		s, ok := val.(string)
		if !ok {
			return fmt.Errorf("value must be a string")
		}
		return fn(s)
	}
}
