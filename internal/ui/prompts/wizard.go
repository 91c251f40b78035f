package prompts

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"
)

// PromptInitAsset runs on first start to pick the asset used when requests
// leave it out.
func PromptInitAsset(currDefault string) (string, error) {
	selection := currDefault

	err := huh.NewSelect[string]().
		Title("Welcome to keapay! This is the first run, please set the default asset:").
		Description("Deposits and withdrawals that do not name an asset will use it").
		Options(
			huh.NewOption("TON", "TON"),
			huh.NewOption("USDT", "USDT"),
			huh.NewOption("BTC", "BTC"),
			huh.NewOption("ETH", "ETH"),
			huh.NewOption("Other", "Other"),
		).
		Value(&selection).
		Run()
	if err != nil {
		return "", err
	}

	if selection != "Other" {
		return selection, nil
	}

	var customInput string
	err = huh.NewInput().
		Title("Please enter the asset code:").
		Description("Use the ticker Crypto Pay expects, e.g. TRX or LTC.").
		Value(&customInput).
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("asset code is required")
			}
			return nil
		}).
		Run()
	if err != nil {
		return "", err
	}

	return strings.ToUpper(strings.TrimSpace(customInput)), nil
}
