package prompts

import (
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/charmbracelet/huh"

	"github.com/hance08/keapay/internal/validation"
)

// surveyOpts matches the survey question icon to the huh prompts.
var surveyOpts = []survey.AskOpt{
	survey.WithIcons(func(icons *survey.IconSet) {
		icons.Question.Text = "-"
	}),
}

// PromptConfirm prompts for yes/no confirmation
func PromptConfirm(message string, defaultValue bool) (bool, error) {
	confirm := defaultValue

	err := huh.NewConfirm().
		Title(message).
		Affirmative("Yes").
		Negative("No").
		Value(&confirm).
		Run()

	return confirm, err
}

// PromptDestination asks for the payout address when --to was not given.
func PromptDestination() (string, error) {
	var dest string

	err := survey.AskOne(&survey.Input{
		Message: "Destination address:",
		Help:    "Wallet address the withdrawal will be paid out to",
	}, &dest, append(surveyOpts, survey.WithValidator(validation.Survey(validation.Destination)))...)

	return strings.TrimSpace(dest), err
}
