package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/hance08/keapay/cmd/transaction"
	"github.com/hance08/keapay/internal/app"
	"github.com/hance08/keapay/internal/config"
	"github.com/hance08/keapay/internal/errhandler"
	"github.com/hance08/keapay/internal/logger"
	"github.com/hance08/keapay/internal/service"
	"github.com/hance08/keapay/internal/ui/prompts"
)

// annotationLogs marks commands that write structured logs instead of
// discarding them.
const annotationLogs = "keapay/logs"

var (
	cfgFile     string
	cfg         *config.Config
	application *app.App
	cleanup     func()
)

func Execute() {
	pterm.Error.Prefix = pterm.Prefix{
		Text:  " ERROR ",
		Style: pterm.NewStyle(pterm.BgLightRed, pterm.FgBlack),
	}

	err := newRootCmd().Execute()
	if cleanup != nil {
		cleanup()
	}
	if err != nil {
		errhandler.HandleError(err)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "keapay",
		Short: "keapay is a custodial balance ledger with Crypto Pay reconciliation",
		Long: `keapay keeps per-account balances for deposits and withdrawals and
reconciles Crypto Pay invoice_paid webhooks against pending deposits.

Run "keapay serve" to start the HTTP API, or use the other commands to
operate on the ledger directly.`,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "set the config file path")

	svc := func() *service.Service { return application.Service }

	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewBalanceCmd(svc))
	rootCmd.AddCommand(NewDepositCmd(svc))
	rootCmd.AddCommand(NewWithdrawCmd(svc))
	rootCmd.AddCommand(NewReconcileCmd(svc))
	rootCmd.AddCommand(NewInfoCmd())
	rootCmd.AddCommand(transaction.NewTransactionCmd(svc))

	return rootCmd
}

// setup loads configuration and opens the ledger before any subcommand runs.
func setup(cmd *cobra.Command, _ []string) error {
	created, err := initConfig()
	if err != nil {
		return err
	}

	if created && isatty.IsTerminal(os.Stdin.Fd()) {
		if err := initWizard(); err != nil {
			return err
		}
	}

	log := zap.NewNop()
	if cmd.Annotations[annotationLogs] == "true" {
		if log, err = logger.New(cfg.Log); err != nil {
			return err
		}
	}

	a, closeApp, err := app.NewApp(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	application = a
	cleanup = func() {
		closeApp()
		_ = log.Sync()
	}
	return nil
}

// initConfig reads the config file and KEAPAY_* overrides into cfg. It
// reports whether a default config file had to be written.
func initConfig() (bool, error) {
	config.SetDefaults(viper.GetViper())

	created := false
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		appDir, err := app.DataDir()
		if err != nil {
			return false, fmt.Errorf("error getting app dir: %w", err)
		}

		viper.AddConfigPath(appDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")

		if created, err = createDefaultConfig(appDir); err != nil {
			return false, fmt.Errorf("failed to ensure config file: %w", err)
		}
	}

	viper.SetEnvPrefix("KEAPAY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // allow using environment variables to override

	if err := viper.ReadInConfig(); err != nil {
		if cfgFile != "" {
			return false, fmt.Errorf("failed to read config file: %w", err)
		}

		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return false, fmt.Errorf("config file error: %w", err)
		}
	}

	cfg = config.NewDefault()
	if err := viper.Unmarshal(cfg); err != nil {
		return false, fmt.Errorf("unable to decode into struct, %v", err)
	}

	cfg.ConfigPath = viper.ConfigFileUsed()

	return created, nil
}

func initWizard() error {
	asset, err := prompts.PromptInitAsset(cfg.Defaults.Asset)
	if err != nil {
		return err
	}

	viper.Set("defaults.asset", asset)
	cfg.Defaults.Asset = asset

	if err := viper.WriteConfig(); err != nil {
		return fmt.Errorf("failed to save config to file: %w", err)
	}

	pterm.Success.Printf("Configuration saved. Default asset set to: %s\n", asset)
	return nil
}

func createDefaultConfig(appDir string) (bool, error) {
	if err := os.MkdirAll(appDir, 0755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath := filepath.Join(appDir, "config.yaml")

	if _, err := os.Stat(configPath); err == nil {
		return false, nil
	}

	if err := viper.WriteConfigAs(configPath); err != nil {
		return false, fmt.Errorf("failed to write config file: %w", err)
	}

	return true, nil
}
