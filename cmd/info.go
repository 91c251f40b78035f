package cmd

import (
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"github.com/hance08/keapay/internal/app"
	"github.com/hance08/keapay/internal/config"
	"github.com/hance08/keapay/internal/ui/views"
)

type infoRunner struct {
	cfg *config.Config
}

func NewInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Display application information",
		Long:  `Display current configuration, database location, and system details.`,
		// info only reads configuration and must not create the database.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := initConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			runner := &infoRunner{cfg: cfg}
			return runner.Run()
		},
	}
}

func (r *infoRunner) Run() error {
	configPath := r.cfg.ConfigPath
	if configPath == "" {
		configPath = "(None, using defaults)"
	}

	item := views.SystemInfoItem{
		ConfigPath:   configPath,
		Driver:       r.cfg.Database.Driver,
		DefaultAsset: r.cfg.Defaults.Asset,
		InvoicesOn:   r.cfg.CryptoPay.Token != "",
		ServerAddr:   r.cfg.Server.Addr,
		AppDataDir:   appDataDirOrUnknown(),
	}

	switch r.cfg.Database.Driver {
	case config.DriverPostgres:
		item.DBLocation = redactURL(r.cfg.Database.URL)
		item.DBExists = true
	case config.DriverMemory:
		item.DBLocation = "(in memory, not persisted)"
		item.DBExists = true
	default:
		path, err := app.DatabasePath(r.cfg.Database)
		if err != nil {
			return err
		}
		item.DBLocation = path
		if _, err := os.Stat(path); err == nil {
			item.DBExists = true
		}
	}

	return views.RenderSystemInfo(item)
}

func appDataDirOrUnknown() string {
	dir, err := app.DataDir()
	if err != nil {
		return "Unknown"
	}
	return dir
}

// redactURL hides the password of a postgres connection string.
func redactURL(raw string) string {
	pc, err := pgx.ParseConfig(raw)
	if err != nil {
		return "(invalid url)"
	}
	return fmt.Sprintf("postgres://%s@%s:%d/%s", pc.User, pc.Host, pc.Port, pc.Database)
}
