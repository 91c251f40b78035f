package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Database   DatabaseConfig  `mapstructure:"database"`
	Server     ServerConfig    `mapstructure:"server"`
	CryptoPay  CryptoPayConfig `mapstructure:"cryptopay"`
	Defaults   DefaultsConfig  `mapstructure:"defaults"`
	Log        LogConfig       `mapstructure:"log"`
	ConfigPath string          `mapstructure:"-"`
}

// DatabaseConfig selects the store backend. Path is used by sqlite, URL by
// postgres; memory needs neither.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// CryptoPayConfig configures the invoice client. An empty Token disables
// invoice creation.
type CryptoPayConfig struct {
	Token   string        `mapstructure:"token"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type DefaultsConfig struct {
	Asset string `mapstructure:"asset"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

func NewDefault() *Config {
	return &Config{
		Database: DatabaseConfig{Driver: DriverSQLite, Path: "", MaxConns: 10},
		Server: ServerConfig{
			Addr:            ":5000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		CryptoPay: CryptoPayConfig{
			BaseURL: "https://pay.crypt.bot/api",
			Timeout: 10 * time.Second,
		},
		Defaults: DefaultsConfig{Asset: "TON"},
		Log:      LogConfig{Level: "info", Format: "json"},
	}
}

// SetDefaults registers every key with v so that KEAPAY_* variables override
// keys missing from the config file, and a freshly written file lists them.
func SetDefaults(v *viper.Viper) {
	d := NewDefault()
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("database.url", d.Database.URL)
	v.SetDefault("database.max_conns", d.Database.MaxConns)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("cryptopay.token", d.CryptoPay.Token)
	v.SetDefault("cryptopay.base_url", d.CryptoPay.BaseURL)
	v.SetDefault("cryptopay.timeout", d.CryptoPay.Timeout)
	v.SetDefault("defaults.asset", d.Defaults.Asset)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}
