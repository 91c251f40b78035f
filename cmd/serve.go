package cmd

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/hance08/keapay/internal/httpapi"
)

type serveFlags struct {
	Addr string
}

type serveRunner struct {
	flags *serveFlags
}

func NewServeCmd() *cobra.Command {
	flags := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and webhook receiver",
		Long: `Start the HTTP API (deposit, withdraw, balance, pending transactions)
and the Crypto Pay webhook endpoint at /webhook/crypto-bot.

The server shuts down gracefully on SIGINT or SIGTERM.`,
		Annotations: map[string]string{annotationLogs: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			runner := &serveRunner{flags: flags}
			return runner.Run(cmd)
		},
	}

	cmd.Flags().StringVarP(&flags.Addr, "addr", "a", "", "listen address (overrides server.addr)")

	return cmd
}

func (r *serveRunner) Run(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := cfg.Server.Addr
	if r.flags.Addr != "" {
		addr = r.flags.Addr
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	log := application.Logger
	handler := httpapi.NewRouter(httpapi.NewHandler(application.Service, log), log, cfg.Server.WriteTimeout)

	pterm.Info.Printf("keapay listening on %s (driver %s)\n", ln.Addr(), cfg.Database.Driver)

	return httpapi.Serve(ctx, ln, handler, httpapi.ServerConfig{
		Addr:            addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, log)
}
