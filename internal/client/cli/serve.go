package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iudanet/gophsync/internal/logging"
	"github.com/iudanet/gophsync/internal/server"
	"github.com/iudanet/gophsync/internal/server/storage/sqlite"
)

func (c *Cli) serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reference sync server",
		Long: `Serves the operation, record, health and realtime endpoints the client
talks to, backed by a SQLite database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return c.runServer(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides serve.addr)")
	return cmd
}

func (c *Cli) runServer(ctx context.Context, addr string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Serve.Addr = addr
	}

	logger, err := logging.New(cfg.Logging, nil)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	store, err := sqlite.New(ctx, cfg.Serve.DSN, logger.With("component", "storage"))
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close server storage", "error", err)
		}
	}()

	srv := server.New(cfg.Serve, store, logger.Logger, c.build.Version)
	return srv.Run(ctx)
}
