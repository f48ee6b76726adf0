package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/gophsync/internal/client/engine"
	"github.com/iudanet/gophsync/internal/client/polling"
	"github.com/iudanet/gophsync/internal/client/syncmetrics"
	"github.com/iudanet/gophsync/internal/config"
	"github.com/iudanet/gophsync/internal/logging"
	"github.com/iudanet/gophsync/internal/models"
)

const shutdownTimeout = 10 * time.Second

type runOptions struct {
	forceMethod string
	watch       bool
}

func (c *Cli) runCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sync client until interrupted",
		Long: `Starts the connection monitor, the realtime channel and the sync coordinator.
Pending operations are delivered as connectivity allows. SIGINT or SIGTERM
stops the client gracefully; undelivered operations stay in the local store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return c.runClient(ctx, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.watch, "watch-config", true, "apply polling priority changes from the config file without restart")
	cmd.Flags().StringVar(&opts.forceMethod, "force-method", "",
		"pin the sync method for diagnostics: realtime, polling or offline")
	return cmd
}

func (c *Cli) runClient(ctx context.Context, opts runOptions) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	rec := syncmetrics.New()
	logger, err := logging.New(cfg.Logging, rec)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	e, err := engine.New(ctx, cfg, logger.Logger, rec)
	if err != nil {
		return err
	}

	if opts.forceMethod != "" {
		if err := e.Coordinator().ForceMethod(models.SyncMethod(opts.forceMethod)); err != nil {
			_ = e.Close(context.Background())
			return err
		}
	}

	if err := e.Start(ctx); err != nil {
		_ = e.Close(context.Background())
		return err
	}

	if opts.watch && c.cfgPath != "" {
		w, err := config.NewWatcher(c.cfgPath, c.envFile, logger.With("component", "config"))
		if err != nil {
			logger.Warn("Config watch disabled", "error", err)
		} else {
			go func() {
				_ = w.Run(ctx, func(next *config.Config) {
					e.Polling().SetEntityPriorities(entityPriorities(next.Polling.Entities))
				})
			}()
		}
	}

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	st := e.Status()
	if err := e.Close(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("Sync client stopped", "pending", st.Pending, "dropped", st.Metrics.Counters[syncmetrics.CounterDropped])
	return nil
}

// entityPriorities extracts the name to priority map from polled entities
func entityPriorities(entities []polling.EntityConfig) map[string]int {
	out := make(map[string]int, len(entities))
	for _, e := range entities {
		out[e.Name] = e.Priority
	}
	return out
}
