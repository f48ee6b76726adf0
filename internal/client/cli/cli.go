// Package cli implements the gophsync command line: the long running sync
// client, the reference server and offline queue maintenance commands.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iudanet/gophsync/internal/client/engine"
	"github.com/iudanet/gophsync/internal/client/iocli"
	"github.com/iudanet/gophsync/internal/config"
	"github.com/iudanet/gophsync/internal/logging"
)

// BuildInfo version information set via ldflags during build
type BuildInfo struct {
	Version   string
	BuildDate string
	GitCommit string
}

type Cli struct {
	io       iocli.IO
	build    BuildInfo
	cfgPath  string
	envFile  string
	logLevel string
}

func New(io iocli.IO, build BuildInfo) *Cli {
	return &Cli{io: io, build: build}
}

// Execute runs the command line and returns the process exit code
func Execute(build BuildInfo) int {
	c := New(iocli.NewStdio(), build)
	if err := c.Root().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// Root builds the command tree
func (c *Cli) Root() *cobra.Command {
	root := &cobra.Command{
		Use:   "gophsync",
		Short: "Offline-first sync client",
		Long: `gophsync keeps local mutations in a durable queue and delivers them to the
sync server when the network allows. Remote changes arrive over a realtime
channel, with adaptive polling as fallback.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.SetOut(c.io)
	root.SetErr(c.io)

	flags := root.PersistentFlags()
	flags.StringVarP(&c.cfgPath, "config", "c", "", "path to YAML config file")
	flags.StringVar(&c.envFile, "env-file", "", "path to .env file (default .env if present)")
	flags.StringVar(&c.logLevel, "log-level", "", "override log level: debug, info, warn, error")

	root.AddCommand(
		c.runCmd(),
		c.serveCmd(),
		c.queueCmd(),
		c.statusCmd(),
		c.versionCmd(),
	)
	return root
}

func (c *Cli) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.cfgPath, c.envFile)
	if err != nil {
		return nil, err
	}
	if c.logLevel != "" {
		if _, err := config.ParseLevel(c.logLevel); err != nil {
			return nil, err
		}
		cfg.Logging.Level = c.logLevel
	}
	return cfg, nil
}

// withLocal opens config, logger and the local queue, runs fn and closes everything
func (c *Cli) withLocal(ctx context.Context, fn func(ctx context.Context, cfg *config.Config, local *engine.Local) error) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging, nil)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	local, err := engine.OpenLocal(ctx, cfg, logger.Logger, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := local.Close(); err != nil {
			logger.Error("failed to close local store", "error", err)
		}
	}()

	return fn(ctx, cfg, local)
}
