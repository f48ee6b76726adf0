package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/gophsync/internal/client/api"
	"github.com/iudanet/gophsync/internal/client/engine"
	"github.com/iudanet/gophsync/internal/config"
	wire "github.com/iudanet/gophsync/pkg/api"
)

type statusView struct {
	Storage     string        `json:"storage"`
	Server      string        `json:"server"`
	Error       string        `json:"error,omitempty"`
	Pending     int           `json:"pending"`
	DeadLetters int           `json:"dead_letters"`
	Latency     time.Duration `json:"latency"`
	Fallback    bool          `json:"storage_fallback"`
	Reachable   bool          `json:"reachable"`
}

func (c *Cli) statusCmd() *cobra.Command {
	var (
		asJSON  bool
		offline bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queue size, dead letters and server reachability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withLocal(cmd.Context(), func(ctx context.Context, cfg *config.Config, local *engine.Local) error {
				view, err := collectStatus(ctx, cfg, local, !offline)
				if err != nil {
					return err
				}
				if asJSON {
					return c.writeJSON(view)
				}
				return statusTmpl.Execute(c.io, view)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().BoolVar(&offline, "offline", false, "skip the server ping")
	return cmd
}

func collectStatus(ctx context.Context, cfg *config.Config, local *engine.Local, probe bool) (statusView, error) {
	dead, err := local.Queue.DeadLetters(ctx)
	if err != nil {
		return statusView{}, err
	}

	view := statusView{
		Storage:     local.Backend.Scheme,
		Fallback:    local.Backend.Fallback,
		Pending:     local.Queue.Len(),
		DeadLetters: len(dead),
		Server:      cfg.Server.URL,
	}
	if !probe {
		view.Error = "not checked"
		return view, nil
	}

	client := api.NewClient(cfg.Server.URL, api.WithToken(cfg.Server.Token), api.WithTimeout(cfg.Server.Timeout))
	latency, err := client.Ping(ctx, wire.PathPing)
	if err != nil {
		view.Error = err.Error()
		return view, nil
	}
	view.Reachable = true
	view.Latency = latency.Round(time.Millisecond)
	return view, nil
}
