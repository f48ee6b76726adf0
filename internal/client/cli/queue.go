package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iudanet/gophsync/internal/client/engine"
	"github.com/iudanet/gophsync/internal/config"
	"github.com/iudanet/gophsync/internal/models"
)

func (c *Cli) queueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and maintain the local operation queue",
		Long: `Works on the local store only, no network access. Do not run these commands
against a store that a running client holds open.`,
	}
	cmd.AddCommand(
		c.queueListCmd(),
		c.queueAddCmd(),
		c.queueRemoveCmd(),
		c.queueDeadCmd(),
		c.queueReplayCmd(),
		c.queueClearCmd(),
	)
	return cmd
}

func (c *Cli) queueListCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending operations in dispatch order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withLocal(cmd.Context(), func(ctx context.Context, _ *config.Config, local *engine.Local) error {
				ops := local.Queue.Pending()
				if asJSON {
					return c.writeJSON(ops)
				}
				return operationsTmpl.Execute(c.io, ops)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func (c *Cli) queueAddCmd() *cobra.Command {
	var (
		id, entity, action, payload, priority string
		maxRetries                            int
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Enqueue an operation",
		Example: `  gophsync queue add --entity products --action INSERT --payload '{"id":"p1","price":10}'
  gophsync queue add --entity products --action DELETE --payload '{"id":"p1"}' --priority high`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			act, err := models.ParseAction(action)
			if err != nil {
				return err
			}
			prio, err := models.ParsePriority(priority)
			if err != nil {
				return err
			}
			op := &models.Operation{
				ID:         id,
				Entity:     entity,
				Action:     act,
				Payload:    json.RawMessage(payload),
				Priority:   prio,
				MaxRetries: maxRetries,
			}

			return c.withLocal(cmd.Context(), func(ctx context.Context, _ *config.Config, local *engine.Local) error {
				queued, err := local.Queue.Add(ctx, op)
				if err != nil {
					return err
				}
				c.io.Printf("Queued operation %s (%s %s, %d pending)\n",
					queued.ID, queued.Action, queued.Entity, local.Queue.Len())
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&id, "id", "", "operation id (generated when empty)")
	flags.StringVar(&entity, "entity", "", "entity name")
	flags.StringVar(&action, "action", "", "INSERT, UPDATE or DELETE")
	flags.StringVar(&payload, "payload", "", "JSON payload")
	flags.StringVar(&priority, "priority", "normal", "critical, high, normal or low")
	flags.IntVar(&maxRetries, "max-retries", 0, "retry ceiling (0 uses the default)")
	_ = cmd.MarkFlagRequired("entity")
	_ = cmd.MarkFlagRequired("action")
	return cmd
}

func (c *Cli) queueRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a pending operation without sending it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withLocal(cmd.Context(), func(ctx context.Context, _ *config.Config, local *engine.Local) error {
				if err := local.Queue.Remove(ctx, args[0]); err != nil {
					return err
				}
				c.io.Printf("Removed operation %s\n", args[0])
				return nil
			})
		},
	}
}

func (c *Cli) queueDeadCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "dead",
		Short: "List operations that were dropped after failing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withLocal(cmd.Context(), func(ctx context.Context, _ *config.Config, local *engine.Local) error {
				dead, err := local.Queue.DeadLetters(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					return c.writeJSON(dead)
				}
				return deadLettersTmpl.Execute(c.io, dead)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func (c *Cli) queueReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <id>",
		Short: "Move a dead letter back into the queue with a fresh retry budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withLocal(cmd.Context(), func(ctx context.Context, _ *config.Config, local *engine.Local) error {
				op, err := local.Queue.Replay(ctx, args[0])
				if err != nil {
					return err
				}
				c.io.Printf("Replayed operation %s (%s %s)\n", op.ID, op.Action, op.Entity)
				return nil
			})
		},
	}
}

func (c *Cli) queueClearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop every pending operation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withLocal(cmd.Context(), func(ctx context.Context, _ *config.Config, local *engine.Local) error {
				n := local.Queue.Len()
				if n == 0 {
					c.io.Println("Queue is already empty.")
					return nil
				}
				if !yes {
					ok, err := c.confirm(fmt.Sprintf("Drop %d pending operation(s)? [y/N]: ", n))
					if err != nil {
						return err
					}
					if !ok {
						c.io.Println("Aborted.")
						return nil
					}
				}
				if err := local.Queue.Clear(ctx); err != nil {
					return err
				}
				c.io.Printf("Dropped %d operation(s)\n", n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func (c *Cli) confirm(prompt string) (bool, error) {
	answer, err := c.io.ReadInput(prompt)
	if err != nil {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func (c *Cli) writeJSON(v any) error {
	enc := json.NewEncoder(c.io)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
