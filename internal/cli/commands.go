package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"tgrelay/internal/app"
	"tgrelay/internal/dispatch"
	"tgrelay/internal/request"
)

func newServeCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until SIGINT/SIGTERM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)
			return o.withApp(cmd, func(ctx context.Context, a *app.App) error {
				return a.Run(ctx)
			})
		},
	}
}

func newDispatchCmd(o *options, action string) *cobra.Command {
	var (
		pairs    []string
		jsonPath string
	)
	cmd := &cobra.Command{
		Use:     action,
		Short:   fmt.Sprintf("Run one %s dispatch in-process and print the outcome", action),
		Example: fmt.Sprintf("  tgrelay %s -a tg_chat_id=-100123 -a tg_state_key=status", action),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bag, err := buildBag(jsonPath, pairs)
			if err != nil {
				return err
			}
			return o.withApp(cmd, func(ctx context.Context, a *app.App) error {
				var out dispatch.Outcome
				if action == dispatch.ActionDelete {
					out = a.Pool().ExecuteDelete(ctx, bag)
				} else {
					out = a.Pool().ExecuteSend(ctx, bag)
				}
				if err := printJSON(cmd, out); err != nil {
					return err
				}
				if !out.OK() {
					return ErrNotOK
				}
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVarP(&pairs, "arg", "a", nil, "argument as key=value (repeatable)")
	cmd.Flags().StringVar(&jsonPath, "json", "", "JSON file holding the argument object; -a values override it")
	return cmd
}

func newSlotsCmd(o *options) *cobra.Command {
	var chatID int64
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "List tracked message slots for one chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.withApp(cmd, func(_ context.Context, a *app.App) error {
				slots := a.Registry().AllForChat(chatID)
				keys := make([]string, 0, len(slots))
				for k := range slots {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				w := cmd.OutOrStdout()
				for _, k := range keys {
					fmt.Fprintf(w, "%s\t%d\n", k, slots[k])
				}
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&chatID, "chat-id", 0, "chat id")
	_ = cmd.MarkFlagRequired("chat-id")
	return cmd
}

func newAuditCmd(o *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Print the newest audit entries as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.withApp(cmd, func(ctx context.Context, a *app.App) error {
				entries, err := a.Store().RecentAudit(ctx, limit)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				for _, e := range entries {
					if err := enc.Encode(e); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "max entries, 0 for all")
	return cmd
}

// buildBag merges the JSON file (if any) with key=value pairs. Pair values stay strings;
// the dispatch layer converts them.
func buildBag(jsonPath string, pairs []string) (request.Args, error) {
	raw := map[string]any{}
	if jsonPath != "" {
		b, err := os.ReadFile(jsonPath)
		if err != nil {
			return nil, err
		}
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%s: %w", jsonPath, err)
		}
		if raw == nil {
			return nil, fmt.Errorf("%s: expected a JSON object", jsonPath)
		}
	}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid -a %q, want key=value", p)
		}
		raw[strings.TrimSpace(k)] = v
	}
	return request.NewArgs(raw), nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
