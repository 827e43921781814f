// Package cli implements the tgrelay command line using cobra.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"tgrelay/internal/app"
)

var version = "dev"

// ErrNotOK is returned when a dispatch finished with a non-ok status.
// The outcome has already been printed.
var ErrNotOK = errors.New("dispatch failed")

type options struct {
	configPath string
	newApp     func(ctx context.Context, path string) (*app.App, error)
}

// NewRootCommand builds the command tree. opts are passed to app.New.
func NewRootCommand(opts ...app.Option) *cobra.Command {
	o := &options{
		newApp: func(ctx context.Context, path string) (*app.App, error) {
			return app.New(ctx, path, opts...)
		},
	}
	root := &cobra.Command{
		Use:           "tgrelay",
		Short:         "Send, replace and retract Telegram messages on behalf of automation hosts",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&o.configPath, "config", "c", "./tgrelay.yaml", "path to config (yaml or json)")

	root.AddCommand(
		newServeCmd(o),
		newDispatchCmd(o, "send"),
		newDispatchCmd(o, "delete"),
		newSlotsCmd(o),
		newAuditCmd(o),
	)
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		if !errors.Is(err, ErrNotOK) {
			fmt.Fprintln(stderr, "error:", err)
		}
		return 1
	}
	return 0
}

// withApp opens the app, runs fn and always closes it.
func (o *options) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := o.newApp(ctx, o.configPath)
	if err != nil {
		return err
	}
	runErr := fn(ctx, a)
	if err := a.Close(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "close:", err)
	}
	return runErr
}
