package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/idilsaglam/itemwatch/internal/cloud"
	"github.com/idilsaglam/itemwatch/internal/ui"
)

// Options tune the runner. Zero values mean the process defaults.
type Options struct {
	Stdout  io.Writer
	Stderr  io.Writer
	Version string

	// Database replaces the configured record database.
	Database cloud.Database
}

// usageError marks bad invocations; Run maps it to exit code 2.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

// Run dispatches subcommands and returns an exit code (0 ok, 1 error, 2 usage).
func Run(args []string, opt Options) int {
	if opt.Stdout == nil {
		opt.Stdout = os.Stdout
	}
	if opt.Stderr == nil {
		opt.Stderr = os.Stderr
	}
	if opt.Version == "" {
		opt.Version = "dev"
	}
	ui.SetOutput(opt.Stdout, opt.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(&opt)
	root.SetArgs(args)
	root.SetOut(opt.Stdout)
	root.SetErr(opt.Stderr)

	cmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return 0
	}
	ui.Fail(err.Error())
	var ue usageError
	if errors.As(err, &ue) {
		fmt.Fprintln(opt.Stderr)
		fmt.Fprint(opt.Stderr, cmd.UsageString())
		return 2
	}
	return 1
}

func newRootCmd(opt *Options) *cobra.Command {
	a := newApp(opt)
	root := &cobra.Command{
		Use:   "itemwatch",
		Short: "Watch the Item records of a cloud record store",
		Long: `itemwatch lists the Item records of a cloud record store.

Run without a subcommand to open the interactive list. The list is fetched
each time the terminal window gains focus.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usagef("unknown subcommand: %s", args[0])
			}
			return nil
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.watch(cmd.Context())
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{msg: err.Error()}
	})
	a.bindRootFlags(root)

	root.AddCommand(
		newWatchCmd(a),
		newListCmd(a),
		newServeCmd(a),
		newVersionCmd(a),
	)
	return root
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usagef("%s: unexpected argument %q", cmd.Name(), args[0])
	}
	return nil
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Open the interactive item list (default)",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.watch(cmd.Context())
		},
	}
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  noArgs,
		// Version needs no configuration.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "itemwatch "+a.opt.Version)
		},
	}
}
