package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opal-lang/shprep/internal/pipeline"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "0.12.2"

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the command tree and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	flags := &globalFlags{}
	root := newRootCmd(flags)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := root.ExecuteContext(ctx)
	if err == nil {
		return pipeline.ExitSuccess
	}

	var exit *exitError
	if errors.As(err, &exit) {
		if !exit.reported {
			FormatError(stderr, exit.err, ShouldUseColor(flags.noColor))
		}
		return exit.code
	}
	FormatError(stderr, err, ShouldUseColor(flags.noColor))
	return pipeline.ExitInvalidUsage
}

// exitError carries the exit code of a failed command. reported is set when
// the failure was already logged and must not be printed twice.
type exitError struct {
	code     int
	err      error
	reported bool
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func newRootCmd(flags *globalFlags) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "shprep <input-script>",
		Short: "Rewrite shell script regions into calls to a parallelizing runtime",
		Long: `shprep parses a shell script, replaces the regions chosen by the selection
strategy with calls to an external runtime and writes the rewritten script.

Every replaced region is saved verbatim to its own temporary file; the
rewritten script binds that file to __jit_script_to_execute and sources the
runtime entrypoint in the current shell.`,
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreprocess(cmd, flags, args[0])
		},
	}

	flags.register(rootCmd)
	rootCmd.AddCommand(newBatchCmd(flags), newWatchCmd(flags), newVerifyCmd(flags))
	return rootCmd
}

func statusError(res pipeline.Result) error {
	if res.Status == pipeline.StatusSuccess {
		return nil
	}
	return &exitError{code: res.Status.ExitCode(), err: fmt.Errorf("%s: %w", res.Status, res.Err), reported: true}
}
