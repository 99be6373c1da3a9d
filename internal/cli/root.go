package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"pkt.systems/pslog"
)

var version = "0.1.0"

// ErrTestsFailed is returned by run when at least one test failed.
var ErrTestsFailed = errors.New("tests failed")

// NewRootCmd builds the restbench command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "restbench",
		Short:   "Configuration-driven REST API tests and micro-benchmarks",
		Version: version,
		Long: `restbench runs HTTP tests and micro-benchmarks described in YAML or JSON
test files. Tests check status codes, extract values and validate bodies;
benchmarks repeat a request, collect per-request metrics and reduce them to
statistics written as CSV or JSON.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := loggerFromFlags(cmd)
			if err != nil {
				return err
			}
			cmd.SetContext(pslog.ContextWithLogger(cmd.Context(), logger))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	addLoggingFlags(root.PersistentFlags())
	root.AddCommand(newRunCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newListCmd())
	return root
}

// Execute runs the root command with os.Args.
func Execute() error {
	return ExecuteContext(context.Background(), os.Args[1:])
}

// ExecuteContext runs the root command with args and reports errors on
// stderr. Failed tests are already reported by the run output.
func ExecuteContext(ctx context.Context, args []string) error {
	root := NewRootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, ErrTestsFailed) {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
	}
	return err
}
