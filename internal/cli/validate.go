package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/restbench/internal/config"
	"github.com/wesleyorama2/restbench/internal/output"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <test-file>...",
		Short: "Check test files without sending requests",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			logger := loggerFromCmd(cmd)
			noColor := !output.UseColor(out, false)
			invalid := 0
			for _, path := range args {
				ts, err := config.Load(path, "http://localhost")
				if err != nil {
					invalid++
					fmt.Fprintf(out, "%s %s: %v\n", output.ErrorIcon(noColor), path, err)
					continue
				}
				errs := config.Validate(ts)
				if len(errs) > 0 {
					invalid++
					fmt.Fprintf(out, "%s %s: %d problems\n", output.ErrorIcon(noColor), path, len(errs))
					for _, e := range errs {
						fmt.Fprintf(out, "    %s\n", e.Error())
					}
					continue
				}
				logger.Debug("test file valid", "file", path, "tests", len(ts.Tests), "benchmarks", len(ts.Benchmarks))
				fmt.Fprintf(out, "%s %s: %d tests, %d benchmarks\n", output.SuccessIcon(noColor), path, len(ts.Tests), len(ts.Benchmarks))
			}
			if invalid > 0 {
				return fmt.Errorf("%d of %d test files invalid", invalid, len(args))
			}
			return nil
		},
	}
	return cmd
}
