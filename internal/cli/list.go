package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/restbench/internal/generator"
	"github.com/wesleyorama2/restbench/internal/metrics"
	"github.com/wesleyorama2/restbench/internal/testcase"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "list [metrics|aggregates|generators|extractors]",
		Short:     "List the names a test file can use",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"metrics", "aggregates", "generators", "extractors"},
		RunE: func(cmd *cobra.Command, args []string) error {
			sections := []struct {
				name  string
				items []string
			}{
				{"metrics", metrics.StandardMetrics().Names()},
				{"aggregates", metrics.StandardAggregates().Names()},
				{"generators", generator.Types()},
				{"extractors", testcase.ExtractorTypes()},
			}

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				for _, s := range sections {
					if s.name == args[0] {
						fmt.Fprintln(out, strings.Join(s.items, "\n"))
						return nil
					}
				}
				return fmt.Errorf("unknown list %q", args[0])
			}
			for _, s := range sections {
				fmt.Fprintf(out, "%s:\n", s.name)
				for _, item := range s.items {
					fmt.Fprintf(out, "  %s\n", item)
				}
			}
			return nil
		},
	}
}
