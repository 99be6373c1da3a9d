package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wesleyorama2/restbench/internal/config"
	lhttp "github.com/wesleyorama2/restbench/internal/http"
	"github.com/wesleyorama2/restbench/internal/output"
	"github.com/wesleyorama2/restbench/internal/runner"
)

// EnvPrefix prefixes the environment variables that back run flags, e.g.
// RESTBENCH_TIMEOUT or RESTBENCH_SKIP_BENCHMARKS.
const EnvPrefix = "RESTBENCH"

func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run <base-url> <test-file>",
		Short: "Run the tests and benchmarks of a test file",
		Long: `Run loads a YAML or JSON test file, executes its tests in order and then its
benchmarks. Relative test URLs are joined to base-url. Every flag can also be
set through an environment variable, e.g. RESTBENCH_TIMEOUT=5s.`,
		Args: cobra.ExactArgs(2),
		RunE: runE,
	}

	flags := runCmd.Flags()
	flags.Duration("timeout", 0, "Per-request timeout (overrides the test file)")
	flags.Bool("insecure", false, "Skip TLS verification")
	flags.StringArray("var", nil, "Bind a variable (key=value), overriding the test file")
	flags.Bool("no-color", false, "Disable colored output")
	flags.Bool("print-bodies", false, "Print response bodies")
	flags.Bool("skip-benchmarks", false, "Run tests only")
	flags.Bool("verbose", false, "Show aggregate errors")
	flags.StringP("format", "f", "text", "Report format: text|json|yaml|junit")
	flags.StringP("report-file", "o", "", "Write the report to a file instead of stdout")
	flags.String("output-dir", "", "Directory for relative benchmark output files")
	return runCmd
}

// runSettings is the merged view of flags and environment.
type runSettings struct {
	Timeout        time.Duration
	Insecure       bool
	Vars           []string
	NoColor        bool
	PrintBodies    bool
	SkipBenchmarks bool
	Verbose        bool
	Format         output.OutputFormat
	ReportFile     string
	OutputDir      string
}

func loadSettings(cmd *cobra.Command) (*runSettings, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	format, err := output.ParseFormat(v.GetString("format"))
	if err != nil {
		return nil, err
	}
	vars, _ := cmd.Flags().GetStringArray("var")
	return &runSettings{
		Timeout:        v.GetDuration("timeout"),
		Insecure:       v.GetBool("insecure"),
		Vars:           vars,
		NoColor:        v.GetBool("no-color"),
		PrintBodies:    v.GetBool("print-bodies"),
		SkipBenchmarks: v.GetBool("skip-benchmarks"),
		Verbose:        v.GetBool("verbose"),
		Format:         format,
		ReportFile:     v.GetString("report-file"),
		OutputDir:      v.GetString("output-dir"),
	}, nil
}

func parseVars(list []string) (map[string]interface{}, error) {
	vars := make(map[string]interface{}, len(list))
	for _, kv := range list {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("invalid --var %q (expected key=value)", kv)
		}
		vars[parts[0]] = parts[1]
	}
	return vars, nil
}

func runE(cmd *cobra.Command, args []string) error {
	baseURL, testFile := args[0], args[1]
	logger := loggerFromCmd(cmd)

	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	vars, err := parseVars(settings.Vars)
	if err != nil {
		return err
	}

	ts, err := config.Load(testFile, baseURL)
	if err != nil {
		return err
	}
	if errs := config.Validate(ts); len(errs) > 0 {
		for _, e := range errs {
			logger.Error("invalid test file", "file", testFile, "path", e.Path, "err", e.Message)
		}
		return fmt.Errorf("%s: %d validation errors", testFile, len(errs))
	}
	if ts.Config.VariableBinds == nil {
		ts.Config.VariableBinds = make(map[string]interface{})
	}
	for k, val := range vars {
		ts.Config.VariableBinds[k] = val
	}

	opts := []runner.Option{
		runner.WithLogger(logger),
		runner.WithPrintBodies(settings.PrintBodies),
		runner.WithSkipBenchmarks(settings.SkipBenchmarks),
		runner.WithOutputDir(settings.OutputDir),
	}
	if settings.Timeout > 0 {
		opts = append(opts, runner.WithTimeout(settings.Timeout))
	}
	if settings.Insecure {
		opts = append(opts, runner.WithClientOptions(lhttp.WithInsecureSkipVerify()))
	}

	stdout := cmd.OutOrStdout()
	if settings.Format == output.FormatText && settings.ReportFile == "" {
		opts = append(opts,
			runner.WithConsole(output.NewConsole(stdout, settings.NoColor, settings.Verbose)),
			runner.WithBenchmarkWriter(stdout),
		)
	}

	sum, err := runner.New(opts...).Run(cmd.Context(), ts)
	if err != nil {
		return err
	}

	if settings.ReportFile != "" {
		if err := writeReportFile(settings.ReportFile, &sum.Report, settings.Format); err != nil {
			return err
		}
		logger.Info("report written", "file", settings.ReportFile, "format", string(settings.Format))
	} else if settings.Format != output.FormatText {
		if err := output.WriteReport(stdout, &sum.Report, settings.Format); err != nil {
			return err
		}
	}

	if !sum.OK() {
		return fmt.Errorf("%w: %d of %d", ErrTestsFailed, sum.Failed(), len(sum.Tests))
	}
	return nil
}

func writeReportFile(path string, r *output.Report, format output.OutputFormat) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := output.WriteReport(f, r, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
