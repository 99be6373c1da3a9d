package config

import (
	"fmt"
	"path/filepath"
	"sort"
)

// ValidationError represents a cross-entry problem in a loaded test set
type ValidationError struct {
	Path    string
	Message string
}

// Error returns the error message
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Validate checks references between entries that single-entry parsing
// cannot see: generator binds must name a configured generator and two
// benchmarks must not write the same output file.
func Validate(ts *TestSet) []ValidationError {
	var errs []ValidationError

	for i, t := range ts.Tests {
		errs = append(errs, checkGeneratorBinds(ts, fmt.Sprintf("tests[%d]", i), t.GeneratorBinds)...)
	}

	outputs := make(map[string]int)
	for i, b := range ts.Benchmarks {
		path := fmt.Sprintf("benchmarks[%d]", i)
		errs = append(errs, checkGeneratorBinds(ts, path, b.GeneratorBinds)...)

		if b.OutputFile == "" {
			continue
		}
		file := filepath.Clean(b.OutputFile)
		if prev, ok := outputs[file]; ok {
			errs = append(errs, ValidationError{
				Path:    path + ".output_file",
				Message: fmt.Sprintf("%s is already written by benchmarks[%d]", b.OutputFile, prev),
			})
			continue
		}
		outputs[file] = i
	}

	return errs
}

func checkGeneratorBinds(ts *TestSet, path string, binds map[string]string) []ValidationError {
	variables := make([]string, 0, len(binds))
	for v := range binds {
		variables = append(variables, v)
	}
	sort.Strings(variables)

	var errs []ValidationError
	for _, variable := range variables {
		gen := binds[variable]
		if _, ok := ts.Config.Generators[gen]; !ok {
			errs = append(errs, ValidationError{
				Path:    fmt.Sprintf("%s.generator_binds.%s", path, variable),
				Message: fmt.Sprintf("generator not found: %s", gen),
			})
		}
	}
	return errs
}
