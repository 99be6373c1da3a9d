package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/wesleyorama2/restbench/internal/benchmark"
	"github.com/wesleyorama2/restbench/internal/binding"
	"github.com/wesleyorama2/restbench/internal/generator"
	"github.com/wesleyorama2/restbench/internal/parsing"
	"github.com/wesleyorama2/restbench/internal/testcase"
	"gopkg.in/yaml.v3"
)

// DefaultName is used for test sets without a config name.
const DefaultName = "default"

// MaxImportDepth bounds nested import entries.
const MaxImportDepth = 8

var (
	// ErrNotList is returned when the document root is not a list.
	ErrNotList = errors.New("document must be a list of entries")
	// ErrUnknownEntry is returned for a top-level key the loader does not know.
	ErrUnknownEntry = errors.New("unknown entry")
	// ErrImportDepth is returned when imports nest deeper than MaxImportDepth.
	ErrImportDepth = errors.New("import depth exceeded")
	// ErrImportCycle is returned when a file imports itself, directly or not.
	ErrImportCycle = errors.New("import cycle")
)

// LoadError reports the document entry that could not be loaded.
type LoadError struct {
	File  string
	Entry int
	Key   string
	Err   error
}

func (e *LoadError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %v", e.File, e.Err)
	}
	return fmt.Sprintf("%s: entry %d (%s): %v", e.File, e.Entry, e.Key, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Config holds the settings shared by every test of a test set.
type Config struct {
	Timeout       time.Duration
	PrintBodies   bool
	VariableBinds map[string]interface{}
	Generators    map[string]binding.Generator
}

// TestSet is a loaded document: its settings, tests and benchmarks in
// declaration order.
type TestSet struct {
	Name       string
	Path       string
	Config     Config
	Tests      []*testcase.Test
	Benchmarks []*benchmark.Benchmark
}

// NewContext returns a binding context seeded with the set's variable
// binds and generators.
func (ts *TestSet) NewContext() (*binding.Context, error) {
	ctx := binding.NewContext()
	ctx.BindVariables(ts.Config.VariableBinds)
	for _, name := range sortedNames(ts.Config.Generators) {
		if err := ctx.AddGenerator(name, ts.Config.Generators[name]); err != nil {
			return nil, fmt.Errorf("generator %s: %w", name, err)
		}
	}
	return ctx, nil
}

// Option configures Load.
type Option func(*loader)

// WithGeneratorOptions passes options to every generator built from the
// document.
func WithGeneratorOptions(opts ...generator.Option) Option {
	return func(l *loader) { l.genOpts = append(l.genOpts, opts...) }
}

// WithBenchmarkOptions passes options to every benchmark parsed from the
// document.
func WithBenchmarkOptions(opts ...benchmark.Option) Option {
	return func(l *loader) { l.benchOpts = append(l.benchOpts, opts...) }
}

type loader struct {
	baseURL   string
	genOpts   []generator.Option
	benchOpts []benchmark.Option
	visiting  map[string]bool
}

// Load reads a test document from path. The format is chosen by extension:
// .json is JSON, anything else is YAML.
func Load(path, baseURL string, opts ...Option) (*TestSet, error) {
	l := &loader{baseURL: baseURL, visiting: make(map[string]bool)}
	for _, opt := range opts {
		opt(l)
	}
	return l.load(path, 0)
}

// Parse decodes a test document held in memory. path selects the format and
// anchors relative imports and schema files.
func Parse(data []byte, path, baseURL string, opts ...Option) (*TestSet, error) {
	l := &loader{baseURL: baseURL, visiting: make(map[string]bool)}
	for _, opt := range opts {
		opt(l)
	}
	if abs, err := filepath.Abs(path); err == nil {
		l.visiting[abs] = true
	}
	return l.parse(data, path, 0)
}

func (l *loader) load(path string, depth int) (*TestSet, error) {
	if depth > MaxImportDepth {
		return nil, &LoadError{File: path, Err: ErrImportDepth}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &LoadError{File: path, Err: err}
	}
	if l.visiting[abs] {
		return nil, &LoadError{File: path, Err: ErrImportCycle}
	}
	l.visiting[abs] = true
	defer delete(l.visiting, abs)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Err: fmt.Errorf("failed to read test file: %w", err)}
	}
	return l.parse(data, path, depth)
}

// Decode parses data as JSON or YAML depending on the extension of path.
func Decode(data []byte, path string) (interface{}, error) {
	var doc interface{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}
	return parsing.Normalize(doc), nil
}

func (l *loader) parse(data []byte, path string, depth int) (*TestSet, error) {
	doc, err := Decode(data, path)
	if err != nil {
		return nil, &LoadError{File: path, Err: err}
	}
	if doc == nil {
		return &TestSet{Name: DefaultName, Path: path}, nil
	}
	entries, ok := doc.([]interface{})
	if !ok {
		return nil, &LoadError{File: path, Err: fmt.Errorf("%w, got %T", ErrNotList, doc)}
	}

	ts := &TestSet{
		Name: DefaultName,
		Path: path,
		Config: Config{
			VariableBinds: make(map[string]interface{}),
			Generators:    make(map[string]binding.Generator),
		},
	}
	baseDir := filepath.Dir(path)

	for i, entry := range entries {
		m, ok := entry.(map[string]interface{})
		if !ok {
			return nil, &LoadError{File: path, Entry: i, Key: "?", Err: fmt.Errorf("%w: entry is %T", parsing.ErrNotMapping, entry)}
		}
		for _, rawKey := range sortedNames(m) {
			value := m[rawKey]
			key := strings.ToLower(rawKey)
			if err := l.apply(ts, key, value, baseDir, depth); err != nil {
				return nil, &LoadError{File: path, Entry: i, Key: key, Err: err}
			}
		}
	}
	return ts, nil
}

func (l *loader) apply(ts *TestSet, key string, value interface{}, baseDir string, depth int) error {
	switch key {
	case "config", "configuration":
		return l.applyConfig(ts, value)

	case "url":
		t := testcase.New()
		if err := testcase.ParseTest(l.baseURL, map[string]interface{}{"url": value}, t, baseDir); err != nil {
			return err
		}
		ts.Tests = append(ts.Tests, t)

	case "test":
		node, err := parsing.Node(value)
		if err != nil {
			return err
		}
		t := testcase.New()
		if err := testcase.ParseTest(l.baseURL, node, t, baseDir); err != nil {
			return err
		}
		ts.Tests = append(ts.Tests, t)

	case "benchmark":
		opts := append([]benchmark.Option{benchmark.WithBaseDir(baseDir)}, l.benchOpts...)
		b, err := benchmark.ParseBenchmark(l.baseURL, value, opts...)
		if err != nil {
			return err
		}
		ts.Benchmarks = append(ts.Benchmarks, b)

	case "import":
		file, err := parsing.String(value)
		if err != nil {
			return err
		}
		if !filepath.IsAbs(file) {
			file = filepath.Join(baseDir, file)
		}
		imported, err := l.load(file, depth+1)
		if err != nil {
			return err
		}
		ts.merge(imported)

	default:
		return fmt.Errorf("%w %q", ErrUnknownEntry, key)
	}
	return nil
}

func (l *loader) applyConfig(ts *TestSet, value interface{}) error {
	node, err := parsing.Node(value)
	if err != nil {
		return err
	}
	for _, key := range sortedNames(node) {
		v := node[key]
		switch key {
		case "testset", "name":
			if ts.Name, err = parsing.String(v); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		case "timeout":
			if ts.Config.Timeout, err = parsing.Duration(v); err != nil {
				return fmt.Errorf("timeout: %w", err)
			}
		case "print_bodies":
			if ts.Config.PrintBodies, err = parsing.Bool(v); err != nil {
				return fmt.Errorf("print_bodies: %w", err)
			}
		case "variable_binds":
			binds, err := parsing.FlattenDictionaries(v)
			if err != nil {
				return fmt.Errorf("variable_binds: %w", err)
			}
			for name, val := range binds {
				ts.Config.VariableBinds[name] = val
			}
		case "generators":
			gens, err := parsing.FlattenDictionaries(v)
			if err != nil {
				return fmt.Errorf("generators: %w", err)
			}
			for _, name := range sortedNames(gens) {
				gen, err := generator.Parse(gens[name], l.genOpts...)
				if err != nil {
					return fmt.Errorf("generator %s: %w", name, err)
				}
				ts.Config.Generators[name] = gen
			}
		}
	}
	return nil
}

// merge appends the tests and benchmarks of other. Variables and generators
// of other fill names ts does not define.
func (ts *TestSet) merge(other *TestSet) {
	ts.Tests = append(ts.Tests, other.Tests...)
	ts.Benchmarks = append(ts.Benchmarks, other.Benchmarks...)
	for name, v := range other.Config.VariableBinds {
		if _, ok := ts.Config.VariableBinds[name]; !ok {
			ts.Config.VariableBinds[name] = v
		}
	}
	for name, g := range other.Config.Generators {
		if _, ok := ts.Config.Generators[name]; !ok {
			ts.Config.Generators[name] = g
		}
	}
}

func sortedNames[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
