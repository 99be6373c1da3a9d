package testcase

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jmespath/go-jmespath"
	lhttp "github.com/wesleyorama2/restbench/internal/http"
	"github.com/wesleyorama2/restbench/internal/parsing"
	"github.com/wesleyorama2/restbench/pkg/jsonpath"
)

// ErrExtractFailed is returned when an extractor cannot produce a value.
var ErrExtractFailed = errors.New("extraction failed")

// Extractor pulls a value out of a completed exchange.
type Extractor interface {
	Extract(x *lhttp.Exchange) (interface{}, error)
	String() string
}

// ExtractorFactory builds an extractor from its configured query.
type ExtractorFactory func(query string) (Extractor, error)

var extractors = map[string]ExtractorFactory{
	"jsonpath_mini": newJSONPathExtractor,
	"jsonpath":      newJSONPathExtractor,
	"jmespath":      newJMESPathExtractor,
	"header":        newHeaderExtractor,
	"raw_body":      func(string) (Extractor, error) { return rawBodyExtractor{}, nil },
}

// ExtractorTypes returns the recognised extractor keys in sorted order.
func ExtractorTypes() []string {
	out := make([]string, 0, len(extractors))
	for k := range extractors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ParseExtractor builds an extractor from a single-key mapping such as
// {jsonpath_mini: "id"}.
func ParseExtractor(node interface{}) (Extractor, error) {
	cfg, err := parsing.Node(node)
	if err != nil {
		return nil, err
	}
	ext, _, err := extractorFrom(cfg)
	if err != nil {
		return nil, err
	}
	if ext == nil {
		return nil, fmt.Errorf("no extractor in %v (expected one of %s)", keys(cfg), strings.Join(ExtractorTypes(), ", "))
	}
	return ext, nil
}

// extractorFrom finds the extractor key in cfg. It returns the key used so
// callers can ignore it when reading their other options.
func extractorFrom(cfg map[string]interface{}) (Extractor, string, error) {
	var found []string
	for k := range cfg {
		if _, ok := extractors[k]; ok {
			found = append(found, k)
		}
	}
	switch len(found) {
	case 0:
		return nil, "", nil
	case 1:
	default:
		sort.Strings(found)
		return nil, "", fmt.Errorf("multiple extractors configured: %s", strings.Join(found, ", "))
	}

	key := found[0]
	query := ""
	if cfg[key] != nil {
		s, err := parsing.String(cfg[key])
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", key, err)
		}
		query = s
	}
	ext, err := extractors[key](query)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", key, err)
	}
	return ext, key, nil
}

type jsonPathExtractor struct {
	path string
}

func newJSONPathExtractor(query string) (Extractor, error) {
	if query == "" {
		return nil, errors.New("empty path")
	}
	return jsonPathExtractor{path: query}, nil
}

func (e jsonPathExtractor) Extract(x *lhttp.Exchange) (interface{}, error) {
	v, err := jsonpath.Extract(x.Body, e.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractFailed, err)
	}
	return v, nil
}

func (e jsonPathExtractor) String() string { return "jsonpath_mini " + e.path }

type jmesPathExtractor struct {
	expr  string
	query *jmespath.JMESPath
}

func newJMESPathExtractor(query string) (Extractor, error) {
	compiled, err := jmespath.Compile(query)
	if err != nil {
		return nil, err
	}
	return jmesPathExtractor{expr: query, query: compiled}, nil
}

func (e jmesPathExtractor) Extract(x *lhttp.Exchange) (interface{}, error) {
	var data interface{}
	if err := x.DecodeJSON(&data); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON body: %v", ErrExtractFailed, err)
	}
	v, err := e.query.Search(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractFailed, err)
	}
	if v == nil {
		return nil, fmt.Errorf("%w: %s matched nothing", ErrExtractFailed, e.expr)
	}
	return v, nil
}

func (e jmesPathExtractor) String() string { return "jmespath " + e.expr }

type headerExtractor struct {
	name string
}

func newHeaderExtractor(query string) (Extractor, error) {
	if query == "" {
		return nil, errors.New("empty header name")
	}
	return headerExtractor{name: query}, nil
}

func (e headerExtractor) Extract(x *lhttp.Exchange) (interface{}, error) {
	values := x.Headers.Values(e.name)
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: header %s not present", ErrExtractFailed, e.name)
	}
	return values[0], nil
}

func (e headerExtractor) String() string { return "header " + e.name }

type rawBodyExtractor struct{}

func (rawBodyExtractor) Extract(x *lhttp.Exchange) (interface{}, error) {
	return string(x.Body), nil
}

func (rawBodyExtractor) String() string { return "raw_body" }

func keys(m map[string]interface{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
