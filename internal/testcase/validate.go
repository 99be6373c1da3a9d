package testcase

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"

	"github.com/wesleyorama2/restbench/internal/binding"
	lhttp "github.com/wesleyorama2/restbench/internal/http"
	"github.com/wesleyorama2/restbench/internal/parsing"
	"github.com/wesleyorama2/restbench/internal/template"
	"github.com/wesleyorama2/restbench/pkg/jsonschema"
)

// Failure describes one failed check of a test run.
type Failure struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (f Failure) Error() string {
	return f.Type + ": " + f.Message
}

// Validator checks a completed exchange. A nil return means the check passed.
type Validator interface {
	Validate(x *lhttp.Exchange, ctx *binding.Context) *Failure
}

// ValidatorParser builds a validator from its configuration node. baseDir is
// used to resolve file references.
type ValidatorParser func(cfg map[string]interface{}, baseDir string) (Validator, error)

var validators = map[string]ValidatorParser{
	"compare":      parseCompare,
	"assertequal":  parseCompare,
	"extract_test": parseExtractTest,
	"json_schema":  parseJSONSchema,
}

// ParseValidator builds a validator from a single-key mapping such as
// {compare: {jsonpath_mini: "id", comparator: eq, expected: 3}}.
func ParseValidator(node interface{}, baseDir string) (Validator, error) {
	cfg, err := parsing.Node(node)
	if err != nil {
		return nil, err
	}
	if len(cfg) != 1 {
		return nil, fmt.Errorf("validator must have exactly one type, got %v", keys(cfg))
	}
	for name, body := range cfg {
		parse, ok := validators[name]
		if !ok {
			return nil, fmt.Errorf("unknown validator %q", name)
		}
		inner, err := parsing.Node(body)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		v, err := parse(inner, baseDir)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return v, nil
	}
	return nil, errors.New("empty validator")
}

// Comparator compares an extracted value with an expected one.
type Comparator func(actual, expected interface{}) (bool, error)

var comparators = map[string]Comparator{
	"eq":           func(a, e interface{}) (bool, error) { return looseEqual(a, e), nil },
	"ne":           func(a, e interface{}) (bool, error) { return !looseEqual(a, e), nil },
	"lt":           numeric(func(a, e float64) bool { return a < e }),
	"le":           numeric(func(a, e float64) bool { return a <= e }),
	"gt":           numeric(func(a, e float64) bool { return a > e }),
	"ge":           numeric(func(a, e float64) bool { return a >= e }),
	"contains":     func(a, e interface{}) (bool, error) { return contains(a, e), nil },
	"contained_by": func(a, e interface{}) (bool, error) { return contains(e, a), nil },
	"count_eq":     countEqual,
	"regex":        matchRegex,
	"type":         matchType,
}

var comparatorAliases = map[string]string{
	"equals":                "eq",
	"str_eq":                "eq",
	"==":                    "eq",
	"=":                     "eq",
	"!=":                    "ne",
	"<>":                    "ne",
	"not_equals":            "ne",
	"<":                     "lt",
	"less_than":             "lt",
	"<=":                    "le",
	"less_than_or_equal":    "le",
	">":                     "gt",
	"greater_than":          "gt",
	">=":                    "ge",
	"greater_than_or_equal": "ge",
	"matches":               "regex",
	"type_of":               "type",
}

func lookupComparator(name string) (string, Comparator, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if alias, ok := comparatorAliases[name]; ok {
		name = alias
	}
	cmp, ok := comparators[name]
	if !ok {
		return "", nil, fmt.Errorf("unknown comparator %q", name)
	}
	return name, cmp, nil
}

type compareValidator struct {
	extractor      Extractor
	comparatorName string
	comparator     Comparator
	expected       interface{}
	expectedField  *template.Field
	expectedFrom   Extractor
}

func parseCompare(cfg map[string]interface{}, _ string) (Validator, error) {
	ext, _, err := extractorFrom(cfg)
	if err != nil {
		return nil, err
	}
	if ext == nil {
		return nil, errors.New("missing extractor")
	}

	cmpName := "eq"
	if raw, ok := cfg["comparator"]; ok {
		if cmpName, err = parsing.String(raw); err != nil {
			return nil, fmt.Errorf("comparator: %w", err)
		}
	}
	name, cmp, err := lookupComparator(cmpName)
	if err != nil {
		return nil, err
	}

	v := &compareValidator{extractor: ext, comparatorName: name, comparator: cmp}
	raw, ok := cfg["expected"]
	if !ok {
		return nil, errors.New("missing expected value")
	}
	if m, err := parsing.Node(raw); err == nil {
		switch {
		case m["template"] != nil:
			if v.expectedField, err = template.ParseField(m); err != nil {
				return nil, fmt.Errorf("expected: %w", err)
			}
		default:
			inner, _, err := extractorFrom(m)
			if err != nil {
				return nil, fmt.Errorf("expected: %w", err)
			}
			if inner == nil {
				v.expected = raw
			} else {
				v.expectedFrom = inner
			}
		}
	} else {
		v.expected = raw
	}
	return v, nil
}

func (v *compareValidator) Validate(x *lhttp.Exchange, ctx *binding.Context) *Failure {
	actual, err := v.extractor.Extract(x)
	if err != nil {
		return &Failure{Type: "extract", Message: fmt.Sprintf("%s: %v", v.extractor, err)}
	}

	expected := v.expected
	switch {
	case v.expectedField != nil:
		s, err := v.expectedField.Realize(ctx)
		if err != nil {
			return &Failure{Type: "template", Message: err.Error()}
		}
		expected = s
	case v.expectedFrom != nil:
		e, err := v.expectedFrom.Extract(x)
		if err != nil {
			return &Failure{Type: "extract", Message: fmt.Sprintf("expected %s: %v", v.expectedFrom, err)}
		}
		expected = e
	}

	ok, err := v.comparator(actual, expected)
	if err != nil {
		return &Failure{Type: "compare", Message: fmt.Sprintf("%s %s: %v", v.extractor, v.comparatorName, err)}
	}
	if !ok {
		return &Failure{
			Type:    "compare",
			Message: fmt.Sprintf("%s: %s %s %s failed", v.extractor, template.Stringify(actual), v.comparatorName, template.Stringify(expected)),
		}
	}
	return nil
}

type extractTestValidator struct {
	extractor Extractor
	test      string
}

func parseExtractTest(cfg map[string]interface{}, _ string) (Validator, error) {
	ext, _, err := extractorFrom(cfg)
	if err != nil {
		return nil, err
	}
	if ext == nil {
		return nil, errors.New("missing extractor")
	}
	test := "exists"
	if raw, ok := cfg["test"]; ok {
		if test, err = parsing.String(raw); err != nil {
			return nil, fmt.Errorf("test: %w", err)
		}
	}
	test = strings.ToLower(test)
	if test != "exists" && test != "not_exists" {
		return nil, fmt.Errorf("unknown test %q", test)
	}
	return &extractTestValidator{extractor: ext, test: test}, nil
}

func (v *extractTestValidator) Validate(x *lhttp.Exchange, _ *binding.Context) *Failure {
	_, err := v.extractor.Extract(x)
	exists := err == nil
	if exists == (v.test == "exists") {
		return nil
	}
	return &Failure{Type: "extract_test", Message: fmt.Sprintf("%s: %s failed", v.extractor, v.test)}
}

type schemaValidator struct {
	source string
	schema *jsonschema.Schema
}

func parseJSONSchema(cfg map[string]interface{}, baseDir string) (Validator, error) {
	raw, ok := cfg["schema"]
	if !ok {
		return nil, errors.New("missing schema")
	}

	var data []byte
	source := "inline"
	if m, err := parsing.Node(raw); err == nil && len(m) == 1 && m["file"] != nil {
		path, err := parsing.String(m["file"])
		if err != nil {
			return nil, fmt.Errorf("schema file: %w", err)
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read schema: %w", err)
		}
		source = path
	} else if s, ok := raw.(string); ok {
		data = []byte(s)
	} else {
		encoded, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("schema: %w", err)
		}
		data = encoded
	}

	schema, err := jsonschema.Compile(data)
	if err != nil {
		return nil, err
	}
	return &schemaValidator{source: source, schema: schema}, nil
}

func (v *schemaValidator) Validate(x *lhttp.Exchange, _ *binding.Context) *Failure {
	if errs := v.schema.Validate(x.Body); errs != nil {
		return &Failure{Type: "json_schema", Message: fmt.Sprintf("%s schema: %v", v.source, errs)}
	}
	return nil
}

func looseEqual(a, e interface{}) bool {
	if reflect.DeepEqual(a, e) {
		return true
	}
	af, aerr := parsing.Float(a)
	ef, eerr := parsing.Float(e)
	if aerr == nil && eerr == nil {
		return af == ef
	}
	return template.Stringify(a) == template.Stringify(e)
}

func numeric(op func(a, e float64) bool) Comparator {
	return func(a, e interface{}) (bool, error) {
		af, err := parsing.Float(a)
		if err != nil {
			return false, err
		}
		ef, err := parsing.Float(e)
		if err != nil {
			return false, err
		}
		return op(af, ef), nil
	}
}

func contains(container, item interface{}) bool {
	switch c := container.(type) {
	case []interface{}:
		for _, v := range c {
			if looseEqual(v, item) {
				return true
			}
		}
		return false
	case map[string]interface{}:
		_, ok := c[template.Stringify(item)]
		return ok
	}
	return strings.Contains(template.Stringify(container), template.Stringify(item))
}

func countEqual(a, e interface{}) (bool, error) {
	want, err := parsing.Int(e)
	if err != nil {
		return false, err
	}
	switch c := a.(type) {
	case []interface{}:
		return len(c) == want, nil
	case map[string]interface{}:
		return len(c) == want, nil
	case string:
		return len(c) == want, nil
	}
	return false, fmt.Errorf("cannot count %T", a)
}

func matchRegex(a, e interface{}) (bool, error) {
	pattern, err := regexp.Compile(template.Stringify(e))
	if err != nil {
		return false, fmt.Errorf("invalid regex pattern: %w", err)
	}
	return pattern.MatchString(template.Stringify(a)), nil
}

var typeAliases = map[string]string{
	"str":   "string",
	"bool":  "boolean",
	"int":   "integer",
	"float": "number",
	"list":  "array",
	"dict":  "object",
	"map":   "object",
	"none":  "null",
}

func matchType(a, e interface{}) (bool, error) {
	want := strings.ToLower(template.Stringify(e))
	if alias, ok := typeAliases[want]; ok {
		want = alias
	}

	_, isArray := a.([]interface{})
	_, isObject := a.(map[string]interface{})
	switch want {
	case "null":
		return a == nil, nil
	case "string":
		_, ok := a.(string)
		return ok, nil
	case "boolean":
		_, ok := a.(bool)
		return ok, nil
	case "number":
		switch a.(type) {
		case float64, int, int64:
			return true, nil
		}
		return false, nil
	case "integer":
		switch v := a.(type) {
		case int, int64:
			return true, nil
		case float64:
			return v == math.Trunc(v), nil
		}
		return false, nil
	case "array":
		return isArray, nil
	case "object":
		return isObject, nil
	case "scalar":
		return !isArray && !isObject, nil
	case "collection":
		return isArray || isObject, nil
	}
	return false, fmt.Errorf("unknown type %q", want)
}
