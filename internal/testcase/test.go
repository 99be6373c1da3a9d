// Package testcase parses and executes single HTTP test definitions: one
// request, its expected status codes, validators and variable extraction.
package testcase

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/wesleyorama2/restbench/internal/binding"
	lhttp "github.com/wesleyorama2/restbench/internal/http"
	"github.com/wesleyorama2/restbench/internal/parsing"
	"github.com/wesleyorama2/restbench/internal/template"
)

// Defaults applied by ParseTest.
const (
	DefaultName   = "Unnamed"
	DefaultGroup  = "Default"
	DefaultMethod = http.MethodGet
)

// ErrMissingURL is returned when a test node has no url.
var ErrMissingURL = errors.New("missing url")

// ParseError reports a configuration field that could not be parsed.
type ParseError struct {
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func fieldErr(field string, err error) error {
	return &ParseError{Field: field, Err: err}
}

// Test is a single request with its expectations.
type Test struct {
	Name           string
	Group          string
	URL            *template.Field
	Method         string
	Headers        map[string]*template.Field
	Body           *template.Field
	ExpectedStatus []int
	Delay          time.Duration
	StopOnFailure  bool

	AuthUsername *template.Field
	AuthPassword *template.Field

	// VariableBinds are bound into the context before the request.
	VariableBinds map[string]interface{}
	// GeneratorBinds maps a variable to the generator feeding it.
	GeneratorBinds map[string]string
	// ExtractBinds maps a variable to the extractor filling it after the
	// request.
	ExtractBinds map[string]Extractor
	Validators   []Validator
}

// New returns a test with defaults applied.
func New() *Test {
	return &Test{
		Name:           DefaultName,
		Group:          DefaultGroup,
		Method:         DefaultMethod,
		ExpectedStatus: []int{http.StatusOK},
		Headers:        make(map[string]*template.Field),
	}
}

// ParseTest reads the common test fields of node into t. Unknown keys are
// ignored so that node can also carry benchmark-specific fields. baseDir is
// used to resolve schema file references.
func ParseTest(baseURL string, node map[string]interface{}, t *Test, baseDir string) error {
	raw, ok := node["url"]
	if !ok {
		return fieldErr("url", ErrMissingURL)
	}
	u, err := template.ParseField(raw)
	if err != nil {
		return fieldErr("url", err)
	}
	if !isAbsolute(u.Raw) {
		u = u.Prefix(strings.TrimRight(baseURL, "/") + joinSlash(u.Raw))
	}
	t.URL = u

	for key, value := range node {
		var err error
		switch key {
		case "name":
			t.Name, err = parsing.String(value)
		case "group":
			t.Group, err = parsing.String(value)
		case "method":
			var m string
			if m, err = parsing.String(value); err == nil {
				t.Method = strings.ToUpper(m)
			}
		case "body":
			t.Body, err = template.ParseField(value)
		case "headers":
			t.Headers, err = parseHeaders(value)
		case "expected_status":
			t.ExpectedStatus, err = parsing.IntList(value)
		case "delay":
			t.Delay, err = parsing.Duration(value)
		case "stop_on_failure":
			t.StopOnFailure, err = parsing.Bool(value)
		case "auth_username":
			t.AuthUsername, err = template.ParseField(value)
		case "auth_password":
			t.AuthPassword, err = template.ParseField(value)
		case "variable_binds":
			t.VariableBinds, err = parsing.FlattenDictionaries(value)
		case "generator_binds":
			t.GeneratorBinds, err = parseStringMap(value)
		case "extract_binds":
			t.ExtractBinds, err = parseExtractBinds(value)
		case "validators":
			t.Validators, err = parseValidators(value, baseDir)
		}
		if err != nil {
			return fieldErr(key, err)
		}
	}
	return nil
}

// joinSlash returns "/" when path needs one to be appended to a base URL.
func joinSlash(path string) string {
	if strings.HasPrefix(path, "/") || path == "" {
		return ""
	}
	return "/"
}

func isAbsolute(u string) bool {
	lower := strings.ToLower(u)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func parseHeaders(v interface{}) (map[string]*template.Field, error) {
	cfg, err := parsing.FlattenDictionaries(v)
	if err != nil {
		return nil, err
	}
	headers := make(map[string]*template.Field, len(cfg))
	for name, raw := range cfg {
		f, err := template.ParseField(raw)
		if err != nil {
			return nil, fmt.Errorf("header %s: %w", name, err)
		}
		headers[name] = f
	}
	return headers, nil
}

func parseStringMap(v interface{}) (map[string]string, error) {
	cfg, err := parsing.FlattenDictionaries(v)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(cfg))
	for k, raw := range cfg {
		s, err := parsing.String(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = s
	}
	return out, nil
}

func parseExtractBinds(v interface{}) (map[string]Extractor, error) {
	cfg, err := parsing.FlattenDictionaries(v)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Extractor, len(cfg))
	for variable, raw := range cfg {
		ext, err := ParseExtractor(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", variable, err)
		}
		out[variable] = ext
	}
	return out, nil
}

func parseValidators(v interface{}, baseDir string) ([]Validator, error) {
	items, ok := v.([]interface{})
	if !ok {
		items = []interface{}{v}
	}
	out := make([]Validator, 0, len(items))
	for i, item := range items {
		val, err := ParseValidator(item, baseDir)
		if err != nil {
			return nil, fmt.Errorf("validator %d: %w", i, err)
		}
		out = append(out, val)
	}
	return out, nil
}

// IsDynamic reports whether any part of the request is templated.
func (t *Test) IsDynamic() bool {
	if t.URL.Templated || (t.Body != nil && t.Body.Templated) {
		return true
	}
	if (t.AuthUsername != nil && t.AuthUsername.Templated) || (t.AuthPassword != nil && t.AuthPassword.Templated) {
		return true
	}
	for _, h := range t.Headers {
		if h.Templated {
			return true
		}
	}
	return false
}

// IsContextModifier reports whether running the test changes the context.
func (t *Test) IsContextModifier() bool {
	return len(t.VariableBinds) > 0 || len(t.GeneratorBinds) > 0 || len(t.ExtractBinds) > 0
}

// StaticPlaceholders lists the non-templated fields whose text contains
// {{name}} placeholders. Those are sent literally.
func (t *Test) StaticPlaceholders() []string {
	var fields []string
	check := func(name string, f *template.Field) {
		if f != nil && !f.Templated && template.HasPlaceholders(f.Raw) {
			fields = append(fields, name)
		}
	}
	check("url", t.URL)
	check("body", t.Body)
	names := make([]string, 0, len(t.Headers))
	for name := range t.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		check("headers."+name, t.Headers[name])
	}
	check("auth_username", t.AuthUsername)
	check("auth_password", t.AuthPassword)
	return fields
}

// UpdateContextBefore binds static variables and draws generator values.
// Generator binds are applied in variable-name order.
func (t *Test) UpdateContextBefore(ctx *binding.Context) error {
	if len(t.VariableBinds) > 0 {
		ctx.BindVariables(t.VariableBinds)
	}
	names := make([]string, 0, len(t.GeneratorBinds))
	for variable := range t.GeneratorBinds {
		names = append(names, variable)
	}
	sort.Strings(names)
	for _, variable := range names {
		if _, err := ctx.BindGeneratorNext(variable, t.GeneratorBinds[variable]); err != nil {
			return fmt.Errorf("bind %s: %w", variable, err)
		}
	}
	return nil
}

// UpdateContextAfter runs the extract binds against x. Every extractor runs;
// the first failure is returned.
func (t *Test) UpdateContextAfter(ctx *binding.Context, x *lhttp.Exchange) error {
	var first error
	for variable, ext := range t.ExtractBinds {
		v, err := ext.Extract(x)
		if err != nil {
			if first == nil {
				first = fmt.Errorf("extract %s: %w", variable, err)
			}
			continue
		}
		ctx.BindVariable(variable, v)
	}
	return first
}

// Realize renders the templated parts of the test into a concrete request.
func (t *Test) Realize(ctx *binding.Context) (*lhttp.Request, error) {
	u, err := t.URL.Realize(ctx)
	if err != nil {
		return nil, fmt.Errorf("url: %w", err)
	}
	req := lhttp.NewRequest(t.Method, u)

	for name, f := range t.Headers {
		v, err := f.Realize(ctx)
		if err != nil {
			return nil, fmt.Errorf("header %s: %w", name, err)
		}
		req.WithHeader(name, v)
	}

	if t.Body != nil {
		body, err := t.Body.Realize(ctx)
		if err != nil {
			return nil, fmt.Errorf("body: %w", err)
		}
		req.WithBody([]byte(body))
	}

	if t.AuthUsername != nil {
		user, err := t.AuthUsername.Realize(ctx)
		if err != nil {
			return nil, fmt.Errorf("auth_username: %w", err)
		}
		pass, err := t.AuthPassword.Realize(ctx)
		if err != nil {
			return nil, fmt.Errorf("auth_password: %w", err)
		}
		req.WithBasicAuth(user, pass)
	}

	return req, nil
}

// ExpectsStatus reports whether code is one of the expected status codes.
func (t *Test) ExpectsStatus(code int) bool {
	for _, c := range t.ExpectedStatus {
		if c == code {
			return true
		}
	}
	return false
}
