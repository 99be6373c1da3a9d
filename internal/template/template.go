// Package template renders {{name}} placeholders against a binding context.
package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/wesleyorama2/restbench/internal/binding"
	"github.com/wesleyorama2/restbench/internal/parsing"
)

// ErrUnboundVariable is returned when a placeholder names a variable that is
// not bound in the context.
var ErrUnboundVariable = errors.New("unbound variable")

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_.\-]*)\s*\}\}`)

// Render replaces every {{name}} in text with the bound value.
func Render(text string, ctx *binding.Context) (string, error) {
	var missing []string
	out := placeholder.ReplaceAllStringFunc(text, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		v, ok := ctx.Value(name)
		if !ok {
			missing = append(missing, name)
			return m
		}
		return Stringify(v)
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrUnboundVariable, strings.Join(missing, ", "))
	}
	return out, nil
}

// Stringify formats a bound value for substitution. Composite values are
// encoded as JSON.
func Stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
	if s, err := parsing.String(v); err == nil {
		return s
	}
	return fmt.Sprint(v)
}

// HasPlaceholders reports whether text contains at least one placeholder.
func HasPlaceholders(text string) bool {
	return placeholder.MatchString(text)
}

// Field is a configuration string that is either static or rendered against
// the binding context. Rendered output is cached until the context's
// modification counter moves.
type Field struct {
	Raw       string
	Templated bool

	cached    string
	cachedCtx *binding.Context
	cachedMod int
}

// Static returns a non-templated field.
func Static(s string) *Field {
	return &Field{Raw: s}
}

// Templated returns a field rendered on every realization.
func Templated(s string) *Field {
	return &Field{Raw: s, Templated: true}
}

// ParseField reads a node that is either a plain scalar or a
// {template: "..."} mapping.
func ParseField(v interface{}) (*Field, error) {
	if m, err := parsing.Node(v); err == nil {
		raw, ok := m["template"]
		if !ok || len(m) != 1 {
			return nil, errors.New("expected a scalar or {template: ...}")
		}
		s, err := parsing.String(raw)
		if err != nil {
			return nil, fmt.Errorf("template: %w", err)
		}
		return Templated(s), nil
	}
	s, err := parsing.String(v)
	if err != nil {
		return nil, err
	}
	return Static(s), nil
}

// Realize returns the field value for ctx.
func (f *Field) Realize(ctx *binding.Context) (string, error) {
	if f == nil {
		return "", nil
	}
	if !f.Templated || ctx == nil {
		return f.Raw, nil
	}
	mod := ctx.ModCount()
	if f.cachedCtx == ctx && f.cachedMod == mod {
		return f.cached, nil
	}
	out, err := Render(f.Raw, ctx)
	if err != nil {
		return "", err
	}
	f.cached, f.cachedCtx, f.cachedMod = out, ctx, mod
	return out, nil
}

// Prefix returns a copy of f with base prepended to the raw text.
func (f *Field) Prefix(base string) *Field {
	return &Field{Raw: base + f.Raw, Templated: f.Templated}
}
