// Package binding holds the variable and generator state shared by the tests
// and benchmarks of one test set.
package binding

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

var (
	// ErrInvalidGenerator is returned when a nil generator is registered.
	ErrInvalidGenerator = errors.New("invalid generator")
	// ErrUnknownGenerator is returned when a draw references an unregistered generator.
	ErrUnknownGenerator = errors.New("unknown generator")
	// ErrGeneratorExhausted is returned by finite generators once all values are drawn.
	ErrGeneratorExhausted = errors.New("generator exhausted")
)

// Generator produces an unbounded or finite stream of values. Each call to
// Next advances the generator's internal state.
type Generator interface {
	Next() (interface{}, error)
}

// GeneratorFunc adapts a plain function to the Generator interface.
type GeneratorFunc func() (interface{}, error)

// Next calls f.
func (f GeneratorFunc) Next() (interface{}, error) {
	return f()
}

// Context stores the variables visible to templates and the generators that
// can feed them. ModCount increases every time a variable changes value, so
// callers can tell whether templated content must be rendered again.
type Context struct {
	mu         sync.RWMutex
	variables  map[string]interface{}
	generators map[string]Generator
	modCount   int
}

// NewContext creates an empty binding context.
func NewContext() *Context {
	return &Context{
		variables:  make(map[string]interface{}),
		generators: make(map[string]Generator),
	}
}

// BindVariable sets name to value. The modification counter only moves when
// the stored value differs from value.
func (c *Context) BindVariable(name string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindLocked(name, value)
}

// BindVariables binds every entry of values.
func (c *Context) BindVariables(values map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, value := range values {
		c.bindLocked(name, value)
	}
}

func (c *Context) bindLocked(name string, value interface{}) {
	if prev, ok := c.variables[name]; ok && reflect.DeepEqual(prev, value) {
		return
	}
	c.variables[name] = value
	c.modCount++
}

// AddGenerator registers gen under name, replacing any previous registration.
func (c *Context) AddGenerator(name string, gen Generator) error {
	if isNil(gen) {
		return fmt.Errorf("%w: %q is nil", ErrInvalidGenerator, name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generators[name] = gen
	return nil
}

// BindGeneratorNext draws the next value from the named generator, binds it
// to variable and returns it. On error the context is left untouched.
func (c *Context) BindGeneratorNext(variable, generator string) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	gen, ok := c.generators[generator]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGenerator, generator)
	}
	value, err := gen.Next()
	if err != nil {
		return nil, fmt.Errorf("generator %q: %w", generator, err)
	}
	c.bindLocked(variable, value)
	return value, nil
}

// Value returns the value bound to name.
func (c *Context) Value(name string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.variables[name]
	return v, ok
}

// Values returns a copy of all bound variables.
func (c *Context) Values() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]interface{}, len(c.variables))
	for k, v := range c.variables {
		out[k] = v
	}
	return out
}

// Generator returns the generator registered under name.
func (c *Context) Generator(name string) (Generator, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.generators[name]
	return g, ok
}

// Generators returns a copy of the generator registry.
func (c *Context) Generators() map[string]Generator {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Generator, len(c.generators))
	for k, g := range c.generators {
		out[k] = g
	}
	return out
}

// ModCount reports how many effective variable changes the context has seen.
func (c *Context) ModCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.modCount
}

func isNil(gen Generator) bool {
	if gen == nil {
		return true
	}
	v := reflect.ValueOf(gen)
	switch v.Kind() {
	case reflect.Ptr, reflect.Func, reflect.Map, reflect.Chan, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}
