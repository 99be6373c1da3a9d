package template

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wesleyorama2/restbench/internal/binding"
)

func TestRender(t *testing.T) {
	ctx := binding.NewContext()
	ctx.BindVariables(map[string]interface{}{
		"id":    7,
		"name":  "bob",
		"ratio": 0.5,
		"tags":  []interface{}{"a"},
	})

	got, err := Render("/users/{{id}}/{{ name }}?r={{ratio}}&t={{tags}}", ctx)
	require.NoError(t, err)
	assert.Equal(t, `/users/7/bob?r=0.5&t=["a"]`, got)
}

func TestRenderUnbound(t *testing.T) {
	ctx := binding.NewContext()
	_, err := Render("/users/{{id}}", ctx)
	assert.True(t, errors.Is(err, ErrUnboundVariable))
	assert.Contains(t, err.Error(), "id")
}

func TestParseField(t *testing.T) {
	f, err := ParseField("/plain/{{x}}")
	require.NoError(t, err)
	assert.False(t, f.Templated)

	f, err = ParseField(map[string]interface{}{"template": "/t/{{x}}"})
	require.NoError(t, err)
	assert.True(t, f.Templated)
	assert.Equal(t, "/t/{{x}}", f.Raw)

	f, err = ParseField([]interface{}{map[string]interface{}{"template": "/l"}})
	require.NoError(t, err)
	assert.True(t, f.Templated)

	_, err = ParseField(map[string]interface{}{"other": "x"})
	assert.Error(t, err)

	f, err = ParseField(42)
	require.NoError(t, err)
	assert.Equal(t, "42", f.Raw)
}

func TestFieldRealizeCachesByModCount(t *testing.T) {
	ctx := binding.NewContext()
	ctx.BindVariable("id", 1)

	f := Templated("/items/{{id}}")
	out, err := f.Realize(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/items/1", out)
	assert.Equal(t, ctx.ModCount(), f.cachedMod)

	ctx.BindVariable("id", 1)
	out, err = f.Realize(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/items/1", out)

	ctx.BindVariable("id", 2)
	out, err = f.Realize(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/items/2", out)
}

func TestStaticFieldIgnoresContext(t *testing.T) {
	ctx := binding.NewContext()
	f := Static("/items/{{id}}")
	out, err := f.Realize(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/items/{{id}}", out)

	var nilField *Field
	out, err = nilField.Realize(ctx)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestPrefix(t *testing.T) {
	f := Templated("/a/{{x}}").Prefix("http://host")
	assert.Equal(t, "http://host/a/{{x}}", f.Raw)
	assert.True(t, f.Templated)
}

func TestFieldRealizeDoesNotShareCacheAcrossContexts(t *testing.T) {
	f := Templated("/users/{{id}}")

	first := binding.NewContext()
	first.BindVariable("id", 1)
	out, err := f.Realize(first)
	require.NoError(t, err)
	assert.Equal(t, "/users/1", out)

	second := binding.NewContext()
	second.BindVariable("id", 2)
	require.Equal(t, first.ModCount(), second.ModCount())
	out, err = f.Realize(second)
	require.NoError(t, err)
	assert.Equal(t, "/users/2", out)
}
