package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValues_TypedGetters(t *testing.T) {
	v := NewValues(map[string]any{
		"s":     "text",
		"i":     42,
		"i64":   int64(7),
		"f":     0.25,
		"b":     true,
		"list":  []any{"a", 1, "b"},
		"slice": []string{"x"},
	})

	assert.Equal(t, "text", v.GetString("s"))
	assert.Empty(t, v.GetString("i"))

	assert.Equal(t, 42, v.GetInt("i"))
	assert.Equal(t, 7, v.GetInt("i64"))
	assert.Zero(t, v.GetInt("f"))

	assert.InDelta(t, 0.25, v.GetFloat("f"), 1e-9)
	assert.InDelta(t, 7.0, v.GetFloat("i64"), 1e-9)
	assert.Zero(t, v.GetFloat("s"))

	assert.True(t, v.GetBool("b"))
	assert.False(t, v.GetBool("missing"))

	assert.Equal(t, []string{"a", "b"}, v.GetStringSlice("list"))
	assert.Equal(t, []string{"x"}, v.GetStringSlice("slice"))
	assert.Nil(t, v.GetStringSlice("s"))
}

func TestValues_CopiesInput(t *testing.T) {
	src := map[string]any{"k": "v"}
	v := NewValues(src)
	src["k"] = "changed"

	assert.Equal(t, "v", v.GetString("k"))

	snap := v.Snapshot()
	snap["k"] = "changed"
	assert.Equal(t, "v", v.GetString("k"))
}

func TestValues_PutAndReplace(t *testing.T) {
	v := NewValues(nil)
	v.Put("a", 1)
	assert.Equal(t, 1, v.GetInt("a"))

	v.Replace(map[string]any{"b": 2})
	_, ok := v.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 2, v.GetInt("b"))
}
