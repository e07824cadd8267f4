package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureVectorPreservesInsertionOrder(t *testing.T) {
	vec := NewFeatureVector()
	vec.Set("area", 50.0)
	vec.Set("rooms", 2)
	vec.Set("city", "gdańsk")
	vec.Set("area", 60.0) // overwrite must not duplicate the column

	assert.Equal(t, []string{"area", "rooms", "city"}, vec.Names())
	assert.Equal(t, 3, vec.Len())

	val, ok := vec.Get("area")
	require.True(t, ok)
	assert.Equal(t, 60.0, val, "second Set should overwrite the value")
}

func TestFeatureVectorWithLeavesReceiverUntouched(t *testing.T) {
	base := NewFeatureVector()
	base.Set("heating", "urban")
	base.Set("elevator", 1)

	derived := base.With("heating", "electrical")

	got, _ := derived.Text("heating")
	assert.Equal(t, "electrical", got)

	orig, _ := base.Text("heating")
	assert.Equal(t, "urban", orig, "With must not mutate the receiver")
	assert.Equal(t, base.Names(), derived.Names(), "override of an existing feature should not change the column order")
}

func TestFeatureVectorFloatCoercions(t *testing.T) {
	vec := NewFeatureVector()
	vec.Set("f64", 1.5)
	vec.Set("int", 3)
	vec.Set("int64", int64(4))
	vec.Set("flag", true)
	vec.Set("text", "not a number")

	cases := map[string]float64{"f64": 1.5, "int": 3, "int64": 4, "flag": 1}
	for name, want := range cases {
		got, ok := vec.Float(name)
		require.True(t, ok, "%s should coerce to float", name)
		assert.Equal(t, want, got)
	}

	_, ok := vec.Float("text")
	assert.False(t, ok, "strings should not coerce to float")
	_, ok = vec.Float("missing")
	assert.False(t, ok)
}

func TestFeatureVectorTextRendersNonStrings(t *testing.T) {
	vec := NewFeatureVector()
	vec.Set("floor", 3)

	got, ok := vec.Text("floor")
	require.True(t, ok)
	assert.Equal(t, "3", got, "non-string values should render through their default format")
}
