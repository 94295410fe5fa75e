package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnumSetOrder(t *testing.T) {
	e := NewEnumSet(4)
	id, added := e.Add("b")
	assert.Equal(t, 0, id)
	assert.True(t, added)
	e.Add("a")
	id, added = e.Add("b")
	assert.Equal(t, 0, id)
	assert.False(t, added)
	assert.Equal(t, []string{"b", "a"}, e.Values())
	assert.Equal(t, "a", e.ValueOf(1))
}

func TestEnumSetFrozen(t *testing.T) {
	e := NewEnumSetFrom([]string{"x", "y"})
	e.Freeze()
	id, added := e.Add("y")
	assert.Equal(t, 1, id)
	assert.False(t, added)
	assert.Panics(t, func() { e.Add("z") })
}

func TestSuffixRunes(t *testing.T) {
	assert.Equal(t, "ßen", Suffix("Straßen", 3))
	assert.Equal(t, "ab", Suffix("ab", 3))
	assert.Equal(t, "St", Prefix("Straßen", 2))
}
