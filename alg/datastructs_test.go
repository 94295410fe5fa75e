package alg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStackArray(t *testing.T) {
	s := NewStackArray(2)
	s.Push(1)
	s.Push(5)
	top, ok := s.Peek()
	assert.True(t, ok)
	assert.Equal(t, 5, top)
	below, ok := s.Index(1)
	assert.True(t, ok)
	assert.Equal(t, 1, below)
	_, ok = s.Index(2)
	assert.False(t, ok)

	c := s.Copy()
	c.Pop()
	assert.Equal(t, 2, s.Size())
	assert.Equal(t, 1, c.Size())
	assert.True(t, s.Contains(5))
	assert.False(t, c.Contains(5))
	assert.False(t, s.Equal(c))
}
