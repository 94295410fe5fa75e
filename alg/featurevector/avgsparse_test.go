package featurevector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistoryValueAverage(t *testing.T) {
	h := &HistoryValue{}
	// value 1 during generations 0,1 then 3 during 2,3
	h.Add(0, 1)
	h.Add(2, 2)
	assert.InDelta(t, 3.0, h.Value, 1e-9)
	assert.InDelta(t, 8.0, h.IntegratedValue(4), 1e-9)
	assert.InDelta(t, 2.0, h.Average(4), 1e-9)
}

func TestAvgSparse(t *testing.T) {
	s := NewAvgSparse()
	f := Hash(0, []uint64{5})
	s.Add(1, 2, f, 1)
	assert.Equal(t, 1.0, s.Value(2, f))
	assert.Equal(t, 0.0, s.Value(0, f))
	assert.Equal(t, 0.0, s.Value(7, f))
	assert.Equal(t, 0.0, s.Value(0, Hash(1, []uint64{5})))

	s.Add(3, 2, f, -1)
	avg := s.Averaged(4)
	// 1 during generations 1,2 and 0 during 3 over 4 generations
	assert.InDelta(t, 0.5, avg.Value(2, f), 1e-9)
	assert.Equal(t, 1, avg.Len())
}

func TestHashDeterministic(t *testing.T) {
	a := Hash(3, []uint64{1, 2})
	assert.Equal(t, a, Hash(3, []uint64{1, 2}))
	assert.NotEqual(t, a, Hash(4, []uint64{1, 2}))
	assert.NotEqual(t, a, Hash(3, []uint64{2, 1}))
	assert.NotEqual(t, Null, HashString(""))
}
