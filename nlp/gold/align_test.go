package gold

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlignSplitAbbreviation(t *testing.T) {
	a := Align([]string{"U.S", ".", "policy"}, []string{"U.S.", "policy"})
	assert.Equal(t, []int{0, -1, 1}, a.A2B)
	assert.Equal(t, []int{0, 2}, a.B2A)
	assert.Equal(t, []int{0}, a.A2BMany[1])
	assert.Equal(t, 2, a.Cost)
}

func TestAlignIdentical(t *testing.T) {
	words := []string{"I", "flew", "to", "London"}
	a := Align(words, words)
	assert.Equal(t, 0, a.Cost)
	assert.Equal(t, Identity(4).A2B, a.A2B)
	assert.Equal(t, Identity(4).B2A, a.B2A)
}

func TestAlignNormalizes(t *testing.T) {
	a := Align([]string{"New York", "IS"}, []string{"new york", "is"})
	assert.Equal(t, 0, a.Cost)
	assert.Equal(t, []int{0, 1}, a.A2B)
}

func TestAlignMergedTokens(t *testing.T) {
	a := Align([]string{"New York", "is"}, []string{"New", "York", "is"})
	assert.Equal(t, -1, a.B2A[0])
	assert.Equal(t, []int{0}, a.B2AMany[0])
	assert.Equal(t, 0, a.B2A[1])
	assert.Equal(t, 1, a.B2A[2])
}

func TestAlignUnrelated(t *testing.T) {
	a := Align([]string{"abc"}, []string{"xyz", "q"})
	assert.Equal(t, []int{-1}, a.A2B)
	assert.Equal(t, []int{-1, -1}, a.B2A)
	assert.Nil(t, a.A2BMany[0])
}

func TestAlignSymmetric(t *testing.T) {
	vocab := []string{"a", "b", "ab", "c", "bc", "abc", "."}
	r := rand.New(rand.NewSource(7))
	sample := func() []string {
		retval := make([]string, r.Intn(6))
		for i := range retval {
			retval[i] = vocab[r.Intn(len(vocab))]
		}
		return retval
	}
	for i := 0; i < 300; i++ {
		x, y := sample(), sample()
		forward, backward := Align(x, y), Align(y, x)
		assert.Equal(t, forward.A2B, backward.B2A, "%v %v", x, y)
		assert.Equal(t, forward.B2A, backward.A2B, "%v %v", x, y)
		assert.Equal(t, forward.A2BMany, backward.B2AMany, "%v %v", x, y)
		assert.Equal(t, forward.Cost, backward.Cost)
	}
}
