package perceptron

import (
	"errors"
	"testing"

	. "arcner/alg/featurevector"
	"arcner/alg/transition"
	TransitionModel "arcner/alg/transition/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatcher(t *testing.T) {
	b := NewBatcher([]Instance{1, 2, 3, 4, 5}, 2)
	var sizes []int
	for {
		batch, ok := b.Next()
		if !ok {
			break
		}
		sizes = append(sizes, len(batch))
	}
	assert.Equal(t, []int{2, 2, 1}, sizes)
	b.Reset()
	batch, ok := b.Next()
	assert.True(t, ok)
	assert.Equal(t, []Instance{1, 2}, batch)
}

// countdown fails odd instances and reports a loss that shrinks per call
type countdown struct {
	calls int
}

func (c *countdown) DecodeEarlyUpdate(i Instance, m TransitionModel.Trainable) (*Decoded, error) {
	if i.(int)%2 == 1 {
		return nil, errors.New("malformed")
	}
	c.calls++
	return &Decoded{Loss: 1.0 / float64(c.calls), Updates: 1}, nil
}

func TestTrainCountsDropped(t *testing.T) {
	p := &LinearPerceptron{Decoder: &countdown{}, Iterations: 3, BatchSize: 2}
	p.Init(TransitionModel.NewAvgMatrixSparse())
	epochs, err := p.Train([]Instance{0, 1, 2, 3, 4})
	require.NoError(t, err)
	require.Len(t, epochs, 3)
	for _, e := range epochs {
		assert.Equal(t, 5, e.Instances)
		assert.Equal(t, 2, e.Failed)
		assert.Equal(t, 3, e.Updates)
	}
	assert.Equal(t, 6, p.FailedInstances)
	assert.Greater(t, epochs[0].Loss, epochs[2].Loss)
}

func TestTrainStopCondition(t *testing.T) {
	p := &LinearPerceptron{Decoder: &countdown{}, Iterations: 10}
	p.Continue = func(i, n int, last *Epoch) bool {
		return last == nil || last.Loss > 0.5
	}
	p.Init(TransitionModel.NewAvgMatrixSparse())
	epochs, err := p.Train([]Instance{0, 2})
	require.NoError(t, err)
	assert.Less(t, len(epochs), 10)
}

func TestAddSubtractSkipsSharedPrefix(t *testing.T) {
	f1 := []Feature{Hash(0, []uint64{1})}
	f2 := []Feature{Hash(0, []uint64{2})}
	shared := &transition.FeaturesList{Features: f1, Transition: 0}
	gold := &transition.FeaturesList{Features: f2, Transition: 1, Previous: shared}
	pred := &transition.FeaturesList{Features: f2, Transition: 2, Previous: shared}

	m := TransitionModel.NewAvgMatrixSparse()
	updates := AddSubtract(m, gold, pred, 1)
	assert.Equal(t, 2, updates)
	assert.Equal(t, 0.0, TransitionModel.Score(m, f1, 0))
	assert.Equal(t, 1.0, TransitionModel.Score(m, f2, 1))
	assert.Equal(t, -1.0, TransitionModel.Score(m, f2, 2))
}

func TestStrategies(t *testing.T) {
	m := TransitionModel.NewAvgMatrixSparse()
	assert.Same(t, m, (&TrivialStrategy{}).Finalize(m))
	assert.NotSame(t, m, (&AveragedStrategy{}).Finalize(m))
}
