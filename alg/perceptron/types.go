package perceptron

import (
	"arcner/alg/transition"
	TransitionModel "arcner/alg/transition/model"
)

// Instance is one training example, opaque to the trainer
type Instance interface{}

// Decoded is the trainer's view of one decoded training instance
type Decoded struct {
	Loss    float64
	Updates int
}

// EarlyUpdateInstanceDecoder decodes an instance against its gold target
// and applies the resulting updates to m. A returned error drops the
// instance for this iteration.
type EarlyUpdateInstanceDecoder interface {
	DecodeEarlyUpdate(i Instance, m TransitionModel.Trainable) (*Decoded, error)
}

type SupervisedTrainer interface {
	Train(instances []Instance) ([]Epoch, error)
}

// AddSubtract moves the model toward gold and away from decoded, starting
// at the first step where the two histories diverge.
func AddSubtract(m TransitionModel.Trainable, gold, decoded *transition.FeaturesList, amount float64) int {
	shared := gold.SharedPrefix(decoded)
	updates := 0
	for i, step := range gold.Steps() {
		if i >= shared {
			m.Update(step.Features, step.Transition, amount)
			updates++
		}
	}
	for i, step := range decoded.Steps() {
		if i >= shared {
			m.Update(step.Features, step.Transition, -amount)
			updates++
		}
	}
	return updates
}
