package model

import (
	. "arcner/alg/featurevector"
	. "arcner/alg/transition"
)

// Interface scores a set of transitions given the features of one state.
// scores has the length of transitions and is overwritten.
type Interface interface {
	Scores(features []Feature, transitions []Transition, scores []float64)
}

// Trainable is a scorer the perceptron can update
type Trainable interface {
	Interface
	Update(features []Feature, t Transition, amount float64)
	// Tick marks the end of one training instance
	Tick()
	Averaged() Interface
}

// Fixed delegates scoring to a function; used for stubbing and for
// wrapping external scorers.
type Fixed struct {
	ScoreFunc func(features []Feature, t Transition) float64
}

var _ Interface = &Fixed{}

func (f *Fixed) Scores(features []Feature, transitions []Transition, scores []float64) {
	for i, t := range transitions {
		scores[i] = f.ScoreFunc(features, t)
	}
}

// Score is the sum of t's scores, filled into a fresh slice
func Score(m Interface, features []Feature, t Transition) float64 {
	var scores [1]float64
	m.Scores(features, []Transition{t}, scores[:])
	return scores[0]
}
