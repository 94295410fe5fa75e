package search

import (
	"arcner/alg/transition"
)

// MAX_TRANSITIONS_PER_TOKEN bounds the steps of any decode; exceeding it
// means the transition system does not make progress.
const MAX_TRANSITIONS_PER_TOKEN = 8

// Result of decoding one configuration
type Result struct {
	Configuration transition.Configuration
	Score         float64
	History       *transition.FeaturesList
}

func (r *Result) Transitions() []transition.Transition {
	if r.History == nil {
		return nil
	}
	return r.History.Transitions()
}

// Interface is a decoder that drives a configuration to a terminal state
type Interface interface {
	Decode(c transition.Configuration) (*Result, error)
	Name() string
}

// Violation is a training signal: a wrong candidate scored at least as
// high as the best gold-consistent one.
type Violation struct {
	Pred, Gold *Candidate
	Delta      float64
	Step       int
}

type UpdateStrategy int

const (
	EarlyUpdate UpdateStrategy = iota
	MaxViolation
)

func (u UpdateStrategy) String() string {
	switch u {
	case EarlyUpdate:
		return "early"
	case MaxViolation:
		return "max-violation"
	default:
		return "unknown"
	}
}

func ParseUpdateStrategy(s string) (UpdateStrategy, bool) {
	switch s {
	case "early", "early-update", "":
		return EarlyUpdate, true
	case "max", "max-violation":
		return MaxViolation, true
	default:
		return EarlyUpdate, false
	}
}

func maxSteps(c transition.Configuration) int {
	return MAX_TRANSITIONS_PER_TOKEN*c.Len() + 2
}
