package transition

import (
	"fmt"
	"strings"

	. "arcner/alg/featurevector"
)

// Transition is an action id, dense in registration order
type Transition int

const NoTransition Transition = -1

// FeaturesList is a persistent per-step history: the features extracted
// at a state and the transition taken from it. Candidates sharing a prefix
// share the list cells.
type FeaturesList struct {
	Features   []Feature
	Transition Transition
	Previous   *FeaturesList
}

func (l *FeaturesList) Len() int {
	n := 0
	for cur := l; cur != nil; cur = cur.Previous {
		n++
	}
	return n
}

// Steps returns the history oldest first
func (l *FeaturesList) Steps() []*FeaturesList {
	retval := make([]*FeaturesList, l.Len())
	i := len(retval) - 1
	for cur := l; cur != nil; cur = cur.Previous {
		retval[i] = cur
		i--
	}
	return retval
}

func (l *FeaturesList) Transitions() []Transition {
	steps := l.Steps()
	retval := make([]Transition, len(steps))
	for i, s := range steps {
		retval[i] = s.Transition
	}
	return retval
}

// SharedPrefix is the number of leading transitions l and other agree on
func (l *FeaturesList) SharedPrefix(other *FeaturesList) int {
	a, b := l.Transitions(), other.Transitions()
	shared := 0
	for shared < len(a) && shared < len(b) && a[shared] == b[shared] {
		shared++
	}
	return shared
}

func (l *FeaturesList) String() string {
	var retval []string
	for _, s := range l.Steps() {
		retval = append(retval, fmt.Sprintf("%v (%d features)", s.Transition, len(s.Features)))
	}
	return strings.Join(retval, "\n")
}

type Configuration interface {
	Terminal() bool
	Copy() Configuration
	Len() int
	String() string
}

type TransitionSystem interface {
	Name() string
	NumTransitions() int
	TransitionName(t Transition) string

	// GetTransitions appends the transitions valid at conf, in registration order
	GetTransitions(conf Configuration, into []Transition) []Transition
	Valid(conf Configuration, t Transition) bool
	// Apply mutates conf; t must be valid
	Apply(conf Configuration, t Transition)
	// Transition returns a modified copy of from
	Transition(from Configuration, t Transition) Configuration

	Oracle(gold interface{}) (Oracle, error)
}

type Decision interface {
	Transition(Configuration) Transition
}

// Oracle scores transitions against one gold annotation
type Oracle interface {
	Decision
	Cost(conf Configuration, t Transition) int
	Name() string
}

type FeatureExtractor interface {
	Features(conf Configuration, into []Feature) []Feature
	NumTemplates() int
}

// Costs fills costs for transitions and returns the minimum
func Costs(o Oracle, conf Configuration, transitions []Transition, costs []int) ([]int, int) {
	costs = costs[:0]
	min := -1
	for _, t := range transitions {
		c := o.Cost(conf, t)
		costs = append(costs, c)
		if min < 0 || c < min {
			min = c
		}
	}
	return costs, min
}

// BestTransition is the first lowest-cost valid transition
func BestTransition(ts TransitionSystem, o Oracle, conf Configuration) Transition {
	var (
		best     Transition = NoTransition
		bestCost int
	)
	for _, t := range ts.GetTransitions(conf, nil) {
		c := o.Cost(conf, t)
		if best == NoTransition || c < bestCost {
			best, bestCost = t, c
		}
	}
	return best
}
