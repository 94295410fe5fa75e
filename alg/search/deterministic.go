package search

import (
	. "arcner/alg/featurevector"
	"arcner/alg/transition"
	TransitionModel "arcner/alg/transition/model"

	"github.com/rs/zerolog/log"
)

// Deterministic is the greedy decoder
type Deterministic struct {
	Model              TransitionModel.Interface
	TransFunc          transition.TransitionSystem
	FeatExtractor      transition.FeatureExtractor
	ReturnSequence     bool
	ShowConsiderations bool
	NoRecover          bool
}

var _ Interface = &Deterministic{}

func (d *Deterministic) Name() string {
	return "Deterministic"
}

// Decode mutates c in place until it is terminal
func (d *Deterministic) Decode(c transition.Configuration) (result *Result, err error) {
	if !d.NoRecover {
		defer transition.Recover(&err)
	}
	if d.TransFunc == nil {
		panic("Can't parse without a transition system")
	}
	classifier := &TransitionClassifier{Model: d.Model, TransFunc: d.TransFunc, FeatExtractor: d.FeatExtractor}
	classifier.ShowConsiderations = d.ShowConsiderations
	result = &Result{Configuration: c}
	limit := maxSteps(c)
	for steps := 0; !c.Terminal(); steps++ {
		if steps > limit {
			transition.Invariant("Deterministic.Decode", "exceeded %d transitions", limit)
		}
		feats, t, score := classifier.Choose(c)
		if d.ReturnSequence {
			result.History = &transition.FeaturesList{Features: feats, Transition: t, Previous: result.History}
		}
		result.Score += score
		d.TransFunc.Apply(c, t)
	}
	return result, nil
}

// Outcome of a dynamic-oracle training pass over one configuration
type Outcome struct {
	Steps, Errors int
	Loss          float64
}

// TrainDynamic walks c with the dynamic oracle. Whenever the model's choice
// costs more than the cheapest valid transition the model is updated toward
// the best-scoring cheapest one. With explore the walk follows the model's
// prediction, otherwise the oracle's.
func (d *Deterministic) TrainDynamic(c transition.Configuration, oracle transition.Oracle, m TransitionModel.Trainable, explore bool) (outcome *Outcome, err error) {
	if !d.NoRecover {
		defer transition.Recover(&err)
	}
	classifier := &TransitionClassifier{Model: m, TransFunc: d.TransFunc, FeatExtractor: d.FeatExtractor}
	outcome = &Outcome{}
	var costs []int
	limit := maxSteps(c)
	for !c.Terminal() {
		if outcome.Steps > limit {
			transition.Invariant("Deterministic.TrainDynamic", "exceeded %d transitions", limit)
		}
		feats, transitions, scores := classifier.Consider(c)
		predIdx := argmax(scores, nil, 0)
		var min int
		costs, min = transition.Costs(oracle, c, transitions, costs)
		targetIdx := argmax(scores, costs, min)
		pred, target := transitions[predIdx], transitions[targetIdx]
		if costs[predIdx] > min {
			m.Update(feats, target, 1)
			m.Update(feats, pred, -1)
			outcome.Errors++
			outcome.Loss += 1 + scores[predIdx] - scores[targetIdx]
		}
		next := target
		if explore {
			next = pred
		}
		d.TransFunc.Apply(c, next)
		outcome.Steps++
	}
	return outcome, nil
}

// argmax returns the first index with the highest score; with costs, only
// indices whose cost equals min are considered
func argmax(scores []float64, costs []int, min int) int {
	best := -1
	for i, s := range scores {
		if costs != nil && costs[i] != min {
			continue
		}
		if best < 0 || s > scores[best] {
			best = i
		}
	}
	return best
}

// TransitionClassifier picks the best-scoring valid transition of a state
type TransitionClassifier struct {
	Model              TransitionModel.Interface
	TransFunc          transition.TransitionSystem
	FeatExtractor      transition.FeatureExtractor
	ShowConsiderations bool

	transitions []transition.Transition
	scores      []float64
}

var _ transition.Decision = &TransitionClassifier{}

// Consider returns the features of c and the scores of its valid
// transitions. The transitions and scores slices are reused between calls.
func (tc *TransitionClassifier) Consider(c transition.Configuration) ([]Feature, []transition.Transition, []float64) {
	tc.transitions = tc.TransFunc.GetTransitions(c, tc.transitions[:0])
	if len(tc.transitions) == 0 {
		transition.Invariant("TransitionClassifier", "no valid transition at non-terminal state %v", c)
	}
	feats := tc.FeatExtractor.Features(c, nil)
	if cap(tc.scores) < len(tc.transitions) {
		tc.scores = make([]float64, len(tc.transitions))
	}
	tc.scores = tc.scores[:len(tc.transitions)]
	tc.Model.Scores(feats, tc.transitions, tc.scores)
	if tc.ShowConsiderations {
		for i, t := range tc.transitions {
			log.Debug().Str("transition", tc.TransFunc.TransitionName(t)).Float64("score", tc.scores[i]).Msg("considering")
		}
	}
	return feats, tc.transitions, tc.scores
}

func (tc *TransitionClassifier) Choose(c transition.Configuration) ([]Feature, transition.Transition, float64) {
	feats, transitions, scores := tc.Consider(c)
	best := argmax(scores, nil, 0)
	if tc.ShowConsiderations {
		log.Debug().Str("transition", tc.TransFunc.TransitionName(transitions[best])).Msg("chose")
	}
	return feats, transitions[best], scores[best]
}

func (tc *TransitionClassifier) Transition(c transition.Configuration) transition.Transition {
	_, t, _ := tc.Choose(c)
	return t
}
