package search

import (
	"sort"

	. "arcner/alg/featurevector"
	"arcner/alg/transition"
	TransitionModel "arcner/alg/transition/model"

	"github.com/rs/zerolog/log"
)

// Candidate is one beam item. Gold marks candidates whose history only took
// oracle-optimal transitions; Greedy marks the greedy decoder's path.
type Candidate struct {
	C       transition.Configuration
	Score   float64
	History *transition.FeaturesList
	Gold    bool
	Greedy  bool
}

func (c *Candidate) Transitions() []transition.Transition {
	if c.History == nil {
		return nil
	}
	return c.History.Transitions()
}

type Beam struct {
	TransFunc     transition.TransitionSystem
	FeatExtractor transition.FeatureExtractor
	Model         TransitionModel.Interface

	Size   int
	Update UpdateStrategy

	ShowConsiderations bool
	NoRecover          bool
}

var _ Interface = &Beam{}

func (b *Beam) Name() string {
	return "Beam [" + b.Update.String() + "]"
}

// expansion is a scored, not yet applied, successor of agenda[parent]
type expansion struct {
	parent   int
	t        transition.Transition
	features []Feature
	score    float64
	gold     bool
	greedy   bool
}

// Decode returns the best-scoring terminal candidate. c is not modified.
func (b *Beam) Decode(c transition.Configuration) (result *Result, err error) {
	if !b.NoRecover {
		defer transition.Recover(&err)
	}
	agenda, _ := b.search(c, nil)
	best := agenda[0]
	return &Result{Configuration: best.C, Score: best.Score, History: best.History}, nil
}

// DecodeAll returns the final beam, best first
func (b *Beam) DecodeAll(c transition.Configuration) (agenda []*Candidate, err error) {
	if !b.NoRecover {
		defer transition.Recover(&err)
	}
	agenda, _ = b.search(c, nil)
	return agenda, nil
}

// Train searches with the oracle and returns the violation to update on,
// or nil when the best candidate is gold-consistent throughout.
func (b *Beam) Train(c transition.Configuration, oracle transition.Oracle) (violation *Violation, err error) {
	if !b.NoRecover {
		defer transition.Recover(&err)
	}
	_, violation = b.search(c, oracle)
	return violation, nil
}

func (b *Beam) size() int {
	if b.Size < 1 {
		return 1
	}
	return b.Size
}

func (b *Beam) search(c transition.Configuration, oracle transition.Oracle) ([]*Candidate, *Violation) {
	if b.TransFunc == nil || b.Model == nil || b.FeatExtractor == nil {
		panic("Beam requires a transition system, a model and a feature extractor")
	}
	start := &Candidate{C: c.Copy(), Gold: oracle != nil, Greedy: true}
	agenda := []*Candidate{start}
	gold := start
	var maxViolation *Violation
	limit := maxSteps(c)
	for step := 0; !allTerminal(agenda) || (oracle != nil && !gold.C.Terminal()); step++ {
		if step > limit {
			transition.Invariant("Beam.search", "exceeded %d transitions", limit)
		}
		expansions := b.expand(agenda, oracle)
		sort.SliceStable(expansions, func(i, j int) bool {
			return expansions[i].score > expansions[j].score
		})
		agenda = b.materialize(agenda, b.prune(expansions))
		if b.ShowConsiderations {
			log.Debug().Int("step", step).Float64("best", agenda[0].Score).Int("size", len(agenda)).Msg("beam")
		}
		if oracle == nil {
			continue
		}
		inBeam := bestGold(agenda)
		if inBeam != nil {
			gold = inBeam
		} else {
			gold = b.advanceGold(gold, oracle)
		}
		top := agenda[0]
		if top.Gold {
			continue
		}
		delta := top.Score - gold.Score
		switch b.Update {
		case EarlyUpdate:
			if inBeam == nil {
				return agenda, &Violation{Pred: top, Gold: gold, Delta: delta, Step: step}
			}
		case MaxViolation:
			if delta >= 0 && (maxViolation == nil || delta > maxViolation.Delta) {
				maxViolation = &Violation{Pred: top, Gold: gold, Delta: delta, Step: step}
			}
		}
	}
	if oracle != nil && b.Update == EarlyUpdate && !agenda[0].Gold {
		return agenda, &Violation{Pred: agenda[0], Gold: gold, Delta: agenda[0].Score - gold.Score, Step: -1}
	}
	return agenda, maxViolation
}

func (b *Beam) expand(agenda []*Candidate, oracle transition.Oracle) []*expansion {
	var (
		transitions []transition.Transition
		scores      []float64
		costs       []int
	)
	retval := make([]*expansion, 0, len(agenda)*b.TransFunc.NumTransitions())
	for i, cand := range agenda {
		if cand.C.Terminal() {
			retval = append(retval, &expansion{parent: i, t: transition.NoTransition, score: cand.Score, gold: cand.Gold, greedy: cand.Greedy})
			continue
		}
		transitions = b.TransFunc.GetTransitions(cand.C, transitions[:0])
		if len(transitions) == 0 {
			transition.Invariant("Beam.expand", "no valid transition at non-terminal state %v", cand.C)
		}
		features := b.FeatExtractor.Features(cand.C, nil)
		if cap(scores) < len(transitions) {
			scores = make([]float64, len(transitions))
		}
		scores = scores[:len(transitions)]
		b.Model.Scores(features, transitions, scores)
		min := 0
		if oracle != nil && cand.Gold {
			costs, min = transition.Costs(oracle, cand.C, transitions, costs)
		}
		greedyIdx := -1
		if cand.Greedy {
			greedyIdx = argmax(scores, nil, 0)
		}
		for j, t := range transitions {
			retval = append(retval, &expansion{
				parent:   i,
				t:        t,
				features: features,
				score:    cand.Score + scores[j],
				gold:     oracle != nil && cand.Gold && costs[j] == min,
				greedy:   j == greedyIdx,
			})
		}
	}
	return retval
}

// prune keeps the top expansions; the greedy path always survives, taking
// the last slot when it ranks lower
func (b *Beam) prune(sorted []*expansion) []*expansion {
	k := b.size()
	if len(sorted) <= k {
		return sorted
	}
	kept := sorted[:k:k]
	for _, e := range kept {
		if e.greedy {
			return kept
		}
	}
	for _, e := range sorted[k:] {
		if e.greedy {
			kept[k-1] = e
			break
		}
	}
	return kept
}

func (b *Beam) materialize(agenda []*Candidate, kept []*expansion) []*Candidate {
	retval := make([]*Candidate, len(kept))
	for i, e := range kept {
		parent := agenda[e.parent]
		if e.t == transition.NoTransition {
			retval[i] = parent
			continue
		}
		retval[i] = &Candidate{
			C:       b.TransFunc.Transition(parent.C, e.t),
			Score:   e.score,
			History: &transition.FeaturesList{Features: e.features, Transition: e.t, Previous: parent.History},
			Gold:    e.gold,
			Greedy:  e.greedy,
		}
	}
	return retval
}

// advanceGold extends a gold candidate that fell off the beam by its
// best-scoring oracle-optimal transition
func (b *Beam) advanceGold(gold *Candidate, oracle transition.Oracle) *Candidate {
	if gold.C.Terminal() {
		return gold
	}
	transitions := b.TransFunc.GetTransitions(gold.C, nil)
	if len(transitions) == 0 {
		transition.Invariant("Beam.advanceGold", "no valid transition at non-terminal state %v", gold.C)
	}
	features := b.FeatExtractor.Features(gold.C, nil)
	scores := make([]float64, len(transitions))
	b.Model.Scores(features, transitions, scores)
	costs, min := transition.Costs(oracle, gold.C, transitions, nil)
	best := argmax(scores, costs, min)
	t := transitions[best]
	return &Candidate{
		C:       b.TransFunc.Transition(gold.C, t),
		Score:   gold.Score + scores[best],
		History: &transition.FeaturesList{Features: features, Transition: t, Previous: gold.History},
		Gold:    true,
	}
}

func bestGold(agenda []*Candidate) *Candidate {
	for _, c := range agenda {
		if c.Gold {
			return c
		}
	}
	return nil
}

func allTerminal(agenda []*Candidate) bool {
	for _, c := range agenda {
		if !c.C.Terminal() {
			return false
		}
	}
	return true
}
