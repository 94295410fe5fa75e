package transition

import (
	. "arcner/alg/transition"
	"arcner/nlp/gold"
	"arcner/nlp/types"

	"github.com/pkg/errors"
)

// BILUO tags one token per transition, keeping at most one entity open.
// BEGIN and IN need a next token that is not a preset sentence start, so
// an entity never crosses a sentence boundary.
type BILUO struct {
	Labels *types.LabelTable

	actions *actionCache
}

var _ TransitionSystem = &BILUO{}

var (
	biluoFixed   = []Move{Out}
	biluoLabeled = []Move{Begin, In, Last, Unit}
)

func NewBILUO(labels *types.LabelTable) *BILUO {
	return &BILUO{
		Labels:  labels,
		actions: &actionCache{fixed: biluoFixed, labeled: biluoLabeled},
	}
}

func (e *BILUO) Actions() *Actions {
	return e.actions.get(e.Labels)
}

func (e *BILUO) Name() string {
	return "BILUO"
}

func (e *BILUO) NumTransitions() int {
	return e.Actions().Len()
}

func (e *BILUO) TransitionName(t Transition) string {
	return e.Actions().Name(t)
}

// continues reports whether an entity may extend past B0
func (e *BILUO) continues(s *StateBuffer) bool {
	next, ok := s.B(1)
	return ok && s.Preset(next) != types.SentStartYes
}

func (e *BILUO) valid(s *StateBuffer, act Action) bool {
	if s.BufferEmpty() {
		return false
	}
	open := s.OpenEntity()
	switch act.Move {
	case Out, Unit:
		return open < 0
	case Begin:
		return open < 0 && e.continues(s)
	case In:
		return open == act.Label && e.continues(s)
	case Last:
		return open >= 0 && open == act.Label
	}
	return false
}

func (e *BILUO) GetTransitions(conf Configuration, into []Transition) []Transition {
	s := state(conf)
	for _, act := range e.Actions().List {
		if e.valid(s, act) {
			into = append(into, act.ID)
		}
	}
	return into
}

func (e *BILUO) Valid(conf Configuration, t Transition) bool {
	actions := e.Actions()
	if t < 0 || int(t) >= actions.Len() {
		return false
	}
	return e.valid(state(conf), actions.List[t])
}

func (e *BILUO) Apply(conf Configuration, t Transition) {
	s := state(conf)
	act := e.Actions().Get(t)
	if !e.valid(s, act) {
		Invariant("BILUO.Apply", "%s is not valid at %v", act.Name, s)
	}
	b, _ := s.B(0)
	s.SetEntity(b, act.Move, act.Label)
	s.Advance()
	s.last = t
}

func (e *BILUO) Transition(from Configuration, t Transition) Configuration {
	conf := from.Copy()
	e.Apply(conf, t)
	return conf
}

// EntityTag is the gold entity decision for one token
type EntityTag struct {
	Move    Move
	Label   int
	Missing bool
}

// EntityGold holds one tag per doc token
type EntityGold struct {
	Tags []EntityTag
}

// NewEntityGold converts BILUO strings; missing tags, and labels the table
// does not know, carry no signal
func NewEntityGold(tags []string, labels *types.LabelTable) (*EntityGold, error) {
	g := &EntityGold{Tags: make([]EntityTag, len(tags))}
	for i, tag := range tags {
		if tag == gold.MissingTag || tag == "" {
			g.Tags[i] = EntityTag{Label: -1, Missing: true}
			continue
		}
		prefix, label := gold.SplitTag(tag)
		var move Move
		switch prefix {
		case "O":
			g.Tags[i] = EntityTag{Move: Out, Label: -1}
			continue
		case "B":
			move = Begin
		case "I":
			move = In
		case "L":
			move = Last
		case "U":
			move = Unit
		default:
			return nil, errors.Wrapf(gold.ErrMalformedIOB, "tag %q at %d", tag, i)
		}
		id, ok := labels.ID(label)
		if !ok {
			g.Tags[i] = EntityTag{Label: -1, Missing: true}
			continue
		}
		g.Tags[i] = EntityTag{Move: move, Label: id}
	}
	return g, nil
}

func (e *BILUO) Oracle(g interface{}) (Oracle, error) {
	eg, ok := g.(*EntityGold)
	if !ok {
		return nil, errors.Errorf("BILUO oracle needs *EntityGold, got %T", g)
	}
	return &BILUOOracle{System: e, Gold: eg}, nil
}

// BILUOOracle costs 1 for a transition whose tag of B0 differs from a
// known gold tag
type BILUOOracle struct {
	System *BILUO
	Gold   *EntityGold
}

var _ Oracle = &BILUOOracle{}

func (o *BILUOOracle) Name() string {
	return "BILUO oracle"
}

func (o *BILUOOracle) Transition(conf Configuration) Transition {
	return BestTransition(o.System, o, conf)
}

func (o *BILUOOracle) Cost(conf Configuration, t Transition) int {
	s := state(conf)
	b, ok := s.B(0)
	if !ok || b >= len(o.Gold.Tags) {
		Invariant("BILUOOracle.Cost", "no gold tag for cursor %d", s.Cursor())
	}
	g := o.Gold.Tags[b]
	if g.Missing {
		return 0
	}
	act := o.System.Actions().Get(t)
	if act.Move == g.Move && (g.Move == Out || act.Label == g.Label) {
		return 0
	}
	return 1
}
