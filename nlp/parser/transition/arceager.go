package transition

import (
	"fmt"

	. "arcner/alg/transition"
	"arcner/nlp/types"

	"github.com/pkg/errors"
)

// ArcEager is the arc-eager system with the root after the last token.
// UNSHIFT pops a headless S0 once the buffer is consumed and makes it a
// labelled root; BREAK ends a sentence at B0, its roots get no label.
//
//	SH    (S,    b|B) => (S|b, B)
//	RE    (S|s,  B)   => (S,   B)           s has a head
//	LA-l  (S|s,  b|B) => (S,   b|B) + b-l->s s has no head
//	RA-l  (S|s,  b|B) => (S|s|b, B) + s-l->b
//	BR    (S,    b|B) => ([],  b|B)          headless items of S become roots
//	US-l  (S|s,  [])  => (S,   [])           s becomes a root labelled l
type ArcEager struct {
	Labels *types.LabelTable
	// Segment allows BREAK where the doc has no preset sentence start
	Segment bool

	actions *actionCache
}

var _ TransitionSystem = &ArcEager{}

var (
	arcEagerFixed   = []Move{Shift, Reduce, Break}
	arcEagerLabeled = []Move{LeftArc, RightArc, Unshift}
)

func NewArcEager(labels *types.LabelTable, segment bool) *ArcEager {
	return &ArcEager{
		Labels:  labels,
		Segment: segment,
		actions: &actionCache{fixed: arcEagerFixed, labeled: arcEagerLabeled},
	}
}

// Actions returns the action table, rebuilt if labels were added since
func (a *ArcEager) Actions() *Actions {
	return a.actions.get(a.Labels)
}

func (a *ArcEager) Name() string {
	return "ArcEager"
}

func (a *ArcEager) NumTransitions() int {
	return a.Actions().Len()
}

func (a *ArcEager) TransitionName(t Transition) string {
	return a.Actions().Name(t)
}

func state(conf Configuration) *StateBuffer {
	s, ok := conf.(*StateBuffer)
	if !ok {
		Invariant("state", "got wrong configuration type %T", conf)
	}
	return s
}

func (a *ArcEager) canShift(s *StateBuffer) bool {
	b, ok := s.B(0)
	return ok && !(s.StackSize() > 0 && s.Preset(b) == types.SentStartYes)
}

func (a *ArcEager) canArc(s *StateBuffer) bool {
	b, ok := s.B(0)
	return ok && s.StackSize() > 0 && s.Preset(b) != types.SentStartYes
}

func (a *ArcEager) canLeft(s *StateBuffer) bool {
	if !a.canArc(s) {
		return false
	}
	s0, _ := s.S(0)
	return !s.HasHead(s0)
}

func (a *ArcEager) canReduce(s *StateBuffer) bool {
	s0, ok := s.S(0)
	return ok && s.HasHead(s0)
}

func (a *ArcEager) canUnshift(s *StateBuffer) bool {
	s0, ok := s.S(0)
	return ok && s.BufferEmpty() && !s.HasHead(s0)
}

func (a *ArcEager) canBreak(s *StateBuffer) bool {
	b, ok := s.B(0)
	if !ok || s.StackSize() == 0 || s.Cursor() == 0 {
		return false
	}
	preset := s.Preset(b)
	return preset != types.SentStartNo && (a.Segment || preset == types.SentStartYes)
}

func (a *ArcEager) valid(s *StateBuffer, m Move) bool {
	switch m {
	case Shift:
		return a.canShift(s)
	case Reduce:
		return a.canReduce(s)
	case LeftArc:
		return a.canLeft(s)
	case RightArc:
		return a.canArc(s)
	case Break:
		return a.canBreak(s)
	case Unshift:
		return a.canUnshift(s)
	}
	return false
}

func (a *ArcEager) GetTransitions(conf Configuration, into []Transition) []Transition {
	s := state(conf)
	for _, act := range a.Actions().List {
		if a.valid(s, act.Move) {
			into = append(into, act.ID)
		}
	}
	return into
}

func (a *ArcEager) Valid(conf Configuration, t Transition) bool {
	actions := a.Actions()
	if t < 0 || int(t) >= actions.Len() {
		return false
	}
	return a.valid(state(conf), actions.List[t].Move)
}

func (a *ArcEager) Apply(conf Configuration, t Transition) {
	s := state(conf)
	act := a.Actions().Get(t)
	if !a.valid(s, act.Move) {
		Invariant("ArcEager.Apply", "%s is not valid at %v", act.Name, s)
	}
	switch act.Move {
	case Shift:
		b, _ := s.B(0)
		s.Push(b)
		s.Advance()
	case Reduce:
		s.Pop()
	case LeftArc:
		b, _ := s.B(0)
		s.AddArc(b, s.Pop(), act.Label)
	case RightArc:
		s0, _ := s.S(0)
		b, _ := s.B(0)
		s.AddArc(s0, b, act.Label)
		s.Push(b)
		s.Advance()
	case Break:
		b, _ := s.B(0)
		s.SetSentStart(b, types.SentStartYes)
		for s.StackSize() > 0 {
			if top := s.Pop(); !s.HasHead(top) {
				s.SetRoot(top, -1)
			}
		}
	case Unshift:
		s.SetRoot(s.Pop(), act.Label)
	}
	s.last = t
}

func (a *ArcEager) Transition(from Configuration, t Transition) Configuration {
	conf := from.Copy()
	a.Apply(conf, t)
	return conf
}

// DependencyGold is the arc-eager gold of one doc over its tokens: heads
// are absolute (a root is its own head, -1 unknown), labels are label ids
// (-1 unknown)
type DependencyGold struct {
	Heads      []int
	Labels     []int
	SentStarts []int8
}

func (a *ArcEager) Oracle(gold interface{}) (Oracle, error) {
	g, ok := gold.(*DependencyGold)
	if !ok {
		return nil, errors.Errorf("arc-eager oracle needs *DependencyGold, got %T", gold)
	}
	if len(g.Labels) != len(g.Heads) {
		return nil, errors.Errorf("gold has %d heads and %d labels", len(g.Heads), len(g.Labels))
	}
	o := &ArcEagerOracle{System: a, Gold: g, children: make([][]int, len(g.Heads))}
	for child, head := range g.Heads {
		if head >= 0 && head != child {
			o.children[head] = append(o.children[head], child)
		}
	}
	return o, nil
}

// ArcEagerOracle is the dynamic oracle of Goldberg and Nivre (2012): the
// cost of a transition is the number of gold arcs, still reachable before
// it, that it makes unreachable. A gold root hangs off the virtual root
// after the last token, so its arc stays reachable while it is on the
// stack or in the buffer.
type ArcEagerOracle struct {
	System   *ArcEager
	Gold     *DependencyGold
	children [][]int
}

var _ Oracle = &ArcEagerOracle{}

func (o *ArcEagerOracle) Name() string {
	return "ArcEager dynamic oracle"
}

func (o *ArcEagerOracle) Transition(conf Configuration) Transition {
	return BestTransition(o.System, o, conf)
}

func (o *ArcEagerOracle) Cost(conf Configuration, t Transition) int {
	s := state(conf)
	act := o.System.Actions().Get(t)
	if s.Len() != len(o.Gold.Heads) {
		Invariant("ArcEagerOracle.Cost", "gold has %d tokens, state %d", len(o.Gold.Heads), s.Len())
	}
	s0, _ := s.S(0)
	b, _ := s.B(0)
	var cost int
	switch act.Move {
	case Shift:
		cost = o.shiftCost(s, b) + o.startCost(s, b)
	case Reduce:
		cost = o.bufferChildren(s, s0)
	case LeftArc:
		cost = o.leftCost(s, s0, b, act.Label) + o.startCost(s, b)
	case RightArc:
		cost = o.rightCost(s, s0, b, act.Label) + o.startCost(s, b)
	case Break:
		cost = o.breakCost(s, b)
	case Unshift:
		if o.Gold.Heads[s0] == s0 {
			cost = o.labelCost(s0, act.Label)
		}
	}
	return cost
}

// headInBuffer reports whether the gold head of token can still be
// assigned from the buffer side: it is in the buffer or the virtual root
func (o *ArcEagerOracle) headInBuffer(s *StateBuffer, token int) bool {
	h := o.Gold.Heads[token]
	return h >= 0 && (h == token || s.InBuffer(h))
}

func (o *ArcEagerOracle) headInStack(s *StateBuffer, token int) bool {
	h := o.Gold.Heads[token]
	return h >= 0 && h != token && s.InStack(h)
}

func (o *ArcEagerOracle) labelCost(token, label int) int {
	if gold := o.Gold.Labels[token]; gold >= 0 && gold != label {
		return 1
	}
	return 0
}

func (o *ArcEagerOracle) bufferChildren(s *StateBuffer, token int) int {
	cost := 0
	for _, d := range o.children[token] {
		if s.InBuffer(d) {
			cost++
		}
	}
	return cost
}

// headlessStackChildren are gold children of token still waiting on the
// stack for a head
func (o *ArcEagerOracle) headlessStackChildren(s *StateBuffer, token int) int {
	cost := 0
	for _, d := range o.children[token] {
		if !s.HasHead(d) && s.InStack(d) {
			cost++
		}
	}
	return cost
}

func (o *ArcEagerOracle) shiftCost(s *StateBuffer, b int) int {
	cost := o.headlessStackChildren(s, b)
	if o.headInStack(s, b) {
		cost++
	}
	return cost
}

func (o *ArcEagerOracle) leftCost(s *StateBuffer, s0, b, label int) int {
	cost := o.bufferChildren(s, s0)
	if o.Gold.Heads[s0] == b {
		cost += o.labelCost(s0, label)
	} else if o.headInBuffer(s, s0) {
		cost++
	}
	return cost
}

func (o *ArcEagerOracle) rightCost(s *StateBuffer, s0, b, label int) int {
	cost := o.headlessStackChildren(s, b)
	if o.Gold.Heads[b] == s0 {
		cost += o.labelCost(b, label)
	} else if o.headInBuffer(s, b) || o.headInStack(s, b) {
		cost++
	}
	return cost
}

func (o *ArcEagerOracle) breakCost(s *StateBuffer, b int) int {
	cost := 0
	for i := 0; i < s.StackSize(); i++ {
		item, _ := s.S(i)
		cost += o.bufferChildren(s, item)
		if h := o.Gold.Heads[item]; !s.HasHead(item) && h >= 0 && h != item && s.InBuffer(h) {
			cost++
		}
	}
	if o.goldStart(b) == types.SentStartNo {
		cost++
	}
	return cost
}

// startCost penalizes continuing a sentence across a gold sentence start
// when BREAK could end it
func (o *ArcEagerOracle) startCost(s *StateBuffer, b int) int {
	if o.goldStart(b) == types.SentStartYes && o.System.canBreak(s) {
		return 1
	}
	return 0
}

func (o *ArcEagerOracle) goldStart(token int) int8 {
	if token < len(o.Gold.SentStarts) {
		return o.Gold.SentStarts[token]
	}
	return types.SentStartUnknown
}

func (o *ArcEagerOracle) String() string {
	return fmt.Sprintf("%s over %d tokens", o.Name(), len(o.Gold.Heads))
}
