package transition

import (
	"fmt"
	"sync"

	. "arcner/alg/transition"
	"arcner/nlp/types"
)

// Move is the closed set of action kinds of both systems
type Move byte

const (
	Shift Move = iota
	Reduce
	LeftArc
	RightArc
	Break
	Unshift
	Out
	Begin
	In
	Last
	Unit
)

var moveNames = [...]string{
	Shift:    "SH",
	Reduce:   "RE",
	LeftArc:  "LA",
	RightArc: "RA",
	Break:    "BR",
	Unshift:  "US",
	Out:      "O",
	Begin:    "B",
	In:       "I",
	Last:     "L",
	Unit:     "U",
}

func (m Move) String() string {
	if int(m) < len(moveNames) {
		return moveNames[m]
	}
	return fmt.Sprintf("Move(%d)", m)
}

// Labeled reports whether the move is registered once per label
func (m Move) Labeled() bool {
	switch m {
	case LeftArc, RightArc, Unshift, Begin, In, Last, Unit:
		return true
	}
	return false
}

// Action is an immutable action descriptor; Label is -1 for unlabeled moves
type Action struct {
	ID    Transition
	Move  Move
	Label int
	Name  string
}

// Actions is the registered action table of a system. Fixed moves come
// first, then each labeled move once per label in label-table order, so
// ids only depend on the ordered label list.
type Actions struct {
	List []Action
	// first[m] is the id of move m with label 0
	first map[Move]Transition
	// numLabels the table was built for
	numLabels int
}

func NewActions(fixed, labeled []Move, labels *types.LabelTable) *Actions {
	a := &Actions{first: make(map[Move]Transition, len(fixed)+len(labeled)), numLabels: labels.Len()}
	for _, m := range fixed {
		a.first[m] = Transition(len(a.List))
		a.List = append(a.List, Action{ID: Transition(len(a.List)), Move: m, Label: -1, Name: m.String()})
	}
	for _, m := range labeled {
		a.first[m] = Transition(len(a.List))
		for l := 0; l < labels.Len(); l++ {
			a.List = append(a.List, Action{
				ID:    Transition(len(a.List)),
				Move:  m,
				Label: l,
				Name:  m.String() + "-" + labels.Label(l),
			})
		}
	}
	return a
}

func (a *Actions) Len() int {
	return len(a.List)
}

func (a *Actions) Get(t Transition) Action {
	if t < 0 || int(t) >= len(a.List) {
		Invariant("Actions.Get", "unknown transition %d", t)
	}
	return a.List[t]
}

// ID of move m with label l (ignored for unlabeled moves)
func (a *Actions) ID(m Move, l int) Transition {
	first, ok := a.first[m]
	if !ok {
		Invariant("Actions.ID", "move %v is not registered", m)
	}
	if m.Labeled() {
		if l < 0 || l >= a.numLabels {
			Invariant("Actions.ID", "label %d out of range for %v", l, m)
		}
		return first + Transition(l)
	}
	return first
}

func (a *Actions) Name(t Transition) string {
	if t < 0 || int(t) >= len(a.List) {
		return fmt.Sprintf("%d", t)
	}
	return a.List[t].Name
}

// actionCache holds the action table of a system, rebuilt under lock when
// labels were added since it was built. Decoders share it across goroutines.
type actionCache struct {
	fixed, labeled []Move

	mu      sync.Mutex
	actions *Actions
}

func (c *actionCache) get(labels *types.LabelTable) *Actions {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.actions == nil || c.actions.numLabels != labels.Len() {
		c.actions = NewActions(c.fixed, c.labeled, labels)
	}
	return c.actions
}
