package transition

import (
	"fmt"
	"strings"

	"arcner/alg"
	. "arcner/alg/featurevector"
	. "arcner/alg/transition"
	"arcner/nlp/types"
	"arcner/util"
)

// tokenAttrs are the immutable feature values of a token. They hash the
// strings rather than vocab ids, so a loaded model does not depend on the
// order its vocab was filled in.
type tokenAttrs struct {
	Orth, Lemma, Tag, Shape, Suffix uint64
}

// entTag is the entity decision for a token; label -1 for OUT
type entTag struct {
	Move  Move
	Label int
}

// StateBuffer is the mutable parse state over a fixed token sequence.
// Token indices are positions in the doc; heads are -1 until assigned and
// a root is its own head.
type StateBuffer struct {
	attrs  []tokenAttrs
	preset []int8

	heads      []int
	labels     []int
	sentStarts []int8
	ents       []entTag
	leftmost   []int
	rightmost  []int
	lValency   []int
	rValency   []int

	stack  *alg.StackArray
	cursor int

	entStart, entLabel int
	last               Transition
}

var _ Configuration = &StateBuffer{}

func NewStateBuffer(doc *types.Doc) *StateBuffer {
	n := doc.Len()
	s := &StateBuffer{
		attrs:      make([]tokenAttrs, n),
		preset:     make([]int8, n),
		heads:      make([]int, n),
		labels:     make([]int, n),
		sentStarts: make([]int8, n),
		ents:       make([]entTag, n),
		leftmost:   make([]int, n),
		rightmost:  make([]int, n),
		lValency:   make([]int, n),
		rValency:   make([]int, n),
		stack:      alg.NewStackArray(n),
		entStart:   -1,
		entLabel:   -1,
		last:       NoTransition,
	}
	for i, tok := range doc.Tokens {
		s.attrs[i] = tokenAttrs{
			Orth:   HashString(tok.Text),
			Lemma:  HashString(doc.Vocab.String(tok.Lemma)),
			Tag:    HashString(doc.Vocab.String(tok.Tag)),
			Shape:  HashString(util.Signature(tok.Text)),
			Suffix: HashString(util.Suffix(strings.ToLower(tok.Text), 3)),
		}
		s.preset[i] = tok.SentStart
		s.heads[i], s.labels[i] = -1, -1
		s.leftmost[i], s.rightmost[i] = -1, -1
		s.ents[i] = entTag{Label: -1}
		s.sentStarts[i] = tok.SentStart
	}
	return s
}

func (s *StateBuffer) Len() int {
	return len(s.heads)
}

// S is the i-th stack item from the top
func (s *StateBuffer) S(i int) (int, bool) {
	return s.stack.Index(i)
}

// B is the i-th unprocessed token
func (s *StateBuffer) B(i int) (int, bool) {
	if idx := s.cursor + i; idx < len(s.heads) {
		return idx, true
	}
	return 0, false
}

// P is the i-th processed token before the cursor, P(1) being the last one
func (s *StateBuffer) P(i int) (int, bool) {
	if idx := s.cursor - i; i > 0 && idx >= 0 {
		return idx, true
	}
	return 0, false
}

// E is the i-th token of the open entity
func (s *StateBuffer) E(i int) (int, bool) {
	if s.entStart < 0 {
		return 0, false
	}
	if idx := s.entStart + i; idx < s.cursor {
		return idx, true
	}
	return 0, false
}

func (s *StateBuffer) StackSize() int {
	return s.stack.Size()
}

func (s *StateBuffer) Cursor() int {
	return s.cursor
}

func (s *StateBuffer) BufferEmpty() bool {
	return s.cursor >= len(s.heads)
}

func (s *StateBuffer) InStack(token int) bool {
	return s.stack.Contains(token)
}

// InBuffer reports whether token is not yet processed
func (s *StateBuffer) InBuffer(token int) bool {
	return token >= s.cursor && token < len(s.heads)
}

func (s *StateBuffer) Head(token int) int {
	return s.heads[token]
}

func (s *StateBuffer) HasHead(token int) bool {
	return s.heads[token] >= 0
}

func (s *StateBuffer) Label(token int) int {
	return s.labels[token]
}

func (s *StateBuffer) LeftChild(token int) int {
	return s.leftmost[token]
}

func (s *StateBuffer) RightChild(token int) int {
	return s.rightmost[token]
}

func (s *StateBuffer) Valency(token int) (int, int) {
	return s.lValency[token], s.rValency[token]
}

// Preset is the sentence-start flag the doc came with
func (s *StateBuffer) Preset(token int) int8 {
	return s.preset[token]
}

func (s *StateBuffer) SentStart(token int) int8 {
	return s.sentStarts[token]
}

// OpenEntity returns the label of the open entity, -1 if none
func (s *StateBuffer) OpenEntity() int {
	return s.entLabel
}

func (s *StateBuffer) LastTransition() Transition {
	return s.last
}

func (s *StateBuffer) Push(token int) {
	s.stack.Push(token)
}

func (s *StateBuffer) Pop() int {
	token, ok := s.stack.Pop()
	if !ok {
		Invariant("StateBuffer.Pop", "pop from an empty stack")
	}
	return token
}

// Advance moves the cursor past B0
func (s *StateBuffer) Advance() {
	if s.BufferEmpty() {
		Invariant("StateBuffer.Advance", "cursor already at the end")
	}
	s.cursor++
}

// AddArc attaches child to head. Relabelling an attached token or closing
// a cycle are invariant violations.
func (s *StateBuffer) AddArc(head, child, label int) {
	if s.heads[child] >= 0 {
		Invariant("StateBuffer.AddArc", "token %d already has head %d", child, s.heads[child])
	}
	if head == child || s.dominates(child, head) {
		Invariant("StateBuffer.AddArc", "arc %d -> %d closes a cycle", head, child)
	}
	s.heads[child], s.labels[child] = head, label
	if child < head {
		s.lValency[head]++
		if s.leftmost[head] < 0 || child < s.leftmost[head] {
			s.leftmost[head] = child
		}
	} else {
		s.rValency[head]++
		if s.rightmost[head] < 0 || child > s.rightmost[head] {
			s.rightmost[head] = child
		}
	}
}

// SetRoot makes a headless token a root; label may be -1
func (s *StateBuffer) SetRoot(token, label int) {
	if s.heads[token] >= 0 {
		Invariant("StateBuffer.SetRoot", "token %d already has head %d", token, s.heads[token])
	}
	s.heads[token], s.labels[token] = token, label
}

func (s *StateBuffer) SetSentStart(token int, value int8) {
	s.sentStarts[token] = value
}

func (s *StateBuffer) dominates(token, other int) bool {
	for cur, steps := other, 0; steps <= len(s.heads); steps++ {
		next := s.heads[cur]
		if next < 0 || next == cur {
			return false
		}
		if next == token {
			return true
		}
		cur = next
	}
	return false
}

// SetEntity records the entity decision for B0 and updates the open entity
func (s *StateBuffer) SetEntity(token int, move Move, label int) {
	s.ents[token] = entTag{move, label}
	switch move {
	case Begin:
		s.entStart, s.entLabel = token, label
	case Last, Unit, Out:
		s.entStart, s.entLabel = -1, -1
	}
}

func (s *StateBuffer) Entity(token int) (Move, int, bool) {
	if token >= s.cursor || s.ents[token].Label < 0 && s.ents[token].Move != Out {
		return 0, -1, false
	}
	return s.ents[token].Move, s.ents[token].Label, true
}

// Terminal: the whole buffer is consumed and the stack is empty
func (s *StateBuffer) Terminal() bool {
	return s.BufferEmpty() && s.stack.Size() == 0
}

func (s *StateBuffer) Copy() Configuration {
	return s.CopyState()
}

// CopyState copies the mutable slots; token attributes are shared
func (s *StateBuffer) CopyState() *StateBuffer {
	retval := *s
	retval.heads = append([]int(nil), s.heads...)
	retval.labels = append([]int(nil), s.labels...)
	retval.sentStarts = append([]int8(nil), s.sentStarts...)
	retval.ents = append([]entTag(nil), s.ents...)
	retval.leftmost = append([]int(nil), s.leftmost...)
	retval.rightmost = append([]int(nil), s.rightmost...)
	retval.lValency = append([]int(nil), s.lValency...)
	retval.rValency = append([]int(nil), s.rValency...)
	retval.stack = s.stack.Copy()
	return &retval
}

// Heads returns a copy of the assigned heads
func (s *StateBuffer) Heads() []int {
	return append([]int(nil), s.heads...)
}

func (s *StateBuffer) Labels() []int {
	return append([]int(nil), s.labels...)
}

// Commit copies the assigned annotation onto doc. depLabels is consulted
// when the state has arcs, entLabels when it has entity decisions; either
// may be nil.
func (s *StateBuffer) Commit(doc *types.Doc, depLabels, entLabels *types.LabelTable, rootLabel string) {
	if doc.Len() != s.Len() {
		Invariant("StateBuffer.Commit", "doc has %d tokens, state %d", doc.Len(), s.Len())
	}
	for i := range doc.Tokens {
		tok := &doc.Tokens[i]
		if depLabels != nil {
			tok.Head = s.heads[i]
			if tok.Head < 0 {
				tok.Head = i
			}
			switch {
			case s.labels[i] >= 0:
				tok.Dep = depLabels.Label(s.labels[i])
			case tok.Head == i:
				tok.Dep = rootLabel
			default:
				tok.Dep = ""
			}
			if i == 0 || s.sentStarts[i] == types.SentStartYes {
				tok.SentStart = types.SentStartYes
			} else {
				tok.SentStart = types.SentStartNo
			}
		}
		if entLabels != nil {
			ent := s.ents[i]
			switch ent.Move {
			case Begin, Unit:
				tok.EntIOB, tok.EntType = types.IOBBegin, entLabels.Label(ent.Label)
			case In, Last:
				tok.EntIOB, tok.EntType = types.IOBIn, entLabels.Label(ent.Label)
			case Out:
				tok.EntIOB, tok.EntType = types.IOBOut, ""
			}
		}
	}
}

func (s *StateBuffer) String() string {
	return fmt.Sprintf("stack=%v cursor=%d/%d heads=%v", s.stack.Array, s.cursor, len(s.heads), s.heads)
}
