package transition

import (
	"fmt"
	"math/rand"
	"testing"

	. "arcner/alg/transition"
	"arcner/nlp/parser/nonproj"
	"arcner/nlp/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDoc(n int) *types.Doc {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	return types.NewDoc(types.NewVocab(), words, nil)
}

// randomTree attaches every token to a random earlier token of a random
// order; the first token of the order is the root
func randomTree(r *rand.Rand, n int) ([]int, []string) {
	heads := make([]int, n)
	labels := make([]string, n)
	order := r.Perm(n)
	heads[order[0]], labels[order[0]] = order[0], "ROOT"
	for k := 1; k < n; k++ {
		heads[order[k]] = order[r.Intn(k)]
		labels[order[k]] = []string{"nsubj", "dobj", "amod"}[r.Intn(3)]
	}
	return heads, labels
}

// projectiveGold projectivizes a random tree and builds its label table
func projectiveGold(t *testing.T, r *rand.Rand, n int) (*types.LabelTable, *DependencyGold) {
	heads, labels := randomTree(r, n)
	projHeads, projLabels, err := nonproj.Projectivize(heads, labels)
	require.NoError(t, err)
	require.False(t, nonproj.IsNonProjTree(projHeads))
	table := types.NewLabelTable()
	g := &DependencyGold{Heads: projHeads, Labels: make([]int, n)}
	for i, l := range projLabels {
		g.Labels[i], _ = table.Add(l)
	}
	return table, g
}

func TestArcEagerActionIDs(t *testing.T) {
	labels := types.NewLabelTable("nsubj", "dobj")
	sys := NewArcEager(labels, false)
	assert.Equal(t, 3+3*2, sys.NumTransitions())
	actions := sys.Actions()
	assert.Equal(t, "SH", sys.TransitionName(actions.ID(Shift, -1)))
	assert.Equal(t, "LA-nsubj", sys.TransitionName(actions.ID(LeftArc, 0)))
	assert.Equal(t, "RA-dobj", sys.TransitionName(actions.ID(RightArc, 1)))
	assert.Equal(t, "US-dobj", sys.TransitionName(actions.ID(Unshift, 1)))

	same := NewArcEager(types.NewLabelTable("nsubj", "dobj"), true)
	for i := 0; i < sys.NumTransitions(); i++ {
		assert.Equal(t, sys.TransitionName(Transition(i)), same.TransitionName(Transition(i)))
	}
}

func TestArcEagerValidity(t *testing.T) {
	labels := types.NewLabelTable("dep")
	sys := NewArcEager(labels, false)
	actions := sys.Actions()
	s := NewStateBuffer(testDoc(2))

	valid := sys.GetTransitions(s, nil)
	assert.Equal(t, []Transition{actions.ID(Shift, -1)}, valid)

	sys.Apply(s, actions.ID(Shift, -1))
	assert.True(t, sys.Valid(s, actions.ID(LeftArc, 0)))
	assert.True(t, sys.Valid(s, actions.ID(RightArc, 0)))
	assert.False(t, sys.Valid(s, actions.ID(Reduce, -1)))
	assert.False(t, sys.Valid(s, actions.ID(Break, -1)))
	assert.False(t, sys.Valid(s, actions.ID(Unshift, 0)))

	sys.Apply(s, actions.ID(RightArc, 0))
	assert.Equal(t, 0, s.Head(1))
	assert.True(t, sys.Valid(s, actions.ID(Reduce, -1)))
	assert.False(t, sys.Valid(s, actions.ID(Shift, -1)))

	sys.Apply(s, actions.ID(Reduce, -1))
	assert.Equal(t, []Transition{actions.ID(Unshift, 0)}, sys.GetTransitions(s, nil))
	sys.Apply(s, actions.ID(Unshift, 0))
	assert.True(t, s.Terminal())
	assert.Equal(t, []int{0, 0}, s.Heads())

	var err error
	func() {
		defer Recover(&err)
		sys.Apply(s, actions.ID(Shift, -1))
	}()
	var inv *InvariantError
	assert.ErrorAs(t, err, &inv)
}

func TestArcEagerPresetSentenceStarts(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	labels := types.NewLabelTable("dep")
	sys := NewArcEager(labels, false)
	for it := 0; it < 200; it++ {
		doc := testDoc(6)
		k := 1 + r.Intn(5)
		doc.Tokens[k].SentStart = types.SentStartYes
		s := NewStateBuffer(doc)
		for !s.Terminal() {
			valid := sys.GetTransitions(s, nil)
			require.NotEmpty(t, valid, "%v", s)
			if b, ok := s.B(0); ok && b == k && s.StackSize() > 0 {
				for _, tr := range valid {
					move := sys.Actions().Get(tr).Move
					assert.True(t, move == Reduce || move == Break, "%v at %v", move, s)
				}
			}
			sys.Apply(s, valid[r.Intn(len(valid))])
		}
		for i, h := range s.Heads() {
			assert.Equal(t, i < k, h < k, "arc %d -> %d crosses the start at %d", h, i, k)
		}
		assert.Equal(t, types.SentStartYes, s.SentStart(k))
	}
}

func TestArcEagerSegmentation(t *testing.T) {
	labels := types.NewLabelTable("dep")
	sys := NewArcEager(labels, true)
	actions := sys.Actions()
	s := NewStateBuffer(testDoc(3))
	sys.Apply(s, actions.ID(Shift, -1))
	require.True(t, sys.Valid(s, actions.ID(Break, -1)))
	sys.Apply(s, actions.ID(Break, -1))
	assert.Equal(t, 0, s.Head(0))
	assert.Equal(t, 0, s.StackSize())
	assert.Equal(t, types.SentStartYes, s.SentStart(1))

	doc := testDoc(3)
	doc.Tokens[1].SentStart = types.SentStartNo
	s = NewStateBuffer(doc)
	sys.Apply(s, actions.ID(Shift, -1))
	assert.False(t, sys.Valid(s, actions.ID(Break, -1)))
}

func TestArcEagerStaticOracle(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for it := 0; it < 300; it++ {
		n := 1 + r.Intn(10)
		labels, g := projectiveGold(t, r, n)
		sys := NewArcEager(labels, false)
		oracle, err := sys.Oracle(g)
		require.NoError(t, err)
		s := NewStateBuffer(testDoc(n))
		for !s.Terminal() {
			tr := oracle.Transition(s)
			require.NotEqual(t, NoTransition, tr)
			require.Equal(t, 0, oracle.Cost(s, tr), "%s at %v, gold %v", sys.TransitionName(tr), s, g.Heads)
			sys.Apply(s, tr)
		}
		assert.Equal(t, g.Heads, s.Heads())
		assert.Equal(t, g.Labels, s.Labels())
	}
}

func TestArcEagerZeroCostExists(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for it := 0; it < 500; it++ {
		n := 1 + r.Intn(10)
		labels, g := projectiveGold(t, r, n)
		sys := NewArcEager(labels, false)
		oracle, err := sys.Oracle(g)
		require.NoError(t, err)
		s := NewStateBuffer(testDoc(n))
		for !s.Terminal() {
			valid := sys.GetTransitions(s, nil)
			require.NotEmpty(t, valid)
			_, min := Costs(oracle, s, valid, nil)
			require.Equal(t, 0, min, "no zero-cost transition at %v, gold %v", s, g.Heads)
			sys.Apply(s, valid[r.Intn(len(valid))])
		}
	}
}

// segmentedGold concatenates projective random trees, one per sentence;
// some sentence starts are preset on the doc
func segmentedGold(t *testing.T, r *rand.Rand) (*types.Doc, *types.LabelTable, *DependencyGold) {
	table := types.NewLabelTable()
	g := &DependencyGold{}
	var starts []int
	for sent := 1 + r.Intn(4); sent > 0; sent-- {
		n := 1 + r.Intn(6)
		heads, labels := randomTree(r, n)
		projHeads, projLabels, err := nonproj.Projectivize(heads, labels)
		require.NoError(t, err)
		offset := len(g.Heads)
		starts = append(starts, offset)
		for i := range projHeads {
			id, _ := table.Add(projLabels[i])
			g.Heads = append(g.Heads, offset+projHeads[i])
			g.Labels = append(g.Labels, id)
			start := types.SentStartNo
			if i == 0 {
				start = types.SentStartYes
			}
			g.SentStarts = append(g.SentStarts, start)
		}
	}
	doc := testDoc(len(g.Heads))
	for _, start := range starts[1:] {
		if r.Intn(2) == 0 {
			doc.Tokens[start].SentStart = types.SentStartYes
		}
	}
	return doc, table, g
}

func TestArcEagerZeroCostExistsSegmented(t *testing.T) {
	r := rand.New(rand.NewSource(23))
	for it := 0; it < 500; it++ {
		doc, labels, g := segmentedGold(t, r)
		sys := NewArcEager(labels, true)
		oracle, err := sys.Oracle(g)
		require.NoError(t, err)
		s := NewStateBuffer(doc)
		for !s.Terminal() {
			valid := sys.GetTransitions(s, nil)
			require.NotEmpty(t, valid)
			_, min := Costs(oracle, s, valid, nil)
			require.Equal(t, 0, min, "no zero-cost transition at %v, gold %v %v", s, g.Heads, g.SentStarts)
			sys.Apply(s, valid[r.Intn(len(valid))])
		}
	}
}

func TestArcEagerOracleCosts(t *testing.T) {
	// 0 <- 1 -> 2, 1 is the root
	labels := types.NewLabelTable("nsubj", "dobj", "ROOT")
	sys := NewArcEager(labels, false)
	actions := sys.Actions()
	oracle, err := sys.Oracle(&DependencyGold{Heads: []int{1, 1, 1}, Labels: []int{0, 2, 1}})
	require.NoError(t, err)
	s := NewStateBuffer(testDoc(3))
	sys.Apply(s, actions.ID(Shift, -1))

	assert.Equal(t, 0, oracle.Cost(s, actions.ID(LeftArc, 0)))
	assert.Equal(t, 1, oracle.Cost(s, actions.ID(LeftArc, 1)))
	// 1 would take 0 as head and lose its own root arc
	assert.Equal(t, 2, oracle.Cost(s, actions.ID(RightArc, 0)))
	// 0 would never get its head
	assert.Equal(t, 1, oracle.Cost(s, actions.ID(Shift, -1)))

	_, err = sys.Oracle(&EntityGold{})
	assert.Error(t, err)
}
