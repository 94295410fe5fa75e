package transition

import (
	"math/rand"
	"testing"

	. "arcner/alg/transition"
	"arcner/nlp/gold"
	"arcner/nlp/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var entityLabels = []string{"PER", "LOC", "ORG"}

// randomSpans picks non-overlapping entity spans over n tokens
func randomSpans(r *rand.Rand, n int) []types.Span {
	var spans []types.Span
	for i := 0; i < n; {
		if r.Intn(3) > 0 {
			i++
			continue
		}
		end := i + 1 + r.Intn(3)
		if end > n {
			end = n
		}
		spans = append(spans, types.Span{Start: i, End: end, Label: entityLabels[r.Intn(len(entityLabels))]})
		i = end
	}
	return spans
}

func TestBILUOActions(t *testing.T) {
	sys := NewBILUO(types.NewLabelTable(entityLabels...))
	assert.Equal(t, 1+4*3, sys.NumTransitions())
	actions := sys.Actions()
	assert.Equal(t, "O", sys.TransitionName(actions.ID(Out, -1)))
	assert.Equal(t, "B-PER", sys.TransitionName(actions.ID(Begin, 0)))
	assert.Equal(t, "U-ORG", sys.TransitionName(actions.ID(Unit, 2)))
	assert.Equal(t, "L-LOC", sys.TransitionName(actions.ID(Last, 1)))
}

func TestBILUOValidity(t *testing.T) {
	labels := types.NewLabelTable(entityLabels...)
	sys := NewBILUO(labels)
	actions := sys.Actions()
	s := NewStateBuffer(testDoc(3))

	assert.True(t, sys.Valid(s, actions.ID(Begin, 0)))
	assert.False(t, sys.Valid(s, actions.ID(In, 0)))
	assert.False(t, sys.Valid(s, actions.ID(Last, 0)))
	sys.Apply(s, actions.ID(Begin, 1))
	assert.Equal(t, 1, s.OpenEntity())
	assert.False(t, sys.Valid(s, actions.ID(Out, -1)))
	assert.False(t, sys.Valid(s, actions.ID(In, 0)))
	assert.True(t, sys.Valid(s, actions.ID(In, 1)))
	sys.Apply(s, actions.ID(In, 1))
	// the last token cannot continue an entity
	assert.False(t, sys.Valid(s, actions.ID(In, 1)))
	assert.Equal(t, []Transition{actions.ID(Last, 1)}, sys.GetTransitions(s, nil))
	sys.Apply(s, actions.ID(Last, 1))
	assert.True(t, s.Terminal())
	assert.Equal(t, -1, s.OpenEntity())

	doc := testDoc(3)
	doc.Tokens[2].SentStart = types.SentStartYes
	s = NewStateBuffer(doc)
	sys.Apply(s, actions.ID(Out, -1))
	assert.False(t, sys.Valid(s, actions.ID(Begin, 0)), "entity would cross a sentence start")
	assert.True(t, sys.Valid(s, actions.ID(Unit, 0)))
}

func TestBILUOGoldPath(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	labels := types.NewLabelTable(entityLabels...)
	sys := NewBILUO(labels)
	for it := 0; it < 300; it++ {
		n := 1 + r.Intn(12)
		spans := randomSpans(r, n)
		tags := gold.TagsFromSpans(n, spans)
		g, err := NewEntityGold(tags, labels)
		require.NoError(t, err)
		oracle, err := sys.Oracle(g)
		require.NoError(t, err)

		doc := testDoc(n)
		s := NewStateBuffer(doc)
		for !s.Terminal() {
			valid := sys.GetTransitions(s, nil)
			require.NotEmpty(t, valid)
			_, min := Costs(oracle, s, valid, nil)
			require.Equal(t, 0, min, "tags %v at %d", tags, s.Cursor())
			sys.Apply(s, oracle.Transition(s))
		}
		s.Commit(doc, nil, labels, "")
		assert.Equal(t, spans, doc.Ents(), "tags %v", tags)
	}
}

func TestBILUORandomWalk(t *testing.T) {
	r := rand.New(rand.NewSource(8))
	labels := types.NewLabelTable(entityLabels...)
	sys := NewBILUO(labels)
	for it := 0; it < 300; it++ {
		n := 1 + r.Intn(12)
		doc := testDoc(n)
		for i := 1; i < n; i++ {
			if r.Intn(4) == 0 {
				doc.Tokens[i].SentStart = types.SentStartYes
			}
		}
		s := NewStateBuffer(doc)
		for !s.Terminal() {
			valid := sys.GetTransitions(s, nil)
			require.NotEmpty(t, valid, "stuck at %v", s)
			sys.Apply(s, valid[r.Intn(len(valid))])
		}
		assert.Equal(t, -1, s.OpenEntity())
		s.Commit(doc, nil, labels, "")
		for _, span := range doc.Ents() {
			for i := span.Start + 1; i < span.End; i++ {
				assert.NotEqual(t, types.SentStartYes, doc.Tokens[i].SentStart, "entity %v crosses a sentence start", span)
			}
		}
	}
}

func TestEntityGold(t *testing.T) {
	labels := types.NewLabelTable("PER")
	g, err := NewEntityGold([]string{"B-PER", "L-PER", "-", "U-GPE", "O"}, labels)
	require.NoError(t, err)
	assert.Equal(t, []EntityTag{
		{Move: Begin, Label: 0},
		{Move: Last, Label: 0},
		{Label: -1, Missing: true},
		{Label: -1, Missing: true},
		{Move: Out, Label: -1},
	}, g.Tags)

	_, err = NewEntityGold([]string{"X-PER"}, labels)
	assert.ErrorIs(t, err, gold.ErrMalformedIOB)
}

func TestBILUOMissingCostsNothing(t *testing.T) {
	labels := types.NewLabelTable(entityLabels...)
	sys := NewBILUO(labels)
	g, err := NewEntityGold([]string{"-", "U-LOC"}, labels)
	require.NoError(t, err)
	oracle, err := sys.Oracle(g)
	require.NoError(t, err)
	s := NewStateBuffer(testDoc(2))
	for _, tr := range sys.GetTransitions(s, nil) {
		assert.Equal(t, 0, oracle.Cost(s, tr), sys.TransitionName(tr))
	}
	sys.Apply(s, sys.Actions().ID(Out, -1))
	assert.Equal(t, 0, oracle.Cost(s, sys.Actions().ID(Unit, 1)))
	assert.Equal(t, 1, oracle.Cost(s, sys.Actions().ID(Unit, 0)))
	assert.Equal(t, 1, oracle.Cost(s, sys.Actions().ID(Out, -1)))
}
