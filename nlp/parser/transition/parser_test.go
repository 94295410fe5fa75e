package transition

import (
	"bytes"
	"sync"
	"testing"

	. "arcner/alg/featurevector"
	"arcner/alg/perceptron"
	"arcner/alg/search"
	. "arcner/alg/transition"
	TransitionModel "arcner/alg/transition/model"
	"arcner/nlp/gold"
	"arcner/nlp/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentence struct {
	words, tags []string
	heads       []int
	deps, ents  []string
}

var corpus = []sentence{
	{
		words: []string{"the", "dog", "barks"},
		tags:  []string{"DT", "NN", "VBZ"},
		heads: []int{1, 2, 2},
		deps:  []string{"det", "nsubj", "ROOT"},
		ents:  []string{"O", "O", "O"},
	},
	{
		words: []string{"a", "cat", "sleeps"},
		tags:  []string{"DT", "NN", "VBZ"},
		heads: []int{1, 2, 2},
		deps:  []string{"det", "nsubj", "ROOT"},
		ents:  []string{"O", "O", "O"},
	},
	{
		words: []string{"the", "dog", "chased", "a", "cat"},
		tags:  []string{"DT", "NN", "VBD", "DT", "NN"},
		heads: []int{1, 2, 2, 4, 2},
		deps:  []string{"det", "nsubj", "ROOT", "det", "dobj"},
		ents:  []string{"O", "O", "O", "O", "O"},
	},
	{
		words: []string{"John", "saw", "the", "big", "dog"},
		tags:  []string{"NNP", "VBD", "DT", "JJ", "NN"},
		heads: []int{1, 1, 4, 4, 1},
		deps:  []string{"nsubj", "ROOT", "det", "amod", "dobj"},
		ents:  []string{"U-PER", "O", "O", "O", "O"},
	},
	{
		words: []string{"Mary", "lives", "in", "Paris"},
		tags:  []string{"NNP", "VBZ", "IN", "NNP"},
		heads: []int{1, 1, 1, 2},
		deps:  []string{"nsubj", "ROOT", "prep", "pobj"},
		ents:  []string{"U-PER", "O", "O", "U-LOC"},
	},
	{
		words: []string{"the", "cat", "sat", "on", "a", "mat"},
		tags:  []string{"DT", "NN", "VBD", "IN", "DT", "NN"},
		heads: []int{1, 2, 2, 2, 5, 3},
		deps:  []string{"det", "nsubj", "ROOT", "prep", "det", "pobj"},
		ents:  []string{"O", "O", "O", "O", "O", "O"},
	},
	{
		words: []string{"John", "Smith", "visited", "New", "York"},
		tags:  []string{"NNP", "NNP", "VBD", "NNP", "NNP"},
		heads: []int{1, 2, 2, 4, 2},
		deps:  []string{"compound", "nsubj", "ROOT", "compound", "dobj"},
		ents:  []string{"B-PER", "L-PER", "O", "B-LOC", "L-LOC"},
	},
}

func (s sentence) doc(vocab *types.Vocab) *types.Doc {
	doc := types.NewDoc(vocab, s.words, nil)
	doc.SetTags(s.tags)
	return doc
}

func examples(vocab *types.Vocab) []*gold.Example {
	retval := make([]*gold.Example, len(corpus))
	for i, s := range corpus {
		retval[i] = &gold.Example{
			Doc: s.doc(vocab),
			Gold: &gold.TokenAnnotation{
				Words:    s.words,
				Tags:     s.tags,
				Heads:    s.heads,
				Deps:     s.deps,
				Entities: s.ents,
			},
		}
	}
	return retval
}

// accuracy parses the corpus and returns the share of tokens whose
// decision matches gold
func accuracy(t *testing.T, p *Parser, vocab *types.Vocab) float64 {
	var correct, total int
	for _, s := range corpus {
		doc := s.doc(vocab)
		require.NoError(t, p.Parse(doc))
		for i, tok := range doc.Tokens {
			total++
			switch p.Kind {
			case Dependency:
				if tok.Head == s.heads[i] && tok.Dep == s.deps[i] {
					correct++
				}
			case Entity:
				if tags := gold.TagsFromSpans(doc.Len(), doc.Ents()); tags[i] == s.ents[i] {
					correct++
				}
			}
		}
	}
	return float64(correct) / float64(total)
}

// scramble scores transitions by a hash of the features
func scramble(features []Feature, t Transition) float64 {
	h := uint64(t+1) * 0x9E3779B97F4A7C15
	for _, f := range features {
		h ^= uint64(f)
		h *= 1099511628211
	}
	return float64(h%1000) / 1000
}

func TestParseKind(t *testing.T) {
	for s, want := range map[string]Kind{"dep": Dependency, "parser": Dependency, "ner": Entity, "entity": Entity} {
		k, err := ParseKind(s)
		require.NoError(t, err)
		assert.Equal(t, want, k)
	}
	_, err := ParseKind("tagger")
	assert.Error(t, err)
	assert.Equal(t, "ner", Entity.String())
}

func TestParserLabels(t *testing.T) {
	vocab := types.NewVocab()
	p, err := NewParser(Dependency, Config{Projectivize: true})
	require.NoError(t, err)
	require.NoError(t, p.CollectLabels(examples(vocab)))
	assert.Equal(t, []string{"det", "nsubj", "ROOT", "dobj", "amod", "prep", "pobj", "compound"}, p.Labels.Labels())
	assert.Equal(t, "ROOT", p.RootLabel)

	p.Freeze()
	added, err := p.AddLabel("det")
	assert.NoError(t, err)
	assert.False(t, added)
	_, err = p.AddLabel("xcomp")
	assert.ErrorIs(t, err, ErrFrozen)

	n, err := NewParser(Entity, Config{})
	require.NoError(t, err)
	require.NoError(t, n.CollectLabels(examples(vocab)))
	assert.Equal(t, []string{"PER", "LOC"}, n.Labels.Labels())
}

func TestParserNotTrained(t *testing.T) {
	p, err := NewParser(Dependency, Config{})
	require.NoError(t, err)
	assert.ErrorIs(t, p.Parse(corpus[0].doc(types.NewVocab())), ErrNotTrained)
	assert.ErrorIs(t, p.Save(&bytes.Buffer{}), ErrNotTrained)
}

func TestParserOracle(t *testing.T) {
	vocab := types.NewVocab()
	p, err := NewParser(Dependency, Config{Projectivize: true})
	require.NoError(t, err)
	exs := examples(vocab)
	require.NoError(t, p.CollectLabels(exs))
	p.Freeze()
	for i, ex := range exs {
		transitions, err := p.Oracle(ex)
		require.NoError(t, err)
		s := NewStateBuffer(ex.Doc)
		for _, tr := range transitions {
			p.System.Apply(s, tr)
		}
		require.True(t, s.Terminal())
		doc := corpus[i].doc(vocab)
		s.Commit(doc, p.Labels, nil, p.RootLabel)
		assert.Equal(t, corpus[i].heads, doc.Heads())
		assert.Equal(t, corpus[i].deps, doc.Deps())
	}
}

func TestParserTrainGreedy(t *testing.T) {
	vocab := types.NewVocab()
	p, err := NewParser(Dependency, Config{Iterations: 30, Projectivize: true})
	require.NoError(t, err)
	var averaged int
	p.AfterEpoch = func(e *perceptron.Epoch) {
		averaged++
		assert.NotNil(t, p.Model)
	}
	epochs, err := p.Train(examples(vocab))
	require.NoError(t, err)
	require.Len(t, epochs, 30)
	assert.Equal(t, 30, averaged)
	assert.Greater(t, epochs[0].Loss, epochs[29].Loss)
	assert.Zero(t, epochs[29].Updates)
	assert.Zero(t, epochs[29].Loss)
	assert.Zero(t, epochs[29].Failed)
	assert.Equal(t, 1.0, accuracy(t, p, vocab))
}

func TestParserTrainBeam(t *testing.T) {
	for _, update := range []search.UpdateStrategy{search.EarlyUpdate, search.MaxViolation} {
		vocab := types.NewVocab()
		p, err := NewParser(Dependency, Config{Iterations: 30, BeamWidth: 4, UpdateStrategy: update, Projectivize: true})
		require.NoError(t, err)
		epochs, err := p.Train(examples(vocab))
		require.NoError(t, err)
		last := epochs[len(epochs)-1]
		assert.Greater(t, epochs[0].Loss, last.Loss, update.String())
		assert.Zero(t, last.Loss, update.String())
		assert.Zero(t, last.Updates, update.String())
		assert.GreaterOrEqual(t, accuracy(t, p, vocab), 0.9, update.String())
	}
}

func TestEntityTrainGreedy(t *testing.T) {
	vocab := types.NewVocab()
	p, err := NewParser(Entity, Config{Iterations: 30})
	require.NoError(t, err)
	epochs, err := p.Train(examples(vocab))
	require.NoError(t, err)
	assert.Zero(t, epochs[len(epochs)-1].Updates)
	assert.Zero(t, epochs[len(epochs)-1].Loss)
	assert.Equal(t, 1.0, accuracy(t, p, vocab))
}

func TestParserTrainDropsBadExamples(t *testing.T) {
	vocab := types.NewVocab()
	exs := examples(vocab)
	exs = append(exs, &gold.Example{
		Doc:  types.NewDoc(vocab, []string{"the", "dog"}, nil),
		Gold: &gold.TokenAnnotation{Words: []string{"the", "dog"}, Entities: []string{"I-PER", "X"}},
	})
	p, err := NewParser(Entity, Config{Iterations: 2})
	require.NoError(t, err)
	epochs, err := p.Train(exs)
	require.NoError(t, err)
	for _, e := range epochs {
		assert.Equal(t, 1, e.Failed)
		assert.Equal(t, len(exs), e.Instances)
	}
}

func TestParserSaveLoad(t *testing.T) {
	vocab := types.NewVocab()
	p, err := NewParser(Dependency, Config{Iterations: 5, Projectivize: true})
	require.NoError(t, err)
	_, err = p.Train(examples(vocab))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, p.Save(&buf))
	loaded, err := Load(&buf, Config{})
	require.NoError(t, err)
	assert.Equal(t, p.ID, loaded.ID)
	assert.Equal(t, p.Kind, loaded.Kind)
	assert.Equal(t, p.RootLabel, loaded.RootLabel)
	assert.Equal(t, p.Labels.Labels(), loaded.Labels.Labels())
	assert.True(t, loaded.Labels.Frozen())
	assert.Equal(t, p.Extractor.TemplateStrings(), loaded.Extractor.TemplateStrings())
	assert.Equal(t, p.System.NumTransitions(), loaded.System.NumTransitions())

	for _, s := range corpus {
		want, got := s.doc(vocab), s.doc(vocab)
		require.NoError(t, p.Parse(want))
		require.NoError(t, loaded.Parse(got))
		assert.Equal(t, want.Heads(), got.Heads())
		assert.Equal(t, want.Deps(), got.Deps())
	}
}

func TestParserConcurrentParse(t *testing.T) {
	for _, kind := range []Kind{Dependency, Entity} {
		vocab := types.NewVocab()
		trained, err := NewParser(kind, Config{Iterations: 5, BeamWidth: 2, Projectivize: true})
		require.NoError(t, err)
		_, err = trained.Train(examples(vocab))
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, trained.Save(&buf))
		p, err := Load(&buf, Config{BeamWidth: 2})
		require.NoError(t, err)

		const workers = 4
		docs := make([][]*types.Doc, workers)
		for w := range docs {
			for _, s := range corpus {
				docs[w] = append(docs[w], s.doc(vocab))
			}
		}
		var wg sync.WaitGroup
		errs := make([][]error, workers)
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				errs[w] = p.ParseBatch(docs[w])
			}(w)
		}
		wg.Wait()
		for w := range docs {
			for i, doc := range docs[w] {
				require.NoError(t, errs[w][i])
				assert.Equal(t, docs[0][i].Heads(), doc.Heads(), kind.String())
				assert.Equal(t, docs[0][i].Deps(), doc.Deps(), kind.String())
				assert.Equal(t, docs[0][i].Ents(), doc.Ents(), kind.String())
			}
		}
	}
}

func TestActionTableConcurrentAccess(t *testing.T) {
	labels := types.NewLabelTable("det", "nsubj", "ROOT")
	labels.Freeze()
	for _, sys := range []TransitionSystem{NewArcEager(labels, false), NewBILUO(labels)} {
		var wg sync.WaitGroup
		counts := make([]int, 4)
		for w := range counts {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				counts[w] = sys.NumTransitions()
			}(w)
		}
		wg.Wait()
		for _, n := range counts {
			assert.Equal(t, sys.NumTransitions(), n, sys.Name())
		}
	}
}

func TestParserDeterministic(t *testing.T) {
	vocab := types.NewVocab()
	for _, width := range []int{1, 4} {
		p, err := NewParser(Dependency, Config{BeamWidth: width, Projectivize: true})
		require.NoError(t, err)
		require.NoError(t, p.CollectLabels(examples(vocab)))
		p.Freeze()
		p.Model = &TransitionModel.Fixed{ScoreFunc: scramble}
		for _, s := range corpus {
			first, second := s.doc(vocab), s.doc(vocab)
			require.NoError(t, p.Parse(first))
			require.NoError(t, p.Parse(second))
			assert.Equal(t, first.Heads(), second.Heads())
			assert.Equal(t, first.Deps(), second.Deps())
		}
	}
}

func TestBeamNotWorseThanGreedy(t *testing.T) {
	vocab := types.NewVocab()
	p, err := NewParser(Dependency, Config{Projectivize: true})
	require.NoError(t, err)
	require.NoError(t, p.CollectLabels(examples(vocab)))
	p.Freeze()
	model := &TransitionModel.Fixed{ScoreFunc: scramble}
	greedy := &search.Deterministic{Model: model, TransFunc: p.System, FeatExtractor: p.Extractor}
	for _, width := range []int{1, 2, 8} {
		beam := &search.Beam{Model: model, TransFunc: p.System, FeatExtractor: p.Extractor, Size: width}
		for _, s := range corpus {
			g, err := greedy.Decode(NewStateBuffer(s.doc(vocab)))
			require.NoError(t, err)
			b, err := beam.Decode(NewStateBuffer(s.doc(vocab)))
			require.NoError(t, err)
			assert.GreaterOrEqual(t, b.Score, g.Score-1e-9, "beam %d on %v", width, s.words)
			if width == 1 {
				assert.Equal(t, g.Configuration.(*StateBuffer).Heads(), b.Configuration.(*StateBuffer).Heads())
			}
		}
	}
}

func TestParseBatchIsolatesFailures(t *testing.T) {
	vocab := types.NewVocab()
	p, err := NewParser(Dependency, Config{Features: &FeatureSetup{FeatureGroups: []FeatureGroup{{Group: "words", Features: []string{"B0.w"}}}}})
	require.NoError(t, err)
	p.Freeze()
	boom := Hash(0, []uint64{HashString("boom")})
	p.Model = &TransitionModel.Fixed{ScoreFunc: func(features []Feature, t Transition) float64 {
		if features[0] == boom {
			Invariant("test scorer", "cannot score %v", features)
		}
		return -float64(t)
	}}
	docs := []*types.Doc{
		types.NewDoc(vocab, []string{"the", "dog"}, nil),
		types.NewDoc(vocab, []string{"a", "boom", "here"}, nil),
		types.NewDoc(vocab, []string{"cats"}, nil),
	}
	errs := p.ParseBatch(docs)
	require.Len(t, errs, 3)
	assert.NoError(t, errs[0])
	var inv *InvariantError
	assert.ErrorAs(t, errs[1], &inv)
	assert.NoError(t, errs[2])
	assert.Equal(t, []string{"ROOT"}, docs[2].Deps())
}
