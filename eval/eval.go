package eval

import (
	"fmt"
	"sort"

	"arcner/nlp/gold"
	"arcner/nlp/types"
)

func Precision(truePositives, testPositives int) float64 {
	if testPositives == 0 {
		return 0
	}
	return float64(truePositives) / float64(testPositives)
}

func Recall(truePositives, conditionPositives int) float64 {
	if conditionPositives == 0 {
		return 0
	}
	return float64(truePositives) / float64(conditionPositives)
}

func F1(precision, recall float64) float64 {
	if precision+recall == 0 {
		return 0
	}
	return 2.0 * (precision * recall) / (precision + recall)
}

// Result counts decisions of one kind
type Result struct {
	TP, FP, FN int
}

func (r *Result) TestPositives() int {
	return r.TP + r.FP
}

func (r *Result) ConditionPositives() int {
	return r.TP + r.FN
}

func (r *Result) Precision() float64 {
	return Precision(r.TP, r.TestPositives())
}

func (r *Result) Recall() float64 {
	return Recall(r.TP, r.ConditionPositives())
}

func (r *Result) F1() float64 {
	return F1(r.Precision(), r.Recall())
}

func (r *Result) Add(other *Result) {
	r.TP += other.TP
	r.FP += other.FP
	r.FN += other.FN
}

func (r *Result) String() string {
	return fmt.Sprintf("P %.2f R %.2f F %.2f", 100*r.Precision(), 100*r.Recall(), 100*r.F1())
}

// Attachment accumulates unlabeled and labeled attachment over tokens with
// a known gold head
type Attachment struct {
	Tokens, Unlabeled, Labeled int
	Exact, Population          int
}

// Add scores a parsed doc against the gold projected onto its tokens
func (a *Attachment) Add(doc *types.Doc, g *gold.GoldParse) {
	wrong := 0
	for i, tok := range doc.Tokens {
		if i >= len(g.Heads) || g.Heads[i] < 0 {
			continue
		}
		a.Tokens++
		if tok.Head != g.Heads[i] {
			wrong++
			continue
		}
		a.Unlabeled++
		if tok.Dep == g.Labels[i] {
			a.Labeled++
		} else {
			wrong++
		}
	}
	if wrong == 0 {
		a.Exact++
	}
	a.Population++
}

func (a *Attachment) UAS() float64 {
	return Precision(a.Unlabeled, a.Tokens)
}

func (a *Attachment) LAS() float64 {
	return Precision(a.Labeled, a.Tokens)
}

func (a *Attachment) ExactMatch() float64 {
	return Precision(a.Exact, a.Population)
}

func (a *Attachment) String() string {
	return fmt.Sprintf("UAS %.2f LAS %.2f exact %.2f (%d tokens)", 100*a.UAS(), 100*a.LAS(), 100*a.ExactMatch(), a.Tokens)
}

// Entities accumulates exact span matches, overall and per label
type Entities struct {
	Result
	ByLabel map[string]*Result
}

func NewEntities() *Entities {
	return &Entities{ByLabel: make(map[string]*Result)}
}

func (e *Entities) label(l string) *Result {
	if e.ByLabel == nil {
		e.ByLabel = make(map[string]*Result)
	}
	r, exists := e.ByLabel[l]
	if !exists {
		r = &Result{}
		e.ByLabel[l] = r
	}
	return r
}

// Add scores the doc's entity spans against the gold BILUO tags. Predicted
// spans touching a token without gold annotation are not scored.
func (e *Entities) Add(doc *types.Doc, g *gold.GoldParse) error {
	goldSpans, err := gold.SpansFromBILUOTags(g.NER)
	if err != nil {
		return err
	}
	want := make(map[types.Span]bool, len(goldSpans))
	for _, s := range goldSpans {
		want[s] = true
	}
	for _, s := range doc.Ents() {
		if unannotated(g.NER, s) {
			continue
		}
		if want[s] {
			e.TP++
			e.label(s.Label).TP++
			delete(want, s)
		} else {
			e.FP++
			e.label(s.Label).FP++
		}
	}
	for s := range want {
		e.FN++
		e.label(s.Label).FN++
	}
	return nil
}

func unannotated(tags []string, s types.Span) bool {
	for i := s.Start; i < s.End; i++ {
		if i >= len(tags) || tags[i] == gold.MissingTag || tags[i] == "" {
			return true
		}
	}
	return false
}

// Labels in alphabetical order
func (e *Entities) Labels() []string {
	retval := make([]string, 0, len(e.ByLabel))
	for l := range e.ByLabel {
		retval = append(retval, l)
	}
	sort.Strings(retval)
	return retval
}
