package gold

import (
	"sort"
	"strings"

	"arcner/nlp/types"

	"github.com/pkg/errors"
)

// SubtokLabel attaches the extra pieces of a gold word that the predicted
// tokenization split
const SubtokLabel = "subtok"

// GoldParse is the training target of one document, projected onto the
// predicted tokens. Heads index predicted tokens; -1 heads, empty labels
// and MissingTag entities carry no training signal.
type GoldParse struct {
	Words      []string
	Tags       []string
	Heads      []int
	Labels     []string
	NER        []string
	SentStarts []int8
	Alignment  *Alignment

	// Orig is the normalized annotation over gold words
	Orig *TokenAnnotation
	doc  *types.Doc
}

func (g *GoldParse) Len() int {
	return len(g.Heads)
}

// HasDependencies reports whether any predicted token has a gold head
func (g *GoldParse) HasDependencies() bool {
	for _, h := range g.Heads {
		if h >= 0 {
			return true
		}
	}
	return false
}

func (g *GoldParse) HasEntities() bool {
	for _, t := range g.NER {
		if t != MissingTag {
			return true
		}
	}
	return false
}

// NewGoldParse projects ann onto the tokens of doc. When ann has no words
// the annotation is taken to be over doc's tokens.
func NewGoldParse(doc *types.Doc, ann *TokenAnnotation) (*GoldParse, error) {
	if ann == nil {
		ann = &TokenAnnotation{}
	}
	if ann.Words == nil {
		withWords := *ann
		withWords.Words = doc.Words()
		ann = &withWords
	}
	norm, err := ann.Normalized()
	if err != nil {
		return nil, err
	}
	g := &GoldParse{Words: norm.Words, Orig: norm, doc: doc}
	if err := g.project(); err != nil {
		return nil, err
	}
	return g, nil
}

// Projectivize rewrites the gold tree into a projective one and projects
// it again onto the predicted tokens
func (g *GoldParse) Projectivize() error {
	proj, err := g.Orig.Projectivize()
	if err != nil {
		return err
	}
	g.Orig = proj
	return g.project()
}

func (g *GoldParse) project() error {
	doc, ann := g.doc, g.Orig
	n := doc.Len()
	predWords := doc.Words()
	if equalWords(predWords, ann.Words) {
		g.Alignment = Identity(n)
	} else {
		g.Alignment = Align(predWords, ann.Words)
		if g.Alignment.Cost > 0 && matched(g.Alignment) == 0 && n > 0 && len(ann.Words) > 0 {
			return errors.Wrapf(ErrMisaligned, "%q vs %q", doc.Text(), strings.Join(ann.Words, " "))
		}
	}
	goldNER, err := g.goldEntities()
	if err != nil {
		return err
	}
	align := g.Alignment
	g.Tags = make([]string, n)
	g.Heads = filled(n, -1)
	g.Labels = make([]string, n)
	g.SentStarts = make([]int8, n)
	for i := 0; i < n; i++ {
		if j := align.A2B[i]; j >= 0 {
			g.Tags[i] = ann.Tags[j]
			g.SentStarts[i] = ann.SentStarts[j]
			// a head folded into the same token is no root: leave it missing
			if h := g.predHead(ann.Heads[j]); h >= 0 && (h != i || ann.Heads[j] == j) {
				g.Heads[i], g.Labels[i] = h, ann.Deps[j]
			}
			continue
		}
		if fan := align.A2BMany[i]; len(fan) == 1 {
			// a piece of a split gold word hangs off the aligned piece
			j := fan[0]
			if p := align.B2A[j]; p >= 0 {
				g.Tags[i] = ann.Tags[j]
				g.Heads[i], g.Labels[i] = p, SubtokLabel
			}
		}
	}
	if goldNER != nil {
		g.NER = g.projectEntities(goldNER)
	} else if ann.EntityOffsets != nil {
		if g.NER, err = BILUOTagsFromOffsets(doc, ann.EntityOffsets, true); err != nil {
			return err
		}
	} else {
		g.NER = make([]string, n)
		for i := range g.NER {
			g.NER[i] = MissingTag
		}
	}
	return nil
}

// predHead maps a gold head onto the predicted tokens, -1 if it has no
// unambiguous counterpart
func (g *GoldParse) predHead(goldHead int) int {
	if goldHead < 0 {
		return -1
	}
	if h := g.Alignment.B2A[goldHead]; h >= 0 {
		return h
	}
	if fan := g.Alignment.B2AMany[goldHead]; len(fan) == 1 {
		return fan[0]
	}
	return -1
}

// goldEntities returns the gold entity tags as BILUO, nil when the
// annotation has none
func (g *GoldParse) goldEntities() ([]string, error) {
	tags := g.Orig.Entities
	if tags == nil {
		return nil, nil
	}
	if !IsBILUO(tags) {
		var err error
		if tags, err = IOBToBILUO(tags); err != nil {
			return nil, err
		}
	}
	if _, err := SpansFromBILUOTags(tags); err != nil {
		return nil, err
	}
	return tags, nil
}

func (g *GoldParse) projectEntities(goldNER []string) []string {
	align := g.Alignment
	n := len(align.A2B)
	retval := make([]string, n)
	for i := range retval {
		retval[i] = MissingTag
	}
	// predicted tokens covering gold words, single partner first
	covering := make([][]int, n)
	for i := 0; i < n; i++ {
		if j := align.A2B[i]; j >= 0 {
			covering[i] = append(covering[i], j)
		}
	}
	for j, fan := range align.B2AMany {
		for _, i := range fan {
			covering[i] = append(covering[i], j)
		}
	}
	// gold words split over several predicted tokens
	pieces := make(map[int][]int)
	for i := 0; i < n; i++ {
		if align.A2B[i] < 0 && len(align.A2BMany[i]) == 1 {
			j := align.A2BMany[i][0]
			if p := align.B2A[j]; p >= 0 {
				pieces[j] = append(pieces[j], i)
			}
		}
	}
	for i := 0; i < n; i++ {
		if len(covering[i]) > 0 {
			retval[i] = mergeTags(goldNER, covering[i])
		}
	}
	for j, split := range pieces {
		group := append([]int{align.B2A[j]}, split...)
		sort.Ints(group)
		for k, tag := range spreadTag(goldNER[j], len(group)) {
			retval[group[k]] = tag
		}
	}
	return repairBILUO(retval)
}

// mergeTags is the tag of one predicted token covering the gold words
func mergeTags(goldNER []string, words []int) string {
	if len(words) == 1 {
		return goldNER[words[0]]
	}
	sort.Ints(words)
	tags := make([]string, len(words))
	for k, j := range words {
		tags[k] = goldNER[j]
	}
	allOut := true
	for _, t := range tags {
		if t != "O" {
			allOut = false
		}
	}
	if allOut {
		return "O"
	}
	firstPrefix, label := SplitTag(tags[0])
	lastPrefix, lastLabel := SplitTag(tags[len(tags)-1])
	if label == "" || lastLabel != label {
		return MissingTag
	}
	for _, t := range tags[1 : len(tags)-1] {
		if t != "I-"+label {
			return MissingTag
		}
	}
	begins := firstPrefix == "B" || firstPrefix == "U"
	ends := lastPrefix == "L" || lastPrefix == "U"
	if (firstPrefix == "U" || lastPrefix == "U") && len(tags) > 1 {
		return MissingTag
	}
	switch {
	case begins && ends:
		return "U-" + label
	case begins:
		return "B-" + label
	case ends:
		return "L-" + label
	default:
		return "I-" + label
	}
}

// spreadTag splits one gold tag over n predicted pieces
func spreadTag(tag string, n int) []string {
	retval := make([]string, n)
	prefix, label := SplitTag(tag)
	for k := range retval {
		retval[k] = tag
		if label == "" {
			continue
		}
		first, last := k == 0, k == n-1
		switch {
		case (prefix == "B" || prefix == "U") && first:
			retval[k] = "B-" + label
		case (prefix == "L" || prefix == "U") && last:
			retval[k] = "L-" + label
		default:
			retval[k] = "I-" + label
		}
		if prefix == "U" && n == 1 {
			retval[k] = tag
		}
	}
	return retval
}

// repairBILUO replaces tags that break the BILUO grammar with MissingTag
func repairBILUO(tags []string) []string {
	open := ""
	openAt := -1
	drop := func(from, to int) {
		for k := from; k < to; k++ {
			tags[k] = MissingTag
		}
	}
	for i, tag := range tags {
		prefix, label := SplitTag(tag)
		switch {
		case tag == MissingTag:
			if openAt >= 0 {
				drop(openAt, i)
			}
			openAt, open = -1, ""
		case prefix == "B":
			if openAt >= 0 {
				drop(openAt, i)
			}
			openAt, open = i, label
		case prefix == "I" || prefix == "L":
			if openAt < 0 || label != open {
				if openAt >= 0 {
					drop(openAt, i)
				}
				tags[i] = MissingTag
				openAt, open = -1, ""
			} else if prefix == "L" {
				openAt, open = -1, ""
			}
		default:
			if openAt >= 0 {
				drop(openAt, i)
			}
			openAt, open = -1, ""
		}
	}
	if openAt >= 0 {
		drop(openAt, len(tags))
	}
	return tags
}

func equalWords(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func matched(a *Alignment) int {
	count := 0
	for _, j := range a.A2B {
		if j >= 0 {
			count++
		}
	}
	return count
}
