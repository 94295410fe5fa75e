package gold

import (
	"arcner/nlp/parser/nonproj"

	"github.com/pkg/errors"
)

// Bracket is a labelled constituent over gold tokens [Start, End)
type Bracket struct {
	Start, End int
	Label      string
}

// TokenAnnotation is the gold record of one document. Every field is
// optional; a field shorter than Words is padded with its missing value.
// Heads are absolute indices into Words, -1 when unknown.
type TokenAnnotation struct {
	IDs           []int
	Words         []string
	Tags          []string
	POS           []string
	Morphs        []string
	Lemmas        []string
	Heads         []int
	Deps          []string
	Entities      []string
	EntityOffsets []Offset
	SentStarts    []int8
	Brackets      []Bracket
}

func padStrings(values []string, n int, missing string) []string {
	retval := make([]string, n)
	for i := range retval {
		if i < len(values) {
			retval[i] = values[i]
		} else {
			retval[i] = missing
		}
	}
	return retval
}

// Normalized returns a copy where every per-token field has len(Words)
// entries. Fields longer than Words and heads out of range are errors.
func (a *TokenAnnotation) Normalized() (*TokenAnnotation, error) {
	n := len(a.Words)
	for name, l := range map[string]int{
		"ids": len(a.IDs), "tags": len(a.Tags), "pos": len(a.POS), "morphs": len(a.Morphs),
		"lemmas": len(a.Lemmas), "heads": len(a.Heads), "deps": len(a.Deps),
		"entities": len(a.Entities), "sent_starts": len(a.SentStarts),
	} {
		if l > n {
			return nil, errors.Wrapf(ErrAnnotation, "%s has %d values for %d words", name, l, n)
		}
	}
	retval := &TokenAnnotation{
		IDs:           make([]int, n),
		Words:         append([]string(nil), a.Words...),
		Tags:          padStrings(a.Tags, n, ""),
		POS:           padStrings(a.POS, n, ""),
		Morphs:        padStrings(a.Morphs, n, ""),
		Lemmas:        padStrings(a.Lemmas, n, ""),
		Heads:         make([]int, n),
		Deps:          padStrings(a.Deps, n, ""),
		EntityOffsets: append([]Offset(nil), a.EntityOffsets...),
		SentStarts:    make([]int8, n),
		Brackets:      append([]Bracket(nil), a.Brackets...),
	}
	if a.Entities != nil {
		retval.Entities = padStrings(a.Entities, n, MissingTag)
	}
	for i := 0; i < n; i++ {
		retval.IDs[i] = i
		if i < len(a.IDs) {
			retval.IDs[i] = a.IDs[i]
		}
		retval.Heads[i] = -1
		if i < len(a.Heads) {
			if a.Heads[i] < -1 || a.Heads[i] >= n {
				return nil, errors.Wrapf(ErrAnnotation, "head %d of word %d out of range", a.Heads[i], i)
			}
			retval.Heads[i] = a.Heads[i]
		}
		if i < len(a.SentStarts) {
			retval.SentStarts[i] = a.SentStarts[i]
		}
	}
	return retval, nil
}

// Projectivize returns a copy whose heads form a projective tree, with
// lifted arcs carrying decorated labels
func (a *TokenAnnotation) Projectivize() (*TokenAnnotation, error) {
	norm, err := a.Normalized()
	if err != nil {
		return nil, err
	}
	heads, deps, err := nonproj.Projectivize(norm.Heads, norm.Deps)
	if err != nil {
		return nil, errors.Wrap(err, "projectivizing gold heads")
	}
	norm.Heads, norm.Deps = heads, deps
	return norm, nil
}
