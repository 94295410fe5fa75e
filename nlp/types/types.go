package types

import (
	"strings"
	"unicode/utf8"

	"arcner/util"
)

// IOB is a token's entity position, numbered as the parser writes it
type IOB byte

const (
	IOBMissing IOB = iota
	IOBIn
	IOBOut
	IOBBegin
)

func (i IOB) String() string {
	switch i {
	case IOBIn:
		return "I"
	case IOBOut:
		return "O"
	case IOBBegin:
		return "B"
	default:
		return ""
	}
}

// Sentence start flags
const (
	SentStartUnknown int8 = 0
	SentStartYes     int8 = 1
	SentStartNo      int8 = -1
)

// Vocab interns token strings
type Vocab struct {
	Strings *util.EnumSet
}

func NewVocab() *Vocab {
	return &Vocab{util.NewEnumSet(1024)}
}

func (v *Vocab) ID(s string) int {
	id, _ := v.Strings.Add(s)
	return id
}

func (v *Vocab) String(id int) string {
	return v.Strings.ValueOf(id)
}

// Token has immutable base attributes (Text, Orth, Lemma, Tag) and the
// attributes assigned by the parser and the entity recognizer.
type Token struct {
	Text       string
	Whitespace string
	Orth       int
	Lemma      int
	Tag        int

	Head      int
	Dep       string
	EntIOB    IOB
	EntType   string
	SentStart int8
}

// Doc owns an ordered token sequence. Heads are absolute token indices;
// a root is its own head.
type Doc struct {
	Vocab  *Vocab
	Tokens []Token
}

// NewDoc creates a doc of words; spaces[i] tells whether word i is
// followed by a space. A nil spaces puts a space after every word.
func NewDoc(vocab *Vocab, words []string, spaces []bool) *Doc {
	doc := &Doc{Vocab: vocab, Tokens: make([]Token, len(words))}
	for i, w := range words {
		tok := &doc.Tokens[i]
		tok.Text = w
		if spaces == nil || (i < len(spaces) && spaces[i]) {
			tok.Whitespace = " "
		}
		tok.Orth = vocab.ID(w)
		tok.Lemma = vocab.ID(strings.ToLower(w))
		tok.Tag = vocab.ID("")
		tok.Head = i
	}
	return doc
}

func (d *Doc) Len() int {
	return len(d.Tokens)
}

func (d *Doc) Words() []string {
	retval := make([]string, len(d.Tokens))
	for i, t := range d.Tokens {
		retval[i] = t.Text
	}
	return retval
}

func (d *Doc) Text() string {
	var b strings.Builder
	for _, t := range d.Tokens {
		b.WriteString(t.Text)
		b.WriteString(t.Whitespace)
	}
	return b.String()
}

// Offsets returns each token's character (rune) offset into Text
func (d *Doc) Offsets() []int {
	retval := make([]int, len(d.Tokens))
	pos := 0
	for i, t := range d.Tokens {
		retval[i] = pos
		pos += utf8.RuneCountInString(t.Text) + utf8.RuneCountInString(t.Whitespace)
	}
	return retval
}

func (d *Doc) SetTags(tags []string) {
	for i := range d.Tokens {
		if i < len(tags) {
			d.Tokens[i].Tag = d.Vocab.ID(tags[i])
		}
	}
}

func (d *Doc) SetLemmas(lemmas []string) {
	for i := range d.Tokens {
		if i < len(lemmas) && lemmas[i] != "" {
			d.Tokens[i].Lemma = d.Vocab.ID(lemmas[i])
		}
	}
}

func (d *Doc) Heads() []int {
	retval := make([]int, len(d.Tokens))
	for i, t := range d.Tokens {
		retval[i] = t.Head
	}
	return retval
}

func (d *Doc) Deps() []string {
	retval := make([]string, len(d.Tokens))
	for i, t := range d.Tokens {
		retval[i] = t.Dep
	}
	return retval
}

// Span is a token range [Start, End) with a label
type Span struct {
	Start, End int
	Label      string
}

// Ents reads entity spans off the tokens' IOB attributes
func (d *Doc) Ents() []Span {
	var (
		retval []Span
		open   = -1
	)
	closeAt := func(end int) {
		if open >= 0 {
			retval = append(retval, Span{open, end, d.Tokens[open].EntType})
			open = -1
		}
	}
	for i, t := range d.Tokens {
		switch t.EntIOB {
		case IOBBegin:
			closeAt(i)
			open = i
		case IOBIn:
			if open < 0 || d.Tokens[open].EntType != t.EntType {
				closeAt(i)
				open = i
			}
		default:
			closeAt(i)
		}
	}
	closeAt(len(d.Tokens))
	return retval
}

// Sents splits the doc at tokens flagged as sentence starts
func (d *Doc) Sents() []Span {
	var retval []Span
	start := 0
	for i := 1; i < len(d.Tokens); i++ {
		if d.Tokens[i].SentStart == SentStartYes {
			retval = append(retval, Span{Start: start, End: i})
			start = i
		}
	}
	if len(d.Tokens) > 0 {
		retval = append(retval, Span{Start: start, End: len(d.Tokens)})
	}
	return retval
}
