// Package conllu reads and writes CoNLL-U files.
// A sentence becomes a gold.Example over its syntactic words; entity tags
// are read from the MISC column (NE=B-PER) and SpaceAfter=No restores the
// original spacing. For a description of the format see
// https://universaldependencies.org/format.html
package conllu

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"arcner/nlp/gold"
	"arcner/nlp/types"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	FIELD_SEPARATOR    = "\t"
	NUM_FIELDS         = 10
	FEATURES_SEPARATOR = "|"
	FEATURE_SEPARATOR  = "="

	ENTITY_KEY      = "NE"
	SPACE_AFTER_KEY = "SpaceAfter"
)

var ErrFormat = errors.New("malformed CoNLL-U")

// Features is a parsed FEATS or MISC column
type Features map[string]string

func (f Features) String() string {
	if len(f) == 0 {
		return "_"
	}
	strs := make([]string, 0, len(f))
	for k, v := range f {
		strs = append(strs, k+FEATURE_SEPARATOR+v)
	}
	sort.Strings(strs)
	return strings.Join(strs, FEATURES_SEPARATOR)
}

// A Row is a single syntactic word of a sentence
type Row struct {
	ID      int
	Form    string
	Lemma   string
	UPosTag string
	XPosTag string
	FeatStr string
	Head    int
	DepRel  string
	Deps    string
	Misc    Features
}

func (r Row) String() string {
	head := "_"
	if r.Head >= 0 {
		head = strconv.Itoa(r.Head)
	}
	fields := []string{
		strconv.Itoa(r.ID),
		r.Form,
		r.Lemma,
		r.UPosTag,
		r.XPosTag,
		r.FeatStr,
		head,
		r.DepRel,
		r.Deps,
		r.Misc.String(),
	}
	for i, field := range fields {
		if len(field) == 0 {
			fields[i] = "_"
		}
	}
	return strings.Join(fields, FIELD_SEPARATOR)
}

// A TokenRow is a multiword token spanning the words First..Last
type TokenRow struct {
	First, Last int
	Form        string
	Misc        Features
}

func (t TokenRow) String() string {
	fields := []string{fmt.Sprintf("%d-%d", t.First, t.Last), t.Form, "_", "_", "_", "_", "_", "_", "_", t.Misc.String()}
	return strings.Join(fields, FIELD_SEPARATOR)
}

// A Sentence holds its words in order; multiword tokens are kept for
// writing back
type Sentence struct {
	Rows     []Row
	Tokens   []TokenRow
	Comments []string
}

type Sentences []*Sentence

func ParseInt(value string) (int, error) {
	if value == "_" {
		return 0, nil
	}
	i, err := strconv.ParseInt(value, 10, 0)
	return int(i), err
}

func ParseString(value string) string {
	if value == "_" {
		return ""
	}
	return value
}

// ParseFeatures splits a key=value|key=value column. Repeated keys are
// joined with commas.
func ParseFeatures(featuresStr string) (Features, error) {
	if featuresStr == "_" || featuresStr == "" {
		return nil, nil
	}
	featureList := strings.Split(featuresStr, FEATURES_SEPARATOR)
	featureMap := make(Features, len(featureList))
	for _, featureStr := range featureList {
		featureKV := strings.SplitN(featureStr, FEATURE_SEPARATOR, 2)
		if len(featureKV) != 2 {
			return nil, errors.Wrapf(ErrFormat, "feature %q has no value", featureStr)
		}
		name, value := featureKV[0], featureKV[1]
		if existing, exists := featureMap[name]; exists {
			featureMap[name] = existing + "," + value
		} else {
			featureMap[name] = value
		}
	}
	return featureMap, nil
}

func ParseRow(record []string) (Row, error) {
	var row Row
	id, err := ParseInt(record[0])
	if err != nil {
		return row, errors.Wrapf(ErrFormat, "ID field %q: %v", record[0], err)
	}
	row.ID = id
	row.UPosTag = ParseString(record[3])
	row.XPosTag = ParseString(record[4])
	if row.UPosTag == "SYM" || row.UPosTag == "PUNCT" {
		// symbol forms are taken as is, "_" included
		row.Form = record[1]
	} else {
		row.Form = ParseString(record[1])
	}
	row.Lemma = ParseString(record[2])
	row.FeatStr = ParseString(record[5])
	if record[6] == "_" {
		row.Head = -1
	} else if row.Head, err = ParseInt(record[6]); err != nil {
		return row, errors.Wrapf(ErrFormat, "HEAD field %q: %v", record[6], err)
	}
	row.DepRel = ParseString(record[7])
	row.Deps = ParseString(record[8])
	if row.Misc, err = ParseFeatures(record[9]); err != nil {
		return row, errors.Wrapf(err, "MISC field %q", record[9])
	}
	return row, nil
}

func ParseTokenRow(record []string) (TokenRow, error) {
	var token TokenRow
	token.Form = ParseString(record[1])
	if token.Form == "" {
		return token, errors.Wrapf(ErrFormat, "empty FORM field for token row %q", record[0])
	}
	ids := strings.Split(record[0], "-")
	if len(ids) != 2 {
		return token, errors.Wrapf(ErrFormat, "ID span %q needs <num>-<num>", record[0])
	}
	var err error
	if token.First, err = ParseInt(ids[0]); err != nil {
		return token, errors.Wrapf(ErrFormat, "ID span %q: %v", record[0], err)
	}
	if token.Last, err = ParseInt(ids[1]); err != nil {
		return token, errors.Wrapf(ErrFormat, "ID span %q: %v", record[0], err)
	}
	if token.Last <= token.First {
		return token, errors.Wrapf(ErrFormat, "ID span %q is empty", record[0])
	}
	if token.Misc, err = ParseFeatures(record[9]); err != nil {
		return token, errors.Wrapf(err, "MISC field %q", record[9])
	}
	return token, nil
}

// Read parses up to limit sentences (all when limit <= 0). Empty nodes
// (ids with a dot) are skipped.
func Read(reader io.Reader, limit int) (Sentences, error) {
	var (
		sentences Sentences
		line      int
		numWords  int
		numTokens int
		current   = &Sentence{}
	)
	flush := func() {
		if len(current.Rows) > 0 {
			sentences = append(sentences, current)
		}
		current = &Sentence{}
	}
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 16384), 1<<20)
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if len(text) == 0 {
			flush()
			if limit > 0 && len(sentences) >= limit {
				break
			}
			continue
		}
		if text[0] == '#' {
			current.Comments = append(current.Comments, text)
			continue
		}
		record := strings.Split(text, FIELD_SEPARATOR)
		if len(record) != NUM_FIELDS {
			return nil, errors.Wrapf(ErrFormat, "line %d has %d fields", line, len(record))
		}
		switch {
		case strings.Contains(record[0], "."):
			continue
		case strings.Contains(record[0], "-"):
			token, err := ParseTokenRow(record)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", line)
			}
			current.Tokens = append(current.Tokens, token)
			numTokens++
		default:
			row, err := ParseRow(record)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", line)
			}
			if row.ID != len(current.Rows)+1 {
				return nil, errors.Wrapf(ErrFormat, "line %d: word id %d out of order", line, row.ID)
			}
			current.Rows = append(current.Rows, row)
			numWords++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading CoNLL-U")
	}
	if limit <= 0 || len(sentences) < limit {
		flush()
	}
	log.Debug().Int("sentences", len(sentences)).Int("words", numWords).Int("multiword tokens", numTokens).Msg("read CoNLL-U")
	return sentences, nil
}

func ReadFile(filename string, limit int) (Sentences, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", filename)
	}
	defer file.Close()
	return Read(file, limit)
}

// spaceAfter reports whether word i is followed by a space; a multiword
// token's MISC applies to its last word
func (s *Sentence) spaceAfter(i int) bool {
	if s.Rows[i].Misc[SPACE_AFTER_KEY] == "No" {
		return false
	}
	id := i + 1
	for _, t := range s.Tokens {
		if t.Last == id && t.Misc[SPACE_AFTER_KEY] == "No" {
			return false
		}
	}
	return true
}

func (s *Sentence) hasEntities() bool {
	for _, row := range s.Rows {
		if _, ok := row.Misc[ENTITY_KEY]; ok {
			return true
		}
	}
	return false
}

// Words are the sentence's syntactic word forms
func (s *Sentence) Words() []string {
	retval := make([]string, len(s.Rows))
	for i, row := range s.Rows {
		retval[i] = row.Form
	}
	return retval
}

// Documents groups every size consecutive sentences (at least one) into
// an example. The doc carries the words, tags and lemmas; the annotation
// carries heads, labels, sentence starts and, where MISC has NE tags,
// entities. Words of an annotated sentence without a tag are outside.
func (sents Sentences) Documents(vocab *types.Vocab, size int) []*gold.Example {
	var retval []*gold.Example
	for _, batch := range batches(sents, size) {
		var (
			words, tags, pos, lemmas, morphs, deps, ents []string
			heads                                        []int
			starts                                       []int8
			spaces                                       []bool
			anyEnts                                      bool
		)
		for _, sent := range batch {
			anyEnts = anyEnts || sent.hasEntities()
		}
		for _, sent := range batch {
			offset := len(words)
			sentEnts := sent.hasEntities()
			for i, row := range sent.Rows {
				words = append(words, row.Form)
				tag := row.XPosTag
				if tag == "" {
					tag = row.UPosTag
				}
				tags = append(tags, tag)
				pos = append(pos, row.UPosTag)
				lemmas = append(lemmas, row.Lemma)
				morphs = append(morphs, row.FeatStr)
				switch {
				case row.Head < 0:
					heads = append(heads, -1)
				case row.Head == 0:
					heads = append(heads, offset+i)
				default:
					heads = append(heads, offset+row.Head-1)
				}
				deps = append(deps, row.DepRel)
				start := types.SentStartNo
				if i == 0 {
					start = types.SentStartYes
				}
				starts = append(starts, start)
				spaces = append(spaces, sent.spaceAfter(i))
				if anyEnts {
					switch ne, ok := row.Misc[ENTITY_KEY]; {
					case ok:
						ents = append(ents, ne)
					case sentEnts:
						ents = append(ents, "O")
					default:
						ents = append(ents, gold.MissingTag)
					}
				}
			}
		}
		doc := types.NewDoc(vocab, words, spaces)
		doc.SetTags(tags)
		doc.SetLemmas(lemmas)
		retval = append(retval, &gold.Example{
			Doc: doc,
			Gold: &gold.TokenAnnotation{
				Words:      words,
				Tags:       tags,
				POS:        pos,
				Lemmas:     lemmas,
				Morphs:     morphs,
				Heads:      heads,
				Deps:       deps,
				Entities:   ents,
				SentStarts: starts,
			},
		})
	}
	return retval
}

func batches(sents Sentences, size int) []Sentences {
	if size < 1 {
		size = 1
	}
	var retval []Sentences
	for start := 0; start < len(sents); start += size {
		end := start + size
		if end > len(sents) {
			end = len(sents)
		}
		retval = append(retval, sents[start:end])
	}
	return retval
}

// Docs returns the examples' docs without annotation attached
func Docs(examples []*gold.Example) []*types.Doc {
	retval := make([]*types.Doc, len(examples))
	for i, ex := range examples {
		retval[i] = ex.Doc
	}
	return retval
}

// FromDoc converts a parsed doc into one sentence per doc sentence. Heads
// become 1-based within their sentence; entity tags are written as BILUO
// in MISC when ents is set.
func FromDoc(doc *types.Doc, ents bool) Sentences {
	var tags []string
	if ents {
		tags = gold.TagsFromSpans(doc.Len(), doc.Ents())
	}
	var retval Sentences
	for _, span := range doc.Sents() {
		sent := &Sentence{Rows: make([]Row, 0, span.End-span.Start)}
		for i := span.Start; i < span.End; i++ {
			tok := doc.Tokens[i]
			row := Row{
				ID:      i - span.Start + 1,
				Form:    tok.Text,
				Lemma:   doc.Vocab.String(tok.Lemma),
				XPosTag: doc.Vocab.String(tok.Tag),
				DepRel:  tok.Dep,
				Misc:    Features{},
			}
			switch {
			case tok.Head == i:
				row.Head = 0
			case tok.Head >= span.Start && tok.Head < span.End:
				row.Head = tok.Head - span.Start + 1
			default:
				// a cross-sentence arc cannot be written; attach to the root
				row.Head = 0
			}
			if tok.Whitespace == "" && i+1 < doc.Len() {
				row.Misc[SPACE_AFTER_KEY] = "No"
			}
			if ents {
				row.Misc[ENTITY_KEY] = tags[i]
			}
			sent.Rows = append(sent.Rows, row)
		}
		retval = append(retval, sent)
	}
	return retval
}

func (s *Sentence) Write(writer io.Writer) error {
	w := bufio.NewWriter(writer)
	for _, c := range s.Comments {
		w.WriteString(c)
		w.WriteByte('\n')
	}
	next := 0
	for _, row := range s.Rows {
		for next < len(s.Tokens) && s.Tokens[next].First == row.ID {
			w.WriteString(s.Tokens[next].String())
			w.WriteByte('\n')
			next++
		}
		w.WriteString(row.String())
		w.WriteByte('\n')
	}
	w.WriteByte('\n')
	return errors.Wrap(w.Flush(), "writing CoNLL-U")
}

func Write(writer io.Writer, sents Sentences) error {
	for _, sent := range sents {
		if err := sent.Write(writer); err != nil {
			return err
		}
	}
	return nil
}

func WriteFile(filename string, sents Sentences) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "creating %s", filename)
	}
	defer file.Close()
	if err := Write(file, sents); err != nil {
		return err
	}
	return errors.Wrapf(file.Close(), "closing %s", filename)
}
