package gold

import (
	"strings"
	"unicode/utf8"

	"arcner/nlp/types"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// MissingTag marks a token without entity annotation
const MissingTag = "-"

// Offset is a character span [Start, End) with an entity label
type Offset struct {
	Start, End int
	Label      string
}

// SplitTag splits "B-LOC" into "B" and "LOC"; "O" and "-" have no label
func SplitTag(tag string) (string, string) {
	if idx := strings.IndexByte(tag, '-'); idx > 0 {
		return tag[:idx], tag[idx+1:]
	}
	return tag, ""
}

// IOBToBILUO converts IOB tags (B- starts, I- continues) into BILUO.
// An I- tag that does not continue an entity of the same label, an empty
// label or an unknown prefix is ErrMalformedIOB.
func IOBToBILUO(tags []string) ([]string, error) {
	retval := make([]string, 0, len(tags))
	for i := 0; i < len(tags); {
		tag := tags[i]
		if tag == "O" || tag == MissingTag {
			retval = append(retval, tag)
			i++
			continue
		}
		prefix, label := SplitTag(tag)
		if label == "" {
			return nil, errors.Wrapf(ErrMalformedIOB, "tag %q at %d has no label", tag, i)
		}
		switch prefix {
		case "B", "U":
		case "I", "L":
			return nil, errors.Wrapf(ErrMalformedIOB, "tag %q at %d does not continue an entity", tag, i)
		default:
			return nil, errors.Wrapf(ErrMalformedIOB, "unknown tag %q at %d", tag, i)
		}
		length := 1
		if prefix == "B" {
			for i+length < len(tags) && (tags[i+length] == "I-"+label || tags[i+length] == "L-"+label) {
				length++
				if tags[i+length-1] == "L-"+label {
					break
				}
			}
		}
		if length == 1 {
			retval = append(retval, "U-"+label)
		} else {
			retval = append(retval, "B-"+label)
			for k := 1; k < length-1; k++ {
				retval = append(retval, "I-"+label)
			}
			retval = append(retval, "L-"+label)
		}
		i += length
	}
	return retval, nil
}

func BILUOToIOB(tags []string) []string {
	retval := make([]string, len(tags))
	for i, tag := range tags {
		prefix, label := SplitTag(tag)
		switch prefix {
		case "B", "U":
			retval[i] = "B-" + label
		case "I", "L":
			retval[i] = "I-" + label
		default:
			retval[i] = tag
		}
	}
	return retval
}

// BILUOTagsFromOffsets tags the tokens of doc with the given character
// spans. Tokens inside a span whose boundaries do not fall on token
// boundaries get MissingTag; with strict a warning is logged for them.
func BILUOTagsFromOffsets(doc *types.Doc, entities []Offset, strict bool) ([]string, error) {
	offsets := doc.Offsets()
	starts := make(map[int]int, doc.Len())
	ends := make(map[int]int, doc.Len())
	for i, t := range doc.Tokens {
		starts[offsets[i]] = i
		ends[offsets[i]+utf8.RuneCountInString(t.Text)] = i
	}
	biluo := make([]string, doc.Len())
	for i := range biluo {
		biluo[i] = MissingTag
	}
	inEntity := make(map[int]bool)
	for _, ent := range entities {
		for c := ent.Start; c < ent.End; c++ {
			if inEntity[c] {
				return nil, errors.Wrapf(ErrOverlap, "character %d in %v", c, ent)
			}
			inEntity[c] = true
		}
		startToken, okStart := starts[ent.Start]
		endToken, okEnd := ends[ent.End]
		if !okStart || !okEnd {
			continue
		}
		if startToken == endToken {
			biluo[startToken] = "U-" + ent.Label
			continue
		}
		biluo[startToken] = "B-" + ent.Label
		for i := startToken + 1; i < endToken; i++ {
			biluo[i] = "I-" + ent.Label
		}
		biluo[endToken] = "L-" + ent.Label
	}
	missing := false
	for i, t := range doc.Tokens {
		length := utf8.RuneCountInString(t.Text)
		covered := false
		for c := offsets[i]; c < offsets[i]+length; c++ {
			if inEntity[c] {
				covered = true
				break
			}
		}
		if !covered {
			biluo[i] = "O"
		} else if biluo[i] == MissingTag {
			missing = true
		}
	}
	if strict && missing {
		log.Warn().Str("text", doc.Text()).Interface("entities", entities).
			Msg("entity offsets do not align with token boundaries; affected tokens are not trained on")
	}
	return biluo, nil
}

// SpansFromBILUOTags reads token spans off BILUO tags. Missing tags break
// an open entity silently.
func SpansFromBILUOTags(tags []string) ([]types.Span, error) {
	var (
		retval []types.Span
		start  = -1
		open   string
	)
	for i, tag := range tags {
		prefix, label := SplitTag(tag)
		switch {
		case tag == MissingTag || tag == "":
			start = -1
		case prefix == "O":
			if start >= 0 {
				return nil, errors.Wrapf(ErrMalformedIOB, "entity open at %d", i)
			}
		case prefix == "U":
			if start >= 0 {
				return nil, errors.Wrapf(ErrMalformedIOB, "entity open at %d", i)
			}
			retval = append(retval, types.Span{Start: i, End: i + 1, Label: label})
		case prefix == "B":
			if start >= 0 {
				return nil, errors.Wrapf(ErrMalformedIOB, "entity open at %d", i)
			}
			start, open = i, label
		case prefix == "I" || prefix == "L":
			if start < 0 {
				return nil, errors.Wrapf(ErrMalformedIOB, "%q at %d outside an entity", tag, i)
			}
			if label != open {
				return nil, errors.Wrapf(ErrMalformedIOB, "%q at %d inside a %s entity", tag, i, open)
			}
			if prefix == "I" {
				continue
			}
			retval = append(retval, types.Span{Start: start, End: i + 1, Label: label})
			start = -1
		default:
			return nil, errors.Wrapf(ErrMalformedIOB, "unknown tag %q at %d", tag, i)
		}
	}
	return retval, nil
}

// OffsetsFromBILUOTags converts tags to character offsets into doc's text
func OffsetsFromBILUOTags(doc *types.Doc, tags []string) ([]Offset, error) {
	spans, err := SpansFromBILUOTags(tags)
	if err != nil {
		return nil, err
	}
	offsets := doc.Offsets()
	retval := make([]Offset, len(spans))
	for i, s := range spans {
		last := s.End - 1
		retval[i] = Offset{offsets[s.Start], offsets[last] + utf8.RuneCountInString(doc.Tokens[last].Text), s.Label}
	}
	return retval, nil
}

// TagsFromSpans writes non-overlapping token spans as BILUO tags
func TagsFromSpans(n int, spans []types.Span) []string {
	retval := make([]string, n)
	for i := range retval {
		retval[i] = "O"
	}
	for _, s := range spans {
		if s.End-s.Start == 1 {
			retval[s.Start] = "U-" + s.Label
			continue
		}
		retval[s.Start] = "B-" + s.Label
		for i := s.Start + 1; i < s.End-1; i++ {
			retval[i] = "I-" + s.Label
		}
		retval[s.End-1] = "L-" + s.Label
	}
	return retval
}

// IsBILUO reports whether any tag uses the L- or U- prefix
func IsBILUO(tags []string) bool {
	for _, t := range tags {
		if strings.HasPrefix(t, "L-") || strings.HasPrefix(t, "U-") {
			return true
		}
	}
	return false
}
