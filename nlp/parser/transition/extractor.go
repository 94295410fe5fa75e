package transition

import (
	. "arcner/alg/featurevector"
	. "arcner/alg/transition"
)

// Extractor resolves templates against a StateBuffer. It only reads the
// state, so repeated calls at one state give the same features.
type Extractor struct {
	Templates []*Template
}

var _ FeatureExtractor = &Extractor{}

func NewExtractor(templates []string) (*Extractor, error) {
	x := &Extractor{Templates: make([]*Template, len(templates))}
	for i, s := range templates {
		tmpl, err := ParseTemplate(i, s)
		if err != nil {
			return nil, err
		}
		x.Templates[i] = tmpl
	}
	return x, nil
}

func (x *Extractor) NumTemplates() int {
	return len(x.Templates)
}

// TemplateStrings in template id order
func (x *Extractor) TemplateStrings() []string {
	retval := make([]string, len(x.Templates))
	for i, t := range x.Templates {
		retval[i] = t.Str
	}
	return retval
}

func (x *Extractor) Features(conf Configuration, into []Feature) []Feature {
	s := state(conf)
	var buf [8]uint64
	for _, tmpl := range x.Templates {
		values := buf[:0]
		for _, el := range tmpl.Elements {
			values = append(values, attribute(s, el))
		}
		into = append(into, Hash(tmpl.ID, values))
	}
	return into
}

func address(s *StateBuffer, el element) (int, bool) {
	var (
		token int
		ok    bool
	)
	switch el.Source {
	case 'S':
		token, ok = s.S(el.Offset)
	case 'B':
		token, ok = s.B(el.Offset)
	case 'P':
		token, ok = s.P(el.Offset)
	case 'E':
		token, ok = s.E(el.Offset)
	}
	if !ok {
		return 0, false
	}
	for _, m := range el.Mods {
		switch m {
		case 'h':
			head := s.Head(token)
			if head < 0 || head == token {
				return 0, false
			}
			token = head
		case 'L':
			if token = s.LeftChild(token); token < 0 {
				return 0, false
			}
		case 'R':
			if token = s.RightChild(token); token < 0 {
				return 0, false
			}
		}
	}
	return token, true
}

func attribute(s *StateBuffer, el element) uint64 {
	token, ok := address(s, el)
	if !ok {
		return Null
	}
	attrs := s.attrs[token]
	switch el.Attr {
	case 'w':
		return attrs.Orth
	case 'm':
		return attrs.Lemma
	case 'p':
		return attrs.Tag
	case 'x':
		return attrs.Shape
	case 's':
		return attrs.Suffix
	case 'l':
		if l := s.Label(token); l >= 0 {
			return uint64(l) + 1
		}
	case 'e':
		if move, label, ok := s.Entity(token); ok {
			return uint64(move)<<16 | uint64(label+2)
		}
	case 'v':
		left, right := s.Valency(token)
		return uint64(left+right) + 1
	}
	return Null
}
