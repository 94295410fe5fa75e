package transition

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	FEATURE_SEPARATOR   = "+"
	ATTRIBUTE_SEPARATOR = "."
)

var ErrTemplate = errors.New("malformed feature template")

type FeatureGroup struct {
	Group    string   `yaml:"group"`
	Features []string `yaml:"features"`
}

// FeatureSetup is the feature configuration file:
//
//	feature groups:
//	  - group: unigrams
//	    features: [S0.w, B0.p, S0.w+B0.p]
type FeatureSetup struct {
	FeatureGroups []FeatureGroup `yaml:"feature groups"`
}

func (s *FeatureSetup) NumFeatures() int {
	var numFeatures int
	for _, group := range s.FeatureGroups {
		numFeatures += len(group.Features)
	}
	return numFeatures
}

// Templates lists the features of all groups in file order
func (s *FeatureSetup) Templates() []string {
	retval := make([]string, 0, s.NumFeatures())
	for _, group := range s.FeatureGroups {
		retval = append(retval, group.Features...)
	}
	return retval
}

func LoadFeatureConf(conf []byte) (*FeatureSetup, error) {
	setup := new(FeatureSetup)
	if err := yaml.Unmarshal(conf, setup); err != nil {
		return nil, errors.Wrap(err, "parsing feature configuration")
	}
	if setup.NumFeatures() == 0 {
		return nil, errors.Wrap(ErrTemplate, "feature configuration has no features")
	}
	return setup, nil
}

func LoadFeatureConfFile(filename string) (*FeatureSetup, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", filename)
	}
	return LoadFeatureConf(data)
}

var DefaultDependencyFeatures = &FeatureSetup{
	FeatureGroups: []FeatureGroup{
		{Group: "unigrams", Features: []string{
			"S0.w", "S0.p", "S0.w+S0.p", "S0.m", "S0.x",
			"B0.w", "B0.p", "B0.w+B0.p", "B0.m", "B0.x", "B0.s",
			"B1.w", "B1.p", "B1.w+B1.p", "B2.p", "S1.p", "S1.w",
		}},
		{Group: "pairs", Features: []string{
			"S0.w+B0.w", "S0.p+B0.p", "S0.w+S0.p+B0.p", "S0.p+B0.w+B0.p",
			"S0.w+S0.p+B0.w", "S0.w+B0.p", "S0.p+B0.w",
		}},
		{Group: "triples", Features: []string{
			"S0.p+B0.p+B1.p", "B0.p+B1.p+B2.p", "S1.p+S0.p+B0.p",
			"S0h.p+S0.p+B0.p", "S0L.p+S0.p+B0.p", "S0R.p+S0.p+B0.p", "B0L.p+S0.p+B0.p",
		}},
		{Group: "labels", Features: []string{
			"S0.l", "S0L.l", "S0R.l", "B0L.l", "S0h.w", "S0h.l",
			"S0.w+S0.v", "S0.p+S0.v", "B0.w+B0.v", "B0.p+B0.v",
		}},
	},
}

var DefaultEntityFeatures = &FeatureSetup{
	FeatureGroups: []FeatureGroup{
		{Group: "window", Features: []string{
			"B0.w", "B0.m", "B0.p", "B0.x", "B0.s",
			"B1.w", "B1.p", "B1.x", "B2.w", "B2.x",
			"P1.w", "P1.p", "P1.x", "P2.w",
		}},
		{Group: "history", Features: []string{
			"P1.e", "P2.e", "P1.e+P2.e", "P1.e+B0.w", "P1.e+B0.x", "P1.e+B0.p",
		}},
		{Group: "entity", Features: []string{
			"E0.w", "E0.p", "E1.w", "E0.w+B0.w", "E0.x+B0.x",
		}},
		{Group: "conjunctions", Features: []string{
			"B0.w+B1.w", "P1.w+B0.w", "B0.x+B1.x", "B0.p+B1.p", "P1.p+B0.p", "P1.x+B0.x",
		}},
	},
}

// element is one POSITION[MODIFIERS].ATTRIBUTE part of a template
type element struct {
	Source byte
	Offset int
	Mods   []byte
	Attr   byte
}

// Template is a parsed feature template
type Template struct {
	ID       int
	Elements []element
	Str      string
}

var maxOffset = map[byte][2]int{
	'S': {0, 2},
	'B': {0, 2},
	'P': {1, 2},
	'E': {0, 1},
}

func ParseTemplate(id int, s string) (*Template, error) {
	tmpl := &Template{ID: id, Str: s}
	for _, part := range strings.Split(s, FEATURE_SEPARATOR) {
		el, err := parseElement(strings.TrimSpace(part))
		if err != nil {
			return nil, errors.Wrapf(err, "template %q", s)
		}
		tmpl.Elements = append(tmpl.Elements, el)
	}
	return tmpl, nil
}

func parseElement(s string) (element, error) {
	var el element
	dot := strings.LastIndex(s, ATTRIBUTE_SEPARATOR)
	if dot < 2 || dot != len(s)-2 {
		return el, errors.Wrapf(ErrTemplate, "element %q", s)
	}
	address, attr := s[:dot], s[dot+1]
	if !strings.ContainsRune("wmpxslev", rune(attr)) {
		return el, errors.Wrapf(ErrTemplate, "unknown attribute %q in %q", attr, s)
	}
	el.Source, el.Attr = address[0], attr
	bounds, ok := maxOffset[el.Source]
	if !ok {
		return el, errors.Wrapf(ErrTemplate, "unknown position %q in %q", el.Source, s)
	}
	digits := 1
	for digits < len(address) && address[digits] >= '0' && address[digits] <= '9' {
		digits++
	}
	offset, err := strconv.Atoi(address[1:digits])
	if err != nil || offset < bounds[0] || offset > bounds[1] {
		return el, errors.Wrapf(ErrTemplate, "bad offset in %q", s)
	}
	el.Offset = offset
	for _, m := range []byte(address[digits:]) {
		if m != 'h' && m != 'L' && m != 'R' {
			return el, errors.Wrapf(ErrTemplate, "unknown modifier %q in %q", m, s)
		}
		el.Mods = append(el.Mods, m)
	}
	return el, nil
}
