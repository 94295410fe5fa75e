package transition

import (
	"fmt"

	. "arcner/alg/transition"
	"arcner/alg/perceptron"
	"arcner/alg/search"
	TransitionModel "arcner/alg/transition/model"
	"arcner/nlp/gold"
	"arcner/nlp/parser/nonproj"
	"arcner/nlp/types"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotTrained = errors.New("parser has no model")
	ErrFrozen     = errors.New("label table is frozen")
)

// Kind selects the transition system a Parser drives
type Kind int

const (
	Dependency Kind = iota
	Entity
)

func (k Kind) String() string {
	switch k {
	case Dependency:
		return "dep"
	case Entity:
		return "ner"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func ParseKind(s string) (Kind, error) {
	switch s {
	case "dep", "parser", "dependency":
		return Dependency, nil
	case "ner", "entity":
		return Entity, nil
	}
	return 0, errors.Errorf("unknown parser kind %q", s)
}

const DefaultRootLabel = "ROOT"

type Config struct {
	BeamWidth      int
	UpdateStrategy search.UpdateStrategy
	Iterations     int
	BatchSize      int
	// Explore follows the model's predictions during greedy training
	Explore bool
	// Segment lets the dependency parser insert sentence boundaries
	Segment      bool
	Projectivize bool
	Features     *FeatureSetup
	NoRecover    bool
}

// Parser is a dependency parser or an entity recognizer: a transition
// system, its feature templates, the label table and the scorer.
type Parser struct {
	Kind      Kind
	Conf      Config
	ID        uuid.UUID
	Labels    *types.LabelTable
	RootLabel string

	System    TransitionSystem
	Extractor *Extractor
	// Model scores transitions at decode time
	Model TransitionModel.Interface

	// AfterEpoch runs after every training iteration with Model set to
	// the weights averaged so far
	AfterEpoch func(e *perceptron.Epoch)
}

func NewParser(kind Kind, conf Config) (*Parser, error) {
	features := conf.Features
	if features == nil {
		if kind == Dependency {
			features = DefaultDependencyFeatures
		} else {
			features = DefaultEntityFeatures
		}
	}
	extractor, err := NewExtractor(features.Templates())
	if err != nil {
		return nil, err
	}
	return newParser(kind, conf, types.NewLabelTable(), extractor), nil
}

func newParser(kind Kind, conf Config, labels *types.LabelTable, extractor *Extractor) *Parser {
	p := &Parser{
		Kind:      kind,
		Conf:      conf,
		ID:        uuid.New(),
		Labels:    labels,
		RootLabel: DefaultRootLabel,
		Extractor: extractor,
	}
	if kind == Dependency {
		p.System = NewArcEager(labels, conf.Segment)
	} else {
		p.System = NewBILUO(labels)
	}
	return p
}

// AddLabel registers a label; new labels are rejected once the table is
// frozen. Returns whether the label was new.
func (p *Parser) AddLabel(label string) (bool, error) {
	if _, exists := p.Labels.ID(label); exists {
		return false, nil
	}
	if p.Labels.Frozen() {
		return false, errors.Wrapf(ErrFrozen, "adding %q", label)
	}
	_, added := p.Labels.Add(label)
	return added, nil
}

// Freeze fixes the label table and with it the transition ids. A
// dependency parser always knows its root label.
func (p *Parser) Freeze() {
	if p.Kind == Dependency && !p.Labels.Frozen() {
		p.Labels.Add(p.RootLabel)
	}
	p.Labels.Freeze()
}

// CollectLabels adds the labels used by the examples' gold annotation in
// order of first use. Examples whose gold cannot be built are skipped.
func (p *Parser) CollectLabels(examples []*gold.Example) error {
	rootSeen := false
	for i, ex := range examples {
		g, err := ex.GoldParse(p.Kind == Dependency && p.Conf.Projectivize)
		if err != nil {
			log.Debug().Err(err).Int("example", i).Msg("no labels collected")
			continue
		}
		if p.Kind == Entity {
			for _, tag := range g.NER {
				if _, label := gold.SplitTag(tag); label != "" {
					if _, err := p.AddLabel(label); err != nil {
						return err
					}
				}
			}
			continue
		}
		for token, head := range g.Heads {
			label := g.Labels[token]
			if head < 0 || label == "" {
				continue
			}
			if head == token && !rootSeen && !nonproj.IsDecorated(label) {
				p.RootLabel, rootSeen = label, true
			}
			if _, err := p.AddLabel(label); err != nil {
				return err
			}
		}
	}
	return nil
}

// Gold converts an example into the gold of the parser's system
func (p *Parser) Gold(ex *gold.Example) (interface{}, error) {
	g, err := ex.GoldParse(p.Kind == Dependency && p.Conf.Projectivize)
	if err != nil {
		return nil, err
	}
	if p.Kind == Entity {
		return NewEntityGold(g.NER, p.Labels)
	}
	dg := &DependencyGold{
		Heads:      append([]int(nil), g.Heads...),
		Labels:     make([]int, len(g.Heads)),
		SentStarts: append([]int8(nil), g.SentStarts...),
	}
	for token, label := range g.Labels {
		dg.Labels[token] = -1
		if id, ok := p.Labels.ID(label); ok {
			dg.Labels[token] = id
		}
	}
	return dg, nil
}

func (p *Parser) decoder(m TransitionModel.Interface) search.Interface {
	if p.Conf.BeamWidth > 1 {
		return &search.Beam{
			TransFunc:     p.System,
			FeatExtractor: p.Extractor,
			Model:         m,
			Size:          p.Conf.BeamWidth,
			Update:        p.Conf.UpdateStrategy,
			NoRecover:     p.Conf.NoRecover,
		}
	}
	return &search.Deterministic{
		Model:         m,
		TransFunc:     p.System,
		FeatExtractor: p.Extractor,
		NoRecover:     p.Conf.NoRecover,
	}
}

// Parse annotates doc in place
func (p *Parser) Parse(doc *types.Doc) error {
	if p.Model == nil {
		return ErrNotTrained
	}
	result, err := p.decoder(p.Model).Decode(NewStateBuffer(doc))
	if err != nil {
		return errors.Wrapf(err, "parsing %q", doc.Text())
	}
	p.commit(doc, result.Configuration.(*StateBuffer))
	return nil
}

func (p *Parser) commit(doc *types.Doc, s *StateBuffer) {
	if p.Kind == Entity {
		s.Commit(doc, nil, p.Labels, p.RootLabel)
		return
	}
	s.Commit(doc, p.Labels, nil, p.RootLabel)
	heads, deps := nonproj.Deprojectivize(doc.Heads(), doc.Deps())
	for i := range doc.Tokens {
		doc.Tokens[i].Head, doc.Tokens[i].Dep = heads[i], deps[i]
	}
}

// ParseBatch parses every doc; a failing doc does not stop the others.
// The returned slice holds one error (or nil) per doc.
func (p *Parser) ParseBatch(docs []*types.Doc) []error {
	retval := make([]error, len(docs))
	for i, doc := range docs {
		if retval[i] = p.Parse(doc); retval[i] != nil {
			log.Warn().Err(retval[i]).Int("doc", i).Msg("doc not parsed")
		}
	}
	return retval
}

// instance is one prepared training example; err is a data error found
// while building its gold and drops it from every iteration
type instance struct {
	doc  *types.Doc
	gold interface{}
	err  error
}

// Train collects labels if none are registered yet, freezes them and
// runs the perceptron. Model holds the averaged weights afterwards.
func (p *Parser) Train(examples []*gold.Example) ([]perceptron.Epoch, error) {
	if p.Labels.Len() == 0 {
		if err := p.CollectLabels(examples); err != nil {
			return nil, err
		}
	}
	p.Freeze()
	instances := make([]perceptron.Instance, len(examples))
	dropped := 0
	for i, ex := range examples {
		g, err := p.Gold(ex)
		if err != nil {
			dropped++
			log.Debug().Err(err).Int("example", i).Msg("bad gold annotation")
		}
		instances[i] = &instance{doc: ex.Doc, gold: g, err: err}
	}
	if dropped > 0 {
		log.Warn().Int("dropped", dropped).Int("examples", len(examples)).Msg("examples with unusable gold annotation")
	}
	weights := TransitionModel.NewAvgMatrixSparse()
	trainer := &perceptron.LinearPerceptron{
		Decoder:    p,
		Updater:    &perceptron.AveragedStrategy{},
		Iterations: p.Conf.Iterations,
		BatchSize:  p.Conf.BatchSize,
	}
	trainer.Init(weights)
	if p.AfterEpoch != nil {
		trainer.AfterEpoch = func(e *perceptron.Epoch, m TransitionModel.Trainable) {
			p.Model = m.Averaged()
			p.AfterEpoch(e)
		}
	}
	log.Info().
		Str("system", p.System.Name()).
		Int("transitions", p.System.NumTransitions()).
		Int("templates", p.Extractor.NumTemplates()).
		Int("beam", p.Conf.BeamWidth).
		Msg("training")
	epochs, err := trainer.Train(instances)
	if err != nil {
		return epochs, err
	}
	p.Model = trainer.Finalized()
	return epochs, nil
}

var _ perceptron.EarlyUpdateInstanceDecoder = &Parser{}

// DecodeEarlyUpdate trains on one instance: dynamic-oracle updates when
// greedy, a violation update when decoding with a beam
func (p *Parser) DecodeEarlyUpdate(i perceptron.Instance, m TransitionModel.Trainable) (*perceptron.Decoded, error) {
	inst := i.(*instance)
	if inst.err != nil {
		return nil, inst.err
	}
	oracle, err := p.System.Oracle(inst.gold)
	if err != nil {
		return nil, err
	}
	start := NewStateBuffer(inst.doc)
	if p.Conf.BeamWidth <= 1 {
		greedy := &search.Deterministic{TransFunc: p.System, FeatExtractor: p.Extractor, NoRecover: p.Conf.NoRecover}
		outcome, err := greedy.TrainDynamic(start, oracle, m, p.Conf.Explore)
		if err != nil {
			return nil, err
		}
		return &perceptron.Decoded{Loss: outcome.Loss, Updates: outcome.Errors}, nil
	}
	beam := p.decoder(m).(*search.Beam)
	violation, err := beam.Train(start, oracle)
	if err != nil {
		return nil, err
	}
	if violation == nil {
		return &perceptron.Decoded{}, nil
	}
	loss := 1.0
	if violation.Delta > 0 {
		loss += violation.Delta
	}
	updates := perceptron.AddSubtract(m, violation.Gold.History, violation.Pred.History, 1)
	return &perceptron.Decoded{Loss: loss, Updates: updates}, nil
}

// Oracle returns the oracle parse of an example's doc, for inspection
func (p *Parser) Oracle(ex *gold.Example) ([]Transition, error) {
	g, err := p.Gold(ex)
	if err != nil {
		return nil, err
	}
	oracle, err := p.System.Oracle(g)
	if err != nil {
		return nil, err
	}
	var (
		retval []Transition
		s      = NewStateBuffer(ex.Doc)
	)
	err = func() (err error) {
		defer Recover(&err)
		for !s.Terminal() {
			t := oracle.Transition(s)
			if t == NoTransition {
				Invariant("Parser.Oracle", "no valid transition at %v", s)
			}
			p.System.Apply(s, t)
			retval = append(retval, t)
		}
		return nil
	}()
	return retval, err
}

func (p *Parser) String() string {
	return fmt.Sprintf("%v parser %v (%d labels, %d templates)", p.Kind, p.ID, p.Labels.Len(), p.Extractor.NumTemplates())
}
