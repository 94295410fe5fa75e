package transition

import (
	"encoding/gob"
	"io"
	"os"

	TransitionModel "arcner/alg/transition/model"
	"arcner/nlp/types"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// modelFile is the persisted form of a trained Parser. Labels keep their
// id order, which fixes the transition ids the weights refer to.
type modelFile struct {
	ID        string
	Kind      Kind
	Labels    []string
	RootLabel string
	Templates []string
	Segment   bool
	Weights   *TransitionModel.AvgMatrixSparseSerialized
}

func (p *Parser) Save(w io.Writer) error {
	weights, ok := p.Model.(*TransitionModel.AvgMatrixSparse)
	if !ok {
		return errors.Wrapf(ErrNotTrained, "cannot save scorer %T", p.Model)
	}
	data := &modelFile{
		ID:        p.ID.String(),
		Kind:      p.Kind,
		Labels:    p.Labels.Labels(),
		RootLabel: p.RootLabel,
		Templates: p.Extractor.TemplateStrings(),
		Segment:   p.Conf.Segment,
		Weights:   weights.Serialize(),
	}
	return errors.Wrap(gob.NewEncoder(w).Encode(data), "encoding model")
}

// Load restores a parser saved with Save. conf supplies the decoding
// settings; labels, templates and weights come from the file.
func Load(r io.Reader, conf Config) (*Parser, error) {
	data := &modelFile{}
	if err := gob.NewDecoder(r).Decode(data); err != nil {
		return nil, errors.Wrap(err, "decoding model")
	}
	id, err := uuid.Parse(data.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "model id %q", data.ID)
	}
	extractor, err := NewExtractor(data.Templates)
	if err != nil {
		return nil, err
	}
	conf.Segment = data.Segment
	labels := types.NewLabelTable(data.Labels...)
	labels.Freeze()
	p := newParser(data.Kind, conf, labels, extractor)
	p.ID, p.RootLabel = id, data.RootLabel
	weights := TransitionModel.NewAvgMatrixSparse()
	weights.Deserialize(data.Weights)
	p.Model = weights
	log.Info().Str("model", p.ID.String()).Str("kind", p.Kind.String()).Int("labels", labels.Len()).Msg("model loaded")
	return p, nil
}

func (p *Parser) SaveFile(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "creating %s", filename)
	}
	defer file.Close()
	if err := p.Save(file); err != nil {
		return err
	}
	return errors.Wrapf(file.Close(), "closing %s", filename)
}

func LoadFile(filename string, conf Config) (*Parser, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", filename)
	}
	defer file.Close()
	return Load(file, conf)
}
