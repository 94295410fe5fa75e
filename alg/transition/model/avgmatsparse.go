package model

import (
	"encoding/gob"
	"fmt"
	"io"

	. "arcner/alg/featurevector"
	. "arcner/alg/transition"

	"github.com/pkg/errors"
)

func init() {
	gob.Register(&AvgMatrixSparseSerialized{})
}

// AvgMatrixSparse is an averaged perceptron over hashed features: every
// feature has a row of per-transition weights.
type AvgMatrixSparse struct {
	Mat        *AvgSparse
	Generation int
}

type AvgMatrixSparseSerialized struct {
	Generation int
	Vals       map[Feature][]HistoryValue
}

var _ Trainable = &AvgMatrixSparse{}

func NewAvgMatrixSparse() *AvgMatrixSparse {
	return &AvgMatrixSparse{Mat: NewAvgSparse(), Generation: 1}
}

func (t *AvgMatrixSparse) Scores(features []Feature, transitions []Transition, scores []float64) {
	for i := range transitions {
		scores[i] = 0
	}
	for _, f := range features {
		row, exists := t.Mat.Vals[f]
		if !exists {
			continue
		}
		for i, tr := range transitions {
			if int(tr) < len(row) {
				scores[i] += row[tr].Value
			}
		}
	}
}

func (t *AvgMatrixSparse) Update(features []Feature, tr Transition, amount float64) {
	for _, f := range features {
		t.Mat.Add(t.Generation, int(tr), f, amount)
	}
}

func (t *AvgMatrixSparse) Tick() {
	t.Generation++
}

// Averaged returns a read-only scorer holding the averaged weights
func (t *AvgMatrixSparse) Averaged() Interface {
	return &AvgMatrixSparse{Mat: t.Mat.Averaged(t.Generation), Generation: 1}
}

func (t *AvgMatrixSparse) Serialize() *AvgMatrixSparseSerialized {
	return &AvgMatrixSparseSerialized{Generation: t.Generation, Vals: t.Mat.Vals}
}

func (t *AvgMatrixSparse) Deserialize(data *AvgMatrixSparseSerialized) {
	t.Generation = data.Generation
	t.Mat = &AvgSparse{Vals: data.Vals}
	if t.Mat.Vals == nil {
		t.Mat.Vals = make(map[Feature][]HistoryValue)
	}
}

func (t *AvgMatrixSparse) Write(writer io.Writer) error {
	return errors.Wrap(gob.NewEncoder(writer).Encode(t.Serialize()), "encoding weights")
}

func (t *AvgMatrixSparse) Read(reader io.Reader) error {
	data := &AvgMatrixSparseSerialized{}
	if err := gob.NewDecoder(reader).Decode(data); err != nil {
		return errors.Wrap(err, "decoding weights")
	}
	t.Deserialize(data)
	return nil
}

func (t *AvgMatrixSparse) String() string {
	return fmt.Sprintf("AvgMatrixSparse(generation %d, %v)", t.Generation, t.Mat)
}
