package perceptron

import (
	TransitionModel "arcner/alg/transition/model"

	"github.com/rs/zerolog/log"
)

type StopCondition func(curIt, numIt int, last *Epoch) bool

// Epoch summarizes one training iteration
type Epoch struct {
	Iteration int
	Loss      float64
	Updates   int
	Instances int
	Failed    int
}

type LinearPerceptron struct {
	Decoder    EarlyUpdateInstanceDecoder
	Updater    UpdateStrategy
	Iterations int
	BatchSize  int
	Model      TransitionModel.Trainable

	FailedInstances int

	Continue StopCondition
	// AfterEpoch runs between iterations, e.g. for held-out evaluation
	AfterEpoch func(e *Epoch, m TransitionModel.Trainable)
}

var _ SupervisedTrainer = &LinearPerceptron{}

func (m *LinearPerceptron) Init(newModel TransitionModel.Trainable) {
	m.Model = newModel
	if m.Updater == nil {
		m.Updater = &AveragedStrategy{}
	}
}

func DefaultStopCondition(iteration, iterations int, last *Epoch) bool {
	return iteration < iterations
}

// Train runs the configured iterations and returns their summaries.
// Finalized returns the scorer to decode with afterwards.
func (m *LinearPerceptron) Train(instances []Instance) ([]Epoch, error) {
	if m.Model == nil {
		panic("Model not initialized")
	}
	if m.Continue == nil {
		m.Continue = DefaultStopCondition
	}
	if m.Updater == nil {
		m.Updater = &AveragedStrategy{}
	}
	var (
		epochs []Epoch
		last   *Epoch
	)
	batcher := NewBatcher(instances, m.BatchSize)
	for i := 0; m.Continue(i, m.Iterations, last); i++ {
		epoch := Epoch{Iteration: i}
		batcher.Reset()
		for batchNum := 0; ; batchNum++ {
			batch, ok := batcher.Next()
			if !ok {
				break
			}
			var batchLoss float64
			for _, instance := range batch {
				decoded, err := m.Decoder.DecodeEarlyUpdate(instance, m.Model)
				m.Model.Tick()
				if err != nil {
					log.Debug().Err(err).Int("iteration", i).Int("instance", epoch.Instances).Msg("instance skipped")
					epoch.Failed++
					m.FailedInstances++
					epoch.Instances++
					continue
				}
				batchLoss += decoded.Loss
				epoch.Updates += decoded.Updates
				epoch.Instances++
			}
			epoch.Loss += batchLoss
			log.Debug().Int("iteration", i).Int("batch", batchNum).Float64("loss", batchLoss).Msg("batch")
		}
		log.Info().
			Int("iteration", i).
			Float64("loss", epoch.Loss).
			Int("updates", epoch.Updates).
			Int("instances", epoch.Instances).
			Int("dropped", epoch.Failed).
			Msg("epoch done")
		epochs = append(epochs, epoch)
		last = &epochs[len(epochs)-1]
		if m.AfterEpoch != nil {
			m.AfterEpoch(last, m.Model)
		}
	}
	return epochs, nil
}

// Finalized is the scorer produced by the update strategy
func (m *LinearPerceptron) Finalized() TransitionModel.Interface {
	return m.Updater.Finalize(m.Model)
}

type UpdateStrategy interface {
	Finalize(m TransitionModel.Trainable) TransitionModel.Interface
}

type TrivialStrategy struct{}

func (u *TrivialStrategy) Finalize(m TransitionModel.Trainable) TransitionModel.Interface {
	return m
}

type AveragedStrategy struct{}

func (u *AveragedStrategy) Finalize(m TransitionModel.Trainable) TransitionModel.Interface {
	return m.Averaged()
}
