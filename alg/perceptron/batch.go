package perceptron

// Batcher walks a fixed instance list in minibatches
type Batcher struct {
	Instances []Instance
	Size      int
	pos       int
}

func NewBatcher(instances []Instance, size int) *Batcher {
	if size < 1 {
		size = 1
	}
	return &Batcher{Instances: instances, Size: size}
}

// Next returns the next minibatch, or false when the list is exhausted
func (b *Batcher) Next() ([]Instance, bool) {
	if b.pos >= len(b.Instances) {
		return nil, false
	}
	end := b.pos + b.Size
	if end > len(b.Instances) {
		end = len(b.Instances)
	}
	batch := b.Instances[b.pos:end]
	b.pos = end
	return batch, true
}

func (b *Batcher) Reset() {
	b.pos = 0
}
