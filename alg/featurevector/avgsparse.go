package featurevector

import "fmt"

// HistoryValue is a weight that remembers its running sum over update
// generations, for averaging.
type HistoryValue struct {
	Generation   int
	Value, Total float64
}

func (h *HistoryValue) IntegratedValue(generation int) float64 {
	return h.Total + float64(generation-h.Generation)*h.Value
}

func (h *HistoryValue) Add(generation int, amount float64) {
	if generation > h.Generation {
		h.Total += float64(generation-h.Generation) * h.Value
		h.Generation = generation
	}
	h.Value += amount
}

// Average returns the mean value over generations [0, generation)
func (h *HistoryValue) Average(generation int) float64 {
	if generation <= 0 {
		return h.Value
	}
	return h.IntegratedValue(generation) / float64(generation)
}

// AvgSparse maps a feature to a row of per-transition history values
type AvgSparse struct {
	Vals map[Feature][]HistoryValue
}

func NewAvgSparse() *AvgSparse {
	return &AvgSparse{Vals: make(map[Feature][]HistoryValue)}
}

func (s *AvgSparse) Add(generation, transition int, feature Feature, amount float64) {
	row := s.Vals[feature]
	if transition >= len(row) {
		extended := make([]HistoryValue, transition+1)
		copy(extended, row)
		row = extended
	}
	if row[transition].Generation == 0 && row[transition].Value == 0 && row[transition].Total == 0 {
		row[transition].Generation = generation
	}
	row[transition].Add(generation, amount)
	s.Vals[feature] = row
}

// Value of feature for transition; unknown features weigh 0
func (s *AvgSparse) Value(transition int, feature Feature) float64 {
	row := s.Vals[feature]
	if transition < len(row) {
		return row[transition].Value
	}
	return 0
}

// Averaged returns a copy whose values are the averages at generation,
// with the history reset.
func (s *AvgSparse) Averaged(generation int) *AvgSparse {
	retval := &AvgSparse{Vals: make(map[Feature][]HistoryValue, len(s.Vals))}
	for f, row := range s.Vals {
		newRow := make([]HistoryValue, len(row))
		for i := range row {
			newRow[i].Value = row[i].Average(generation)
		}
		retval.Vals[f] = newRow
	}
	return retval
}

func (s *AvgSparse) Len() int {
	return len(s.Vals)
}

func (s *AvgSparse) String() string {
	return fmt.Sprintf("AvgSparse(%d features)", len(s.Vals))
}
