package types

import "arcner/util"

// LabelTable is an append-only label registry. Labels are added by a
// single writer before or between training epochs; ids never change.
type LabelTable struct {
	set *util.EnumSet
}

func NewLabelTable(labels ...string) *LabelTable {
	return &LabelTable{util.NewEnumSetFrom(labels)}
}

func (l *LabelTable) Add(label string) (int, bool) {
	return l.set.Add(label)
}

func (l *LabelTable) ID(label string) (int, bool) {
	return l.set.IndexOf(label)
}

func (l *LabelTable) Label(id int) string {
	return l.set.ValueOf(id)
}

func (l *LabelTable) Len() int {
	return l.set.Len()
}

// Labels in id order
func (l *LabelTable) Labels() []string {
	return l.set.Values()
}

func (l *LabelTable) Freeze() {
	l.set.Freeze()
}

func (l *LabelTable) Frozen() bool {
	return l.set.Frozen
}
