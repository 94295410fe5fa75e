package gold

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Alignment maps tokens of A onto tokens of B and back. A token has a
// single partner, a fan-out set of character-overlapping partners, or
// neither. The two directions are mirror images.
type Alignment struct {
	// Cost is the token-level edit distance
	Cost    int
	A2B     []int
	B2A     []int
	A2BMany [][]int
	B2AMany [][]int
}

// Transpose returns the alignment of B onto A
func (a *Alignment) Transpose() *Alignment {
	return &Alignment{Cost: a.Cost, A2B: a.B2A, B2A: a.A2B, A2BMany: a.B2AMany, B2AMany: a.A2BMany}
}

// Identity aligns a sequence of n tokens with itself
func Identity(n int) *Alignment {
	a := &Alignment{A2B: make([]int, n), B2A: make([]int, n), A2BMany: make([][]int, n), B2AMany: make([][]int, n)}
	for i := 0; i < n; i++ {
		a.A2B[i], a.B2A[i] = i, i
	}
	return a
}

// normalizeToken strips whitespace, applies NFKC and lower-cases
func normalizeToken(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return cases.Lower(language.Und).String(norm.NFKC.String(s))
}

type editCost struct {
	tokens, chars int
}

func (c editCost) plus(tokens, chars int) editCost {
	return editCost{c.tokens + tokens, c.chars + chars}
}

func (c editCost) less(o editCost) bool {
	return c.tokens < o.tokens || (c.tokens == o.tokens && c.chars < o.chars)
}

const (
	opMatch byte = iota
	opSubstitute
	opDelete
	opInsert
)

// Align computes a minimum edit path between two token sequences. Cost 0
// for a match and 1 for substitute, insert or delete; character distance
// breaks ties between equally cheap paths.
func Align(a, b []string) *Alignment {
	if seqLess(b, a) {
		return align(b, a).Transpose()
	}
	return align(a, b)
}

func seqLess(a, b []string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func align(rawA, rawB []string) *Alignment {
	a, b := normalizeAll(rawA), normalizeAll(rawB)
	n, m := len(a), len(b)
	table := make([][]editCost, n+1)
	for i := range table {
		table[i] = make([]editCost, m+1)
	}
	for i := 1; i <= n; i++ {
		table[i][0] = table[i-1][0].plus(1, runeLen(a[i-1]))
	}
	for j := 1; j <= m; j++ {
		table[0][j] = table[0][j-1].plus(1, runeLen(b[j-1]))
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			var diag editCost
			if a[i-1] == b[j-1] {
				diag = table[i-1][j-1]
			} else {
				diag = table[i-1][j-1].plus(1, levenshtein.ComputeDistance(a[i-1], b[j-1]))
			}
			best := diag
			if del := table[i-1][j].plus(1, runeLen(a[i-1])); del.less(best) {
				best = del
			}
			if ins := table[i][j-1].plus(1, runeLen(b[j-1])); ins.less(best) {
				best = ins
			}
			table[i][j] = best
		}
	}

	result := &Alignment{
		Cost:    table[n][m].tokens,
		A2B:     filled(n, -1),
		B2A:     filled(m, -1),
		A2BMany: make([][]int, n),
		B2AMany: make([][]int, m),
	}
	spansA, spansB := charSpans(a), charSpans(b)
	sameText := strings.Join(a, "") == strings.Join(b, "")
	for i, j := n, m; i > 0 || j > 0; {
		switch op := backtrace(table, a, b, i, j); op {
		case opMatch, opSubstitute:
			if op == opMatch || (sameText && overlaps(spansA[i-1], spansB[j-1])) {
				result.A2B[i-1], result.B2A[j-1] = j-1, i-1
			}
			i, j = i-1, j-1
		case opDelete:
			i--
		case opInsert:
			j--
		}
	}
	if sameText {
		fanOut(result.A2B, result.A2BMany, spansA, spansB)
		fanOut(result.B2A, result.B2AMany, spansB, spansA)
	}
	return result
}

// backtrace prefers the diagonal, then deletion, then insertion
func backtrace(table [][]editCost, a, b []string, i, j int) byte {
	if i > 0 && j > 0 {
		if a[i-1] == b[j-1] && table[i][j] == table[i-1][j-1] {
			return opMatch
		}
		if a[i-1] != b[j-1] && table[i][j] == table[i-1][j-1].plus(1, levenshtein.ComputeDistance(a[i-1], b[j-1])) {
			return opSubstitute
		}
	}
	if i > 0 && table[i][j] == table[i-1][j].plus(1, runeLen(a[i-1])) {
		return opDelete
	}
	if j == 0 {
		return opDelete
	}
	return opInsert
}

func fanOut(single []int, many [][]int, from, to [][2]int) {
	for i, partner := range single {
		if partner >= 0 {
			continue
		}
		for j, span := range to {
			if overlaps(from[i], span) {
				many[i] = append(many[i], j)
			}
		}
	}
}

func normalizeAll(tokens []string) []string {
	retval := make([]string, len(tokens))
	for i, t := range tokens {
		retval[i] = normalizeToken(t)
	}
	return retval
}

func charSpans(tokens []string) [][2]int {
	retval := make([][2]int, len(tokens))
	pos := 0
	for i, t := range tokens {
		l := runeLen(t)
		retval[i] = [2]int{pos, pos + l}
		pos += l
	}
	return retval
}

func overlaps(x, y [2]int) bool {
	return x[0] < y[1] && y[0] < x[1]
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func filled(n, v int) []int {
	retval := make([]int, n)
	for i := range retval {
		retval[i] = v
	}
	return retval
}
