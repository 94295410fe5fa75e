// Package nonproj implements the pseudo-projective transform of Nivre and
// Nilsson (2005): non-projective arcs are lifted until the tree is
// projective and the lifted arcs carry decorated labels that let
// Deprojectivize restore them.
//
// Heads are absolute indices; a root is its own head and -1 marks a token
// without a (known) head.
package nonproj

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	Delimiter    = "||"
	OffsetPrefix = "@"
)

var (
	ErrCycle     = errors.New("heads contain a cycle")
	ErrDelimiter = errors.New("label already contains the decoration delimiter")
	ErrLength    = errors.New("heads and labels differ in length")
)

// Ancestors returns the head chain of token, nearest first. The chain stops
// at a root, a missing head, or the first repeated token.
func Ancestors(token int, heads []int) []int {
	var retval []int
	seen := make(map[int]bool, 8)
	seen[token] = true
	for cur := token; ; {
		head := heads[cur]
		if head < 0 || head == cur || head >= len(heads) || seen[head] {
			return retval
		}
		retval = append(retval, head)
		seen[head] = true
		cur = head
	}
}

func ContainsCycle(heads []int) bool {
	for token := range heads {
		seen := map[int]bool{token: true}
		for cur := token; ; {
			head := heads[cur]
			if head < 0 || head == cur || head >= len(heads) {
				break
			}
			if seen[head] {
				return true
			}
			seen[head] = true
			cur = head
		}
	}
	return false
}

// IsNonProjArc reports whether the arc into token is non-projective: some
// token strictly between it and its head is not dominated by the head.
// Tokens whose chain ends in a missing head are ignored, root arcs are
// never non-projective.
func IsNonProjArc(token int, heads []int) bool {
	head := heads[token]
	if head < 0 || head == token {
		return false
	}
	start, end := head+1, token
	if head > token {
		start, end = token+1, head
	}
	for k := start; k < end; k++ {
		if !dominated(k, head, heads) {
			return true
		}
	}
	return false
}

func dominated(k, head int, heads []int) bool {
	for steps, cur := 0, k; steps <= len(heads); steps++ {
		next := heads[cur]
		switch {
		case next < 0:
			return true
		case next == head:
			return true
		case next == cur:
			return false
		}
		cur = next
	}
	return false
}

// dominates reports whether token is a proper ancestor of other
func dominates(token, other int, heads []int) bool {
	if token == other {
		return false
	}
	for _, a := range Ancestors(other, heads) {
		if a == token {
			return true
		}
	}
	return false
}

func IsNonProjTree(heads []int) bool {
	for token := range heads {
		if IsNonProjArc(token, heads) {
			return true
		}
	}
	return false
}

// smallestNonProjArc is the non-projective arc spanning the fewest tokens,
// ties broken left to right; -1 if none
func smallestNonProjArc(heads []int) int {
	smallest, retval := len(heads)+1, -1
	for token, head := range heads {
		size := token - head
		if size < 0 {
			size = -size
		}
		if size < smallest && IsNonProjArc(token, heads) {
			smallest, retval = size, token
		}
	}
	return retval
}

// lift reattaches token to its grandparent, or makes it a root when its
// head has no head
func lift(token int, heads []int) {
	head := heads[token]
	grand := heads[head]
	if grand == head || grand < 0 {
		heads[token] = token
	} else {
		heads[token] = grand
	}
}

// Projectivize returns a projective copy of the tree. Labels of lifted
// arcs become ORIG||HEADLABEL, or ORIG||@OFFSET when searching below the
// new head would not find the original head again.
func Projectivize(heads []int, labels []string) ([]int, []string, error) {
	if len(heads) != len(labels) {
		return nil, nil, ErrLength
	}
	for _, l := range labels {
		if strings.Contains(l, Delimiter) {
			return nil, nil, errors.Wrapf(ErrDelimiter, "label %q", l)
		}
	}
	if ContainsCycle(heads) {
		return nil, nil, ErrCycle
	}
	projHeads := append([]int(nil), heads...)
	for arc := smallestNonProjArc(projHeads); arc >= 0; arc = smallestNonProjArc(projHeads) {
		lift(arc, projHeads)
	}
	return projHeads, decorate(heads, projHeads, labels), nil
}

// decorate replays Deprojectivize while choosing each label, so that the
// HEAD decoration is only used where it restores the original head
func decorate(heads, projHeads []int, labels []string) []string {
	deco := append([]string(nil), labels...)
	current := append([]int(nil), projHeads...)
	lifted := make([]bool, len(heads))
	for i := range heads {
		lifted[i] = heads[i] != projHeads[i]
	}
	for i := range heads {
		if !lifted[i] {
			continue
		}
		headLabel := labels[heads[i]]
		visible := func(k int) string {
			if k > i && lifted[k] {
				return labels[k] + Delimiter
			}
			return labels[k]
		}
		if !strings.HasPrefix(headLabel, OffsetPrefix) && findNewHead(i, current, headLabel, visible) == heads[i] {
			deco[i] = labels[i] + Delimiter + headLabel
		} else {
			deco[i] = labels[i] + Delimiter + OffsetPrefix + strconv.Itoa(heads[i]-i)
		}
		current[i] = heads[i]
	}
	return deco
}

// findNewHead searches breadth-first, left to right, below the current
// head of token (not descending into token itself) for the first token
// labelled headLabel. Returns the current head if there is none.
func findNewHead(token int, heads []int, headLabel string, label func(int) string) int {
	start := heads[token]
	if start < 0 {
		return start
	}
	queue := []int{start}
	seen := map[int]bool{start: true}
	for len(queue) > 0 {
		var next []int
		for _, q := range queue {
			for child, head := range heads {
				if head != q || child == q || child == token || seen[child] {
					continue
				}
				if label(child) == headLabel {
					return child
				}
				seen[child] = true
				next = append(next, child)
			}
		}
		queue = next
	}
	return start
}

// DecomposeLabel splits a decorated label into the original label and the
// decoration
func DecomposeLabel(label string) (string, string, bool) {
	idx := strings.Index(label, Delimiter)
	if idx < 0 {
		return label, "", false
	}
	return label[:idx], label[idx+len(Delimiter):], true
}

func IsDecorated(label string) bool {
	return strings.Contains(label, Delimiter)
}

// Deprojectivize restores the arcs lifted by Projectivize, in token order
func Deprojectivize(heads []int, labels []string) ([]int, []string) {
	newHeads := append([]int(nil), heads...)
	newLabels := append([]string(nil), labels...)
	current := func(k int) string { return newLabels[k] }
	for i := range newLabels {
		orig, decoration, ok := DecomposeLabel(newLabels[i])
		if !ok {
			continue
		}
		h := newHeads[i]
		if strings.HasPrefix(decoration, OffsetPrefix) {
			if offset, err := strconv.Atoi(decoration[len(OffsetPrefix):]); err == nil {
				h = i + offset
			}
		} else if h >= 0 {
			h = findNewHead(i, newHeads, decoration, current)
		}
		if h >= 0 && h < len(newHeads) && !dominates(i, h, newHeads) {
			newHeads[i] = h
		}
		newLabels[i] = orig
	}
	return newHeads, newLabels
}
