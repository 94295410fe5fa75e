package util

import (
	. "unicode"
	"unicode/utf8"
)

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func Sign(x int) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

type RuneTester func(r rune) bool

func TestEach(t RuneTester, s string) byte {
	for i, w := 0, 0; i < len(s); i += w {
		runeValue, width := utf8.DecodeRuneInString(s[i:])
		if t(runeValue) {
			return 't'
		}
		w = width
	}
	return 'f'
}

var Testers = []RuneTester{
	IsDigit,
	IsLetter,
	IsLower,
	IsPunct,
	IsSymbol,
	IsUpper,
}

// Signature is a coarse word shape: one t/f flag per rune class in Testers
func Signature(s string) string {
	indicators := make([]byte, len(Testers))
	for i, t := range Testers {
		indicators[i] = TestEach(t, s)
	}
	return string(indicators)
}

func Prefix(s string, n int) string {
	runes := []rune(s)
	if len(runes) > n {
		runes = runes[:n]
	}
	return string(runes)
}

func Suffix(s string, n int) string {
	runes := []rune(s)
	if len(runes) > n {
		runes = runes[len(runes)-n:]
	}
	return string(runes)
}
