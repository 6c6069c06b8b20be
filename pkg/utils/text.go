package utils

import (
	"unicode"

	"github.com/aryann/difflib"
)

type runeClass uint8

const (
	classSpace runeClass = iota
	classWord
	classPunct
)

func classify(r rune) runeClass {
	switch {
	case unicode.IsSpace(r):
		return classSpace
	case unicode.IsLetter(r), unicode.IsNumber(r), r == '\'', r == '-', r == '_':
		return classWord
	}
	return classPunct
}

// TokenizeWords splits s into maximal runs of words, whitespace and punctuation.
// Joining the tokens gives back s.
func TokenizeWords(s string) []string {
	var tokens []string
	start := 0
	prev := classSpace
	for i, r := range s {
		c := classify(r)
		if i > 0 && c != prev {
			tokens = append(tokens, s[start:i])
			start = i
		}
		prev = c
	}
	if start < len(s) {
		tokens = append(tokens, s[start:])
	}
	return tokens
}

// WordDelta is one token of a word-level diff.
type WordDelta struct {
	Delta difflib.DeltaType
	Text  string
}

func DiffWords(a, b string) []WordDelta {
	recs := difflib.Diff(TokenizeWords(a), TokenizeWords(b))
	out := make([]WordDelta, len(recs))
	for i, r := range recs {
		out[i] = WordDelta{Delta: r.Delta, Text: r.Payload}
	}
	return out
}

// ChangedWords counts words (not whitespace or punctuation) removed from a and added in b.
func ChangedWords(a, b string) (removed, added int) {
	for _, d := range DiffWords(a, b) {
		if !isWord(d.Text) {
			continue
		}
		switch d.Delta {
		case difflib.LeftOnly:
			removed++
		case difflib.RightOnly:
			added++
		}
	}
	return removed, added
}

func isWord(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return true
		}
	}
	return false
}
