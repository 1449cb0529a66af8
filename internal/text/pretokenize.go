package text

import (
	"strings"
	"unicode"
)

// TypeWhitespaceSplit is the artifact name of WhitespaceSplit.
const TypeWhitespaceSplit = "WhitespaceSplit"

// PreTokenizer splits normalized text into the words BPE operates on.
type PreTokenizer interface {
	PreTokenize(s string) []string
	Type() string
}

// WhitespaceSplit splits on Unicode whitespace only; punctuation stays
// attached to its word.
type WhitespaceSplit struct{}

func (WhitespaceSplit) PreTokenize(s string) []string {
	return strings.FieldsFunc(s, unicode.IsSpace)
}

func (WhitespaceSplit) Type() string { return TypeWhitespaceSplit }
