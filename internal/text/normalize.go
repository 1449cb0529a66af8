// Package text holds the normalization and pre-tokenization steps applied to
// corpus lines before BPE training and encoding.
package text

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalizer type names as they appear in a tokenizer artifact.
const (
	TypeNFD          = "NFD"
	TypeLowercase    = "Lowercase"
	TypeStripAccents = "StripAccents"
	TypeSequence     = "Sequence"
)

// Normalizer rewrites text deterministically before it is split into words.
type Normalizer interface {
	Normalize(s string) string
	// Type is the artifact name of the step.
	Type() string
}

type nfd struct{}

// NFD returns the canonical Unicode decomposition step.
func NFD() Normalizer { return nfd{} }

func (nfd) Normalize(s string) string { return norm.NFD.String(s) }
func (nfd) Type() string              { return TypeNFD }

type lowercase struct{}

// Lowercase returns a language-neutral lowercase folding step.
func Lowercase() Normalizer { return lowercase{} }

// A Caser keeps state, so each call builds its own.
func (lowercase) Normalize(s string) string { return cases.Lower(language.Und).String(s) }
func (lowercase) Type() string              { return TypeLowercase }

type stripAccents struct{}

// StripAccents returns the step that drops nonspacing marks (Unicode Mn).
// It only removes accents that an earlier NFD step has split off.
func StripAccents() Normalizer { return stripAccents{} }

func (stripAccents) Normalize(s string) string {
	out, _, err := transform.String(runes.Remove(runes.In(unicode.Mn)), s)
	if err != nil {
		return s
	}
	return out
}

func (stripAccents) Type() string { return TypeStripAccents }

// Sequence applies its steps in order.
type Sequence struct {
	steps []Normalizer
}

func NewSequence(steps ...Normalizer) *Sequence {
	return &Sequence{steps: append([]Normalizer(nil), steps...)}
}

// DefaultNormalizer is NFD, then Lowercase, then StripAccents.
func DefaultNormalizer() *Sequence {
	return NewSequence(NFD(), Lowercase(), StripAccents())
}

func (s *Sequence) Normalize(in string) string {
	for _, step := range s.steps {
		in = step.Normalize(in)
	}
	return in
}

func (s *Sequence) Type() string { return TypeSequence }

// Steps returns a copy of the steps in application order.
func (s *Sequence) Steps() []Normalizer {
	return append([]Normalizer(nil), s.steps...)
}

// NewNormalizer builds a single step from its artifact type name.
func NewNormalizer(typ string) (Normalizer, bool) {
	switch typ {
	case TypeNFD:
		return NFD(), true
	case TypeLowercase:
		return Lowercase(), true
	case TypeStripAccents:
		return StripAccents(), true
	default:
		return nil, false
	}
}

// SingleLine folds CRLF, CR and LF into single spaces so that a sentence
// always occupies exactly one line of a training file.
func SingleLine(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
