// Package bpe learns and applies byte-pair-encoding merge tables over
// Unicode characters.
package bpe

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidModel is returned when a vocabulary and merge table do not
// describe a consistent model.
var ErrInvalidModel = errors.New("bpe: invalid model")

// Pair is an ordered pair of adjacent symbol ids.
type Pair struct {
	Left, Right int
}

// Merge is one learned rule: Left and Right fuse into Left+Right.
type Merge struct {
	Left, Right string
}

// String renders the rule as "left right", the artifact form.
func (m Merge) String() string { return m.Left + " " + m.Right }

// ParseMerge parses the "left right" artifact form.
func ParseMerge(s string) (Merge, error) {
	left, right, ok := strings.Cut(s, " ")
	if !ok || left == "" || right == "" || strings.Contains(right, " ") {
		return Merge{}, fmt.Errorf("%w: malformed merge %q", ErrInvalidModel, s)
	}
	return Merge{Left: left, Right: right}, nil
}

type mergeRank struct {
	rank int
	id   int
}

// Token is one piece of a tokenized word.
type Token struct {
	ID    int
	Value string
}

// Model is a fitted BPE vocabulary and its ordered merge table.
type Model struct {
	vocab    map[string]int
	tokens   []string
	merges   []Merge
	ranks    map[Pair]mergeRank
	unkToken string
	suffix   string
}

// NewModel validates that ids are dense from zero and that every merge
// refers to tokens of the vocabulary, including its result.
func NewModel(vocab map[string]int, merges []Merge, unkToken, suffix string) (*Model, error) {
	tokens := make([]string, len(vocab))
	seen := make([]bool, len(vocab))
	for tok, id := range vocab {
		if id < 0 || id >= len(vocab) {
			return nil, fmt.Errorf("%w: id %d of %q outside [0,%d)", ErrInvalidModel, id, tok, len(vocab))
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: id %d assigned twice", ErrInvalidModel, id)
		}
		seen[id] = true
		tokens[id] = tok
	}

	if unkToken != "" {
		if _, ok := vocab[unkToken]; !ok {
			return nil, fmt.Errorf("%w: unknown token %q not in vocabulary", ErrInvalidModel, unkToken)
		}
	}

	m := &Model{
		vocab:    make(map[string]int, len(vocab)),
		tokens:   tokens,
		merges:   append([]Merge(nil), merges...),
		ranks:    make(map[Pair]mergeRank, len(merges)),
		unkToken: unkToken,
		suffix:   suffix,
	}
	for tok, id := range vocab {
		m.vocab[tok] = id
	}

	for rank, mg := range merges {
		left, okL := vocab[mg.Left]
		right, okR := vocab[mg.Right]
		merged, okM := vocab[mg.Left+mg.Right]
		if !okL || !okR || !okM {
			return nil, fmt.Errorf("%w: merge %d %q references tokens outside the vocabulary", ErrInvalidModel, rank, mg.String())
		}
		p := Pair{Left: left, Right: right}
		if _, dup := m.ranks[p]; dup {
			continue
		}
		m.ranks[p] = mergeRank{rank: rank, id: merged}
	}

	return m, nil
}

func (m *Model) VocabSize() int { return len(m.tokens) }

// Vocab returns a copy of the token to id mapping.
func (m *Model) Vocab() map[string]int {
	out := make(map[string]int, len(m.vocab))
	for tok, id := range m.vocab {
		out[tok] = id
	}
	return out
}

// Tokens returns the vocabulary ordered by id.
func (m *Model) Tokens() []string { return append([]string(nil), m.tokens...) }

// Merges returns the merge table in learned order.
func (m *Model) Merges() []Merge { return append([]Merge(nil), m.merges...) }

func (m *Model) UnkToken() string        { return m.unkToken }
func (m *Model) EndOfWordSuffix() string { return m.suffix }

func (m *Model) TokenToID(tok string) (int, bool) {
	id, ok := m.vocab[tok]
	return id, ok
}

func (m *Model) IDToToken(id int) (string, bool) {
	if id < 0 || id >= len(m.tokens) {
		return "", false
	}
	return m.tokens[id], true
}

// Tokenize splits one word into characters, marks the last one with the
// end-of-word suffix and applies merges lowest rank first. Characters absent
// from the vocabulary become the unknown token, or are dropped when the
// model has none.
func (m *Model) Tokenize(word string) []Token {
	chars := []rune(word)
	if len(chars) == 0 {
		return nil
	}

	unkID, hasUnk := m.vocab[m.unkToken]
	hasUnk = hasUnk && m.unkToken != ""
	symbols := make([]int, 0, len(chars))
	for i, r := range chars {
		s := string(r)
		if i == len(chars)-1 {
			s += m.suffix
		}
		if id, ok := m.vocab[s]; ok {
			symbols = append(symbols, id)
		} else if hasUnk {
			symbols = append(symbols, unkID)
		}
	}

	for len(symbols) > 1 {
		best, bestRank := -1, 0
		var bestID int
		for i := 0; i+1 < len(symbols); i++ {
			r, ok := m.ranks[Pair{Left: symbols[i], Right: symbols[i+1]}]
			if !ok {
				continue
			}
			if best < 0 || r.rank < bestRank {
				best, bestRank, bestID = i, r.rank, r.id
			}
		}
		if best < 0 {
			break
		}
		symbols[best] = bestID
		symbols = append(symbols[:best+1], symbols[best+2:]...)
	}

	out := make([]Token, len(symbols))
	for i, id := range symbols {
		out[i] = Token{ID: id, Value: m.tokens[id]}
	}
	return out
}
