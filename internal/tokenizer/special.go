package tokenizer

import (
	"errors"
	"fmt"

	"github.com/example/go-ghomala-tok/internal/bpe"
)

var (
	// ErrInvalidSpecialTokens is returned for empty, duplicated or missing
	// special tokens.
	ErrInvalidSpecialTokens = errors.New("tokenizer: invalid special tokens")
	// ErrSpecialTokenIDs is returned when a model does not hold the special
	// tokens at ids 0..n-1 in declared order.
	ErrSpecialTokenIDs = errors.New("tokenizer: special token ids do not match their order")
)

// SpecialTokens is the ordered reserved-token table. The id of a special
// token is its position.
type SpecialTokens struct {
	tokens []string
	ids    map[string]int
}

func NewSpecialTokens(tokens []string) (SpecialTokens, error) {
	if len(tokens) == 0 {
		return SpecialTokens{}, fmt.Errorf("%w: none declared", ErrInvalidSpecialTokens)
	}
	ids := make(map[string]int, len(tokens))
	for i, tok := range tokens {
		if tok == "" {
			return SpecialTokens{}, fmt.Errorf("%w: token %d is empty", ErrInvalidSpecialTokens, i)
		}
		if _, dup := ids[tok]; dup {
			return SpecialTokens{}, fmt.Errorf("%w: %q declared twice", ErrInvalidSpecialTokens, tok)
		}
		ids[tok] = i
	}
	return SpecialTokens{tokens: append([]string(nil), tokens...), ids: ids}, nil
}

func (s SpecialTokens) Len() int { return len(s.tokens) }

// Tokens returns the table in id order.
func (s SpecialTokens) Tokens() []string { return append([]string(nil), s.tokens...) }

func (s SpecialTokens) ID(tok string) (int, bool) {
	id, ok := s.ids[tok]
	return id, ok
}

func (s SpecialTokens) Contains(tok string) bool {
	_, ok := s.ids[tok]
	return ok
}

// IsSpecialID reports whether id is reserved.
func (s SpecialTokens) IsSpecialID(id int) bool { return id >= 0 && id < len(s.tokens) }

// IDs returns the ids of the named tokens that are in the table.
func (s SpecialTokens) IDs(tokens ...string) map[string]int {
	out := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		if id, ok := s.ids[tok]; ok {
			out[tok] = id
		}
	}
	return out
}

func (s SpecialTokens) checkModel(m *bpe.Model) error {
	if m.VocabSize() < len(s.tokens) {
		return fmt.Errorf("%w: vocabulary of %d cannot hold %d special tokens",
			ErrSpecialTokenIDs, m.VocabSize(), len(s.tokens))
	}
	for want, tok := range s.tokens {
		got, ok := m.TokenToID(tok)
		if !ok {
			return fmt.Errorf("%w: %q missing from vocabulary", ErrSpecialTokenIDs, tok)
		}
		if got != want {
			return fmt.Errorf("%w: %q has id %d, want %d", ErrSpecialTokenIDs, tok, got, want)
		}
	}
	return nil
}
