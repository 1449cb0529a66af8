package tokenizer

import (
	"fmt"
	"strings"
)

// Canonical returns the text the model sees: normalized, then the
// pre-tokenized words joined by single spaces.
func (t *Tokenizer) Canonical(s string) string {
	return strings.Join(t.preTokenizer.PreTokenize(t.normalizer.Normalize(s)), " ")
}

// encodeSequence tokenizes one sequence without template tokens. Unknown
// characters map to the unknown token but are not marked special.
func (t *Tokenizer) encodeSequence(s string) (*Encoding, error) {
	if t.model == nil {
		return nil, ErrNotTrained
	}

	enc := &Encoding{}
	for _, w := range t.preTokenizer.PreTokenize(t.normalizer.Normalize(s)) {
		for _, tok := range t.model.Tokenize(w) {
			enc.appendToken(tok.ID, tok.Value, 0, 0)
		}
	}
	return enc, nil
}

// Encode runs the full pipeline on one sequence and applies the single
// template.
func (t *Tokenizer) Encode(s string) (Encoding, error) {
	a, err := t.encodeSequence(s)
	if err != nil {
		return Encoding{}, err
	}
	return t.post.Apply(a, nil), nil
}

// EncodePair encodes a and b and applies the pair template.
func (t *Tokenizer) EncodePair(a, b string) (Encoding, error) {
	ea, err := t.encodeSequence(a)
	if err != nil {
		return Encoding{}, err
	}
	eb, err := t.encodeSequence(b)
	if err != nil {
		return Encoding{}, err
	}
	return t.post.Apply(ea, eb), nil
}

// EncodeIDs implements Encoder.
func (t *Tokenizer) EncodeIDs(s string) ([]int64, error) {
	enc, err := t.Encode(s)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(enc.IDs))
	for i, id := range enc.IDs {
		ids[i] = int64(id)
	}
	return ids, nil
}

// Decode maps ids back to text. Special tokens are dropped when
// skipSpecial is set.
func (t *Tokenizer) Decode(ids []int, skipSpecial bool) (string, error) {
	if t.model == nil {
		return "", ErrNotTrained
	}

	tokens := make([]string, 0, len(ids))
	for _, id := range ids {
		tok, ok := t.model.IDToToken(id)
		if !ok {
			return "", fmt.Errorf("%w: %d", ErrUnknownID, id)
		}
		if skipSpecial && t.special.IsSpecialID(id) {
			continue
		}
		tokens = append(tokens, tok)
	}
	return t.decoder.Decode(tokens), nil
}
