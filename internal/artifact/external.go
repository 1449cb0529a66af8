package artifact

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	smodel "github.com/sugarme/tokenizer/model"
	sbpe "github.com/sugarme/tokenizer/model/bpe"

	"github.com/example/go-ghomala-tok/internal/tokenizer"
)

// Supplementary Private Use Area-A.
const (
	privateUseFirst rune = 0xF0000
	privateUseLast  rune = 0xFFFFD
)

var errPrivateUseExhausted = errors.New("external tokenizer: no free private use code points")

// External re-tokenizes words with the BPE model of
// github.com/sugarme/tokenizer, built from the vocabulary and merges of a
// trained tokenizer. Normalization, pre-tokenization and the template are
// shared; only merge application is independent.
//
// The external model never appends an end-of-word suffix, so each suffixed
// symbol is renamed to one private-use rune, and the last character of every
// word is renamed the same way before it is handed over.
type External struct {
	tok     *tokenizer.Tokenizer
	model   *sbpe.BPE
	suffix  string
	final   map[rune]rune
	missing rune
}

// LoadExternal parses the artifact at path and builds its external model.
func LoadExternal(path string) (*External, error) {
	if path == "" {
		return nil, errors.New("tokenizer path is required")
	}
	tok, err := tokenizer.Load(path)
	if err != nil {
		return nil, fmt.Errorf("external tokenizer: %w", err)
	}
	return NewExternal(tok)
}

// NewExternal builds the external model for a trained tokenizer. Panics
// inside the library are returned as errors.
func NewExternal(tok *tokenizer.Tokenizer) (ext *External, err error) {
	if tok == nil || tok.Model() == nil {
		return nil, tokenizer.ErrNotTrained
	}
	defer func() {
		if r := recover(); r != nil {
			ext, err = nil, fmt.Errorf("external tokenizer panicked building model: %v", r)
		}
	}()

	m := tok.Model()
	tokens := m.Tokens()
	ext = &External{tok: tok, suffix: m.EndOfWordSuffix(), final: make(map[rune]rune)}

	used := make(map[rune]bool)
	for _, t := range tokens {
		for _, r := range t {
			used[r] = true
		}
	}
	next := privateUseFirst
	alloc := func() (rune, error) {
		for ; next <= privateUseLast; next++ {
			if !used[next] {
				r := next
				next++
				return r, nil
			}
		}
		return 0, errPrivateUseExhausted
	}

	special := tok.SpecialTokens()
	if ext.suffix != "" {
		for _, t := range tokens {
			base, ok := strings.CutSuffix(t, ext.suffix)
			if !ok || base == "" || special.Contains(t) {
				continue
			}
			last, _ := utf8.DecodeLastRuneInString(base)
			if _, seen := ext.final[last]; seen {
				continue
			}
			if ext.final[last], err = alloc(); err != nil {
				return nil, err
			}
		}
	}
	if ext.missing, err = alloc(); err != nil {
		return nil, err
	}

	vocab := make(smodel.Vocab, len(tokens))
	for id, t := range tokens {
		if special.Contains(t) {
			vocab[t] = id
			continue
		}
		vocab[ext.rename(t)] = id
	}

	merges := make([]string, 0, len(m.Merges()))
	for _, mg := range m.Merges() {
		merges = append(merges, ext.rename(mg.Left)+" "+ext.rename(mg.Right))
	}

	var unk *string
	if u := m.UnkToken(); u != "" {
		unk = &u
	}
	ext.model, err = sbpe.New(vocab, merges, nil, unk, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("external tokenizer: %w", err)
	}
	return ext, nil
}

// rename maps a vocabulary token to its external spelling.
func (e *External) rename(t string) string {
	if e.suffix == "" {
		return t
	}
	base, ok := strings.CutSuffix(t, e.suffix)
	if !ok || base == "" {
		return t
	}
	last, size := utf8.DecodeLastRuneInString(base)
	return base[:len(base)-size] + string(e.final[last])
}

// renameWord marks the last character of a pre-tokenized word. Characters
// never seen word-final map to a rune outside the vocabulary, so they become
// the unknown token as they do in the trained model.
func (e *External) renameWord(w string) string {
	if e.suffix == "" || w == "" {
		return w
	}
	last, size := utf8.DecodeLastRuneInString(w)
	r, ok := e.final[last]
	if !ok {
		r = e.missing
	}
	return w[:len(w)-size] + string(r)
}

// EncodeIDs returns ids with the single template applied.
func (e *External) EncodeIDs(text string) (ids []int64, err error) {
	if e == nil || e.model == nil {
		return nil, errors.New("external tokenizer is not initialized")
	}
	defer func() {
		if r := recover(); r != nil {
			ids, err = nil, fmt.Errorf("external tokenizer panicked: %v", r)
		}
	}()

	words := e.tok.PreTokenizer().PreTokenize(e.tok.Normalizer().Normalize(text))
	post := e.tok.PostProcessor()
	specialIDs := post.SpecialTokenIDs()

	for _, p := range post.Single() {
		if p.Sequence == "" {
			ids = append(ids, int64(specialIDs[p.Special]))
			continue
		}
		for _, w := range words {
			toks, err := e.model.Tokenize(e.renameWord(w))
			if err != nil {
				return nil, err
			}
			for _, t := range toks {
				ids = append(ids, int64(t.Id))
			}
		}
	}
	return ids, nil
}
