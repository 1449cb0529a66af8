// Package tokenizer assembles the normalizer, pre-tokenizer, BPE model,
// template post-processor and decoder into one trainable, serializable
// tokenizer whose artifact follows the Hugging Face tokenizer.json layout.
package tokenizer

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/go-ghomala-tok/internal/bpe"
	"github.com/example/go-ghomala-tok/internal/text"
)

const (
	PadToken  = "[PAD]"
	UnkToken  = "[UNK]"
	ClsToken  = "[CLS]"
	SepToken  = "[SEP]"
	MaskToken = "[MASK]"

	// DefaultSuffix marks the last symbol of a word.
	DefaultSuffix = "</w>"
)

var (
	// ErrNotTrained is returned when an operation needs a fitted model.
	ErrNotTrained = errors.New("tokenizer: model not trained")
	// ErrUnsupported is returned for artifact components this package
	// cannot run.
	ErrUnsupported = errors.New("tokenizer: unsupported component")
	// ErrUnknownID is returned by Decode for ids outside the vocabulary.
	ErrUnknownID = errors.New("tokenizer: unknown token id")
)

// DefaultSpecialTokens lists the reserved tokens in id order.
func DefaultSpecialTokens() []string {
	return []string{PadToken, UnkToken, ClsToken, SepToken, MaskToken}
}

// Trainer fits a BPE model to word counts. bpe.Trainer implements it.
type Trainer interface {
	Train(ctx context.Context, words bpe.WordCounts) (*bpe.Model, error)
}

// Encoder turns text into model input ids.
type Encoder interface {
	EncodeIDs(text string) ([]int64, error)
}

type Options struct {
	SpecialTokens []string
	UnkToken      string
	ClsToken      string
	SepToken      string
	// EndOfWordSuffix is shared by the model and the decoder.
	EndOfWordSuffix string
	// Workers bounds the goroutines counting words in Train.
	Workers int
}

func DefaultOptions() Options {
	return Options{
		SpecialTokens:   DefaultSpecialTokens(),
		UnkToken:        UnkToken,
		ClsToken:        ClsToken,
		SepToken:        SepToken,
		EndOfWordSuffix: DefaultSuffix,
		Workers:         1,
	}
}

// Tokenizer is not safe for concurrent mutation; encoding and decoding a
// trained tokenizer from several goroutines is fine.
type Tokenizer struct {
	normalizer   text.Normalizer
	preTokenizer text.PreTokenizer
	special      SpecialTokens
	unkToken     string
	suffix       string
	model        *bpe.Model
	post         *TemplateProcessing
	decoder      BPEDecoder
	workers      int
}

// New builds an untrained tokenizer: NFD, Lowercase and StripAccents
// normalization, whitespace splitting, and the BERT-style templates
// "[CLS] $A [SEP]" and "[CLS] $A [SEP] $B:1 [SEP]:1".
func New(opts Options) (*Tokenizer, error) {
	special, err := NewSpecialTokens(opts.SpecialTokens)
	if err != nil {
		return nil, err
	}

	for _, required := range []string{opts.UnkToken, opts.ClsToken, opts.SepToken} {
		if !special.Contains(required) {
			return nil, fmt.Errorf("%w: %q must be one of %v", ErrInvalidSpecialTokens, required, special.Tokens())
		}
	}

	post, err := NewTemplateProcessing(
		fmt.Sprintf("%s $A %s", opts.ClsToken, opts.SepToken),
		fmt.Sprintf("%s $A %s $B:1 %s:1", opts.ClsToken, opts.SepToken, opts.SepToken),
		special.IDs(opts.ClsToken, opts.SepToken),
	)
	if err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	return &Tokenizer{
		normalizer:   text.DefaultNormalizer(),
		preTokenizer: text.WhitespaceSplit{},
		special:      special,
		unkToken:     opts.UnkToken,
		suffix:       opts.EndOfWordSuffix,
		post:         post,
		decoder:      BPEDecoder{Suffix: opts.EndOfWordSuffix},
		workers:      workers,
	}, nil
}

// TrainerConfig returns the bpe trainer parameters matching this tokenizer.
func (t *Tokenizer) TrainerConfig(vocabSize, minFrequency int) bpe.TrainerConfig {
	return bpe.TrainerConfig{
		VocabSize:       vocabSize,
		MinFrequency:    minFrequency,
		SpecialTokens:   t.special.Tokens(),
		UnkToken:        t.unkToken,
		EndOfWordSuffix: t.suffix,
	}
}

// SetModel installs a fitted model after checking that every special token
// holds the id of its position.
func (t *Tokenizer) SetModel(m *bpe.Model) error {
	if m == nil {
		return ErrNotTrained
	}
	if err := t.special.checkModel(m); err != nil {
		return err
	}
	for tok, id := range t.post.special {
		if got, ok := m.TokenToID(tok); !ok || got != id {
			return fmt.Errorf("%w: template token %q has id %d in the template but %d in the model",
				ErrSpecialTokenIDs, tok, id, got)
		}
	}
	t.model = m
	return nil
}

func (t *Tokenizer) Model() *bpe.Model                 { return t.model }
func (t *Tokenizer) SpecialTokens() SpecialTokens      { return t.special }
func (t *Tokenizer) PostProcessor() *TemplateProcessing { return t.post }
func (t *Tokenizer) Decoder() BPEDecoder               { return t.decoder }
func (t *Tokenizer) Normalizer() text.Normalizer       { return t.normalizer }
func (t *Tokenizer) PreTokenizer() text.PreTokenizer   { return t.preTokenizer }

func (t *Tokenizer) VocabSize() int {
	if t.model == nil {
		return 0
	}
	return t.model.VocabSize()
}

func (t *Tokenizer) TokenToID(tok string) (int, bool) {
	if t.model == nil {
		return 0, false
	}
	return t.model.TokenToID(tok)
}
