package bpe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"
)

var (
	// ErrEmptyCorpus is returned when there is nothing to learn from.
	ErrEmptyCorpus = errors.New("bpe: corpus contains no words")
	// ErrInvalidConfig is returned by NewTrainer for unusable parameters.
	ErrInvalidConfig = errors.New("bpe: invalid trainer configuration")
)

// TrainerConfig holds the parameters of a training run.
type TrainerConfig struct {
	// VocabSize is the ceiling on the vocabulary, special tokens included.
	// Merging stops once it is reached.
	VocabSize int
	// MinFrequency is the lowest pair count still eligible for a merge.
	MinFrequency int
	// SpecialTokens are reserved at ids 0..n-1 in this order and never take
	// part in a merge.
	SpecialTokens []string
	// UnkToken must be empty or one of SpecialTokens.
	UnkToken string
	// EndOfWordSuffix is appended to the last character of every word.
	EndOfWordSuffix string
	ShowProgress    bool
	// Progress receives the progress bar; nil means os.Stderr.
	Progress io.Writer
}

// Trainer learns a Model from word counts.
type Trainer struct {
	cfg TrainerConfig
}

func NewTrainer(cfg TrainerConfig) (*Trainer, error) {
	if cfg.MinFrequency < 0 {
		return nil, fmt.Errorf("%w: min frequency %d is negative", ErrInvalidConfig, cfg.MinFrequency)
	}
	if cfg.VocabSize <= len(cfg.SpecialTokens) {
		return nil, fmt.Errorf("%w: vocab size %d leaves no room beyond %d special tokens",
			ErrInvalidConfig, cfg.VocabSize, len(cfg.SpecialTokens))
	}

	seen := make(map[string]struct{}, len(cfg.SpecialTokens))
	for _, tok := range cfg.SpecialTokens {
		if tok == "" {
			return nil, fmt.Errorf("%w: empty special token", ErrInvalidConfig)
		}
		if _, dup := seen[tok]; dup {
			return nil, fmt.Errorf("%w: duplicate special token %q", ErrInvalidConfig, tok)
		}
		seen[tok] = struct{}{}
	}
	if cfg.UnkToken != "" {
		if _, ok := seen[cfg.UnkToken]; !ok {
			return nil, fmt.Errorf("%w: unknown token %q is not a special token", ErrInvalidConfig, cfg.UnkToken)
		}
	}

	cfg.SpecialTokens = append([]string(nil), cfg.SpecialTokens...)
	if cfg.Progress == nil {
		cfg.Progress = os.Stderr
	}

	return &Trainer{cfg: cfg}, nil
}

func (t *Trainer) Config() TrainerConfig { return t.cfg }

type word struct {
	symbols []int
	count   int
}

// merge replaces every non-overlapping occurrence of p, scanning left to
// right, and reports whether anything changed.
func (w *word) merge(p Pair, id int) bool {
	changed := false
	out := w.symbols[:0]
	for i := 0; i < len(w.symbols); i++ {
		if i+1 < len(w.symbols) && w.symbols[i] == p.Left && w.symbols[i+1] == p.Right {
			out = append(out, id)
			i++
			changed = true
			continue
		}
		out = append(out, w.symbols[i])
	}
	w.symbols = out
	return changed
}

type vocabBuilder struct {
	ids    map[string]int
	tokens []string
}

func (b *vocabBuilder) add(tok string) int {
	if id, ok := b.ids[tok]; ok {
		return id
	}
	id := len(b.tokens)
	b.ids[tok] = id
	b.tokens = append(b.tokens, tok)
	return id
}

// Train runs BPE over words. The result depends only on words and the
// configuration: ties between equally frequent pairs go to the pair with
// the lower ids.
func (t *Trainer) Train(ctx context.Context, words WordCounts) (*Model, error) {
	if len(words) == 0 {
		return nil, ErrEmptyCorpus
	}

	start := time.Now()
	cfg := t.cfg

	b := &vocabBuilder{ids: make(map[string]int)}
	special := make(map[string]struct{}, len(cfg.SpecialTokens))
	for _, tok := range cfg.SpecialTokens {
		b.add(tok)
		special[tok] = struct{}{}
	}
	numSpecial := len(b.tokens)

	alphabet := make(map[rune]struct{})
	for w := range words {
		for _, r := range w {
			alphabet[r] = struct{}{}
		}
	}
	chars := make([]rune, 0, len(alphabet))
	for r := range alphabet {
		chars = append(chars, r)
	}
	slices.Sort(chars)
	for _, r := range chars {
		b.add(string(r))
	}

	sorted := words.Sorted()
	ws := make([]word, len(sorted))
	for i, w := range sorted {
		rs := []rune(w)
		syms := make([]int, len(rs))
		for j, r := range rs {
			s := string(r)
			if j == len(rs)-1 {
				s += cfg.EndOfWordSuffix
			}
			syms[j] = b.add(s)
		}
		ws[i] = word{symbols: syms, count: words[w]}
	}

	slog.Debug("bpe initial vocabulary",
		"special", numSpecial, "alphabet", len(chars), "symbols", len(b.tokens), "words", len(ws))

	mergeable := func(p Pair) bool { return p.Left >= numSpecial && p.Right >= numSpecial }

	counts := make(map[Pair]int)
	where := make(map[Pair]map[int]struct{})
	for i, w := range ws {
		for j := 0; j+1 < len(w.symbols); j++ {
			p := Pair{Left: w.symbols[j], Right: w.symbols[j+1]}
			if !mergeable(p) {
				continue
			}
			counts[p] += w.count
			addWhere(where, p, i)
		}
	}

	q := make(pairQueue, 0, len(counts))
	for p, c := range counts {
		q = append(q, pairCount{pair: p, count: c})
	}
	q.init()

	bar := newProgress(cfg.ShowProgress, cfg.Progress, cfg.VocabSize-len(b.tokens))
	defer bar.finish()

	var merges []Merge
	stop := "vocab size reached"
	for len(b.tokens) < cfg.VocabSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if q.Len() == 0 {
			stop = "no pairs left"
			break
		}

		top := q.pop()
		cur := counts[top.pair]
		if cur != top.count {
			// Stale entry. A raised count was pushed separately; a lowered
			// one goes back with its current value.
			if cur > 0 && cur < top.count {
				q.push(top.pair, cur)
			}
			continue
		}
		if cur < cfg.MinFrequency {
			stop = "min frequency not met"
			break
		}

		left, right := b.tokens[top.pair.Left], b.tokens[top.pair.Right]
		merged := left + right
		if _, ok := special[merged]; ok {
			delete(counts, top.pair)
			continue
		}
		newID := b.add(merged)
		merges = append(merges, Merge{Left: left, Right: right})

		delta := make(map[Pair]int)
		for i := range where[top.pair] {
			w := &ws[i]
			before := slices.Clone(w.symbols)
			if !w.merge(top.pair, newID) {
				continue
			}
			for j := 0; j+1 < len(before); j++ {
				if p := (Pair{Left: before[j], Right: before[j+1]}); mergeable(p) {
					delta[p] -= w.count
				}
			}
			for j := 0; j+1 < len(w.symbols); j++ {
				if p := (Pair{Left: w.symbols[j], Right: w.symbols[j+1]}); mergeable(p) {
					delta[p] += w.count
					addWhere(where, p, i)
				}
			}
		}
		delete(where, top.pair)

		for p, d := range delta {
			if d == 0 {
				continue
			}
			c := counts[p] + d
			if c <= 0 {
				delete(counts, p)
				continue
			}
			counts[p] = c
			if d > 0 {
				q.push(p, c)
			}
		}
		delete(counts, top.pair)

		bar.add(1)
		if len(merges)%500 == 0 {
			slog.Debug("bpe training progress", "merges", len(merges), "vocab_size", len(b.tokens), "last_count", cur)
		}
	}

	model, err := NewModel(b.ids, merges, cfg.UnkToken, cfg.EndOfWordSuffix)
	if err != nil {
		return nil, err
	}

	slog.Info("bpe training complete",
		"vocab_size", model.VocabSize(),
		"merges", len(merges),
		"stop", stop,
		"ms", time.Since(start).Milliseconds(),
	)

	return model, nil
}

func addWhere(where map[Pair]map[int]struct{}, p Pair, i int) {
	set, ok := where[p]
	if !ok {
		set = make(map[int]struct{})
		where[p] = set
	}
	set[i] = struct{}{}
}
