package tokenizer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/example/go-ghomala-tok/internal/bpe"
)

const (
	countBatchLines = 2048
	maxLineBytes    = 16 << 20
)

// Train counts the words of every file, one sentence per line, fits a model
// with trainer and installs it.
func (t *Tokenizer) Train(ctx context.Context, trainer Trainer, paths ...string) error {
	start := time.Now()
	words := make(bpe.WordCounts)

	for _, path := range paths {
		counts, err := t.countFile(ctx, path)
		if err != nil {
			return err
		}
		words.Merge(counts)
	}

	slog.Info("word counts ready",
		"files", len(paths),
		"distinct_words", len(words),
		"total_words", words.Total(),
		"workers", t.workers,
		"ms", time.Since(start).Milliseconds(),
	)

	m, err := trainer.Train(ctx, words)
	if err != nil {
		return err
	}
	return t.SetModel(m)
}

func (t *Tokenizer) countFile(ctx context.Context, path string) (bpe.WordCounts, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open training file: %w", err)
	}
	defer f.Close()

	counts, err := t.CountWords(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("count words in %s: %w", path, err)
	}
	return counts, nil
}

// CountWords normalizes and pre-tokenizes every line of r. Lines are
// counted in batches on up to Options.Workers goroutines; the result does
// not depend on the worker count.
func (t *Tokenizer) CountWords(ctx context.Context, r io.Reader) (bpe.WordCounts, error) {
	p := pool.NewWithResults[bpe.WordCounts]().
		WithMaxGoroutines(t.workers).
		WithContext(ctx).
		WithCancelOnError()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	batch := make([]string, 0, countBatchLines)
	submit := func(lines []string) {
		p.Go(func(ctx context.Context) (bpe.WordCounts, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return t.countLines(lines), nil
		})
	}

	for sc.Scan() {
		batch = append(batch, sc.Text())
		if len(batch) == countBatchLines {
			submit(batch)
			batch = make([]string, 0, countBatchLines)
		}
	}
	if len(batch) > 0 {
		submit(batch)
	}

	shards, err := p.Wait()
	if err != nil {
		return nil, err
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read lines: %w", err)
	}

	words := make(bpe.WordCounts)
	for _, shard := range shards {
		words.Merge(shard)
	}
	return words, nil
}

func (t *Tokenizer) countLines(lines []string) bpe.WordCounts {
	counts := make(bpe.WordCounts)
	for _, line := range lines {
		for _, w := range t.preTokenizer.PreTokenize(t.normalizer.Normalize(line)) {
			counts.Add(w, 1)
		}
	}
	return counts
}
