package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/go-ghomala-tok/internal/artifact"
	"github.com/example/go-ghomala-tok/internal/config"
	"github.com/example/go-ghomala-tok/internal/corpus"
)

func newVerifyCmd() *cobra.Command {
	var samples int
	var crossCheck bool

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the trained tokenizer artifact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			lines, err := sampleSource(cfg)
			if err != nil {
				return err
			}

			opts := verifyOptions(cfg)
			opts.Samples = artifact.SelectSamples(lines, samples)
			opts.CrossCheck = crossCheck
			opts.Stdout = cmd.OutOrStdout()
			opts.Stderr = cmd.ErrOrStderr()

			rep, err := artifact.Verify(opts)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "verify passed: vocab %d, merges %d, %d samples round-tripped\n",
				rep.VocabSize, rep.Merges, rep.RoundTrips)

			return nil
		},
	}

	cmd.Flags().IntVar(&samples, "sample", 20, "Number of corpus sentences to round-trip")
	cmd.Flags().BoolVar(&crossCheck, "cross-check", false, "Also re-tokenize samples with the github.com/sugarme/tokenizer BPE model and compare ids")

	return cmd
}

// verifyOptions holds the checks implied by the configuration. The manifest
// is checked only when it exists.
func verifyOptions(cfg config.Config) artifact.VerifyOptions {
	opts := artifact.VerifyOptions{
		Path:          cfg.Paths.Output,
		SpecialTokens: cfg.Trainer.SpecialTokens,
		MaxVocabSize:  cfg.Trainer.VocabSize,
	}
	if cfg.Paths.Manifest != "" {
		if _, err := os.Stat(cfg.Paths.Manifest); err == nil {
			opts.ManifestPath = cfg.Paths.Manifest
		}
	}
	return opts
}

// sampleSource prefers the training file and falls back to the corpus when
// it was removed after training.
func sampleSource(cfg config.Config) ([]string, error) {
	lines, err := corpus.ReadLines(cfg.Paths.Intermediate)
	if err == nil {
		return lines, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	slog.Debug("training file missing, sampling from corpus", "path", cfg.Paths.Intermediate)
	sentences, _, err := corpus.Load(cfg.Paths.Corpus, cfg.Corpus.Field)
	if errors.Is(err, corpus.ErrNotFound) {
		slog.Warn("no sample source found; round trip check has no samples",
			"intermediate", cfg.Paths.Intermediate, "corpus", cfg.Paths.Corpus)
		return nil, nil
	}
	return sentences, err
}
