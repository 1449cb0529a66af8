// Package pipeline runs one tokenizer training job end to end: load the
// corpus, write the training file, configure, train, save and record a
// manifest.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/example/go-ghomala-tok/internal/artifact"
	"github.com/example/go-ghomala-tok/internal/bpe"
	"github.com/example/go-ghomala-tok/internal/config"
	"github.com/example/go-ghomala-tok/internal/corpus"
	"github.com/example/go-ghomala-tok/internal/tokenizer"
)

type Stage string

const (
	StageLoad      Stage = "load"
	StageWrite     Stage = "write"
	StageConfigure Stage = "configure"
	StageTrain     Stage = "train"
	StageSave      Stage = "save"
	StageManifest  Stage = "manifest"
)

// StageError reports which stage of a run failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("stage %q: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// FailedStage returns the stage recorded in err, if any.
func FailedStage(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

type Options struct {
	CorpusPath       string
	Field            string
	IntermediatePath string
	OutputPath       string
	// ManifestPath is skipped when empty.
	ManifestPath     string
	KeepIntermediate bool

	VocabSize       int
	MinFrequency    int
	SpecialTokens   []string
	UnkToken        string
	ClsToken        string
	SepToken        string
	EndOfWordSuffix string
	Workers         int
	ShowProgress    bool
	// Progress receives the progress bar; nil means stderr.
	Progress io.Writer

	// Now stamps the manifest; nil means time.Now.
	Now func() time.Time
}

func FromConfig(cfg config.Config) Options {
	return Options{
		CorpusPath:       cfg.Paths.Corpus,
		Field:            cfg.Corpus.Field,
		IntermediatePath: cfg.Paths.Intermediate,
		OutputPath:       cfg.Paths.Output,
		ManifestPath:     cfg.Paths.Manifest,
		KeepIntermediate: cfg.Paths.KeepIntermediate,
		VocabSize:        cfg.Trainer.VocabSize,
		MinFrequency:     cfg.Trainer.MinFrequency,
		SpecialTokens:    append([]string(nil), cfg.Trainer.SpecialTokens...),
		UnkToken:         cfg.Trainer.UnkToken,
		ClsToken:         cfg.Trainer.ClsToken,
		SepToken:         cfg.Trainer.SepToken,
		EndOfWordSuffix:  cfg.Trainer.EndOfWordSuffix,
		Workers:          cfg.Trainer.Workers,
		ShowProgress:     cfg.Trainer.ShowProgress,
	}
}

// Report summarizes a successful run.
type Report struct {
	RunID        string
	Records      int
	Sentences    int
	Skipped      int
	VocabSize    int
	Merges       int
	OutputPath   string
	ManifestPath string
	Duration     time.Duration
}

// Run executes every stage once, in order. Files written by completed
// stages are left in place when a later stage fails.
func Run(ctx context.Context, opts Options) (Report, error) {
	start := time.Now()
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	rep := Report{OutputPath: opts.OutputPath}

	fail := func(stage Stage, err error) (Report, error) {
		slog.Error("stage failed", "stage", string(stage), "error", err)
		return rep, &StageError{Stage: stage, Err: err}
	}
	done := func(stage Stage, t time.Time, attrs ...any) {
		slog.Info("stage complete", append([]any{"stage", string(stage), "ms", time.Since(t).Milliseconds()}, attrs...)...)
	}

	t := time.Now()
	sentences, stats, err := corpus.Load(opts.CorpusPath, opts.Field)
	if err != nil {
		return fail(StageLoad, err)
	}
	rep.Records, rep.Sentences, rep.Skipped = stats.Records, stats.Retained, stats.Skipped
	done(StageLoad, t, "path", opts.CorpusPath, "records", stats.Records, "retained", stats.Retained, "skipped", stats.Skipped)

	t = time.Now()
	if err := corpus.Write(opts.IntermediatePath, sentences); err != nil {
		return fail(StageWrite, err)
	}
	done(StageWrite, t, "path", opts.IntermediatePath, "lines", len(sentences))

	t = time.Now()
	tok, trainer, err := configure(opts)
	if err != nil {
		return fail(StageConfigure, err)
	}
	done(StageConfigure, t, "vocab_size", opts.VocabSize, "min_frequency", opts.MinFrequency)

	t = time.Now()
	if err := tok.Train(ctx, trainer, opts.IntermediatePath); err != nil {
		return fail(StageTrain, err)
	}
	rep.VocabSize = tok.VocabSize()
	rep.Merges = len(tok.Model().Merges())
	done(StageTrain, t, "vocab_size", rep.VocabSize, "merges", rep.Merges)

	t = time.Now()
	if err := tok.Save(opts.OutputPath, true); err != nil {
		return fail(StageSave, err)
	}
	done(StageSave, t, "path", opts.OutputPath)

	if opts.ManifestPath != "" {
		t = time.Now()
		m, err := buildManifest(opts, rep, now())
		if err == nil {
			err = artifact.WriteManifest(opts.ManifestPath, m)
		}
		if err != nil {
			return fail(StageManifest, err)
		}
		rep.RunID = m.RunID
		rep.ManifestPath = opts.ManifestPath
		done(StageManifest, t, "path", opts.ManifestPath, "run_id", m.RunID)
	}

	if !opts.KeepIntermediate {
		if err := os.Remove(opts.IntermediatePath); err != nil {
			slog.Warn("remove training file", "path", opts.IntermediatePath, "error", err)
		}
	}

	rep.Duration = time.Since(start)
	return rep, nil
}

func configure(opts Options) (*tokenizer.Tokenizer, *bpe.Trainer, error) {
	tok, err := tokenizer.New(tokenizer.Options{
		SpecialTokens:   opts.SpecialTokens,
		UnkToken:        opts.UnkToken,
		ClsToken:        opts.ClsToken,
		SepToken:        opts.SepToken,
		EndOfWordSuffix: opts.EndOfWordSuffix,
		Workers:         opts.Workers,
	})
	if err != nil {
		return nil, nil, err
	}

	cfg := tok.TrainerConfig(opts.VocabSize, opts.MinFrequency)
	cfg.ShowProgress = opts.ShowProgress
	cfg.Progress = opts.Progress
	trainer, err := bpe.NewTrainer(cfg)
	if err != nil {
		return nil, nil, err
	}
	return tok, trainer, nil
}

func buildManifest(opts Options, rep Report, now time.Time) (artifact.Manifest, error) {
	corpusSum, err := artifact.FileSHA256(opts.CorpusPath)
	if err != nil {
		return artifact.Manifest{}, err
	}
	outputSum, err := artifact.FileSHA256(opts.OutputPath)
	if err != nil {
		return artifact.Manifest{}, err
	}

	m := artifact.NewManifest(now)
	m.Corpus = artifact.CorpusInfo{
		Path:      opts.CorpusPath,
		SHA256:    corpusSum,
		Field:     opts.Field,
		Records:   rep.Records,
		Sentences: rep.Sentences,
	}
	m.Artifact = artifact.ArtifactInfo{
		Path:      opts.OutputPath,
		SHA256:    outputSum,
		VocabSize: rep.VocabSize,
		Merges:    rep.Merges,
	}
	m.Trainer = artifact.TrainerInfo{
		VocabSize:       opts.VocabSize,
		MinFrequency:    opts.MinFrequency,
		SpecialTokens:   append([]string(nil), opts.SpecialTokens...),
		EndOfWordSuffix: opts.EndOfWordSuffix,
		Workers:         opts.Workers,
	}
	return m, nil
}
