// Package doctor provides preflight checks for a ghomalatok training run.
package doctor

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/example/go-ghomala-tok/internal/corpus"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// VerifyFunc checks an existing tokenizer artifact.
type VerifyFunc func(path string) error

// Config holds the paths under test and injectable dependencies.
type Config struct {
	CorpusPath       string
	Field            string
	IntermediatePath string
	OutputPath       string
	// ManifestPath is checked for writability when set.
	ManifestPath string
	// VerifyArtifact runs when OutputPath already exists. Nil skips it.
	VerifyArtifact VerifyFunc
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- corpus -----------------------------------------------------------
	_, stats, err := corpus.Load(cfg.CorpusPath, cfg.Field)
	switch {
	case err != nil:
		res.fail(fmt.Sprintf("corpus %q: %v", cfg.CorpusPath, err))
		fmt.Fprintf(w, "%s corpus %s: %v\n", FailMark, cfg.CorpusPath, err)
	case stats.Retained == 0:
		res.fail(fmt.Sprintf("corpus field %q: absent from all %d records", cfg.Field, stats.Records))
		fmt.Fprintf(w, "%s corpus field %q: absent from all %d records\n", FailMark, cfg.Field, stats.Records)
	default:
		fmt.Fprintf(w, "%s corpus: %s (%d records, %d with %q)\n",
			PassMark, cfg.CorpusPath, stats.Records, stats.Retained, cfg.Field)
	}

	// ---- output locations -------------------------------------------------
	for _, target := range []struct{ name, path string }{
		{"training file", cfg.IntermediatePath},
		{"artifact", cfg.OutputPath},
		{"manifest", cfg.ManifestPath},
	} {
		if target.path == "" {
			continue
		}
		dir := filepath.Dir(target.path)
		if err := checkWritable(dir); err != nil {
			res.fail(fmt.Sprintf("%s directory %q: %v", target.name, dir, err))
			fmt.Fprintf(w, "%s %s directory %s: not writable (%v)\n", FailMark, target.name, dir, err)
		} else {
			fmt.Fprintf(w, "%s %s directory: %s\n", PassMark, target.name, dir)
		}
	}

	// ---- existing artifact ------------------------------------------------
	switch _, err := os.Stat(cfg.OutputPath); {
	case cfg.VerifyArtifact == nil || errors.Is(err, fs.ErrNotExist):
		fmt.Fprintf(w, "%s existing artifact: skipped\n", PassMark)
	case err != nil:
		res.fail(fmt.Sprintf("existing artifact %q: %v", cfg.OutputPath, err))
		fmt.Fprintf(w, "%s existing artifact %s: %v\n", FailMark, cfg.OutputPath, err)
	default:
		if err := cfg.VerifyArtifact(cfg.OutputPath); err != nil {
			res.fail(fmt.Sprintf("existing artifact %q: %v", cfg.OutputPath, err))
			fmt.Fprintf(w, "%s existing artifact %s: %v\n", FailMark, cfg.OutputPath, err)
		} else {
			fmt.Fprintf(w, "%s existing artifact: %s\n", PassMark, cfg.OutputPath)
		}
	}

	return res
}

// checkWritable creates and removes a scratch file in dir.
func checkWritable(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	f, err := os.CreateTemp(dir, ".ghomalatok-doctor-*")
	if err != nil {
		return err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return err
	}
	return os.Remove(name)
}
