package artifact

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/example/go-ghomala-tok/internal/tokenizer"
)

type VerifyOptions struct {
	// Path is the tokenizer artifact.
	Path string
	// ManifestPath, when set, must describe the artifact at Path.
	ManifestPath string
	// SpecialTokens, when set, must match the artifact's reserved tokens
	// in order.
	SpecialTokens []string
	// MaxVocabSize bounds the vocabulary; zero disables the check.
	MaxVocabSize int
	// Samples are encoded and decoded back.
	Samples []string
	// CrossCheck compares ids with an independent implementation. It only
	// warns.
	CrossCheck bool
	Stdout     io.Writer
	Stderr     io.Writer
}

type Report struct {
	VocabSize  int
	Merges     int
	Samples    int
	RoundTrips int
	// Mismatches counts samples the cross-check encoded differently.
	Mismatches int
	// CrossCheckErr is set when the cross-check could not run.
	CrossCheckErr error
}

var newExternal = func(tok *tokenizer.Tokenizer) (tokenizer.Encoder, error) {
	ext, err := NewExternal(tok)
	if err != nil {
		return nil, err
	}
	return ext, nil
}

// Verify loads the artifact and runs every check, printing one PASS or
// FAIL line per check to Stdout or Stderr. The returned error lists the
// failed checks.
func Verify(opts VerifyOptions) (Report, error) {
	if opts.Path == "" {
		return Report{}, errors.New("artifact path is required")
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}

	tok, err := tokenizer.Load(opts.Path)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "FAIL load: %v\n", err)
		return Report{}, fmt.Errorf("load artifact: %w", err)
	}
	_, _ = fmt.Fprintf(opts.Stdout, "PASS load %s\n", opts.Path)

	m := tok.Model()
	rep := Report{VocabSize: m.VocabSize(), Merges: len(m.Merges()), Samples: len(opts.Samples)}

	var failures []string
	check := func(name string, err error) {
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "FAIL %s: %v\n", name, err)
			failures = append(failures, name)
			return
		}
		_, _ = fmt.Fprintf(opts.Stdout, "PASS %s\n", name)
	}

	if opts.ManifestPath != "" {
		check("manifest", checkManifest(opts.ManifestPath, opts.Path, rep))
	}
	check("special tokens", checkSpecialTokens(tok, opts.SpecialTokens))
	check("vocab size", checkVocabSize(rep.VocabSize, opts.MaxVocabSize))
	check("merges", checkMerges(tok))

	rt, err := checkRoundTrip(tok, opts.Samples)
	rep.RoundTrips = rt
	check(fmt.Sprintf("round trip (%d samples)", len(opts.Samples)), err)

	if opts.CrossCheck {
		rep.Mismatches, rep.CrossCheckErr = crossCheck(tok, opts.Samples)
		switch {
		case rep.CrossCheckErr != nil:
			_, _ = fmt.Fprintf(opts.Stderr, "WARN cross-check: %v\n", rep.CrossCheckErr)
		case rep.Mismatches > 0:
			_, _ = fmt.Fprintf(opts.Stderr, "WARN cross-check: %d of %d samples encode differently\n",
				rep.Mismatches, len(opts.Samples))
		default:
			_, _ = fmt.Fprintf(opts.Stdout, "PASS cross-check (%d samples)\n", len(opts.Samples))
		}
	}

	if len(failures) > 0 {
		return rep, fmt.Errorf("verify failed for %d check(s): %s", len(failures), strings.Join(failures, ", "))
	}
	return rep, nil
}

func checkManifest(manifestPath, artifactPath string, rep Report) error {
	m, err := ReadManifest(manifestPath)
	if err != nil {
		return err
	}
	if err := m.CheckArtifact(artifactPath); err != nil {
		return err
	}
	if m.Artifact.VocabSize != rep.VocabSize || m.Artifact.Merges != rep.Merges {
		return fmt.Errorf("manifest records vocab %d and %d merges, artifact has %d and %d",
			m.Artifact.VocabSize, m.Artifact.Merges, rep.VocabSize, rep.Merges)
	}
	return nil
}

func checkSpecialTokens(tok *tokenizer.Tokenizer, want []string) error {
	got := tok.SpecialTokens().Tokens()
	if len(want) > 0 && !slices.Equal(got, want) {
		return fmt.Errorf("artifact declares %v, want %v", got, want)
	}
	for i, name := range got {
		id, ok := tok.TokenToID(name)
		if !ok || id != i {
			return fmt.Errorf("%q has id %d, want %d", name, id, i)
		}
	}
	return nil
}

func checkVocabSize(size, limit int) error {
	if limit > 0 && size > limit {
		return fmt.Errorf("vocabulary of %d exceeds %d", size, limit)
	}
	return nil
}

func checkMerges(tok *tokenizer.Tokenizer) error {
	special := tok.SpecialTokens()
	for i, mg := range tok.Model().Merges() {
		if special.Contains(mg.Left) || special.Contains(mg.Right) {
			return fmt.Errorf("merge %d %q uses a special token", i, mg.String())
		}
		if _, ok := tok.TokenToID(mg.Left + mg.Right); !ok {
			return fmt.Errorf("merge %d %q result missing from vocabulary", i, mg.String())
		}
	}
	return nil
}

func checkRoundTrip(tok *tokenizer.Tokenizer, samples []string) (int, error) {
	ok := 0
	var bad []string
	for _, s := range samples {
		enc, err := tok.Encode(s)
		if err != nil {
			return ok, err
		}
		got, err := tok.Decode(enc.IDs, true)
		if err != nil {
			return ok, err
		}
		if want := tok.Canonical(s); got != want {
			if len(bad) < 3 {
				bad = append(bad, fmt.Sprintf("%q decoded as %q", want, got))
			}
			continue
		}
		ok++
	}
	if ok != len(samples) {
		return ok, fmt.Errorf("%d of %d samples differ: %s", len(samples)-ok, len(samples), strings.Join(bad, "; "))
	}
	return ok, nil
}

func crossCheck(tok *tokenizer.Tokenizer, samples []string) (int, error) {
	ext, err := newExternal(tok)
	if err != nil {
		return 0, err
	}

	mismatches := 0
	for _, s := range samples {
		want, err := tok.EncodeIDs(s)
		if err != nil {
			return mismatches, err
		}
		got, err := ext.EncodeIDs(s)
		if err != nil {
			return mismatches, err
		}
		if !slices.Equal(got, want) {
			mismatches++
		}
	}
	return mismatches, nil
}

// SelectSamples picks up to n non-empty lines spread evenly over lines.
func SelectSamples(lines []string, n int) []string {
	var candidates []string
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			candidates = append(candidates, l)
		}
	}
	if n <= 0 || len(candidates) == 0 {
		return nil
	}
	if n >= len(candidates) {
		return candidates
	}

	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, candidates[i*len(candidates)/n])
	}
	return out
}
