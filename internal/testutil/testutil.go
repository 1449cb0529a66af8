// Package testutil provides corpus fixtures and skip helpers shared by the
// package and command tests.
//
// Typical usage:
//
//	func TestTrain(t *testing.T) {
//	    path := testutil.WriteCorpus(t, t.TempDir(), testutil.GhomalaRecords())
//	    ...
//	}
package testutil

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// CorpusFileName is the default corpus file name, as read by a train run
// started without flags.
const CorpusFileName = "BIBLE_EXTENDED_CORPUS.json"

// Field is the default target-language key.
const Field = "Ghomala translation"

// Record builds one translation record holding sentence under field, next
// to the source-language columns a real corpus carries.
func Record(field, sentence string) map[string]any {
	return map[string]any{
		"English":            "In the beginning",
		"French translation": "Au commencement",
		field:                sentence,
	}
}

// GhomalaRecords returns a small corpus: five records with the Ghomala field
// (one padded with whitespace) and one without it.
func GhomalaRecords() []map[string]any {
	return []map[string]any{
		Record(Field, "Mɛ̀ ntʃwɛ́"),
		Record(Field, "  mbɛ́ pə̂ ntʃwɛ́  "),
		{"English": "No Ghomala here", "French translation": "Pas de ghomala"},
		Record(Field, "Pə̂ gʉ́ mbɛ́ mɛ̀"),
		Record(Field, "mɛ ntʃwɛ mbɛ"),
		Record(Field, "ntʃwɛ́ ntʃwɛ́ mɛ̀"),
	}
}

// GhomalaSentences is the trimmed field value of every GhomalaRecords
// record that has one, in order.
func GhomalaSentences() []string {
	return []string{
		"Mɛ̀ ntʃwɛ́",
		"mbɛ́ pə̂ ntʃwɛ́",
		"Pə̂ gʉ́ mbɛ́ mɛ̀",
		"mɛ ntʃwɛ mbɛ",
		"ntʃwɛ́ ntʃwɛ́ mɛ̀",
	}
}

// WriteCorpus writes records as a JSON array to dir/CorpusFileName and
// returns the path.
func WriteCorpus(tb testing.TB, dir string, records []map[string]any) string {
	tb.Helper()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if records == nil {
		records = []map[string]any{}
	}
	if err := enc.Encode(records); err != nil {
		tb.Fatalf("encode corpus: %v", err)
	}

	return WriteFile(tb, filepath.Join(dir, CorpusFileName), buf.String())
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(tb testing.TB, path, content string) string {
	tb.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		tb.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}

	return path
}

// RequireCorpus skips the test unless GHOMALATOK_TEST_CORPUS names an
// existing corpus file, and returns that path.
func RequireCorpus(tb testing.TB) string {
	tb.Helper()

	path := os.Getenv("GHOMALATOK_TEST_CORPUS")
	if path == "" {
		tb.Skipf("GHOMALATOK_TEST_CORPUS not set; skipping full-corpus test")
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		tb.Skipf("corpus not available at GHOMALATOK_TEST_CORPUS=%q: %v", path, err)
		return ""
	}

	return path
}
