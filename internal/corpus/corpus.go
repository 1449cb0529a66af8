// Package corpus extracts target-language sentences from a JSON translation
// corpus and writes them to the one-sentence-per-line training file.
package corpus

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// DefaultField is the record key holding the Ghomala sentence.
const DefaultField = "Ghomala translation"

var (
	// ErrNotFound is returned when the corpus file does not exist.
	ErrNotFound = errors.New("corpus: file not found")
	// ErrParse is returned when the corpus is not a JSON array of objects
	// or a target value is not a string.
	ErrParse = errors.New("corpus: parse error")
)

// Stats summarizes one load.
type Stats struct {
	// Records is the number of array elements read.
	Records int
	// Retained is the number of records carrying the target field.
	Retained int
	// Skipped is the number of records without it.
	Skipped int
}

// Load reads the corpus at path. See Decode.
func Load(path, field string) ([]string, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, Stats{}, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, Stats{}, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	return Decode(f, field)
}

// Decode streams a JSON array of records and returns the trimmed value of
// field for every record that has it, in input order. Records lacking the
// field are skipped. A record whose field is not a string fails the whole
// decode.
func Decode(r io.Reader, field string) ([]string, Stats, error) {
	var stats Stats

	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return nil, stats, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, stats, fmt.Errorf("%w: top level is not an array", ErrParse)
	}

	var sentences []string
	for dec.More() {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, stats, fmt.Errorf("%w: record %d: %w", ErrParse, stats.Records, err)
		}

		sentence, ok, err := extract(raw, field)
		if err != nil {
			return nil, stats, fmt.Errorf("%w: record %d: %w", ErrParse, stats.Records, err)
		}
		stats.Records++
		if !ok {
			stats.Skipped++
			continue
		}
		stats.Retained++
		sentences = append(sentences, sentence)
	}

	if _, err := dec.Token(); err != nil {
		return nil, stats, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, stats, fmt.Errorf("%w: trailing data after array", ErrParse)
	}

	return sentences, stats, nil
}

func extract(raw json.RawMessage, field string) (string, bool, error) {
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '{' {
		return "", false, errors.New("element is not an object")
	}

	var rec map[string]json.RawMessage
	if err := json.Unmarshal(raw, &rec); err != nil {
		return "", false, err
	}

	value, ok := rec[field]
	if !ok {
		return "", false, nil
	}
	if bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
		return "", false, fmt.Errorf("field %q is null", field)
	}

	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return "", false, fmt.Errorf("field %q is not a string", field)
	}
	return strings.TrimSpace(s), true, nil
}
