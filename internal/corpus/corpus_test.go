package corpus

import (
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/example/go-ghomala-tok/internal/testutil"
)

func TestLoad_SkipsRecordsWithoutField(t *testing.T) {
	path := testutil.WriteCorpus(t, t.TempDir(), testutil.GhomalaRecords())

	got, stats, err := Load(path, DefaultField)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := testutil.GhomalaSentences()
	if !slices.Equal(got, want) {
		t.Fatalf("sentences = %q, want %q", got, want)
	}

	wantStats := Stats{Records: 6, Retained: 5, Skipped: 1}
	if stats != wantStats {
		t.Fatalf("stats = %+v, want %+v", stats, wantStats)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
		stats Stats
	}{
		{
			name:  "trims whitespace",
			input: `[{"Ghomala translation": "  Mɛ̀ ntʃwɛ́\t"}]`,
			want:  []string{"Mɛ̀ ntʃwɛ́"},
			stats: Stats{Records: 1, Retained: 1},
		},
		{
			name:  "keeps order",
			input: `[{"Ghomala translation": "b"}, {"x": 1}, {"Ghomala translation": "a"}]`,
			want:  []string{"b", "a"},
			stats: Stats{Records: 3, Retained: 2, Skipped: 1},
		},
		{
			name:  "keeps empty after trim",
			input: `[{"Ghomala translation": "   "}]`,
			want:  []string{""},
			stats: Stats{Records: 1, Retained: 1},
		},
		{
			name:  "empty array",
			input: `[]`,
			want:  nil,
		},
		{
			name:  "all skipped",
			input: `[{"English": "a"}, {}]`,
			want:  nil,
			stats: Stats{Records: 2, Skipped: 2},
		},
		{
			name:  "other fields ignored",
			input: `[{"Ghomala translation": "mɛ", "Verse": 3, "Tags": ["a"], "Note": null}]`,
			want:  []string{"mɛ"},
			stats: Stats{Records: 1, Retained: 1},
		},
		{
			name:  "escaped characters",
			input: `[{"Ghomala translation": "mɛ \"ntʃwɛ\""}]`,
			want:  []string{`mɛ "ntʃwɛ"`},
			stats: Stats{Records: 1, Retained: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, stats, err := Decode(strings.NewReader(tt.input), DefaultField)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Fatalf("sentences = %q, want %q", got, tt.want)
			}
			if stats != tt.stats {
				t.Fatalf("stats = %+v, want %+v", stats, tt.stats)
			}
		})
	}
}

func TestDecode_ParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty input", ``},
		{"not json", `not json`},
		{"object at top level", `{"Ghomala translation": "mɛ"}`},
		{"string element", `["mɛ"]`},
		{"null element", `[null]`},
		{"number value", `[{"Ghomala translation": 3}]`},
		{"null value", `[{"Ghomala translation": null}]`},
		{"array value", `[{"Ghomala translation": ["mɛ"]}]`},
		{"truncated", `[{"Ghomala translation": "mɛ"}`},
		{"trailing data", `[] []`},
		{"bad element", `[{"Ghomala translation": "mɛ"}, {]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode(strings.NewReader(tt.input), DefaultField)
			if !errors.Is(err, ErrParse) {
				t.Fatalf("Decode error = %v, want ErrParse", err)
			}
		})
	}
}

func TestLoad_NotFound(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "missing.json"), DefaultField)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load error = %v, want ErrNotFound", err)
	}
}

func TestLoad_CustomField(t *testing.T) {
	records := []map[string]any{
		testutil.Record("Bafut translation", "a"),
		testutil.Record(DefaultField, "b"),
	}
	path := testutil.WriteCorpus(t, t.TempDir(), records)

	got, _, err := Load(path, "Bafut translation")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !slices.Equal(got, []string{"a"}) {
		t.Fatalf("sentences = %q", got)
	}
}

func TestWrite_OneSentencePerLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ghomala_corpus.txt")
	sentences := []string{"Mɛ̀ ntʃwɛ́", "", "mbɛ"}

	if err := Write(path, sentences); err != nil {
		t.Fatalf("Write: %v", err)
	}

	lines, err := ReadLines(path)
	if err != nil {
		t.Fatalf("ReadLines: %v", err)
	}
	if !slices.Equal(lines, sentences) {
		t.Fatalf("lines = %q, want %q", lines, sentences)
	}

	n, err := CountLines(path)
	if err != nil {
		t.Fatalf("CountLines: %v", err)
	}
	if n != len(sentences) {
		t.Fatalf("CountLines = %d, want %d", n, len(sentences))
	}
}

func TestWrite_Overwrites(t *testing.T) {
	path := testutil.WriteFile(t, filepath.Join(t.TempDir(), "out.txt"), "old\nold\nold\nold\n")

	if err := Write(path, []string{"new"}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	lines, err := ReadLines(path)
	if err != nil {
		t.Fatalf("ReadLines: %v", err)
	}
	if !slices.Equal(lines, []string{"new"}) {
		t.Fatalf("lines = %q", lines)
	}
}

func TestWriteLines_FlattensLineBreaks(t *testing.T) {
	var b strings.Builder
	if err := WriteLines(&b, []string{"a\nb", "c\r\nd", "e"}); err != nil {
		t.Fatalf("WriteLines: %v", err)
	}
	if got, want := b.String(), "a b\nc d\ne\n"; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

func TestWrite_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	if err := Write(path, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}

	n, err := CountLines(path)
	if err != nil {
		t.Fatalf("CountLines: %v", err)
	}
	if n != 0 {
		t.Fatalf("CountLines = %d, want 0", n)
	}
}

func TestWrite_MissingDirectory(t *testing.T) {
	err := Write(filepath.Join(t.TempDir(), "no", "such", "dir.txt"), []string{"a"})
	if err == nil {
		t.Fatal("expected error writing into a missing directory")
	}
}
