package main

import (
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/example/go-ghomala-tok/internal/artifact"
	"github.com/example/go-ghomala-tok/internal/bpe"
	"github.com/example/go-ghomala-tok/internal/testutil"
	"github.com/example/go-ghomala-tok/internal/tokenizer"
)

var smallTrainFlags = []string{
	"--trainer-vocab-size", "60",
	"--trainer-min-frequency", "1",
	"--trainer-show-progress=false",
}

// trainInTempDir writes the fixture corpus under its default name into a
// fresh working directory and runs train with default paths.
func trainInTempDir(t *testing.T) {
	t.Helper()

	dir := t.TempDir()
	testChdir(t, dir)
	testutil.WriteCorpus(t, dir, testutil.GhomalaRecords())

	stdout, _, err := runCLI(t, append([]string{"train"}, smallTrainFlags...)...)
	if err != nil {
		t.Fatalf("train: %v", err)
	}

	if want := "Tokenizer training complete. Saved to 'ghomala_tokenizer.json'.\n"; stdout != want {
		t.Fatalf("stdout = %q, want %q", stdout, want)
	}
}

func TestTrain_DefaultPaths(t *testing.T) {
	trainInTempDir(t)

	for _, name := range []string{"ghomala_corpus.txt", "ghomala_tokenizer.json", "ghomala_tokenizer.manifest.json"} {
		if _, err := os.Stat(name); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}

	data, err := os.ReadFile("ghomala_tokenizer.json")
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertValidArtifact(t, data, tokenizer.DefaultSpecialTokens())

	m, err := artifact.ReadManifest("ghomala_tokenizer.manifest.json")
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if m.Trainer.VocabSize != 60 || m.Corpus.Sentences != 5 {
		t.Fatalf("manifest = %+v", m)
	}
}

func TestTrain_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	testChdir(t, dir)
	testutil.WriteCorpus(t, dir, testutil.GhomalaRecords())
	testutil.WriteFile(t, "ghomalatok.yaml", `
paths:
  output: custom.json
  manifest: ""
trainer:
  vocab_size: 50
  min_frequency: 1
  show_progress: false
`)

	stdout, _, err := runCLI(t, "train")
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if !strings.Contains(stdout, "Saved to 'custom.json'") {
		t.Fatalf("stdout = %q", stdout)
	}
	if _, err := os.Stat("custom.json"); err != nil {
		t.Fatalf("custom output missing: %v", err)
	}
	if _, err := os.Stat("ghomala_tokenizer.manifest.json"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("manifest should be disabled, stat err = %v", err)
	}
}

func TestTrain_EmptyCorpusFailsAtTrainStage(t *testing.T) {
	dir := t.TempDir()
	testChdir(t, dir)
	testutil.WriteCorpus(t, dir, nil)

	stdout, _, err := runCLI(t, append([]string{"train"}, smallTrainFlags...)...)
	if err == nil {
		t.Fatal("expected train to fail on an empty corpus")
	}
	if !strings.HasPrefix(err.Error(), `train failed at stage "train"`) {
		t.Fatalf("error = %q", err)
	}
	if !errors.Is(err, bpe.ErrEmptyCorpus) {
		t.Fatalf("error %v does not wrap ErrEmptyCorpus", err)
	}
	if stdout != "" {
		t.Fatalf("stdout should stay empty on failure, got %q", stdout)
	}
	if _, err := os.Stat("ghomala_tokenizer.json"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("artifact should not exist, stat err = %v", err)
	}
}

func TestTrain_MissingCorpusFailsAtLoadStage(t *testing.T) {
	testChdir(t, t.TempDir())

	_, _, err := runCLI(t, "train", "--trainer-show-progress=false")
	if err == nil || !strings.HasPrefix(err.Error(), `train failed at stage "load"`) {
		t.Fatalf("error = %v", err)
	}
}

func TestTrain_InvalidConfiguration(t *testing.T) {
	testChdir(t, t.TempDir())

	_, _, err := runCLI(t, "train", "--trainer-min-frequency", "0")
	if err == nil || !strings.Contains(err.Error(), "min_frequency") {
		t.Fatalf("error = %v", err)
	}
}

func TestEncodeDecode_Commands(t *testing.T) {
	trainInTempDir(t)

	stdout, _, err := runCLI(t, "encode", "Mɛ̀", "ntʃwɛ́")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.HasPrefix(stdout, "tokens:   [CLS] ") || !strings.Contains(stdout, "ids:      2 ") {
		t.Fatalf("encode output:\n%s", stdout)
	}

	stdout, _, err = runCLI(t, "encode", "--json", "Mɛ̀ ntʃwɛ́")
	if err != nil {
		t.Fatalf("encode --json: %v", err)
	}
	var enc tokenizer.Encoding
	if err := json.Unmarshal([]byte(stdout), &enc); err != nil {
		t.Fatalf("encode --json output is not JSON: %v\n%s", err, stdout)
	}

	args := []string{"decode"}
	for _, id := range enc.IDs {
		args = append(args, strconv.Itoa(id))
	}
	stdout, _, err = runCLI(t, args...)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stdout != "mɛ ntʃwɛ\n" {
		t.Fatalf("decode = %q", stdout)
	}

	stdout, _, err = runCLI(t, "decode", "--keep-special", joinIntsComma(enc.IDs))
	if err != nil {
		t.Fatalf("decode --keep-special: %v", err)
	}
	if !strings.HasPrefix(stdout, "[CLS]") {
		t.Fatalf("decode --keep-special = %q", stdout)
	}
}

func joinIntsComma(ids []int) string {
	return strings.ReplaceAll(joinInts(ids), " ", ",")
}

func TestEncode_Pair(t *testing.T) {
	trainInTempDir(t)

	stdout, _, err := runCLI(t, "encode", "--pair", "mbɛ", "mɛ")
	if err != nil {
		t.Fatalf("encode --pair: %v", err)
	}
	if !strings.Contains(stdout, "type_ids: 0 ") || !strings.HasSuffix(strings.TrimSpace(stdout), "1") {
		t.Fatalf("encode --pair output:\n%s", stdout)
	}
}

func TestEncode_WithoutArtifact(t *testing.T) {
	testChdir(t, t.TempDir())

	if _, _, err := runCLI(t, "encode", "mɛ"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("encode error = %v, want not-exist", err)
	}
}

func TestVerify_Command(t *testing.T) {
	trainInTempDir(t)

	stdout, stderr, err := runCLI(t, "verify", "--sample", "5")
	if err != nil {
		t.Fatalf("verify: %v\nstderr:\n%s", err, stderr)
	}
	if !strings.Contains(stdout, "PASS manifest") || !strings.Contains(stdout, "verify passed") {
		t.Fatalf("verify output:\n%s", stdout)
	}
	if !strings.Contains(stdout, "5 samples round-tripped") {
		t.Fatalf("verify output:\n%s", stdout)
	}
}

func TestVerify_CrossCheck(t *testing.T) {
	trainInTempDir(t)

	stdout, stderr, err := runCLI(t, "verify", "--cross-check")
	if err != nil {
		t.Fatalf("verify --cross-check: %v\nstderr:\n%s", err, stderr)
	}
	if !strings.Contains(stdout, "PASS cross-check (5 samples)") {
		t.Fatalf("verify output:\n%s\nstderr:\n%s", stdout, stderr)
	}
	if strings.Contains(stderr, "WARN cross-check") {
		t.Fatalf("unexpected cross-check warning:\n%s", stderr)
	}
}

func TestTrain_RenamedSpecialTokenRoles(t *testing.T) {
	dir := t.TempDir()
	testChdir(t, dir)
	testutil.WriteCorpus(t, dir, testutil.GhomalaRecords())

	args := append([]string{"train",
		"--trainer-special-tokens", "<pad>,<unk>,<s>,</s>",
		"--trainer-unk-token", "<unk>",
		"--trainer-cls-token", "<s>",
		"--trainer-sep-token", "</s>",
	}, smallTrainFlags...)
	if _, _, err := runCLI(t, args...); err != nil {
		t.Fatalf("train: %v", err)
	}

	stdout, _, err := runCLI(t, "encode", "mɛ")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.HasPrefix(stdout, "tokens:   <s> ") {
		t.Fatalf("encode output:\n%s", stdout)
	}
}

func TestTrain_SpecialTokensWithoutRoleFailsValidation(t *testing.T) {
	testChdir(t, t.TempDir())

	_, _, err := runCLI(t, "train", "--trainer-special-tokens", "<pad>,<unk>,<s>,</s>")
	if err == nil || !strings.Contains(err.Error(), "trainer.unk_token") {
		t.Fatalf("error = %v", err)
	}
	if _, statErr := os.Stat("ghomala_corpus.txt"); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("no file should be written before validation passes, stat err = %v", statErr)
	}
}

func TestVerify_SamplesFromCorpusWhenTrainingFileRemoved(t *testing.T) {
	trainInTempDir(t)
	if err := os.Remove("ghomala_corpus.txt"); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := runCLI(t, "verify", "--sample", "3")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !strings.Contains(stdout, "3 samples round-tripped") {
		t.Fatalf("verify output:\n%s", stdout)
	}
}

func TestDoctor_Command(t *testing.T) {
	trainInTempDir(t)

	stdout, _, err := runCLI(t, "doctor")
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, stdout)
	}
	if !strings.Contains(stdout, "doctor checks passed") || !strings.Contains(stdout, "existing artifact: ghomala_tokenizer.json") {
		t.Fatalf("doctor output:\n%s", stdout)
	}
}

func TestDoctor_FailsWithoutCorpus(t *testing.T) {
	testChdir(t, t.TempDir())

	_, stderr, err := runCLI(t, "doctor")
	if err == nil {
		t.Fatal("expected doctor to fail without a corpus")
	}
	if !strings.Contains(stderr, "FAIL: corpus") {
		t.Fatalf("stderr:\n%s", stderr)
	}
}

func TestParseIDs(t *testing.T) {
	tests := []struct {
		args    []string
		want    []int
		wantErr bool
	}{
		{[]string{"2", "10", "3"}, []int{2, 10, 3}, false},
		{[]string{"2,10,3"}, []int{2, 10, 3}, false},
		{[]string{"2, 10", "3"}, []int{2, 10, 3}, false},
		{[]string{"x"}, nil, true},
		{[]string{","}, nil, true},
	}

	for _, tt := range tests {
		got, err := parseIDs(tt.args)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseIDs(%q) = %v; want error", tt.args, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseIDs(%q): %v", tt.args, err)
			continue
		}
		if len(got) != len(tt.want) {
			t.Errorf("parseIDs(%q) = %v, want %v", tt.args, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("parseIDs(%q) = %v, want %v", tt.args, got, tt.want)
				break
			}
		}
	}
}
