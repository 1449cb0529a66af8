// Package artifact records and verifies trained tokenizer artifacts.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
)

// Manifest describes one training run and the files it read and wrote.
type Manifest struct {
	RunID     string       `json:"run_id"`
	CreatedAt time.Time    `json:"created_at"`
	Corpus    CorpusInfo   `json:"corpus"`
	Artifact  ArtifactInfo `json:"artifact"`
	Trainer   TrainerInfo  `json:"trainer"`
}

type CorpusInfo struct {
	Path      string `json:"path"`
	SHA256    string `json:"sha256"`
	Field     string `json:"field"`
	Records   int    `json:"records"`
	Sentences int    `json:"sentences"`
}

type ArtifactInfo struct {
	Path      string `json:"path"`
	SHA256    string `json:"sha256"`
	VocabSize int    `json:"vocab_size"`
	Merges    int    `json:"merges"`
}

type TrainerInfo struct {
	VocabSize       int      `json:"vocab_size"`
	MinFrequency    int      `json:"min_frequency"`
	SpecialTokens   []string `json:"special_tokens"`
	EndOfWordSuffix string   `json:"end_of_word_suffix"`
	Workers         int      `json:"workers"`
}

// NewManifest starts a manifest with a fresh random run id.
func NewManifest(now time.Time) Manifest {
	return Manifest{
		RunID:     uuid.NewString(),
		CreatedAt: now.UTC().Truncate(time.Second),
	}
}

// FileSHA256 returns the hex SHA-256 digest of the file at path.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("read file for checksum: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func WriteManifest(path string, m Manifest) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func ReadManifest(path string) (Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	if _, err := uuid.Parse(m.RunID); err != nil {
		return Manifest{}, fmt.Errorf("manifest %s: bad run_id: %w", path, err)
	}
	return m, nil
}

// CheckArtifact reports whether the file at path still has the digest the
// manifest recorded.
func (m Manifest) CheckArtifact(path string) error {
	got, err := FileSHA256(path)
	if err != nil {
		return err
	}
	if got != m.Artifact.SHA256 {
		return fmt.Errorf("artifact %s sha256 %s does not match manifest %s (run %s)",
			path, got, m.Artifact.SHA256, m.RunID)
	}
	return nil
}
