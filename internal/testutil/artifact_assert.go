package testutil

import (
	"encoding/json"
	"testing"
)

// AssertValidArtifact checks that data is a BPE tokenizer artifact holding
// the given special tokens at ids 0..n-1 and a non-empty merge list.
func AssertValidArtifact(tb testing.TB, data []byte, special []string) {
	tb.Helper()

	var doc struct {
		Model struct {
			Type   string         `json:"type"`
			Vocab  map[string]int `json:"vocab"`
			Merges []string       `json:"merges"`
		} `json:"model"`
		AddedTokens []struct {
			ID      int    `json:"id"`
			Content string `json:"content"`
		} `json:"added_tokens"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		tb.Fatalf("artifact is not valid JSON: %v", err)
	}

	if doc.Model.Type != "BPE" {
		tb.Fatalf("artifact model type = %q, want BPE", doc.Model.Type)
	}
	if len(doc.Model.Merges) == 0 {
		tb.Fatalf("artifact has no merges")
	}

	for want, tok := range special {
		id, ok := doc.Model.Vocab[tok]
		if !ok {
			tb.Fatalf("special token %q missing from vocab", tok)
		}
		if id != want {
			tb.Fatalf("special token %q has id %d, want %d", tok, id, want)
		}
	}

	if len(doc.AddedTokens) != len(special) {
		tb.Fatalf("added_tokens has %d entries, want %d", len(doc.AddedTokens), len(special))
	}
	for i, at := range doc.AddedTokens {
		if at.ID != i || at.Content != special[i] {
			tb.Fatalf("added_tokens[%d] = {%d %q}, want {%d %q}", i, at.ID, at.Content, i, special[i])
		}
	}
}
