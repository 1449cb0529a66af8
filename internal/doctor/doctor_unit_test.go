package doctor

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckWritable(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "plain.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	tests := []struct {
		name    string
		dir     string
		wantErr bool
	}{
		{"temp dir", dir, false},
		{"missing", filepath.Join(dir, "missing"), true},
		{"file", file, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkWritable(tt.dir)
			if tt.wantErr && err == nil {
				t.Fatalf("checkWritable(%q) = nil; want error", tt.dir)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("checkWritable(%q) = %v; want nil", tt.dir, err)
			}
		})
	}
}

func TestCheckWritable_LeavesNoScratchFile(t *testing.T) {
	dir := t.TempDir()
	if err := checkWritable(dir); err != nil {
		t.Fatalf("checkWritable: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("scratch files left behind: %v", entries)
	}
}
