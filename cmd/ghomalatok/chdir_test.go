package main

import (
	"os"
	"testing"
)

// testChdir changes the working directory to dir and restores it when the
// test finishes, mirroring testing.T.Chdir for toolchains before Go 1.24.
func testChdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
