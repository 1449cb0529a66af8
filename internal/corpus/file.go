package corpus

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/example/go-ghomala-tok/internal/text"
)

const maxLineBytes = 16 << 20

// Write replaces the file at path with one sentence per line.
func Write(path string, sentences []string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create training file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close training file: %w", cerr)
		}
	}()

	return WriteLines(f, sentences)
}

// WriteLines writes each sentence followed by "\n". Line breaks inside a
// sentence become spaces so that every sentence stays on one line.
func WriteLines(w io.Writer, sentences []string) error {
	bw := bufio.NewWriter(w)
	for _, s := range sentences {
		if _, err := bw.WriteString(text.SingleLine(s)); err != nil {
			return fmt.Errorf("write sentence: %w", err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("write sentence: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush training file: %w", err)
	}
	return nil
}

// ReadLines returns the lines of the file at path without terminators.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open training file: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read training file: %w", err)
	}
	return lines, nil
}

// CountLines returns the number of lines in the file at path.
func CountLines(path string) (int, error) {
	lines, err := ReadLines(path)
	if err != nil {
		return 0, err
	}
	return len(lines), nil
}
