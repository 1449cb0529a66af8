package bpe

import (
	"slices"
)

// WordCounts maps a pre-tokenized, normalized word to its corpus frequency.
type WordCounts map[string]int

// Add records n more occurrences of word.
func (w WordCounts) Add(word string, n int) {
	if word == "" || n <= 0 {
		return
	}
	w[word] += n
}

// Merge folds other into w.
func (w WordCounts) Merge(other WordCounts) {
	for word, n := range other {
		w[word] += n
	}
}

// Total is the number of word occurrences.
func (w WordCounts) Total() int {
	total := 0
	for _, n := range w {
		total += n
	}
	return total
}

// Sorted returns the distinct words in byte order.
func (w WordCounts) Sorted() []string {
	words := make([]string, 0, len(w))
	for word := range w {
		words = append(words, word)
	}
	slices.Sort(words)
	return words
}
