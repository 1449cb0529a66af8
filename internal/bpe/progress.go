package bpe

import (
	"io"

	"github.com/schollz/progressbar/v2"
)

type progress interface {
	add(n int)
	finish()
}

type noProgress struct{}

func (noProgress) add(int) {}
func (noProgress) finish() {}

type barProgress struct {
	bar *progressbar.ProgressBar
}

func (p barProgress) add(n int) { _ = p.bar.Add(n) }
func (p barProgress) finish()   { _ = p.bar.Finish() }

func newProgress(show bool, w io.Writer, total int) progress {
	if !show || total <= 0 {
		return noProgress{}
	}
	return barProgress{bar: progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("merges"),
	)}
}
