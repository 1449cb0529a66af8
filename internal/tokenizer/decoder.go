package tokenizer

import "strings"

// TypeBPEDecoder is the artifact name of BPEDecoder.
const TypeBPEDecoder = "BPEDecoder"

// BPEDecoder joins tokens back into text. Every occurrence of Suffix marks
// a word boundary and becomes a space, except at the end of the last token
// where it is dropped. An empty Suffix concatenates.
type BPEDecoder struct {
	Suffix string
}

func (d BPEDecoder) Decode(tokens []string) string {
	var b strings.Builder
	for i, tok := range tokens {
		if d.Suffix == "" {
			b.WriteString(tok)
			continue
		}
		repl := " "
		if i == len(tokens)-1 {
			repl = ""
		}
		b.WriteString(strings.ReplaceAll(tok, d.Suffix, repl))
	}
	return b.String()
}
