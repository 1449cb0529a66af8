package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTemplate(t *testing.T) {
	tests := []struct {
		in   string
		want []Piece
	}{
		{"[CLS] $A [SEP]", []Piece{{Special: "[CLS]"}, {Sequence: "A"}, {Special: "[SEP]"}}},
		{"$A:1 [SEP]:2", []Piece{{Sequence: "A", TypeID: 1}, {Special: "[SEP]", TypeID: 2}}},
		{"a:b", []Piece{{Special: "a:b"}}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTemplate(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTemplate_Errors(t *testing.T) {
	for _, in := range []string{"", "   ", "$C", "[SEP]:-1"} {
		_, err := ParseTemplate(in)
		assert.ErrorIs(t, err, ErrInvalidTemplate, in)
	}
}

func TestNewTemplateProcessing_Errors(t *testing.T) {
	special := map[string]int{"[CLS]": 2, "[SEP]": 3}

	tests := []struct {
		name         string
		single, pair string
	}{
		{"single uses B", "[CLS] $B [SEP]", "[CLS] $A [SEP] $B:1 [SEP]:1"},
		{"pair lacks B", "[CLS] $A [SEP]", "[CLS] $A [SEP]"},
		{"A twice", "$A $A", "$A $B"},
		{"unknown special", "[BOS] $A", "$A $B"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTemplateProcessing(tt.single, tt.pair, special)
			assert.ErrorIs(t, err, ErrInvalidTemplate)
		})
	}
}

func TestTemplateProcessing_Apply(t *testing.T) {
	p, err := NewTemplateProcessing("[CLS] $A [SEP]", "[CLS] $A [SEP] $B:1 [SEP]:1",
		map[string]int{"[CLS]": 2, "[SEP]": 3})
	require.NoError(t, err)

	a := &Encoding{}
	a.appendToken(10, "mɛ</w>", 0, 0)
	b := &Encoding{}
	b.appendToken(11, "mb", 0, 0)
	b.appendToken(12, "ɛ</w>", 0, 0)

	single := p.Apply(a, nil)
	assert.Equal(t, []int{2, 10, 3}, single.IDs)
	assert.Equal(t, []string{"[CLS]", "mɛ</w>", "[SEP]"}, single.Tokens)
	assert.Equal(t, []int{0, 0, 0}, single.TypeIDs)
	assert.Equal(t, []int{1, 0, 1}, single.SpecialTokensMask)
	assert.Equal(t, []int{1, 1, 1}, single.AttentionMask)

	pair := p.Apply(a, b)
	assert.Equal(t, []int{2, 10, 3, 11, 12, 3}, pair.IDs)
	assert.Equal(t, []int{0, 0, 0, 1, 1, 1}, pair.TypeIDs)
	assert.Equal(t, []int{1, 0, 1, 0, 0, 1}, pair.SpecialTokensMask)
}

func TestBPEDecoder(t *testing.T) {
	tests := []struct {
		name   string
		suffix string
		tokens []string
		want   string
	}{
		{"words", "</w>", []string{"lo", "w</w>", "er</w>"}, "low er"},
		{"single", "</w>", []string{"mɛ</w>"}, "mɛ"},
		{"unterminated", "</w>", []string{"mb", "ɛ"}, "mbɛ"},
		{"no suffix", "", []string{"lo", "w", "er"}, "lower"},
		{"empty", "</w>", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BPEDecoder{Suffix: tt.suffix}.Decode(tt.tokens))
		})
	}
}

func TestSpecialTokens(t *testing.T) {
	s, err := NewSpecialTokens(DefaultSpecialTokens())
	require.NoError(t, err)

	assert.Equal(t, 5, s.Len())
	assert.True(t, s.Contains("[MASK]"))
	assert.False(t, s.Contains("[BOS]"))
	assert.True(t, s.IsSpecialID(4))
	assert.False(t, s.IsSpecialID(5))
	assert.False(t, s.IsSpecialID(-1))
	assert.Equal(t, map[string]int{"[CLS]": 2, "[SEP]": 3}, s.IDs("[CLS]", "[SEP]", "[BOS]"))
}
