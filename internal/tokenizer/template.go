package tokenizer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidTemplate is returned for templates that cannot be parsed or
// that name tokens outside the special-token table.
var ErrInvalidTemplate = errors.New("tokenizer: invalid template")

const (
	SequenceA = "A"
	SequenceB = "B"
)

// Piece is one element of a template: either a special token or a
// placeholder for sequence A or B.
type Piece struct {
	Special  string
	Sequence string
	TypeID   int
}

func (p Piece) String() string {
	s := p.Special
	if p.Sequence != "" {
		s = "$" + p.Sequence
	}
	if p.TypeID != 0 {
		s += ":" + strconv.Itoa(p.TypeID)
	}
	return s
}

// ParseTemplate parses the whitespace-separated form used in configs, for
// example "[CLS] $A [SEP] $B:1 [SEP]:1".
func ParseTemplate(s string) ([]Piece, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty template", ErrInvalidTemplate)
	}

	pieces := make([]Piece, 0, len(fields))
	for _, f := range fields {
		name, typeID := f, 0
		if i := strings.LastIndexByte(f, ':'); i > 0 {
			n, err := strconv.Atoi(f[i+1:])
			if err == nil {
				if n < 0 {
					return nil, fmt.Errorf("%w: negative type id in %q", ErrInvalidTemplate, f)
				}
				name, typeID = f[:i], n
			}
		}

		if strings.HasPrefix(name, "$") {
			seq := strings.TrimPrefix(name, "$")
			if seq != SequenceA && seq != SequenceB {
				return nil, fmt.Errorf("%w: unknown sequence %q", ErrInvalidTemplate, f)
			}
			pieces = append(pieces, Piece{Sequence: seq, TypeID: typeID})
			continue
		}
		pieces = append(pieces, Piece{Special: name, TypeID: typeID})
	}
	return pieces, nil
}

// TemplateProcessing wraps encoded sequences in special tokens.
type TemplateProcessing struct {
	single  []Piece
	pair    []Piece
	special map[string]int
}

// NewTemplateProcessing parses both templates and checks that every special
// token they name has an id in special. The single template must use $A
// only; the pair template must use $A and $B.
func NewTemplateProcessing(single, pair string, special map[string]int) (*TemplateProcessing, error) {
	s, err := ParseTemplate(single)
	if err != nil {
		return nil, fmt.Errorf("single: %w", err)
	}
	p, err := ParseTemplate(pair)
	if err != nil {
		return nil, fmt.Errorf("pair: %w", err)
	}
	return newTemplateProcessing(s, p, special)
}

func newTemplateProcessing(single, pair []Piece, special map[string]int) (*TemplateProcessing, error) {
	if err := checkPieces(single, special, SequenceA); err != nil {
		return nil, fmt.Errorf("single: %w", err)
	}
	if err := checkPieces(pair, special, SequenceA, SequenceB); err != nil {
		return nil, fmt.Errorf("pair: %w", err)
	}

	ids := make(map[string]int, len(special))
	for tok, id := range special {
		ids[tok] = id
	}
	return &TemplateProcessing{
		single:  append([]Piece(nil), single...),
		pair:    append([]Piece(nil), pair...),
		special: ids,
	}, nil
}

func checkPieces(pieces []Piece, special map[string]int, want ...string) error {
	seen := make(map[string]int)
	for _, p := range pieces {
		if p.Sequence != "" {
			seen[p.Sequence]++
			continue
		}
		if _, ok := special[p.Special]; !ok {
			return fmt.Errorf("%w: %q is not a special token", ErrInvalidTemplate, p.Special)
		}
	}
	for _, seq := range want {
		if seen[seq] != 1 {
			return fmt.Errorf("%w: $%s must appear exactly once", ErrInvalidTemplate, seq)
		}
		delete(seen, seq)
	}
	for seq := range seen {
		return fmt.Errorf("%w: unexpected $%s", ErrInvalidTemplate, seq)
	}
	return nil
}

func (p *TemplateProcessing) Single() []Piece { return append([]Piece(nil), p.single...) }
func (p *TemplateProcessing) Pair() []Piece   { return append([]Piece(nil), p.pair...) }

// SpecialTokenIDs returns the ids of the tokens the templates insert.
func (p *TemplateProcessing) SpecialTokenIDs() map[string]int {
	out := make(map[string]int, len(p.special))
	for tok, id := range p.special {
		out[tok] = id
	}
	return out
}

// Apply returns the single template applied to a, or the pair template when
// b is non-nil. Sequence pieces take the type id of their placeholder.
func (p *TemplateProcessing) Apply(a, b *Encoding) Encoding {
	pieces := p.single
	if b != nil {
		pieces = p.pair
	}

	var out Encoding
	for _, piece := range pieces {
		switch piece.Sequence {
		case SequenceA:
			out.appendSequence(a, piece.TypeID)
		case SequenceB:
			out.appendSequence(b, piece.TypeID)
		default:
			out.appendSpecial(piece.Special, p.special[piece.Special], piece.TypeID)
		}
	}
	return out
}
