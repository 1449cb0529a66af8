package tokenizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/example/go-ghomala-tok/internal/bpe"
	"github.com/example/go-ghomala-tok/internal/text"
)

const (
	// FormatVersion is the tokenizer.json layout version written.
	FormatVersion = "1.0"

	TypeBPE                = "BPE"
	TypeTemplateProcessing = "TemplateProcessing"
)

type fileJSON struct {
	Version       string           `json:"version"`
	Truncation    json.RawMessage  `json:"truncation"`
	Padding       json.RawMessage  `json:"padding"`
	AddedTokens   []addedTokenJSON `json:"added_tokens"`
	Normalizer    json.RawMessage  `json:"normalizer"`
	PreTokenizer  json.RawMessage  `json:"pre_tokenizer"`
	PostProcessor json.RawMessage  `json:"post_processor"`
	Decoder       json.RawMessage  `json:"decoder"`
	Model         json.RawMessage  `json:"model"`
}

type addedTokenJSON struct {
	ID         int    `json:"id"`
	Content    string `json:"content"`
	SingleWord bool   `json:"single_word"`
	LStrip     bool   `json:"lstrip"`
	RStrip     bool   `json:"rstrip"`
	Normalized bool   `json:"normalized"`
	Special    bool   `json:"special"`
}

type typedJSON struct {
	Type string `json:"type"`
}

type normalizerJSON struct {
	Type        string           `json:"type"`
	Normalizers []normalizerJSON `json:"normalizers,omitempty"`
}

type decoderJSON struct {
	Type   string `json:"type"`
	Suffix string `json:"suffix"`
}

type pieceJSON struct {
	SpecialToken *pieceRefJSON `json:"SpecialToken,omitempty"`
	Sequence     *pieceRefJSON `json:"Sequence,omitempty"`
}

type pieceRefJSON struct {
	ID     string `json:"id"`
	TypeID int    `json:"type_id"`
}

type templateSpecialJSON struct {
	ID     string   `json:"id"`
	IDs    []int    `json:"ids"`
	Tokens []string `json:"tokens"`
}

type postProcessorJSON struct {
	Type          string                         `json:"type"`
	Single        []pieceJSON                    `json:"single"`
	Pair          []pieceJSON                    `json:"pair"`
	SpecialTokens map[string]templateSpecialJSON `json:"special_tokens"`
}

type modelJSON struct {
	Type                    string            `json:"type"`
	Dropout                 *float64          `json:"dropout"`
	UnkToken                *string           `json:"unk_token"`
	ContinuingSubwordPrefix *string           `json:"continuing_subword_prefix"`
	EndOfWordSuffix         *string           `json:"end_of_word_suffix"`
	FuseUnk                 bool              `json:"fuse_unk"`
	ByteFallback            bool              `json:"byte_fallback"`
	Vocab                   orderedVocab      `json:"vocab"`
	Merges                  []json.RawMessage `json:"merges"`
}

// orderedVocab writes the vocabulary in id order so the artifact diffs
// cleanly between runs.
type orderedVocab map[string]int

func (v orderedVocab) MarshalJSON() ([]byte, error) {
	tokens := make([]string, 0, len(v))
	for tok := range v {
		tokens = append(tokens, tok)
	}
	slices.SortFunc(tokens, func(a, b string) int { return v[a] - v[b] })

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, tok := range tokens {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalNoEscape(tok)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		fmt.Fprintf(&buf, ":%d", v[tok])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Marshal renders the trained tokenizer in the tokenizer.json layout.
func (t *Tokenizer) Marshal(pretty bool) ([]byte, error) {
	if t.model == nil {
		return nil, ErrNotTrained
	}

	doc, err := t.document()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode tokenizer: %w", err)
	}
	return buf.Bytes(), nil
}

func (t *Tokenizer) document() (fileJSON, error) {
	raw := func(v any) (json.RawMessage, error) { return marshalNoEscape(v) }

	var added []addedTokenJSON
	for id, tok := range t.special.tokens {
		added = append(added, addedTokenJSON{ID: id, Content: tok, Special: true})
	}

	norm, err := raw(normalizerDoc(t.normalizer))
	if err != nil {
		return fileJSON{}, err
	}
	pre, err := raw(typedJSON{Type: t.preTokenizer.Type()})
	if err != nil {
		return fileJSON{}, err
	}
	post, err := raw(t.postProcessorDoc())
	if err != nil {
		return fileJSON{}, err
	}
	dec, err := raw(decoderJSON{Type: TypeBPEDecoder, Suffix: t.decoder.Suffix})
	if err != nil {
		return fileJSON{}, err
	}

	merges := t.model.Merges()
	mj := modelJSON{
		Type:            TypeBPE,
		UnkToken:        stringPtr(t.model.UnkToken()),
		EndOfWordSuffix: stringPtr(t.model.EndOfWordSuffix()),
		Vocab:           orderedVocab(t.model.Vocab()),
		Merges:          make([]json.RawMessage, len(merges)),
	}
	for i, mg := range merges {
		if mj.Merges[i], err = raw(mg.String()); err != nil {
			return fileJSON{}, err
		}
	}
	model, err := raw(mj)
	if err != nil {
		return fileJSON{}, err
	}

	null := json.RawMessage("null")
	return fileJSON{
		Version:       FormatVersion,
		Truncation:    null,
		Padding:       null,
		AddedTokens:   added,
		Normalizer:    norm,
		PreTokenizer:  pre,
		PostProcessor: post,
		Decoder:       dec,
		Model:         model,
	}, nil
}

func normalizerDoc(n text.Normalizer) normalizerJSON {
	seq, ok := n.(*text.Sequence)
	if !ok {
		return normalizerJSON{Type: n.Type()}
	}
	doc := normalizerJSON{Type: text.TypeSequence, Normalizers: []normalizerJSON{}}
	for _, step := range seq.Steps() {
		doc.Normalizers = append(doc.Normalizers, normalizerDoc(step))
	}
	return doc
}

func (t *Tokenizer) postProcessorDoc() postProcessorJSON {
	pieces := func(ps []Piece) []pieceJSON {
		out := make([]pieceJSON, len(ps))
		for i, p := range ps {
			if p.Sequence != "" {
				out[i].Sequence = &pieceRefJSON{ID: p.Sequence, TypeID: p.TypeID}
			} else {
				out[i].SpecialToken = &pieceRefJSON{ID: p.Special, TypeID: p.TypeID}
			}
		}
		return out
	}

	special := make(map[string]templateSpecialJSON, len(t.post.special))
	for tok, id := range t.post.special {
		special[tok] = templateSpecialJSON{ID: tok, IDs: []int{id}, Tokens: []string{tok}}
	}

	return postProcessorJSON{
		Type:          TypeTemplateProcessing,
		Single:        pieces(t.post.single),
		Pair:          pieces(t.post.pair),
		SpecialTokens: special,
	}
}

// Save writes the artifact to path, replacing any existing file.
func (t *Tokenizer) Save(path string, pretty bool) error {
	data, err := t.Marshal(pretty)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write tokenizer: %w", err)
	}
	return nil
}

// Load reads an artifact written by Save or by a compatible tool.
func Load(path string) (*Tokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tokenizer: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse decodes an artifact. Components other than the ones this package
// writes are rejected with ErrUnsupported.
func Parse(data []byte) (*Tokenizer, error) {
	var doc fileJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode tokenizer: %w", err)
	}

	model, err := parseModel(doc.Model)
	if err != nil {
		return nil, err
	}

	added := slices.Clone(doc.AddedTokens)
	slices.SortFunc(added, func(a, b addedTokenJSON) int { return a.ID - b.ID })
	var specialTokens []string
	for _, at := range added {
		if at.Special {
			specialTokens = append(specialTokens, at.Content)
		}
	}
	special, err := NewSpecialTokens(specialTokens)
	if err != nil {
		return nil, err
	}

	normalizer, err := parseNormalizer(doc.Normalizer)
	if err != nil {
		return nil, err
	}

	var pre typedJSON
	if err := json.Unmarshal(doc.PreTokenizer, &pre); err != nil {
		return nil, fmt.Errorf("decode pre_tokenizer: %w", err)
	}
	if pre.Type != text.TypeWhitespaceSplit {
		return nil, fmt.Errorf("%w: pre_tokenizer %q", ErrUnsupported, pre.Type)
	}

	post, err := parsePostProcessor(doc.PostProcessor)
	if err != nil {
		return nil, err
	}

	var dec decoderJSON
	if err := json.Unmarshal(doc.Decoder, &dec); err != nil {
		return nil, fmt.Errorf("decode decoder: %w", err)
	}
	if dec.Type != TypeBPEDecoder {
		return nil, fmt.Errorf("%w: decoder %q", ErrUnsupported, dec.Type)
	}

	t := &Tokenizer{
		normalizer:   normalizer,
		preTokenizer: text.WhitespaceSplit{},
		special:      special,
		unkToken:     model.UnkToken(),
		suffix:       model.EndOfWordSuffix(),
		post:         post,
		decoder:      BPEDecoder{Suffix: dec.Suffix},
		workers:      1,
	}
	if err := t.SetModel(model); err != nil {
		return nil, err
	}
	return t, nil
}

func parseModel(raw json.RawMessage) (*bpe.Model, error) {
	var mj modelJSON
	if err := json.Unmarshal(raw, &mj); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if mj.Type != TypeBPE {
		return nil, fmt.Errorf("%w: model %q", ErrUnsupported, mj.Type)
	}
	if mj.ContinuingSubwordPrefix != nil && *mj.ContinuingSubwordPrefix != "" {
		return nil, fmt.Errorf("%w: continuing_subword_prefix", ErrUnsupported)
	}

	merges := make([]bpe.Merge, len(mj.Merges))
	for i, m := range mj.Merges {
		mg, err := parseMergeJSON(m)
		if err != nil {
			return nil, err
		}
		merges[i] = mg
	}

	var unk, suffix string
	if mj.UnkToken != nil {
		unk = *mj.UnkToken
	}
	if mj.EndOfWordSuffix != nil {
		suffix = *mj.EndOfWordSuffix
	}
	return bpe.NewModel(mj.Vocab, merges, unk, suffix)
}

// parseMergeJSON accepts both "left right" and ["left", "right"].
func parseMergeJSON(raw json.RawMessage) (bpe.Merge, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return bpe.ParseMerge(s)
	}
	var pair []string
	if err := json.Unmarshal(raw, &pair); err != nil || len(pair) != 2 || pair[0] == "" || pair[1] == "" {
		return bpe.Merge{}, fmt.Errorf("%w: malformed merge %s", bpe.ErrInvalidModel, raw)
	}
	return bpe.Merge{Left: pair[0], Right: pair[1]}, nil
}

func parseNormalizer(raw json.RawMessage) (text.Normalizer, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return text.NewSequence(), nil
	}
	var nj normalizerJSON
	if err := json.Unmarshal(raw, &nj); err != nil {
		return nil, fmt.Errorf("decode normalizer: %w", err)
	}
	return buildNormalizer(nj)
}

func buildNormalizer(nj normalizerJSON) (text.Normalizer, error) {
	if nj.Type != text.TypeSequence {
		n, ok := text.NewNormalizer(nj.Type)
		if !ok {
			return nil, fmt.Errorf("%w: normalizer %q", ErrUnsupported, nj.Type)
		}
		return n, nil
	}
	steps := make([]text.Normalizer, 0, len(nj.Normalizers))
	for _, child := range nj.Normalizers {
		n, err := buildNormalizer(child)
		if err != nil {
			return nil, err
		}
		steps = append(steps, n)
	}
	return text.NewSequence(steps...), nil
}

func parsePostProcessor(raw json.RawMessage) (*TemplateProcessing, error) {
	var pj postProcessorJSON
	if err := json.Unmarshal(raw, &pj); err != nil {
		return nil, fmt.Errorf("decode post_processor: %w", err)
	}
	if pj.Type != TypeTemplateProcessing {
		return nil, fmt.Errorf("%w: post_processor %q", ErrUnsupported, pj.Type)
	}

	pieces := func(in []pieceJSON) ([]Piece, error) {
		out := make([]Piece, len(in))
		for i, p := range in {
			switch {
			case p.Sequence != nil:
				out[i] = Piece{Sequence: p.Sequence.ID, TypeID: p.Sequence.TypeID}
			case p.SpecialToken != nil:
				out[i] = Piece{Special: p.SpecialToken.ID, TypeID: p.SpecialToken.TypeID}
			default:
				return nil, fmt.Errorf("%w: empty template piece", ErrInvalidTemplate)
			}
		}
		return out, nil
	}

	single, err := pieces(pj.Single)
	if err != nil {
		return nil, err
	}
	pair, err := pieces(pj.Pair)
	if err != nil {
		return nil, err
	}

	special := make(map[string]int, len(pj.SpecialTokens))
	for tok, st := range pj.SpecialTokens {
		if len(st.IDs) != 1 {
			return nil, fmt.Errorf("%w: template token %q maps to %d ids", ErrUnsupported, tok, len(st.IDs))
		}
		special[tok] = st.IDs[0]
	}
	return newTemplateProcessing(single, pair, special)
}
