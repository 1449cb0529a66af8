package tokenizer

// Encoding is the model input produced for one sequence or a pair.
type Encoding struct {
	IDs               []int    `json:"ids"`
	Tokens            []string `json:"tokens"`
	TypeIDs           []int    `json:"type_ids"`
	SpecialTokensMask []int    `json:"special_tokens_mask"`
	AttentionMask     []int    `json:"attention_mask"`
}

func (e *Encoding) Len() int { return len(e.IDs) }

func (e *Encoding) appendToken(id int, tok string, typeID, special int) {
	e.IDs = append(e.IDs, id)
	e.Tokens = append(e.Tokens, tok)
	e.TypeIDs = append(e.TypeIDs, typeID)
	e.SpecialTokensMask = append(e.SpecialTokensMask, special)
	e.AttentionMask = append(e.AttentionMask, 1)
}

func (e *Encoding) appendSpecial(tok string, id, typeID int) {
	e.appendToken(id, tok, typeID, 1)
}

func (e *Encoding) appendSequence(src *Encoding, typeID int) {
	if src == nil {
		return
	}
	for i, id := range src.IDs {
		e.appendToken(id, src.Tokens[i], typeID, src.SpecialTokensMask[i])
	}
}
