package ngram

import "slices"

const (
	BOS = "<s>"
	EOS = "</s>"
	UNK = "<unk>"

	BOSID int32 = 0
	EOSID int32 = 1
	UNKID int32 = 2
)

// Vocab assigns token IDs in order of first appearance, after the three
// special tokens.
type Vocab struct {
	tokens []string
	ids    map[string]int32
}

func NewVocab() *Vocab {
	v := &Vocab{ids: make(map[string]int32)}
	for _, t := range []string{BOS, EOS, UNK} {
		v.Add(t)
	}
	return v
}

func vocabFrom(tokens []string) *Vocab {
	v := &Vocab{tokens: slices.Clone(tokens), ids: make(map[string]int32, len(tokens))}
	for i, t := range tokens {
		v.ids[t] = int32(i)
	}
	return v
}

func (v *Vocab) Add(tok string) int32 {
	if id, ok := v.ids[tok]; ok {
		return id
	}
	id := int32(len(v.tokens))
	v.tokens = append(v.tokens, tok)
	v.ids[tok] = id
	return id
}

// ID returns UNKID for unknown tokens.
func (v *Vocab) ID(tok string) int32 {
	if id, ok := v.ids[tok]; ok {
		return id
	}
	return UNKID
}

func (v *Vocab) Token(id int32) string {
	if id < 0 || int(id) >= len(v.tokens) {
		return UNK
	}
	return v.tokens[id]
}

func (v *Vocab) Len() int { return len(v.tokens) }

func (v *Vocab) Tokens() []string { return slices.Clone(v.tokens) }

func (v *Vocab) clone() *Vocab { return vocabFrom(v.tokens) }

// Split turns text into character tokens.
func Split(text string) []string {
	out := make([]string, 0, len(text))
	for _, r := range text {
		out = append(out, string(r))
	}
	return out
}
