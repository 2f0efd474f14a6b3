package ngram

import (
	"math"
)

// Scorer gives the cost, in bits, of a token after a history.
type Scorer interface {
	Order() int
	TokenCost(history []string, next string) float64
	Vocabulary() []string
}

// Model is a trained, read-only n-gram model. It is safe for concurrent
// use.
type Model struct {
	n      int
	d      float64
	vocab  *Vocab
	counts *counts
	cABX   map[string]uint32
	uXBX   map[string]uint32
}

func newModel(n int, d float64, vocab *Vocab, c *counts) *Model {
	m := &Model{
		n:      n,
		d:      d,
		vocab:  vocab,
		counts: c,
		cABX:   make(map[string]uint32),
		uXBX:   make(map[string]uint32),
	}
	for k, v := range c.cABC {
		m.cABX[k[:len(k)-4]] += v
	}
	for k, v := range c.uXBC {
		m.uXBX[k[:len(k)-4]] += v
	}
	return m
}

func (m *Model) Order() int { return m.n }

func (m *Model) Discount() float64 { return m.d }

func (m *Model) Vocabulary() []string { return m.vocab.Tokens() }

// context returns the last n-1 IDs of history, left-padded with BOS.
func (m *Model) context(history []string) []int32 {
	ab := make([]int32, m.n-1)
	for i := range ab {
		ab[i] = BOSID
	}
	for i, j := len(history)-1, len(ab)-1; i >= 0 && j >= 0; i, j = i-1, j-1 {
		ab[j] = m.vocab.ID(history[i])
	}
	return ab
}

func discounted(count, total uint32, types uint32, d float64) (alpha, gamma float64) {
	if total == 0 {
		return 0, 1
	}
	alpha = max(0, float64(count)-d) / float64(total)
	gamma = d * float64(types) / float64(total)
	return alpha, gamma
}

func withNext(ctx []int32, next int32) string {
	return packKey(append(append(make([]int32, 0, len(ctx)+1), ctx...), next))
}

func (m *Model) prob(ab []int32, next int32) float64 {
	abKey := packKey(ab)
	alpha, gamma := discounted(m.counts.cABC[withNext(ab, next)], m.cABX[abKey], m.counts.uABX[abKey], m.d)

	plf, coef := 0.0, 1.0
	for i := 1; i <= len(ab); i++ {
		b := ab[i:]
		bKey := packKey(b)
		a, g := discounted(m.counts.uXBC[withNext(b, next)], m.uXBX[bKey], m.counts.rXBX[bKey], m.d)
		plf += a * coef
		coef *= g
	}
	plf += coef / float64(m.vocab.Len())
	return alpha + gamma*plf
}

// Prob is the smoothed probability of next after history.
func (m *Model) Prob(history []string, next string) float64 {
	return m.prob(m.context(history), m.vocab.ID(next))
}

// TokenCost is -log2 Prob.
func (m *Model) TokenCost(history []string, next string) float64 {
	return -math.Log2(m.Prob(history, next))
}

// TextCost is the cost of text as a whole sentence, end token included.
func TextCost(s Scorer, text string) float64 {
	toks := Split(text)
	total := 0.0
	for i, t := range toks {
		total += s.TokenCost(toks[:i], t)
	}
	return total + s.TokenCost(toks, EOS)
}
