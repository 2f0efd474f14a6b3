// Package ngram implements a character n-gram language model with
// interpolated Kneser-Ney discounting, its trainer and snapshot files.
package ngram

import (
	"context"
	"encoding/binary"
	"io"
	"maps"

	"kanakanji/apperr"
	"kanakanji/ingest"
	"kanakanji/logger"
)

const (
	DefaultN = 5
	DefaultD = 0.75
)

// counts holds the raw statistics, keyed by packed token IDs.
//
//	c_abc  occurrences of each n-gram, every order from 2 to n
//	c_bc   occurrences of each n-gram suffix
//	u_abx  distinct continuations of each context
//	u_xbc  distinct left extensions of each suffix
//	r_xbx  distinct continuations of each suffix context
type counts struct {
	cABC map[string]uint32
	cBC  map[string]uint32
	uABX map[string]uint32
	uXBC map[string]uint32
	rXBX map[string]uint32
}

func newCounts() *counts {
	return &counts{
		cABC: make(map[string]uint32),
		cBC:  make(map[string]uint32),
		uABX: make(map[string]uint32),
		uXBC: make(map[string]uint32),
		rXBX: make(map[string]uint32),
	}
}

func (c *counts) clone() *counts {
	return &counts{
		cABC: maps.Clone(c.cABC),
		cBC:  maps.Clone(c.cBC),
		uABX: maps.Clone(c.uABX),
		uXBC: maps.Clone(c.uXBC),
		rXBX: maps.Clone(c.rXBX),
	}
}

func packKey(ids []int32) string {
	b := make([]byte, 4*len(ids))
	for i, id := range ids {
		binary.LittleEndian.PutUint32(b[4*i:], uint32(id))
	}
	return string(b)
}

func unpackKey(k string) []int32 {
	out := make([]int32, len(k)/4)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32([]byte(k[4*i : 4*i+4])))
	}
	return out
}

func (c *counts) add(gram []int32) {
	aBc := packKey(gram)
	aB := packKey(gram[:len(gram)-1])
	Bc := packKey(gram[1:])
	B := packKey(gram[1 : len(gram)-1])

	c.cABC[aBc]++
	if c.cABC[aBc] == 1 {
		c.uABX[aB]++
		c.uXBC[Bc]++
	}
	c.cBC[Bc]++
	if c.cBC[Bc] == 1 {
		c.rXBX[B]++
	}
}

// Trainer accumulates counts. It is not safe for concurrent use.
type Trainer struct {
	n         int
	d         float64
	vocab     *Vocab
	counts    *counts
	sentences int
}

func validate(n int, d float64) error {
	if n < 2 {
		return apperr.Errorf(apperr.InvalidArgument, "ngram", "order must be at least 2, got %d", n)
	}
	if d <= 0 || d > 1 {
		return apperr.Errorf(apperr.InvalidArgument, "ngram", "discount must be in (0, 1], got %g", d)
	}
	return nil
}

func NewTrainer(n int, d float64) (*Trainer, error) {
	if err := validate(n, d); err != nil {
		return nil, err
	}
	return &Trainer{n: n, d: d, vocab: NewVocab(), counts: newCounts()}, nil
}

func (t *Trainer) Order() int { return t.n }

func (t *Trainer) Discount() float64 { return t.d }

func (t *Trainer) Sentences() int { return t.sentences }

// AddSentence counts every n-gram of order 2..n of the padded sentence.
func (t *Trainer) AddSentence(text string) {
	toks := Split(text)
	if len(toks) == 0 {
		return
	}
	ids := make([]int32, len(toks))
	for i, tok := range toks {
		ids[i] = t.vocab.Add(tok)
	}
	for k := 2; k <= t.n; k++ {
		padded := make([]int32, 0, k-1+len(ids)+1)
		for range k - 1 {
			padded = append(padded, BOSID)
		}
		padded = append(padded, ids...)
		padded = append(padded, EOSID)
		for i := 0; i+k <= len(padded); i++ {
			t.counts.add(padded[i : i+k])
		}
	}
	t.sentences++
}

// Train counts every line of r.
func (t *Trainer) Train(ctx context.Context, r io.Reader) (int, error) {
	sentences, errs := ingest.Stream(ctx, r)
	n := 0
	for s := range sentences {
		t.AddSentence(s.Text)
		n++
	}
	if err := <-errs; err != nil {
		return n, apperr.New(apperr.TrainingIOFailure, "ngram.Train", err)
	}
	l := logger.With("ngram")
	l.Debug().Int("sentences", n).Int("vocab", t.vocab.Len()).Msg("corpus counted")
	return n, nil
}

// Model returns an immutable model of the current counts.
func (t *Trainer) Model() *Model {
	return newModel(t.n, t.d, t.vocab.clone(), t.counts.clone())
}
