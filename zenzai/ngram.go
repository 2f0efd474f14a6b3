package zenzai

import (
	"cmp"
	"context"
	"slices"

	"kanakanji/model"
	"kanakanji/ngram"
)

// NGramScorer reranks candidates by the sentence cost of a character
// language model, optionally mixed with the lattice cost. One call ranks the
// whole list, so it always converges.
type NGramScorer struct {
	LM ngram.Scorer
	// LatticeWeight scales the lattice cost added to the LM cost.
	LatticeWeight float64
}

func (s NGramScorer) Refine(ctx context.Context, req Request) (Response, error) {
	type scored struct {
		c     model.Candidate
		score float64
	}
	list := make([]scored, 0, len(req.Candidates))
	for _, c := range req.Candidates {
		if err := ctx.Err(); err != nil {
			return Response{}, err
		}
		list = append(list, scored{c: c, score: ngram.TextCost(s.LM, c.Text) + s.LatticeWeight*c.Cost})
	}
	slices.SortStableFunc(list, func(a, b scored) int { return cmp.Compare(a.score, b.score) })

	out := make([]model.Candidate, len(list))
	for i, x := range list {
		out[i] = x.c
	}
	if len(out) > 0 && len(req.Candidates) > 0 && out[0].Text != req.Candidates[0].Text {
		out[0].Source = model.SourceNeural
	}
	return Response{Candidates: out, CallsUsed: 1, Converged: true}, nil
}
