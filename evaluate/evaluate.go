// Package evaluate measures conversion accuracy over a set of
// (reading, expected surface) cases.
package evaluate

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"kanakanji/apperr"
	"kanakanji/converter"
	"kanakanji/ingest"
	"kanakanji/logger"
	"kanakanji/tokenize"
)

// Case is one line of an evaluation file.
type Case struct {
	ID       string `json:"id"`
	Line     int    `json:"line"`
	Reading  string `json:"reading"`
	Expected string `json:"expected"`
}

// Analysis is the outcome of converting one case. Rank is the 1-based
// position of the expected text, or 0 when it is missing from the N-best
// list.
type Analysis struct {
	Case       Case     `json:"case"`
	Top        string   `json:"top"`
	Rank       int      `json:"rank"`
	Candidates []string `json:"candidates,omitempty"`
}

type Report struct {
	Total    int        `json:"total"`
	Top1     int        `json:"top1"`
	TopN     int        `json:"top_n"`
	Failures []Analysis `json:"failures,omitempty"`
}

func (r Report) Top1Rate() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Top1) / float64(r.Total)
}

func (r Report) TopNRate() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.TopN) / float64(r.Total)
}

// ReadCases parses r. A line is either "reading<TAB>expected" or a plain
// sentence whose reading is derived with tok. Lines starting with # are
// skipped.
func ReadCases(ctx context.Context, r io.Reader, tok *tokenize.Tokenizer) ([]Case, error) {
	sentences, err := ingest.ReadAll(ctx, r)
	if err != nil {
		return nil, apperr.New(apperr.LoadFailure, "evaluate.ReadCases", err)
	}
	var cases []Case
	for _, s := range sentences {
		if strings.HasPrefix(s.Text, "#") {
			continue
		}
		c := Case{ID: s.ID, Line: s.Line}
		if reading, expected, ok := strings.Cut(s.Text, "\t"); ok {
			c.Reading = strings.TrimSpace(reading)
			c.Expected = strings.TrimSpace(expected)
		} else {
			if tok == nil {
				return nil, apperr.Errorf(apperr.InvalidArgument, "evaluate.ReadCases", "line %d: no reading and no tokenizer", s.Line+1)
			}
			reading, err := tok.Reading(ctx, s.Text)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", s.Line+1, err)
			}
			c.Reading, c.Expected = reading, s.Text
		}
		if c.Reading == "" || c.Expected == "" {
			return nil, apperr.Errorf(apperr.LoadFailure, "evaluate.ReadCases", "line %d: empty field", s.Line+1)
		}
		cases = append(cases, c)
	}
	return cases, nil
}

// Analyze converts one case.
func Analyze(ctx context.Context, e *converter.Engine, c Case, opts converter.Options) (Analysis, error) {
	res, err := e.Convert(ctx, c.Reading, opts)
	if err != nil {
		return Analysis{}, fmt.Errorf("case %s: %w", c.ID, err)
	}
	a := Analysis{Case: c, Candidates: make([]string, len(res.Candidates))}
	for i, cand := range res.Candidates {
		a.Candidates[i] = cand.Text
	}
	if top, ok := res.Top(); ok {
		a.Top = top.Text
	}
	a.Rank = slices.Index(a.Candidates, c.Expected) + 1
	return a, nil
}

// Run converts every case on up to workers goroutines. Failures keep the
// order of cases.
func Run(ctx context.Context, e *converter.Engine, cases []Case, opts converter.Options, workers int) (Report, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	results := make([]Analysis, len(cases))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, c := range cases {
		g.Go(func() error {
			a, err := Analyze(gctx, e, c, opts)
			if err != nil {
				return err
			}
			results[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	rep := Report{Total: len(cases)}
	for _, a := range results {
		switch {
		case a.Rank == 1:
			rep.Top1++
			rep.TopN++
		case a.Rank > 1:
			rep.TopN++
			rep.Failures = append(rep.Failures, a)
		default:
			rep.Failures = append(rep.Failures, a)
		}
	}
	logger.Info().
		Int("total", rep.Total).
		Int("top1", rep.Top1).
		Int("top_n", rep.TopN).
		Msg("evaluation finished")
	return rep, nil
}
