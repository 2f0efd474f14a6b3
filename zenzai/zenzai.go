// Package zenzai runs an external scorer over the lattice N-best list under
// a per-request inference budget.
package zenzai

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"kanakanji/apperr"
	"kanakanji/logger"
	"kanakanji/metrics"
	"kanakanji/model"
)

// Unlimited lifts the inference budget.
const Unlimited = math.MaxInt

const DefaultInferenceLimit = 10

type Version string

const (
	V1 Version = "v1"
	V2 Version = "v2"
	V3 Version = "v3"
)

// ParseVersion accepts v1, v2 and v3. The empty string means v3.
func ParseVersion(s string) (Version, error) {
	switch Version(s) {
	case V1, V2, V3:
		return Version(s), nil
	case "":
		return V3, nil
	}
	return "", apperr.Errorf(apperr.InvalidArgument, "zenzai.ParseVersion", "unknown version %q", s)
}

// Personalization blends a personal n-gram model into the scorer.
type Personalization struct {
	BaseLM     string  `json:"base_lm" yaml:"base_lm"`
	PersonalLM string  `json:"personal_lm" yaml:"personal_lm"`
	N          int     `json:"n,omitempty" yaml:"n,omitempty"`
	D          float64 `json:"d,omitempty" yaml:"d,omitempty"`
	Alpha      float64 `json:"alpha" yaml:"alpha"`
}

type Config struct {
	Enabled         bool             `json:"enabled" yaml:"enabled"`
	WeightPath      string           `json:"weight_path,omitempty" yaml:"weight_path,omitempty"`
	InferenceLimit  int              `json:"inference_limit" yaml:"inference_limit"`
	RichCandidates  bool             `json:"rich_candidates,omitempty" yaml:"rich_candidates,omitempty"`
	Personalization *Personalization `json:"personalization,omitempty" yaml:"personalization,omitempty"`
	Version         Version          `json:"version,omitempty" yaml:"version,omitempty"`
	// LatticeWeight mixes the lattice cost into n-gram reranking.
	LatticeWeight float64 `json:"lattice_weight,omitempty" yaml:"lattice_weight,omitempty"`
}

func Off() Config { return Config{} }

// On enables the reranker with the given weights and budget.
func On(weightPath string, limit int) Config {
	return Config{Enabled: true, WeightPath: weightPath, InferenceLimit: limit, Version: V3}
}

type Request struct {
	Reading         string
	Candidates      []model.Candidate
	BudgetRemaining int
	RichCandidates  bool
	Personalization *Personalization
	Version         Version
}

// Response is one refinement. CallsUsed below one is charged as one.
type Response struct {
	Candidates []model.Candidate
	CallsUsed  int
	Converged  bool
}

// Scorer is the external inference backend.
type Scorer interface {
	Refine(ctx context.Context, req Request) (Response, error)
}

// Backend resolves the scorer for a configuration.
type Backend interface {
	Scorer(ctx context.Context, cfg Config) (Scorer, error)
}

// Static serves the same scorer for every configuration.
func Static(s Scorer) Backend { return staticBackend{s} }

type staticBackend struct{ s Scorer }

func (b staticBackend) Scorer(context.Context, Config) (Scorer, error) { return b.s, nil }

type Outcome struct {
	Candidates []model.Candidate
	Calls      int
	Converged  bool
	Degraded   bool
	Err        error
}

type Reranker struct {
	backend Backend
	log     zerolog.Logger
}

func NewReranker(b Backend) *Reranker {
	return &Reranker{backend: b, log: logger.With("zenzai")}
}

func (r *Reranker) degraded(cands []model.Candidate, err error) Outcome {
	r.log.Debug().Err(err).Msg("reranker unavailable")
	metrics.RecordRerank(metrics.OutcomeDegraded, 0)
	return Outcome{Candidates: cands, Degraded: true, Err: apperr.New(apperr.NeuralUnavailable, "zenzai.Rerank", err)}
}

// Rerank refines candidates until the budget is spent, the scorer reports
// convergence or a call leaves the order unchanged. It never fails: on any
// problem the input comes back with Degraded set, and on cancellation the
// best list found so far is returned.
func (r *Reranker) Rerank(ctx context.Context, cfg Config, reading string, cands []model.Candidate) Outcome {
	if !cfg.Enabled || len(cands) == 0 {
		return Outcome{Candidates: cands}
	}
	if cfg.InferenceLimit <= 0 {
		return r.degraded(cands, fmt.Errorf("inference limit is %d", cfg.InferenceLimit))
	}
	if r.backend == nil {
		return r.degraded(cands, fmt.Errorf("no scorer backend"))
	}
	scorer, err := r.backend.Scorer(ctx, cfg)
	if err != nil {
		return r.degraded(cands, err)
	}

	var (
		mu  sync.Mutex
		out = Outcome{Candidates: slices.Clone(cands)}
	)
	reason := make(chan string, 1)
	go func() {
		budget := cfg.InferenceLimit
		for budget > 0 {
			if ctx.Err() != nil {
				reason <- metrics.OutcomeCanceled
				return
			}
			mu.Lock()
			current := slices.Clone(out.Candidates)
			mu.Unlock()

			resp, err := scorer.Refine(ctx, Request{
				Reading:         reading,
				Candidates:      current,
				BudgetRemaining: budget,
				RichCandidates:  cfg.RichCandidates,
				Personalization: cfg.Personalization,
				Version:         cfg.Version,
			})
			if err != nil {
				mu.Lock()
				out.Degraded = true
				out.Err = apperr.New(apperr.NeuralUnavailable, "zenzai.Rerank", err)
				mu.Unlock()
				reason <- metrics.OutcomeDegraded
				return
			}
			used := min(max(resp.CallsUsed, 1), budget)
			budget -= used

			mu.Lock()
			out.Calls += used
			if len(resp.Candidates) == 0 {
				mu.Unlock()
				reason <- metrics.OutcomeStable
				return
			}
			merged := mergeRefined(resp.Candidates, current)
			improved := !slices.EqualFunc(merged, current, func(a, b model.Candidate) bool { return a.Text == b.Text })
			out.Candidates = merged
			out.Converged = resp.Converged
			mu.Unlock()

			switch {
			case resp.Converged:
				reason <- metrics.OutcomeConverged
				return
			case !improved:
				reason <- metrics.OutcomeStable
				return
			}
		}
		reason <- metrics.OutcomeBudget
	}()

	var why string
	select {
	case why = <-reason:
	case <-ctx.Done():
		why = metrics.OutcomeCanceled
	}
	mu.Lock()
	res := out
	res.Candidates = clampCosts(slices.Clone(out.Candidates))
	mu.Unlock()

	metrics.RecordRerank(why, res.Calls)
	r.log.Debug().Str("reading", reading).Str("outcome", why).Int("calls", res.Calls).Msg("rerank finished")
	return res
}

// mergeRefined puts the scorer's order first and keeps the remaining
// previous candidates after it.
func mergeRefined(refined, previous []model.Candidate) []model.Candidate {
	seen := make(map[string]bool, len(refined)+len(previous))
	out := make([]model.Candidate, 0, len(refined)+len(previous))
	for _, list := range [][]model.Candidate{refined, previous} {
		for _, c := range list {
			if seen[c.Text] {
				continue
			}
			seen[c.Text] = true
			out = append(out, c)
		}
	}
	return out
}

// clampCosts makes display costs non-decreasing along the list.
func clampCosts(cands []model.Candidate) []model.Candidate {
	for i := 1; i < len(cands); i++ {
		cands[i].Cost = max(cands[i].Cost, cands[i-1].Cost)
	}
	return cands
}
