package zenzai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"kanakanji/logger"
	"kanakanji/ngram"
)

// ErrNoBackend is returned for weight files no in-process backend can run.
var ErrNoBackend = errors.New("zenzai: no backend for weight file")

const (
	schemeNGram = "ngram:"
	schemeGenAI = "genai:"
)

// Loader builds scorers from Config.WeightPath and caches them:
//
//	ngram:<pattern>  character LM rerank, blended with Personalization
//	genai:<model>    Gemini
//
// Any other value must name an existing file but has no backend.
type Loader struct {
	apiKey string
	group  singleflight.Group
	mu     sync.Mutex
	cache  map[string]Scorer
	log    zerolog.Logger
}

func NewLoader(apiKey string) *Loader {
	return &Loader{apiKey: apiKey, cache: make(map[string]Scorer), log: logger.With("zenzai")}
}

func cacheKey(cfg Config) string {
	key := fmt.Sprintf("%s|%g", cfg.WeightPath, cfg.LatticeWeight)
	if p := cfg.Personalization; p != nil {
		key += fmt.Sprintf("|%s|%s|%g", p.BaseLM, p.PersonalLM, p.Alpha)
	}
	return key
}

func (l *Loader) Scorer(ctx context.Context, cfg Config) (Scorer, error) {
	key := cacheKey(cfg)
	l.mu.Lock()
	s, ok := l.cache[key]
	l.mu.Unlock()
	if ok {
		return s, nil
	}
	v, err, _ := l.group.Do(key, func() (any, error) {
		l.mu.Lock()
		s, ok := l.cache[key]
		l.mu.Unlock()
		if ok {
			return s, nil
		}
		s, err := l.build(ctx, cfg)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.cache[key] = s
		l.mu.Unlock()
		l.log.Info().Str("weights", cfg.WeightPath).Msg("scorer ready")
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Scorer), nil
}

func (l *Loader) build(ctx context.Context, cfg Config) (Scorer, error) {
	switch {
	case strings.HasPrefix(cfg.WeightPath, schemeNGram):
		base, err := ngram.Load(strings.TrimPrefix(cfg.WeightPath, schemeNGram))
		if err != nil {
			return nil, err
		}
		return NGramScorer{LM: personalize(base, cfg.Personalization), LatticeWeight: cfg.LatticeWeight}, nil
	case strings.HasPrefix(cfg.WeightPath, schemeGenAI):
		return NewGenAIScorer(ctx, l.apiKey, strings.TrimPrefix(cfg.WeightPath, schemeGenAI))
	case cfg.WeightPath == "":
		return nil, fmt.Errorf("zenzai: no weight path")
	}
	if _, err := os.Stat(cfg.WeightPath); err != nil {
		return nil, fmt.Errorf("zenzai: weights: %w", err)
	}
	return nil, fmt.Errorf("%w %s", ErrNoBackend, cfg.WeightPath)
}

// personalize blends the personal model over base. Missing models leave
// base unchanged.
func personalize(base ngram.Scorer, p *Personalization) ngram.Scorer {
	if p == nil || p.PersonalLM == "" {
		return base
	}
	log := logger.With("zenzai")
	if p.BaseLM != "" {
		m, err := ngram.Load(p.BaseLM)
		if err != nil {
			log.Warn().Err(err).Msg("personalization base model unavailable")
		} else {
			base = m
		}
	}
	personal, err := ngram.Load(p.PersonalLM)
	if err != nil {
		log.Warn().Err(err).Msg("personal model unavailable")
		return base
	}
	if (p.N > 0 && personal.Order() != p.N) || (p.D > 0 && personal.Discount() != p.D) {
		log.Warn().Int("n", personal.Order()).Float64("d", personal.Discount()).Msg("personal model differs from configured n/d")
	}
	return ngram.Blend{Base: base, Personal: personal, Alpha: p.Alpha}
}
