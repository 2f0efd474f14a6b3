package ngram

import (
	"context"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"kanakanji/apperr"
)

const DefaultMaxTokens = 64

type GenerateOptions struct {
	MaxTokens   int
	Sample      bool
	Temperature float64
	Seed        uint64
}

type Generation struct {
	Text    string
	Tokens  []string
	Elapsed time.Duration
}

// Generate extends prompt one token at a time until the end token or
// MaxTokens new tokens. Greedy decoding picks the cheapest token, the
// earlier vocabulary entry on ties.
func Generate(ctx context.Context, s Scorer, prompt string, opts GenerateOptions) (Generation, error) {
	start := time.Now()
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.Sample && opts.Temperature <= 0 {
		return Generation{}, apperr.Errorf(apperr.InvalidArgument, "ngram.Generate", "temperature must be positive, got %g", opts.Temperature)
	}
	var rng *rand.Rand
	if opts.Sample {
		rng = rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	}

	vocab := s.Vocabulary()
	history := Split(prompt)
	var generated []string
	costs := make([]float64, len(vocab))
	for len(generated) < opts.MaxTokens {
		if err := ctx.Err(); err != nil {
			return Generation{}, err
		}
		for i, tok := range vocab {
			if tok == BOS || tok == UNK {
				costs[i] = math.Inf(1)
				continue
			}
			costs[i] = s.TokenCost(history, tok)
		}
		var next int
		if opts.Sample {
			next = sample(rng, costs, opts.Temperature)
		} else {
			next = argmin(costs)
		}
		if next < 0 || vocab[next] == EOS {
			break
		}
		generated = append(generated, vocab[next])
		history = append(history, vocab[next])
	}
	return Generation{
		Text:    prompt + strings.Join(generated, ""),
		Tokens:  generated,
		Elapsed: time.Since(start),
	}, nil
}

func argmin(costs []float64) int {
	best := -1
	for i, c := range costs {
		if math.IsInf(c, 1) {
			continue
		}
		if best < 0 || c < costs[best] {
			best = i
		}
	}
	return best
}

// sample draws an index with weight p^(1/T), where p = 2^-cost.
func sample(rng *rand.Rand, costs []float64, temperature float64) int {
	weights := make([]float64, len(costs))
	total := 0.0
	for i, c := range costs {
		if math.IsInf(c, 1) {
			continue
		}
		weights[i] = math.Exp2(-c / temperature)
		total += weights[i]
	}
	if total == 0 {
		return argmin(costs)
	}
	x := rng.Float64() * total
	last := -1
	for i, w := range weights {
		if w == 0 {
			continue
		}
		last = i
		if x < w {
			return i
		}
		x -= w
	}
	return last
}
