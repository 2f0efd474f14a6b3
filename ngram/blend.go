package ngram

import "unicode/utf8"

// Blend mixes a base model with an optional personalized one:
// Alpha*cost_personal + (1-Alpha)*cost_base.
type Blend struct {
	Base     Scorer
	Personal Scorer
	Alpha    float64
}

func (b Blend) Order() int {
	if b.Personal == nil {
		return b.Base.Order()
	}
	return max(b.Base.Order(), b.Personal.Order())
}

func (b Blend) TokenCost(history []string, next string) float64 {
	base := b.Base.TokenCost(history, next)
	if b.Personal == nil {
		return base
	}
	return b.Alpha*b.Personal.TokenCost(history, next) + (1-b.Alpha)*base
}

// Vocabulary is the base vocabulary followed by personal-only tokens.
func (b Blend) Vocabulary() []string {
	out := b.Base.Vocabulary()
	if b.Personal == nil {
		return out
	}
	seen := make(map[string]bool, len(out))
	for _, t := range out {
		seen[t] = true
	}
	for _, t := range b.Personal.Vocabulary() {
		if !seen[t] {
			out = append(out, t)
		}
	}
	return out
}

// LatticeLM scores lattice surfaces character by character.
type LatticeLM struct {
	Scorer Scorer
}

// tail returns the last n runes of s as tokens.
func tail(s string, n int) []string {
	out := make([]string, n)
	i := n
	for i > 0 && s != "" {
		r, size := utf8.DecodeLastRuneInString(s)
		i--
		out[i] = string(r)
		s = s[:len(s)-size]
	}
	return out[i:]
}

func (l LatticeLM) Cost(history, next string) float64 {
	n := l.Scorer.Order() - 1
	hist := tail(history, n)
	total := 0.0
	for _, r := range next {
		tok := string(r)
		total += l.Scorer.TokenCost(hist, tok)
		hist = append(hist, tok)
		if len(hist) > n {
			hist = hist[1:]
		}
	}
	return total
}

func (l LatticeLM) EndCost(history string) float64 {
	return l.Scorer.TokenCost(tail(history, l.Scorer.Order()-1), EOS)
}
