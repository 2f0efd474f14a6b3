package converter

import (
	"context"
	"strings"

	"kanakanji/dictionary"
	"kanakanji/kana"
	"kanakanji/lattice"
	"kanakanji/model"
	"kanakanji/special"
)

type NeuralInfo struct {
	Enabled   bool `json:"enabled"`
	Calls     int  `json:"calls"`
	Converged bool `json:"converged"`
	Degraded  bool `json:"degraded"`
}

// Result is the ranked answer to one request. Candidates never exceed the
// requested N-best size and their costs never decrease.
type Result struct {
	Reading     string            `json:"reading"`
	Candidates  []model.Candidate `json:"candidates"`
	Predictions []model.Candidate `json:"predictions,omitempty"`
	Neural      NeuralInfo        `json:"neural"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Top returns the best candidate.
func (r Result) Top() (model.Candidate, bool) {
	if len(r.Candidates) == 0 {
		return model.Candidate{}, false
	}
	return r.Candidates[0], true
}

type request struct {
	reading string
	raw     string
}

func (e *Engine) assemble(ctx context.Context, lat *lattice.Lattice, src dictionary.Source, req request, opts Options) (Result, error) {
	res := Result{Reading: req.reading, Metadata: opts.Metadata}
	if req.reading == "" {
		return res, nil
	}

	main := lat.Candidates()
	if opts.Zenzai.Enabled {
		res.Neural.Enabled = true
		if e.reranker == nil {
			res.Neural.Degraded = true
		} else {
			out := e.reranker.Rerank(ctx, opts.Zenzai, req.reading, main)
			main = out.Candidates
			res.Neural.Calls = out.Calls
			res.Neural.Converged = out.Converged
			res.Neural.Degraded = out.Degraded
		}
	}

	var head, tail []model.Candidate
	reps := e.replacerFor(opts).Replacements(req.reading)
	if opts.ReplacerPreferred {
		head = append(head, reps...)
	} else {
		tail = append(tail, reps...)
	}
	if opts.KeyboardLanguage == KeyboardEnglish && kana.IsASCIIWord(req.raw) {
		head = append(head, english(req.raw))
	}

	providers, err := special.ByName(opts.SpecialProviders)
	if err != nil {
		return Result{}, err
	}
	in := special.Input{Reading: req.reading, Raw: req.raw, Metadata: opts.Metadata}
	for _, p := range providers {
		tail = append(tail, p.Candidates(in)...)
	}
	tail = append(tail, scriptCandidates(req, opts)...)

	res.Candidates = merge(append(head, main...), tail, opts.NBest)
	if opts.JapanesePrediction || opts.EnglishPrediction {
		res.Predictions = predictions(lat, src, req, opts)
	}
	return res, nil
}

func english(raw string) model.Candidate {
	return model.Candidate{
		Text:     raw,
		Source:   model.SourceEnglish,
		Segments: []model.Segment{{Reading: raw, Surface: raw, End: len(raw)}},
	}
}

func scriptCandidate(reading, text string) model.Candidate {
	return model.Candidate{
		Text:     text,
		Source:   model.SourceScript,
		Segments: []model.Segment{{Reading: reading, Surface: text, End: len([]rune(reading))}},
	}
}

// scriptCandidates are the reading itself in other scripts and widths.
func scriptCandidates(req request, opts Options) []model.Candidate {
	var out []model.Candidate
	if kana.IsAllKana(req.reading) {
		out = append(out,
			scriptCandidate(req.reading, kana.ToHiragana(req.reading)),
			scriptCandidate(req.reading, kana.ToKatakana(req.reading)))
		if opts.HalfWidthKanaCandidate {
			out = append(out, scriptCandidate(req.reading, kana.HalfWidth(req.reading)))
		}
	}
	if kana.IsASCIIWord(req.raw) {
		if opts.EnglishCandidateInRoman && opts.KeyboardLanguage == KeyboardJapanese {
			out = append(out, english(req.raw))
		}
		if opts.FullWidthRomanCandidate {
			out = append(out, scriptCandidate(req.reading, kana.FullWidth(req.raw)))
		}
	}
	return out
}

func dedupe(lists ...[]model.Candidate) []model.Candidate {
	seen := make(map[string]bool)
	var out []model.Candidate
	for _, l := range lists {
		for _, c := range l {
			if c.Text == "" || seen[c.Text] {
				continue
			}
			seen[c.Text] = true
			out = append(out, c)
		}
	}
	return out
}

// merge keeps main first and reserves up to n/2 trailing slots for extra,
// then clamps costs so they never decrease.
func merge(main, extra []model.Candidate, n int) []model.Candidate {
	main = dedupe(main)
	all := dedupe(main, extra)
	extra = all[len(main):]

	reserve := min(len(extra), n/2)
	keep := min(len(main), n-reserve)
	out := append(main[:keep:keep], extra[:min(len(extra), n-keep)]...)
	for i := 1; i < len(out); i++ {
		out[i].Cost = max(out[i].Cost, out[i-1].Cost)
	}
	return out
}

const predictionLimit = 10

// predictions complete the last segment of the best conversion with
// dictionary words whose reading extends it, and the whole reading with
// words that extend it.
func predictions(lat *lattice.Lattice, src dictionary.Source, req request, opts Options) []model.Candidate {
	var out []model.Candidate
	if opts.JapanesePrediction {
		for _, e := range src.Predict(req.reading, predictionLimit) {
			out = append(out, predicted("", e, 0, float64(e.Cost)))
		}
		best := lat.Candidates()
		if len(best) > 0 && len(best[0].Segments) > 1 {
			segs := best[0].Segments
			last := segs[len(segs)-1]
			if prefix, ok := lat.BestPrefix(last.Start); ok {
				for _, e := range src.Predict(last.Reading, predictionLimit) {
					out = append(out, predicted(prefix.Text, e, last.Start, prefix.Cost+float64(e.Cost)))
				}
			}
		}
	}
	if opts.EnglishPrediction && kana.IsASCIIWord(req.raw) {
		for _, e := range src.Predict(strings.ToLower(req.raw), predictionLimit) {
			c := predicted("", e, 0, float64(e.Cost))
			c.Source = model.SourceEnglish
			out = append(out, c)
		}
	}
	out = dedupe(out)
	if len(out) > opts.NBest {
		out = out[:opts.NBest]
	}
	return out
}

func predicted(prefix string, e model.Entry, start int, cost float64) model.Candidate {
	return model.Candidate{
		Text:     prefix + e.Surface,
		Cost:     cost,
		Source:   model.SourcePrediction,
		Segments: []model.Segment{{Reading: e.Reading, Surface: e.Surface, Start: start, End: start + len([]rune(e.Reading)), Tag: e.Tag}},
	}
}
