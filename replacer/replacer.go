// Package replacer maps readings straight to fixed surfaces such as emoji.
package replacer

import (
	"context"
	"io"
	"os"
	"slices"
	"strings"

	"kanakanji/apperr"
	"kanakanji/ingest"
	"kanakanji/kana"
	"kanakanji/logger"
	"kanakanji/model"
)

// Replacer is read-only after Parse.
type Replacer struct {
	table map[string][]string
}

// Empty has no mappings.
func Empty() *Replacer { return &Replacer{table: map[string][]string{}} }

// Parse reads "reading<TAB>surface[<TAB>surface...]" lines. Lines starting
// with # are comments.
func Parse(ctx context.Context, r io.Reader) (*Replacer, error) {
	lines, err := ingest.ReadAll(ctx, r)
	if err != nil {
		return nil, apperr.New(apperr.LoadFailure, "replacer.Parse", err)
	}
	rp := Empty()
	for _, l := range lines {
		if strings.HasPrefix(l.Text, "#") {
			continue
		}
		fields := strings.Split(l.Text, "\t")
		if len(fields) < 2 {
			return nil, apperr.Errorf(apperr.LoadFailure, "replacer.Parse", "line %d: want reading and at least one surface", l.Line+1)
		}
		reading := kana.ToHiragana(strings.TrimSpace(fields[0]))
		for _, s := range fields[1:] {
			s = strings.TrimSpace(s)
			if s == "" || slices.Contains(rp.table[reading], s) {
				continue
			}
			rp.table[reading] = append(rp.table[reading], s)
		}
	}
	return rp, nil
}

func Load(path string) (*Replacer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperr.New(apperr.LoadFailure, "replacer.Load", err)
	}
	defer f.Close()
	rp, err := Parse(context.Background(), f)
	if err != nil {
		return nil, err
	}
	l := logger.With("replacer")
	l.Debug().Str("path", path).Int("readings", rp.Len()).Msg("replacer loaded")
	return rp, nil
}

// Replacements returns the surfaces of reading in file order. Katakana
// readings are matched as hiragana.
func (r *Replacer) Replacements(reading string) []model.Candidate {
	if r == nil {
		return nil
	}
	surfaces := r.table[kana.ToHiragana(reading)]
	out := make([]model.Candidate, len(surfaces))
	for i, s := range surfaces {
		out[i] = model.Candidate{
			Text:     s,
			Source:   model.SourceReplacer,
			Segments: []model.Segment{{Reading: reading, Surface: s, End: len([]rune(reading)), Tag: model.TagSpecial}},
		}
	}
	return out
}

// Len counts readings.
func (r *Replacer) Len() int {
	if r == nil {
		return 0
	}
	return len(r.table)
}

func (r *Replacer) IsEmpty() bool { return r.Len() == 0 }
