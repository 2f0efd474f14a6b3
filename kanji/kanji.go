// Package kanji reads per-character readings from KANJIDIC2 and aligns
// readings with kanji surfaces.
package kanji

import (
	"encoding/xml"
	"errors"
	"io"
	"os"
	"slices"
	"strings"
	"unicode/utf8"

	"kanakanji/apperr"
	"kanakanji/kana"
	"kanakanji/logger"
)

// Readings maps a kanji to its on and kun readings in hiragana.
type Readings map[rune][]string

type kanjidic2Kanji struct {
	Literal        string `xml:"literal"`
	ReadingMeaning struct {
		RMGroup []struct {
			Reading []struct {
				Value string `xml:",chardata"`
				Type  string `xml:"r_type,attr"`
			} `xml:"reading"`
		} `xml:"rmgroup"`
	} `xml:"reading_meaning"`
}

// normalize turns a KANJIDIC2 reading such as "あき.らか" or "-び" into the
// part written with the kanji itself.
func normalize(r string) string {
	r = strings.Trim(r, "-")
	if stem, _, ok := strings.Cut(r, "."); ok {
		r = stem
	}
	return kana.ToHiragana(r)
}

// Parse decodes <character> elements from a KANJIDIC2 document.
func Parse(r io.Reader) (Readings, error) {
	out := make(Readings)
	d := xml.NewDecoder(r)
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperr.New(apperr.LoadFailure, "kanji.Parse", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "character" {
			continue
		}
		var k kanjidic2Kanji
		if err := d.DecodeElement(&k, &se); err != nil {
			return nil, apperr.New(apperr.LoadFailure, "kanji.Parse", err)
		}
		if utf8.RuneCountInString(k.Literal) != 1 {
			continue
		}
		lit, _ := utf8.DecodeRuneInString(k.Literal)
		var readings []string
		for _, group := range k.ReadingMeaning.RMGroup {
			for _, rd := range group.Reading {
				if rd.Type != "ja_on" && rd.Type != "ja_kun" {
					continue
				}
				if n := normalize(rd.Value); n != "" && !slices.Contains(readings, n) {
					readings = append(readings, n)
				}
			}
		}
		if len(readings) > 0 {
			out[lit] = readings
		}
	}
	return out, nil
}

// LoadKanjidic2 reads a KANJIDIC2 file.
func LoadKanjidic2(path string) (Readings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperr.New(apperr.LoadFailure, "kanji.LoadKanjidic2", err)
	}
	defer f.Close()
	readings, err := Parse(f)
	if err != nil {
		return nil, err
	}
	l := logger.With("kanji")
	l.Info().Str("path", path).Int("kanji", len(readings)).Msg("kanjidic2 loaded")
	return readings, nil
}

// Pair is one furigana unit: a surface chunk and the reading over it. Kana
// chunks carry their own text as reading.
type Pair struct {
	Surface string `json:"surface"`
	Reading string `json:"reading"`
}

// Align splits reading over the kanji of surface. For each kanji the
// longest dictionary reading that matches is taken; a trailing kanji with
// no match absorbs the rest of the reading.
func (rd Readings) Align(surface, reading string) []Pair {
	sr := []rune(surface)
	rr := []rune(kana.ToHiragana(reading))
	var out []Pair
	k := 0
	for j, s := range sr {
		if !kana.IsKanji(s) {
			out = append(out, Pair{Surface: string(s), Reading: string(s)})
			if k < len(rr) && rr[k] == []rune(kana.ToHiragana(string(s)))[0] {
				k++
			}
			continue
		}
		best := 0
		for _, cand := range rd[s] {
			cr := []rune(cand)
			if len(cr) > best && k+len(cr) <= len(rr) && slices.Equal(rr[k:k+len(cr)], cr) {
				best = len(cr)
			}
		}
		if best == 0 && lastKanji(sr[j+1:]) {
			best = len(rr) - k
		}
		out = append(out, Pair{Surface: string(s), Reading: string(rr[k : k+best])})
		k += best
	}
	if k < len(rr) && len(out) > 0 {
		out[len(out)-1].Reading += string(rr[k:])
	}
	return out
}

func lastKanji(rest []rune) bool {
	return !slices.ContainsFunc(rest, kana.IsKanji)
}

// Bracketed renders kanji readings in brackets and keeps kana as is, for
// example "[は]が[いた]い".
func Bracketed(pairs []Pair) string {
	var b strings.Builder
	for _, p := range pairs {
		r, _ := utf8.DecodeRuneInString(p.Surface)
		if kana.IsKanji(r) {
			b.WriteString("[" + p.Reading + "]")
			continue
		}
		b.WriteString(p.Surface)
	}
	return b.String()
}
