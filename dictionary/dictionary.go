// Package dictionary stores reading to surface entries and answers exact,
// prefix and predictive lookups. A Store is built once from a resource
// directory and shared read-only by every session.
package dictionary

import (
	"errors"
	"iter"
	"maps"
	"slices"

	"kanakanji/kana"
	"kanakanji/model"
)

var (
	ErrMissingManifest = errors.New("dictionary: missing manifest")
	ErrChecksum        = errors.New("dictionary: checksum mismatch")
	ErrFormat          = errors.New("dictionary: unsupported format")
)

// Source is what conversion needs from a dictionary. Returned slices are
// shared and must not be modified.
type Source interface {
	LookupExact(reading string) []model.Entry
	// LookupPrefixes yields (rune length, entries) for every prefix of
	// reading that has entries, shortest first.
	LookupPrefixes(reading string) iter.Seq2[int, []model.Entry]
	Predict(prefix string, limit int) []model.Entry
	MaxReadingLength() int
}

// Index is an in-memory Source over a fixed entry set.
type Index struct {
	t *trie
}

// NewIndex copies entries, normalizing readings to hiragana.
func NewIndex(entries []model.Entry) *Index {
	es := make([]model.Entry, len(entries))
	for i, e := range entries {
		e.Reading = kana.ToHiragana(e.Reading)
		es[i] = e
	}
	slices.SortFunc(es, compareEntries)
	return &Index{t: newTrie(es)}
}

func (x *Index) LookupExact(reading string) []model.Entry { return x.t.exact(reading) }

func (x *Index) LookupPrefixes(reading string) iter.Seq2[int, []model.Entry] {
	return func(yield func(int, []model.Entry) bool) {
		x.t.prefixes(reading, yield)
	}
}

func (x *Index) Predict(prefix string, limit int) []model.Entry {
	return predict(x.t.extending(prefix), limit)
}

func (x *Index) MaxReadingLength() int { return x.t.maxLen }

func (x *Index) Len() int { return len(x.t.entries) }

// Entries returns the indexed entries in index order.
func (x *Index) Entries() []model.Entry { return slices.Clone(x.t.entries) }

type merged []Source

// Merge layers sources into one. Prefix results of equal length are
// concatenated in source order.
func Merge(sources ...Source) Source {
	var out merged
	for _, s := range sources {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

func (m merged) LookupExact(reading string) []model.Entry {
	var out []model.Entry
	for _, s := range m {
		out = append(out, s.LookupExact(reading)...)
	}
	return out
}

func (m merged) LookupPrefixes(reading string) iter.Seq2[int, []model.Entry] {
	return func(yield func(int, []model.Entry) bool) {
		byLen := make(map[int][]model.Entry)
		for _, s := range m {
			for n, es := range s.LookupPrefixes(reading) {
				byLen[n] = append(byLen[n], es...)
			}
		}
		for _, n := range slices.Sorted(maps.Keys(byLen)) {
			if !yield(n, byLen[n]) {
				return
			}
		}
	}
}

func (m merged) Predict(prefix string, limit int) []model.Entry {
	var out []model.Entry
	for _, s := range m {
		out = append(out, s.Predict(prefix, 0)...)
	}
	return predict(out, limit)
}

func (m merged) MaxReadingLength() int {
	n := 0
	for _, s := range m {
		n = max(n, s.MaxReadingLength())
	}
	return n
}
