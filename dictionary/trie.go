package dictionary

import (
	"cmp"
	"slices"
	"strings"
	"unicode/utf8"

	"kanakanji/model"
)

// node is one arena slot. Children are kept sorted by label; entries for
// the reading ending here are entries[lo:hi].
type node struct {
	labels []rune
	next   []int32
	lo, hi int32
}

// trie indexes a sorted entry slice by reading. It is immutable once built.
type trie struct {
	nodes   []node
	entries []model.Entry
	maxLen  int
}

func compareEntries(a, b model.Entry) int {
	return cmp.Or(
		strings.Compare(a.Reading, b.Reading),
		cmp.Compare(a.Cost, b.Cost),
		strings.Compare(a.Surface, b.Surface),
		cmp.Compare(a.LeftID, b.LeftID),
		cmp.Compare(a.RightID, b.RightID),
	)
}

// byCost orders predictions.
func byCost(a, b model.Entry) int {
	return cmp.Or(
		cmp.Compare(a.Cost, b.Cost),
		strings.Compare(a.Reading, b.Reading),
		strings.Compare(a.Surface, b.Surface),
	)
}

// newTrie builds the index. entries must already be sorted with
// compareEntries.
func newTrie(entries []model.Entry) *trie {
	t := &trie{nodes: []node{{}}, entries: entries}
	for i := 0; i < len(entries); {
		j := i + 1
		for j < len(entries) && entries[j].Reading == entries[i].Reading {
			j++
		}
		n := 0
		for _, r := range entries[i].Reading {
			n = t.insert(n, r)
		}
		t.nodes[n].lo, t.nodes[n].hi = int32(i), int32(j)
		t.maxLen = max(t.maxLen, utf8.RuneCountInString(entries[i].Reading))
		i = j
	}
	return t
}

func (t *trie) insert(n int, r rune) int {
	i, ok := slices.BinarySearch(t.nodes[n].labels, r)
	if ok {
		return int(t.nodes[n].next[i])
	}
	id := int32(len(t.nodes))
	t.nodes = append(t.nodes, node{})
	nd := &t.nodes[n]
	nd.labels = slices.Insert(nd.labels, i, r)
	nd.next = slices.Insert(nd.next, i, id)
	return int(id)
}

func (t *trie) child(n int, r rune) int {
	nd := &t.nodes[n]
	i, ok := slices.BinarySearch(nd.labels, r)
	if !ok {
		return -1
	}
	return int(nd.next[i])
}

func (t *trie) slice(n int) []model.Entry {
	nd := &t.nodes[n]
	if nd.hi <= nd.lo {
		return nil
	}
	return t.entries[nd.lo:nd.hi:nd.hi]
}

func (t *trie) exact(reading string) []model.Entry {
	n := 0
	for _, r := range reading {
		if n = t.child(n, r); n < 0 {
			return nil
		}
	}
	return t.slice(n)
}

// prefixes reports every prefix of reading that has entries, shortest
// first. It returns false if yield asked to stop.
func (t *trie) prefixes(reading string, yield func(int, []model.Entry) bool) bool {
	n, length := 0, 0
	for _, r := range reading {
		if n = t.child(n, r); n < 0 {
			return true
		}
		length++
		if es := t.slice(n); es != nil {
			if !yield(length, es) {
				return false
			}
		}
	}
	return true
}

// extending returns the entries whose reading strictly extends prefix.
// Sorted readings keep them contiguous.
func (t *trie) extending(prefix string) []model.Entry {
	lo, _ := slices.BinarySearchFunc(t.entries, prefix, func(e model.Entry, p string) int {
		return strings.Compare(e.Reading, p)
	})
	var out []model.Entry
	for _, e := range t.entries[lo:] {
		if !strings.HasPrefix(e.Reading, prefix) {
			break
		}
		if e.Reading != prefix {
			out = append(out, e)
		}
	}
	return out
}

// predict orders extending entries by cost and keeps at most limit.
func predict(out []model.Entry, limit int) []model.Entry {
	slices.SortFunc(out, byCost)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
