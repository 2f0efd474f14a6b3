// Package lattice builds the segmentation graph over a reading and finds
// the N cheapest conversions with a k-best Viterbi pass.
package lattice

import (
	"cmp"
	"fmt"
	"iter"
	"slices"
	"strings"

	"kanakanji/model"
)

// Source supplies dictionary matches.
type Source interface {
	LookupPrefixes(reading string) iter.Seq2[int, []model.Entry]
	MaxReadingLength() int
}

// Connector scores adjacent entries by the right ID of the first and the
// left ID of the second. ID 0 is the sentence boundary.
type Connector interface {
	Connection(right, left uint16) float64
}

// LanguageModel scores a surface given everything converted before it.
type LanguageModel interface {
	Cost(history, next string) float64
	EndCost(history string) float64
}

type LMMode int

const (
	// LMOff uses dictionary and connection costs only.
	LMOff LMMode = iota
	// LMAdd adds the weighted model cost to the dictionary cost.
	LMAdd
	// LMReplace uses the weighted model cost instead of dictionary and
	// connection costs. Penalties still apply.
	LMReplace
)

func (m LMMode) String() string {
	switch m {
	case LMAdd:
		return "add"
	case LMReplace:
		return "replace"
	default:
		return "off"
	}
}

// ParseLMMode is the inverse of LMMode.String. The empty string is LMOff.
func ParseLMMode(s string) (LMMode, error) {
	switch strings.ToLower(s) {
	case "", "off":
		return LMOff, nil
	case "add":
		return LMAdd, nil
	case "replace":
		return LMReplace, nil
	}
	return LMOff, fmt.Errorf("lattice: unknown LM mode %q", s)
}

type Typo struct {
	Enabled bool
	Penalty float64
}

const (
	DefaultNBest           = 10
	DefaultFallbackPenalty = 20
	DefaultTypoPenalty     = 6
)

type Config struct {
	NBest int
	// Beam is the number of partial paths kept per node. It defaults to
	// twice NBest.
	Beam            int
	FallbackPenalty float64
	Connector       Connector
	LM              LanguageModel
	LMMode          LMMode
	LMWeight        float64
	Typo            Typo
}

func (c Config) withDefaults() Config {
	if c.NBest <= 0 {
		c.NBest = DefaultNBest
	}
	if c.Beam < c.NBest {
		c.Beam = 2 * c.NBest
	}
	if c.FallbackPenalty <= 0 {
		c.FallbackPenalty = DefaultFallbackPenalty
	}
	if c.Typo.Penalty <= 0 {
		c.Typo.Penalty = DefaultTypoPenalty
	}
	if c.LM == nil {
		c.LMMode = LMOff
	}
	if c.LMWeight == 0 {
		c.LMWeight = 1
	}
	return c
}

// Edge covers runes [Start, End) of the reading. Reading is the covered
// input, which differs from Entry.Reading for typo edges.
type Edge struct {
	Start, End int
	Reading    string
	Entry      model.Entry
	Penalty    float64
}

func compareEdges(a, b *Edge) int {
	return cmp.Or(
		cmp.Compare(a.Start, b.Start),
		strings.Compare(a.Entry.Surface, b.Entry.Surface),
		cmp.Compare(a.Entry.Cost, b.Entry.Cost),
		cmp.Compare(a.Entry.LeftID, b.Entry.LeftID),
		cmp.Compare(a.Entry.RightID, b.Entry.RightID),
		cmp.Compare(a.Penalty, b.Penalty),
		strings.Compare(a.Entry.Reading, b.Entry.Reading),
	)
}

// path is a persistent list of edges from node 0.
type path struct {
	prev  *path
	edge  *Edge
	cost  float64
	edges int
	text  string
}

func (p *path) right() uint16 {
	if p.edge == nil {
		return model.ClassBoundary
	}
	return p.edge.Entry.RightID
}

func comparePaths(a, b *path) int {
	return cmp.Or(
		cmp.Compare(a.cost, b.cost),
		cmp.Compare(a.edges, b.edges),
		strings.Compare(a.text, b.text),
		cmp.Compare(a.right(), b.right()),
	)
}

type node struct {
	edges []*Edge
	best  []*path
}

// Lattice is the search state of one composing buffer. It is not safe for
// concurrent use.
type Lattice struct {
	src   Source
	cfg   Config
	runes []rune
	nodes []node
}

func New(src Source, cfg Config) *Lattice {
	return &Lattice{src: src, cfg: cfg.withDefaults()}
}

func (l *Lattice) Config() Config { return l.cfg }

func (l *Lattice) Reading() string { return string(l.runes) }

// Reset drops every cached node.
func (l *Lattice) Reset() {
	l.runes = nil
	l.nodes = nil
}

func commonPrefix(a, b []rune) int {
	n := min(len(a), len(b))
	for i := range n {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

// Update moves the lattice to reading. Nodes up to the common prefix with
// the previous reading are kept; every later node is rebuilt. It returns
// the number of kept positions after node 0.
func (l *Lattice) Update(reading string) int {
	rs := []rune(reading)
	p := commonPrefix(l.runes, rs)
	if len(l.nodes) == 0 {
		l.nodes = []node{{best: []*path{{}}}}
		p = 0
	}
	l.nodes = l.nodes[:p+1]
	l.runes = rs
	for range len(rs) - p {
		l.nodes = append(l.nodes, node{})
	}
	l.addEdges(p)
	for j := p + 1; j <= len(rs); j++ {
		slices.SortFunc(l.nodes[j].edges, compareEdges)
		l.nodes[j].best = l.relax(j)
	}
	return p
}

func (l *Lattice) maxLen() int {
	return max(1, l.src.MaxReadingLength())
}

// addEdges adds every edge that ends after position p.
func (l *Lattice) addEdges(p int) {
	n := len(l.runes)
	maxLen := l.maxLen()
	for s := max(0, p+1-maxLen); s < n; s++ {
		window := string(l.runes[s:min(s+maxLen, n)])
		for length, entries := range l.src.LookupPrefixes(window) {
			end := s + length
			if end <= p {
				continue
			}
			covered := string(l.runes[s:end])
			for _, e := range entries {
				l.nodes[end].edges = append(l.nodes[end].edges, &Edge{Start: s, End: end, Reading: covered, Entry: e})
			}
		}
		if l.cfg.Typo.Enabled {
			l.addTypoEdges(s, p, maxLen)
		}
	}
	for s := p; s < n; s++ {
		r := string(l.runes[s])
		l.nodes[s+1].edges = append(l.nodes[s+1].edges, &Edge{
			Start:   s,
			End:     s + 1,
			Reading: r,
			Entry: model.Entry{
				Reading: r,
				Surface: r,
				LeftID:  model.ClassOther,
				RightID: model.ClassOther,
				Tag:     model.TagFallback,
			},
			Penalty: l.cfg.FallbackPenalty,
		})
	}
}

// addTypoEdges looks up every one-rune substitution of the window at s and
// keeps matches that cover the substituted rune and end after p.
func (l *Lattice) addTypoEdges(s, p, maxLen int) {
	n := len(l.runes)
	end := min(s+maxLen, n)
	window := slices.Clone(l.runes[s:end])
	for i := range window {
		orig := window[i]
		for _, alt := range confusions[orig] {
			window[i] = alt
			for length, entries := range l.src.LookupPrefixes(string(window)) {
				if length <= i || s+length <= p {
					continue
				}
				covered := string(l.runes[s : s+length])
				for _, e := range entries {
					e.Tag = model.TagTypo
					l.nodes[s+length].edges = append(l.nodes[s+length].edges, &Edge{
						Start:   s,
						End:     s + length,
						Reading: covered,
						Entry:   e,
						Penalty: l.cfg.Typo.Penalty,
					})
				}
			}
		}
		window[i] = orig
	}
}

func (l *Lattice) connection(right, left uint16) float64 {
	if l.cfg.Connector == nil {
		return 0
	}
	return l.cfg.Connector.Connection(right, left)
}

func (l *Lattice) step(p *path, e *Edge) float64 {
	switch l.cfg.LMMode {
	case LMAdd:
		return float64(e.Entry.Cost) + e.Penalty + l.connection(p.right(), e.Entry.LeftID) +
			l.cfg.LMWeight*l.cfg.LM.Cost(p.text, e.Entry.Surface)
	case LMReplace:
		return e.Penalty + l.cfg.LMWeight*l.cfg.LM.Cost(p.text, e.Entry.Surface)
	default:
		return float64(e.Entry.Cost) + e.Penalty + l.connection(p.right(), e.Entry.LeftID)
	}
}

// relax computes the k best paths ending at node j.
func (l *Lattice) relax(j int) []*path {
	var cands []*path
	for _, e := range l.nodes[j].edges {
		for _, p := range l.nodes[e.Start].best {
			cands = append(cands, &path{
				prev:  p,
				edge:  e,
				cost:  p.cost + l.step(p, e),
				edges: p.edges + 1,
				text:  p.text + e.Entry.Surface,
			})
		}
	}
	return keepBest(cands, l.cfg.Beam, func(p *path) string {
		return p.text + "\x00" + string(rune(p.right()))
	})
}

func keepBest(cands []*path, k int, key func(*path) string) []*path {
	slices.SortStableFunc(cands, comparePaths)
	seen := make(map[string]bool, len(cands))
	out := cands[:0]
	for _, c := range cands {
		kk := key(c)
		if seen[kk] {
			continue
		}
		seen[kk] = true
		out = append(out, c)
		if len(out) == k {
			break
		}
	}
	return slices.Clip(out)
}

func (l *Lattice) finish(p *path) *path {
	end := 0.0
	switch l.cfg.LMMode {
	case LMAdd:
		end = l.connection(p.right(), model.ClassBoundary) + l.cfg.LMWeight*l.cfg.LM.EndCost(p.text)
	case LMReplace:
		end = l.cfg.LMWeight * l.cfg.LM.EndCost(p.text)
	default:
		end = l.connection(p.right(), model.ClassBoundary)
	}
	c := *p
	c.cost += end
	return &c
}

func toCandidate(p *path) model.Candidate {
	var segs []model.Segment
	for q := p; q != nil && q.edge != nil; q = q.prev {
		e := q.edge
		segs = append(segs, model.Segment{
			Reading: e.Reading,
			Surface: e.Entry.Surface,
			Start:   e.Start,
			End:     e.End,
			Tag:     e.Entry.Tag,
		})
	}
	slices.Reverse(segs)
	return model.Candidate{Text: p.text, Cost: p.cost, Segments: segs, Source: model.SourceLattice}
}

// Candidates returns up to NBest distinct surfaces, cheapest first.
func (l *Lattice) Candidates() []model.Candidate {
	if len(l.runes) == 0 {
		return nil
	}
	last := l.nodes[len(l.runes)].best
	finished := make([]*path, len(last))
	for i, p := range last {
		finished[i] = l.finish(p)
	}
	finished = keepBest(finished, l.cfg.NBest, func(p *path) string { return p.text })
	out := make([]model.Candidate, len(finished))
	for i, p := range finished {
		out[i] = toCandidate(p)
	}
	return out
}

// BestPrefix returns the cheapest path covering the first j runes, without
// end costs.
func (l *Lattice) BestPrefix(j int) (model.Candidate, bool) {
	if j <= 0 || j >= len(l.nodes) || len(l.nodes[j].best) == 0 {
		return model.Candidate{}, false
	}
	return toCandidate(l.nodes[j].best[0]), true
}

// Edges returns the edges ending at node j.
func (l *Lattice) Edges(j int) []Edge {
	if j <= 0 || j >= len(l.nodes) {
		return nil
	}
	out := make([]Edge, len(l.nodes[j].edges))
	for i, e := range l.nodes[j].edges {
		out[i] = *e
	}
	return out
}

// Build is a one-shot conversion of reading.
func Build(src Source, cfg Config, reading string) []model.Candidate {
	l := New(src, cfg)
	l.Update(reading)
	return l.Candidates()
}
