package inputstyle

import "unicode/utf8"

// ElemKind distinguishes the element types of a rule key or value.
type ElemKind uint8

const (
	ElemRune ElemKind = iota
	// ElemAny matches any single rune; in a value it repeats the matched rune.
	ElemAny
	ElemSeparator
	// ElemShift is a key pressed with shift held.
	ElemShift
)

// Elem is one element of a rule key or value.
type Elem struct {
	Kind ElemKind
	R    rune
}

func R(r rune) Elem       { return Elem{Kind: ElemRune, R: r} }
func Shift(r rune) Elem   { return Elem{Kind: ElemShift, R: r} }
func Any() Elem           { return Elem{Kind: ElemAny} }
func Separator() Elem     { return Elem{Kind: ElemSeparator} }
func Runes(s string) []Elem {
	out := make([]Elem, 0, utf8.RuneCountInString(s))
	for _, r := range s {
		out = append(out, R(r))
	}
	return out
}

// Rule maps a key sequence to the output that replaces it.
type Rule struct {
	Key   []Elem
	Value []Elem
}

type revNode struct {
	children map[Elem]*revNode
	any      *revNode
	value    []Elem
	terminal bool
}

type fwdNode struct {
	children map[Elem]*fwdNode
	any      *fwdNode
}

// Table is an immutable key→output mapping applied by longest suffix match.
type Table struct {
	name   string
	rules  []Rule
	rev    *revNode
	fwd    *fwdNode
	maxKey int
}

// NewTable builds a table. Later rules with an identical key replace
// earlier ones; use CheckFormat to report such duplicates from files.
func NewTable(name string, rules []Rule) *Table {
	t := &Table{name: name, rev: &revNode{}, fwd: &fwdNode{}}
	index := make(map[string]int, len(rules))
	for _, rule := range rules {
		if len(rule.Key) == 0 {
			continue
		}
		k := keyString(rule.Key)
		if i, ok := index[k]; ok {
			t.rules[i] = rule
		} else {
			index[k] = len(t.rules)
			t.rules = append(t.rules, rule)
		}
	}
	for _, rule := range t.rules {
		t.insert(rule)
	}
	return t
}

func keyString(key []Elem) string {
	b := make([]byte, 0, len(key)*5)
	for _, e := range key {
		b = append(b, byte(e.Kind))
		b = utf8.AppendRune(b, e.R)
	}
	return string(b)
}

func (t *Table) insert(rule Rule) {
	n := t.rev
	for i := len(rule.Key) - 1; i >= 0; i-- {
		e := rule.Key[i]
		if e.Kind == ElemAny {
			if n.any == nil {
				n.any = &revNode{}
			}
			n = n.any
			continue
		}
		if n.children == nil {
			n.children = make(map[Elem]*revNode)
		}
		next, ok := n.children[e]
		if !ok {
			next = &revNode{}
			n.children[e] = next
		}
		n = next
	}
	n.value = rule.Value
	n.terminal = true
	if len(rule.Key) > t.maxKey {
		t.maxKey = len(rule.Key)
	}

	f := t.fwd
	for _, e := range rule.Key {
		if e.Kind == ElemAny {
			if f.any == nil {
				f.any = &fwdNode{}
			}
			f = f.any
			continue
		}
		if f.children == nil {
			f.children = make(map[Elem]*fwdNode)
		}
		next, ok := f.children[e]
		if !ok {
			next = &fwdNode{}
			f.children[e] = next
		}
		f = next
	}
}

func (t *Table) Name() string  { return t.name }
func (t *Table) Rules() []Rule { return t.rules }
func (t *Table) Len() int      { return len(t.rules) }

type match struct {
	depth   int
	value   []Elem
	anyRune rune
	ok      bool
}

// search walks the reversed trie over buf[:i] from the back. Exact children
// are preferred over the wildcard when both reach the same depth.
func (n *revNode) search(buf []rune, i, depth int, anyRune rune) match {
	var best match
	if n.terminal {
		best = match{depth: depth, value: n.value, anyRune: anyRune, ok: true}
	}
	if i == 0 {
		return best
	}
	r := buf[i-1]
	if child, ok := n.children[R(r)]; ok {
		if m := child.search(buf, i-1, depth+1, anyRune); m.ok && m.depth > best.depth {
			best = m
		}
	}
	if n.any != nil {
		ar := anyRune
		if ar == 0 {
			ar = r
		}
		if m := n.any.search(buf, i-1, depth+1, ar); m.ok && m.depth > best.depth {
			best = m
		}
	}
	return best
}

func (t *Table) lookup(buf []rune, added Elem) match {
	var best match
	if child, ok := t.rev.children[added]; ok {
		best = child.search(buf, len(buf), 1, 0)
	}
	if added.Kind == ElemRune && t.rev.any != nil {
		if m := t.rev.any.search(buf, len(buf), 1, added.R); m.ok && (!best.ok || m.depth > best.depth) {
			best = m
		}
	}
	return best
}

// Apply returns buf after adding one key element. The longest rule whose
// key is a suffix of buf+added replaces that suffix. Without a match a rune
// key is appended as is and a separator or shift key adds nothing.
func (t *Table) Apply(buf []rune, added Elem) []rune {
	m := t.lookup(buf, added)
	if !m.ok {
		if added.Kind == ElemRune {
			return append(buf, added.R)
		}
		if added.Kind == ElemShift {
			return append(buf, added.R)
		}
		return buf
	}
	out := buf[:len(buf)-(m.depth-1)]
	for _, e := range m.value {
		switch e.Kind {
		case ElemRune, ElemShift:
			out = append(out, e.R)
		case ElemAny:
			if m.anyRune != 0 {
				out = append(out, m.anyRune)
			}
		}
	}
	return out
}

// Pending reports whether some trailing part of buf is a proper prefix of a
// key, so a following key may still rewrite it.
func (t *Table) Pending(buf []rune) bool {
	limit := min(len(buf), t.maxKey-1)
	for l := 1; l <= limit; l++ {
		if t.fwd.extends(buf[len(buf)-l:]) {
			return true
		}
	}
	return false
}

func (f *fwdNode) extends(s []rune) bool {
	if len(s) == 0 {
		return len(f.children) > 0 || f.any != nil
	}
	if child, ok := f.children[R(s[0])]; ok && child.extends(s[1:]) {
		return true
	}
	return f.any != nil && f.any.extends(s[1:])
}
