// Package composing holds the cursor-addressable buffer of typed keys.
package composing

import (
	"slices"
	"unicode"
	"unicode/utf8"

	"kanakanji/apperr"
	"kanakanji/inputstyle"
)

// Element is one typed key and the style it was typed in. A separator
// element ends the style group before it and produces no text.
type Element struct {
	Key       inputstyle.Key   `json:"key"`
	Style     inputstyle.Style `json:"style"`
	Separator bool             `json:"separator,omitempty"`
}

// Text is the composing buffer of one session. The phonetic text is always
// recomputed from the elements, never edited directly. The cursor counts
// phonetic runes. Text is not safe for concurrent use.
type Text struct {
	styles *inputstyle.Manager
	elems  []Element
	phon   []rune
	incomp bool
	cursor int
}

func New(styles *inputstyle.Manager) *Text {
	if styles == nil {
		styles = inputstyle.NewManager()
	}
	return &Text{styles: styles}
}

func (t *Text) Phonetic() string { return string(t.phon) }

func (t *Text) PhoneticUpToCursor() string { return string(t.phon[:t.cursor]) }

func (t *Text) Cursor() int { return t.cursor }

func (t *Text) Len() int { return len(t.phon) }

func (t *Text) IsEmpty() bool { return len(t.elems) == 0 }

// Incomplete reports whether the trailing keys await a continuation.
func (t *Text) Incomplete() bool { return t.incomp }

func (t *Text) Elements() []Element { return slices.Clone(t.elems) }

func (t *Text) Clone() *Text {
	c := *t
	c.elems = slices.Clone(t.elems)
	c.phon = slices.Clone(t.phon)
	return &c
}

func (t *Text) Reset() {
	t.elems = nil
	t.phon = nil
	t.incomp = false
	t.cursor = 0
}

// RawInput returns the typed keys of non-separator elements.
func (t *Text) RawInput() string {
	out := make([]rune, 0, len(t.elems))
	for _, e := range t.elems {
		if !e.Separator {
			out = append(out, e.Key.Rune)
		}
	}
	return string(out)
}

func (t *Text) fold(elems []Element) ([]rune, bool) {
	var (
		out        []rune
		group      []rune
		resolver   inputstyle.Resolver
		style      inputstyle.Style
		open       bool
		incomplete bool
	)
	for _, e := range elems {
		if e.Separator {
			if open {
				out = append(out, resolver.Close(group)...)
				group, open = nil, false
			}
			incomplete = false
			continue
		}
		if !open || e.Style != style {
			out = append(out, group...)
			r, err := t.styles.Resolver(e.Style)
			if err != nil {
				r, _ = t.styles.Resolver(inputstyle.Direct)
			}
			resolver, style, group, open = r, e.Style, nil, true
		}
		res := resolver.Resolve(group, e.Key)
		group, incomplete = res.Text, res.Incomplete
	}
	return append(out, group...), incomplete
}

func (t *Text) refresh() {
	t.phon, t.incomp = t.fold(t.elems)
	t.cursor = min(t.cursor, len(t.phon))
}

func equalRunes(a, b []rune) bool {
	return slices.Equal(a, b)
}

// boundary returns the smallest element index k such that the elements
// before k produce exactly the first p phonetic runes and the elements
// from k produce the rest.
func (t *Text) boundary(p int) (int, bool) {
	for k := 0; k <= len(t.elems); k++ {
		head, _ := t.fold(t.elems[:k])
		if !equalRunes(head, t.phon[:p]) {
			continue
		}
		tail, _ := t.fold(t.elems[k:])
		if equalRunes(tail, t.phon[p:]) {
			return k, true
		}
	}
	return 0, false
}

// freeze replaces every element with one direct element per phonetic rune.
func (t *Text) freeze(text []rune) {
	elems := make([]Element, len(text))
	for i, r := range text {
		elems[i] = Element{Key: inputstyle.Key{Rune: r}, Style: inputstyle.Direct}
	}
	t.elems = elems
	t.refresh()
}

// boundaries returns element indexes for phonetic positions p and q,
// freezing the buffer first when either has no clean boundary.
func (t *Text) boundaries(p, q int) (int, int) {
	kp, okp := t.boundary(p)
	kq, okq := t.boundary(q)
	if okp && okq && kp <= kq {
		return kp, kq
	}
	t.freeze(t.phon)
	return p, q
}

func validate(token string) error {
	const op = "composing.Insert"
	switch {
	case token == "":
		return apperr.Errorf(apperr.InputRejected, op, "empty token")
	case !utf8.ValidString(token):
		return apperr.Errorf(apperr.InputRejected, op, "invalid utf-8 %q", token)
	}
	for _, r := range token {
		if unicode.IsControl(r) {
			return apperr.Errorf(apperr.InputRejected, op, "control character %U", r)
		}
	}
	return nil
}

// Insert types token at the cursor. A rejected token leaves the buffer
// unchanged and returns an InputRejected error.
func (t *Text) Insert(token string, style inputstyle.Style) error {
	if err := validate(token); err != nil {
		return err
	}
	keys := make([]inputstyle.Key, 0, utf8.RuneCountInString(token))
	for _, r := range token {
		keys = append(keys, inputstyle.Key{Rune: r})
	}
	return t.InsertKeys(keys, style)
}

// InsertKeys is Insert for keys that carry modifiers.
func (t *Text) InsertKeys(keys []inputstyle.Key, style inputstyle.Style) error {
	if len(keys) == 0 {
		return apperr.Errorf(apperr.InputRejected, "composing.Insert", "empty token")
	}
	if _, err := t.styles.Resolver(style); err != nil {
		return err
	}
	added := make([]Element, len(keys))
	for i, k := range keys {
		if k.Rune == 0 || unicode.IsControl(k.Rune) {
			return apperr.Errorf(apperr.InputRejected, "composing.Insert", "control character %U", k.Rune)
		}
		added[i] = Element{Key: k, Style: style}
	}

	if t.cursor == len(t.phon) {
		t.elems = append(t.elems, added...)
		t.refresh()
		t.cursor = len(t.phon)
		return nil
	}

	k, ok := t.boundary(t.cursor)
	if !ok {
		t.freeze(t.phon)
		k = t.cursor
	}
	end := k + len(added)
	t.elems = slices.Insert(t.elems, k, added...)
	if end < len(t.elems) && !t.elems[end].Separator {
		t.elems = slices.Insert(t.elems, end, Element{Separator: true})
	}
	t.refresh()
	head, _ := t.fold(t.elems[:end])
	t.cursor = len(head)
	return nil
}

// removeRange deletes the phonetic runes [p, q) by removing whole elements.
// Elements covering the range are removed entirely, so a piece made of
// several runes is never split.
func (t *Text) removeRange(p, q int) {
	want := slices.Concat(t.phon[:p], t.phon[q:])
	kp, kq := t.boundaries(p, q)
	t.elems = slices.Delete(t.elems, kp, kq)
	t.refresh()
	if equalRunes(t.phon, want) {
		return
	}
	if kp > 0 && kp < len(t.elems) {
		t.elems = slices.Insert(t.elems, kp, Element{Separator: true})
		t.refresh()
		if equalRunes(t.phon, want) {
			return
		}
	}
	t.freeze(want)
}

// cleanBefore returns the largest position below p that has a boundary.
func (t *Text) cleanBefore(p int) int {
	for q := p - 1; q > 0; q-- {
		if _, ok := t.boundary(q); ok {
			return q
		}
	}
	return 0
}

func (t *Text) cleanAfter(p int) int {
	for q := p + 1; q < len(t.phon); q++ {
		if _, ok := t.boundary(q); ok {
			return q
		}
	}
	return len(t.phon)
}

// DeleteBackward removes count pieces before the cursor. Deleting past the
// start stops silently.
func (t *Text) DeleteBackward(count int) {
	for range count {
		if t.cursor == 0 {
			return
		}
		if _, ok := t.boundary(t.cursor); !ok {
			t.freeze(t.phon)
		}
		q := t.cleanBefore(t.cursor)
		t.removeRange(q, t.cursor)
		t.cursor = q
	}
}

// DeleteForward removes count pieces after the cursor.
func (t *Text) DeleteForward(count int) {
	for range count {
		if t.cursor >= len(t.phon) {
			return
		}
		if _, ok := t.boundary(t.cursor); !ok {
			t.freeze(t.phon)
		}
		q := t.cleanAfter(t.cursor)
		t.removeRange(t.cursor, q)
	}
}

// MoveCursor sets the cursor. Out-of-range positions are ignored.
func (t *Text) MoveCursor(to int) bool {
	if to < 0 || to > len(t.phon) {
		return false
	}
	t.cursor = to
	return true
}

func (t *Text) MoveCursorBy(delta int) bool {
	return t.MoveCursor(t.cursor + delta)
}
