// Package inputstyle maps raw keystrokes to phonetic text per input style.
package inputstyle

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"kanakanji/apperr"
)

// TableID names a registered mapping table.
type TableID string

type Kind uint8

const (
	KindDirect Kind = iota
	KindRoman2Kana
	KindMapped
)

// Style selects how keys of an element are resolved. The set is closed:
// direct entry, romanized kana, or a mapped table.
type Style struct {
	Kind  Kind
	Table TableID
}

var (
	Direct     = Style{Kind: KindDirect}
	Roman2Kana = Style{Kind: KindRoman2Kana, Table: TableRoman}
)

func Mapped(id TableID) Style {
	return Style{Kind: KindMapped, Table: id}
}

func (s Style) String() string {
	switch s.Kind {
	case KindDirect:
		return "direct"
	case KindRoman2Kana:
		return "roman"
	default:
		return "table:" + string(s.Table)
	}
}

// ParseStyle accepts "direct", "kana", "roman", "kana-jis" and "table:<id>".
func ParseStyle(s string) (Style, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "direct", "kana":
		return Direct, nil
	case "roman", "romaji", "roman2kana":
		return Roman2Kana, nil
	case "kana-jis", "jis":
		return Mapped(TableKanaJIS), nil
	}
	if id, ok := strings.CutPrefix(s, "table:"); ok && id != "" {
		return Mapped(TableID(id)), nil
	}
	return Style{}, apperr.Errorf(apperr.InvalidArgument, "inputstyle.ParseStyle", "unknown input style %q", s)
}

// Key is one keystroke.
type Key struct {
	Rune  rune
	Shift bool
}

func (k Key) elem() Elem {
	if k.Shift {
		return Shift(k.Rune)
	}
	return R(k.Rune)
}

// Resolution is the pending text of a style group after one key.
type Resolution struct {
	Text []rune
	// Incomplete is set when trailing keys still await a continuation.
	Incomplete bool
}

// Resolver applies keys of one style to the pending text of its group.
type Resolver interface {
	Resolve(pending []rune, key Key) Resolution
	// Close ends a group, applying any separator rule.
	Close(pending []rune) []rune
}

type directResolver struct{}

func (directResolver) Resolve(pending []rune, key Key) Resolution {
	return Resolution{Text: append(pending, key.Rune)}
}

func (directResolver) Close(pending []rune) []rune { return pending }

type tableResolver struct {
	table *Table
}

func (r tableResolver) Resolve(pending []rune, key Key) Resolution {
	out := r.table.Apply(pending, key.elem())
	return Resolution{Text: out, Incomplete: r.table.Pending(out)}
}

func (r tableResolver) Close(pending []rune) []rune {
	return r.table.Apply(pending, Separator())
}

// Manager is a registry of mapping tables. Register custom tables before
// sharing the manager; lookups are safe for concurrent use.
type Manager struct {
	mu     sync.RWMutex
	tables map[TableID]*Table
}

func NewManager() *Manager {
	return &Manager{tables: builtinTables()}
}

// Register adds or replaces a custom table. Builtin tables cannot be replaced.
func (m *Manager) Register(id TableID, t *Table) error {
	if isBuiltin(id) {
		return apperr.Errorf(apperr.InvalidArgument, "inputstyle.Register", "table %q is builtin", id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[id] = t
	return nil
}

// LoadFile parses a table file and registers it under id.
func (m *Manager) LoadFile(id TableID, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return apperr.New(apperr.LoadFailure, "inputstyle.LoadFile", err)
	}
	defer f.Close()
	t, err := Parse(string(id), f)
	if err != nil {
		return err
	}
	return m.Register(id, t)
}

func (m *Manager) Table(id TableID) (*Table, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[id]
	return t, ok
}

// Resolver returns the key resolver for a style.
func (m *Manager) Resolver(s Style) (Resolver, error) {
	if s.Kind == KindDirect {
		return directResolver{}, nil
	}
	t, ok := m.Table(s.Table)
	if !ok {
		return nil, apperr.New(apperr.InputRejected, "inputstyle.Resolver", fmt.Errorf("unknown table %q", s.Table))
	}
	return tableResolver{table: t}, nil
}
