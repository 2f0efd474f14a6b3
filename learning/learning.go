// Package learning remembers committed conversions in a badger database so
// later requests rank them higher.
package learning

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"kanakanji/apperr"
	"kanakanji/logger"
	"kanakanji/model"
)

const DefaultMaxCount = 65536

// Bonus is subtracted from a learned entry's cost per use, up to MaxBonus.
const (
	Bonus    = 1.0
	MaxBonus = 5.0
)

// Type selects what the converter does with the memory.
type Type string

const (
	Nothing        Type = "nothing"
	InputAndOutput Type = "input_and_output"
	OnlyOutput     Type = "only_output"
)

func ParseType(s string) (Type, error) {
	switch Type(s) {
	case Nothing, InputAndOutput, OnlyOutput:
		return Type(s), nil
	case "":
		return InputAndOutput, nil
	}
	return "", apperr.Errorf(apperr.InvalidArgument, "learning.ParseType", "unknown learning type %q", s)
}

// Reads reports whether learned entries take part in conversion.
func (t Type) Reads() bool { return t == InputAndOutput || t == OnlyOutput }

// Writes reports whether commits are remembered.
func (t Type) Writes() bool { return t == InputAndOutput }

type Options struct {
	Dir      string
	InMemory bool
	MaxCount int
}

type record struct {
	Count   uint32  `msgpack:"n"`
	Seq     uint64  `msgpack:"q"`
	Cost    float32 `msgpack:"c"`
	LeftID  uint16  `msgpack:"li"`
	RightID uint16  `msgpack:"ri"`
}

const keyPrefix = "m/"

func key(reading, surface string) []byte {
	return []byte(keyPrefix + reading + "\x00" + surface)
}

func splitKey(k []byte) (reading, surface string, ok bool) {
	return strings.Cut(strings.TrimPrefix(string(k), keyPrefix), "\x00")
}

// Memory is safe for concurrent use.
type Memory struct {
	db  *badger.DB
	max int
	mu  sync.Mutex
	seq uint64
	// n is the number of stored pairs.
	n   int
	log zerolog.Logger
}

type badgerLogger struct{ log zerolog.Logger }

func (l badgerLogger) Errorf(f string, v ...any)   { l.log.Error().Msgf(f, v...) }
func (l badgerLogger) Warningf(f string, v ...any) { l.log.Warn().Msgf(f, v...) }
func (badgerLogger) Infof(string, ...any)          {}
func (badgerLogger) Debugf(string, ...any)         {}

func Open(opts Options) (*Memory, error) {
	const op = "learning.Open"
	if !opts.InMemory && opts.Dir == "" {
		return nil, apperr.Errorf(apperr.InvalidArgument, op, "memory directory is required")
	}
	if opts.MaxCount <= 0 {
		opts.MaxCount = DefaultMaxCount
	}
	log := logger.With("learning")
	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(badgerLogger{log})
	if opts.InMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true).WithLogger(badgerLogger{log})
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, apperr.New(apperr.LoadFailure, op, err)
	}
	m := &Memory{db: db, max: opts.MaxCount, log: log}
	err = m.scan(func(_, _ string, r record) {
		m.seq = max(m.seq, r.Seq)
		m.n++
	})
	if err != nil {
		db.Close()
		return nil, apperr.New(apperr.LoadFailure, op, err)
	}
	return m, nil
}

func (m *Memory) scan(fn func(reading, surface string, r record)) error {
	return m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			reading, surface, ok := splitKey(item.Key())
			if !ok {
				continue
			}
			var r record
			err := item.Value(func(v []byte) error { return msgpack.Unmarshal(v, &r) })
			if err != nil {
				return fmt.Errorf("decode %q: %w", item.Key(), err)
			}
			fn(reading, surface, r)
		}
		return nil
	})
}

// Remember records one use of e.
func (m *Memory) Remember(e model.Entry) error {
	if e.Reading == "" || e.Surface == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	k := key(e.Reading, e.Surface)
	added := false
	err := m.db.Update(func(txn *badger.Txn) error {
		added = false
		r := record{Cost: e.Cost, LeftID: e.LeftID, RightID: e.RightID}
		item, err := txn.Get(k)
		switch {
		case err == nil:
			if err := item.Value(func(v []byte) error { return msgpack.Unmarshal(v, &r) }); err != nil {
				return err
			}
		case errors.Is(err, badger.ErrKeyNotFound):
			added = true
		default:
			return err
		}
		r.Count++
		r.Seq = m.seq
		b, err := msgpack.Marshal(r)
		if err != nil {
			return err
		}
		return txn.Set(k, b)
	})
	if err != nil {
		return fmt.Errorf("learning: remember %s/%s: %w", e.Reading, e.Surface, err)
	}
	if added {
		m.n++
	}
	if m.n <= m.max {
		return nil
	}
	return m.prune()
}

// prune drops the least recently used pairs beyond the limit. The caller
// holds mu.
func (m *Memory) prune() error {
	type aged struct {
		k   []byte
		seq uint64
	}
	var all []aged
	err := m.scan(func(reading, surface string, r record) {
		all = append(all, aged{key(reading, surface), r.Seq})
	})
	if err != nil {
		return err
	}
	m.n = len(all)
	if len(all) <= m.max {
		return nil
	}
	slices.SortFunc(all, func(a, b aged) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	wb := m.db.NewWriteBatch()
	defer wb.Cancel()
	for _, a := range all[:len(all)-m.max] {
		if err := wb.Delete(a.k); err != nil {
			return err
		}
	}
	if err := wb.Flush(); err != nil {
		return err
	}
	m.log.Debug().Int("evicted", len(all)-m.max).Msg("memory pruned")
	m.n = m.max
	return nil
}

// LearnedCost lowers base by Bonus per use, capped at MaxBonus and floored
// at zero.
func LearnedCost(base float32, count uint32) float32 {
	bonus := min(float64(count)*Bonus, MaxBonus)
	return float32(math.Max(0, float64(base)-bonus))
}

// Entries returns every remembered pair with its learned cost, ordered by
// reading then surface.
func (m *Memory) Entries() ([]model.Entry, error) {
	var out []model.Entry
	err := m.scan(func(reading, surface string, r record) {
		out = append(out, model.Entry{
			Reading: reading,
			Surface: surface,
			Cost:    LearnedCost(r.Cost, r.Count),
			LeftID:  r.LeftID,
			RightID: r.RightID,
			Tag:     model.TagLearned,
		})
	})
	return out, err
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.n
}

// Reset forgets everything.
func (m *Memory) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq = 0
	m.n = 0
	return m.db.DropAll()
}

func (m *Memory) Close() error {
	return m.db.Close()
}
