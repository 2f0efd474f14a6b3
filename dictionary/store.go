package dictionary

import (
	"context"
	"fmt"
	"iter"
	"sync/atomic"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"kanakanji/apperr"
	"kanakanji/logger"
	"kanakanji/metrics"
	"kanakanji/model"
)

// Options controls how Load materializes shards.
type Options struct {
	// Preload builds the index of every shard during Load. Otherwise a
	// shard's index is built the first time a lookup touches it. Shards
	// are decoded and validated during Load either way.
	Preload bool
}

type shardFile struct {
	Format  string        `msgpack:"format"`
	Key     string        `msgpack:"key"`
	Entries []model.Entry `msgpack:"entries"`
}

type shard struct {
	ref     ShardRef
	entries []model.Entry
	trie    atomic.Pointer[trie]
}

// Store is a loaded resource directory. All methods are safe for
// concurrent use.
type Store struct {
	manifest Manifest
	shards   map[rune]*shard
	conn     *Matrix
	group    singleflight.Group
	log      zerolog.Logger
}

var emptyTrie = newTrie(nil)

func decodeShard(ref ShardRef, b []byte) ([]model.Entry, error) {
	var f shardFile
	if err := msgpack.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	if f.Format != FormatTag {
		return nil, fmt.Errorf("%w %q", ErrFormat, f.Format)
	}
	if f.Key != ref.Key || len(f.Entries) != ref.Entries {
		return nil, fmt.Errorf("shard %s does not match manifest", ref.File)
	}
	for i, e := range f.Entries {
		if r, _ := utf8.DecodeRuneInString(e.Reading); string(r) != ref.Key {
			return nil, fmt.Errorf("shard %s: entry %q outside key", ref.File, e.Reading)
		}
		if i > 0 && compareEntries(f.Entries[i-1], e) > 0 {
			return nil, fmt.Errorf("shard %s: entries out of order", ref.File)
		}
	}
	return f.Entries, nil
}

// Load opens a resource directory. Every listed file is checked for size
// and checksum and every shard is decoded before Load returns; any problem
// is a LoadFailure and no Store is returned.
func Load(ctx context.Context, dir string, opts Options) (*Store, error) {
	const op = "dictionary.Load"
	m, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	s := &Store{
		manifest: *m,
		shards:   make(map[rune]*shard, len(m.Shards)),
		log:      logger.With("dictionary"),
	}
	raws := make(map[rune][]byte, len(m.Shards))
	for _, ref := range m.Shards {
		key, size := utf8.DecodeRuneInString(ref.Key)
		if size == 0 || size != len(ref.Key) {
			return nil, apperr.Errorf(apperr.LoadFailure, op, "bad shard key %q", ref.Key)
		}
		raw, err := readVerified(dir, ref.File, ref.Size, ref.Checksum)
		if err != nil {
			return nil, apperr.New(apperr.LoadFailure, op, err)
		}
		s.shards[key] = &shard{ref: ref}
		raws[key] = raw
	}
	if c := m.Connection; c != nil {
		raw, err := readVerified(dir, c.File, c.Bytes, c.Checksum)
		if err != nil {
			return nil, apperr.New(apperr.LoadFailure, op, err)
		}
		if s.conn, err = decodeMatrix(raw); err != nil {
			return nil, apperr.New(apperr.LoadFailure, op, err)
		}
		if s.conn.Size != c.Size {
			return nil, apperr.Errorf(apperr.LoadFailure, op, "connection size %d, manifest says %d", s.conn.Size, c.Size)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for key, sh := range s.shards {
		raw := raws[key]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entries, err := decodeShard(sh.ref, raw)
			if err != nil {
				return err
			}
			if opts.Preload {
				sh.trie.Store(newTrie(entries))
				metrics.RecordShardLoad("preload")
				return nil
			}
			sh.entries = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperr.New(apperr.LoadFailure, op, err)
	}
	s.log.Info().
		Str("dir", dir).
		Int("entries", m.Entries).
		Int("shards", len(m.Shards)).
		Bool("preload", opts.Preload).
		Msg("dictionary loaded")
	return s, nil
}

func (s *Store) trieFor(reading string) *trie {
	key, _ := utf8.DecodeRuneInString(reading)
	sh, ok := s.shards[key]
	if !ok {
		return emptyTrie
	}
	if t := sh.trie.Load(); t != nil {
		return t
	}
	v, _, _ := s.group.Do(sh.ref.File, func() (any, error) {
		if t := sh.trie.Load(); t != nil {
			return t, nil
		}
		t := newTrie(sh.entries)
		sh.trie.Store(t)
		sh.entries = nil
		metrics.RecordShardLoad("lazy")
		return t, nil
	})
	return v.(*trie)
}

func (s *Store) LookupExact(reading string) []model.Entry {
	if reading == "" {
		return nil
	}
	return s.trieFor(reading).exact(reading)
}

func (s *Store) LookupPrefixes(reading string) iter.Seq2[int, []model.Entry] {
	return func(yield func(int, []model.Entry) bool) {
		if reading == "" {
			return
		}
		s.trieFor(reading).prefixes(reading, yield)
	}
}

// Predict returns up to limit entries whose reading strictly extends
// prefix, cheapest first. A non-positive limit returns all of them.
func (s *Store) Predict(prefix string, limit int) []model.Entry {
	if prefix == "" {
		return nil
	}
	return predict(s.trieFor(prefix).extending(prefix), limit)
}

func (s *Store) MaxReadingLength() int { return s.manifest.MaxReadingLength }

// Connection is the cost of placing an entry with left ID left after one
// with right ID right.
func (s *Store) Connection(right, left uint16) float64 { return s.conn.Connection(right, left) }

func (s *Store) Len() int { return s.manifest.Entries }

func (s *Store) Manifest() Manifest { return s.manifest }
