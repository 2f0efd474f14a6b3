package dictionary

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/vmihailenco/msgpack/v5"

	"kanakanji/apperr"
	"kanakanji/kana"
	"kanakanji/model"
)

// KanjiCost is the cost given to single-kanji entries from KANJIDIC2.
const KanjiCost = 12

// Builder collects entries and writes a resource directory.
type Builder struct {
	entries []model.Entry
	conn    *Matrix
}

func NewBuilder() *Builder { return &Builder{} }

// Add appends entries. Readings are normalized to hiragana.
func (b *Builder) Add(entries ...model.Entry) {
	for _, e := range entries {
		e.Reading = kana.ToHiragana(e.Reading)
		if e.Reading == "" || e.Surface == "" {
			continue
		}
		b.entries = append(b.entries, e)
	}
}

func (b *Builder) Len() int { return len(b.entries) }

// SetConnection replaces the connection matrix.
func (b *Builder) SetConnection(m *Matrix) { b.conn = m }

// ReadTSV reads reading\tsurface\tcost[\tleft\tright[\ttag]] lines. When
// only left is given it is used for both IDs.
func (b *Builder) ReadTSV(r io.Reader) error {
	const op = "dictionary.ReadTSV"
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		text := sc.Text()
		if strings.TrimSpace(text) == "" || strings.HasPrefix(text, "#") {
			continue
		}
		f := strings.Split(text, "\t")
		if len(f) < 3 || len(f) > 6 {
			return apperr.Errorf(apperr.LoadFailure, op, "line %d: want 3 to 6 fields, got %d", line, len(f))
		}
		cost, err := strconv.ParseFloat(f[2], 32)
		if err != nil {
			return apperr.Errorf(apperr.LoadFailure, op, "line %d: bad cost %q", line, f[2])
		}
		e := model.Entry{Reading: f[0], Surface: f[1], Cost: float32(cost)}
		if len(f) >= 4 {
			id, err := strconv.ParseUint(f[3], 10, 16)
			if err != nil {
				return apperr.Errorf(apperr.LoadFailure, op, "line %d: bad left id %q", line, f[3])
			}
			e.LeftID, e.RightID = uint16(id), uint16(id)
		}
		if len(f) >= 5 {
			id, err := strconv.ParseUint(f[4], 10, 16)
			if err != nil {
				return apperr.Errorf(apperr.LoadFailure, op, "line %d: bad right id %q", line, f[4])
			}
			e.RightID = uint16(id)
		}
		if len(f) == 6 {
			e.Tag = model.ParseTag(f[5])
		}
		b.Add(e)
	}
	if err := sc.Err(); err != nil {
		return apperr.New(apperr.LoadFailure, op, err)
	}
	return nil
}

// ReadConnectionTSV sets the connection matrix from ParseMatrixTSV input.
func (b *Builder) ReadConnectionTSV(r io.Reader) error {
	m, err := ParseMatrixTSV(r)
	if err != nil {
		return err
	}
	b.conn = m
	return nil
}

// AddKanjidic adds one noun entry per kanji reading.
func (b *Builder) AddKanjidic(readings map[rune][]string) {
	for k, rs := range readings {
		for _, r := range rs {
			b.Add(model.Entry{
				Reading: r,
				Surface: string(k),
				Cost:    KanjiCost,
				LeftID:  model.ClassNoun,
				RightID: model.ClassNoun,
			})
		}
	}
}

// normalized sorts entries and drops duplicates of (reading, surface,
// left, right), keeping the cheapest.
func (b *Builder) normalized() []model.Entry {
	es := slices.Clone(b.entries)
	slices.SortFunc(es, compareEntries)
	type key struct {
		reading, surface string
		left, right      uint16
	}
	seen := make(map[key]bool, len(es))
	return slices.DeleteFunc(es, func(e model.Entry) bool {
		k := key{e.Reading, e.Surface, e.LeftID, e.RightID}
		if seen[k] {
			return true
		}
		seen[k] = true
		return false
	})
}

// Index builds an in-memory index of the collected entries.
func (b *Builder) Index() *Index {
	return &Index{t: newTrie(b.normalized())}
}

// Write stores the entries as a resource directory under dir. The manifest
// is written last.
func (b *Builder) Write(dir string) (*Manifest, error) {
	const op = "dictionary.Write"
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperr.New(apperr.TrainingIOFailure, op, err)
	}
	es := b.normalized()
	m := &Manifest{Format: FormatTag, Entries: len(es)}

	for i := 0; i < len(es); {
		key, _ := utf8.DecodeRuneInString(es[i].Reading)
		j := i
		for j < len(es) {
			r, _ := utf8.DecodeRuneInString(es[j].Reading)
			if r != key {
				break
			}
			m.MaxReadingLength = max(m.MaxReadingLength, utf8.RuneCountInString(es[j].Reading))
			j++
		}
		ref := ShardRef{Key: string(key), File: shardFileName(key), Entries: j - i}
		raw, err := msgpack.Marshal(shardFile{Format: FormatTag, Key: ref.Key, Entries: es[i:j]})
		if err != nil {
			return nil, apperr.New(apperr.TrainingIOFailure, op, err)
		}
		if err := os.WriteFile(filepath.Join(dir, ref.File), raw, 0o644); err != nil {
			return nil, apperr.New(apperr.TrainingIOFailure, op, err)
		}
		ref.Size, ref.Checksum = int64(len(raw)), checksum(raw)
		m.Shards = append(m.Shards, ref)
		i = j
	}

	if b.conn != nil {
		b.conn.Format = FormatTag
		raw, err := msgpack.Marshal(b.conn)
		if err != nil {
			return nil, apperr.New(apperr.TrainingIOFailure, op, err)
		}
		if err := os.WriteFile(filepath.Join(dir, connFile), raw, 0o644); err != nil {
			return nil, apperr.New(apperr.TrainingIOFailure, op, err)
		}
		m.Connection = &ConnectionRef{File: connFile, Size: b.conn.Size, Bytes: int64(len(raw)), Checksum: checksum(raw)}
	}

	if err := writeManifest(dir, m); err != nil {
		return nil, apperr.New(apperr.TrainingIOFailure, op, fmt.Errorf("write manifest: %w", err))
	}
	return m, nil
}

// Connection returns the matrix set so far, or nil.
func (b *Builder) Connection() *Matrix { return b.conn }

// ReadFiles builds a Builder from an entries TSV and an optional
// connection TSV.
func ReadFiles(entriesPath, connectionPath string) (*Builder, error) {
	b := NewBuilder()
	f, err := os.Open(entriesPath)
	if err != nil {
		return nil, apperr.New(apperr.LoadFailure, "dictionary.ReadFiles", err)
	}
	defer f.Close()
	if err := b.ReadTSV(f); err != nil {
		return nil, err
	}
	if connectionPath == "" {
		return b, nil
	}
	c, err := os.Open(connectionPath)
	if err != nil {
		return nil, apperr.New(apperr.LoadFailure, "dictionary.ReadFiles", err)
	}
	defer c.Close()
	if err := b.ReadConnectionTSV(c); err != nil {
		return nil, err
	}
	return b, nil
}
