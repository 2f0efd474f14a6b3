package ngram

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/vmihailenco/msgpack/v5"

	"kanakanji/apperr"
)

const snapshotFormat = "kanakanji-ngram/1"

var ErrFormat = errors.New("ngram: malformed snapshot")

var tableKinds = []string{"c_abc", "c_bc", "u_abx", "u_xbc", "r_xbx"}

type snapshotFile struct {
	Format string    `msgpack:"format"`
	Kind   string    `msgpack:"kind"`
	N      int       `msgpack:"n"`
	D      float64   `msgpack:"d"`
	Keys   [][]int32 `msgpack:"keys,omitempty"`
	Values []uint32  `msgpack:"values,omitempty"`
	Tokens []string  `msgpack:"tokens,omitempty"`
}

// Files lists the snapshot files of pattern.
func Files(pattern string) []string {
	out := make([]string, 0, len(tableKinds)+1)
	for _, k := range tableKinds {
		out = append(out, fmt.Sprintf("%s_%s.msgpack", pattern, k))
	}
	return append(out, pattern+"_vocab.msgpack")
}

func (c *counts) table(kind string) map[string]uint32 {
	switch kind {
	case "c_abc":
		return c.cABC
	case "c_bc":
		return c.cBC
	case "u_abx":
		return c.uABX
	case "u_xbc":
		return c.uXBC
	default:
		return c.rXBX
	}
}

func writeSnapshot(path string, f snapshotFile) error {
	b, err := msgpack.Marshal(f)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Save writes the counts and vocabulary under pattern.
func (t *Trainer) Save(pattern string) error {
	const op = "ngram.Save"
	if dir := filepath.Dir(pattern); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperr.New(apperr.TrainingIOFailure, op, err)
		}
	}
	files := Files(pattern)
	for i, kind := range tableKinds {
		table := t.counts.table(kind)
		keys := make([][]int32, 0, len(table))
		for k := range table {
			keys = append(keys, unpackKey(k))
		}
		slices.SortFunc(keys, slices.Compare[[]int32])
		values := make([]uint32, len(keys))
		for j, k := range keys {
			values[j] = table[packKey(k)]
		}
		f := snapshotFile{Format: snapshotFormat, Kind: kind, N: t.n, D: t.d, Keys: keys, Values: values}
		if err := writeSnapshot(files[i], f); err != nil {
			return apperr.New(apperr.TrainingIOFailure, op, err)
		}
	}
	vocab := snapshotFile{Format: snapshotFormat, Kind: "vocab", N: t.n, D: t.d, Tokens: t.vocab.Tokens()}
	if err := writeSnapshot(files[len(files)-1], vocab); err != nil {
		return apperr.New(apperr.TrainingIOFailure, op, err)
	}
	return nil
}

func readSnapshot(path, kind string) (snapshotFile, error) {
	var f snapshotFile
	b, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := msgpack.Unmarshal(b, &f); err != nil {
		return f, fmt.Errorf("%w: %s: %v", ErrFormat, path, err)
	}
	if f.Format != snapshotFormat || f.Kind != kind {
		return f, fmt.Errorf("%w: %s holds %q/%q", ErrFormat, path, f.Format, f.Kind)
	}
	if len(f.Keys) != len(f.Values) {
		return f, fmt.Errorf("%w: %s has %d keys and %d values", ErrFormat, path, len(f.Keys), len(f.Values))
	}
	return f, nil
}

// readAll loads every file of pattern and checks they agree.
func readAll(pattern string) (int, float64, *Vocab, *counts, error) {
	files := Files(pattern)
	vf, err := readSnapshot(files[len(files)-1], "vocab")
	if err != nil {
		return 0, 0, nil, nil, err
	}
	if err := validate(vf.N, vf.D); err != nil {
		return 0, 0, nil, nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if len(vf.Tokens) < 3 || vf.Tokens[BOSID] != BOS || vf.Tokens[EOSID] != EOS || vf.Tokens[UNKID] != UNK {
		return 0, 0, nil, nil, fmt.Errorf("%w: vocabulary lacks special tokens", ErrFormat)
	}
	c := newCounts()
	for i, kind := range tableKinds {
		f, err := readSnapshot(files[i], kind)
		if err != nil {
			return 0, 0, nil, nil, err
		}
		if f.N != vf.N || f.D != vf.D {
			return 0, 0, nil, nil, fmt.Errorf("%w: %s was written for n=%d d=%g", ErrFormat, files[i], f.N, f.D)
		}
		table := c.table(kind)
		for j, k := range f.Keys {
			for _, id := range k {
				if id < 0 || int(id) >= len(vf.Tokens) {
					return 0, 0, nil, nil, fmt.Errorf("%w: %s: token id %d out of range", ErrFormat, files[i], id)
				}
			}
			table[packKey(k)] = f.Values[j]
		}
	}
	return vf.N, vf.D, vocabFrom(vf.Tokens), c, nil
}

// Load reads a model saved under pattern. Any problem is a LoadFailure.
func Load(pattern string) (*Model, error) {
	n, d, vocab, c, err := readAll(pattern)
	if err != nil {
		return nil, apperr.New(apperr.LoadFailure, "ngram.Load", err)
	}
	return newModel(n, d, vocab, c), nil
}

// Resume replaces the trainer state with the snapshot under pattern so
// training can continue from it. The snapshot order and discount must
// match the trainer's.
func (t *Trainer) Resume(pattern string) error {
	const op = "ngram.Resume"
	n, d, vocab, c, err := readAll(pattern)
	if err != nil {
		return apperr.New(apperr.TrainingIOFailure, op, err)
	}
	if n != t.n {
		return apperr.Errorf(apperr.TrainingIOFailure, op, "snapshot has order %d, trainer %d", n, t.n)
	}
	if d != t.d {
		return apperr.Errorf(apperr.TrainingIOFailure, op, "snapshot has discount %g, trainer %g", d, t.d)
	}
	t.vocab = vocab
	t.counts = c
	return nil
}
