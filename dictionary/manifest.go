package dictionary

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/cespare/xxhash/v2"

	"kanakanji/apperr"
)

const (
	FormatTag    = "kanakanji-dict/1"
	ManifestFile = "manifest.toml"
	connFile     = "connection.msgpack"
)

// Manifest describes a resource directory.
type Manifest struct {
	Format           string         `toml:"format"`
	Entries          int            `toml:"entries"`
	MaxReadingLength int            `toml:"max_reading_length"`
	Connection       *ConnectionRef `toml:"connection,omitempty"`
	Shards           []ShardRef     `toml:"shards"`
}

type ConnectionRef struct {
	File     string `toml:"file"`
	Size     int    `toml:"size"`
	Bytes    int64  `toml:"bytes"`
	Checksum string `toml:"checksum"`
}

// ShardRef points at the entries whose reading starts with Key.
type ShardRef struct {
	Key      string `toml:"key"`
	File     string `toml:"file"`
	Entries  int    `toml:"entries"`
	Size     int64  `toml:"size"`
	Checksum string `toml:"checksum"`
}

func checksum(b []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(b))
}

func shardFileName(key rune) string {
	return fmt.Sprintf("shard_%06x.msgpack", key)
}

// ReadManifest decodes and sanity-checks dir/manifest.toml.
func ReadManifest(dir string) (*Manifest, error) {
	const op = "dictionary.ReadManifest"
	path := filepath.Join(dir, ManifestFile)
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.New(apperr.LoadFailure, op, fmt.Errorf("%w: %s", ErrMissingManifest, path))
		}
		return nil, apperr.New(apperr.LoadFailure, op, err)
	}
	if m.Format != FormatTag {
		return nil, apperr.New(apperr.LoadFailure, op, fmt.Errorf("%w %q", ErrFormat, m.Format))
	}
	total := 0
	seen := make(map[string]bool, len(m.Shards))
	for _, s := range m.Shards {
		if seen[s.Key] {
			return nil, apperr.Errorf(apperr.LoadFailure, op, "duplicate shard key %q", s.Key)
		}
		seen[s.Key] = true
		total += s.Entries
	}
	if total != m.Entries {
		return nil, apperr.Errorf(apperr.LoadFailure, op, "manifest lists %d entries, shards hold %d", m.Entries, total)
	}
	return &m, nil
}

func writeManifest(dir string, m *Manifest) error {
	f, err := os.Create(filepath.Join(dir, ManifestFile))
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(m); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// readVerified reads a file and checks its size and checksum.
func readVerified(dir, name string, size int64, sum string) ([]byte, error) {
	b, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) != size {
		return nil, fmt.Errorf("%w: %s is %d bytes, want %d", ErrChecksum, name, len(b), size)
	}
	if got := checksum(b); got != sum {
		return nil, fmt.Errorf("%w: %s", ErrChecksum, name)
	}
	return b, nil
}
