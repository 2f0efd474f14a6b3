package dictionary

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"kanakanji/apperr"
	"kanakanji/ingest"
	"kanakanji/model"
	"kanakanji/tokenize"
)

const (
	fixtureEntries    = "../testdata/dict/entries.tsv"
	fixtureConnection = "../testdata/dict/connection.tsv"
)

func writeFixture(t *testing.T) string {
	t.Helper()
	b, err := ReadFiles(fixtureEntries, fixtureConnection)
	require.NoError(t, err)
	dir := t.TempDir()
	_, err = b.Write(dir)
	require.NoError(t, err)
	return dir
}

func surfaces(es []model.Entry) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.Surface
	}
	return out
}

type prefixHit struct {
	n        int
	surfaces []string
}

func prefixes(s Source, reading string) []prefixHit {
	var out []prefixHit
	for n, es := range s.LookupPrefixes(reading) {
		out = append(out, prefixHit{n, surfaces(es)})
	}
	return out
}

func TestStoreLookups(t *testing.T) {
	dir := writeFixture(t)
	for _, preload := range []bool{true, false} {
		s, err := Load(context.Background(), dir, Options{Preload: preload})
		require.NoError(t, err)

		assert.Equal(t, []string{"歯科医", "司会", "視界"}, surfaces(s.LookupExact("しかい")))
		assert.Empty(t, s.LookupExact("しかいに"))
		assert.Empty(t, s.LookupExact(""))

		assert.Equal(t, []prefixHit{
			{2, []string{"しか", "歯科"}},
			{3, []string{"歯科医", "司会", "視界"}},
		}, prefixes(s, "しかいに"))

		assert.Equal(t, 6, s.MaxReadingLength())
		assert.Equal(t, 4.0, s.Connection(model.ClassBoundary, model.ClassParticle))
		assert.Equal(t, 2.0, s.Connection(model.ClassParticle, model.ClassParticle))
		assert.Equal(t, 0.0, s.Connection(model.ClassNoun, model.ClassParticle))
		assert.Equal(t, 0.0, s.Connection(100, 1))
		assert.Equal(t, 47, s.Len())

		tokyo := s.LookupExact("とうきょう")
		require.Len(t, tokyo, 1)
		assert.Equal(t, model.TagProperNoun, tokyo[0].Tag)
	}
}

func TestStoreMatchesIndex(t *testing.T) {
	b, err := ReadFiles(fixtureEntries, fixtureConnection)
	require.NoError(t, err)
	dir := t.TempDir()
	_, err = b.Write(dir)
	require.NoError(t, err)
	s, err := Load(context.Background(), dir, Options{})
	require.NoError(t, err)
	idx := b.Index()

	for _, q := range []string{"はがいたい", "このぶんしょう", "いたい", "にほんご", "ん"} {
		assert.Equal(t, prefixes(idx, q), prefixes(s, q), q)
	}
	assert.Equal(t, idx.MaxReadingLength(), s.MaxReadingLength())
}

func TestPredict(t *testing.T) {
	s, err := Load(context.Background(), writeFixture(t), Options{})
	require.NoError(t, err)

	got := s.Predict("い", 0)
	assert.Equal(t, []string{"いう", "います", "言う", "痛い", "板", "遺体"}, surfaces(got))
	assert.Len(t, s.Predict("い", 2), 2)
	assert.Empty(t, s.Predict("", 5))
	assert.Empty(t, s.Predict("ぬ", 5))
}

func TestLazyLoadConcurrent(t *testing.T) {
	s, err := Load(context.Background(), writeFixture(t), Options{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Len(t, s.LookupExact("かんじ"), 3)
		}()
	}
	wg.Wait()
}

func TestLoadFailures(t *testing.T) {
	t.Run("missing dir", func(t *testing.T) {
		_, err := Load(context.Background(), filepath.Join(t.TempDir(), "none"), Options{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperr.ErrLoadFailure))
		assert.True(t, errors.Is(err, ErrMissingManifest))
	})

	t.Run("corrupt shard", func(t *testing.T) {
		dir := writeFixture(t)
		path := filepath.Join(dir, shardFileName('か'))
		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		raw[len(raw)-1] ^= 0xff
		require.NoError(t, os.WriteFile(path, raw, 0o644))

		for _, preload := range []bool{true, false} {
			_, err = Load(context.Background(), dir, Options{Preload: preload})
			assert.True(t, errors.Is(err, ErrChecksum))
			assert.True(t, errors.Is(err, apperr.ErrLoadFailure))
		}
	})

	t.Run("missing shard", func(t *testing.T) {
		dir := writeFixture(t)
		require.NoError(t, os.Remove(filepath.Join(dir, shardFileName('は'))))
		_, err := Load(context.Background(), dir, Options{Preload: true})
		assert.True(t, errors.Is(err, apperr.ErrLoadFailure))
	})

	t.Run("shard format with valid checksum", func(t *testing.T) {
		dir := writeFixture(t)
		m, err := ReadManifest(dir)
		require.NoError(t, err)
		for i, ref := range m.Shards {
			if ref.Key != "は" {
				continue
			}
			path := filepath.Join(dir, ref.File)
			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			var f shardFile
			require.NoError(t, msgpack.Unmarshal(raw, &f))
			f.Format = "kanakanji-dict/0"
			raw, err = msgpack.Marshal(&f)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(path, raw, 0o644))
			m.Shards[i].Size, m.Shards[i].Checksum = int64(len(raw)), checksum(raw)
		}
		require.NoError(t, writeManifest(dir, m))

		for _, preload := range []bool{true, false} {
			s, err := Load(context.Background(), dir, Options{Preload: preload})
			assert.Nil(t, s)
			assert.True(t, errors.Is(err, apperr.ErrLoadFailure), "preload=%v", preload)
			assert.True(t, errors.Is(err, ErrFormat), "preload=%v", preload)
		}
	})

	t.Run("bad format", func(t *testing.T) {
		dir := writeFixture(t)
		path := filepath.Join(dir, ManifestFile)
		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		raw = []byte(strings.Replace(string(raw), FormatTag, "other/9", 1))
		require.NoError(t, os.WriteFile(path, raw, 0o644))
		_, err = Load(context.Background(), dir, Options{})
		assert.True(t, errors.Is(err, ErrFormat))
	})
}

func TestReadTSVErrors(t *testing.T) {
	for _, src := range []string{
		"a\tb\n",
		"a\tb\tx\n",
		"a\tb\t1\tnoun\n",
	} {
		err := NewBuilder().ReadTSV(strings.NewReader(src))
		assert.True(t, errors.Is(err, apperr.ErrLoadFailure), src)
	}
}

func TestParseMatrixTSV(t *testing.T) {
	m, err := ParseMatrixTSV(strings.NewReader("3\n1\t2\t0.5\n"))
	require.NoError(t, err)
	assert.Equal(t, 0.5, m.Connection(1, 2))
	assert.Equal(t, 0.0, m.Connection(2, 1))

	_, err = ParseMatrixTSV(strings.NewReader("2\n5\t0\t1\n"))
	assert.Error(t, err)
	_, err = ParseMatrixTSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	base := NewIndex([]model.Entry{{Reading: "ねこ", Surface: "猫", Cost: 3}})
	learned := NewIndex([]model.Entry{
		{Reading: "ネコ", Surface: "ネコ", Cost: 1, Tag: model.TagLearned},
		{Reading: "ね", Surface: "根", Cost: 2},
	})
	src := Merge(base, nil, learned)
	assert.Equal(t, []prefixHit{
		{1, []string{"根"}},
		{2, []string{"猫", "ネコ"}},
	}, prefixes(src, "ねこ"))
	assert.Equal(t, []string{"ネコ", "猫"}, surfaces(src.Predict("ね", 0)))
	assert.Equal(t, 2, src.MaxReadingLength())
	assert.Same(t, base, Merge(base))
}

func TestAddKanjidic(t *testing.T) {
	b := NewBuilder()
	b.AddKanjidic(map[rune][]string{'歯': {"し", "は"}})
	idx := b.Index()
	assert.Equal(t, []string{"歯"}, surfaces(idx.LookupExact("は")))
	assert.Equal(t, float32(KanjiCost), idx.LookupExact("し")[0].Cost)
}

func TestBuildFromCorpus(t *testing.T) {
	tok, err := tokenize.Default()
	require.NoError(t, err)
	ctx := context.Background()
	sentences, errs := ingest.Stream(ctx, strings.NewReader("東京に行く\n東京は大きい\n"))
	b, err := BuildFromCorpus(ctx, tok, sentences)
	require.NoError(t, err)
	require.NoError(t, <-errs)

	idx := b.Index()
	tokyo := idx.LookupExact("とうきょう")
	require.Len(t, tokyo, 1)
	assert.Equal(t, "東京", tokyo[0].Surface)
	assert.Equal(t, model.ClassNoun, tokyo[0].LeftID)

	ni := idx.LookupExact("に")
	require.NotEmpty(t, ni)
	// 東京 appears twice, に once
	assert.Less(t, tokyo[0].Cost, ni[0].Cost)

	require.NotNil(t, b.Connection())
	assert.Less(t, b.Connection().Connection(model.ClassBoundary, model.ClassNoun),
		b.Connection().Connection(model.ClassBoundary, model.ClassParticle))

	dir := t.TempDir()
	_, err = b.Write(dir)
	require.NoError(t, err)
	s, err := Load(ctx, dir, Options{Preload: true})
	require.NoError(t, err)
	assert.Equal(t, b.Index().Len(), s.Len())
}
