package converter

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kanakanji/apperr"
	"kanakanji/dictionary"
	"kanakanji/inputstyle"
	"kanakanji/learning"
	"kanakanji/model"
	"kanakanji/replacer"
	"kanakanji/zenzai"
)

const (
	sentence1 = "はがいたいのでしかいにみてもらった"
	expected1 = "歯が痛いので歯科医に診てもらった"
	roman2    = "konobunshouhakanjihenkangaseikakutoiukotodewadainonihongonyuuryokusisutemuwotukatteutikondeimasu"
	expected2 = "この文章は漢字変換が正確ということで話題の日本語入力システムを使って打ち込んでいます"
)

func engine(t *testing.T, opts ...EngineOption) *Engine {
	t.Helper()
	b, err := dictionary.ReadFiles("../testdata/dict/entries.tsv", "../testdata/dict/connection.tsv")
	require.NoError(t, err)
	e, err := New(b.Index(), append([]EngineOption{WithConnector(b.Connection())}, opts...)...)
	require.NoError(t, err)
	return e
}

func texts(cs []model.Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Text
	}
	return out
}

func assertRanked(t *testing.T, res Result, n int) {
	t.Helper()
	assert.LessOrEqual(t, len(res.Candidates), n)
	seen := map[string]bool{}
	for i, c := range res.Candidates {
		assert.False(t, seen[c.Text], "duplicate %q", c.Text)
		seen[c.Text] = true
		if i > 0 {
			assert.LessOrEqual(t, res.Candidates[i-1].Cost, c.Cost)
		}
	}
}

func typeKeys(t *testing.T, s *Session, keys string, style inputstyle.Style, each func(Result)) {
	t.Helper()
	for _, k := range keys {
		require.NoError(t, s.Insert(string(k), style))
		res, err := s.Candidates(context.Background())
		require.NoError(t, err)
		if each != nil {
			each(res)
		}
	}
}

func TestConvertExampleSentence(t *testing.T) {
	e := engine(t)
	res, err := e.Convert(context.Background(), sentence1, DefaultOptions())
	require.NoError(t, err)
	top, ok := res.Top()
	require.True(t, ok)
	assert.Equal(t, expected1, top.Text)
	assert.Equal(t, model.SourceLattice, top.Source)
	assertRanked(t, res, 10)

	again, err := e.Convert(context.Background(), sentence1, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, res, again)
}

func TestSessionRomanIncremental(t *testing.T) {
	e := engine(t)
	s, err := e.NewSession(DefaultOptions())
	require.NoError(t, err)

	var last Result
	typeKeys(t, s, roman2, inputstyle.Roman2Kana, func(r Result) {
		assertRanked(t, r, 10)
		last = r
	})
	top, ok := last.Top()
	require.True(t, ok)
	assert.Equal(t, expected2, top.Text)

	reading, cursor := s.Text()
	full, err := e.Convert(context.Background(), reading, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, len([]rune(reading)), cursor)
	assert.Equal(t, full.Candidates, last.Candidates)
}

func TestSessionEditsMatchFullRebuild(t *testing.T) {
	e := engine(t)
	s, err := e.NewSession(DefaultOptions())
	require.NoError(t, err)
	typeKeys(t, s, sentence1, inputstyle.Direct, nil)

	s.DeleteBackward(3)
	res, err := s.Candidates(context.Background())
	require.NoError(t, err)
	full, err := e.Convert(context.Background(), "はがいたいのでしかいにみても", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, full.Candidates, res.Candidates)

	require.True(t, s.MoveCursor(2))
	res, err = s.Candidates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "はが", res.Reading)
}

func TestNBestBound(t *testing.T) {
	e := engine(t)
	for _, n := range []int{1, 3, 5, 10, 30} {
		opts := DefaultOptions()
		opts.NBest = n
		res, err := e.Convert(context.Background(), sentence1, opts)
		require.NoError(t, err)
		assertRanked(t, res, n)
		assert.Equal(t, expected1, res.Candidates[0].Text, "n=%d", n)
	}
}

func TestReplacerMerge(t *testing.T) {
	rp, err := replacer.Load("../replacer/testdata/emoji.tsv")
	require.NoError(t, err)
	e := engine(t, WithReplacer(rp))

	res, err := e.Convert(context.Background(), "かに", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "蟹", res.Candidates[0].Text)
	i := slices.Index(texts(res.Candidates), "🦀")
	require.Greater(t, i, 0)
	assert.Equal(t, model.SourceReplacer, res.Candidates[i].Source)
	assertRanked(t, res, 10)

	opts := DefaultOptions()
	opts.ReplacerPreferred = true
	res, err = e.Convert(context.Background(), "かに", opts)
	require.NoError(t, err)
	assert.Equal(t, "🦀", res.Candidates[0].Text)
	assert.Equal(t, "蟹", res.Candidates[1].Text)
	assertRanked(t, res, 10)

	opts = DefaultOptions()
	opts.ReplacerPath = "emoji.tsv"
	opts.SharedDir = "../replacer/testdata"
	res, err = e.Convert(context.Background(), "ねこ", opts)
	require.NoError(t, err)
	assert.Contains(t, texts(res.Candidates), "🐱")
}

func TestExtrasKeepHalfTheSlots(t *testing.T) {
	e := engine(t)
	opts := DefaultOptions()
	opts.NBest = 4
	opts.HalfWidthKanaCandidate = true
	res, err := e.Convert(context.Background(), "しかい", opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"歯科医", "司会", "しかい", "シカイ"}, texts(res.Candidates))
	assertRanked(t, res, 4)
}

func TestScriptAndSpecialCandidates(t *testing.T) {
	e := engine(t)
	opts := DefaultOptions()
	opts.HalfWidthKanaCandidate = true
	res, err := e.Convert(context.Background(), "ねこ", opts)
	require.NoError(t, err)
	assert.Contains(t, texts(res.Candidates), "ネコ")
	assert.Contains(t, texts(res.Candidates), "ﾈｺ")

	opts = DefaultOptions()
	opts.FullWidthRomanCandidate = true
	opts.EnglishCandidateInRoman = true
	opts.SpecialProviders = []string{"time"}
	res, err = e.Convert(context.Background(), "930", opts)
	require.NoError(t, err)
	assert.Contains(t, texts(res.Candidates), "9:30")
	assert.Contains(t, texts(res.Candidates), "９３０")

	opts.SpecialProviders = []string{"calendar", "japanese_number"}
	res, err = e.Convert(context.Background(), "2024ねん", opts)
	require.NoError(t, err)
	assert.Contains(t, texts(res.Candidates), "令和6年")
	res, err = e.Convert(context.Background(), "にじゅうさん", opts)
	require.NoError(t, err)
	assert.Contains(t, texts(res.Candidates), "23")

	opts.SpecialProviders = []string{"weather"}
	_, err = e.Convert(context.Background(), "930", opts)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	opts = DefaultOptions()
	opts.KeyboardLanguage = KeyboardEnglish
	res, err = e.Convert(context.Background(), "hello", opts)
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Candidates[0].Text)
	assert.Equal(t, model.SourceEnglish, res.Candidates[0].Source)
}

func TestPredictions(t *testing.T) {
	e := engine(t)
	opts := DefaultOptions()
	opts.JapanesePrediction = true
	res, err := e.Convert(context.Background(), "い", opts)
	require.NoError(t, err)
	assert.Contains(t, texts(res.Predictions), "痛い")
	assert.Contains(t, texts(res.Predictions), "言う")

	res, err = e.Convert(context.Background(), "はがいた", opts)
	require.NoError(t, err)
	assert.Contains(t, texts(res.Predictions), "歯が痛い")
	for _, p := range res.Predictions {
		assert.Equal(t, model.SourcePrediction, p.Source)
	}
}

func TestEmptyAndInvalidInput(t *testing.T) {
	e := engine(t)
	res, err := e.Convert(context.Background(), "", DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, res.Candidates)

	opts := DefaultOptions()
	opts.NBest = -1
	_, err = e.Convert(context.Background(), "は", opts)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	opts = DefaultOptions()
	opts.LM.Mode = "multiply"
	_, err = e.Convert(context.Background(), "は", opts)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	s, err := e.NewSession(DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, s.Insert("は", inputstyle.Direct))
	assert.ErrorIs(t, s.Insert("", inputstyle.Direct), apperr.ErrInputRejected)
	assert.ErrorIs(t, s.Insert("\x01", inputstyle.Direct), apperr.ErrInputRejected)
	reading, _ := s.Text()
	assert.Equal(t, "は", reading)
}

func TestLearningPolicies(t *testing.T) {
	mem, err := learning.Open(learning.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { mem.Close() })
	e := engine(t, WithMemory(mem))

	learn := DefaultOptions()
	learn.Learning.Type = learning.InputAndOutput
	s, err := e.NewSession(learn)
	require.NoError(t, err)
	typeKeys(t, s, "しかい", inputstyle.Direct, nil)
	res, err := s.Candidates(context.Background())
	require.NoError(t, err)
	require.Equal(t, "歯科医", res.Candidates[0].Text)

	i := slices.Index(texts(res.Candidates), "視界")
	require.GreaterOrEqual(t, i, 0)
	require.NoError(t, s.Commit(context.Background(), res.Candidates[i]))
	reading, cursor := s.Text()
	assert.Empty(t, reading)
	assert.Zero(t, cursor)

	for _, tc := range []struct {
		policy learning.Type
		want   string
	}{
		{learning.InputAndOutput, "視界"},
		{learning.OnlyOutput, "視界"},
		{learning.Nothing, "歯科医"},
	} {
		opts := DefaultOptions()
		opts.Learning.Type = tc.policy
		s, err := e.NewSession(opts)
		require.NoError(t, err)
		typeKeys(t, s, "しかい", inputstyle.Direct, nil)
		res, err := s.Candidates(context.Background())
		require.NoError(t, err)
		assert.Equal(t, tc.want, res.Candidates[0].Text, tc.policy)
	}

	only := DefaultOptions()
	only.Learning.Type = learning.OnlyOutput
	s, err = e.NewSession(only)
	require.NoError(t, err)
	typeKeys(t, s, "ねこ", inputstyle.Direct, nil)
	res, err = s.Candidates(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.Commit(context.Background(), res.Candidates[0]))
	assert.Equal(t, 1, mem.Len())

	reset := learn
	reset.Learning.Reset = true
	_, err = e.NewSession(reset)
	require.NoError(t, err)
	assert.Zero(t, mem.Len())
	res, err = e.Convert(context.Background(), "しかい", learn)
	require.NoError(t, err)
	assert.Equal(t, "歯科医", res.Candidates[0].Text)
}

// preferScorer puts the first candidate containing want on top in one call.
type preferScorer struct{ want string }

func (p preferScorer) Refine(_ context.Context, req zenzai.Request) (zenzai.Response, error) {
	out := slices.Clone(req.Candidates)
	for i, c := range out {
		if strings.Contains(c.Text, p.want) {
			out = append([]model.Candidate{c}, append(out[:i:i], out[i+1:]...)...)
			break
		}
	}
	return zenzai.Response{Candidates: out, CallsUsed: 1, Converged: true}, nil
}

func TestNeuralBudgetFinalTopIsStable(t *testing.T) {
	e := engine(t, WithScorerLoader(zenzai.Static(preferScorer{want: "見て"})))
	for _, budget := range []int{1, 2, 3, 5, zenzai.Unlimited} {
		opts := DefaultOptions()
		opts.Zenzai = zenzai.On("test", budget)
		s, err := e.NewSession(opts)
		require.NoError(t, err)
		var last Result
		typeKeys(t, s, sentence1, inputstyle.Direct, func(r Result) {
			assertRanked(t, r, 10)
			last = r
		})
		assert.Equal(t, "歯が痛いので歯科医に見てもらった", last.Candidates[0].Text, "budget %d", budget)
		assert.True(t, last.Neural.Enabled)
		assert.Equal(t, 1, last.Neural.Calls)
		assert.True(t, last.Neural.Converged)
		assert.False(t, last.Neural.Degraded)
	}
}

func TestNeuralUnavailableDegrades(t *testing.T) {
	opts := DefaultOptions()
	opts.Zenzai = zenzai.On(filepath.Join(t.TempDir(), "missing.gguf"), 3)

	for _, e := range []*Engine{engine(t), engine(t, WithScorerLoader(zenzai.NewLoader("")))} {
		res, err := e.Convert(context.Background(), sentence1, opts)
		require.NoError(t, err)
		assert.Equal(t, expected1, res.Candidates[0].Text)
		assert.True(t, res.Neural.Degraded)
	}
}

func TestSessionRegistry(t *testing.T) {
	e := engine(t, WithSessionCapacity(1))
	s1, err := e.NewSession(DefaultOptions())
	require.NoError(t, err)
	got, ok := e.Session(s1.ID())
	require.True(t, ok)
	assert.Same(t, s1, got)

	s2, err := e.NewSession(DefaultOptions())
	require.NoError(t, err)
	_, ok = e.Session(s1.ID())
	assert.False(t, ok)
	_, ok = e.Session(s2.ID())
	assert.True(t, ok)

	e.CloseSession(s2.ID())
	_, ok = e.Session(s2.ID())
	assert.False(t, ok)
}

func TestDebugDump(t *testing.T) {
	dir := t.TempDir()
	e := engine(t, WithDebugDump(dir))
	s, err := e.NewSession(DefaultOptions())
	require.NoError(t, err)
	typeKeys(t, s, "は", inputstyle.Direct, nil)
	_, err = os.Stat(filepath.Join(dir, s.ID()+"_1_result.json"))
	assert.NoError(t, err)
}
