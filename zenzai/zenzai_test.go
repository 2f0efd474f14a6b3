package zenzai

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"kanakanji/apperr"
	"kanakanji/model"
	"kanakanji/ngram"
)

func cands(texts ...string) []model.Candidate {
	out := make([]model.Candidate, len(texts))
	for i, t := range texts {
		out[i] = model.Candidate{Text: t, Cost: float64(i + 1), Source: model.SourceLattice}
	}
	return out
}

func texts(cs []model.Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Text
	}
	return out
}

// stepScorer moves the preferred text one place up per call.
type stepScorer struct {
	want  string
	calls atomic.Int32
}

func (s *stepScorer) Refine(_ context.Context, req Request) (Response, error) {
	s.calls.Add(1)
	out := append([]model.Candidate(nil), req.Candidates...)
	for i, c := range out {
		if c.Text == s.want && i > 0 {
			out[i-1], out[i] = out[i], out[i-1]
			break
		}
	}
	return Response{Candidates: out, CallsUsed: 1, Converged: out[0].Text == s.want}, nil
}

type failScorer struct{}

func (failScorer) Refine(context.Context, Request) (Response, error) {
	return Response{}, errors.New("backend down")
}

func TestRerankDisabledPassesThrough(t *testing.T) {
	in := cands("a", "b")
	out := NewReranker(Static(&stepScorer{want: "b"})).Rerank(context.Background(), Off(), "x", in)
	assert.Equal(t, in, out.Candidates)
	assert.Zero(t, out.Calls)
	assert.False(t, out.Degraded)
}

func TestRerankBudget(t *testing.T) {
	for _, tc := range []struct {
		budget int
		top    string
		calls  int
	}{
		{1, "a", 1},
		{2, "a", 2},
		{3, "d", 3},
		{5, "d", 3},
		{Unlimited, "d", 3},
	} {
		s := &stepScorer{want: "d"}
		out := NewReranker(Static(s)).Rerank(context.Background(), On("test", tc.budget), "x", cands("a", "b", "c", "d"))
		assert.Equal(t, tc.top, out.Candidates[0].Text, "budget %d", tc.budget)
		assert.Equal(t, tc.calls, out.Calls, "budget %d", tc.budget)
		assert.Equal(t, int32(tc.calls), s.calls.Load())
		assert.Len(t, out.Candidates, 4)
		for i := 1; i < len(out.Candidates); i++ {
			assert.LessOrEqual(t, out.Candidates[i-1].Cost, out.Candidates[i].Cost)
		}
	}
}

func TestRerankBudgetMonotone(t *testing.T) {
	pos := func(cs []model.Candidate) int {
		for i, c := range cs {
			if c.Text == "e" {
				return i
			}
		}
		return -1
	}
	prev := 5
	for _, budget := range []int{1, 2, 3, 5, Unlimited} {
		out := NewReranker(Static(&stepScorer{want: "e"})).Rerank(context.Background(), On("test", budget), "x", cands("a", "b", "c", "d", "e"))
		p := pos(out.Candidates)
		assert.LessOrEqual(t, p, prev, "budget %d", budget)
		prev = p
	}
	assert.Zero(t, prev)
}

func TestRerankDegrades(t *testing.T) {
	in := cands("a", "b")

	out := NewReranker(Static(failScorer{})).Rerank(context.Background(), On("test", 3), "x", in)
	assert.True(t, out.Degraded)
	assert.ErrorIs(t, out.Err, apperr.ErrNeuralUnavailable)
	assert.Equal(t, texts(in), texts(out.Candidates))

	out = NewReranker(Static(&stepScorer{want: "b"})).Rerank(context.Background(), On("test", 0), "x", in)
	assert.True(t, out.Degraded)
	assert.Equal(t, in, out.Candidates)

	out = NewReranker(NewLoader("")).Rerank(context.Background(), On(filepath.Join(t.TempDir(), "missing.gguf"), 3), "x", in)
	assert.True(t, out.Degraded)
	assert.Equal(t, in, out.Candidates)
}

type blockingScorer struct{ release chan struct{} }

func (b blockingScorer) Refine(ctx context.Context, req Request) (Response, error) {
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return Response{}, ctx.Err()
}

func TestRerankCanceledReturnsBestSoFar(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	b := blockingScorer{release: make(chan struct{})}
	defer close(b.release)

	in := cands("a", "b")
	out := NewReranker(Static(b)).Rerank(ctx, On("test", 3), "x", in)
	assert.Equal(t, texts(in), texts(out.Candidates))
}

// cancelingScorer cancels the request context on its first call and always
// rotates the list, so only cancellation can end the loop early.
type cancelingScorer struct {
	cancel context.CancelFunc
	calls  *atomic.Int32
}

func (s cancelingScorer) Refine(_ context.Context, req Request) (Response, error) {
	s.calls.Add(1)
	s.cancel()
	rotated := append(req.Candidates[1:len(req.Candidates):len(req.Candidates)], req.Candidates[0])
	return Response{Candidates: rotated, CallsUsed: 1}, nil
}

func TestRerankStopsCallingAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := cancelingScorer{cancel: cancel, calls: new(atomic.Int32)}

	NewReranker(Static(s)).Rerank(ctx, On("test", 10), "x", cands("a", "b", "c"))
	assert.Never(t, func() bool { return s.calls.Load() > 1 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.EqualValues(t, 1, s.calls.Load())
}

func TestNGramScorerPrefersFluentText(t *testing.T) {
	tr, err := ngram.NewTrainer(3, ngram.DefaultD)
	require.NoError(t, err)
	_, err = tr.Train(context.Background(), strings.NewReader("歯科医に行く\n歯科医で診てもらう\n歯科医\n"))
	require.NoError(t, err)
	pattern := filepath.Join(t.TempDir(), "lm")
	require.NoError(t, tr.Save(pattern))

	loader := NewLoader("")
	cfg := On("ngram:"+pattern, 5)
	out := NewReranker(loader).Rerank(context.Background(), cfg, "しかい", cands("司会", "視界", "歯科医"))
	assert.Equal(t, "歯科医", out.Candidates[0].Text)
	assert.Equal(t, model.SourceNeural, out.Candidates[0].Source)
	assert.Equal(t, 1, out.Calls)
	assert.True(t, out.Converged)

	s1, err := loader.Scorer(context.Background(), cfg)
	require.NoError(t, err)
	s2, err := loader.Scorer(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, s1, s2)
}

func TestNGramScorerLatticeWeight(t *testing.T) {
	tr, err := ngram.NewTrainer(3, ngram.DefaultD)
	require.NoError(t, err)
	_, err = tr.Train(context.Background(), strings.NewReader("歯科医に行く\n歯科医\n"))
	require.NoError(t, err)
	pattern := filepath.Join(t.TempDir(), "lm")
	require.NoError(t, tr.Save(pattern))

	loader := NewLoader("")
	cfg := On("ngram:"+pattern, 5)
	cfg.LatticeWeight = 1000
	s, err := loader.Scorer(context.Background(), cfg)
	require.NoError(t, err)
	require.IsType(t, NGramScorer{}, s)
	assert.Equal(t, 1000.0, s.(NGramScorer).LatticeWeight)

	out := NewReranker(loader).Rerank(context.Background(), cfg, "しかい", cands("司会", "視界", "歯科医"))
	assert.Equal(t, []string{"司会", "視界", "歯科医"}, texts(out.Candidates))

	plain, err := loader.Scorer(context.Background(), On("ngram:"+pattern, 5))
	require.NoError(t, err)
	assert.Zero(t, plain.(NGramScorer).LatticeWeight)
}

func TestLoaderErrors(t *testing.T) {
	l := NewLoader("")
	_, err := l.Scorer(context.Background(), On("ngram:"+filepath.Join(t.TempDir(), "nope"), 1))
	assert.ErrorIs(t, err, apperr.ErrLoadFailure)

	_, err = l.Scorer(context.Background(), On("genai:gemini-2.0-flash", 1))
	assert.Error(t, err)

	_, err = l.Scorer(context.Background(), On("", 1))
	assert.Error(t, err)

	weights := filepath.Join("..", "go.mod")
	_, err = l.Scorer(context.Background(), On(weights, 1))
	assert.ErrorIs(t, err, ErrNoBackend)
}

func TestApplyReply(t *testing.T) {
	in := cands("司会", "視界", "歯科医")
	assert.Equal(t, []string{"歯科医", "司会", "視界"}, texts(applyReply("3", in, false)))
	assert.Equal(t, []string{"視界", "司会", "歯科医"}, texts(applyReply("視界\n", in, false)))
	assert.Equal(t, texts(in), texts(applyReply("9", in, false)))
	assert.Equal(t, texts(in), texts(applyReply("しかい医", in, false)))

	rich := applyReply("歯科医院", in, true)
	assert.Equal(t, "歯科医院", rich[0].Text)
	assert.Equal(t, model.SourceNeural, rich[0].Source)
	assert.Len(t, rich, 4)
}

type fakeModels struct {
	reply  string
	prompt string
}

func (f *fakeModels) GenerateContent(_ context.Context, _ string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.prompt = contents[0].Parts[0].Text
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{{Text: f.reply}}},
	}}}, nil
}

func TestGenAIScorer(t *testing.T) {
	fm := &fakeModels{reply: " 2 "}
	s := &GenAIScorer{models: fm, model: "test"}
	resp, err := s.Refine(context.Background(), Request{Reading: "しかい", Candidates: cands("司会", "歯科医"), Version: V3})
	require.NoError(t, err)
	assert.Equal(t, []string{"歯科医", "司会"}, texts(resp.Candidates))
	assert.True(t, resp.Converged)
	assert.Contains(t, fm.prompt, "読み: しかい")
	assert.Contains(t, fm.prompt, "2. 歯科医")

	_, err = s.Refine(context.Background(), Request{Candidates: cands("a"), Version: V1})
	require.NoError(t, err)
	assert.NotContains(t, fm.prompt, "読み")
}

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("")
	require.NoError(t, err)
	assert.Equal(t, V3, v)
	v, err = ParseVersion("v2")
	require.NoError(t, err)
	assert.Equal(t, V2, v)
	_, err = ParseVersion("v9")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}
