package tokenize

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kanakanji/ingest"
	"kanakanji/model"
)

func surfaces(toks []Token) []string {
	out := make([]string, len(toks))
	for i, tk := range toks {
		out[i] = tk.Text
	}
	return out
}

func TestTokenize(t *testing.T) {
	tok, err := Default()
	require.NoError(t, err)

	toks, err := tok.Tokenize(context.Background(), "すもももももももものうち")
	require.NoError(t, err)
	assert.Equal(t, []string{"すもも", "も", "もも", "も", "もも", "の", "うち"}, surfaces(toks))
	assert.Equal(t, "スモモ", toks[0].Reading)
	assert.True(t, toks[0].Known)
	assert.Equal(t, model.ClassNoun, ClassOf(toks[0].POS))
	assert.Equal(t, model.ClassParticle, ClassOf(toks[1].POS))
}

func TestReading(t *testing.T) {
	tok, err := Default()
	require.NoError(t, err)
	got, err := tok.Reading(context.Background(), "東京")
	require.NoError(t, err)
	assert.Equal(t, "とうきょう", got)
}

func TestTokenizeModes(t *testing.T) {
	tok, err := Default()
	require.NoError(t, err)
	modes, err := tok.TokenizeModes(context.Background(), "日本語")
	require.NoError(t, err)
	assert.Len(t, modes, 3)
	for name, toks := range modes {
		assert.Equal(t, "日本語", strings.Join(surfaces(toks), ""), name)
	}
}

func TestClassOf(t *testing.T) {
	assert.Equal(t, model.ClassPredicate, ClassOf("動詞,自立,*,*"))
	assert.Equal(t, model.ClassAuxiliary, ClassOf("助動詞"))
	assert.Equal(t, model.ClassPrenominal, ClassOf("連体詞"))
	assert.Equal(t, model.ClassOther, ClassOf("記号,一般"))
}

func TestUnknownDictionary(t *testing.T) {
	_, err := New("jumandic")
	assert.Error(t, err)
}

func TestPipeline(t *testing.T) {
	tok, err := Default()
	require.NoError(t, err)

	ctx := context.Background()
	sentences, errs := ingest.Stream(ctx, strings.NewReader("歯が痛い\n\n日本語"))
	var got []Tokenized
	for tz := range tok.Pipeline(ctx, sentences) {
		got = append(got, tz)
	}
	require.NoError(t, <-errs)
	require.Len(t, got, 2)
	assert.Equal(t, "歯が痛い", got[0].Sentence.Text)
	assert.Equal(t, "歯が痛い", strings.Join(surfaces(got[0].Tokens), ""))
}

func TestStream(t *testing.T) {
	tok, err := Default()
	require.NoError(t, err)
	out, errs := tok.Stream(context.Background(), "すもももももも")
	var n int
	for range out {
		n++
	}
	require.NoError(t, <-errs)
	assert.Positive(t, n)
}
