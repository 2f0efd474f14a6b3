// Package tokenize wraps the kagome morphological analyzer. It supplies the
// readings and part-of-speech classes used to build dictionaries and
// evaluation sets from plain Japanese text.
package tokenize

import (
	"context"
	"strings"
	"sync"

	"github.com/ikawaha/kagome-dict/dict"
	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome-dict/uni"
	"github.com/ikawaha/kagome/v2/tokenizer"

	"kanakanji/apperr"
	"kanakanji/ingest"
	"kanakanji/kana"
	"kanakanji/logger"
	"kanakanji/model"
)

// Token represents a morpheme produced by the tokenizer.
type Token = model.Token

// Tokenized pairs an ingest.Sentence with the tokens produced for it.
type Tokenized struct {
	Sentence ingest.Sentence
	Tokens   []Token
}

const (
	DictIPA = "ipa"
	DictUni = "uni"
)

// Tokenizer is safe for concurrent use.
type Tokenizer struct {
	name string
	kg   *tokenizer.Tokenizer
}

func systemDict(name string) (*dict.Dict, error) {
	switch name {
	case DictIPA, "":
		return ipa.Dict(), nil
	case DictUni:
		return uni.Dict(), nil
	default:
		return nil, apperr.Errorf(apperr.InvalidArgument, "tokenize.New", "unknown system dictionary %q", name)
	}
}

// New loads the named kagome system dictionary ("ipa" or "uni").
func New(name string) (*Tokenizer, error) {
	d, err := systemDict(name)
	if err != nil {
		return nil, err
	}
	kg, err := tokenizer.New(d, tokenizer.OmitBosEos())
	if err != nil {
		return nil, apperr.New(apperr.LoadFailure, "tokenize.New", err)
	}
	if name == "" {
		name = DictIPA
	}
	return &Tokenizer{name: name, kg: kg}, nil
}

var (
	defaultOnce sync.Once
	defaultTok  *Tokenizer
	defaultErr  error
)

// Default returns a shared IPA tokenizer, loading it on first use.
func Default() (*Tokenizer, error) {
	defaultOnce.Do(func() {
		defaultTok, defaultErr = New(DictIPA)
	})
	return defaultTok, defaultErr
}

func (t *Tokenizer) Name() string { return t.name }

func convertKagomeTokens(ktoks []tokenizer.Token) []Token {
	out := make([]Token, 0, len(ktoks))
	for _, kt := range ktoks {
		lemma, _ := kt.BaseForm()
		if lemma == "" || lemma == "*" {
			lemma = kt.Surface
		}
		reading, ok := kt.Reading()
		if !ok || reading == "*" {
			reading = ""
		}
		pron, ok := kt.Pronunciation()
		if !ok || pron == "*" {
			pron = ""
		}
		out = append(out, Token{
			Text:          kt.Surface,
			Lemma:         lemma,
			POS:           strings.Join(kt.POS(), ","),
			Start:         kt.Start,
			End:           kt.End,
			Reading:       reading,
			Pronunciation: pron,
			Known:         kt.Class == tokenizer.KNOWN,
		})
	}
	return out
}

// Tokenize segments text in normal mode.
func (t *Tokenizer) Tokenize(ctx context.Context, text string) ([]Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}
	return convertKagomeTokens(t.kg.Tokenize(text)), nil
}

// TokenizeModes runs the analyzer in normal, search and extended modes.
func (t *Tokenizer) TokenizeModes(ctx context.Context, text string) (map[string][]Token, error) {
	res := make(map[string][]Token)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if text == "" {
		return res, nil
	}
	res["normal"] = convertKagomeTokens(t.kg.Analyze(text, tokenizer.Normal))
	res["search"] = convertKagomeTokens(t.kg.Analyze(text, tokenizer.Search))
	res["extended"] = convertKagomeTokens(t.kg.Analyze(text, tokenizer.Extended))
	return res, nil
}

// TokenReading is the hiragana reading of tok. Tokens without a dictionary
// reading fall back to their surface.
func TokenReading(tok Token) string {
	if tok.Reading != "" {
		return kana.ToHiragana(tok.Reading)
	}
	return kana.ToHiragana(tok.Text)
}

// Reading returns the hiragana reading of the whole text.
func (t *Tokenizer) Reading(ctx context.Context, text string) (string, error) {
	toks, err := t.Tokenize(ctx, text)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, tok := range toks {
		b.WriteString(TokenReading(tok))
	}
	return b.String(), nil
}

// ClassOf maps a comma-joined POS string to a connection class.
func ClassOf(pos string) uint16 {
	head, _, _ := strings.Cut(pos, ",")
	switch head {
	case "名詞", "代名詞":
		return model.ClassNoun
	case "助詞":
		return model.ClassParticle
	case "動詞", "形容詞", "形状詞", "形容動詞":
		return model.ClassPredicate
	case "助動詞":
		return model.ClassAuxiliary
	case "連体詞":
		return model.ClassPrenominal
	default:
		return model.ClassOther
	}
}

// Stream tokenizes text and publishes its tokens one by one.
func (t *Tokenizer) Stream(ctx context.Context, text string) (<-chan Token, <-chan error) {
	out := make(chan Token, 8)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)
		toks, err := t.Tokenize(ctx, text)
		if err != nil {
			errs <- err
			return
		}
		for _, tk := range toks {
			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			case out <- tk:
			}
		}
	}()
	return out, errs
}

// Pipeline consumes sentences until in is closed or ctx is done and
// publishes one Tokenized per sentence. The returned channel is closed when
// the goroutine exits.
func (t *Tokenizer) Pipeline(ctx context.Context, in <-chan ingest.Sentence) <-chan Tokenized {
	out := make(chan Tokenized, 8)
	log := logger.With("tokenize")
	go func() {
		defer close(out)
		log.Debug().Str("dict", t.name).Msg("pipeline started")
		for {
			select {
			case <-ctx.Done():
				log.Debug().Msg("context done, pipeline exiting")
				return
			case s, ok := <-in:
				if !ok {
					return
				}
				toks, err := t.Tokenize(ctx, s.Text)
				if err != nil {
					log.Warn().Err(err).Str("sentence", s.ID).Msg("tokenize failed")
					continue
				}
				select {
				case <-ctx.Done():
					return
				case out <- Tokenized{Sentence: s, Tokens: toks}:
				}
			}
		}
	}()
	return out
}
