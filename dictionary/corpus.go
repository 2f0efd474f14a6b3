package dictionary

import (
	"context"
	"math"
	"strings"
	"unicode"

	"kanakanji/ingest"
	"kanakanji/model"
	"kanakanji/tokenize"
)

type corpusKey struct {
	reading, surface string
	class            uint16
}

func skipToken(tok tokenize.Token) bool {
	if strings.HasPrefix(tok.POS, "記号") || strings.HasPrefix(tok.POS, "補助記号") || strings.HasPrefix(tok.POS, "空白") {
		return true
	}
	return strings.IndexFunc(tok.Text, func(r rune) bool { return !unicode.IsSpace(r) }) < 0
}

// BuildFromCorpus tokenizes sentences with tok and returns a Builder
// holding one entry per distinct (reading, surface, class). Entry cost is
// -ln(freq/total). Connection costs are -ln P(next class | previous class)
// with add-one smoothing, sentence boundaries being class 0.
func BuildFromCorpus(ctx context.Context, tok *tokenize.Tokenizer, sentences <-chan ingest.Sentence) (*Builder, error) {
	counts := make(map[corpusKey]int)
	var bigrams [model.NumClasses][model.NumClasses]int
	total := 0

	for tz := range tok.Pipeline(ctx, sentences) {
		prev := model.ClassBoundary
		for _, t := range tz.Tokens {
			if skipToken(t) {
				continue
			}
			class := tokenize.ClassOf(t.POS)
			counts[corpusKey{tokenize.TokenReading(t), t.Text, class}]++
			bigrams[prev][class]++
			prev = class
			total++
		}
		bigrams[prev][model.ClassBoundary]++
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := NewBuilder()
	for k, n := range counts {
		b.Add(model.Entry{
			Reading: k.reading,
			Surface: k.surface,
			Cost:    float32(-math.Log(float64(n) / float64(total))),
			LeftID:  k.class,
			RightID: k.class,
		})
	}

	conn := NewMatrix(int(model.NumClasses))
	for right := range model.NumClasses {
		row := 0
		for left := range model.NumClasses {
			row += bigrams[right][left]
		}
		for left := range model.NumClasses {
			p := float64(bigrams[right][left]+1) / float64(row+int(model.NumClasses))
			conn.Set(right, left, float32(-math.Log(p)))
		}
	}
	b.SetConnection(conn)
	return b, nil
}
