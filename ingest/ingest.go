// Package ingest reads corpus files line by line into sentences.
package ingest

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sentence is one non-empty corpus line.
type Sentence struct {
	ID        string    `json:"id"`
	Line      int       `json:"line"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// maxLine bounds a single corpus line.
const maxLine = 1 << 20

// NewSentence trims text and wraps it with a fresh ID.
func NewSentence(line int, text string) (Sentence, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Sentence{}, errors.New("empty sentence")
	}
	return Sentence{
		ID:        uuid.NewString(),
		Line:      line,
		Text:      trimmed,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Stream publishes the non-empty lines of r. Both channels are closed when
// reading stops; at most one error is sent.
func Stream(ctx context.Context, r io.Reader) (<-chan Sentence, <-chan error) {
	out := make(chan Sentence, 100)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), maxLine)
		for line := 0; sc.Scan(); line++ {
			s, err := NewSentence(line, sc.Text())
			if err != nil {
				continue
			}
			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			case out <- s:
			}
		}
		if err := sc.Err(); err != nil {
			errs <- err
		}
	}()
	return out, errs
}

// ReadAll collects every sentence of r.
func ReadAll(ctx context.Context, r io.Reader) ([]Sentence, error) {
	sentences, errs := Stream(ctx, r)
	var out []Sentence
	for s := range sentences {
		out = append(out, s)
	}
	if err := <-errs; err != nil {
		return out, err
	}
	return out, nil
}
