package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadAllSkipsBlankLines(t *testing.T) {
	src := "これはペンです\n\n  歯が痛い  \n\t\nおわり"
	got, err := ReadAll(context.Background(), strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "これはペンです", got[0].Text)
	assert.Equal(t, 0, got[0].Line)
	assert.Equal(t, "歯が痛い", got[1].Text)
	assert.Equal(t, 2, got[1].Line)
	assert.Equal(t, 4, got[2].Line)
	assert.NotEqual(t, got[0].ID, got[1].ID)
}

func TestNewSentenceRejectsEmpty(t *testing.T) {
	_, err := NewSentence(0, "   ")
	assert.Error(t, err)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestReadAllReportsReaderError(t *testing.T) {
	_, err := ReadAll(context.Background(), failingReader{})
	assert.EqualError(t, err, "disk gone")
}

func TestStreamStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := strings.Repeat("あ\n", 1000)
	_, err := ReadAll(ctx, strings.NewReader(src))
	assert.ErrorIs(t, err, context.Canceled)
}
