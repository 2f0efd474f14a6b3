package learning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kanakanji/apperr"
	"kanakanji/model"
)

func open(t *testing.T, opts Options) *Memory {
	t.Helper()
	m, err := Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func entry(reading, surface string, cost float32) model.Entry {
	return model.Entry{Reading: reading, Surface: surface, Cost: cost, LeftID: 1, RightID: 1}
}

func TestRememberLowersCost(t *testing.T) {
	m := open(t, Options{InMemory: true})
	require.NoError(t, m.Remember(entry("しかい", "視界", 3.6)))

	got, err := m.Entries()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "視界", got[0].Surface)
	assert.InDelta(t, 2.6, got[0].Cost, 1e-6)
	assert.Equal(t, model.TagLearned, got[0].Tag)
	assert.Equal(t, uint16(1), got[0].LeftID)

	for range 10 {
		require.NoError(t, m.Remember(entry("しかい", "視界", 3.6)))
	}
	got, err = m.Entries()
	require.NoError(t, err)
	assert.InDelta(t, 0, got[0].Cost, 1e-6)

	require.NoError(t, m.Remember(model.Entry{Reading: "", Surface: "x"}))
	assert.Equal(t, 1, m.Len())
}

func TestPruneEvictsLeastRecentlyUsed(t *testing.T) {
	m := open(t, Options{InMemory: true, MaxCount: 2})
	require.NoError(t, m.Remember(entry("ねこ", "猫", 3)))
	require.NoError(t, m.Remember(entry("かに", "蟹", 4)))
	require.NoError(t, m.Remember(entry("ねこ", "猫", 3)))
	assert.Equal(t, 2, m.Len())
	require.NoError(t, m.Remember(entry("は", "歯", 3)))
	assert.Equal(t, 2, m.Len())

	got, err := m.Entries()
	require.NoError(t, err)
	var surfaces []string
	for _, e := range got {
		surfaces = append(surfaces, e.Surface)
	}
	assert.ElementsMatch(t, []string{"猫", "歯"}, surfaces)
}

func TestPersistAndReset(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(Options{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, m.Remember(entry("かに", "蟹", 4)))
	require.NoError(t, m.Close())

	m = open(t, Options{Dir: dir})
	got, err := m.Entries()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "かに", got[0].Reading)
	assert.Equal(t, 1, m.Len())

	require.NoError(t, m.Reset())
	assert.Zero(t, m.Len())
}

func TestOpenRequiresDir(t *testing.T) {
	_, err := Open(Options{})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestType(t *testing.T) {
	for _, tc := range []struct {
		in            string
		want          Type
		reads, writes bool
	}{
		{"", InputAndOutput, true, true},
		{"input_and_output", InputAndOutput, true, true},
		{"only_output", OnlyOutput, true, false},
		{"nothing", Nothing, false, false},
	} {
		got, err := ParseType(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
		assert.Equal(t, tc.reads, got.Reads())
		assert.Equal(t, tc.writes, got.Writes())
	}
	_, err := ParseType("always")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}
