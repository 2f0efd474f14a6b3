package inputstyle

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kanakanji/apperr"
)

func typeAll(t *testing.T, r Resolver, keys string) Resolution {
	t.Helper()
	var res Resolution
	for _, k := range keys {
		res = r.Resolve(res.Text, Key{Rune: k})
	}
	return res
}

func TestRomanResolver(t *testing.T) {
	m := NewManager()
	r, err := m.Resolver(Roman2Kana)
	require.NoError(t, err)

	tests := map[string]string{
		"kanji":         "かんじ",
		"nyuuryoku":     "にゅうりょく",
		"tukatte":       "つかって",
		"shinbunn":      "しんぶん",
		"kon'ya":        "こんや",
		"sisutemu":      "しすてむ",
		"xtu":           "っ",
		"chotto-":       "ちょっとー",
		"kyouha,":       "きょうは、",
		"utikondeimasu": "うちこんでいます",
		"konobunshouhakanjihenkangaseikakutoiukotodewadainonihongonyuuryokusisutemuwotukatteutikondeimasu": "このぶんしょうはかんじへんかんがせいかくということでわだいのにほんごにゅうりょくしすてむをつかってうちこんでいます",
	}
	for in, want := range tests {
		res := typeAll(t, r, in)
		assert.Equal(t, want, string(res.Text), in)
		assert.False(t, res.Incomplete, in)
	}
}

func TestRomanIncomplete(t *testing.T) {
	r, err := NewManager().Resolver(Roman2Kana)
	require.NoError(t, err)

	res := typeAll(t, r, "kak")
	assert.Equal(t, "かk", string(res.Text))
	assert.True(t, res.Incomplete)

	res = typeAll(t, r, "kan")
	assert.Equal(t, "かn", string(res.Text))
	assert.True(t, res.Incomplete)

	res = typeAll(t, r, "kann")
	assert.Equal(t, "かん", string(res.Text))
	assert.False(t, res.Incomplete)
}

func TestKanaJISResolver(t *testing.T) {
	r, err := NewManager().Resolver(Mapped(TableKanaJIS))
	require.NoError(t, err)

	assert.Equal(t, "がっこう", func() string {
		var buf []rune
		for _, k := range []Key{{Rune: 't'}, {Rune: '@'}, {Rune: 'z', Shift: true}, {Rune: 'b'}, {Rune: '4'}} {
			buf = r.Resolve(buf, k).Text
		}
		return string(buf)
	}())
	assert.Equal(t, "ぱ", string(typeAll(t, r, "f[").Text))
	assert.Equal(t, "゛", string(typeAll(t, r, "@").Text))
}

func TestDirectResolver(t *testing.T) {
	r, err := NewManager().Resolver(Direct)
	require.NoError(t, err)
	res := typeAll(t, r, "はがka")
	assert.Equal(t, "はがka", string(res.Text))
	assert.False(t, res.Incomplete)
}

func TestWildcardPrefersExactMatch(t *testing.T) {
	src := "n{any character}\tん{any character}\nna\tな\na\tあ\nnn\tん\n"
	table, err := Parse("custom", strings.NewReader(src))
	require.NoError(t, err)
	r := tableResolver{table: table}

	assert.Equal(t, "んk", string(typeAll(t, r, "nk").Text))
	assert.Equal(t, "な", string(typeAll(t, r, "na").Text))
	assert.Equal(t, "ん", string(typeAll(t, r, "nn").Text))
}

func TestSeparatorRuleAppliesOnClose(t *testing.T) {
	src := "n{composition-separator}\tん\nna\tな\n"
	table, err := Parse("sep", strings.NewReader(src))
	require.NoError(t, err)
	r := tableResolver{table: table}

	res := typeAll(t, r, "n")
	assert.Equal(t, "n", string(res.Text))
	assert.Equal(t, "ん", string(r.Close(res.Text)))
	assert.Equal(t, "な", string(r.Close(typeAll(t, r, "na").Text)))
}

func TestCheckFormat(t *testing.T) {
	src := strings.Join([]string{
		"# comment",
		"a\tあ",
		"ka\tか\textra",
		"{unknown}\tx",
		"x\t{any character",
		"{shift 0}a\tb",
		"a\tア",
		"",
		"{lbracket}\t「",
		"x\t{shift 0}",
	}, "\n")
	errs, err := CheckFormat(strings.NewReader(src))
	require.NoError(t, err)

	want := []FormatError{
		{Line: 2, Kind: InvalidTabCount},
		{Line: 3, Kind: UnknownBraceToken, Side: SideKey},
		{Line: 4, Kind: UnclosedBrace, Side: SideValue},
		{Line: 5, Kind: ShiftTokenNotAtTail},
		{Line: 6, Kind: DuplicateRule, FirstLine: 1},
		{Line: 9, Kind: UnknownBraceToken, Side: SideValue},
	}
	assert.Equal(t, want, errs)
	assert.Equal(t, "line 6: duplicate rule, first defined at line 1", errs[4].Error())
}

func TestParseRejectsBadTable(t *testing.T) {
	_, err := Parse("bad", strings.NewReader("a\tb\tc\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrLoadFailure))
}

func TestExportThenParse(t *testing.T) {
	src := "{lbracket}\t「\nn{any character}\tん{any character}\nz{shift _}\t→\n"
	table, err := Parse("custom", strings.NewReader(src))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Export(table, &buf))
	assert.Equal(t, src, buf.String())

	again, err := Parse("custom", &buf)
	require.NoError(t, err)
	assert.Equal(t, table.Rules(), again.Rules())
}

func TestManagerLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "azik.tsv")
	require.NoError(t, os.WriteFile(path, []byte("kz\tかん\nka\tか\n"), 0o644))

	m := NewManager()
	require.NoError(t, m.LoadFile("azik", path))
	r, err := m.Resolver(Mapped("azik"))
	require.NoError(t, err)
	assert.Equal(t, "かんか", string(typeAll(t, r, "kzka").Text))

	assert.Error(t, m.Register(TableRoman, table(t)))
	_, err = m.Resolver(Mapped("missing"))
	assert.True(t, errors.Is(err, apperr.ErrInputRejected))
	assert.Error(t, m.LoadFile("x", filepath.Join(t.TempDir(), "none.tsv")))
}

func table(t *testing.T) *Table {
	t.Helper()
	return NewTable("t", []Rule{{Key: Runes("a"), Value: Runes("あ")}})
}

func TestParseStyle(t *testing.T) {
	for in, want := range map[string]Style{
		"roman":      Roman2Kana,
		"kana":       Direct,
		"kana-jis":   Mapped(TableKanaJIS),
		"table:azik": Mapped("azik"),
	} {
		got, err := ParseStyle(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseStyle("dvorak")
	assert.True(t, errors.Is(err, apperr.ErrInvalidArgument))
}
