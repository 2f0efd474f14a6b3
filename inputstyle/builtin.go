package inputstyle

import (
	"maps"
	"slices"
	"strings"
)

var vowels = []string{"a", "i", "u", "e", "o"}

// romanRows lists consonant prefixes and the kana for a, i, u, e, o.
// An empty slot means the syllable is not defined.
var romanRows = []struct {
	prefix string
	kana   [5]string
}{
	{"", [5]string{"あ", "い", "う", "え", "お"}},
	{"k", [5]string{"か", "き", "く", "け", "こ"}},
	{"s", [5]string{"さ", "し", "す", "せ", "そ"}},
	{"t", [5]string{"た", "ち", "つ", "て", "と"}},
	{"n", [5]string{"な", "に", "ぬ", "ね", "の"}},
	{"h", [5]string{"は", "ひ", "ふ", "へ", "ほ"}},
	{"m", [5]string{"ま", "み", "む", "め", "も"}},
	{"y", [5]string{"や", "い", "ゆ", "いぇ", "よ"}},
	{"r", [5]string{"ら", "り", "る", "れ", "ろ"}},
	{"w", [5]string{"わ", "うぃ", "う", "うぇ", "を"}},
	{"g", [5]string{"が", "ぎ", "ぐ", "げ", "ご"}},
	{"z", [5]string{"ざ", "じ", "ず", "ぜ", "ぞ"}},
	{"d", [5]string{"だ", "ぢ", "づ", "で", "ど"}},
	{"b", [5]string{"ば", "び", "ぶ", "べ", "ぼ"}},
	{"p", [5]string{"ぱ", "ぴ", "ぷ", "ぺ", "ぽ"}},
	{"f", [5]string{"ふぁ", "ふぃ", "ふ", "ふぇ", "ふぉ"}},
	{"j", [5]string{"じゃ", "じ", "じゅ", "じぇ", "じょ"}},
	{"v", [5]string{"ゔぁ", "ゔぃ", "ゔ", "ゔぇ", "ゔぉ"}},
	{"c", [5]string{"か", "し", "く", "せ", "こ"}},
	{"q", [5]string{"くぁ", "くぃ", "く", "くぇ", "くぉ"}},
	{"x", [5]string{"ぁ", "ぃ", "ぅ", "ぇ", "ぉ"}},
	{"l", [5]string{"ぁ", "ぃ", "ぅ", "ぇ", "ぉ"}},
	{"sh", [5]string{"しゃ", "し", "しゅ", "しぇ", "しょ"}},
	{"ch", [5]string{"ちゃ", "ち", "ちゅ", "ちぇ", "ちょ"}},
	{"ts", [5]string{"つぁ", "つぃ", "つ", "つぇ", "つぉ"}},
	{"th", [5]string{"てゃ", "てぃ", "てゅ", "てぇ", "てょ"}},
	{"dh", [5]string{"でゃ", "でぃ", "でゅ", "でぇ", "でょ"}},
	{"wh", [5]string{"うぁ", "うぃ", "う", "うぇ", "うぉ"}},
	{"xy", [5]string{"ゃ", "ぃ", "ゅ", "ぇ", "ょ"}},
	{"ly", [5]string{"ゃ", "ぃ", "ゅ", "ぇ", "ょ"}},
}

// youon rows: consonant + y + vowel gives the i-column kana plus a small ya/yu/yo.
var youon = map[string]string{
	"ky": "き", "gy": "ぎ", "sy": "し", "zy": "じ", "ty": "ち", "dy": "ぢ",
	"ny": "に", "hy": "ひ", "by": "び", "py": "ぴ", "my": "み", "ry": "り",
	"cy": "ち", "jy": "じ", "fy": "ふ", "vy": "ゔ",
}

var smallY = [5]string{"ゃ", "ぃ", "ゅ", "ぇ", "ょ"}

// RomanRules returns the romanized-kana rules in a stable order.
func RomanRules() []Rule {
	var rules []Rule
	add := func(key, value string) {
		rules = append(rules, Rule{Key: Runes(key), Value: Runes(value)})
	}
	for _, row := range romanRows {
		for i, v := range vowels {
			if row.kana[i] != "" {
				add(row.prefix+v, row.kana[i])
			}
		}
	}
	for _, prefix := range sortedKeys(youon) {
		for i, v := range vowels {
			add(prefix+v, youon[prefix]+smallY[i])
		}
	}
	for _, pair := range [][2]string{
		{"shi", "し"}, {"chi", "ち"}, {"tsu", "つ"}, {"fu", "ふ"}, {"ji", "じ"},
		{"nn", "ん"}, {"n'", "ん"}, {"xn", "ん"},
		{"xtu", "っ"}, {"ltu", "っ"}, {"xtsu", "っ"}, {"ltsu", "っ"},
		{"xwa", "ゎ"}, {"lwa", "ゎ"}, {"xka", "ゕ"}, {"xke", "ゖ"},
		{"-", "ー"}, {",", "、"}, {".", "。"}, {"[", "「"}, {"]", "」"},
		{"~", "〜"}, {"/", "・"}, {"!", "！"}, {"?", "？"},
	} {
		add(pair[0], pair[1])
	}
	// n before a consonant or punctuation is ん.
	for _, c := range "bcdfghjklmpqrstvwxz-,.!?" {
		add("n"+string(c), "ん"+string(c))
	}
	// A doubled consonant is a small tsu.
	for _, c := range "bcdfghjkmpqrstvwyz" {
		add(string(c)+string(c), "っ"+string(c))
	}
	return rules
}

var jisKeys = map[rune]string{
	'1': "ぬ", '2': "ふ", '3': "あ", '4': "う", '5': "え", '6': "お", '7': "や", '8': "ゆ", '9': "よ", '0': "わ",
	'-': "ほ", '^': "へ", '\\': "ー",
	'q': "た", 'w': "て", 'e': "い", 'r': "す", 't': "か", 'y': "ん", 'u': "な", 'i': "に", 'o': "ら", 'p': "せ",
	'@': "゛", '[': "゜",
	'a': "ち", 's': "と", 'd': "し", 'f': "は", 'g': "き", 'h': "く", 'j': "ま", 'k': "の", 'l': "り", ';': "れ", ':': "け", ']': "む",
	'z': "つ", 'x': "さ", 'c': "そ", 'v': "ひ", 'b': "こ", 'n': "み", 'm': "も", ',': "ね", '.': "る", '/': "め", '_': "ろ",
}

var jisShift = map[rune]string{
	'3': "ぁ", '4': "ぅ", '5': "ぇ", '6': "ぉ", '7': "ゃ", '8': "ゅ", '9': "ょ", '0': "を",
	'e': "ぃ", 'z': "っ", ',': "、", '.': "。", '/': "・", '[': "「", ']': "」",
}

const (
	voiceable     = "かきくけこさしすせそたちつてとはひふへほう"
	voiced        = "がぎぐげござじずぜぞだぢづでどばびぶべぼゔ"
	semiVoiceable = "はひふへほ"
	semiVoiced    = "ぱぴぷぺぽ"
)

// KanaJISRules maps a JIS kana keyboard to kana. The dakuten and handakuten
// keys combine with the preceding kana.
func KanaJISRules() []Rule {
	var rules []Rule
	for _, k := range sortedKeys(jisKeys) {
		rules = append(rules, Rule{Key: []Elem{R(k)}, Value: Runes(jisKeys[k])})
	}
	for _, k := range sortedKeys(jisShift) {
		rules = append(rules, Rule{Key: []Elem{Shift(k)}, Value: Runes(jisShift[k])})
	}
	base, voice := []rune(voiceable), []rune(voiced)
	for i, b := range base {
		rules = append(rules, Rule{Key: []Elem{R(b), R('@')}, Value: []Elem{R(voice[i])}})
	}
	base, voice = []rune(semiVoiceable), []rune(semiVoiced)
	for i, b := range base {
		rules = append(rules, Rule{Key: []Elem{R(b), R('[')}, Value: []Elem{R(voice[i])}})
	}
	return rules
}

func sortedKeys[K rune | string, V any](m map[K]V) []K {
	return slices.Sorted(maps.Keys(m))
}

// Builtin table identifiers.
const (
	TableRoman   TableID = "roman2kana"
	TableKanaJIS TableID = "kana-jis"
	TableEmpty   TableID = "empty"
)

func builtinTables() map[TableID]*Table {
	return map[TableID]*Table{
		TableRoman:   NewTable(string(TableRoman), RomanRules()),
		TableKanaJIS: NewTable(string(TableKanaJIS), KanaJISRules()),
		TableEmpty:   NewTable(string(TableEmpty), nil),
	}
}

func isBuiltin(id TableID) bool {
	return strings.EqualFold(string(id), string(TableRoman)) ||
		strings.EqualFold(string(id), string(TableKanaJIS)) ||
		strings.EqualFold(string(id), string(TableEmpty))
}
