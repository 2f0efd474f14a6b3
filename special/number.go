package special

import (
	"strconv"
	"strings"

	"kanakanji/kana"
	"kanakanji/model"
)

type numeralKind uint8

const (
	numeralDigit numeralKind = iota
	numeralPlace             // 十 百 千
	numeralGroup             // 万 億 兆
)

type numeral struct {
	kind  numeralKind
	value int64 // digit value, place multiplier, or group rank (1 = 万)
	kanji string
}

// numeralWords is matched longest first.
var numeralWords = []struct {
	kana string
	n    numeral
}{
	{"きゅう", numeral{numeralDigit, 9, "九"}},
	{"じゅう", numeral{numeralPlace, 10, "十"}},
	{"じゅっ", numeral{numeralPlace, 10, "十"}},
	{"ひゃく", numeral{numeralPlace, 100, "百"}},
	{"びゃく", numeral{numeralPlace, 100, "百"}},
	{"ぴゃく", numeral{numeralPlace, 100, "百"}},
	{"ちょう", numeral{numeralGroup, 3, "兆"}},
	{"いち", numeral{numeralDigit, 1, "一"}},
	{"いっ", numeral{numeralDigit, 1, "一"}},
	{"さん", numeral{numeralDigit, 3, "三"}},
	{"よん", numeral{numeralDigit, 4, "四"}},
	{"しち", numeral{numeralDigit, 7, "七"}},
	{"なな", numeral{numeralDigit, 7, "七"}},
	{"はち", numeral{numeralDigit, 8, "八"}},
	{"はっ", numeral{numeralDigit, 8, "八"}},
	{"ろく", numeral{numeralDigit, 6, "六"}},
	{"ろっ", numeral{numeralDigit, 6, "六"}},
	{"れい", numeral{numeralDigit, 0, "〇"}},
	{"ぜろ", numeral{numeralDigit, 0, "〇"}},
	{"まる", numeral{numeralDigit, 0, "〇"}},
	{"せん", numeral{numeralPlace, 1000, "千"}},
	{"ぜん", numeral{numeralPlace, 1000, "千"}},
	{"まん", numeral{numeralGroup, 1, "万"}},
	{"おく", numeral{numeralGroup, 2, "億"}},
	{"に", numeral{numeralDigit, 2, "二"}},
	{"し", numeral{numeralDigit, 4, "四"}},
	{"く", numeral{numeralDigit, 9, "九"}},
	{"ご", numeral{numeralDigit, 5, "五"}},
}

func splitNumerals(reading string) ([]numeral, bool) {
	s := kana.ToHiragana(reading)
	var out []numeral
	for s != "" {
		matched := false
		for _, w := range numeralWords {
			if strings.HasPrefix(s, w.kana) {
				out = append(out, w.n)
				s = s[len(w.kana):]
				matched = true
				break
			}
		}
		if !matched {
			return nil, false
		}
	}
	return out, len(out) > 0
}

var groupScale = [...]int64{1, 1e4, 1e8, 1e12}

// ParseJapaneseNumber reads a number spelled in kana, such as にじゅうさん
// or いちまんにせん. A run of bare digits (いちにさん) reads digit by digit.
// Units alone (じゅう, まん) are not numbers. It returns the digits and the
// kanji spelling.
func ParseJapaneseNumber(reading string) (digits, kanji string, ok bool) {
	ns, ok := splitNumerals(reading)
	if !ok {
		return "", "", false
	}
	var sb strings.Builder
	bare, hasDigit := true, false
	for _, n := range ns {
		sb.WriteString(n.kanji)
		bare = bare && n.kind == numeralDigit
		hasDigit = hasDigit || n.kind == numeralDigit
	}
	if !hasDigit {
		return "", "", false
	}
	kanji = sb.String()
	if bare {
		var d strings.Builder
		for _, n := range ns {
			d.WriteByte(byte('0' + n.value))
		}
		return d.String(), kanji, true
	}

	var (
		total    int64
		group    int64
		places   int64 // smallest place used in the current group
		digit    int64 = -1
		lastRank       = len(groupScale)
		first          = true
	)
	closeGroup := func(rank int) bool {
		if digit >= 0 {
			group += digit
		}
		if rank >= lastRank || (first && group == 0) {
			return false
		}
		total += group * groupScale[rank]
		lastRank, first = rank, false
		group, places, digit = 0, 0, -1
		return true
	}
	for _, n := range ns {
		switch n.kind {
		case numeralDigit:
			if digit >= 0 {
				return "", "", false
			}
			digit = n.value
		case numeralPlace:
			if places != 0 && n.value >= places {
				return "", "", false
			}
			if digit < 0 {
				digit = 1
			}
			group += digit * n.value
			places, digit = n.value, -1
		case numeralGroup:
			if !closeGroup(int(n.value)) {
				return "", "", false
			}
		}
	}
	if !closeGroup(0) {
		return "", "", false
	}
	return strconv.FormatInt(total, 10), kanji, true
}

// JapaneseNumber turns a number read in kana into kanji numerals and
// Arabic digits.
type JapaneseNumber struct{}

func (JapaneseNumber) Name() string { return NameJapaneseNumber }

func (JapaneseNumber) Candidates(in Input) []model.Candidate {
	digits, kanji, ok := ParseJapaneseNumber(in.Reading)
	if !ok {
		return nil
	}
	return []model.Candidate{candidate(in.Reading, kanji), candidate(in.Reading, digits)}
}
