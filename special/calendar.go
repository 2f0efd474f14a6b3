package special

import (
	"fmt"
	"strconv"
	"strings"

	"kanakanji/model"
)

type era struct {
	name    string
	reading string
	start   int
	last    int // 0 while current
}

// Newest first. The first year of an era is also the last of the previous one.
var eras = []era{
	{"令和", "れいわ", 2019, 0},
	{"平成", "へいせい", 1989, 2019},
	{"昭和", "しょうわ", 1926, 1989},
	{"大正", "たいしょう", 1912, 1926},
	{"明治", "めいじ", 1868, 1912},
}

const (
	yearSuffix     = "ねん"
	firstYear      = "がん"
	maxGregorian   = 9999
	firstEraYearJa = "元"
)

// yearNumber reads digits or a kana numeral.
func yearNumber(s string) (int, bool) {
	if !isDigits(s) {
		var ok bool
		if s, _, ok = ParseJapaneseNumber(s); !ok {
			return 0, false
		}
	}
	if len(s) > 4 {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	return n, err == nil && n > 0 && n <= maxGregorian
}

// Calendar converts between Gregorian and Japanese era years:
// 2024ねん → 令和6年 and れいわろくねん → 2024年.
type Calendar struct{}

func (Calendar) Name() string { return NameCalendar }

func (Calendar) Candidates(in Input) []model.Candidate {
	body, ok := strings.CutSuffix(in.Reading, yearSuffix)
	if !ok || body == "" {
		return nil
	}
	for _, e := range eras {
		if rest, ok := strings.CutPrefix(body, e.reading); ok {
			return toGregorian(in.Reading, e, rest)
		}
	}
	return toEra(in.Reading, body)
}

func toGregorian(reading string, e era, rest string) []model.Candidate {
	n := 1
	if rest != firstYear {
		var ok bool
		if n, ok = yearNumber(rest); !ok {
			return nil
		}
	}
	if e.last != 0 && n > e.last-e.start+1 {
		return nil
	}
	return []model.Candidate{candidate(reading, fmt.Sprintf("%d年", e.start+n-1))}
}

func toEra(reading, body string) []model.Candidate {
	y, ok := yearNumber(body)
	if !ok {
		return nil
	}
	var out []model.Candidate
	for _, e := range eras {
		if y < e.start || (e.last != 0 && y > e.last) {
			continue
		}
		n := strconv.Itoa(y - e.start + 1)
		if y == e.start {
			n = firstEraYearJa
		}
		out = append(out, candidate(reading, e.name+n+"年"))
	}
	return out
}
