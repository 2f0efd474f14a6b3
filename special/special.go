// Package special produces candidates that do not come from a dictionary,
// such as times, era years, kana numerals and styled letters.
package special

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"kanakanji/apperr"
	"kanakanji/model"
)

// Input is what a provider sees of one request.
type Input struct {
	Reading  string
	Raw      string
	Metadata map[string]string
}

type Provider interface {
	Name() string
	Candidates(in Input) []model.Candidate
}

const (
	NameTime           = "time"
	NameCommaNumber    = "comma_number"
	NameEmail          = "email"
	NameUnicode        = "unicode"
	NameVersion        = "version"
	NameCalendar       = "calendar"
	NameTypography     = "typography"
	NameJapaneseNumber = "japanese_number"
)

// Names lists every provider ByName knows.
func Names() []string {
	return []string{
		NameTime, NameCommaNumber, NameEmail, NameUnicode, NameVersion,
		NameCalendar, NameTypography, NameJapaneseNumber,
	}
}

// ByName builds providers in the given order.
func ByName(names []string) ([]Provider, error) {
	out := make([]Provider, 0, len(names))
	for _, n := range names {
		switch strings.TrimSpace(n) {
		case NameTime:
			out = append(out, TimeExpression{})
		case NameCommaNumber:
			out = append(out, CommaNumber{})
		case NameEmail:
			out = append(out, Email{})
		case NameUnicode:
			out = append(out, Unicode{})
		case NameVersion:
			out = append(out, Version{})
		case NameCalendar:
			out = append(out, Calendar{})
		case NameTypography:
			out = append(out, Typography{})
		case NameJapaneseNumber:
			out = append(out, JapaneseNumber{})
		default:
			return nil, apperr.Errorf(apperr.InvalidArgument, "special.ByName", "unknown provider %q", n)
		}
	}
	return out, nil
}

func candidate(reading, text string) model.Candidate {
	return model.Candidate{
		Text:     text,
		Source:   model.SourceSpecial,
		Segments: []model.Segment{{Reading: reading, Surface: text, End: utf8.RuneCountInString(reading), Tag: model.TagSpecial}},
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// TimeExpression turns 3 digits into H:MM and 4 digits into HH:MM.
type TimeExpression struct{}

func (TimeExpression) Name() string { return NameTime }

func (TimeExpression) Candidates(in Input) []model.Candidate {
	s := in.Reading
	if !isDigits(s) || (len(s) != 3 && len(s) != 4) {
		return nil
	}
	h, _ := strconv.Atoi(s[:len(s)-2])
	m, _ := strconv.Atoi(s[len(s)-2:])
	if m > 59 {
		return nil
	}
	if len(s) == 3 {
		return []model.Candidate{candidate(s, fmt.Sprintf("%d:%02d", h, m))}
	}
	if h > 24 {
		return nil
	}
	return []model.Candidate{candidate(s, fmt.Sprintf("%02d:%02d", h, m))}
}

// CommaNumber groups the integer part of numbers longer than three digits.
type CommaNumber struct{}

func (CommaNumber) Name() string { return NameCommaNumber }

func (CommaNumber) Candidates(in Input) []model.Candidate {
	text, sign := in.Reading, ""
	if strings.HasPrefix(text, "-") {
		text, sign = text[1:], "-"
	}
	intPart, frac, hasFrac := strings.Cut(text, ".")
	if !isDigits(intPart) || len(intPart) <= 3 || (hasFrac && !isDigits(frac)) {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(sign)
	for i := 0; i < len(intPart); i++ {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte(intPart[i])
	}
	if hasFrac {
		sb.WriteByte('.')
		sb.WriteString(frac)
	}
	return []model.Candidate{candidate(in.Reading, sb.String())}
}

var domains = []string{
	"gmail.com",
	"icloud.com",
	"yahoo.co.jp",
	"au.com",
	"docomo.ne.jp",
	"excite.co.jp",
	"ezweb.ne.jp",
	"googlemail.com",
	"hotmail.co.jp",
	"hotmail.com",
	"i.softbank.jp",
	"live.jp",
	"me.com",
	"mineo.jp",
	"nifty.com",
	"outlook.com",
	"outlook.jp",
	"softbank.ne.jp",
	"yahoo.ne.jp",
	"ybb.ne.jp",
	"ymobile.ne.jp",
}

// Email completes the domain after the last @.
type Email struct{}

func (Email) Name() string { return NameEmail }

func (Email) Candidates(in Input) []model.Candidate {
	text := in.Raw
	if text == "" {
		text = in.Reading
	}
	at := strings.LastIndexByte(text, '@')
	if at < 0 {
		return nil
	}
	id, prefix := text[:at], text[at+1:]
	for _, r := range id {
		if r > 0x7e || r <= ' ' {
			return nil
		}
	}
	var out []model.Candidate
	for _, d := range domains {
		if strings.HasPrefix(d, prefix) {
			out = append(out, candidate(in.Reading, id+"@"+d))
		}
	}
	return out
}

// Unicode turns U+XXXX into the code point.
type Unicode struct{}

func (Unicode) Name() string { return NameUnicode }

func (Unicode) Candidates(in Input) []model.Candidate {
	for _, s := range []string{in.Raw, in.Reading} {
		upper := strings.ToUpper(s)
		if !strings.HasPrefix(upper, "U+") {
			continue
		}
		hex := upper[2:]
		if len(hex) < 4 || len(hex) > 6 {
			continue
		}
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil || !utf8.ValidRune(rune(v)) {
			continue
		}
		return []model.Candidate{candidate(in.Reading, string(rune(v)))}
	}
	return nil
}

// Version answers ばーじょん with the app name and version from the request
// metadata.
type Version struct{}

const versionReading = "ばーじょん"

func (Version) Name() string { return NameVersion }

func (Version) Candidates(in Input) []model.Candidate {
	if in.Reading != versionReading {
		return nil
	}
	v := in.Metadata["app_version"]
	if v == "" {
		return nil
	}
	name := in.Metadata["app_name"]
	if name == "" {
		name = "kanakanji"
	}
	return []model.Candidate{candidate(in.Reading, fmt.Sprintf("%s Version %s", name, v))}
}
