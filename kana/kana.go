// Package kana holds script helpers shared by the input mapper, the
// dictionary builder and candidate generation.
package kana

import (
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

func IsKanji(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) || (r >= 0x3400 && r <= 0x4DBF) || r == '々'
}

func IsHiragana(r rune) bool {
	return r >= 0x3041 && r <= 0x309F
}

// IsKatakana includes the prolonged sound mark.
func IsKatakana(r rune) bool {
	return r >= 0x30A0 && r <= 0x30FF
}

func IsKana(r rune) bool {
	return IsHiragana(r) || IsKatakana(r)
}

// ToHiragana maps katakana to hiragana and leaves everything else alone.
func ToHiragana(s string) string {
	runes := []rune(s)
	for i, r := range runes {
		if r >= 0x30A1 && r <= 0x30F6 {
			runes[i] = r - 0x60
		}
	}
	return string(runes)
}

func ToKatakana(s string) string {
	runes := []rune(s)
	for i, r := range runes {
		if r >= 0x3041 && r <= 0x3096 {
			runes[i] = r + 0x60
		}
	}
	return string(runes)
}

// HalfWidth renders s as half-width katakana. Voiced kana decompose into a
// base and a separate half-width sound mark.
func HalfWidth(s string) string {
	return width.Narrow.String(norm.NFD.String(ToKatakana(s)))
}

// FullWidth renders ASCII as full-width forms.
func FullWidth(s string) string {
	return width.Widen.String(s)
}

// IsASCIIWord reports whether s is non-empty printable ASCII without spaces.
func IsASCIIWord(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) || r == ' ' {
			return false
		}
	}
	return true
}

// IsAllKana reports whether every rune of s is kana.
func IsAllKana(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !IsKana(r) {
			return false
		}
	}
	return true
}
