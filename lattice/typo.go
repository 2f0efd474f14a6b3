package lattice

// Kana that are commonly typed for one another: voicing marks and the
// small forms.
var confusionGroups = []string{
	"かが", "きぎ", "くぐ", "けげ", "こご",
	"さざ", "しじ", "すず", "せぜ", "そぞ",
	"ただ", "ちぢ", "つづっ", "てで", "とど",
	"はばぱ", "ひびぴ", "ふぶぷ", "へべぺ", "ほぼぽ",
	"あぁ", "いぃ", "うぅゔ", "えぇ", "おぉ",
	"やゃ", "ゆゅ", "よょ", "わゎ",
}

var confusions = func() map[rune][]rune {
	m := make(map[rune][]rune)
	for _, g := range confusionGroups {
		rs := []rune(g)
		for _, r := range rs {
			for _, o := range rs {
				if o != r {
					m[r] = append(m[r], o)
				}
			}
		}
	}
	return m
}()
