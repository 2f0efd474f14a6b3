package model

// Token represents a morpheme produced by the tokenizer.
type Token struct {
	Text          string `json:"text"`
	Lemma         string `json:"lemma,omitempty"`
	POS           string `json:"pos,omitempty"`
	Start         int    `json:"start"`
	End           int    `json:"end"`
	Reading       string `json:"reading,omitempty"`
	Pronunciation string `json:"pronunciation,omitempty"`
	Known         bool   `json:"known"`
}

// Tag marks entries that need special handling during search or display.
type Tag uint8

const (
	TagNone Tag = iota
	TagProperNoun
	TagLearned
	TagFallback
	TagTypo
	TagSpecial
)

func (t Tag) String() string {
	switch t {
	case TagProperNoun:
		return "proper_noun"
	case TagLearned:
		return "learned"
	case TagFallback:
		return "fallback"
	case TagTypo:
		return "typo"
	case TagSpecial:
		return "special"
	default:
		return "none"
	}
}

// ParseTag is the inverse of Tag.String. Unknown names map to TagNone.
func ParseTag(s string) Tag {
	for t := TagNone; t <= TagSpecial; t++ {
		if t.String() == s {
			return t
		}
	}
	return TagNone
}

// Entry is one reading/surface pair of a dictionary. Lower cost is preferred.
type Entry struct {
	Reading string  `json:"reading" msgpack:"r"`
	Surface string  `json:"surface" msgpack:"s"`
	Cost    float32 `json:"cost" msgpack:"c"`
	LeftID  uint16  `json:"left_id,omitempty" msgpack:"li"`
	RightID uint16  `json:"right_id,omitempty" msgpack:"ri"`
	Tag     Tag     `json:"tag,omitempty" msgpack:"t"`
}

// Segment is one lattice edge of a candidate.
type Segment struct {
	Reading string `json:"reading"`
	Surface string `json:"surface"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Tag     Tag    `json:"tag,omitempty"`
}

type Source string

const (
	SourceLattice    Source = "lattice"
	SourceReplacer   Source = "replacer"
	SourceSpecial    Source = "special"
	SourceScript     Source = "script"
	SourcePrediction Source = "prediction"
	SourceNeural     Source = "neural"
	SourceEnglish    Source = "english"
)

// Candidate is a conversion result with its total path cost.
type Candidate struct {
	Text     string    `json:"text"`
	Cost     float64   `json:"cost"`
	Segments []Segment `json:"segments,omitempty"`
	Source   Source    `json:"source"`
}

// Connection class IDs shared by dictionaries built from a tokenized corpus
// and by the bundled fixtures. Class 0 is the sentence boundary.
const (
	ClassBoundary uint16 = iota
	ClassNoun
	ClassParticle
	ClassPredicate
	ClassAuxiliary
	ClassPrenominal
	ClassOther
	NumClasses
)
