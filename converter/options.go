package converter

import (
	"kanakanji/apperr"
	"kanakanji/lattice"
	"kanakanji/learning"
	"kanakanji/zenzai"
)

type KeyboardLanguage string

const (
	KeyboardJapanese KeyboardLanguage = "ja_JP"
	KeyboardEnglish  KeyboardLanguage = "en_US"
	KeyboardNone     KeyboardLanguage = "none"
)

type LearningOptions struct {
	Type           learning.Type `json:"type" yaml:"type"`
	MaxMemoryCount int           `json:"max_memory_count" yaml:"max_memory_count"`
	Reset          bool          `json:"reset,omitempty" yaml:"reset,omitempty"`
}

type LMOptions struct {
	// Mode is off, add or replace.
	Mode   string  `json:"mode,omitempty" yaml:"mode,omitempty"`
	Weight float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
}

// Options are the per-request settings. Every request carries its own copy.
type Options struct {
	NBest                   int               `json:"n_best" yaml:"n_best"`
	TypoCorrection          bool              `json:"typo_correction" yaml:"typo_correction"`
	JapanesePrediction      bool              `json:"japanese_prediction" yaml:"japanese_prediction"`
	EnglishPrediction       bool              `json:"english_prediction" yaml:"english_prediction"`
	KeyboardLanguage        KeyboardLanguage  `json:"keyboard_language" yaml:"keyboard_language"`
	EnglishCandidateInRoman bool              `json:"english_candidate_in_roman" yaml:"english_candidate_in_roman"`
	FullWidthRomanCandidate bool              `json:"full_width_roman_candidate" yaml:"full_width_roman_candidate"`
	HalfWidthKanaCandidate  bool              `json:"half_width_kana_candidate" yaml:"half_width_kana_candidate"`
	Learning                LearningOptions   `json:"learning" yaml:"learning"`
	MemoryDir               string            `json:"memory_dir,omitempty" yaml:"memory_dir,omitempty"`
	SharedDir               string            `json:"shared_dir,omitempty" yaml:"shared_dir,omitempty"`
	ReplacerPath            string            `json:"replacer_path,omitempty" yaml:"replacer_path,omitempty"`
	ReplacerPreferred       bool              `json:"replacer_preferred,omitempty" yaml:"replacer_preferred,omitempty"`
	SpecialProviders        []string          `json:"special_providers,omitempty" yaml:"special_providers,omitempty"`
	Zenzai                  zenzai.Config     `json:"zenzai" yaml:"zenzai"`
	LM                      LMOptions         `json:"lm" yaml:"lm"`
	Metadata                map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

func DefaultOptions() Options {
	return Options{
		NBest:            lattice.DefaultNBest,
		KeyboardLanguage: KeyboardJapanese,
		Learning: LearningOptions{
			Type:           learning.Nothing,
			MaxMemoryCount: learning.DefaultMaxCount,
		},
		Zenzai: zenzai.Off(),
	}
}

// Validate fills defaults and rejects values no request can use.
func (o Options) Validate() (Options, error) {
	const op = "converter.Options"
	if o.NBest < 0 {
		return o, apperr.Errorf(apperr.InvalidArgument, op, "n_best must not be negative, got %d", o.NBest)
	}
	if o.NBest == 0 {
		o.NBest = lattice.DefaultNBest
	}
	switch o.KeyboardLanguage {
	case "":
		o.KeyboardLanguage = KeyboardJapanese
	case KeyboardJapanese, KeyboardEnglish, KeyboardNone:
	default:
		return o, apperr.Errorf(apperr.InvalidArgument, op, "unknown keyboard language %q", o.KeyboardLanguage)
	}
	t, err := learning.ParseType(string(o.Learning.Type))
	if err != nil {
		return o, err
	}
	o.Learning.Type = t
	if o.Learning.MaxMemoryCount <= 0 {
		o.Learning.MaxMemoryCount = learning.DefaultMaxCount
	}
	if _, err := lattice.ParseLMMode(o.LM.Mode); err != nil {
		return o, apperr.New(apperr.InvalidArgument, op, err)
	}
	if o.Zenzai.Enabled {
		v, err := zenzai.ParseVersion(string(o.Zenzai.Version))
		if err != nil {
			return o, err
		}
		o.Zenzai.Version = v
	}
	return o, nil
}
