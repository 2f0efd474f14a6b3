// Package config reads process settings from the environment and
// per-request conversion options from YAML files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"kanakanji/apperr"
	"kanakanji/converter"
	"kanakanji/zenzai"
)

const Prefix = "kanakanji"

// Config is read once at startup. Every variable is prefixed with
// KANAKANJI_, e.g. KANAKANJI_DICT_DIR.
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DictDir string `envconfig:"DICT_DIR" default:"dict"`
	Preload bool   `envconfig:"PRELOAD"`

	MemoryDir    string   `envconfig:"MEMORY_DIR"`
	ReplacerPath string   `envconfig:"REPLACER_PATH"`
	TableFiles   []string `envconfig:"TABLE_FILES"`

	BaseLM     string  `envconfig:"BASE_LM"`
	PersonalLM string  `envconfig:"PERSONAL_LM"`
	Alpha      float64 `envconfig:"ALPHA" default:"0.5"`
	LMMode     string  `envconfig:"LM_MODE" default:"off"`
	LMWeight   float64 `envconfig:"LM_WEIGHT" default:"1"`

	ZenzaiWeights  string  `envconfig:"ZENZAI_WEIGHTS"`
	InferenceLimit int     `envconfig:"INFERENCE_LIMIT" default:"10"`
	Version        string  `envconfig:"ZENZAI_VERSION" default:"v3"`
	LatticeWeight  float64 `envconfig:"ZENZAI_LATTICE_WEIGHT"`

	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`
	GeminiModel  string `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`

	MetricsAddr  string `envconfig:"METRICS_ADDR"`
	DebugDumpDir string `envconfig:"DEBUG_DUMP_DIR"`
}

// Load reads envFile, when it exists, into the environment and then
// processes the KANAKANJI_ variables. Variables already set win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.New(apperr.LoadFailure, "config.Load", err)
		}
	}
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, apperr.New(apperr.InvalidArgument, "config.Load", err)
	}
	return &cfg, nil
}

// Options are the conversion defaults implied by the environment.
func (c *Config) Options() (converter.Options, error) {
	opts := converter.DefaultOptions()
	opts.MemoryDir = c.MemoryDir
	opts.LM = converter.LMOptions{Mode: c.LMMode, Weight: c.LMWeight}
	if c.ZenzaiWeights != "" {
		v, err := zenzai.ParseVersion(c.Version)
		if err != nil {
			return opts, err
		}
		opts.Zenzai = zenzai.On(c.ZenzaiWeights, c.InferenceLimit)
		opts.Zenzai.Version = v
		opts.Zenzai.LatticeWeight = c.LatticeWeight
		if c.PersonalLM != "" {
			opts.Zenzai.Personalization = &zenzai.Personalization{
				BaseLM:     c.BaseLM,
				PersonalLM: c.PersonalLM,
				Alpha:      c.Alpha,
			}
		}
	}
	return opts.Validate()
}

// LoadOptions decodes a YAML options file over base. Fields the file does
// not name keep their value from base.
func LoadOptions(path string, base converter.Options) (converter.Options, error) {
	const op = "config.LoadOptions"
	b, err := os.ReadFile(path)
	if err != nil {
		return base, apperr.New(apperr.LoadFailure, op, err)
	}
	opts := base
	if err := yaml.Unmarshal(b, &opts); err != nil {
		return base, apperr.New(apperr.InvalidArgument, op, fmt.Errorf("%s: %w", path, err))
	}
	return opts.Validate()
}
