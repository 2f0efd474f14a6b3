package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kanakanji/apperr"
	"kanakanji/converter"
	"kanakanji/learning"
	"kanakanji/zenzai"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "dict", cfg.DictDir)
	assert.Equal(t, zenzai.DefaultInferenceLimit, cfg.InferenceLimit)
	assert.Equal(t, "v3", cfg.Version)
	assert.Equal(t, 0.5, cfg.Alpha)
	assert.Empty(t, cfg.TableFiles)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("KANAKANJI_DICT_DIR=/srv/dict\nKANAKANJI_TABLE_FILES=a.tsv,b.tsv\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv("KANAKANJI_DICT_DIR")
		os.Unsetenv("KANAKANJI_TABLE_FILES")
	})
	t.Setenv("KANAKANJI_INFERENCE_LIMIT", "3")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/dict", cfg.DictDir)
	assert.Equal(t, []string{"a.tsv", "b.tsv"}, cfg.TableFiles)
	assert.Equal(t, 3, cfg.InferenceLimit)
}

func TestLoadRejectsBadValue(t *testing.T) {
	t.Setenv("KANAKANJI_ALPHA", "half")
	_, err := Load("")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestConfigOptions(t *testing.T) {
	cfg := &Config{
		MemoryDir:      "mem",
		LMMode:         "add",
		LMWeight:       0.5,
		ZenzaiWeights:  "ngram:lm",
		InferenceLimit: 2,
		Version:        "v2",
		BaseLM:         "base",
		PersonalLM:     "me",
		Alpha:          0.3,
		LatticeWeight:  0.5,
	}
	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, "mem", opts.MemoryDir)
	assert.Equal(t, "add", opts.LM.Mode)
	assert.True(t, opts.Zenzai.Enabled)
	assert.Equal(t, 2, opts.Zenzai.InferenceLimit)
	assert.Equal(t, zenzai.V2, opts.Zenzai.Version)
	assert.Equal(t, 0.5, opts.Zenzai.LatticeWeight)
	require.NotNil(t, opts.Zenzai.Personalization)
	assert.Equal(t, 0.3, opts.Zenzai.Personalization.Alpha)

	cfg.Version = "v9"
	_, err = cfg.Options()
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	cfg = &Config{}
	opts, err = cfg.Options()
	require.NoError(t, err)
	assert.False(t, opts.Zenzai.Enabled)
}

func TestLoadOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
n_best: 5
typo_correction: true
keyboard_language: en_US
learning:
  type: only_output
special_providers: [time, unicode]
zenzai:
  enabled: true
  weight_path: ngram:lm
  inference_limit: 4
metadata:
  app_version: "1.2"
`), 0o644))

	base := converter.DefaultOptions()
	base.ReplacerPath = "emoji.tsv"
	opts, err := LoadOptions(path, base)
	require.NoError(t, err)
	assert.Equal(t, 5, opts.NBest)
	assert.True(t, opts.TypoCorrection)
	assert.Equal(t, converter.KeyboardEnglish, opts.KeyboardLanguage)
	assert.Equal(t, learning.OnlyOutput, opts.Learning.Type)
	assert.Equal(t, learning.DefaultMaxCount, opts.Learning.MaxMemoryCount)
	assert.Equal(t, []string{"time", "unicode"}, opts.SpecialProviders)
	assert.Equal(t, 4, opts.Zenzai.InferenceLimit)
	assert.Equal(t, zenzai.V3, opts.Zenzai.Version)
	assert.Equal(t, "1.2", opts.Metadata["app_version"])
	assert.Equal(t, "emoji.tsv", opts.ReplacerPath)
}

func TestLoadOptionsErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadOptions(filepath.Join(dir, "none.yaml"), converter.DefaultOptions())
	assert.ErrorIs(t, err, apperr.ErrLoadFailure)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("n_best: -2\n"), 0o644))
	_, err = LoadOptions(bad, converter.DefaultOptions())
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	require.NoError(t, os.WriteFile(bad, []byte("n_best: [1\n"), 0o644))
	_, err = LoadOptions(bad, converter.DefaultOptions())
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}
