package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"kanakanji/converter"
	"kanakanji/dictionary"
	"kanakanji/inputstyle"
	"kanakanji/learning"
	"kanakanji/logger"
	"kanakanji/ngram"
	"kanakanji/replacer"
	"kanakanji/zenzai"
)

// tableID names a custom table file by its base name.
func tableID(path string) inputstyle.TableID {
	base := filepath.Base(path)
	return inputstyle.TableID(strings.TrimSuffix(base, filepath.Ext(base)))
}

func (a *app) tables() (*inputstyle.Manager, error) {
	m := inputstyle.NewManager()
	for _, path := range a.cfg.TableFiles {
		if err := m.LoadFile(tableID(path), path); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (a *app) languageModel() (ngram.Scorer, error) {
	if a.cfg.BaseLM == "" {
		return nil, nil
	}
	base, err := ngram.Load(a.cfg.BaseLM)
	if err != nil {
		return nil, err
	}
	if a.cfg.PersonalLM == "" {
		return base, nil
	}
	personal, err := ngram.Load(a.cfg.PersonalLM)
	if err != nil {
		return nil, err
	}
	return ngram.Blend{Base: base, Personal: personal, Alpha: a.cfg.Alpha}, nil
}

// engine loads everything the configuration names. The returned func
// releases the learning memory.
func (a *app) engine(ctx context.Context) (*converter.Engine, func(), error) {
	store, err := dictionary.Load(ctx, a.cfg.DictDir, dictionary.Options{Preload: a.cfg.Preload})
	if err != nil {
		return nil, nil, err
	}
	tables, err := a.tables()
	if err != nil {
		return nil, nil, err
	}
	opts := []converter.EngineOption{
		converter.WithTables(tables),
		converter.WithLogger(logger.With("converter")),
		converter.WithScorerLoader(zenzai.NewLoader(a.cfg.GeminiAPIKey)),
	}

	lm, err := a.languageModel()
	if err != nil {
		return nil, nil, err
	}
	if lm != nil {
		opts = append(opts, converter.WithLanguageModel(lm))
	}
	if a.cfg.ReplacerPath != "" {
		r, err := replacer.Load(a.cfg.ReplacerPath)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, converter.WithReplacer(r))
	}
	if a.cfg.DebugDumpDir != "" {
		opts = append(opts, converter.WithDebugDump(a.cfg.DebugDumpDir))
	}

	release := func() {}
	if dir := a.memoryDir(); dir != "" {
		mem, err := learning.Open(learning.Options{Dir: dir, MaxCount: a.opts.Learning.MaxMemoryCount})
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, converter.WithMemory(mem))
		release = func() {
			if err := mem.Close(); err != nil {
				logger.Warn().Err(err).Msg("closing learning memory")
			}
		}
	}

	e, err := converter.New(store, opts...)
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("build engine: %w", err)
	}
	logger.Info().
		Str("dict", a.cfg.DictDir).
		Int("entries", store.Len()).
		Bool("lm", lm != nil).
		Msg("engine ready")
	return e, release, nil
}

func (a *app) memoryDir() string {
	if a.opts.MemoryDir != "" {
		return a.opts.MemoryDir
	}
	return a.cfg.MemoryDir
}
