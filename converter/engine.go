// Package converter ties the dictionary, lattice, language model, reranker
// and replacer together into conversion requests and typing sessions.
package converter

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"kanakanji/apperr"
	"kanakanji/dictionary"
	"kanakanji/inputstyle"
	"kanakanji/lattice"
	"kanakanji/learning"
	"kanakanji/logger"
	"kanakanji/metrics"
	"kanakanji/ngram"
	"kanakanji/replacer"
	"kanakanji/zenzai"
)

const DefaultSessionCapacity = 256

// Engine is shared by every request and session. Loaded resources are
// read-only; only the learned overlay is swapped after commits.
type Engine struct {
	dict     dictionary.Source
	conn     lattice.Connector
	lm       ngram.Scorer
	replacer *replacer.Replacer
	memory   *learning.Memory
	reranker *zenzai.Reranker
	tables   *inputstyle.Manager
	log      zerolog.Logger
	dumpDir  string
	capacity int

	overlay  atomic.Pointer[dictionary.Index]
	sessions *lru.Cache[string, *Session]

	mu        sync.Mutex
	replacers map[string]*replacer.Replacer
}

type EngineOption func(*Engine)

// WithConnector sets the connection costs when the dictionary has none.
func WithConnector(c lattice.Connector) EngineOption {
	return func(e *Engine) { e.conn = c }
}

func WithLanguageModel(s ngram.Scorer) EngineOption {
	return func(e *Engine) { e.lm = s }
}

// WithReplacer sets the replacer used when a request names none.
func WithReplacer(r *replacer.Replacer) EngineOption {
	return func(e *Engine) { e.replacer = r }
}

func WithMemory(m *learning.Memory) EngineOption {
	return func(e *Engine) { e.memory = m }
}

func WithScorerLoader(b zenzai.Backend) EngineOption {
	return func(e *Engine) { e.reranker = zenzai.NewReranker(b) }
}

func WithTables(m *inputstyle.Manager) EngineOption {
	return func(e *Engine) { e.tables = m }
}

func WithLogger(l zerolog.Logger) EngineOption {
	return func(e *Engine) { e.log = l }
}

// WithDebugDump writes every session result as JSON into dir.
func WithDebugDump(dir string) EngineOption {
	return func(e *Engine) { e.dumpDir = dir }
}

func WithSessionCapacity(n int) EngineOption {
	return func(e *Engine) { e.capacity = n }
}

func New(dict dictionary.Source, opts ...EngineOption) (*Engine, error) {
	if dict == nil {
		return nil, apperr.Errorf(apperr.LoadFailure, "converter.New", "no dictionary")
	}
	e := &Engine{
		dict:      dict,
		log:       logger.With("converter"),
		capacity:  DefaultSessionCapacity,
		replacers: make(map[string]*replacer.Replacer),
	}
	if c, ok := dict.(lattice.Connector); ok {
		e.conn = c
	}
	for _, o := range opts {
		o(e)
	}
	if e.tables == nil {
		e.tables = inputstyle.NewManager()
	}
	sessions, err := lru.NewWithEvict[string, *Session](max(1, e.capacity), func(id string, _ *Session) {
		e.log.Debug().Str("session", id).Msg("session evicted")
	})
	if err != nil {
		return nil, apperr.New(apperr.InvalidArgument, "converter.New", err)
	}
	e.sessions = sessions
	if e.dumpDir != "" {
		if err := logger.InitLogs(e.dumpDir); err != nil {
			return nil, apperr.New(apperr.LoadFailure, "converter.New", err)
		}
	}
	if err := e.refreshOverlay(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) Tables() *inputstyle.Manager { return e.tables }

func (e *Engine) refreshOverlay() error {
	if e.memory == nil {
		return nil
	}
	entries, err := e.memory.Entries()
	if err != nil {
		return apperr.New(apperr.LoadFailure, "converter.memory", err)
	}
	e.overlay.Store(dictionary.NewIndex(entries))
	return nil
}

// source is the dictionary a request sees, with learned entries first when
// the learning policy reads them.
func (e *Engine) source(opts Options) (dictionary.Source, *dictionary.Index) {
	if !opts.Learning.Type.Reads() {
		return e.dict, nil
	}
	ov := e.overlay.Load()
	if ov == nil || ov.Len() == 0 {
		return e.dict, ov
	}
	return dictionary.Merge(ov, e.dict), ov
}

func (e *Engine) latticeConfig(opts Options) lattice.Config {
	mode, _ := lattice.ParseLMMode(opts.LM.Mode)
	cfg := lattice.Config{
		NBest:     opts.NBest,
		Connector: e.conn,
		LMMode:    mode,
		LMWeight:  opts.LM.Weight,
		Typo:      lattice.Typo{Enabled: opts.TypoCorrection},
	}
	if e.lm != nil && mode != lattice.LMOff {
		cfg.LM = ngram.LatticeLM{Scorer: e.lm}
	}
	return cfg
}

func (e *Engine) replacerFor(opts Options) *replacer.Replacer {
	if opts.ReplacerPath == "" {
		return e.replacer
	}
	path := opts.ReplacerPath
	if !filepath.IsAbs(path) && opts.SharedDir != "" {
		path = filepath.Join(opts.SharedDir, path)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if r, ok := e.replacers[path]; ok {
		return r
	}
	r, err := replacer.Load(path)
	if err != nil {
		e.log.Warn().Err(err).Str("path", path).Msg("replacer unavailable")
		r = replacer.Empty()
	}
	e.replacers[path] = r
	return r
}

// Convert is a one-shot conversion of reading. It has no side effects.
func (e *Engine) Convert(ctx context.Context, reading string, opts Options) (Result, error) {
	opts, err := opts.Validate()
	if err != nil {
		return Result{}, err
	}
	start := time.Now()
	src, _ := e.source(opts)
	lat := lattice.New(src, e.latticeConfig(opts))
	lat.Update(reading)
	res, err := e.assemble(ctx, lat, src, request{reading: reading, raw: reading}, opts)
	if err != nil {
		return Result{}, err
	}
	metrics.RecordConversion("oneshot", time.Since(start).Seconds(), len(res.Candidates))
	return res, nil
}

// NewSession starts a typing session. A reset learning policy clears the
// memory first.
func (e *Engine) NewSession(opts Options) (*Session, error) {
	opts, err := opts.Validate()
	if err != nil {
		return nil, err
	}
	if opts.Learning.Reset && e.memory != nil {
		if err := e.memory.Reset(); err != nil {
			return nil, fmt.Errorf("reset memory: %w", err)
		}
		if err := e.refreshOverlay(); err != nil {
			return nil, err
		}
	}
	s := newSession(e, uuid.NewString(), opts)
	e.sessions.Add(s.id, s)
	e.log.Debug().Str("session", s.id).Msg("session started")
	return s, nil
}

// Session returns a live session by ID.
func (e *Engine) Session(id string) (*Session, bool) {
	return e.sessions.Get(id)
}

func (e *Engine) CloseSession(id string) {
	e.sessions.Remove(id)
}

func (e *Engine) dump(id string, seq int, res Result) {
	if e.dumpDir == "" {
		return
	}
	if err := logger.LogJSON(e.dumpDir, fmt.Sprintf("%s_%d_result", id, seq), res); err != nil {
		e.log.Warn().Err(err).Msg("debug dump failed")
	}
}
