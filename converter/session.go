package converter

import (
	"context"
	"sync"
	"time"

	"kanakanji/apperr"
	"kanakanji/composing"
	"kanakanji/dictionary"
	"kanakanji/inputstyle"
	"kanakanji/lattice"
	"kanakanji/metrics"
	"kanakanji/model"
)

// Session is one user's composing buffer with a lattice cache. Its methods
// are serialized.
type Session struct {
	id     string
	engine *Engine
	opts   Options

	mu      sync.Mutex
	text    *composing.Text
	lat     *lattice.Lattice
	overlay *dictionary.Index
	seq     int
}

func newSession(e *Engine, id string, opts Options) *Session {
	return &Session{id: id, engine: e, opts: opts, text: composing.New(e.tables)}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Options() Options { return s.opts }

// Insert types token in style. A rejected token leaves the buffer as it was.
func (s *Session) Insert(token string, style inputstyle.Style) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text.Insert(token, style)
}

func (s *Session) InsertKeys(keys []inputstyle.Key, style inputstyle.Style) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text.InsertKeys(keys, style)
}

func (s *Session) DeleteBackward(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text.DeleteBackward(n)
}

func (s *Session) DeleteForward(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text.DeleteForward(n)
}

func (s *Session) MoveCursor(to int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text.MoveCursor(to)
}

func (s *Session) MoveCursorBy(delta int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text.MoveCursorBy(delta)
}

// Text returns the full phonetic text and the cursor.
func (s *Session) Text() (string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text.Phonetic(), s.text.Cursor()
}

// Candidates converts the text up to the cursor, reusing lattice nodes
// from the previous call where the reading is unchanged.
func (s *Session) Candidates(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := time.Now()

	src, ov := s.engine.source(s.opts)
	if s.lat == nil || ov != s.overlay {
		s.lat = lattice.New(src, s.engine.latticeConfig(s.opts))
		s.overlay = ov
	}
	reading := s.text.PhoneticUpToCursor()
	reused := s.lat.Update(reading)

	res, err := s.engine.assemble(ctx, s.lat, src, request{reading: reading, raw: s.text.RawInput()}, s.opts)
	if err != nil {
		return Result{}, err
	}
	s.seq++
	s.engine.log.Debug().
		Str("session", s.id).
		Str("reading", reading).
		Int("reused", reused).
		Int("candidates", len(res.Candidates)).
		Msg("candidates")
	s.engine.dump(s.id, s.seq, res)
	metrics.RecordConversion("session", time.Since(start).Seconds(), len(res.Candidates))
	return res, nil
}

// Commit accepts c, remembers its segments when the learning policy
// writes, and clears the buffer.
func (s *Session) Commit(ctx context.Context, c model.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	e := s.engine
	if s.opts.Learning.Type.Writes() && e.memory != nil {
		for _, seg := range c.Segments {
			if seg.Tag == model.TagFallback || seg.Tag == model.TagSpecial || seg.Reading == "" {
				continue
			}
			if err := e.memory.Remember(s.learnedEntry(seg)); err != nil {
				return apperr.New(apperr.TrainingIOFailure, "converter.Commit", err)
			}
		}
		if err := e.refreshOverlay(); err != nil {
			return err
		}
	}
	e.log.Debug().Str("session", s.id).Str("text", c.Text).Msg("committed")
	s.text.Reset()
	s.lat = nil
	return nil
}

// learnedEntry finds the dictionary entry behind seg so the learned copy
// keeps its cost and connection IDs.
func (s *Session) learnedEntry(seg model.Segment) model.Entry {
	for _, e := range s.engine.dict.LookupExact(seg.Reading) {
		if e.Surface == seg.Surface {
			e.Tag = model.TagLearned
			return e
		}
	}
	return model.Entry{
		Reading: seg.Reading,
		Surface: seg.Surface,
		Cost:    learnedDefaultCost,
		LeftID:  model.ClassNoun,
		RightID: model.ClassNoun,
		Tag:     model.TagLearned,
	}
}

const learnedDefaultCost = 8

// Reset clears the buffer and the lattice cache.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text.Reset()
	s.lat = nil
}
