// Package session owns the single engine handle and enforces the
// Unloaded → Loading → Ready ⇄ Generating lifecycle with single-flight
// generation.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mindbridge/internal/common/fsutil"
	"mindbridge/internal/events"
	"mindbridge/pkg/types"
)

// Load progress milestones.
const (
	progressStarted = 0.1
	progressDone    = 1.0
)

// handle is the only owner of a Model. free is idempotent.
type handle struct {
	model Model
	once  sync.Once
}

func (h *handle) free() {
	if h == nil {
		return
	}
	h.once.Do(h.model.Free)
}

// Config encapsulates all inputs for Session construction.
type Config struct {
	Engine    Engine
	Publisher events.Publisher
	Logger    zerolog.Logger
}

// Session is safe for concurrent use. All state transitions happen under mu;
// engine calls run outside it.
type Session struct {
	engine Engine
	pub    events.Publisher
	log    zerolog.Logger

	mu       sync.Mutex
	state    types.SessionState
	path     string
	progress float64
	h        *handle
	closed   bool
}

func New(cfg Config) *Session {
	return &Session{
		engine: cfg.Engine,
		pub:    events.OrNop(cfg.Publisher),
		log:    cfg.Logger,
		state:  types.SessionUnloaded,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() types.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LoadProgress returns 0 when unloaded, a value in (0,1) while loading and 1 once ready.
func (s *Session) LoadProgress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Snapshot returns a copy of the observable state.
func (s *Session) Snapshot() types.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.SessionSnapshot{State: s.state, ModelPath: s.path, LoadProgress: s.progress}
}

type initResult struct {
	model Model
	err   error
}

// Load initializes the engine with the model at path. Valid only from
// Unloaded. A missing or empty file fails with a model-not-found error and
// leaves the state untouched. If ctx ends before the engine finishes, Load
// returns ctx.Err(), the session goes back to Unloaded and the late handle is
// freed when it arrives.
func (s *Session) Load(ctx context.Context, path string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	switch s.state {
	case types.SessionLoading, types.SessionGenerating:
		st := s.state
		s.mu.Unlock()
		return busyError{state: string(st)}
	case types.SessionReady:
		p := s.path
		s.mu.Unlock()
		return alreadyLoadedError{path: p}
	}
	if !fsutil.NonEmptyFile(path) {
		s.mu.Unlock()
		loadsTotal.WithLabelValues("not_found").Inc()
		return modelNotFoundError{path: path}
	}
	s.state = types.SessionLoading
	s.path = path
	s.progress = progressStarted
	s.mu.Unlock()

	s.log.Info().Str("event", "session_loading").Str("path", path).Msg("loading model")
	s.pub.Publish(events.New("session_loading", path, nil))
	start := time.Now()

	res := make(chan initResult, 1)
	go func() {
		var r initResult
		defer func() {
			if p := recover(); p != nil {
				r = initResult{err: fmt.Errorf("engine init panic: %v", p)}
			}
			res <- r
		}()
		m, err := s.engine.Init(path)
		r = initResult{model: m, err: err}
	}()

	select {
	case r := <-res:
		return s.finishLoad(path, r, time.Since(start))
	case <-ctx.Done():
		s.mu.Lock()
		s.resetLocked()
		s.mu.Unlock()
		loadsTotal.WithLabelValues("abandoned").Inc()
		s.log.Warn().Str("event", "session_load_abandoned").Str("path", path).Err(ctx.Err()).Msg("load abandoned")
		s.pub.Publish(events.New("session_load_failed", path, map[string]any{"error": ctx.Err().Error()}))
		go func() {
			if r := <-res; r.model != nil {
				(&handle{model: r.model}).free()
			}
		}()
		return ctx.Err()
	}
}

func (s *Session) finishLoad(path string, r initResult, took time.Duration) error {
	if r.err == nil && r.model == nil {
		r.err = fmt.Errorf("engine returned no handle")
	}
	s.mu.Lock()
	if r.err != nil {
		s.resetLocked()
		s.mu.Unlock()
		loadsTotal.WithLabelValues("failed").Inc()
		s.log.Error().Str("event", "session_load_failed").Str("path", path).Err(r.err).Msg("engine init failed")
		s.pub.Publish(events.New("session_load_failed", path, map[string]any{"error": r.err.Error()}))
		return initFailedError{path: path, err: r.err}
	}
	if s.closed {
		s.resetLocked()
		s.mu.Unlock()
		(&handle{model: r.model}).free()
		return ErrClosed
	}
	s.h = &handle{model: r.model}
	s.state = types.SessionReady
	s.progress = progressDone
	s.mu.Unlock()

	loadsTotal.WithLabelValues("ok").Inc()
	s.log.Info().Str("event", "session_ready").Str("path", path).Dur("took", took).Msg("model loaded")
	s.pub.Publish(events.New("session_ready", path, map[string]any{"took_ms": took.Milliseconds()}))
	return nil
}

// Generate runs one inference. Valid only from Ready; a concurrent call
// fails fast with a busy error. Success or failure, the session returns to
// Ready before Generate returns.
func (s *Session) Generate(ctx context.Context, prompt string, params types.GenParams) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}
	switch s.state {
	case types.SessionUnloaded:
		s.mu.Unlock()
		generationsTotal.WithLabelValues("not_loaded").Inc()
		return "", notLoadedError{}
	case types.SessionLoading, types.SessionGenerating:
		st := s.state
		s.mu.Unlock()
		generationsTotal.WithLabelValues("busy").Inc()
		return "", busyError{state: string(st)}
	}
	s.state = types.SessionGenerating
	h := s.h
	s.mu.Unlock()

	start := time.Now()
	text, err := infer(ctx, h.model, prompt, params)
	took := time.Since(start)
	generationSeconds.Observe(took.Seconds())

	s.mu.Lock()
	var release *handle
	if s.closed {
		release = s.h
		s.h = nil
		s.resetLocked()
	} else {
		s.state = types.SessionReady
	}
	s.mu.Unlock()
	release.free()

	if err != nil {
		outcome := "failed"
		if ctx.Err() != nil {
			outcome = "cancelled"
		}
		generationsTotal.WithLabelValues(outcome).Inc()
		s.log.Warn().Str("event", "generation_failed").Err(err).Dur("took", took).Msg("generation failed")
		s.pub.Publish(events.New("generation_failed", "", map[string]any{"error": err.Error()}))
		return "", generationFailedError{err: err}
	}
	generationsTotal.WithLabelValues("ok").Inc()
	s.log.Debug().Str("event", "generation_done").Int("chars", len(text)).Dur("took", took).Msg("generation done")
	s.pub.Publish(events.New("generation_done", "", map[string]any{"took_ms": took.Milliseconds()}))
	return text, nil
}

// infer shields the session from engine panics.
func infer(ctx context.Context, m Model, prompt string, params types.GenParams) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("engine panic: %v", p)
		}
	}()
	return m.Infer(ctx, prompt, params)
}

// Unload frees the engine handle. A no-op when Unloaded; busy while a load
// or generation is in flight.
func (s *Session) Unload() error {
	s.mu.Lock()
	switch s.state {
	case types.SessionUnloaded:
		s.mu.Unlock()
		return nil
	case types.SessionLoading, types.SessionGenerating:
		st := s.state
		s.mu.Unlock()
		return busyError{state: string(st)}
	}
	h, path := s.h, s.path
	s.h = nil
	s.resetLocked()
	s.mu.Unlock()

	h.free()
	s.log.Info().Str("event", "session_unloaded").Str("path", path).Msg("model unloaded")
	s.pub.Publish(events.New("session_unloaded", path, nil))
	return nil
}

// Close rejects further operations and releases the handle. A generation or
// load in flight releases it when it finishes.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.state != types.SessionReady {
		s.mu.Unlock()
		return nil
	}
	h := s.h
	s.h = nil
	s.resetLocked()
	s.mu.Unlock()
	h.free()
	return nil
}

func (s *Session) resetLocked() {
	s.state = types.SessionUnloaded
	s.path = ""
	s.progress = 0
}
