package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mindbridge/internal/events"
	"mindbridge/pkg/types"
)

func loadedSession(t *testing.T, m *fakeModel) (*Session, *fakeEngine) {
	t.Helper()
	eng := &fakeEngine{model: m}
	s := New(Config{Engine: eng})
	p := createModelFile(t, t.TempDir(), "m.gguf")
	if err := s.Load(context.Background(), p); err != nil {
		t.Fatalf("load: %v", err)
	}
	return s, eng
}

func TestLoad_MissingFileIsModelNotFound(t *testing.T) {
	eng := &fakeEngine{}
	s := New(Config{Engine: eng})
	err := s.Load(context.Background(), filepath.Join(t.TempDir(), "nope.gguf"))
	if !IsModelNotFound(err) {
		t.Fatalf("expected model not found, got %v", err)
	}
	if s.State() != types.SessionUnloaded {
		t.Fatalf("state changed: %s", s.State())
	}
	if eng.inits != 0 {
		t.Fatalf("engine should not be called")
	}
}

func TestLoad_EmptyFileIsModelNotFound(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "empty.gguf")
	createModelFile(t, dir, "empty.gguf")
	if err := writeEmpty(p); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	s := New(Config{Engine: &fakeEngine{}})
	if err := s.Load(context.Background(), p); !IsModelNotFound(err) {
		t.Fatalf("expected model not found, got %v", err)
	}
}

func TestLoad_Success(t *testing.T) {
	mem := events.NewMemoryPublisher()
	eng := &fakeEngine{}
	s := New(Config{Engine: eng, Publisher: mem})
	if s.LoadProgress() != 0 {
		t.Fatalf("progress should start at 0")
	}
	p := createModelFile(t, t.TempDir(), "m.gguf")
	if err := s.Load(context.Background(), p); err != nil {
		t.Fatalf("load: %v", err)
	}
	snap := s.Snapshot()
	if snap.State != types.SessionReady || snap.ModelPath != p || snap.LoadProgress != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if eng.lastPath != p {
		t.Fatalf("engine got %q", eng.lastPath)
	}
	names := mem.Names()
	if len(names) != 2 || names[0] != "session_loading" || names[1] != "session_ready" {
		t.Fatalf("unexpected events: %v", names)
	}
}

func TestLoad_ProgressWhileLoading(t *testing.T) {
	gate := make(chan struct{})
	s := New(Config{Engine: &fakeEngine{initGate: gate}})
	p := createModelFile(t, t.TempDir(), "m.gguf")
	done := make(chan error, 1)
	go func() { done <- s.Load(context.Background(), p) }()

	waitState(t, s, types.SessionLoading)
	if got := s.LoadProgress(); got <= 0 || got >= 1 {
		t.Fatalf("loading progress out of range: %v", got)
	}
	if _, err := s.Generate(context.Background(), "hi", types.GenParams{}); !IsBusy(err) {
		t.Fatalf("generate while loading should be busy, got %v", err)
	}
	if err := s.Load(context.Background(), p); !IsBusy(err) {
		t.Fatalf("second load should be busy, got %v", err)
	}
	if err := s.Unload(); !IsBusy(err) {
		t.Fatalf("unload while loading should be busy, got %v", err)
	}
	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.LoadProgress() != 1 {
		t.Fatalf("progress should end at 1")
	}
}

func TestLoad_InitFailureStaysUnloaded(t *testing.T) {
	cause := errors.New("bad magic")
	s := New(Config{Engine: &fakeEngine{initErr: cause}})
	p := createModelFile(t, t.TempDir(), "m.gguf")
	err := s.Load(context.Background(), p)
	if !IsInitializationFailed(err) || !errors.Is(err, cause) {
		t.Fatalf("expected initialization failure wrapping cause, got %v", err)
	}
	snap := s.Snapshot()
	if snap.State != types.SessionUnloaded || snap.LoadProgress != 0 || snap.ModelPath != "" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestLoad_InitPanicIsInitializationFailed(t *testing.T) {
	s := New(Config{Engine: &fakeEngine{initPanic: true}})
	p := createModelFile(t, t.TempDir(), "m.gguf")
	if err := s.Load(context.Background(), p); !IsInitializationFailed(err) {
		t.Fatalf("expected initialization failure, got %v", err)
	}
}

func TestLoad_StubEngineWithoutLlama(t *testing.T) {
	if LlamaBuilt {
		t.Skip("built with llama support")
	}
	s := New(Config{Engine: NewLlamaEngine(2048, 2)})
	p := createModelFile(t, t.TempDir(), "m.gguf")
	err := s.Load(context.Background(), p)
	if !IsInitializationFailed(err) || !IsDependencyUnavailable(err) {
		t.Fatalf("expected dependency unavailable init failure, got %v", err)
	}
}

func TestLoad_FromReadyIsAlreadyLoaded(t *testing.T) {
	s, _ := loadedSession(t, &fakeModel{reply: "x"})
	p := createModelFile(t, t.TempDir(), "other.gguf")
	if err := s.Load(context.Background(), p); !IsAlreadyLoaded(err) {
		t.Fatalf("expected already loaded, got %v", err)
	}
}

func TestLoad_AbandonedFreesLateHandle(t *testing.T) {
	gate := make(chan struct{})
	m := &fakeModel{reply: "x"}
	s := New(Config{Engine: &fakeEngine{initGate: gate, model: m}})
	p := createModelFile(t, t.TempDir(), "m.gguf")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Load(ctx, p) }()
	waitState(t, s, types.SessionLoading)
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if s.State() != types.SessionUnloaded {
		t.Fatalf("abandoned load should leave Unloaded, got %s", s.State())
	}
	close(gate)
	deadline := time.Now().Add(2 * time.Second)
	for m.frees.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("late handle never freed")
		}
		time.Sleep(time.Millisecond)
	}
	if m.frees.Load() != 1 {
		t.Fatalf("late handle freed %d times", m.frees.Load())
	}
}

func TestGenerate_Unloaded(t *testing.T) {
	s := New(Config{Engine: &fakeEngine{}})
	if _, err := s.Generate(context.Background(), "hi", types.GenParams{}); !IsNotLoaded(err) {
		t.Fatalf("expected not loaded, got %v", err)
	}
	if s.State() != types.SessionUnloaded {
		t.Fatalf("state changed")
	}
}

func TestGenerate_SuccessReturnsToReady(t *testing.T) {
	m := &fakeModel{reply: "hello there"}
	s, _ := loadedSession(t, m)
	got, err := s.Generate(context.Background(), "prompt", types.GenParams{MaxTokens: 16})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != "hello there" || m.prompts[0] != "prompt" {
		t.Fatalf("unexpected result %q / prompts %v", got, m.prompts)
	}
	if s.State() != types.SessionReady {
		t.Fatalf("state=%s want ready", s.State())
	}
}

func TestGenerate_ConcurrentCallIsBusyAndDoesNotDisturbFirst(t *testing.T) {
	m := &fakeModel{reply: "first", gate: make(chan struct{}), started: make(chan struct{}, 1)}
	s, _ := loadedSession(t, m)

	var (
		wg    sync.WaitGroup
		first string
		ferr  error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		first, ferr = s.Generate(context.Background(), "a", types.GenParams{})
	}()
	<-m.started
	if s.State() != types.SessionGenerating {
		t.Fatalf("state=%s want generating", s.State())
	}
	for i := 0; i < 5; i++ {
		if _, err := s.Generate(context.Background(), "b", types.GenParams{}); !IsBusy(err) {
			t.Fatalf("expected busy, got %v", err)
		}
	}
	if err := s.Unload(); !IsBusy(err) {
		t.Fatalf("unload during generation should be busy, got %v", err)
	}
	close(m.gate)
	wg.Wait()
	if ferr != nil || first != "first" {
		t.Fatalf("first call disturbed: %q %v", first, ferr)
	}
	if s.State() != types.SessionReady {
		t.Fatalf("state=%s want ready", s.State())
	}
}

func TestGenerate_FailureKeepsSessionUsable(t *testing.T) {
	cause := errors.New("kv cache full")
	m := &fakeModel{err: cause}
	s, _ := loadedSession(t, m)
	_, err := s.Generate(context.Background(), "x", types.GenParams{})
	if !IsGenerationFailed(err) || !errors.Is(err, cause) {
		t.Fatalf("expected generation failure wrapping cause, got %v", err)
	}
	if s.State() != types.SessionReady {
		t.Fatalf("state=%s want ready", s.State())
	}
	m.err = nil
	m.reply = "recovered"
	if got, err := s.Generate(context.Background(), "x", types.GenParams{}); err != nil || got != "recovered" {
		t.Fatalf("retry failed: %q %v", got, err)
	}
}

func TestGenerate_CancellationReturnsToReady(t *testing.T) {
	m := &fakeModel{gate: make(chan struct{}), started: make(chan struct{}, 1)}
	s, _ := loadedSession(t, m)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := s.Generate(ctx, "x", types.GenParams{})
		done <- err
	}()
	<-m.started
	cancel()
	err := <-done
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if s.State() != types.SessionReady {
		t.Fatalf("state=%s want ready", s.State())
	}
}

func TestUnload_FreesExactlyOnce(t *testing.T) {
	m := &fakeModel{reply: "x"}
	s, _ := loadedSession(t, m)
	if err := s.Unload(); err != nil {
		t.Fatalf("unload: %v", err)
	}
	if err := s.Unload(); err != nil {
		t.Fatalf("second unload should be a no-op: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if m.frees.Load() != 1 {
		t.Fatalf("freed %d times", m.frees.Load())
	}
	if s.Snapshot() != (types.SessionSnapshot{State: types.SessionUnloaded}) {
		t.Fatalf("unexpected snapshot %+v", s.Snapshot())
	}
}

func TestClose_DuringGenerationFreesAfterCompletion(t *testing.T) {
	m := &fakeModel{reply: "done", gate: make(chan struct{}), started: make(chan struct{}, 1)}
	s, _ := loadedSession(t, m)
	done := make(chan error, 1)
	go func() {
		_, err := s.Generate(context.Background(), "x", types.GenParams{})
		done <- err
	}()
	<-m.started
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if m.frees.Load() != 0 {
		t.Fatalf("handle freed under an active generation")
	}
	close(m.gate)
	if err := <-done; err != nil {
		t.Fatalf("generate: %v", err)
	}
	if m.frees.Load() != 1 {
		t.Fatalf("freed %d times", m.frees.Load())
	}
	if _, err := s.Generate(context.Background(), "x", types.GenParams{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestPlaceholderEngine(t *testing.T) {
	eng := &PlaceholderEngine{}
	s := New(Config{Engine: eng})
	p := createModelFile(t, t.TempDir(), "m.gguf")
	if err := s.Load(context.Background(), p); err != nil {
		t.Fatalf("load: %v", err)
	}
	got, err := s.Generate(context.Background(), "anything", types.GenParams{})
	if err != nil || got != PlaceholderReply {
		t.Fatalf("unexpected reply %q %v", got, err)
	}
	_ = s.Unload()
	if eng.Freed() != 1 {
		t.Fatalf("freed %d", eng.Freed())
	}
}

func waitState(t *testing.T, s *Session, want types.SessionState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("state never reached %s (now %s)", want, s.State())
		}
		time.Sleep(time.Millisecond)
	}
}
