package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"mindbridge/pkg/types"
)

// createModelFile writes a small non-empty file standing in for a GGUF model.
func createModelFile(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("GGUF fake weights"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	return p
}

// fakeEngine is an in-memory engine used for tests.
type fakeEngine struct {
	initErr   error
	initPanic bool
	// initGate, when set, blocks Init until closed.
	initGate chan struct{}
	model    *fakeModel

	mu       sync.Mutex
	inits    int
	lastPath string
}

func (e *fakeEngine) Init(modelPath string) (Model, error) {
	e.mu.Lock()
	e.inits++
	e.lastPath = modelPath
	e.mu.Unlock()
	if e.initGate != nil {
		<-e.initGate
	}
	if e.initPanic {
		panic("boom")
	}
	if e.initErr != nil {
		return nil, e.initErr
	}
	if e.model == nil {
		e.model = &fakeModel{reply: "ok"}
	}
	return e.model, nil
}

// fakeModel answers with reply or err. When gate is set, Infer blocks until
// the gate is closed or ctx ends; started is signalled on entry.
type fakeModel struct {
	reply   string
	err     error
	gate    chan struct{}
	started chan struct{}

	frees   atomic.Int32
	mu      sync.Mutex
	prompts []string
}

func (m *fakeModel) Infer(ctx context.Context, prompt string, _ types.GenParams) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func (m *fakeModel) Free() { m.frees.Add(1) }

func writeEmpty(p string) error { return os.Truncate(p, 0) }
