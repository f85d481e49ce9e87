package chat

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"mindbridge/internal/session"
	"mindbridge/pkg/types"
)

type engineFunc func(path string) (session.Model, error)

func (f engineFunc) Init(path string) (session.Model, error) { return f(path) }

// blockingModel signals started and then waits for gate.
type blockingModel struct {
	gate    chan struct{}
	started chan struct{}
}

func (m *blockingModel) Infer(ctx context.Context, _ string, _ types.GenParams) (string, error) {
	m.started <- struct{}{}
	select {
	case <-m.gate:
		return "done", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *blockingModel) Free() {}

func modelFile(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "m.gguf")
	if err := os.WriteFile(p, []byte("GGUF"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	return p
}
