package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"mindbridge/internal/app"
	"mindbridge/internal/assets"
	"mindbridge/internal/config"
	"mindbridge/internal/download"
	"mindbridge/internal/session"
	"mindbridge/pkg/types"
)

// alreadyInProgress produces the rejection of a second concurrent download.
func alreadyInProgress(t *testing.T) error {
	t.Helper()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1024")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	store, err := assets.New(t.TempDir())
	if err != nil {
		t.Fatalf("assets: %v", err)
	}
	o := download.New(download.Config{Assets: store, Client: srv.Client()})
	t.Cleanup(func() { _ = o.Close(context.Background()) })
	v := types.ModelVariant{ID: "slow", URL: srv.URL + "/slow.gguf", FileName: "slow.gguf"}
	if _, err := o.Start(context.Background(), v); err != nil {
		t.Fatalf("first start: %v", err)
	}
	_, err = o.Start(context.Background(), v)
	if !download.IsAlreadyInProgress(err) {
		t.Fatalf("expected already in progress, got %v", err)
	}
	return err
}

func noActiveJob(t *testing.T) error {
	t.Helper()
	err := download.New(download.Config{}).Cancel("")
	if !download.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	return err
}

// fullDisk stages downloads into /dev/full so every write fails with ENOSPC.
type fullDisk struct{}

func (fullDisk) TempPath(types.ModelVariant) string           { return "/dev/full" }
func (fullDisk) TempSize(types.ModelVariant) int64            { return 0 }
func (fullDisk) RemoveTemp(types.ModelVariant) error          { return nil }
func (fullDisk) Materialize(types.ModelVariant, string) error { return errors.New("unreachable") }

func diskFull(t *testing.T) error {
	t.Helper()
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("/dev/full not available")
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 64*1024))
	}))
	t.Cleanup(srv.Close)
	o := download.New(download.Config{Assets: fullDisk{}, Client: srv.Client()})
	err := o.Download(context.Background(), types.ModelVariant{ID: "big", URL: srv.URL + "/big.gguf", FileName: "big.gguf"}, nil)
	if download.KindOf(err) != download.KindDiskFull {
		t.Fatalf("expected disk_full, got %v", err)
	}
	return err
}

// redownloadErrors returns the rejections for downloading a variant already
// on disk and one the session has loaded.
func redownloadErrors(t *testing.T) (onDisk, loaded error) {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	v := types.ModelVariant{ID: "tiny", Name: "tiny", URL: "http://127.0.0.1:1/tiny.gguf", FileName: "tiny.gguf"}
	a, err := app.New(cfg, app.WithEngine(&session.PlaceholderEngine{}), app.WithVariants([]types.ModelVariant{v}))
	if err != nil {
		t.Fatalf("app: %v", err)
	}
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	if err := os.WriteFile(a.Assets.Path(v), []byte("gguf"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, onDisk = a.StartDownload(context.Background(), v.ID)
	if err := a.LoadVariant(context.Background(), v.ID); err != nil {
		t.Fatalf("load: %v", err)
	}
	_, loaded = a.StartDownload(context.Background(), v.ID)
	return onDisk, loaded
}

func sessionNotFound(t *testing.T) error {
	t.Helper()
	s := session.New(session.Config{Engine: &session.PlaceholderEngine{}})
	err := s.Load(context.Background(), filepath.Join(t.TempDir(), "missing.gguf"))
	if !session.IsModelNotFound(err) {
		t.Fatalf("expected model not found, got %v", err)
	}
	return err
}

func TestClassify(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	model := filepath.Join(dir, "m.gguf")
	if err := os.WriteFile(model, []byte("gguf"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := session.New(session.Config{Engine: &session.PlaceholderEngine{}})
	_, notLoaded := s.Generate(ctx, "p", types.GenParams{})
	if err := s.Load(ctx, model); err != nil {
		t.Fatalf("load: %v", err)
	}
	alreadyLoaded := s.Load(ctx, model)

	store, err := assets.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	assetMissing := store.Delete(types.ModelVariant{ID: "x", FileName: "x.gguf"})
	onDisk, loaded := redownloadErrors(t)

	cases := []struct {
		name   string
		err    error
		status int
		reason string
	}{
		{"in progress", alreadyInProgress(t), http.StatusConflict, "already_in_progress"},
		{"no job", noActiveJob(t), http.StatusNotFound, "not_found"},
		{"disk full", diskFull(t), http.StatusInsufficientStorage, "disk_full"},
		{"already downloaded", onDisk, http.StatusConflict, "already_downloaded"},
		{"loaded variant", loaded, http.StatusConflict, "in_use"},
		{"model file missing", sessionNotFound(t), http.StatusNotFound, ""},
		{"not loaded", notLoaded, http.StatusConflict, "not_loaded"},
		{"already loaded", alreadyLoaded, http.StatusConflict, "already_loaded"},
		{"asset missing", assetMissing, http.StatusNotFound, ""},
		{"no llama build", session.ErrDependencyUnavailable("llama not built"), http.StatusServiceUnavailable, ""},
		{"closed", fmt.Errorf("load: %w", session.ErrClosed), http.StatusServiceUnavailable, ""},
		{"custom status", statusErr{code: http.StatusTeapot}, http.StatusTeapot, ""},
		{"plain", errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, reason := classify(tc.err)
			if status != tc.status || reason != tc.reason {
				t.Fatalf("classify(%v) = %d %q, want %d %q", tc.err, status, reason, tc.status, tc.reason)
			}
		})
	}
}

func TestWriteError_DiskFullIs507(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, diskFull(t))
	if w.Code != http.StatusInsufficientStorage {
		t.Fatalf("status %d", w.Code)
	}
	if er := decodeErr(t, w); er.Kind != "disk_full" {
		t.Fatalf("kind %+v", er)
	}
}

func TestWriteError_KindOnlyForDownloads(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, sessionNotFound(t))
	if er := decodeErr(t, w); er.Kind != "" {
		t.Fatalf("session errors should not carry a kind: %+v", er)
	}
	w = httptest.NewRecorder()
	writeError(w, noActiveJob(t))
	if er := decodeErr(t, w); er.Kind != "not_found" {
		t.Fatalf("download error kind missing: %+v", er)
	}
}
