package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := zlog
	SetLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))
	t.Cleanup(func() { SetLogger(orig) })
	return &buf
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"":      LevelOff,
		"off":   LevelOff,
		"error": LevelError,
		"info":  LevelInfo,
		"debug": LevelDebug,
		"weird": LevelInfo, // default
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestLogLevel_Overrides(t *testing.T) {
	r := httptest.NewRequest("GET", "/x?log=debug", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("query override failed: %v", got)
	}
	r = httptest.NewRequest("GET", "/x?log=1", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("shorthand query override failed: %v", got)
	}
	r = httptest.NewRequest("GET", "/x", nil)
	r.Header.Set("X-Log-Level", "error")
	if got := requestLogLevel(r); got != LevelError {
		t.Fatalf("header override failed: %v", got)
	}
	// query wins over header
	r = httptest.NewRequest("GET", "/x?log=off", nil)
	r.Header.Set("X-Log-Level", "debug")
	if got := requestLogLevel(r); got != LevelOff {
		t.Fatalf("query should win over header: %v", got)
	}
}

func TestLoggingLineWriter_SplitsLines(t *testing.T) {
	buf := captureLog(t)

	lw := &loggingLineWriter{prefix: "events"}
	_, _ = lw.Write([]byte("a line\npartial"))
	_, _ = lw.Write([]byte("-cont\nlast\n"))

	out := buf.String()
	for _, want := range []string{`"message":"a line"`, `"message":"partial-cont"`, `"message":"last"`, `"stream":"events"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %s in %q", want, out)
		}
	}
	if n := strings.Count(out, "\n"); n != 3 {
		t.Fatalf("expected 3 log lines, got %d: %q", n, out)
	}
}

func TestRequestLogger_LevelsAndErrors(t *testing.T) {
	buf := captureLog(t)
	h := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/boom" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/quiet?log=off", nil))
	if buf.Len() != 0 {
		t.Fatalf("log=off should not log: %q", buf.String())
	}

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/brew?log=info", nil))
	if !strings.Contains(buf.String(), `"status":418`) || !strings.Contains(buf.String(), `"path":"/brew"`) {
		t.Fatalf("info request not logged: %q", buf.String())
	}
	buf.Reset()

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/brew?log=error", nil))
	if buf.Len() != 0 {
		t.Fatalf("error level should skip non-5xx: %q", buf.String())
	}
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom?log=error", nil))
	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Fatalf("5xx should log at error: %q", buf.String())
	}
}
