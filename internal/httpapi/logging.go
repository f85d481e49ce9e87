package httpapi

import (
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// zlog is the structured logger of the HTTP layer. Nop until SetLogger.
var zlog = zerolog.Nop()

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = l }

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch s {
	case "off", "":
		return LevelOff
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// global default, read once
var defaultLogLevel = func() LogLevel {
	if v := os.Getenv("MINDBRIDGE_HTTP_LOG"); v != "" {
		return parseLevel(v)
	}
	return LevelInfo
}()

func requestLogLevel(r *http.Request) LogLevel {
	// Per-request overrides
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return LevelDebug
		}
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

// RequestLogger logs one line per request at the request's log level.
// Errors (status >= 500) are logged from LevelError up.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lvl := requestLogLevel(r)
		if lvl == LevelOff {
			next.ServeHTTP(w, r)
			return
		}
		sr, ok := w.(*statusRecorder)
		if !ok {
			sr = &statusRecorder{ResponseWriter: w, status: 200}
		}
		start := time.Now()
		next.ServeHTTP(sr, r)
		if lvl < LevelInfo && sr.status < 500 {
			return
		}
		ev := zlog.Info()
		if sr.status >= 500 {
			ev = zlog.Error()
		}
		ev = ev.Str("method", r.Method).Str("path", r.URL.Path).Int("status", sr.status).Dur("dur", time.Since(start))
		if rid := middleware.GetReqID(r.Context()); rid != "" {
			ev = ev.Str("request_id", rid)
		}
		ev.Msg("http request")
	})
}

// loggingLineWriter logs complete NDJSON lines at debug level.
type loggingLineWriter struct {
	buf    []byte
	prefix string
}

func (lw *loggingLineWriter) Write(p []byte) (int, error) {
	lw.buf = append(lw.buf, p...)
	for {
		idx := indexByte(lw.buf, '\n')
		if idx < 0 {
			break
		}
		line := string(lw.buf[:idx])
		if len(line) > 0 {
			zlog.Debug().Str("stream", lw.prefix).Msg(line)
		}
		lw.buf = lw.buf[idx+1:]
	}
	return len(p), nil
}

func indexByte(b []byte, c byte) int {
	for i := range b {
		if b[i] == c {
			return i
		}
	}
	return -1
}
