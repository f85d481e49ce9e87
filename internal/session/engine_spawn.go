package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// SpawnConfig describes how to launch a private llama-server per loaded model.
type SpawnConfig struct {
	Binary string
	// Host defaults to 127.0.0.1.
	Host      string
	CtxSize   int
	Threads   int
	ExtraArgs []string
	// ReadyTimeout bounds the wait for the server's health endpoint (default 30s).
	ReadyTimeout time.Duration
	APIKey       string
	// RequestTimeout bounds one completion (0 = only the caller's ctx).
	RequestTimeout time.Duration
}

// SpawnEngine starts llama-server with the model file on Init and stops it
// when the handle is freed. Inference goes through the same streaming
// client as ServerEngine.
type SpawnEngine struct {
	cfg SpawnConfig
	log zerolog.Logger
}

// NewSpawnEngine constructs a subprocess-backed engine.
func NewSpawnEngine(cfg SpawnConfig, log zerolog.Logger) *SpawnEngine {
	if strings.TrimSpace(cfg.Host) == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 30 * time.Second
	}
	return &SpawnEngine{cfg: cfg, log: log}
}

// Init launches the server and blocks until it answers /health, exits, or
// ReadyTimeout passes. stderr of a server that dies early is included in the error.
func (e *SpawnEngine) Init(modelPath string) (Model, error) {
	if strings.TrimSpace(modelPath) == "" {
		return nil, errors.New("model path is empty")
	}
	if strings.TrimSpace(e.cfg.Binary) == "" {
		return nil, ErrDependencyUnavailable("llama-server binary not configured")
	}
	if _, err := exec.LookPath(e.cfg.Binary); err != nil {
		return nil, ErrDependencyUnavailable("llama-server binary not found: " + e.cfg.Binary)
	}
	port, err := pickFreePort(e.cfg.Host)
	if err != nil {
		return nil, err
	}
	baseURL := fmt.Sprintf("http://%s", net.JoinHostPort(e.cfg.Host, strconv.Itoa(port)))

	args := []string{"-m", modelPath, "--host", e.cfg.Host, "--port", strconv.Itoa(port)}
	if e.cfg.CtxSize > 0 {
		args = append(args, "-c", strconv.Itoa(e.cfg.CtxSize))
	}
	if e.cfg.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(e.cfg.Threads))
	}
	args = append(args, e.cfg.ExtraArgs...)

	cmd := exec.Command(e.cfg.Binary, args...)
	stderr := &tailBuffer{max: stderrTailBytes}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start llama-server: %w", err)
	}
	p := &process{cmd: cmd, exited: make(chan struct{})}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.exited)
	}()
	e.log.Info().Str("model", modelPath).Int("pid", cmd.Process.Pid).Str("url", baseURL).Msg("llama-server started")

	srv := NewServerEngine(baseURL, e.cfg.APIKey, e.cfg.RequestTimeout, time.Second, e.log)
	if err := e.waitReady(srv, p); err != nil {
		p.stop()
		if tail := stderr.String(); tail != "" {
			err = fmt.Errorf("%w; stderr tail: %s", err, tail)
		}
		e.log.Warn().Err(err).Str("model", modelPath).Int("pid", cmd.Process.Pid).Msg("llama-server failed to start")
		return nil, err
	}
	e.log.Info().Str("model", modelPath).Int("pid", cmd.Process.Pid).Msg("llama-server ready")

	inner := &serverModel{engine: srv, modelID: ""}
	return &spawnedModel{serverModel: inner, proc: p, log: e.log}, nil
}

// waitReady polls /health until it returns 200.
func (e *SpawnEngine) waitReady(srv *ServerEngine, p *process) error {
	deadline := time.Now().Add(e.cfg.ReadyTimeout)
	for {
		select {
		case <-p.exited:
			if p.waitErr != nil {
				return fmt.Errorf("llama-server exited early: %w", p.waitErr)
			}
			return errors.New("llama-server exited before ready")
		default:
		}
		if srv.healthy() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("llama-server not ready in %s", e.cfg.ReadyTimeout)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// healthy reports whether /health answers 200 within the connect timeout.
func (e *ServerEngine) healthy() bool {
	ctx, cancel := context.WithTimeout(context.Background(), e.connectTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	e.authorize(req)
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type process struct {
	cmd     *exec.Cmd
	exited  chan struct{}
	waitErr error
	once    sync.Once
}

// stop sends SIGTERM and escalates to SIGKILL after two seconds.
func (p *process) stop() {
	p.once.Do(func() {
		select {
		case <-p.exited:
			return
		default:
		}
		_ = p.cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-p.exited:
		case <-time.After(2 * time.Second):
			_ = p.cmd.Process.Kill()
			<-p.exited
		}
	})
}

type spawnedModel struct {
	*serverModel
	proc *process
	log  zerolog.Logger
}

func (m *spawnedModel) Free() {
	m.serverModel.Free()
	m.proc.stop()
	m.log.Info().Int("pid", m.proc.cmd.Process.Pid).Msg("llama-server stopped")
}

func pickFreePort(host string) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

const stderrTailBytes = 4096

// tailBuffer keeps only the last max bytes written to it. The server runs
// for the life of the model, so its stderr must not accumulate.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(p)
	if n >= b.max {
		b.buf = append(b.buf[:0], p[n-b.max:]...)
		return n, nil
	}
	if over := len(b.buf) + n - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	b.buf = append(b.buf, p...)
	return n, nil
}

// String returns the retained tail with surrounding whitespace trimmed.
func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(string(b.buf))
}
