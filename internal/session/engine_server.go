package session

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"mindbridge/pkg/types"
)

// ServerEngine runs inference on an external llama.cpp server (llama-server)
// through its OpenAI-compatible streaming completions endpoint. The server
// must already serve the model; Init only checks that it is reachable.
type ServerEngine struct {
	baseURL        string
	apiKey         string
	reqTimeout     time.Duration
	connectTimeout time.Duration
	client         *http.Client
	log            zerolog.Logger
}

// NewServerEngine constructs a server-backed engine. reqTimeout bounds one
// completion (0 = only the caller's ctx).
func NewServerEngine(baseURL, apiKey string, reqTimeout, connectTimeout time.Duration, log zerolog.Logger) *ServerEngine {
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	// no client timeout: completions stream for as long as the ctx allows
	return &ServerEngine{
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         apiKey,
		reqTimeout:     reqTimeout,
		connectTimeout: connectTimeout,
		client:         &http.Client{Transport: tr},
		log:            log,
	}
}

// Init verifies the server answers /health. The file name is sent as the
// model field so servers hosting several models can route the request.
func (e *ServerEngine) Init(modelPath string) (Model, error) {
	if strings.TrimSpace(modelPath) == "" {
		return nil, errors.New("model path is empty")
	}
	if e.baseURL == "" {
		return nil, ErrDependencyUnavailable("llama server url not configured")
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.connectTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/health", nil)
	if err != nil {
		return nil, err
	}
	e.authorize(req)
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llama server unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llama server not ready: %s", resp.Status)
	}
	return &serverModel{engine: e, modelID: filepath.Base(modelPath)}, nil
}

func (e *ServerEngine) authorize(req *http.Request) {
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}
}

type serverModel struct {
	engine  *ServerEngine
	modelID string
}

// completionRequest is the payload for /v1/completions.
type completionRequest struct {
	Model       string   `json:"model,omitempty"`
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature float32  `json:"temperature"`
	TopP        float32  `json:"top_p"`
	TopK        int      `json:"top_k"`
	Stop        []string `json:"stop,omitempty"`
	Seed        int      `json:"seed"`
	Stream      bool     `json:"stream"`
	// not standard OpenAI; llama.cpp accepts it, other servers ignore it
	RepeatPenalty float32 `json:"repeat_penalty,omitempty"`
}

// streamChunk covers both the chat-style delta and the completions-style text field.
type streamChunk struct {
	Choices []struct {
		Text  string `json:"text"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	// native llama.cpp /completion streams carry the token here
	Content string `json:"content"`
}

func (m *serverModel) Infer(ctx context.Context, prompt string, params types.GenParams) (string, error) {
	e := m.engine
	if e.reqTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.reqTimeout)
		defer cancel()
	}
	body, err := json.Marshal(completionRequest{
		Model:         m.modelID,
		Prompt:        prompt,
		MaxTokens:     params.MaxTokens,
		Temperature:   params.Temperature,
		TopP:          params.TopP,
		TopK:          params.TopK,
		Stop:          append([]string{imEnd}, params.Stop...),
		Seed:          params.Seed,
		Stream:        true,
		RepeatPenalty: params.RepeatPenalty,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	e.authorize(req)
	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("llama server http error: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}

	var out strings.Builder
	r := bufio.NewReader(resp.Body)
	for {
		line, readErr := r.ReadString('\n')
		if done := m.consume(strings.TrimSpace(line), &out); done {
			break
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if errors.Is(readErr, io.EOF) {
				break
			}
			return "", readErr
		}
	}
	return strings.TrimSpace(strings.TrimSuffix(out.String(), imEnd)), nil
}

// consume appends the token carried by one stream line. It reports true on
// the terminating [DONE] marker.
func (m *serverModel) consume(line string, out *strings.Builder) bool {
	if line == "" {
		return false
	}
	data, ok := strings.CutPrefix(line, "data:")
	if !ok {
		m.engine.log.Debug().Str("line", line).Msg("llama server: unexpected stream line")
		return false
	}
	data = strings.TrimSpace(data)
	if data == "[DONE]" {
		return true
	}
	var chunk streamChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		m.engine.log.Debug().Err(err).Str("line", line).Msg("llama server: undecodable chunk")
		return false
	}
	if len(chunk.Choices) > 0 {
		c := chunk.Choices[0]
		out.WriteString(c.Text)
		out.WriteString(c.Delta.Content)
		return false
	}
	out.WriteString(chunk.Content)
	return false
}

// Free drops idle connections; the server owns the weights.
func (m *serverModel) Free() { m.engine.client.CloseIdleConnections() }
