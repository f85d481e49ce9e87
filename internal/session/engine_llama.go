//go:build llama

package session

import (
	"context"
	"errors"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"

	"mindbridge/pkg/types"
)

// LlamaBuilt indicates this binary was compiled with real llama support.
const LlamaBuilt = true

// LlamaEngine loads GGUF files in-process through go-llama.cpp.
type LlamaEngine struct {
	ctxSize int
	threads int
}

func NewLlamaEngine(ctxSize, threads int) *LlamaEngine {
	return &LlamaEngine{ctxSize: ctxSize, threads: threads}
}

type llamaModel struct {
	model   *llama.LLama
	threads int
}

func (e *LlamaEngine) Init(modelPath string) (Model, error) {
	if strings.TrimSpace(modelPath) == "" {
		return nil, errors.New("model path is empty")
	}
	m, err := llama.New(modelPath, llama.SetContext(e.ctxSize))
	if err != nil {
		return nil, err
	}
	return &llamaModel{model: m, threads: e.threads}, nil
}

func (m *llamaModel) Infer(ctx context.Context, prompt string, params types.GenParams) (string, error) {
	if m.model == nil {
		return "", errors.New("llama model not initialized")
	}
	// stop predicting as soon as the caller goes away
	m.model.SetTokenCallback(func(string) bool {
		return ctx.Err() == nil
	})
	text, err := m.model.Predict(prompt, predictOptions(params, m.threads)...)
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.TrimSuffix(text, imEnd)), nil
}

func (m *llamaModel) Free() {
	if m.model != nil {
		m.model.Free()
		m.model = nil
	}
}

// predictOptions converts GenParams into go-llama.cpp options.
func predictOptions(p types.GenParams, threads int) []llama.PredictOption {
	d := llama.DefaultOptions
	p = withEngineDefaults(p, types.GenParams{MaxTokens: d.Tokens, RepeatPenalty: d.Penalty})
	if threads <= 0 {
		threads = d.Threads
	}
	return []llama.PredictOption{
		llama.SetTokens(p.MaxTokens),
		llama.SetThreads(threads),
		llama.SetTopP(p.TopP),
		llama.SetTopK(p.TopK),
		llama.SetTemperature(p.Temperature),
		llama.SetPenalty(p.RepeatPenalty),
		llama.SetSeed(p.Seed),
		llama.SetStopWords(append([]string{imEnd}, p.Stop...)...),
	}
}
