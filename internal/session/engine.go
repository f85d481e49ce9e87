package session

import (
	"context"

	"mindbridge/pkg/types"
)

// Engine initializes a model from a file on disk. Init blocks for as long as
// the weights take to load and is always called off the caller's goroutine.
type Engine interface {
	Init(modelPath string) (Model, error)
}

// Model is one initialized engine handle.
type Model interface {
	// Infer runs one completion for an already framed prompt. Implementations
	// should return promptly once ctx is done.
	Infer(ctx context.Context, prompt string, params types.GenParams) (string, error)
	// Free releases native resources. The session calls it exactly once.
	Free()
}

// withEngineDefaults fills the fields whose zero value is not a usable
// setting (no tokens, a penalty that zeroes logits) from def. Temperature,
// TopP, TopK and Seed are kept as given.
func withEngineDefaults(p, def types.GenParams) types.GenParams {
	if p.MaxTokens <= 0 {
		p.MaxTokens = def.MaxTokens
	}
	if p.RepeatPenalty <= 0 {
		p.RepeatPenalty = def.RepeatPenalty
	}
	return p
}
