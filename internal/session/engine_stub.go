//go:build !llama

package session

// LlamaBuilt indicates this binary was compiled with real llama support.
const LlamaBuilt = false

// LlamaEngine is a stub compiled without the 'llama' build tag. Init always
// fails so a missing runtime surfaces as an initialization failure rather
// than fake output.
type LlamaEngine struct {
	ctxSize int
	threads int
}

func NewLlamaEngine(ctxSize, threads int) *LlamaEngine {
	return &LlamaEngine{ctxSize: ctxSize, threads: threads}
}

func (e *LlamaEngine) Init(modelPath string) (Model, error) {
	return nil, ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}
