package types

import "time"

// ModelVariant is one downloadable quantization of a model file.
type ModelVariant struct {
	// Stable identifier, derived from the file name stem.
	// example: qwen3-4b-instruct-q4_k_m
	ID string `json:"id" example:"qwen3-4b-instruct-q4_k_m"`
	// Human-friendly name.
	// example: Qwen3-4B-Instruct Q4_K_M
	Name string `json:"name" example:"Qwen3-4B-Instruct Q4_K_M"`
	// Remote location of the file.
	URL string `json:"url"`
	// File name the variant is stored under in the data directory.
	// example: qwen3-4b-instruct-q4_k_m.gguf
	FileName string `json:"file_name" example:"qwen3-4b-instruct-q4_k_m.gguf"`
	// Declared size in bytes (0 when unknown).
	SizeBytes int64 `json:"size_bytes"`
	// Declared size as shown to users.
	// example: 2.7GB
	SizeLabel string `json:"size" example:"2.7GB"`
	// Quantization label.
	// example: Q4_K_M
	Quantization string `json:"quantization" example:"Q4_K_M"`
	// Derived: the file is present and non-empty on disk.
	Downloaded bool `json:"downloaded"`
	// Derived: fraction of the active download, 1 when downloaded.
	DownloadProgress float64 `json:"download_progress"`
}

// Author identifies who wrote a chat message.
type Author string

const (
	AuthorUser      Author = "user"
	AuthorAssistant Author = "assistant"
)

// ChatMessage is an immutable transcript entry.
type ChatMessage struct {
	ID        string    `json:"id"`
	Author    Author    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	// Notice marks greetings and diagnostics that are not part of the model conversation.
	Notice bool `json:"notice,omitempty"`
}

// IsUser reports whether the message was written by the user.
func (m ChatMessage) IsUser() bool { return m.Author == AuthorUser }

// GenParams is the generation parameter bag handed to the engine untouched.
// Zero Temperature, TopP and TopK are real settings (greedy, no nucleus or
// top-k cut). A negative Seed asks for a random one. Zero MaxTokens and
// RepeatPenalty select the engine default.
type GenParams struct {
	Temperature   float32  `json:"temperature"`
	TopP          float32  `json:"top_p"`
	TopK          int      `json:"top_k"`
	MaxTokens     int      `json:"max_tokens,omitempty"`
	Seed          int      `json:"seed"`
	RepeatPenalty float32  `json:"repeat_penalty,omitempty"`
	Stop          []string `json:"stop,omitempty"`
}

// DownloadState is the lifecycle state of a download job.
type DownloadState string

const (
	DownloadIdle        DownloadState = "idle"
	DownloadRequested   DownloadState = "requested"
	DownloadDownloading DownloadState = "downloading"
	DownloadCompleted   DownloadState = "completed"
	DownloadFailed      DownloadState = "failed"
	DownloadCancelled   DownloadState = "cancelled"
)

// Terminal reports whether no further transitions follow s.
func (s DownloadState) Terminal() bool {
	return s == DownloadCompleted || s == DownloadFailed || s == DownloadCancelled
}

// DownloadSnapshot is a read-only projection of a download job.
type DownloadSnapshot struct {
	JobID       string        `json:"job_id,omitempty"`
	VariantID   string        `json:"variant_id,omitempty"`
	State       DownloadState `json:"state"`
	Transferred int64         `json:"transferred"`
	// Total is -1 when the remote did not declare a length.
	Total int64 `json:"total"`
	// Fraction is -1 while progress is indeterminate.
	Fraction float64 `json:"fraction"`
	Err      string  `json:"error,omitempty"`
	ErrKind  string  `json:"error_kind,omitempty"`
}

// SessionState is the lifecycle state of the inference session.
type SessionState string

const (
	SessionUnloaded   SessionState = "unloaded"
	SessionLoading    SessionState = "loading"
	SessionReady      SessionState = "ready"
	SessionGenerating SessionState = "generating"
)

// SessionSnapshot is a read-only projection of the inference session.
type SessionSnapshot struct {
	State        SessionState `json:"state"`
	ModelPath    string       `json:"model_path,omitempty"`
	LoadProgress float64      `json:"load_progress"`
}
