package types

// ModelsResponse wraps the catalog returned by GET /models.
type ModelsResponse struct {
	// Catalog entries in catalog order.
	Models []ModelVariant `json:"models"`
	// True while a catalog refresh is running.
	Searching bool `json:"searching"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
	// Classified failure reason, when one applies (e.g., network, disk_full, bad_url).
	// example: network
	Kind string `json:"kind,omitempty" example:"network"`
}

// LoadRequest asks the server to load a downloaded variant into the session.
type LoadRequest struct {
	// Catalog id of a downloaded variant.
	// example: qwen3-4b-instruct-q4_k_m
	ModelID string `json:"model_id" example:"qwen3-4b-instruct-q4_k_m"`
}

// ChatRequest submits one user turn.
type ChatRequest struct {
	// User text.
	// example: Write a haiku about the ocean.
	Text string `json:"text" example:"Write a haiku about the ocean."`
}

// ChatResponse is the completed exchange for one user turn.
type ChatResponse struct {
	User      ChatMessage `json:"user"`
	Assistant ChatMessage `json:"assistant"`
	// True when the assistant message is a diagnostic rather than a model reply.
	Failed bool `json:"failed"`
}

// TranscriptResponse is returned by GET /chat.
type TranscriptResponse struct {
	Messages []ChatMessage `json:"messages"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Session  SessionSnapshot  `json:"session"`
	Download DownloadSnapshot `json:"download"`
	// Number of transcript messages.
	// example: 3
	Messages int `json:"messages" example:"3"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
