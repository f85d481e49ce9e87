// Package config defines the runtime configuration and its file, env and
// validation layers.
package config

import (
	"os"
	"time"

	"mindbridge/internal/chat"
	"mindbridge/internal/common/fsutil"
	"mindbridge/internal/session"
	"mindbridge/pkg/types"
)

// AppName names the data directory and the env prefix.
const AppName = "mindbridge"

// Config holds runtime parameters for the service and the CLI.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr" validate:"required"`
	DataDir   string `json:"data_dir" yaml:"data_dir" toml:"data_dir"`
	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level" validate:"omitempty,oneof=trace debug info warn error disabled"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format" validate:"omitempty,oneof=console json"`

	// Engine selects the inference backend: llama (needs -tags llama), server
	// (an external llama.cpp server) or placeholder.
	Engine        string `json:"engine" yaml:"engine" toml:"engine" validate:"oneof=llama server placeholder"`
	EngineCtx     int    `json:"engine_ctx" yaml:"engine_ctx" toml:"engine_ctx" validate:"gte=256,lte=131072"`
	EngineThreads int    `json:"engine_threads" yaml:"engine_threads" toml:"engine_threads" validate:"gte=0,lte=512"`
	// DefaultModel is loaded by `serve` at startup when it is already downloaded.
	DefaultModel string `json:"default_model" yaml:"default_model" toml:"default_model"`

	SystemPrompt    string `json:"system_prompt" yaml:"system_prompt" toml:"system_prompt"`
	Greeting        string `json:"greeting" yaml:"greeting" toml:"greeting"`
	ClearedGreeting string `json:"cleared_greeting" yaml:"cleared_greeting" toml:"cleared_greeting"`
	MaxHistory      int    `json:"max_history" yaml:"max_history" toml:"max_history" validate:"gte=0,lte=64"`

	// Models replaces the built-in catalog when non-empty.
	Models []Model `json:"models" yaml:"models" toml:"models" validate:"dive"`

	Generation Generation `json:"generation" yaml:"generation" toml:"generation"`
	Download   Download   `json:"download" yaml:"download" toml:"download"`
	Search     Search     `json:"search" yaml:"search" toml:"search"`
	Server     Server     `json:"server" yaml:"server" toml:"server"`
	CORS       CORS       `json:"cors" yaml:"cors" toml:"cors"`
}

// Model is one catalog entry. Size is a human label such as "2.7GB".
type Model struct {
	Name string `json:"name" yaml:"name" toml:"name" validate:"required"`
	URL  string `json:"url" yaml:"url" toml:"url" validate:"required,url"`
	Size string `json:"size" yaml:"size" toml:"size"`
}

// Generation is passed to the engine untouched. A negative Seed picks a
// random seed per reply.
type Generation struct {
	Temperature   float32  `json:"temperature" yaml:"temperature" toml:"temperature" validate:"gte=0,lte=2"`
	TopP          float32  `json:"top_p" yaml:"top_p" toml:"top_p" validate:"gte=0,lte=1"`
	TopK          int      `json:"top_k" yaml:"top_k" toml:"top_k" validate:"gte=0"`
	MaxTokens     int      `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens" validate:"gte=1,lte=8192"`
	RepeatPenalty float32  `json:"repeat_penalty" yaml:"repeat_penalty" toml:"repeat_penalty" validate:"gte=0"`
	Seed          int      `json:"seed" yaml:"seed" toml:"seed"`
	Stop          []string `json:"stop" yaml:"stop" toml:"stop"`
}

type Download struct {
	BufferSize int     `json:"buffer_size" yaml:"buffer_size" toml:"buffer_size" validate:"gte=4096,lte=16777216"`
	ProgressHz float64 `json:"progress_hz" yaml:"progress_hz" toml:"progress_hz" validate:"gt=0,lte=1000"`
	UserAgent  string  `json:"user_agent" yaml:"user_agent" toml:"user_agent"`
	// Timeout bounds the wait for response headers, e.g. "30s".
	Timeout string `json:"timeout" yaml:"timeout" toml:"timeout" validate:"omitempty,duration"`
}

type Search struct {
	// Source is simulated (wait Delay, find nothing) or huggingface.
	Source  string `json:"source" yaml:"source" toml:"source" validate:"oneof=simulated huggingface"`
	Repo    string `json:"repo" yaml:"repo" toml:"repo" validate:"required_if=Source huggingface"`
	BaseURL string `json:"base_url" yaml:"base_url" toml:"base_url" validate:"omitempty,url"`
	Delay   string `json:"delay" yaml:"delay" toml:"delay" validate:"omitempty,duration"`
}

// Server configures the server engine. With URL set it talks to a running
// llama.cpp server; otherwise it spawns Binary per loaded model.
type Server struct {
	URL    string `json:"url" yaml:"url" toml:"url" validate:"omitempty,url"`
	APIKey string `json:"api_key" yaml:"api_key" toml:"api_key"`
	// Timeout bounds one completion, e.g. "2m".
	Timeout string `json:"timeout" yaml:"timeout" toml:"timeout" validate:"omitempty,duration"`

	Binary       string   `json:"binary" yaml:"binary" toml:"binary"`
	Host         string   `json:"host" yaml:"host" toml:"host" validate:"omitempty,ip"`
	ExtraArgs    []string `json:"extra_args" yaml:"extra_args" toml:"extra_args"`
	ReadyTimeout string   `json:"ready_timeout" yaml:"ready_timeout" toml:"ready_timeout" validate:"omitempty,duration"`
}

type CORS struct {
	Enabled bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	Origins []string `json:"origins" yaml:"origins" toml:"origins"`
}

// Default returns the configuration used when no file is given. Generation
// settings match the mobile client's settings screen.
func Default() Config {
	return Config{
		Addr:            "127.0.0.1:8080",
		LogLevel:        "info",
		LogFormat:       "console",
		Engine:          "placeholder",
		EngineCtx:       4096,
		SystemPrompt:    session.DefaultSystemPrompt,
		Greeting:        chat.DefaultGreeting,
		ClearedGreeting: chat.DefaultClearedGreeting,
		MaxHistory:      4,
		Generation: Generation{
			Temperature: 0.7,
			TopP:        0.9,
			TopK:        40,
			MaxTokens:   512,
			Seed:        -1,
		},
		Download: Download{
			BufferSize: 32 * 1024,
			ProgressHz: 10,
			UserAgent:  "mindbridge/1.0",
			Timeout:    "30s",
		},
		Search: Search{
			Source: "simulated",
			Repo:   "Qwen/Qwen3-4B-Instruct-GGUF",
			Delay:  "1s",
		},
	}
}

// ApplyEnv overrides fields from MINDBRIDGE_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("MINDBRIDGE_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("MINDBRIDGE_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("MINDBRIDGE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("MINDBRIDGE_ENGINE"); v != "" {
		c.Engine = v
	}
	if v := os.Getenv("MINDBRIDGE_SERVER_URL"); v != "" {
		c.Server.URL = v
	}
	if v := os.Getenv("MINDBRIDGE_LLAMA_SERVER_BIN"); v != "" {
		c.Server.Binary = v
	}
}

// ResolvedDataDir expands DataDir or falls back to the platform default.
func (c Config) ResolvedDataDir() (string, error) {
	if c.DataDir == "" {
		return fsutil.DefaultDataDir(AppName)
	}
	return fsutil.ExpandHome(c.DataDir)
}

// GenParams converts the generation section for the session.
func (c Config) GenParams() types.GenParams {
	g := c.Generation
	return types.GenParams{
		Temperature:   g.Temperature,
		TopP:          g.TopP,
		TopK:          g.TopK,
		MaxTokens:     g.MaxTokens,
		RepeatPenalty: g.RepeatPenalty,
		Seed:          g.Seed,
		Stop:          append([]string(nil), g.Stop...),
	}
}

// DownloadTimeout parses Download.Timeout; zero when unset or invalid.
func (c Config) DownloadTimeout() time.Duration { return parseDuration(c.Download.Timeout) }

// ServerTimeout parses Server.Timeout; zero when unset or invalid.
func (c Config) ServerTimeout() time.Duration { return parseDuration(c.Server.Timeout) }

// ServerReadyTimeout parses Server.ReadyTimeout; zero when unset or invalid.
func (c Config) ServerReadyTimeout() time.Duration { return parseDuration(c.Server.ReadyTimeout) }

// SearchDelay parses Search.Delay; zero when unset or invalid.
func (c Config) SearchDelay() time.Duration { return parseDuration(c.Search.Delay) }

func parseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
