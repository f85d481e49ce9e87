package config

import (
	"strings"
	"testing"
)

func TestLoad_ModelsAndServerFromYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "mindbridge.yaml", `
data_dir: /srv/models
engine: server
models:
  - name: Qwen3 4B Q4_K_M
    url: https://example.com/qwen3-4b-q4_k_m.gguf
    size: 2.7GB
server:
  binary: llama-server
  extra_args: ["--flash-attn"]
  ready_timeout: 45s
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Models) != 1 || cfg.Models[0].Size != "2.7GB" || !strings.HasSuffix(cfg.Models[0].URL, ".gguf") {
		t.Fatalf("models not decoded: %+v", cfg.Models)
	}
	if cfg.Server.Binary != "llama-server" || len(cfg.Server.ExtraArgs) != 1 || cfg.ServerReadyTimeout().Seconds() != 45 {
		t.Fatalf("server section not decoded: %+v", cfg.Server)
	}
	// keys absent from the file keep their defaults
	if cfg.Generation.MaxTokens != 512 || cfg.MaxHistory != 4 {
		t.Fatalf("defaults lost: %+v", cfg.Generation)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoad_ModelsFromTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "mindbridge.toml", `
data_dir = "/srv/models"

[[models]]
name = "Tiny Q8_0"
url = "https://example.com/tiny-q8_0.gguf"

[generation]
temperature = 0.0
max_tokens = 256
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Models) != 1 || cfg.Models[0].Name != "Tiny Q8_0" {
		t.Fatalf("models not decoded: %+v", cfg.Models)
	}
	if cfg.Generation.Temperature != 0 || cfg.Generation.MaxTokens != 256 {
		t.Fatalf("generation not decoded: %+v", cfg.Generation)
	}
}

func TestLoad_Errors(t *testing.T) {
	d := t.TempDir()
	cases := map[string]string{
		"bad.yaml": "data_dir: /m\nmax_history: [1, 2]\n",
		"bad.json": `{"data_dir": "/m", "models": {}}`,
		"bad.toml": "data_dir = \"/m\"\nmodels\n",
		"cfg.ini":  "data_dir=/m\n",
	}
	for name, body := range cases {
		p := writeTempFile(t, d, name, body)
		if _, err := Load(p); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := Load(d + "/missing.yaml"); err == nil {
		t.Fatalf("expected error for a missing file")
	}
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for an empty path")
	}
}

func TestLoadOrDefault_EnvWins(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "data_dir: /from-file\nengine: placeholder\n")
	t.Setenv("MINDBRIDGE_DATA_DIR", "/from-env")
	t.Setenv("MINDBRIDGE_LLAMA_SERVER_BIN", "/opt/llama/llama-server")
	cfg, err := LoadOrDefault(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "/from-env" || cfg.Server.Binary != "/opt/llama/llama-server" {
		t.Fatalf("env not applied: %q %q", cfg.DataDir, cfg.Server.Binary)
	}
	if _, err := LoadOrDefault(d + "/missing.yaml"); err == nil || !strings.Contains(err.Error(), "missing.yaml") {
		t.Fatalf("expected error naming the file, got %v", err)
	}
}
