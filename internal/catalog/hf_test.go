package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseQuantization(t *testing.T) {
	cases := map[string]string{
		"qwen3-4b-instruct-q4_k_m.gguf":     "Q4_K_M",
		"qwen3-4b-instruct-q8_0.gguf":       "Q8_0",
		"Llama-3.2-1B-Instruct-IQ3_XS.gguf": "IQ3_XS",
		"model.Q6_K.gguf":                   "Q6_K",
		"tiny-f16.gguf":                     "F16",
		"tiny-bf16.gguf":                    "BF16",
		"readme.md":                         "",
		"qwen3-4b.gguf":                     "",
	}
	for in, want := range cases {
		if got := ParseQuantization(in); got != want {
			t.Errorf("ParseQuantization(%q)=%q want %q", in, got, want)
		}
	}
}

func TestVariantID(t *testing.T) {
	if got := VariantID("Qwen3-4B-Instruct-Q4_K_M.gguf"); got != "qwen3-4b-instruct-q4_k_m" {
		t.Fatalf("unexpected id %q", got)
	}
	if got := VariantID("sub/dir/x.gguf"); got != "x" {
		t.Fatalf("unexpected id %q", got)
	}
}

func TestHuggingFaceSearcher_ListsGGUFSiblings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/models/Qwen/Qwen3-4B-Instruct-GGUF" || r.URL.Query().Get("blobs") != "true" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "Qwen/Qwen3-4B-Instruct-GGUF",
			"siblings": [
				{"rfilename": "README.md", "size": 1200},
				{"rfilename": "qwen3-4b-instruct-q4_k_m.gguf", "size": 2700000000},
				{"rfilename": "qwen3-4b-instruct-q2_k.gguf", "size": 1600000000},
				{"rfilename": "big/qwen3-4b-instruct-f16-00001-of-00002.gguf", "size": 5000000000}
			]
		}`))
	}))
	defer srv.Close()

	s := HuggingFaceSearcher{BaseURL: srv.URL, Repo: "Qwen/Qwen3-4B-Instruct-GGUF", Client: srv.Client()}
	got, err := s.Search(context.Background())
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 variants, got %d: %+v", len(got), got)
	}
	v := got[1]
	if v.ID != "qwen3-4b-instruct-q2_k" || v.Quantization != "Q2_K" || v.SizeBytes != 1600000000 {
		t.Fatalf("unexpected variant: %+v", v)
	}
	if v.URL != srv.URL+"/Qwen/Qwen3-4B-Instruct-GGUF/resolve/main/qwen3-4b-instruct-q2_k.gguf" {
		t.Fatalf("unexpected url %q", v.URL)
	}
	if v.Name != "Qwen3-4B-Instruct Q2_K" || v.SizeLabel != "1.6 GB" {
		t.Fatalf("unexpected display fields: %+v", v)
	}
	// the default catalog id for the same file must match so refresh merges
	if got[0].ID != DefaultVariants()[0].ID {
		t.Fatalf("ids diverge: %q vs %q", got[0].ID, DefaultVariants()[0].ID)
	}
}

func TestHuggingFaceSearcher_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := HuggingFaceSearcher{BaseURL: srv.URL, Repo: "a/b", Client: srv.Client()}
	if _, err := s.Search(context.Background()); err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected status error, got %v", err)
	}
	if _, err := (HuggingFaceSearcher{Repo: "no-slash"}).Search(context.Background()); err == nil {
		t.Fatalf("expected repo validation error")
	}
}
