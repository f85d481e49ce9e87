package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"mindbridge/pkg/types"
)

const defaultHFBaseURL = "https://huggingface.co"

// shardPattern matches split GGUF parts which cannot be loaded on their own.
var shardPattern = regexp.MustCompile(`-\d{5}-of-\d{5}\.gguf$`)

// HuggingFaceSearcher lists the .gguf files of one huggingface repository.
type HuggingFaceSearcher struct {
	// BaseURL defaults to https://huggingface.co.
	BaseURL string
	// Repo is "<owner>/<name>", e.g. Qwen/Qwen3-4B-Instruct-GGUF.
	Repo      string
	Client    *http.Client
	UserAgent string
}

type hfModel struct {
	ID       string      `json:"id"`
	Siblings []hfSibling `json:"siblings"`
}

type hfSibling struct {
	RFilename string `json:"rfilename"`
	Size      int64  `json:"size"`
}

// Search implements Searcher.
func (s HuggingFaceSearcher) Search(ctx context.Context) ([]types.ModelVariant, error) {
	if strings.Count(s.Repo, "/") != 1 {
		return nil, fmt.Errorf("huggingface repo %q: want owner/name", s.Repo)
	}
	base := strings.TrimRight(s.BaseURL, "/")
	if base == "" {
		base = defaultHFBaseURL
	}
	endpoint := base + "/api/models/" + s.Repo + "?blobs=true"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("huggingface search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("huggingface search: %s returned %d", s.Repo, resp.StatusCode)
	}
	var m hfModel
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, fmt.Errorf("huggingface search: decode: %w", err)
	}

	repoName := path.Base(s.Repo)
	display := strings.TrimSuffix(strings.TrimSuffix(repoName, "-GGUF"), "-gguf")
	var out []types.ModelVariant
	for _, sib := range m.Siblings {
		name := sib.RFilename
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") || shardPattern.MatchString(name) {
			continue
		}
		// nested files keep their directory in the URL but not on disk
		fileURL := base + "/" + s.Repo + "/resolve/main/" + escapePath(name)
		label := ""
		if sib.Size > 0 {
			label = humanize.Bytes(uint64(sib.Size))
		}
		q := ParseQuantization(path.Base(name))
		v := types.ModelVariant{
			ID:           VariantID(name),
			Name:         strings.TrimSpace(display + " " + q),
			URL:          fileURL,
			FileName:     path.Base(name),
			SizeBytes:    sib.Size,
			SizeLabel:    label,
			Quantization: q,
		}
		out = append(out, v)
	}
	return out, nil
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}
