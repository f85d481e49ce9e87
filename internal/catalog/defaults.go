package catalog

import (
	"path"
	"strings"

	"github.com/dustin/go-humanize"

	"mindbridge/pkg/types"
)

const qwenRepoBase = "https://huggingface.co/Qwen/Qwen3-4B-Instruct-GGUF/resolve/main/"

// DefaultVariants returns the built-in Qwen3-4B-Instruct variants in catalog order.
func DefaultVariants() []types.ModelVariant {
	return []types.ModelVariant{
		NewVariant("Qwen3-4B-Instruct Q4_K_M", qwenRepoBase+"qwen3-4b-instruct-q4_k_m.gguf", "2.7GB"),
		NewVariant("Qwen3-4B-Instruct Q5_K_M", qwenRepoBase+"qwen3-4b-instruct-q5_k_m.gguf", "3.2GB"),
		NewVariant("Qwen3-4B-Instruct Q6_K", qwenRepoBase+"qwen3-4b-instruct-q6_k.gguf", "3.8GB"),
		NewVariant("Qwen3-4B-Instruct Q8_0", qwenRepoBase+"qwen3-4b-instruct-q8_0.gguf", "4.5GB"),
	}
}

// NewVariant builds a catalog entry from a display name, a download URL and a
// human size label. File name, id and quantization are derived from the URL.
func NewVariant(name, url, sizeLabel string) types.ModelVariant {
	file := path.Base(url)
	v := types.ModelVariant{
		ID:           VariantID(file),
		Name:         name,
		URL:          url,
		FileName:     file,
		SizeLabel:    sizeLabel,
		Quantization: ParseQuantization(file),
	}
	if n, err := humanize.ParseBytes(sizeLabel); err == nil {
		v.SizeBytes = int64(n)
	}
	return v
}

// VariantID derives the stable id from a file name: lowercase stem without extension.
func VariantID(fileName string) string {
	base := path.Base(fileName)
	return strings.ToLower(strings.TrimSuffix(base, path.Ext(base)))
}
