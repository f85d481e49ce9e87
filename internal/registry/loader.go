// Package registry finds GGUF files that are already in the data directory,
// so models copied in by hand are listed next to the downloadable catalog.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"mindbridge/internal/catalog"
	"mindbridge/internal/common/fsutil"
	"mindbridge/pkg/types"
)

// LoadDir scans dir for non-empty *.gguf files and returns one variant per
// file in name order. The variants have no URL: they can be loaded and
// deleted but not downloaded again.
func LoadDir(dir string) ([]types.ModelVariant, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.ModelVariant
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name := e.Name()
		if !strings.EqualFold(filepath.Ext(name), ".gguf") {
			continue
		}
		info, err := e.Info()
		if err != nil || info.Size() == 0 {
			continue
		}
		models = append(models, types.ModelVariant{
			ID:           catalog.VariantID(name),
			Name:         strings.TrimSuffix(name, filepath.Ext(name)),
			FileName:     name,
			SizeBytes:    info.Size(),
			SizeLabel:    humanize.Bytes(uint64(info.Size())),
			Quantization: catalog.ParseQuantization(name),
		})
	}
	return models, nil
}
