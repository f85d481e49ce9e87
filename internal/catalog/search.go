package catalog

import (
	"context"
	"time"

	"mindbridge/pkg/types"
)

// SimulatedSearcher waits Delay and returns Results. The zero value returns
// immediately with nothing new.
type SimulatedSearcher struct {
	Delay   time.Duration
	Results []types.ModelVariant
}

// Search implements Searcher.
func (s SimulatedSearcher) Search(ctx context.Context) ([]types.ModelVariant, error) {
	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	out := make([]types.ModelVariant, len(s.Results))
	copy(out, s.Results)
	return out, nil
}
