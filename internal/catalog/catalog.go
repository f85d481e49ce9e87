// Package catalog keeps the ordered list of known model variants and derives
// their downloaded/progress flags from the asset store and the active download.
package catalog

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"mindbridge/internal/events"
	"mindbridge/pkg/types"
)

// Assets reports whether a variant is materialized on disk.
type Assets interface {
	Resolve(v types.ModelVariant) (string, bool)
}

// Progress reports the variant currently being downloaded, if any.
type Progress interface {
	ActiveProgress() (variantID string, fraction float64, ok bool)
}

// Searcher discovers variants from a remote source.
type Searcher interface {
	Search(ctx context.Context) ([]types.ModelVariant, error)
}

// Config encapsulates all inputs for Catalog construction.
type Config struct {
	// Variants seeds the catalog. Nil means DefaultVariants().
	Variants []types.ModelVariant
	Assets   Assets
	Progress Progress
	// Searcher backs Refresh. Nil means a SimulatedSearcher with no delay.
	Searcher  Searcher
	Publisher events.Publisher
	Logger    zerolog.Logger
}

// Catalog is safe for concurrent use.
type Catalog struct {
	assets   Assets
	progress Progress
	searcher Searcher
	pub      events.Publisher
	log      zerolog.Logger

	mu      sync.RWMutex
	entries []types.ModelVariant
	index   map[string]int

	group     singleflight.Group
	searching atomic.Bool
}

// New constructs a Catalog. Duplicate ids in cfg.Variants keep the first entry.
func New(cfg Config) *Catalog {
	c := &Catalog{
		assets:   cfg.Assets,
		progress: cfg.Progress,
		searcher: cfg.Searcher,
		pub:      events.OrNop(cfg.Publisher),
		log:      cfg.Logger,
		index:    make(map[string]int),
	}
	if c.searcher == nil {
		c.searcher = SimulatedSearcher{}
	}
	seed := cfg.Variants
	if seed == nil {
		seed = DefaultVariants()
	}
	for _, v := range seed {
		if _, dup := c.index[v.ID]; dup {
			continue
		}
		c.index[v.ID] = len(c.entries)
		c.entries = append(c.entries, stripDerived(v))
	}
	return c
}

// List returns the catalog in insertion order with derived flags computed now.
func (c *Catalog) List() []types.ModelVariant {
	c.mu.RLock()
	out := make([]types.ModelVariant, len(c.entries))
	copy(out, c.entries)
	c.mu.RUnlock()

	activeID, frac, active := c.activeDownload()
	for i := range out {
		c.derive(&out[i], activeID, frac, active)
	}
	return out
}

// Get returns one variant with derived flags.
func (c *Catalog) Get(id string) (types.ModelVariant, bool) {
	c.mu.RLock()
	i, ok := c.index[id]
	var v types.ModelVariant
	if ok {
		v = c.entries[i]
	}
	c.mu.RUnlock()
	if !ok {
		return types.ModelVariant{}, false
	}
	activeID, frac, active := c.activeDownload()
	c.derive(&v, activeID, frac, active)
	return v, true
}

// Searching reports whether a Refresh is in flight.
func (c *Catalog) Searching() bool { return c.searching.Load() }

// Refresh runs the searcher and merges its results. Concurrent callers share
// the in-flight search and observe the same outcome.
func (c *Catalog) Refresh(ctx context.Context) ([]types.ModelVariant, error) {
	ch := c.group.DoChan("refresh", func() (any, error) {
		c.searching.Store(true)
		defer c.searching.Store(false)
		start := time.Now()
		c.pub.Publish(events.New("catalog_refresh_start", "", nil))
		// detached so one caller going away does not fail the others
		found, err := c.searcher.Search(context.WithoutCancel(ctx))
		if err != nil {
			c.log.Warn().Err(err).Str("event", "catalog_refresh").Msg("search failed")
			c.pub.Publish(events.New("catalog_refresh_failed", "", map[string]any{"error": err.Error()}))
			return nil, err
		}
		added, updated := c.merge(found)
		c.log.Info().Str("event", "catalog_refresh").Int("found", len(found)).Int("added", added).
			Int("updated", updated).Dur("took", time.Since(start)).Msg("catalog refreshed")
		c.pub.Publish(events.New("catalog_refresh_done", "", map[string]any{"added": added, "updated": updated}))
		return nil, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return c.List(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// merge appends unknown ids in result order and replaces metadata of known
// ids, except the one being downloaded.
func (c *Catalog) merge(found []types.ModelVariant) (added, updated int) {
	activeID, _, active := c.activeDownload()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range found {
		if v.ID == "" {
			continue
		}
		v = stripDerived(v)
		i, ok := c.index[v.ID]
		if !ok {
			c.index[v.ID] = len(c.entries)
			c.entries = append(c.entries, v)
			added++
			continue
		}
		if active && activeID == v.ID {
			continue
		}
		if c.entries[i] != v {
			c.entries[i] = v
			updated++
		}
	}
	return added, updated
}

func (c *Catalog) activeDownload() (string, float64, bool) {
	if c.progress == nil {
		return "", 0, false
	}
	return c.progress.ActiveProgress()
}

func (c *Catalog) derive(v *types.ModelVariant, activeID string, frac float64, active bool) {
	if active && v.ID == activeID {
		v.Downloaded = false
		v.DownloadProgress = clamp01(frac)
		return
	}
	if c.assets != nil {
		if _, ok := c.assets.Resolve(*v); ok {
			v.Downloaded = true
			v.DownloadProgress = 1
			return
		}
	}
	v.Downloaded = false
	v.DownloadProgress = 0
}

func stripDerived(v types.ModelVariant) types.ModelVariant {
	v.Downloaded = false
	v.DownloadProgress = 0
	return v
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
