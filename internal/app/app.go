// Package app wires the components together. It is the only place that
// knows the concrete types; everything below it receives its collaborators
// through Config structs.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"mindbridge/internal/assets"
	"mindbridge/internal/catalog"
	"mindbridge/internal/chat"
	"mindbridge/internal/config"
	"mindbridge/internal/download"
	"mindbridge/internal/events"
	"mindbridge/internal/registry"
	"mindbridge/internal/session"
	"mindbridge/pkg/types"
)

// App owns one instance of every component.
type App struct {
	Config   config.Config
	Log      zerolog.Logger
	Hub      *events.Hub
	Assets   *assets.Store
	Download *download.Orchestrator
	Catalog  *catalog.Catalog
	Session  *session.Session
	Chat     *chat.Pipeline

	started time.Time
}

type options struct {
	log      zerolog.Logger
	engine   session.Engine
	client   *http.Client
	searcher catalog.Searcher
	variants []types.ModelVariant
	extra    []events.Publisher
}

// Option customizes New.
type Option func(*options)

func WithLogger(l zerolog.Logger) Option { return func(o *options) { o.log = l } }

// WithEngine overrides the engine selected by Config.Engine.
func WithEngine(e session.Engine) Option { return func(o *options) { o.engine = e } }

// WithHTTPClient sets the client used for downloads and remote search.
func WithHTTPClient(c *http.Client) Option { return func(o *options) { o.client = c } }

func WithSearcher(s catalog.Searcher) Option { return func(o *options) { o.searcher = s } }

// WithVariants replaces the built-in catalog.
func WithVariants(vs []types.ModelVariant) Option { return func(o *options) { o.variants = vs } }

// WithPublisher adds an event sink next to the hub.
func WithPublisher(p events.Publisher) Option {
	return func(o *options) { o.extra = append(o.extra, p) }
}

// New validates cfg, prepares the data directory and builds the components.
func New(cfg config.Config, opts ...Option) (*App, error) {
	o := options{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dir, err := cfg.ResolvedDataDir()
	if err != nil {
		return nil, err
	}
	store, err := assets.New(dir)
	if err != nil {
		return nil, err
	}
	if err := store.Prepare(); err != nil {
		return nil, fmt.Errorf("prepare data dir: %w", err)
	}

	hub := events.NewHub()
	var pub events.Publisher = hub
	if len(o.extra) > 0 {
		pub = append(events.Multi{hub}, o.extra...)
	}

	client := o.client
	if client == nil && cfg.DownloadTimeout() > 0 {
		client = &http.Client{Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: cfg.DownloadTimeout(),
			IdleConnTimeout:       90 * time.Second,
		}}
	}

	dl := download.New(download.Config{
		Assets:     store,
		Client:     client,
		BufferSize: cfg.Download.BufferSize,
		ProgressHz: cfg.Download.ProgressHz,
		UserAgent:  cfg.Download.UserAgent,
		Publisher:  pub,
		Logger:     o.log.With().Str("component", "download").Logger(),
	})

	variants := o.variants
	if variants == nil && len(cfg.Models) > 0 {
		for _, m := range cfg.Models {
			variants = append(variants, catalog.NewVariant(m.Name, m.URL, m.Size))
		}
	}
	if variants == nil {
		variants = catalog.DefaultVariants()
	}
	// files copied into the data dir by hand; catalog entries win on id clashes
	local, err := registry.LoadDir(store.Dir())
	if err != nil {
		o.log.Warn().Err(err).Msg("scan data dir")
	}
	variants = append(variants[:len(variants):len(variants)], local...)

	searcher := o.searcher
	if searcher == nil {
		searcher = newSearcher(cfg, client)
	}
	cat := catalog.New(catalog.Config{
		Variants:  variants,
		Assets:    store,
		Progress:  dl,
		Searcher:  searcher,
		Publisher: pub,
		Logger:    o.log.With().Str("component", "catalog").Logger(),
	})

	engine := o.engine
	if engine == nil {
		engine = newEngine(cfg, o.log.With().Str("component", "engine").Logger())
	}
	sess := session.New(session.Config{
		Engine:    engine,
		Publisher: pub,
		Logger:    o.log.With().Str("component", "session").Logger(),
	})

	pipe := chat.New(chat.Config{
		Session:         sess,
		SystemPrompt:    cfg.SystemPrompt,
		Greeting:        cfg.Greeting,
		ClearedGreeting: cfg.ClearedGreeting,
		Params:          cfg.GenParams(),
		MaxHistory:      cfg.MaxHistory,
		Publisher:       pub,
		Logger:          o.log.With().Str("component", "chat").Logger(),
	})

	o.log.Info().Str("event", "app_ready").Str("data_dir", store.Dir()).Str("engine", cfg.Engine).
		Bool("llama_built", session.LlamaBuilt).Msg("components assembled")

	return &App{
		Config:   cfg,
		Log:      o.log,
		Hub:      hub,
		Assets:   store,
		Download: dl,
		Catalog:  cat,
		Session:  sess,
		Chat:     pipe,
		started:  time.Now(),
	}, nil
}

func newEngine(cfg config.Config, log zerolog.Logger) session.Engine {
	switch cfg.Engine {
	case "llama":
		threads := cfg.EngineThreads
		if threads <= 0 {
			threads = runtime.NumCPU()
		}
		return session.NewLlamaEngine(cfg.EngineCtx, threads)
	case "server":
		if cfg.Server.URL == "" && cfg.Server.Binary != "" {
			return session.NewSpawnEngine(session.SpawnConfig{
				Binary:         cfg.Server.Binary,
				Host:           cfg.Server.Host,
				CtxSize:        cfg.EngineCtx,
				Threads:        cfg.EngineThreads,
				ExtraArgs:      cfg.Server.ExtraArgs,
				ReadyTimeout:   cfg.ServerReadyTimeout(),
				APIKey:         cfg.Server.APIKey,
				RequestTimeout: cfg.ServerTimeout(),
			}, log)
		}
		return session.NewServerEngine(cfg.Server.URL, cfg.Server.APIKey, cfg.ServerTimeout(), cfg.DownloadTimeout(), log)
	default:
		return &session.PlaceholderEngine{}
	}
}

func newSearcher(cfg config.Config, client *http.Client) catalog.Searcher {
	if cfg.Search.Source == "huggingface" {
		return catalog.HuggingFaceSearcher{
			BaseURL:   cfg.Search.BaseURL,
			Repo:      cfg.Search.Repo,
			Client:    client,
			UserAgent: cfg.Download.UserAgent,
		}
	}
	return catalog.SimulatedSearcher{Delay: cfg.SearchDelay()}
}

// variant looks id up in the catalog.
func (a *App) variant(id string) (types.ModelVariant, error) {
	v, ok := a.Catalog.Get(id)
	if !ok {
		return types.ModelVariant{}, unknownModelError{id: id}
	}
	return v, nil
}

// StartDownload begins downloading the catalog entry id in the background.
// A variant already on disk is never fetched again, so a finished job cannot
// replace the file the session has open.
func (a *App) StartDownload(ctx context.Context, id string) (*download.Job, error) {
	v, err := a.variant(id)
	if err != nil {
		return nil, err
	}
	if a.loaded(v) {
		return nil, inUseError{id: id}
	}
	if _, ok := a.Assets.Resolve(v); ok {
		return nil, alreadyDownloadedError{id: id}
	}
	return a.Download.Start(ctx, v)
}

// loaded reports whether the session holds v's file.
func (a *App) loaded(v types.ModelVariant) bool {
	snap := a.Session.Snapshot()
	return snap.ModelPath != "" && snap.ModelPath == a.Assets.Path(v)
}

// LoadVariant loads a downloaded catalog entry into the session.
func (a *App) LoadVariant(ctx context.Context, id string) error {
	v, err := a.variant(id)
	if err != nil {
		return err
	}
	return a.Session.Load(ctx, a.Assets.Path(v))
}

// DeleteVariant removes a downloaded file. The file backing the loaded model
// cannot be deleted.
func (a *App) DeleteVariant(id string) error {
	v, err := a.variant(id)
	if err != nil {
		return err
	}
	if a.loaded(v) {
		return inUseError{id: id}
	}
	return a.Assets.Delete(v)
}

// Ready reports whether a model is loaded.
func (a *App) Ready() bool {
	st := a.Session.State()
	return st == types.SessionReady || st == types.SessionGenerating
}

// Status summarizes every component.
func (a *App) Status() types.StatusResponse {
	now := time.Now()
	return types.StatusResponse{
		Session:        a.Session.Snapshot(),
		Download:       a.Download.Last(),
		Messages:       a.Chat.Len(),
		UptimeSeconds:  int64(now.Sub(a.started).Seconds()),
		ServerTimeUnix: now.Unix(),
	}
}

// Close cancels the active download and releases the engine handle.
func (a *App) Close(ctx context.Context) error {
	dlErr := a.Download.Close(ctx)
	sessErr := a.Session.Close()
	return errors.Join(dlErr, sessErr)
}

type unknownModelError struct{ id string }

func (e unknownModelError) Error() string { return "unknown model: " + e.id }

// IsUnknownModel reports whether err names an id missing from the catalog.
func IsUnknownModel(err error) bool {
	var e unknownModelError
	return errors.As(err, &e)
}

type inUseError struct{ id string }

func (e inUseError) Error() string { return "model in use: " + e.id }

// IsInUse reports whether err rejects deleting or re-downloading the loaded model.
func IsInUse(err error) bool {
	var e inUseError
	return errors.As(err, &e)
}

type alreadyDownloadedError struct{ id string }

func (e alreadyDownloadedError) Error() string { return "model already downloaded: " + e.id }

// IsAlreadyDownloaded reports whether err rejects downloading a variant that is on disk.
func IsAlreadyDownloaded(err error) bool {
	var e alreadyDownloadedError
	return errors.As(err, &e)
}
