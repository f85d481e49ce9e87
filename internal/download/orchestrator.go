// Package download drives single-flight model downloads: one job at a time
// process-wide, bytes streamed into a staging file next to the destination,
// committed through the asset store's atomic rename.
package download

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"mindbridge/internal/events"
	"mindbridge/pkg/types"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultBufferSize = 32 * 1024
	defaultProgressHz = 10.0
	defaultUserAgent  = "mindbridge/1.0"
)

// Assets is the subset of the asset store the orchestrator writes through.
type Assets interface {
	TempPath(v types.ModelVariant) string
	TempSize(v types.ModelVariant) int64
	RemoveTemp(v types.ModelVariant) error
	Materialize(v types.ModelVariant, tempPath string) error
}

// Config encapsulates all tunables for Orchestrator construction.
type Config struct {
	Assets Assets
	// Client performs the GET. Defaults to an http.Client without an overall
	// timeout (multi-gigabyte bodies) but with a response header timeout.
	Client *http.Client
	// BufferSize bounds how many bytes are read between cancellation checks.
	BufferSize int
	// ProgressHz caps intermediate progress events per second. Terminal
	// progress is always delivered.
	ProgressHz float64
	UserAgent  string
	Publisher  events.Publisher
	Logger     zerolog.Logger
}

// Orchestrator admits at most one Requested/Downloading job at a time.
type Orchestrator struct {
	assets     Assets
	client     *http.Client
	bufSize    int
	progressHz float64
	userAgent  string
	pub        events.Publisher
	log        zerolog.Logger

	mu     sync.Mutex
	active *Job
	last   types.DownloadSnapshot
}

// New constructs an Orchestrator, applying defaults for unset fields.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		assets:     cfg.Assets,
		client:     cfg.Client,
		bufSize:    cfg.BufferSize,
		progressHz: cfg.ProgressHz,
		userAgent:  cfg.UserAgent,
		pub:        events.OrNop(cfg.Publisher),
		log:        cfg.Logger,
		last:       types.DownloadSnapshot{State: types.DownloadIdle, Total: -1, Fraction: -1},
	}
	if o.client == nil {
		o.client = &http.Client{Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: 30 * time.Second,
			IdleConnTimeout:       90 * time.Second,
		}}
	}
	if o.bufSize <= 0 {
		o.bufSize = defaultBufferSize
	}
	if o.progressHz <= 0 {
		o.progressHz = defaultProgressHz
	}
	if o.userAgent == "" {
		o.userAgent = defaultUserAgent
	}
	return o
}

// Start begins downloading v in the background. It fails fast with an
// already-in-progress error if any job is active; nothing is queued.
// The job outlives ctx; stop it with Job.Cancel.
func (o *Orchestrator) Start(ctx context.Context, v types.ModelVariant) (*Job, error) {
	o.mu.Lock()
	if o.active != nil {
		busy := o.active.variant.ID
		o.mu.Unlock()
		o.log.Info().Str("variant", v.ID).Str("active", busy).Msg("download rejected: already in progress")
		return nil, newError(KindAlreadyInProgress, v.ID, nil)
	}
	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	j := &Job{
		id:       uuid.NewString(),
		variant:  v,
		o:        o,
		cancel:   cancel,
		done:     make(chan struct{}),
		progress: make(chan Progress, 1),
		limiter:  rate.NewLimiter(rate.Limit(o.progressHz), 1),
		state:    types.DownloadRequested,
		total:    -1,
	}
	o.active = j
	o.last = j.snapshot()
	o.mu.Unlock()

	activeJobs.Set(1)
	o.log.Info().Str("variant", v.ID).Str("job", j.id).Str("url", v.URL).Msg("download start")
	o.pub.Publish(events.New("download_start", v.ID, map[string]any{"job_id": j.id}))
	go j.run(jobCtx)
	return j, nil
}

// Download starts v and blocks until the job ends or ctx is done. When ctx
// ends first the job is cancelled and its terminal error returned.
// onProgress, if set, observes every delivered progress value in order.
func (o *Orchestrator) Download(ctx context.Context, v types.ModelVariant, onProgress func(Progress)) error {
	j, err := o.Start(ctx, v)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, j.Cancel)
	defer stop()
	for p := range j.Progress() {
		if onProgress != nil {
			onProgress(p)
		}
	}
	return j.Wait(context.Background())
}

// Active returns the snapshot of the running job, if any.
func (o *Orchestrator) Active() (types.DownloadSnapshot, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == nil {
		return types.DownloadSnapshot{}, false
	}
	return o.active.snapshot(), true
}

// Last returns the most recent job snapshot (active or terminal), or an idle
// snapshot when nothing ran yet.
func (o *Orchestrator) Last() types.DownloadSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active != nil {
		return o.active.snapshot()
	}
	return o.last
}

// ActiveProgress reports the variant being downloaded and its fraction
// (0 while indeterminate).
func (o *Orchestrator) ActiveProgress() (string, float64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == nil {
		return "", 0, false
	}
	s := o.active.snapshot()
	f := s.Fraction
	if f < 0 {
		f = 0
	}
	return s.VariantID, f, true
}

// Cancel stops the active job if it downloads variantID. An empty id cancels
// whatever is active. Returns a not-found error when nothing matches.
func (o *Orchestrator) Cancel(variantID string) error {
	o.mu.Lock()
	j := o.active
	o.mu.Unlock()
	if j == nil || (variantID != "" && j.variant.ID != variantID) {
		return newError(KindNotFound, variantID, errNoActiveJob)
	}
	j.Cancel()
	return nil
}

// Close cancels the active job and waits for it to clean up.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	j := o.active
	o.mu.Unlock()
	if j == nil {
		return nil
	}
	j.Cancel()
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// finish records the terminal snapshot and frees the single-flight slot.
func (o *Orchestrator) finish(j *Job) {
	o.mu.Lock()
	if o.active == j {
		o.active = nil
	}
	o.last = j.snapshot()
	o.mu.Unlock()
	activeJobs.Set(0)
}
