package download

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/time/rate"

	"mindbridge/internal/events"
	"mindbridge/pkg/types"
)

var errNoActiveJob = errors.New("no active download")

// Progress is one observation of a job's transfer.
type Progress struct {
	Transferred int64 `json:"transferred"`
	// Total is -1 when the remote did not declare a length.
	Total int64 `json:"total"`
	// Fraction is -1 while indeterminate.
	Fraction float64 `json:"fraction"`
}

// Indeterminate reports whether the total size is unknown.
func (p Progress) Indeterminate() bool { return p.Fraction < 0 }

func makeProgress(transferred, total int64) Progress {
	p := Progress{Transferred: transferred, Total: total, Fraction: -1}
	if total > 0 {
		p.Fraction = float64(transferred) / float64(total)
		if p.Fraction > 1 {
			p.Fraction = 1
		}
	}
	return p
}

// Job is one download attempt of one variant.
type Job struct {
	id      string
	variant types.ModelVariant
	o       *Orchestrator
	cancel  context.CancelFunc
	done    chan struct{}

	// progress is latest-wins with capacity 1; only run() sends and closes it.
	progress chan Progress
	limiter  *rate.Limiter

	mu          sync.Mutex
	state       types.DownloadState
	transferred int64
	total       int64
	cancelled   bool
	err         error
}

// ID returns the job id.
func (j *Job) ID() string { return j.id }

// Variant returns the variant being downloaded.
func (j *Job) Variant() types.ModelVariant { return j.variant }

// Progress delivers non-decreasing progress values and is closed when the job ends.
// Intermediate values may be skipped by a slow reader; the last one is never skipped.
func (j *Job) Progress() <-chan Progress { return j.progress }

// Done is closed when the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} { return j.done }

// Cancel stops the byte stream. The staging file is removed and no destination
// file appears. Safe to call repeatedly and after completion.
func (j *Job) Cancel() {
	j.mu.Lock()
	if !j.state.Terminal() {
		j.cancelled = true
	}
	j.mu.Unlock()
	j.cancel()
}

// Wait blocks until the job ends and returns its terminal error (nil on completion).
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		j.mu.Lock()
		defer j.mu.Unlock()
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns a read-only view of the job.
func (j *Job) Snapshot() types.DownloadSnapshot { return j.snapshot() }

func (j *Job) snapshot() types.DownloadSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	p := makeProgress(j.transferred, j.total)
	s := types.DownloadSnapshot{
		JobID:       j.id,
		VariantID:   j.variant.ID,
		State:       j.state,
		Transferred: j.transferred,
		Total:       j.total,
		Fraction:    p.Fraction,
	}
	if j.err != nil {
		s.Err = j.err.Error()
		s.ErrKind = string(KindOf(j.err))
	}
	return s
}

func (j *Job) setState(s types.DownloadState) {
	j.mu.Lock()
	j.state = s
	j.mu.Unlock()
}

func (j *Job) isCancelled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelled
}

// report records transfer counters and emits progress. Intermediate
// observations are rate limited; force bypasses the limiter.
func (j *Job) report(transferred, total int64, force bool) {
	j.mu.Lock()
	j.transferred = transferred
	j.total = total
	j.mu.Unlock()
	if !force && !j.limiter.Allow() {
		return
	}
	p := makeProgress(transferred, total)
	j.send(p)
	j.o.pub.Publish(events.New("download_progress", j.variant.ID, map[string]any{
		"job_id":      j.id,
		"transferred": p.Transferred,
		"total":       p.Total,
		"fraction":    p.Fraction,
	}))
}

// send replaces any unread value with p. Single producer, so the second send
// cannot block.
func (j *Job) send(p Progress) {
	select {
	case j.progress <- p:
		return
	default:
	}
	select {
	case <-j.progress:
	default:
	}
	j.progress <- p
}

func (j *Job) run(ctx context.Context) {
	defer j.cancel()
	err := j.transfer(ctx)
	if err != nil && (j.isCancelled() || errors.Is(err, context.Canceled)) {
		err = newError(KindCancelled, j.variant.ID, err)
	}

	state := types.DownloadCompleted
	switch {
	case IsCancelled(err):
		state = types.DownloadCancelled
	case err != nil:
		state = types.DownloadFailed
	}
	if err != nil {
		if rmErr := j.o.assets.RemoveTemp(j.variant); rmErr != nil {
			j.o.log.Warn().Err(rmErr).Str("variant", j.variant.ID).Msg("download temp cleanup failed")
		}
	}

	j.mu.Lock()
	j.state = state
	j.err = err
	transferred, total := j.transferred, j.total
	j.mu.Unlock()

	if state == types.DownloadCompleted {
		if total < 0 {
			total = transferred
		}
		j.report(transferred, total, true)
	}
	close(j.progress)
	j.o.finish(j)
	close(j.done)

	outcomesTotal.WithLabelValues(string(state)).Inc()
	fields := map[string]any{"job_id": j.id, "transferred": transferred}
	switch state {
	case types.DownloadCompleted:
		j.o.log.Info().Str("variant", j.variant.ID).Int64("bytes", transferred).Msg("download done")
		j.o.pub.Publish(events.New("download_done", j.variant.ID, fields))
	case types.DownloadCancelled:
		j.o.log.Info().Str("variant", j.variant.ID).Msg("download cancelled")
		j.o.pub.Publish(events.New("download_cancelled", j.variant.ID, fields))
	default:
		fields["error"] = err.Error()
		fields["kind"] = string(KindOf(err))
		j.o.log.Error().Err(err).Str("variant", j.variant.ID).Str("kind", string(KindOf(err))).Msg("download failed")
		j.o.pub.Publish(events.New("download_failed", j.variant.ID, fields))
	}
}
