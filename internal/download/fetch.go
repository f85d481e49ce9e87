package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"

	"mindbridge/pkg/types"
)

// maxAttempts covers one retry from scratch when a stale staging file cannot be resumed.
const maxAttempts = 2

// validateURL rejects anything that is not an absolute http(s) URL.
func validateURL(raw string) (*url.URL, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("empty url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("missing host")
	}
	return u, nil
}

// transfer streams the variant into its staging file and materializes it.
func (j *Job) transfer(ctx context.Context) error {
	v := j.variant
	u, err := validateURL(v.URL)
	if err != nil {
		return newError(KindBadURL, v.ID, err)
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := j.fetch(ctx, u, v, attempt == 0)
		if errors.Is(err, errStaleRange) {
			j.o.log.Warn().Str("variant", v.ID).Msg("staging file not resumable, restarting download")
			if rmErr := j.o.assets.RemoveTemp(v); rmErr != nil {
				return newError(KindIOFailure, v.ID, rmErr)
			}
			continue
		}
		if err != nil {
			return err
		}
		tmp := j.o.assets.TempPath(v)
		if err := j.o.assets.Materialize(v, tmp); err != nil {
			return newError(KindIOFailure, v.ID, err)
		}
		return nil
	}
	return newError(KindInterrupted, v.ID, errStaleRange)
}

var errStaleRange = errors.New("range not satisfiable")

// fetch performs one GET. With resume set and a staging file left by an
// earlier process, the request asks for the remaining bytes only.
func (j *Job) fetch(ctx context.Context, u *url.URL, v types.ModelVariant, resume bool) error {
	var offset int64
	if resume {
		offset = j.o.assets.TempSize(v)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return newError(KindBadURL, v.ID, err)
	}
	req.Header.Set("User-Agent", j.o.userAgent)
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}
	resp, err := j.o.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return newError(KindNetwork, v.ID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		offset = 0
	case resp.StatusCode == http.StatusPartialContent && offset > 0:
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable && offset > 0:
		return errStaleRange
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return newError(KindNotFound, v.ID, fmt.Errorf("remote returned %d", resp.StatusCode))
	default:
		return newError(KindNetwork, v.ID, fmt.Errorf("remote returned %d", resp.StatusCode))
	}

	total := int64(-1)
	if resp.ContentLength >= 0 {
		total = offset + resp.ContentLength
	}

	flags := os.O_CREATE | os.O_WRONLY
	if offset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(j.o.assets.TempPath(v), flags, 0o644)
	if err != nil {
		return newError(classifyWrite(err), v.ID, err)
	}
	defer f.Close()

	j.setState(types.DownloadDownloading)
	j.report(offset, total, true)

	buf := make([]byte, j.o.bufSize)
	transferred := offset
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return newError(classifyWrite(werr), v.ID, werr)
			}
			transferred += int64(n)
			bytesTotal.Add(float64(n))
			j.report(transferred, total, false)
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(readErr, io.ErrUnexpectedEOF) {
				return newError(KindInterrupted, v.ID, readErr)
			}
			return newError(KindNetwork, v.ID, readErr)
		}
	}
	if total >= 0 && transferred < total {
		return newError(KindInterrupted, v.ID, fmt.Errorf("stream ended at %d of %d bytes", transferred, total))
	}
	if err := f.Sync(); err != nil {
		return newError(classifyWrite(err), v.ID, err)
	}
	if err := f.Close(); err != nil {
		return newError(classifyWrite(err), v.ID, err)
	}
	j.report(transferred, total, true)
	return nil
}

// classifyWrite separates a full disk from other filesystem failures.
func classifyWrite(err error) Kind {
	if errors.Is(err, syscall.ENOSPC) {
		return KindDiskFull
	}
	return KindIOFailure
}
