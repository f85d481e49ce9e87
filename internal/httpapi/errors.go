package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"mindbridge/internal/app"
	"mindbridge/internal/assets"
	"mindbridge/internal/download"
	"mindbridge/internal/session"
	"mindbridge/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSONErrorKind(w, status, msg, "")
}

func writeJSONErrorKind(w http.ResponseWriter, status int, msg, kind string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status, Kind: kind})
}

// writeError maps component errors to status codes. Download failures carry
// their classified kind; session failures carry none.
func writeError(w http.ResponseWriter, err error) {
	status, reason := classify(err)
	if status == http.StatusConflict {
		IncrementConflict(reason)
	}
	writeJSONErrorKind(w, status, err.Error(), string(download.KindOf(err)))
}

// classify returns the status code and a short reason used as metric label.
func classify(err error) (int, string) {
	if k := download.KindOf(err); k != "" {
		switch k {
		case download.KindAlreadyInProgress:
			return http.StatusConflict, string(k)
		case download.KindBadURL:
			return http.StatusBadRequest, string(k)
		case download.KindNotFound, download.KindUnknownVariant:
			return http.StatusNotFound, string(k)
		case download.KindDiskFull:
			return http.StatusInsufficientStorage, string(k)
		case download.KindNetwork, download.KindInterrupted:
			return http.StatusBadGateway, string(k)
		default:
			return http.StatusInternalServerError, string(k)
		}
	}
	switch {
	case app.IsUnknownModel(err), session.IsModelNotFound(err), assets.IsNotFound(err):
		return http.StatusNotFound, ""
	case session.IsBusy(err):
		return http.StatusConflict, "busy"
	case session.IsAlreadyLoaded(err):
		return http.StatusConflict, "already_loaded"
	case session.IsNotLoaded(err):
		return http.StatusConflict, "not_loaded"
	case app.IsInUse(err):
		return http.StatusConflict, "in_use"
	case app.IsAlreadyDownloaded(err):
		return http.StatusConflict, "already_downloaded"
	case session.IsDependencyUnavailable(err):
		return http.StatusServiceUnavailable, ""
	case errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable, ""
	}
	var he HTTPError
	if errors.As(err, &he) {
		return he.StatusCode(), ""
	}
	return http.StatusInternalServerError, ""
}
