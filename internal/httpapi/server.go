package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mindbridge/internal/events"
	"mindbridge/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Models() types.ModelsResponse
	RefreshModels(ctx context.Context) (types.ModelsResponse, error)
	DeleteVariant(id string) error

	BeginDownload(ctx context.Context, id string) (types.DownloadSnapshot, error)
	DownloadState() types.DownloadSnapshot
	CancelDownload(id string) error

	SessionState() types.SessionSnapshot
	LoadVariant(ctx context.Context, id string) error
	UnloadModel() error

	Transcript() []types.ChatMessage
	Send(ctx context.Context, text string) types.ChatResponse
	ClearChat() []types.ChatMessage

	Status() types.StatusResponse
	Subscribe(buffer int) (<-chan events.Event, func())
	Ready() bool
}

// eventBuffer is the per-connection queue of the /events stream.
const eventBuffer = 64

type handlers struct {
	svc  Service
	opts Options
}

// NewMux builds the API router around svc.
func NewMux(svc Service, opts Options) http.Handler {
	h := handlers{svc: svc, opts: opts.withDefaults()}
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(RequestLogger)
	if h.opts.CORS.Enabled {
		r.Use(corsMiddleware(h.opts.CORS))
	}
	// Compression for JSON endpoints; NDJSON passes through uncompressed
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/models", h.listModels)
	r.Post("/models/refresh", h.refreshModels)
	r.Delete("/models/{id}", h.deleteModel)
	r.Post("/models/{id}/download", h.startDownload)

	r.Get("/download", h.downloadStatus)
	r.Delete("/download", h.cancelDownload)
	r.Get("/events", h.events)

	r.Get("/session", h.session)
	r.Post("/session/load", h.loadModel)
	r.Post("/session/unload", h.unloadModel)

	r.Get("/chat", h.transcript)
	r.Post("/chat", h.chat)
	r.Delete("/chat", h.clearChat)

	r.Get("/status", h.status)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no model loaded"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Warn().Err(err).Msg("encode response")
	}
}

// decodeJSON enforces the JSON content type and the body size limit.
func (h handlers) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// size overflow is reported the same way to avoid leaking limits
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// listModels godoc
// @Summary      List catalog models
// @Description  Catalog entries in catalog order with downloaded/progress flags derived from disk and the active download.
// @Tags         models
// @Produce      json
// @Success      200  {object}  types.ModelsResponse
// @Router       /models [get]
func (h handlers) listModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Models())
}

// refreshModels godoc
// @Summary      Search for more variants
// @Description  Concurrent refreshes share one search. Entries being downloaded are never modified.
// @Tags         models
// @Produce      json
// @Success      200  {object}  types.ModelsResponse
// @Failure      502  {object}  types.ErrorResponse
// @Router       /models/refresh [post]
func (h handlers) refreshModels(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r, false)
	defer cancel()
	resp, err := h.svc.RefreshModels(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		writeJSONError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// deleteModel godoc
// @Summary      Delete a downloaded model file
// @Tags         models
// @Param        id   path  string  true  "Model id"
// @Success      204
// @Failure      404  {object}  types.ErrorResponse
// @Failure      409  {object}  types.ErrorResponse
// @Router       /models/{id} [delete]
func (h handlers) deleteModel(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteVariant(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// startDownload godoc
// @Summary      Start downloading a model
// @Description  Only one download runs at a time. A second start, a model already on disk and the loaded model are rejected with 409.
// @Tags         downloads
// @Produce      json
// @Param        id   path  string  true  "Model id"
// @Success      202  {object}  types.DownloadSnapshot
// @Failure      404  {object}  types.ErrorResponse
// @Failure      409  {object}  types.ErrorResponse
// @Router       /models/{id}/download [post]
func (h handlers) startDownload(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.BeginDownload(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, snap)
}

// downloadStatus godoc
// @Summary      Current or last download
// @Tags         downloads
// @Produce      json
// @Success      200  {object}  types.DownloadSnapshot
// @Router       /download [get]
func (h handlers) downloadStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.DownloadState())
}

// cancelDownload godoc
// @Summary      Cancel the active download
// @Description  The staging file is removed; no model file appears.
// @Tags         downloads
// @Param        id   query  string  false  "Only cancel if this model is downloading"
// @Success      202
// @Failure      404  {object}  types.ErrorResponse
// @Router       /download [delete]
func (h handlers) cancelDownload(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.CancelDownload(r.URL.Query().Get("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// events godoc
// @Summary      Event stream
// @Description  NDJSON stream of download, session, catalog and chat events. Slow readers miss events rather than stall producers.
// @Tags         events
// @Produce      application/x-ndjson
// @Success      200
// @Router       /events [get]
func (h handlers) events(w http.ResponseWriter, r *http.Request) {
	ch, unsubscribe := h.svc.Subscribe(eventBuffer)
	defer unsubscribe()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}
	out := io.Writer(w)
	if requestLogLevel(r) >= LevelDebug {
		out = io.MultiWriter(w, &loggingLineWriter{prefix: "events"})
	}
	enc := json.NewEncoder(out)
	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.opts.BaseContext.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := enc.Encode(ev); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

// session godoc
// @Summary      Inference session state
// @Tags         session
// @Produce      json
// @Success      200  {object}  types.SessionSnapshot
// @Router       /session [get]
func (h handlers) session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.SessionState())
}

// loadModel godoc
// @Summary      Load a downloaded model
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        body  body  types.LoadRequest  true  "Model to load"
// @Success      200  {object}  types.SessionSnapshot
// @Failure      404  {object}  types.ErrorResponse
// @Failure      409  {object}  types.ErrorResponse
// @Failure      503  {object}  types.ErrorResponse
// @Router       /session/load [post]
func (h handlers) loadModel(w http.ResponseWriter, r *http.Request) {
	var req types.LoadRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ModelID) == "" {
		writeJSONError(w, http.StatusBadRequest, "model_id is required")
		return
	}
	ctx, cancel := h.requestContext(r, false)
	defer cancel()
	if err := h.svc.LoadVariant(ctx, req.ModelID); err != nil {
		if ctx.Err() != nil {
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.SessionState())
}

// unloadModel godoc
// @Summary      Unload the model
// @Tags         session
// @Produce      json
// @Success      200  {object}  types.SessionSnapshot
// @Failure      409  {object}  types.ErrorResponse
// @Router       /session/unload [post]
func (h handlers) unloadModel(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.UnloadModel(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.SessionState())
}

// transcript godoc
// @Summary      Chat transcript
// @Tags         chat
// @Produce      json
// @Success      200  {object}  types.TranscriptResponse
// @Router       /chat [get]
func (h handlers) transcript(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.TranscriptResponse{Messages: h.svc.Transcript()})
}

// chat godoc
// @Summary      Send a message
// @Description  Always answers 200: failures become an assistant notice with failed=true.
// @Tags         chat
// @Accept       json
// @Produce      json
// @Param        body  body  types.ChatRequest  true  "User message"
// @Success      200  {object}  types.ChatResponse
// @Failure      400  {object}  types.ErrorResponse
// @Router       /chat [post]
func (h handlers) chat(w http.ResponseWriter, r *http.Request) {
	var req types.ChatRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSONError(w, http.StatusBadRequest, "text is required")
		return
	}
	ctx, cancel := h.requestContext(r, true)
	defer cancel()
	resp := h.svc.Send(ctx, req.Text)
	observeChatTurn(resp)
	writeJSON(w, http.StatusOK, resp)
}

// clearChat godoc
// @Summary      Clear the transcript
// @Description  Leaves one assistant greeting. The loaded model is not affected.
// @Tags         chat
// @Produce      json
// @Success      200  {object}  types.TranscriptResponse
// @Router       /chat [delete]
func (h handlers) clearChat(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.TranscriptResponse{Messages: h.svc.ClearChat()})
}

// status godoc
// @Summary      Service status
// @Tags         status
// @Produce      json
// @Success      200  {object}  types.StatusResponse
// @Router       /status [get]
func (h handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}
