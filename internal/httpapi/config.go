package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/cors"
)

const defaultMaxBodyBytes int64 = 1 << 20

// Options configures one mux. The zero value is usable.
type Options struct {
	// BaseContext ends every in-flight handler when it is done (process
	// shutdown). Defaults to context.Background.
	BaseContext context.Context
	// MaxBodyBytes limits JSON request bodies; 1 MiB when not positive.
	MaxBodyBytes int64
	// ChatTimeout bounds one POST /chat. Zero leaves only the request and
	// base contexts.
	ChatTimeout time.Duration
	CORS        CORSOptions
}

// CORSOptions enables the CORS middleware. Empty lists fall back to any
// origin and the methods and headers the API uses.
type CORSOptions struct {
	Enabled bool
	Origins []string
	Methods []string
	Headers []string
}

func (o Options) withDefaults() Options {
	if o.BaseContext == nil {
		o.BaseContext = context.Background()
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = defaultMaxBodyBytes
	}
	if o.ChatTimeout < 0 {
		o.ChatTimeout = 0
	}
	return o
}

func corsMiddleware(c CORSOptions) func(http.Handler) http.Handler {
	origins := c.Origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	methods := c.Methods
	if len(methods) == 0 {
		methods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}
	}
	headers := c.Headers
	if len(headers) == 0 {
		headers = []string{"Accept", "Content-Type", "X-Request-Id", "X-Log-Level"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: methods,
		AllowedHeaders: headers,
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	})
}
