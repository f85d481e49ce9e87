package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mindbridge/internal/app"
	"mindbridge/internal/httpapi"
)

const shutdownTimeout = 5 * time.Second

type serveOptions struct {
	maxBodyBytes int64
	chatTimeout  time.Duration
}

func newServeCmd(g *globals) *cobra.Command {
	var (
		addr         string
		corsOrigins  string
		defaultModel string
		opts         serveOptions
	)
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP API",
		Example: "  mindbridge serve --addr :8080\n  mindbridge serve --default-model qwen3-4b-instruct-q4_k_m --cors-origins http://localhost:5173",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if defaultModel != "" {
				cfg.DefaultModel = defaultModel
			}
			if origins := splitCSV(corsOrigins); len(origins) > 0 {
				cfg.CORS.Enabled = true
				cfg.CORS.Origins = origins
			}
			a, err := g.openApp(cmd, cfg, false)
			if err != nil {
				return err
			}
			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				_ = a.Close(context.Background())
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a, ln, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&addr, "addr", "", "HTTP listen address, e.g. :8080 (defaults MINDBRIDGE_ADDR or config)")
	f.StringVar(&corsOrigins, "cors-origins", "", "Comma-separated allowed origins; enables CORS when set")
	f.StringVar(&defaultModel, "default-model", "", "Model id loaded at startup when already downloaded")
	f.Int64Var(&opts.maxBodyBytes, "max-body-bytes", 1<<20, "Maximum JSON request body size")
	f.DurationVar(&opts.chatTimeout, "chat-timeout", 0, "Upper bound for one POST /chat (0 disables)")
	return cmd
}

// serve runs the HTTP API on ln until ctx is done, then drains requests and
// closes a.
func serve(ctx context.Context, a *app.App, ln net.Listener, opts serveOptions) error {
	httpapi.SetLogger(a.Log.With().Str("component", "http").Logger())
	mux := httpapi.NewMux(a, httpapi.Options{
		BaseContext:  ctx,
		MaxBodyBytes: opts.maxBodyBytes,
		ChatTimeout:  opts.chatTimeout,
		CORS:         httpapi.CORSOptions{Enabled: a.Config.CORS.Enabled, Origins: a.Config.CORS.Origins},
	})

	autoload(ctx, a)

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	a.Log.Info().Str("addr", ln.Addr().String()).Str("data_dir", a.Assets.Dir()).Msg("mindbridge listening")

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return errors.Join(err, a.Close(context.Background()))
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.Log.Info().Msg("shutting down")
	err := srv.Shutdown(shutdownCtx)
	return errors.Join(err, a.Close(shutdownCtx))
}

// autoload loads the configured default model in the background when its
// file is present. The server answers /readyz with 503 until it is ready.
func autoload(ctx context.Context, a *app.App) {
	id := a.Config.DefaultModel
	if id == "" {
		return
	}
	v, ok := a.Catalog.Get(id)
	if !ok {
		a.Log.Warn().Str("model", id).Msg("default model is not in the catalog")
		return
	}
	if !v.Downloaded {
		a.Log.Info().Str("model", id).Msg("default model not downloaded yet; skipping autoload")
		return
	}
	go func() {
		if err := a.LoadVariant(ctx, id); err != nil {
			a.Log.Warn().Err(err).Str("model", id).Msg("default model load failed")
		}
	}()
}

var _ httpapi.Service = (*app.App)(nil)
