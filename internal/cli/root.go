// Package cli builds the mindbridge command tree.
package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"mindbridge/internal/app"
	"mindbridge/internal/config"
)

// globals are the persistent flags shared by every subcommand. Empty values
// leave the config file / env value in place.
type globals struct {
	configPath string
	dataDir    string
	logLevel   string
	logFormat  string
	engine     string
}

// Execute runs the command tree against os.Args.
func Execute() error { return NewRootCmd().Execute() }

// NewRootCmd returns a fresh command tree.
func NewRootCmd() *cobra.Command { return buildRootCmdWith(&globals{}) }

func buildRootCmdWith(g *globals) *cobra.Command {
	root := &cobra.Command{
		Use:           "mindbridge",
		Short:         "On-device chat with downloadable GGUF models",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", os.Getenv("MINDBRIDGE_CONFIG"), "Config file (.yaml, .json or .toml; defaults MINDBRIDGE_CONFIG)")
	pf.StringVar(&g.dataDir, "data-dir", "", "Directory holding downloaded models (default: platform data dir)")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level: trace|debug|info|warn|error|disabled")
	pf.StringVar(&g.logFormat, "log-format", "", "Log format: console|json")
	pf.StringVar(&g.engine, "engine", "", "Inference engine: llama|server|placeholder")

	root.AddCommand(newServeCmd(g), newModelsCmd(g), newChatCmd(g))
	return root
}

// loadConfig layers defaults, the config file, env and finally flags.
func (g *globals) loadConfig() (config.Config, error) {
	cfg, err := config.LoadOrDefault(g.configPath)
	if err != nil {
		return cfg, err
	}
	if g.dataDir != "" {
		cfg.DataDir = g.dataDir
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if g.logFormat != "" {
		cfg.LogFormat = g.logFormat
	}
	if g.engine != "" {
		cfg.Engine = g.engine
	}
	return cfg, nil
}

// openApp assembles the app with logs on the command's stderr. quiet raises
// the default level to warn for one-shot commands.
func (g *globals) openApp(cmd *cobra.Command, cfg config.Config, quiet bool) (*app.App, error) {
	if quiet && g.logLevel == "" && (cfg.LogLevel == "" || cfg.LogLevel == "info") {
		cfg.LogLevel = "warn"
	}
	log := app.NewLogger(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	return app.New(cfg, app.WithLogger(log))
}

// withApp runs fn with an assembled app and a context cancelled on SIGINT or
// SIGTERM. The app is closed afterwards.
func (g *globals) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	a, err := g.openApp(cmd, cfg, true)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runErr := fn(ctx, a)
	if err := a.Close(context.Background()); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// splitCSV splits a comma-separated list, trimming blanks.
func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
