package cli

import (
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/soyeahso/storyforge/internal/config"
	"github.com/soyeahso/storyforge/internal/gateway"
	"github.com/soyeahso/storyforge/internal/workflow"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// janitorInterval is how often idle workflow sessions are swept.
const janitorInterval = time.Minute

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"gateway"},
		Short:   "Start the HTTP/WebSocket API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			cfg := a.cfg
			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}

			sessions := workflow.NewSessions(a.runner, workflow.Options{
				LogInterval: time.Duration(cfg.Workflow.LogIntervalMs) * time.Millisecond,
			}, time.Duration(cfg.Workflow.SessionIdleMinutes)*time.Minute, log)

			srv := gateway.New(cfg.Gateway, gateway.Deps{
				Library:  a.library,
				Agents:   a.agents,
				Runner:   a.runner,
				Sessions: sessions,
				Store:    a.db,
			}, log, gateway.WithSettingsSaver(completionSaver(paths.Config, cfg.Completion)))

			log.Info().
				Str("store", a.db.Driver()).
				Bool("completionConfigured", a.runner.Executor().Configured()).
				Msg("storyforge starting")

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.Start(gctx) })
			g.Go(func() error { return sessions.RunJanitor(gctx, janitorInterval) })
			return g.Wait()
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (auto, lan, loopback, custom)")

	return cmd
}

// completionSaver writes completion settings back to the config file. The
// API key is only written when it changed, so a ${VAR} reference survives.
func completionSaver(path string, current config.CompletionConfig) func(config.CompletionConfig) error {
	var mu sync.Mutex
	return func(next config.CompletionConfig) error {
		mu.Lock()
		defer mu.Unlock()

		raw, err := config.LoadRaw(path)
		if err != nil {
			return err
		}
		set := func(key string, value any) {
			config.SetValueAtPath(raw, []string{"completion", key}, value)
		}
		set("provider", next.Provider)
		set("baseUrl", next.BaseURL)
		set("defaultModel", next.DefaultModel)
		set("defaultMaxTokens", next.DefaultMaxTokens)
		if next.DefaultTemperature != nil {
			set("defaultTemperature", *next.DefaultTemperature)
		}
		if next.APIKey != current.APIKey {
			set("apiKey", next.APIKey)
		}
		if !slices.Equal(next.Models, current.Models) {
			set("models", modelsRaw(next.Models))
		}

		if err := config.SaveRaw(path, raw); err != nil {
			return err
		}
		current = next
		return nil
	}
}

// modelsRaw renders the model list in the config file's shape.
func modelsRaw(models []config.ModelEntry) []any {
	out := make([]any, len(models))
	for i, m := range models {
		entry := map[string]any{"id": m.ID, "name": m.Name}
		if m.MaxTokens > 0 {
			entry["maxTokens"] = m.MaxTokens
		}
		if m.Description != "" {
			entry["description"] = m.Description
		}
		out[i] = entry
	}
	return out
}
