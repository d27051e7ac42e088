package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/soyeahso/storyforge/internal/agent"
	"github.com/soyeahso/storyforge/internal/config"
	"github.com/soyeahso/storyforge/internal/library"
	"github.com/soyeahso/storyforge/internal/store"
)

// app holds the services a command works against.
type app struct {
	cfg     config.Config
	db      *store.DB
	library *library.Service
	agents  *store.AgentStore
	runner  *agent.Runner
}

// loadConfig reads and validates the config file.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return cfg, err
	}
	if issues := config.Validate(&cfg); len(issues) > 0 {
		for _, issue := range issues {
			log.Error().Str("path", issue.Path).Msg(issue.Message)
		}
		return cfg, fmt.Errorf("config validation failed with %d issue(s)", len(issues))
	}
	return cfg, nil
}

// storeOptions resolves the database location; sqlite defaults to the data
// directory.
func storeOptions(cfg config.Config) (store.Options, error) {
	opts := store.Options{Driver: cfg.Store.Driver, DSN: cfg.Store.DSN}
	if opts.Driver == "" {
		opts.Driver = store.DriverSQLite
	}
	if opts.Driver == store.DriverSQLite && opts.DSN == "" {
		if err := paths.EnsureDirs(); err != nil {
			return opts, fmt.Errorf("creating data directories: %w", err)
		}
		opts.DSN = paths.DatabasePath()
	}
	return opts, nil
}

// openApp loads the config and opens the store.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	opts, err := storeOptions(cfg)
	if err != nil {
		return nil, err
	}
	db, err := store.Open(ctx, opts, log)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	agents := store.NewAgentStore(db)
	exec := agent.NewExecutor(cfg.Completion, log)
	runner := agent.NewRunner(agent.RunnerConfig{
		BuiltInDelay: time.Duration(cfg.Workflow.BuiltinDelayMs) * time.Millisecond,
	}, agents, exec, log)

	return &app{
		cfg:     cfg,
		db:      db,
		library: library.NewService(store.NewResourceStore(db), log),
		agents:  agents,
		runner:  runner,
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}
