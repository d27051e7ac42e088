// Package agent resolves agent ids to built-in or custom agents and runs them.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/storyforge/internal/domain"
	"github.com/soyeahso/storyforge/internal/logging"
	"github.com/soyeahso/storyforge/internal/metrics"
)

// ErrAgentNotFound is returned when an id names neither a custom nor a
// built-in agent. It matches domain.ErrNotFound.
var ErrAgentNotFound = fmt.Errorf("agent %w", domain.ErrNotFound)

// AgentSource looks up stored custom agents.
type AgentSource interface {
	Get(ctx context.Context, id string) (domain.CustomAgent, error)
}

// RunnerConfig configures the agent runner.
type RunnerConfig struct {
	// BuiltInDelay is the simulated processing time of built-in agents.
	BuiltInDelay time.Duration
}

// Runner dispatches agent executions to the built-in table or the executor.
type Runner struct {
	cfg    RunnerConfig
	agents AgentSource
	exec   *Executor
	log    *logging.Logger
}

// NewRunner creates an agent runner.
func NewRunner(cfg RunnerConfig, agents AgentSource, exec *Executor, log *logging.Logger) *Runner {
	return &Runner{
		cfg:    cfg,
		agents: agents,
		exec:   exec,
		log:    log.Sub("agent.runner"),
	}
}

// Executor returns the completion executor used for custom agents.
func (r *Runner) Executor() *Executor {
	return r.exec
}

// Resolve turns an id into an AgentRef. Stored custom agents take precedence
// over built-ins with the same id.
func (r *Runner) Resolve(ctx context.Context, id string) (domain.AgentRef, error) {
	a, err := r.agents.Get(ctx, id)
	switch {
	case err == nil:
		return domain.CustomRef(a), nil
	case !errors.Is(err, domain.ErrNotFound):
		return domain.AgentRef{}, err
	}

	if s, ok := LookupBuiltIn(id); ok {
		return domain.BuiltInRef(s), nil
	}
	return domain.AgentRef{}, fmt.Errorf("%s: %w", id, ErrAgentNotFound)
}

// Dispatch runs the agent behind ref. Custom agents are re-read from the
// store so the call uses their current configuration.
func (r *Runner) Dispatch(ctx context.Context, ref domain.AgentRef, input string) (Result, error) {
	start := time.Now()
	res, err := r.dispatch(ctx, ref, input)

	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
	}
	metrics.RecordAgentExecution(string(ref.Kind), status, time.Since(start).Seconds())

	ev := r.log.Info()
	if err != nil {
		ev = r.log.Warn().Err(err)
	}
	ev.Str("agent", ref.ID).Str("kind", string(ref.Kind)).Dur("took", time.Since(start)).Msg("agent executed")
	return res, err
}

func (r *Runner) dispatch(ctx context.Context, ref domain.AgentRef, input string) (Result, error) {
	switch ref.Kind {
	case domain.AgentKindBuiltIn:
		b, ok := findBuiltIn(ref.ID)
		if !ok {
			return Result{}, fmt.Errorf("%s: %w", ref.ID, ErrAgentNotFound)
		}
		return b.run(ctx, input, r.cfg.BuiltInDelay)

	case domain.AgentKindCustom:
		a, err := r.agents.Get(ctx, ref.ID)
		if errors.Is(err, domain.ErrNotFound) {
			return Result{}, fmt.Errorf("%s: %w", ref.ID, ErrAgentNotFound)
		}
		if err != nil {
			return Result{}, err
		}
		return r.exec.Execute(ctx, ConfigFor(a), input)
	}
	return Result{}, fmt.Errorf("unknown agent kind %q", ref.Kind)
}

// ExecuteByID resolves id and runs it.
func (r *Runner) ExecuteByID(ctx context.Context, id, input string) (Result, error) {
	ref, err := r.Resolve(ctx, id)
	if err != nil {
		return Result{}, err
	}
	return r.Dispatch(ctx, ref, input)
}
