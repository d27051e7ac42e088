// Package workflow implements the per-session agent chaining state machine.
//
// A session holds free-text input, an ordered set of selected resources, at
// most one selected agent, and the ordered history of executed steps. At most
// one step is running at a time. A successful step's output becomes the next
// input, so agents chain by repeated execution.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/storyforge/internal/agent"
	"github.com/soyeahso/storyforge/internal/domain"
	"github.com/soyeahso/storyforge/internal/hooks"
	"github.com/soyeahso/storyforge/internal/logging"
)

var (
	// ErrCannotExecute is returned when no agent is selected or there is no input.
	ErrCannotExecute = errors.New("workflow cannot execute: select an agent and provide input or resources")
	// ErrStepRunning is returned when a step is already in flight.
	ErrStepRunning = errors.New("a workflow step is already running")
	// ErrInvalidTransition is returned for a backward or skipping status change.
	ErrInvalidTransition = errors.New("invalid step status transition")
	// ErrTerminalState is returned when changing a completed or failed step.
	ErrTerminalState = errors.New("step is in a terminal state")
	// ErrStepDiscarded is returned by Run when the session was cleared while
	// its step was in flight.
	ErrStepDiscarded = errors.New("step was discarded by clear")
)

// TimeFunc returns the current time. Override for deterministic tests.
type TimeFunc func() time.Time

// Dispatcher runs an agent. *agent.Runner implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, ref domain.AgentRef, input string) (agent.Result, error)
}

// revealLogs is the cosmetic log sequence shown while a step runs. It is
// time-driven and says nothing about upstream progress.
func revealLogs(agentName string) []string {
	return []string{
		fmt.Sprintf("Starting %s...", agentName),
		"Analyzing input content...",
		"Applying processing logic...",
		"Generating output results...",
	}
}

// SelectedResource is the slice of a resource a session composes input from.
type SelectedResource struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Options configures an Engine.
type Options struct {
	// LogInterval paces the cosmetic log reveal. Zero disables it.
	LogInterval time.Duration
	Now         TimeFunc
}

// Engine is the workflow state for one session. All methods are safe for
// concurrent use.
type Engine struct {
	id          string
	dispatcher  Dispatcher
	hooks       *hooks.Manager
	log         *logging.Logger
	now         TimeFunc
	logInterval time.Duration

	// emitMu is taken before mu and held across a step or clear event so
	// listeners see them in state order. Handlers must not call Execute or
	// Clear.
	emitMu sync.Mutex

	mu         sync.Mutex
	input      string
	resources  []SelectedResource
	agent      *domain.AgentRef
	steps      []domain.WorkflowStep
	running    string        // id of the in-flight step
	done       chan struct{} // closed when the in-flight step resolves
	generation uint64        // bumped by Clear to orphan in-flight results
	lastActive time.Time
}

// NewEngine creates an empty session.
func NewEngine(id string, dispatcher Dispatcher, opts Options, log *logging.Logger) *Engine {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		id:          id,
		dispatcher:  dispatcher,
		hooks:       hooks.NewManager(log),
		log:         log.Sub("workflow").With("session", id),
		now:         now,
		logInterval: opts.LogInterval,
		lastActive:  now(),
	}
}

// ID returns the session id.
func (e *Engine) ID() string { return e.id }

// Hooks returns the session's event manager.
func (e *Engine) Hooks() *hooks.Manager { return e.hooks }

// LastActive returns the time of the last state change or read.
func (e *Engine) LastActive() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastActive
}

// Running reports whether a step is in flight.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running != ""
}

// SelectResource toggles r in the selection and reports whether it is
// selected afterwards. Selection order is preserved.
func (e *Engine) SelectResource(r domain.Resource) bool {
	e.mu.Lock()
	e.touch()
	selected := true
	for i, s := range e.resources {
		if s.ID == r.ID {
			e.resources = append(e.resources[:i:i], e.resources[i+1:]...)
			selected = false
			break
		}
	}
	if selected {
		e.resources = append(e.resources, SelectedResource{ID: r.ID, Title: r.Title, Content: r.ParsedContent})
	}
	data := e.selectionLocked()
	e.mu.Unlock()

	e.emit(hooks.EventSelectionChanged, data)
	return selected
}

// SelectAgent replaces the selected agent. It is a no-op returning false
// while a step is running.
func (e *Engine) SelectAgent(ref domain.AgentRef) bool {
	e.mu.Lock()
	e.touch()
	if e.running != "" {
		e.mu.Unlock()
		return false
	}
	r := ref
	e.agent = &r
	data := e.selectionLocked()
	e.mu.Unlock()

	e.emit(hooks.EventSelectionChanged, data)
	return true
}

// SetInput replaces the free-text input.
func (e *Engine) SetInput(text string) {
	e.mu.Lock()
	e.touch()
	e.input = text
	e.mu.Unlock()
}

// Input returns the free-text input.
func (e *Engine) Input() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.input
}

// ComposeInput returns the text a step would receive: the free text followed
// by the selected resources, each framed as "[title]: content".
func (e *Engine) ComposeInput() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.composeLocked()
}

func (e *Engine) composeLocked() string {
	if len(e.resources) == 0 {
		return e.input
	}
	parts := make([]string, len(e.resources))
	for i, r := range e.resources {
		parts[i] = fmt.Sprintf("[%s]: %s", r.Title, r.Content)
	}
	refs := strings.Join(parts, "\n\n")
	if e.input == "" {
		return refs
	}
	return e.input + "\n\nReference Resources:\n" + refs
}

// CanExecute reports whether Execute would start a step.
func (e *Engine) CanExecute() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canExecuteLocked()
}

func (e *Engine) canExecuteLocked() bool {
	return e.agent != nil &&
		(strings.TrimSpace(e.input) != "" || len(e.resources) > 0) &&
		e.running == ""
}

// Execute appends a running step for the selected agent, clears the
// selection, and dispatches the agent in the background. It returns the new
// step. The dispatch outlives ctx cancellation; Wait observes the result.
func (e *Engine) Execute(ctx context.Context) (domain.WorkflowStep, error) {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	e.mu.Lock()
	e.touch()
	if e.running != "" {
		e.mu.Unlock()
		return domain.WorkflowStep{}, ErrStepRunning
	}
	if !e.canExecuteLocked() {
		e.mu.Unlock()
		return domain.WorkflowStep{}, ErrCannotExecute
	}

	ref := *e.agent
	step := domain.WorkflowStep{
		ID:        uuid.New().String(),
		Agent:     ref.Snapshot,
		AgentKind: ref.Kind,
		Input:     e.composeLocked(),
		Status:    domain.StepPending,
		Logs:      []string{},
		StartedAt: e.now(),
	}
	if err := advance(&step, domain.StepRunning); err != nil {
		e.mu.Unlock()
		return domain.WorkflowStep{}, err
	}

	e.steps = append(e.steps, step)
	e.agent = nil
	e.running = step.ID
	e.done = make(chan struct{})
	gen, done := e.generation, e.done
	snapshot := step.Clone()
	e.mu.Unlock()

	e.log.Info().Str("step", step.ID).Str("agent", ref.ID).Str("kind", string(ref.Kind)).Msg("step started")
	e.emit(hooks.EventStepStarted, map[string]any{"step": snapshot})

	if e.logInterval > 0 {
		go e.revealLoop(step.ID, ref.Snapshot.Name, gen, done)
	}
	go func() {
		res, err := e.dispatcher.Dispatch(context.WithoutCancel(ctx), ref, step.Input)
		e.finish(step.ID, gen, res, err)
	}()

	return snapshot, nil
}

// revealLoop grows the running step's logs by one line per interval until
// the step resolves or the session is cleared.
func (e *Engine) revealLoop(stepID, agentName string, gen uint64, done <-chan struct{}) {
	ticker := time.NewTicker(e.logInterval)
	defer ticker.Stop()
	fixed := revealLogs(agentName)

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}
		if !e.revealNext(stepID, gen, fixed) {
			return
		}
	}
}

// revealNext appends the next log line and emits it. It returns false once
// the step is no longer running.
func (e *Engine) revealNext(stepID string, gen uint64, fixed []string) bool {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	e.mu.Lock()
	if e.generation != gen {
		e.mu.Unlock()
		return false
	}
	step := e.stepLocked(stepID)
	if step == nil || step.Status != domain.StepRunning {
		e.mu.Unlock()
		return false
	}
	n := min(len(fixed), len(step.Logs)+1)
	if n == len(step.Logs) {
		e.mu.Unlock()
		return true
	}
	step.Logs = append([]string(nil), fixed[:n]...)
	line := step.Logs[n-1]
	e.mu.Unlock()

	e.emit(hooks.EventStepLog, map[string]any{"stepId": stepID, "line": line, "index": n - 1})
	return true
}

// finish applies a dispatch result. Results from before a Clear are dropped.
func (e *Engine) finish(stepID string, gen uint64, res agent.Result, runErr error) {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	e.mu.Lock()
	if e.generation != gen {
		e.mu.Unlock()
		e.log.Debug().Str("step", stepID).Msg("dropping result of cleared step")
		return
	}

	step := e.stepLocked(stepID)
	if step == nil {
		e.mu.Unlock()
		return
	}

	event := hooks.EventStepCompleted
	next := domain.StepCompleted
	if runErr != nil {
		next = domain.StepError
		event = hooks.EventStepFailed
	}
	if err := advance(step, next); err != nil {
		e.mu.Unlock()
		e.log.Error().Err(err).Str("step", stepID).Msg("step already resolved")
		return
	}

	finished := e.now()
	step.FinishedAt = &finished
	if runErr != nil {
		step.Output = failureOutput(runErr)
	} else {
		step.Output = res.Output
		step.Logs = append([]string(nil), res.Logs...)
		e.input = res.Output
	}

	e.running = ""
	close(e.done)
	e.done = nil
	e.touch()
	snapshot := step.Clone()
	e.mu.Unlock()

	ev := e.log.Info()
	if runErr != nil {
		ev = e.log.Warn().Err(runErr)
	}
	ev.Str("step", stepID).Str("status", string(snapshot.Status)).Msg("step finished")
	e.emit(event, map[string]any{"step": snapshot})
}

// Wait blocks until the in-flight step resolves, the session is cleared, or
// ctx ends. It returns immediately when nothing is running.
func (e *Engine) Wait(ctx context.Context) error {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes the selected agent and waits for the step to resolve. A step
// that ends in error is returned without a Go error; inspect its Status.
func (e *Engine) Run(ctx context.Context) (domain.WorkflowStep, error) {
	step, err := e.Execute(ctx)
	if err != nil {
		return domain.WorkflowStep{}, err
	}
	if err := e.Wait(ctx); err != nil {
		return step, err
	}
	final, ok := e.Step(step.ID)
	if !ok {
		return step, ErrStepDiscarded
	}
	return final, nil
}

// Clear discards all steps and resets input and selections. A step in flight
// is orphaned; its result is dropped when it arrives.
func (e *Engine) Clear() {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	e.mu.Lock()
	e.touch()
	e.steps = nil
	e.input = ""
	e.resources = nil
	e.agent = nil
	e.running = ""
	e.generation++
	if e.done != nil {
		close(e.done)
		e.done = nil
	}
	e.mu.Unlock()

	e.log.Info().Msg("workflow cleared")
	e.emit(hooks.EventWorkflowCleared, nil)
}

// Step returns a copy of the step with the given id.
func (e *Engine) Step(id string) (domain.WorkflowStep, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s := e.stepLocked(id); s != nil {
		return s.Clone(), true
	}
	return domain.WorkflowStep{}, false
}

// State is a point-in-time copy of a session for rendering.
type State struct {
	SessionID         string                `json:"sessionId"`
	Input             string                `json:"input"`
	SelectedResources []SelectedResource    `json:"selectedResources"`
	SelectedAgent     *domain.AgentRef      `json:"selectedAgent,omitempty"`
	Steps             []domain.WorkflowStep `json:"steps"`
	ComposedInput     string                `json:"composedInput"`
	CanExecute        bool                  `json:"canExecute"`
	Running           bool                  `json:"running"`
}

// Snapshot returns a deep copy of the session state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.touch()

	st := State{
		SessionID:         e.id,
		Input:             e.input,
		SelectedResources: append([]SelectedResource{}, e.resources...),
		Steps:             make([]domain.WorkflowStep, len(e.steps)),
		ComposedInput:     e.composeLocked(),
		CanExecute:        e.canExecuteLocked(),
		Running:           e.running != "",
	}
	if e.agent != nil {
		a := *e.agent
		st.SelectedAgent = &a
	}
	for i, s := range e.steps {
		st.Steps[i] = s.Clone()
	}
	return st
}

func (e *Engine) selectionLocked() map[string]any {
	ids := make([]string, len(e.resources))
	for i, r := range e.resources {
		ids[i] = r.ID
	}
	data := map[string]any{"resourceIds": ids}
	if e.agent != nil {
		data["agentId"] = e.agent.ID
	}
	return data
}

func (e *Engine) stepLocked(id string) *domain.WorkflowStep {
	for i := range e.steps {
		if e.steps[i].ID == id {
			return &e.steps[i]
		}
	}
	return nil
}

func (e *Engine) touch() {
	e.lastActive = e.now()
}

func (e *Engine) emit(event string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	data["sessionId"] = e.id
	e.hooks.Emit(context.Background(), event, data)
}

// failureOutput is the output recorded for a failed step.
func failureOutput(err error) string {
	var ue *agent.UpstreamError
	if errors.As(err, &ue) {
		return "Error: Failed to execute agent: " + ue.Error()
	}
	return "Error: " + err.Error()
}

// advance moves step forward to next, refusing backward or skipping moves.
func advance(step *domain.WorkflowStep, next domain.StepStatus) error {
	if step.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrTerminalState, step.Status)
	}
	if !step.Status.CanAdvanceTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, step.Status, next)
	}
	step.Status = next
	return nil
}
