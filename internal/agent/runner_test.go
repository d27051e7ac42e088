package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/soyeahso/storyforge/internal/domain"
	"github.com/soyeahso/storyforge/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapSource is an in-memory AgentSource.
type mapSource struct {
	agents map[string]domain.CustomAgent
	err    error
}

func (m *mapSource) Get(_ context.Context, id string) (domain.CustomAgent, error) {
	if m.err != nil {
		return domain.CustomAgent{}, m.err
	}
	a, ok := m.agents[id]
	if !ok {
		return domain.CustomAgent{}, fmt.Errorf("agent %s: %w", id, domain.ErrNotFound)
	}
	return a, nil
}

func testRunner(src *mapSource, mock llm.Client) *Runner {
	exec := NewExecutor(testSettings(), silentLog(), WithRegistryFunc(mockRegistry(mock)))
	return NewRunner(RunnerConfig{}, src, exec, silentLog())
}

func storyAgent(id string) domain.CustomAgent {
	return domain.CustomAgent{
		ID: id, Name: "Story Bot", Description: "d", Icon: "🤖",
		Category: domain.CategoryGeneration, Color: "bg-orange-500",
		SystemPrompt: "Write stories.", Model: "gpt-4", Temperature: 0.5, MaxTokens: 200,
	}
}

func TestRunnerResolve(t *testing.T) {
	src := &mapSource{agents: map[string]domain.CustomAgent{
		"c-1":     storyAgent("c-1"),
		"agent-2": storyAgent("agent-2"),
	}}
	r := testRunner(src, &llm.MockClient{})
	ctx := context.Background()

	ref, err := r.Resolve(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, domain.AgentKindCustom, ref.Kind)
	assert.Equal(t, "Story Bot", ref.Snapshot.Name)

	ref, err = r.Resolve(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, domain.AgentKindBuiltIn, ref.Kind)
	assert.Equal(t, "Requirements Analysis", ref.Snapshot.Name)

	ref, err = r.Resolve(ctx, "agent-2")
	require.NoError(t, err)
	assert.Equal(t, domain.AgentKindCustom, ref.Kind, "stored agents shadow built-ins")

	_, err = r.Resolve(ctx, "ghost")
	assert.ErrorIs(t, err, ErrAgentNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRunnerResolveStoreFailure(t *testing.T) {
	boom := errors.New("disk on fire")
	r := testRunner(&mapSource{err: boom}, &llm.MockClient{})
	_, err := r.Resolve(context.Background(), "agent-1")
	assert.ErrorIs(t, err, boom)
}

func TestRunnerDispatchCustomUsesCurrentConfig(t *testing.T) {
	src := &mapSource{agents: map[string]domain.CustomAgent{"c-1": storyAgent("c-1")}}
	var got llm.CompletionRequest
	mock := &llm.MockClient{CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		got = req
		return &llm.CompletionResponse{Content: "story"}, nil
	}}
	r := testRunner(src, mock)

	ref, err := r.Resolve(context.Background(), "c-1")
	require.NoError(t, err)

	edited := storyAgent("c-1")
	edited.SystemPrompt = "Write terse stories."
	src.agents["c-1"] = edited

	res, err := r.Dispatch(context.Background(), ref, "cart")
	require.NoError(t, err)
	assert.Equal(t, "story", res.Output)
	assert.Equal(t, "Write terse stories.", got.System)
	assert.Equal(t, 200, got.MaxTokens)
}

func TestRunnerDispatchCustomDeleted(t *testing.T) {
	src := &mapSource{agents: map[string]domain.CustomAgent{"c-1": storyAgent("c-1")}}
	r := testRunner(src, &llm.MockClient{})

	ref, err := r.Resolve(context.Background(), "c-1")
	require.NoError(t, err)
	delete(src.agents, "c-1")

	_, err = r.Dispatch(context.Background(), ref, "cart")
	assert.ErrorIs(t, err, ErrAgentNotFound)
}

func TestRunnerDispatchBuiltInSkipsCompletionAPI(t *testing.T) {
	called := false
	mock := &llm.MockClient{CompleteFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
		called = true
		return &llm.CompletionResponse{}, nil
	}}
	r := testRunner(&mapSource{}, mock)

	res, err := r.ExecuteByID(context.Background(), "agent-1", "add items to cart")
	require.NoError(t, err)
	assert.Contains(t, res.Output, "add items to cart")
	assert.False(t, called)
}

func TestRunnerDispatchUnknownKind(t *testing.T) {
	r := testRunner(&mapSource{}, &llm.MockClient{})
	_, err := r.Dispatch(context.Background(), domain.AgentRef{Kind: "plugin", ID: "x"}, "input")
	assert.ErrorContains(t, err, "unknown agent kind")
}

func TestRunnerExecuteByIDNotConfigured(t *testing.T) {
	src := &mapSource{agents: map[string]domain.CustomAgent{"c-1": storyAgent("c-1")}}
	s := testSettings()
	s.APIKey = ""
	r := NewRunner(RunnerConfig{}, src, NewExecutor(s, silentLog(), WithRegistryFunc(mockRegistry(&llm.MockClient{}))), silentLog())

	_, err := r.ExecuteByID(context.Background(), "c-1", "input")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = r.ExecuteByID(context.Background(), "agent-4", "input works without a key")
	assert.NoError(t, err)
}
