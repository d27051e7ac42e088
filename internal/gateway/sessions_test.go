package gateway

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/soyeahso/storyforge/internal/domain"
	"github.com/soyeahso/storyforge/internal/hooks"
	"github.com/soyeahso/storyforge/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) newSession(t *testing.T) string {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/api/workflow", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	st := decode[workflow.State](t, resp)
	require.NotEmpty(t, st.SessionID)
	return st.SessionID
}

func TestWorkflowOverHTTP(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	sid := f.newSession(t)
	base := "/api/workflow/" + sid
	rid := f.seedResource(t, "Cart", "Shoppers add items to the cart.")

	st := decode[workflow.State](t, f.do(t, http.MethodPut, base+"/input", inputRequest{Input: "Build checkout"}))
	assert.Equal(t, "Build checkout", st.Input)
	assert.False(t, st.CanExecute)

	tog := decode[toggleResponse](t, f.do(t, http.MethodPost, base+"/resources/"+rid, nil))
	assert.True(t, tog.Selected)
	assert.Equal(t, "Build checkout\n\nReference Resources:\n[Cart]: Shoppers add items to the cart.", tog.State.ComposedInput)

	st = decode[workflow.State](t, f.do(t, http.MethodPut, base+"/agent", selectAgentRequest{AgentID: "agent-1"}))
	require.NotNil(t, st.SelectedAgent)
	assert.Equal(t, domain.AgentKindBuiltIn, st.SelectedAgent.Kind)
	assert.True(t, st.CanExecute)

	resp := f.do(t, http.MethodPost, base+"/execute?wait=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	step := decode[domain.WorkflowStep](t, resp)
	assert.Equal(t, domain.StepCompleted, step.Status)
	assert.Contains(t, step.Input, "[Cart]: Shoppers add items")

	st = decode[workflow.State](t, f.do(t, http.MethodGet, base, nil))
	require.Len(t, st.Steps, 1)
	assert.Equal(t, step.Output, st.Input, "output becomes the next input")
	assert.Nil(t, st.SelectedAgent)

	p := requireProblem(t, f.do(t, http.MethodPost, base+"/execute", nil), http.StatusConflict)
	assert.Equal(t, problemBase+"workflow-state", p.Type)

	st = decode[workflow.State](t, f.do(t, http.MethodDelete, base, nil))
	assert.Empty(t, st.Steps)
	assert.Empty(t, st.SelectedResources)
	assert.Equal(t, "", st.Input)
}

func TestWorkflowAsyncExecute(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	sid := f.newSession(t)
	base := "/api/workflow/" + sid

	f.do(t, http.MethodPut, base+"/input", inputRequest{Input: "Shoppers pay by card"})
	f.do(t, http.MethodPut, base+"/agent", selectAgentRequest{AgentID: "agent-5"})

	resp := f.do(t, http.MethodPost, base+"/execute", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	step := decode[domain.WorkflowStep](t, resp)
	assert.Equal(t, domain.StepRunning, step.Status)

	e, ok := f.sessions.Get(sid)
	require.True(t, ok)
	require.Eventually(t, func() bool { return !e.Running() }, 2*time.Second, 5*time.Millisecond)
	final, ok := e.Step(step.ID)
	require.True(t, ok)
	assert.Equal(t, domain.StepCompleted, final.Status)
}

func TestWorkflowErrors(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	sid := f.newSession(t)
	base := "/api/workflow/" + sid

	requireProblem(t, f.do(t, http.MethodGet, "/api/workflow/nope", nil), http.StatusNotFound)
	requireProblem(t, f.do(t, http.MethodPost, base+"/resources/missing", nil), http.StatusNotFound)
	requireProblem(t, f.do(t, http.MethodPut, base+"/agent", selectAgentRequest{AgentID: "ghost"}), http.StatusNotFound)

	p := requireProblem(t, f.do(t, http.MethodPut, base+"/agent", selectAgentRequest{}), http.StatusBadRequest)
	assert.Equal(t, "agentId", p.Field)

	requireProblem(t, f.do(t, http.MethodPost, base+"/execute", nil), http.StatusConflict)
}

func TestWorkflowCustomAgentNotConfigured(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	a := decode[domain.CustomAgent](t, f.do(t, http.MethodPost, "/api/agents", newAgentBody()))
	sid := f.newSession(t)
	base := "/api/workflow/" + sid

	f.do(t, http.MethodPut, base+"/input", inputRequest{Input: "Build checkout"})
	f.do(t, http.MethodPut, base+"/agent", selectAgentRequest{AgentID: a.ID})

	step := decode[domain.WorkflowStep](t, f.do(t, http.MethodPost, base+"/execute?wait=true", nil))
	assert.Equal(t, domain.StepError, step.Status)
	assert.Equal(t, "Error: completion API is not configured", step.Output)

	st := decode[workflow.State](t, f.do(t, http.MethodGet, base, nil))
	assert.Equal(t, "Build checkout", st.Input)
}

func TestDropSession(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	sid := f.newSession(t)

	resp := f.do(t, http.MethodDelete, "/api/workflow/"+sid+"?drop=true", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Zero(t, f.sessions.Len())
	requireProblem(t, f.do(t, http.MethodGet, "/api/workflow/"+sid, nil), http.StatusNotFound)
}

// --- WebSocket ---

func (f *fixture) dial(t *testing.T, sid string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/api/workflow/" + sid + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestSocketHello(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	sid := f.newSession(t)
	f.do(t, http.MethodPut, "/api/workflow/"+sid+"/input", inputRequest{Input: "hello there"})

	conn := f.dial(t, sid)

	var frame Frame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, FrameTypeEvent, frame.Type)
	assert.Equal(t, EventHello, frame.Event)

	var hello Hello
	require.NoError(t, json.Unmarshal(frame.Payload, &hello))
	assert.Equal(t, ProtocolVersion, hello.Protocol)
	assert.Equal(t, "hello there", hello.State.Input)
	assert.Contains(t, hello.Methods, "execute")
	assert.Equal(t, hooks.AllEvents, hello.Events)
}

func TestSocketSubscribedBeforeHello(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	sid := f.newSession(t)
	e, ok := f.sessions.Get(sid)
	require.True(t, ok)

	conn := f.dial(t, sid)

	var frame Frame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, EventHello, frame.Event)
	assert.Equal(t, int64(1), frame.Seq)
	assert.Equal(t, 1, e.Hooks().Count(hooks.EventStepStarted), "listener registered once hello is read")
	assert.Len(t, f.srv.clients.BySession(sid), 1)

	e.Clear()
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, hooks.EventWorkflowCleared, frame.Event)
	assert.Equal(t, int64(2), frame.Seq)
}

func TestSocketUnknownSession(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	url := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/api/workflow/missing/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSocketDrivesWorkflow(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	sid := f.newSession(t)
	conn := f.dial(t, sid)

	var hello Frame
	require.NoError(t, conn.ReadJSON(&hello))

	send := func(id, method string, params any) {
		req, err := NewRequest(id, method, params)
		require.NoError(t, err)
		require.NoError(t, conn.WriteJSON(req))
	}

	// readUntil collects frames until the response to id arrives.
	readUntil := func(id string) (Frame, []string) {
		var events []string
		for {
			var fr Frame
			require.NoError(t, conn.ReadJSON(&fr))
			if fr.Type == FrameTypeEvent {
				events = append(events, fr.Event)
				continue
			}
			if fr.ID == id {
				return fr, events
			}
		}
	}

	send("1", "input.set", inputRequest{Input: "Shoppers add items"})
	res, _ := readUntil("1")
	require.True(t, *res.OK)

	send("2", "agent.select", selectAgentRequest{AgentID: "agent-3"})
	res, events := readUntil("2")
	require.True(t, *res.OK)
	assert.Contains(t, events, hooks.EventSelectionChanged)

	send("3", "execute", nil)
	res, events = readUntil("3")
	require.True(t, *res.OK)
	assert.Contains(t, events, hooks.EventStepStarted)

	completed := slices.Contains(events, hooks.EventStepCompleted)
	for !completed {
		var fr Frame
		require.NoError(t, conn.ReadJSON(&fr))
		if fr.Event == hooks.EventStepCompleted {
			completed = true
			var data map[string]any
			require.NoError(t, json.Unmarshal(fr.Payload, &data))
			assert.Equal(t, sid, data["sessionId"])
		}
	}

	send("4", "execute", nil)
	res, _ = readUntil("4")
	require.False(t, *res.OK)
	assert.Equal(t, "workflow-state", res.Error.Code)

	send("5", "bogus", nil)
	res, _ = readUntil("5")
	assert.Equal(t, "method-not-found", res.Error.Code)

	send("6", "agent.select", map[string]string{})
	res, _ = readUntil("6")
	assert.Equal(t, "validation", res.Error.Code)
	assert.Equal(t, "agentId", res.Error.Field)

	send("7", "clear", nil)
	res, events = readUntil("7")
	require.True(t, *res.OK)
	assert.Contains(t, events, hooks.EventWorkflowCleared)
	var st workflow.State
	require.NoError(t, json.Unmarshal(res.Payload, &st))
	assert.Empty(t, st.Steps)
}

func TestSocketSubscriptionKeepsSession(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	sid := f.newSession(t)
	conn := f.dial(t, sid)
	var hello Frame
	require.NoError(t, conn.ReadJSON(&hello))

	e, ok := f.sessions.Get(sid)
	require.True(t, ok)
	assert.NotEmpty(t, e.Hooks().Events())

	conn.Close()
	require.Eventually(t, func() bool { return len(e.Hooks().Events()) == 0 }, 2*time.Second, 5*time.Millisecond)
}
