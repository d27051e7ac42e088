package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/gorilla/websocket"

	"github.com/soyeahso/storyforge/internal/domain"
	"github.com/soyeahso/storyforge/internal/hooks"
	"github.com/soyeahso/storyforge/internal/workflow"
)

// maxSocketMessage caps inbound WebSocket frames.
const maxSocketMessage = 1 << 20

// RequestHandler processes a request frame received on a workflow socket.
type RequestHandler func(rc *RequestContext)

// RequestContext carries everything a socket handler needs.
type RequestContext struct {
	Ctx    context.Context
	Client *Client
	Frame  Frame
	Engine *workflow.Engine
	Server *Server
}

// Respond sends a success response.
func (rc *RequestContext) Respond(payload any) {
	if err := rc.Client.Respond(rc.Frame.ID, payload); err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Msg("failed to send response")
	}
}

// RespondError sends err as an error response using the HTTP problem slug
// as its code.
func (rc *RequestContext) RespondError(err error) {
	_, slug := classify(err)
	shape := ErrorShape{Code: slug, Message: err.Error()}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		shape.Field = ve.Field
	}
	if slug == "internal" {
		rc.Server.log.Error().Err(err).Str("method", rc.Frame.Method).Msg("socket request failed")
		shape.Message = "internal error"
	}
	rc.Client.RespondError(rc.Frame.ID, shape)
}

// Params unmarshals the request params into the given target.
func (rc *RequestContext) Params(target any) error {
	if rc.Frame.Params == nil {
		return nil
	}
	if err := json.Unmarshal(rc.Frame.Params, target); err != nil {
		return domain.InvalidField("params", "%v", err)
	}
	return nil
}

// socketHandlers are the methods a workflow socket accepts.
func (s *Server) socketHandlers() map[string]RequestHandler {
	return map[string]RequestHandler{
		"state":           s.rpcState,
		"input.set":       s.rpcSetInput,
		"resource.toggle": s.rpcToggleResource,
		"agent.select":    s.rpcSelectAgent,
		"execute":         s.rpcExecute,
		"clear":           s.rpcClear,
	}
}

func methodNames(handlers map[string]RequestHandler) []string {
	names := make([]string, 0, len(handlers))
	for m := range handlers {
		names = append(names, m)
	}
	sort.Strings(names)
	return names
}

// handleWorkflowSocket upgrades to a WebSocket that streams the session's
// events and accepts workflow commands.
func (s *Server) handleWorkflowSocket(w http.ResponseWriter, r *http.Request) {
	e, err := s.session(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxSocketMessage)

	client := NewClient(conn, e.ID(), s.log.Sub("ws"))
	handlers := s.socketHandlers()

	// Subscribe before the hello snapshot so no event falls between the two.
	// Events wait for the hello to be written.
	helloSent := make(chan struct{})
	s.clients.Add(client)
	e.Hooks().OnAll(client.ConnID, func(_ context.Context, p hooks.Payload) error {
		<-helloSent
		return client.SendEvent(p.Event, p.Data)
	})
	defer func() {
		e.Hooks().OffAll(client.ConnID)
		s.clients.Remove(client.ConnID)
		client.Close()
	}()

	hello := Hello{
		Protocol: ProtocolVersion,
		ConnID:   client.ConnID,
		Version:  s.version,
		Methods:  methodNames(handlers),
		Events:   hooks.AllEvents,
		State:    e.Snapshot(),
	}
	err = client.SendEvent(EventHello, hello)
	close(helloSent)
	if err != nil {
		s.log.Warn().Err(err).Msg("sending hello failed")
		return
	}

	s.readLoop(r.Context(), client, e, handlers)
}

// readLoop processes incoming frames until the client goes away.
func (s *Server) readLoop(ctx context.Context, client *Client, e *workflow.Engine, handlers map[string]RequestHandler) {
	for {
		frame, err := client.ReadFrame()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Str("connId", client.ConnID).Msg("client closed connection")
			} else if !errors.Is(err, ErrClientClosed) {
				s.log.Debug().Err(err).Str("connId", client.ConnID).Msg("read error")
			}
			return
		}

		if frame.Type != FrameTypeRequest {
			s.log.Debug().Str("type", frame.Type).Msg("ignoring non-request frame")
			continue
		}

		handler, ok := handlers[frame.Method]
		if !ok {
			client.RespondError(frame.ID, ErrorShape{
				Code:    "method-not-found",
				Message: "unknown method: " + frame.Method,
			})
			continue
		}
		handler(&RequestContext{Ctx: ctx, Client: client, Frame: frame, Engine: e, Server: s})
	}
}

func (s *Server) rpcState(rc *RequestContext) {
	rc.Respond(rc.Engine.Snapshot())
}

func (s *Server) rpcSetInput(rc *RequestContext) {
	var p inputRequest
	if err := rc.Params(&p); err != nil {
		rc.RespondError(err)
		return
	}
	rc.Engine.SetInput(p.Input)
	rc.Respond(rc.Engine.Snapshot())
}

type toggleParams struct {
	ResourceID string `json:"resourceId"`
}

func (s *Server) rpcToggleResource(rc *RequestContext) {
	var p toggleParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(err)
		return
	}
	if p.ResourceID == "" {
		rc.RespondError(domain.MissingField("resourceId"))
		return
	}
	res, err := s.deps.Library.Get(rc.Ctx, p.ResourceID)
	if err != nil {
		rc.RespondError(err)
		return
	}
	selected := rc.Engine.SelectResource(res)
	rc.Respond(toggleResponse{Selected: selected, State: rc.Engine.Snapshot()})
}

func (s *Server) rpcSelectAgent(rc *RequestContext) {
	var p selectAgentRequest
	if err := rc.Params(&p); err != nil {
		rc.RespondError(err)
		return
	}
	if p.AgentID == "" {
		rc.RespondError(domain.MissingField("agentId"))
		return
	}
	ref, err := s.deps.Runner.Resolve(rc.Ctx, p.AgentID)
	if err != nil {
		rc.RespondError(err)
		return
	}
	if !rc.Engine.SelectAgent(ref) {
		rc.RespondError(workflow.ErrStepRunning)
		return
	}
	rc.Respond(rc.Engine.Snapshot())
}

// rpcExecute starts a step and answers immediately; progress arrives as
// step events.
func (s *Server) rpcExecute(rc *RequestContext) {
	step, err := rc.Engine.Execute(rc.Ctx)
	if err != nil {
		rc.RespondError(err)
		return
	}
	rc.Respond(step)
}

func (s *Server) rpcClear(rc *RequestContext) {
	rc.Engine.Clear()
	rc.Respond(rc.Engine.Snapshot())
}
