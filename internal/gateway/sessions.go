package gateway

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/soyeahso/storyforge/internal/domain"
	"github.com/soyeahso/storyforge/internal/workflow"
)

// session looks up the engine named by the {session} path value.
func (s *Server) session(r *http.Request) (*workflow.Engine, error) {
	id := r.PathValue("session")
	e, ok := s.deps.Sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("workflow session %s: %w", id, domain.ErrNotFound)
	}
	return e, nil
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	e := s.deps.Sessions.Create()
	writeJSON(w, http.StatusCreated, e.Snapshot())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	e, err := s.session(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e.Snapshot())
}

// handleClearSession resets the session. With ?drop=true the session is
// removed and its sockets are closed.
func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	e, err := s.session(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if drop, _ := strconv.ParseBool(r.URL.Query().Get("drop")); drop {
		s.deps.Sessions.Delete(e.ID())
		for _, c := range s.clients.BySession(e.ID()) {
			c.Close()
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	e.Clear()
	writeJSON(w, http.StatusOK, e.Snapshot())
}

type inputRequest struct {
	Input string `json:"input"`
}

func (s *Server) handleSetInput(w http.ResponseWriter, r *http.Request) {
	e, err := s.session(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req inputRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	e.SetInput(req.Input)
	writeJSON(w, http.StatusOK, e.Snapshot())
}

type toggleResponse struct {
	Selected bool           `json:"selected"`
	State    workflow.State `json:"state"`
}

func (s *Server) handleToggleResource(w http.ResponseWriter, r *http.Request) {
	e, err := s.session(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.deps.Library.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	selected := e.SelectResource(res)
	writeJSON(w, http.StatusOK, toggleResponse{Selected: selected, State: e.Snapshot()})
}

type selectAgentRequest struct {
	AgentID string `json:"agentId"`
}

func (s *Server) handleSelectAgent(w http.ResponseWriter, r *http.Request) {
	e, err := s.session(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req selectAgentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.AgentID == "" {
		s.writeError(w, r, domain.MissingField("agentId"))
		return
	}
	ref, err := s.deps.Runner.Resolve(r.Context(), req.AgentID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !e.SelectAgent(ref) {
		s.writeError(w, r, workflow.ErrStepRunning)
		return
	}
	writeJSON(w, http.StatusOK, e.Snapshot())
}

// handleExecuteStep starts the selected agent. The step is returned with 202
// while it runs; ?wait=true blocks until it resolves and returns 200.
func (s *Server) handleExecuteStep(w http.ResponseWriter, r *http.Request) {
	e, err := s.session(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		step, err := e.Run(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, step)
		return
	}

	step, err := e.Execute(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, step)
}
