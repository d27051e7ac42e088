package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/soyeahso/storyforge/internal/domain"
)

// maxJSONBody caps JSON request bodies. Uploads have their own limit.
const maxJSONBody = 1 << 20

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version,omitempty"`
	Store      string `json:"store,omitempty"`
	Sessions   int    `json:"sessions"`
	Clients    int    `json:"clients"`
	Uptime     string `json:"uptime,omitempty"`
	Completion bool   `json:"completionConfigured"`
}

// handleHealth reports liveness plus store reachability. A failed store ping
// degrades the status; the response code stays 200.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: s.version,
		Clients: s.clients.Count(),
	}
	if s.deps.Sessions != nil {
		resp.Sessions = s.deps.Sessions.Len()
	}
	if s.deps.Runner != nil {
		resp.Completion = s.deps.Runner.Executor().Configured()
	}
	if !s.startedAt.IsZero() {
		resp.Uptime = time.Since(s.startedAt).Round(time.Second).String()
	}
	if s.deps.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		resp.Store = "ok"
		if err := s.deps.Store.Ping(ctx); err != nil {
			s.log.Warn().Err(err).Msg("store ping failed")
			resp.Status = "degraded"
			resp.Store = "unreachable"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, r, http.StatusNotFound, "not-found", "no route for "+r.URL.Path)
}

// messageResponse is the body of acknowledgements without a payload.
type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a JSON request body into target. Malformed bodies become
// validation errors on the field "body".
func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.MissingField("body")
		}
		return domain.InvalidField("body", "malformed JSON: %v", err)
	}
	return nil
}
