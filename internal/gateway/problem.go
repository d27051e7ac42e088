package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/soyeahso/storyforge/internal/agent"
	"github.com/soyeahso/storyforge/internal/domain"
	"github.com/soyeahso/storyforge/internal/parser"
	"github.com/soyeahso/storyforge/internal/workflow"
)

// problemBase prefixes the type URI of every problem document.
const problemBase = "urn:storyforge:problem:"

// Problem is an RFC 7807 error body. Error repeats Detail for clients that
// only read the legacy field.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	Field    string `json:"field,omitempty"`
	Error    string `json:"error"`
}

// classify maps an error onto a status code and problem type slug.
func classify(err error) (int, string) {
	var ve *domain.ValidationError
	var ue *agent.UpstreamError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, agent.ErrNotConfigured):
		return http.StatusServiceUnavailable, "not-configured"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not-found"
	case errors.As(err, &ue):
		return http.StatusBadGateway, "upstream"
	case errors.Is(err, parser.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType, "unsupported-type"
	case errors.Is(err, parser.ErrEmptyExtraction):
		return http.StatusUnprocessableEntity, "empty-extraction"
	case errors.Is(err, parser.ErrMalformed):
		return http.StatusUnprocessableEntity, "malformed-document"
	case errors.Is(err, workflow.ErrCannotExecute),
		errors.Is(err, workflow.ErrStepRunning),
		errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrTerminalState),
		errors.Is(err, workflow.ErrStepDiscarded):
		return http.StatusConflict, "workflow-state"
	}
	return http.StatusInternalServerError, "internal"
}

// writeError renders err as a problem document. Internal errors are logged
// and their message is not exposed.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, slug := classify(err)
	p := Problem{
		Type:     problemBase + slug,
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   err.Error(),
		Instance: r.URL.Path,
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		p.Field = ve.Field
	}
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		p.Detail = "internal error"
	}
	writeProblem(w, p)
}

// writeStatus renders a problem for a condition that has no error value.
func writeStatus(w http.ResponseWriter, r *http.Request, status int, slug, detail string) {
	writeProblem(w, Problem{
		Type:     problemBase + slug,
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
	})
}

func writeProblem(w http.ResponseWriter, p Problem) {
	p.Error = p.Detail
	if p.Error == "" {
		p.Error = p.Title
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	json.NewEncoder(w).Encode(p)
}
