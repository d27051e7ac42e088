package gateway

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/soyeahso/storyforge/internal/agent"
	"github.com/soyeahso/storyforge/internal/config"
	"github.com/soyeahso/storyforge/internal/domain"
	"github.com/soyeahso/storyforge/internal/library"
	"github.com/soyeahso/storyforge/internal/metrics"
	"github.com/soyeahso/storyforge/internal/store"
)

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.registry != nil {
		mux.Handle("GET /metrics", metrics.Handler(s.registry))
	}

	mux.HandleFunc("GET /api/resources", s.handleListResources)
	mux.HandleFunc("POST /api/resources", s.handleCreateResource)
	mux.HandleFunc("POST /api/resources/upload", s.handleUploadResource)
	mux.HandleFunc("GET /api/resources/{id}", s.handleGetResource)
	mux.HandleFunc("DELETE /api/resources/{id}", s.handleDeleteResource)

	mux.HandleFunc("GET /api/agents", s.handleListAgents)
	mux.HandleFunc("POST /api/agents", s.handleCreateAgent)
	mux.HandleFunc("GET /api/agents/{id}", s.handleGetAgent)
	mux.HandleFunc("PUT /api/agents/{id}", s.handleUpdateAgent)
	mux.HandleFunc("DELETE /api/agents/{id}", s.handleDeleteAgent)
	mux.HandleFunc("POST /api/agents/{id}/execute", s.handleExecuteAgent)
	mux.HandleFunc("GET /api/builtin-agents", s.handleBuiltInAgents)

	mux.HandleFunc("GET /api/config", s.handleGetConfig)
	mux.HandleFunc("PUT /api/config", s.handleUpdateConfig)

	mux.HandleFunc("POST /api/workflow", s.handleCreateSession)
	mux.HandleFunc("GET /api/workflow/{session}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/workflow/{session}", s.handleClearSession)
	mux.HandleFunc("PUT /api/workflow/{session}/input", s.handleSetInput)
	mux.HandleFunc("POST /api/workflow/{session}/resources/{id}", s.handleToggleResource)
	mux.HandleFunc("PUT /api/workflow/{session}/agent", s.handleSelectAgent)
	mux.HandleFunc("POST /api/workflow/{session}/execute", s.handleExecuteStep)
	mux.HandleFunc("GET /api/workflow/{session}/ws", s.handleWorkflowSocket)

	// Catch-all for unknown routes
	mux.HandleFunc("/", handleNotFound)
}

// Resources

func (s *Server) handleListResources(w http.ResponseWriter, r *http.Request) {
	resources, err := s.deps.Library.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resources)
}

// createResourceRequest is the JSON body of POST /api/resources.
type createResourceRequest struct {
	Title           string              `json:"title"`
	Description     string              `json:"description"`
	Type            domain.ResourceType `json:"type"`
	FileName        string              `json:"fileName"`
	FileSize        int64               `json:"fileSize"`
	OriginalContent string              `json:"originalContent"`
	ParsedContent   string              `json:"parsedContent"`
}

func (s *Server) handleCreateResource(w http.ResponseWriter, r *http.Request) {
	var req createResourceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.deps.Library.Create(r.Context(), store.NewResource{
		Title:           req.Title,
		Description:     req.Description,
		Type:            req.Type,
		FileName:        req.FileName,
		FileSize:        req.FileSize,
		OriginalContent: req.OriginalContent,
		ParsedContent:   req.ParsedContent,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": res.ID})
}

// uploadResponse is the body of a successful upload.
type uploadResponse struct {
	ID       string         `json:"id"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata"`
}

func (s *Server) handleUploadResource(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeStatus(w, r, http.StatusRequestEntityTooLarge, "too-large",
				fmt.Sprintf("upload exceeds %d bytes", limit))
			return
		}
		s.writeError(w, r, domain.InvalidField("file", "malformed multipart form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, domain.MissingField("file"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("reading upload: %w", err))
		return
	}

	result, err := s.deps.Library.Upload(r.Context(), library.UploadRequest{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		FileName:    header.Filename,
		MIMEType:    header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	msg := "File uploaded and parsed successfully"
	if pages, ok := result.Metadata["pages"].(int); ok && pages > 0 {
		msg = fmt.Sprintf("%s, %d pages parsed", msg, pages)
	}
	writeJSON(w, http.StatusCreated, uploadResponse{
		ID:       result.Resource.ID,
		Message:  msg,
		Metadata: result.Metadata,
	})
}

func (s *Server) handleGetResource(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Library.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeleteResource(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Library.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Resource deleted successfully"})
}

// Agents

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.deps.Agents.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, agents)
}

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var req store.NewAgent
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.deps.Agents.Create(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	a, err := s.deps.Agents.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	var patch store.AgentPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.deps.Agents.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Agents.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Agent deleted successfully"})
}

type executeRequest struct {
	Input string `json:"input"`
}

// handleExecuteAgent runs one agent directly, outside any workflow session.
// The input is checked before the agent is looked up.
func (s *Server) handleExecuteAgent(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		s.writeError(w, r, domain.MissingField("input"))
		return
	}

	res, err := s.deps.Runner.ExecuteByID(r.Context(), r.PathValue("id"), req.Input)
	if err != nil {
		var ue *agent.UpstreamError
		if errors.As(err, &ue) {
			err = fmt.Errorf("Failed to execute agent: %w", ue)
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleBuiltInAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, agent.BuiltIns())
}

// Completion settings

// configResponse never carries the API key itself.
type configResponse struct {
	Provider           string              `json:"provider"`
	BaseURL            string              `json:"baseUrl,omitempty"`
	Models             []config.ModelEntry `json:"models"`
	DefaultModel       string              `json:"defaultModel"`
	DefaultTemperature float64             `json:"defaultTemperature"`
	DefaultMaxTokens   int                 `json:"defaultMaxTokens"`
	IsConfigured       bool                `json:"isConfigured"`
	HasAPIKey          bool                `json:"hasApiKey"`
}

func newConfigResponse(c config.CompletionConfig) configResponse {
	resp := configResponse{
		Provider:         c.Provider,
		BaseURL:          c.BaseURL,
		Models:           c.Models,
		DefaultModel:     c.DefaultModel,
		DefaultMaxTokens: c.DefaultMaxTokens,
		IsConfigured:     c.HasCredential(),
		HasAPIKey:        c.HasCredential(),
	}
	if c.DefaultTemperature != nil {
		resp.DefaultTemperature = *c.DefaultTemperature
	}
	if resp.Models == nil {
		resp.Models = []config.ModelEntry{}
	}
	return resp
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newConfigResponse(s.deps.Runner.Executor().Settings()))
}

// updateConfigRequest is a partial settings update; absent fields are kept.
type updateConfigRequest struct {
	Provider           *string              `json:"provider"`
	APIKey             *string              `json:"apiKey"`
	BaseURL            *string              `json:"baseUrl"`
	DefaultModel       *string              `json:"defaultModel"`
	DefaultTemperature *float64             `json:"defaultTemperature"`
	DefaultMaxTokens   *int                 `json:"defaultMaxTokens"`
	Models             *[]config.ModelEntry `json:"models"`
}

func (u updateConfigRequest) apply(c config.CompletionConfig) (config.CompletionConfig, error) {
	if u.Provider != nil {
		switch *u.Provider {
		case "openai", "anthropic":
			c.Provider = *u.Provider
		default:
			return c, domain.InvalidField("provider", "must be openai or anthropic")
		}
	}
	if u.APIKey != nil {
		c.APIKey = strings.TrimSpace(*u.APIKey)
	}
	if u.BaseURL != nil {
		c.BaseURL = strings.TrimSpace(*u.BaseURL)
	}
	if u.DefaultModel != nil {
		if strings.TrimSpace(*u.DefaultModel) == "" {
			return c, domain.MissingField("defaultModel")
		}
		c.DefaultModel = *u.DefaultModel
	}
	if u.DefaultTemperature != nil {
		t := *u.DefaultTemperature
		if t < 0 || t > 2 {
			return c, domain.InvalidField("defaultTemperature", "must be between 0 and 2")
		}
		c.DefaultTemperature = &t
	}
	if u.DefaultMaxTokens != nil {
		if *u.DefaultMaxTokens <= 0 {
			return c, domain.InvalidField("defaultMaxTokens", "must be positive")
		}
		c.DefaultMaxTokens = *u.DefaultMaxTokens
	}
	if u.Models != nil {
		c.Models = append([]config.ModelEntry(nil), (*u.Models)...)
	}
	return c, nil
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req updateConfigRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	exec := s.deps.Runner.Executor()
	next, err := req.apply(exec.Settings())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.saveSettings != nil {
		if err := s.saveSettings(next); err != nil {
			s.writeError(w, r, fmt.Errorf("saving completion settings: %w", err))
			return
		}
	}
	exec.UpdateSettings(next)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Configuration updated successfully"})
}
