// Package library turns uploaded files into stored resources.
package library

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/soyeahso/storyforge/internal/domain"
	"github.com/soyeahso/storyforge/internal/logging"
	"github.com/soyeahso/storyforge/internal/metrics"
	"github.com/soyeahso/storyforge/internal/parser"
	"github.com/soyeahso/storyforge/internal/store"
)

// UploadRequest is a decoded upload: the raw bytes plus the form fields that
// travelled with them.
type UploadRequest struct {
	Title       string
	Description string
	FileName    string
	MIMEType    string
	Data        []byte
}

// UploadResult describes a stored upload.
type UploadResult struct {
	Resource domain.Resource
	Metadata map[string]any
}

// Service parses and stores resources.
type Service struct {
	resources *store.ResourceStore
	log       *logging.Logger
}

// NewService creates a library service over the given resource store.
func NewService(resources *store.ResourceStore, log *logging.Logger) *Service {
	return &Service{resources: resources, log: log.Sub("library")}
}

// Upload parses req and persists the result. Nothing is stored when parsing
// fails. The file is checked first, then the title.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	if strings.TrimSpace(req.FileName) == "" {
		return UploadResult{}, domain.MissingField("file")
	}
	if len(req.Data) == 0 {
		return UploadResult{}, domain.MissingField("file")
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return UploadResult{}, domain.MissingField("title")
	}

	parsed, err := parser.Parse(req.Data, req.FileName, req.MIMEType)
	if err != nil {
		metrics.RecordParseFailure(failureReason(err))
		s.log.Warn().Err(err).Str("file", req.FileName).Msg("upload rejected")
		return UploadResult{}, err
	}

	r, err := s.resources.Create(ctx, store.NewResource{
		Title:           title,
		Description:     req.Description,
		Type:            parsed.Type,
		FileName:        req.FileName,
		FileSize:        int64(len(req.Data)),
		OriginalContent: base64.StdEncoding.EncodeToString(req.Data),
		ParsedContent:   parsed.Text,
	})
	if err != nil {
		return UploadResult{}, err
	}

	metrics.RecordResourceUploaded(string(r.Type))
	s.log.Info().Str("id", r.ID).Str("type", string(r.Type)).Int64("size", r.FileSize).Msg("resource uploaded")
	return UploadResult{Resource: r, Metadata: parsed.Metadata}, nil
}

// Create stores a resource whose text was supplied directly.
func (s *Service) Create(ctx context.Context, in store.NewResource) (domain.Resource, error) {
	return s.resources.Create(ctx, in)
}

// Get returns a resource by id.
func (s *Service) Get(ctx context.Context, id string) (domain.Resource, error) {
	return s.resources.Get(ctx, id)
}

// List returns every resource, newest first.
func (s *Service) List(ctx context.Context) ([]domain.Resource, error) {
	return s.resources.List(ctx)
}

// Search filters resources by a case-insensitive substring.
func (s *Service) Search(ctx context.Context, query string) ([]domain.Resource, error) {
	return s.resources.Search(ctx, query)
}

// Delete removes a resource by id.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.resources.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("id", id).Msg("resource deleted")
	return nil
}

// Count returns the number of stored resources.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.resources.Count(ctx)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, parser.ErrUnsupportedType):
		return "unsupported_type"
	case errors.Is(err, parser.ErrEmptyExtraction):
		return "empty_extraction"
	case errors.Is(err, parser.ErrMalformed):
		return "malformed"
	}
	return "internal"
}
