package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/soyeahso/storyforge/internal/domain"
)

// NewResource carries the fields for CreateResource. Description is optional.
type NewResource struct {
	Title           string
	Description     string
	Type            domain.ResourceType
	FileName        string
	FileSize        int64
	OriginalContent string
	ParsedContent   string
}

func (n NewResource) validate() error {
	switch {
	case strings.TrimSpace(n.Title) == "":
		return domain.MissingField("title")
	case n.Type == "":
		return domain.MissingField("type")
	case strings.TrimSpace(n.FileName) == "":
		return domain.MissingField("fileName")
	case n.OriginalContent == "":
		return domain.MissingField("originalContent")
	case strings.TrimSpace(n.ParsedContent) == "":
		return domain.MissingField("parsedContent")
	}
	if !n.Type.Valid() {
		return domain.InvalidField("type", "unsupported resource type %q", n.Type)
	}
	if n.FileSize < 0 {
		return domain.InvalidField("fileSize", "must not be negative")
	}
	if !domain.HasUsableContent(n.ParsedContent) {
		return domain.InvalidField("parsedContent", "must contain at least %d characters", domain.MinParsedContentLength)
	}
	return nil
}

// ResourceStore persists parsed documents.
type ResourceStore struct {
	db *DB
}

// NewResourceStore creates a resource store using the given database.
func NewResourceStore(db *DB) *ResourceStore {
	return &ResourceStore{db: db}
}

const resourceColumns = `id, title, description, type, file_name, file_size,
	original_content, parsed_content, created_at, updated_at`

// Create validates and inserts a resource with a fresh id.
func (s *ResourceStore) Create(ctx context.Context, in NewResource) (domain.Resource, error) {
	if err := in.validate(); err != nil {
		return domain.Resource{}, err
	}

	now := s.db.now()
	r := domain.Resource{
		ID:              uuid.New().String(),
		Title:           strings.TrimSpace(in.Title),
		Description:     strings.TrimSpace(in.Description),
		Type:            in.Type,
		FileName:        in.FileName,
		FileSize:        in.FileSize,
		OriginalContent: in.OriginalContent,
		ParsedContent:   in.ParsedContent,
		CreatedAt:       now.UTC(),
		UpdatedAt:       now.UTC(),
	}

	_, err := s.db.exec(ctx,
		`INSERT INTO resources (`+resourceColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Title, r.Description, string(r.Type), r.FileName, r.FileSize,
		r.OriginalContent, r.ParsedContent, formatTime(now), formatTime(now),
	)
	if err != nil {
		return domain.Resource{}, fmt.Errorf("inserting resource: %w", err)
	}

	// Round-trip the timestamps through the stored precision.
	r.CreatedAt = parseTime(formatTime(now))
	r.UpdatedAt = r.CreatedAt

	s.db.log.Debug().Str("id", r.ID).Str("type", string(r.Type)).Int64("size", r.FileSize).Msg("resource created")
	return r, nil
}

// Get returns the resource with the given id, or domain.ErrNotFound.
func (s *ResourceStore) Get(ctx context.Context, id string) (domain.Resource, error) {
	row := s.db.queryRow(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id = ?`, id)
	r, err := scanResource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Resource{}, fmt.Errorf("resource %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Resource{}, fmt.Errorf("loading resource %s: %w", id, err)
	}
	return r, nil
}

// List returns every resource, newest first.
func (s *ResourceStore) List(ctx context.Context) ([]domain.Resource, error) {
	rows, err := s.db.query(ctx,
		`SELECT `+resourceColumns+` FROM resources ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing resources: %w", err)
	}
	defer rows.Close()

	out := []domain.Resource{}
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning resource: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Search returns the resources whose title, description, or parsed content
// contains query, ignoring case, newest first. An empty query lists everything.
func (s *ResourceStore) Search(ctx context.Context, query string) ([]domain.Resource, error) {
	all, err := s.List(ctx)
	if err != nil || query == "" {
		return all, err
	}
	out := make([]domain.Resource, 0, len(all))
	for _, r := range all {
		if r.Matches(query) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Delete removes the resource with the given id, or returns domain.ErrNotFound.
func (s *ResourceStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.exec(ctx, `DELETE FROM resources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting resource %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting resource %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("resource %s: %w", id, domain.ErrNotFound)
	}
	s.db.log.Debug().Str("id", id).Msg("resource deleted")
	return nil
}

// Count returns the number of stored resources.
func (s *ResourceStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.queryRow(ctx, `SELECT COUNT(*) FROM resources`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting resources: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResource(sc scanner) (domain.Resource, error) {
	var (
		r                    domain.Resource
		typ                  string
		createdAt, updatedAt string
	)
	err := sc.Scan(
		&r.ID, &r.Title, &r.Description, &typ, &r.FileName, &r.FileSize,
		&r.OriginalContent, &r.ParsedContent, &createdAt, &updatedAt,
	)
	if err != nil {
		return domain.Resource{}, err
	}
	r.Type = domain.ResourceType(typ)
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return r, nil
}
