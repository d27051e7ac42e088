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

// NewAgent carries the fields for CreateAgent. Temperature and MaxTokens
// default to domain.DefaultTemperature and domain.DefaultMaxTokens when nil.
type NewAgent struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Icon         string          `json:"icon"`
	Category     domain.Category `json:"category"`
	Color        string          `json:"color"`
	SystemPrompt string          `json:"systemPrompt"`
	Model        string          `json:"model"`
	Temperature  *float64        `json:"temperature,omitempty"`
	MaxTokens    *int            `json:"maxTokens,omitempty"`
}

func (n NewAgent) validate() error {
	required := []struct {
		field, value string
	}{
		{"name", n.Name},
		{"description", n.Description},
		{"icon", n.Icon},
		{"category", string(n.Category)},
		{"color", n.Color},
		{"systemPrompt", n.SystemPrompt},
		{"model", n.Model},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return domain.MissingField(r.field)
		}
	}
	if !n.Category.Valid() {
		return domain.InvalidField("category", "must be one of %v", domain.Categories)
	}
	if n.Temperature != nil {
		if err := checkTemperature(*n.Temperature); err != nil {
			return err
		}
	}
	if n.MaxTokens != nil {
		if err := checkMaxTokens(*n.MaxTokens); err != nil {
			return err
		}
	}
	return nil
}

// AgentStore persists custom agent definitions.
type AgentStore struct {
	db *DB
}

// NewAgentStore creates an agent store using the given database.
func NewAgentStore(db *DB) *AgentStore {
	return &AgentStore{db: db}
}

const agentColumns = `id, name, description, icon, category, color, system_prompt,
	model, temperature, max_tokens, created_at, updated_at`

// Create validates and inserts a custom agent with a fresh id.
func (s *AgentStore) Create(ctx context.Context, in NewAgent) (domain.CustomAgent, error) {
	if err := in.validate(); err != nil {
		return domain.CustomAgent{}, err
	}

	temp := domain.DefaultTemperature
	if in.Temperature != nil {
		temp = *in.Temperature
	}
	maxTokens := domain.DefaultMaxTokens
	if in.MaxTokens != nil {
		maxTokens = *in.MaxTokens
	}

	stamp := formatTime(s.db.now())
	a := domain.CustomAgent{
		ID:           uuid.New().String(),
		Name:         in.Name,
		Description:  in.Description,
		Icon:         in.Icon,
		Category:     in.Category,
		Color:        in.Color,
		SystemPrompt: in.SystemPrompt,
		Model:        in.Model,
		Temperature:  temp,
		MaxTokens:    maxTokens,
		CreatedAt:    parseTime(stamp),
		UpdatedAt:    parseTime(stamp),
	}

	_, err := s.db.exec(ctx,
		`INSERT INTO agents (`+agentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Description, a.Icon, string(a.Category), a.Color, a.SystemPrompt,
		a.Model, a.Temperature, a.MaxTokens, stamp, stamp,
	)
	if err != nil {
		return domain.CustomAgent{}, fmt.Errorf("inserting agent: %w", err)
	}

	s.db.log.Debug().Str("id", a.ID).Str("name", a.Name).Msg("agent created")
	return a, nil
}

// Get returns the agent with the given id, or domain.ErrNotFound.
func (s *AgentStore) Get(ctx context.Context, id string) (domain.CustomAgent, error) {
	row := s.db.queryRow(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = ?`, id)
	a, err := scanAgent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CustomAgent{}, fmt.Errorf("agent %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.CustomAgent{}, fmt.Errorf("loading agent %s: %w", id, err)
	}
	return a, nil
}

// List returns every custom agent, newest first.
func (s *AgentStore) List(ctx context.Context) ([]domain.CustomAgent, error) {
	rows, err := s.db.query(ctx,
		`SELECT `+agentColumns+` FROM agents ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}
	defer rows.Close()

	out := []domain.CustomAgent{}
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning agent: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Update overwrites only the fields present in patch and always refreshes
// updated_at. Returns the updated agent or domain.ErrNotFound.
func (s *AgentStore) Update(ctx context.Context, id string, patch AgentPatch) (domain.CustomAgent, error) {
	sets, err := patch.assignments()
	if err != nil {
		return domain.CustomAgent{}, err
	}

	clauses := make([]string, 0, len(sets)+1)
	args := make([]any, 0, len(sets)+2)
	changed := make([]string, 0, len(sets))
	for _, a := range sets {
		clauses = append(clauses, a.column+" = ?")
		args = append(args, a.value)
		if name, ok := fieldForColumn(a.column); ok {
			changed = append(changed, name)
		}
	}
	clauses = append(clauses, "updated_at = ?")
	args = append(args, formatTime(s.db.now()), id)

	res, err := s.db.exec(ctx,
		`UPDATE agents SET `+strings.Join(clauses, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return domain.CustomAgent{}, fmt.Errorf("updating agent %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.CustomAgent{}, fmt.Errorf("updating agent %s: %w", id, err)
	}
	if n == 0 {
		return domain.CustomAgent{}, fmt.Errorf("agent %s: %w", id, domain.ErrNotFound)
	}

	s.db.log.Debug().Str("id", id).Strs("fields", changed).Msg("agent updated")
	return s.Get(ctx, id)
}

// Delete removes the agent with the given id, or returns domain.ErrNotFound.
func (s *AgentStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.exec(ctx, `DELETE FROM agents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting agent %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting agent %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("agent %s: %w", id, domain.ErrNotFound)
	}
	s.db.log.Debug().Str("id", id).Msg("agent deleted")
	return nil
}

// Count returns the number of stored agents.
func (s *AgentStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.queryRow(ctx, `SELECT COUNT(*) FROM agents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting agents: %w", err)
	}
	return n, nil
}

func scanAgent(sc scanner) (domain.CustomAgent, error) {
	var (
		a                    domain.CustomAgent
		category             string
		createdAt, updatedAt string
	)
	err := sc.Scan(
		&a.ID, &a.Name, &a.Description, &a.Icon, &category, &a.Color, &a.SystemPrompt,
		&a.Model, &a.Temperature, &a.MaxTokens, &createdAt, &updatedAt,
	)
	if err != nil {
		return domain.CustomAgent{}, err
	}
	a.Category = domain.Category(category)
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return a, nil
}
