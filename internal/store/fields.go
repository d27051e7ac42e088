package store

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/soyeahso/storyforge/internal/domain"
)

type fieldKind int

const (
	textField fieldKind = iota
	categoryField
	floatField
	intField
)

type agentField struct {
	column string
	kind   fieldKind
}

// agentFields maps the external (camelCase) agent field names accepted in
// partial updates to their columns.
var agentFields = map[string]agentField{
	"name":         {"name", textField},
	"description":  {"description", textField},
	"icon":         {"icon", textField},
	"category":     {"category", categoryField},
	"color":        {"color", textField},
	"systemPrompt": {"system_prompt", textField},
	"model":        {"model", textField},
	"temperature":  {"temperature", floatField},
	"maxTokens":    {"max_tokens", intField},
}

// agentColumnNames is the reverse of agentFields.
var agentColumnNames = func() map[string]string {
	m := make(map[string]string, len(agentFields))
	for name, f := range agentFields {
		m[f.column] = name
	}
	return m
}()

// fieldForColumn returns the external name of an agent column.
func fieldForColumn(column string) (string, bool) {
	name, ok := agentColumnNames[column]
	return name, ok
}

// AgentPatch is a partial agent update keyed by external field name. Only
// keys present are written.
type AgentPatch map[string]any

type assignment struct {
	column string
	value  any
}

// assignments validates the patch and returns column writes in column order.
func (p AgentPatch) assignments() ([]assignment, error) {
	out := make([]assignment, 0, len(p))
	for field, raw := range p {
		f, ok := agentFields[field]
		if !ok {
			return nil, domain.InvalidField(field, "is not an updatable agent field")
		}
		v, err := coerceField(field, f.kind, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, assignment{column: f.column, value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].column < out[j].column })
	return out, nil
}

func coerceField(field string, kind fieldKind, raw any) (any, error) {
	switch kind {
	case textField, categoryField:
		s, ok := raw.(string)
		if !ok {
			return nil, domain.InvalidField(field, "must be a string")
		}
		if strings.TrimSpace(s) == "" {
			return nil, domain.MissingField(field)
		}
		if kind == categoryField && !domain.Category(s).Valid() {
			return nil, domain.InvalidField(field, "must be one of %v", domain.Categories)
		}
		return s, nil
	case floatField:
		f, err := toFloat(raw)
		if err != nil {
			return nil, domain.InvalidField(field, "%v", err)
		}
		if err := checkTemperature(f); err != nil {
			return nil, err
		}
		return f, nil
	case intField:
		f, err := toFloat(raw)
		if err != nil {
			return nil, domain.InvalidField(field, "%v", err)
		}
		if f != math.Trunc(f) {
			return nil, domain.InvalidField(field, "must be an integer")
		}
		if err := checkMaxTokens(int(f)); err != nil {
			return nil, err
		}
		return int(f), nil
	}
	return nil, fmt.Errorf("unknown field kind %d", kind)
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	}
	return 0, fmt.Errorf("must be a number")
}

func checkTemperature(t float64) error {
	if t < 0 || t > 2 {
		return domain.InvalidField("temperature", "must be between 0 and 2")
	}
	return nil
}

func checkMaxTokens(n int) error {
	if n <= 0 {
		return domain.InvalidField("maxTokens", "must be positive")
	}
	return nil
}
