package domain

import "time"

// Defaults applied to custom agents created without sampling parameters.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1000
)

// Category groups custom agents for display.
type Category string

const (
	CategoryAnalysis     Category = "analysis"
	CategoryValidation   Category = "validation"
	CategoryGeneration   Category = "generation"
	CategoryOptimization Category = "optimization"
)

// Categories lists every accepted category in display order.
var Categories = []Category{
	CategoryAnalysis,
	CategoryValidation,
	CategoryGeneration,
	CategoryOptimization,
}

var categoryColors = map[Category]string{
	CategoryAnalysis:     "bg-purple-500",
	CategoryValidation:   "bg-blue-500",
	CategoryGeneration:   "bg-orange-500",
	CategoryOptimization: "bg-yellow-500",
}

// Valid reports whether c is one of Categories.
func (c Category) Valid() bool {
	_, ok := categoryColors[c]
	return ok
}

// Color returns the default display token for the category.
func (c Category) Color() string {
	return categoryColors[c]
}

// CustomAgent is a user-defined configuration for invoking the completion API.
type CustomAgent struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Icon         string    `json:"icon"`
	Category     Category  `json:"category"`
	Color        string    `json:"color"`
	SystemPrompt string    `json:"systemPrompt"`
	Model        string    `json:"model"`
	Temperature  float64   `json:"temperature"`
	MaxTokens    int       `json:"maxTokens"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Snapshot copies the display fields of the agent.
func (a CustomAgent) Snapshot() AgentSnapshot {
	return AgentSnapshot{
		ID:          a.ID,
		Name:        a.Name,
		Description: a.Description,
		Icon:        a.Icon,
		Color:       a.Color,
	}
}

// AgentKind tags which executor an AgentRef dispatches to.
type AgentKind string

const (
	AgentKindBuiltIn AgentKind = "builtin"
	AgentKindCustom  AgentKind = "custom"
)

// AgentSnapshot is the by-value copy of an agent's display fields kept on
// workflow steps, so later edits to the agent do not rewrite history.
type AgentSnapshot struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
}

// AgentRef is an agent resolved at selection time. For AgentKindBuiltIn, ID
// is the built-in table key; for AgentKindCustom it is the store id.
type AgentRef struct {
	Kind     AgentKind     `json:"kind"`
	ID       string        `json:"id"`
	Snapshot AgentSnapshot `json:"agent"`
}

// BuiltInRef builds a reference to a built-in agent.
func BuiltInRef(s AgentSnapshot) AgentRef {
	return AgentRef{Kind: AgentKindBuiltIn, ID: s.ID, Snapshot: s}
}

// CustomRef builds a reference to a stored custom agent.
func CustomRef(a CustomAgent) AgentRef {
	return AgentRef{Kind: AgentKindCustom, ID: a.ID, Snapshot: a.Snapshot()}
}
