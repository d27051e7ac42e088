package agent

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/soyeahso/storyforge/internal/domain"
)

// builtIn is a local agent that renders a fixed template over its input
// without calling the completion API.
type builtIn struct {
	domain.AgentSnapshot
	render func(points []string) string
}

var builtIns = []builtIn{
	{
		AgentSnapshot: domain.AgentSnapshot{
			ID: "agent-1", Name: "Requirements Analysis", Icon: "🔍", Color: "bg-blue-500",
			Description: "Parses raw requirements and extracts key business elements",
		},
		render: func(points []string) string {
			var b strings.Builder
			b.WriteString("## Structured Requirements\n\n### Core needs\n")
			writeList(&b, points, "- %s\n")
			b.WriteString("\n### Business elements\n- Actors: end users and administrators\n- Constraints: to be confirmed with stakeholders\n")
			return b.String()
		},
	},
	{
		AgentSnapshot: domain.AgentSnapshot{
			ID: "agent-2", Name: "User Persona", Icon: "👤", Color: "bg-green-500",
			Description: "Derives user roles and usage scenarios from requirements",
		},
		render: func(points []string) string {
			var b strings.Builder
			b.WriteString("## User Personas\n\n### Primary persona\n- Role: everyday user of the product\n- Goal: ")
			b.WriteString(first(points))
			b.WriteString("\n\n### Usage scenarios\n")
			writeList(&b, points, "- Scenario: %s\n")
			return b.String()
		},
	},
	{
		AgentSnapshot: domain.AgentSnapshot{
			ID: "agent-3", Name: "User Story", Icon: "📝", Color: "bg-purple-500",
			Description: "Writes user stories in the standard format",
		},
		render: func(points []string) string {
			var b strings.Builder
			b.WriteString("## User Stories\n\n")
			for i, p := range points {
				fmt.Fprintf(&b, "%d. As a user, I want to %s, so that my goal is met.\n", i+1, lowerFirst(p))
			}
			return b.String()
		},
	},
	{
		AgentSnapshot: domain.AgentSnapshot{
			ID: "agent-4", Name: "Acceptance Criteria", Icon: "✅", Color: "bg-orange-500",
			Description: "Adds acceptance criteria and test scenarios to user stories",
		},
		render: func(points []string) string {
			var b strings.Builder
			b.WriteString("## Acceptance Criteria\n\n")
			for i, p := range points {
				fmt.Fprintf(&b, "### Story %d\n- Given the feature is available\n- When the user acts on: %s\n- Then the outcome is visible and persisted\n\n", i+1, p)
			}
			return strings.TrimRight(b.String(), "\n") + "\n"
		},
	},
	{
		AgentSnapshot: domain.AgentSnapshot{
			ID: "agent-5", Name: "Priority Assessment", Icon: "⭐", Color: "bg-yellow-500",
			Description: "Ranks stories by priority and development complexity",
		},
		render: func(points []string) string {
			var b strings.Builder
			b.WriteString("## Priority Assessment\n\n| # | Item | Priority | Complexity |\n|---|---|---|---|\n")
			for i, p := range points {
				fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", i+1, p, priorityFor(i), complexityFor(p))
			}
			return b.String()
		},
	},
	{
		AgentSnapshot: domain.AgentSnapshot{
			ID: "agent-6", Name: "Quality Check", Icon: "🎯", Color: "bg-red-500",
			Description: "Checks user stories for quality and completeness",
		},
		render: func(points []string) string {
			var b strings.Builder
			fmt.Fprintf(&b, "## Quality Report\n\nItems reviewed: %d\n\n", len(points))
			for _, p := range points {
				status := "OK"
				if len(strings.Fields(p)) < 4 {
					status = "Needs detail"
				}
				fmt.Fprintf(&b, "- [%s] %s\n", status, p)
			}
			return b.String()
		},
	},
}

// BuiltIns returns the built-in agents in display order.
func BuiltIns() []domain.AgentSnapshot {
	out := make([]domain.AgentSnapshot, len(builtIns))
	for i, b := range builtIns {
		out[i] = b.AgentSnapshot
	}
	return out
}

// LookupBuiltIn returns the built-in agent with the given id.
func LookupBuiltIn(id string) (domain.AgentSnapshot, bool) {
	b, ok := findBuiltIn(id)
	return b.AgentSnapshot, ok
}

func findBuiltIn(id string) (builtIn, bool) {
	for _, b := range builtIns {
		if b.ID == id {
			return b, true
		}
	}
	return builtIn{}, false
}

// run waits delay, then renders the template. Output is deterministic for a
// given input.
func (b builtIn) run(ctx context.Context, input string, delay time.Duration) (Result, error) {
	if strings.TrimSpace(input) == "" {
		return Result{}, domain.MissingField("input")
	}
	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-t.C:
		}
	}

	return Result{
		Output: b.render(keyPoints(input, maxKeyPoints)),
		Logs: []string{
			fmt.Sprintf("Starting %s...", b.Name),
			"Analyzing input content...",
			"Applying processing logic...",
			"Generating output results...",
			fmt.Sprintf("%s completed", b.Name),
		},
	}, nil
}

const (
	maxKeyPoints   = 5
	maxPointLength = 160
)

// keyPoints splits input into up to n distinct sentences or lines with
// markdown list and heading markers removed.
func keyPoints(input string, n int) []string {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == '\n' || r == '.' || r == '!' || r == '?' || r == '。' || r == '；' || r == ';'
	})

	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, n)
	for _, f := range fields {
		p := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(f), "#-*>| "))
		p = strings.TrimRightFunc(p, func(r rune) bool { return unicode.IsPunct(r) || unicode.IsSpace(r) })
		if p == "" || seen[strings.ToLower(p)] {
			continue
		}
		seen[strings.ToLower(p)] = true
		out = append(out, clip(p, maxPointLength))
		if len(out) == n {
			break
		}
	}
	if len(out) == 0 {
		out = append(out, clip(strings.TrimSpace(input), maxPointLength))
	}
	return out
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

func writeList(b *strings.Builder, points []string, format string) {
	for _, p := range points {
		fmt.Fprintf(b, format, p)
	}
}

func first(points []string) string {
	if len(points) == 0 {
		return ""
	}
	return points[0]
}

func lowerFirst(s string) string {
	r := []rune(s)
	if len(r) > 1 && unicode.IsUpper(r[0]) && !unicode.IsUpper(r[1]) {
		r[0] = unicode.ToLower(r[0])
	}
	return string(r)
}

func priorityFor(i int) string {
	switch {
	case i == 0:
		return "P0"
	case i < 3:
		return "P1"
	}
	return "P2"
}

func complexityFor(p string) string {
	switch n := len(strings.Fields(p)); {
	case n > 15:
		return "High"
	case n > 6:
		return "Medium"
	}
	return "Low"
}
