package domain

import "time"

// StepStatus is the lifecycle state of a workflow step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepError     StepStatus = "error"
)

// Terminal reports whether no further transitions are allowed.
func (s StepStatus) Terminal() bool {
	return s == StepCompleted || s == StepError
}

// CanAdvanceTo reports whether next is a legal forward transition from s.
func (s StepStatus) CanAdvanceTo(next StepStatus) bool {
	switch s {
	case StepPending:
		return next == StepRunning
	case StepRunning:
		return next == StepCompleted || next == StepError
	}
	return false
}

// WorkflowStep is one execution of an agent within a session.
type WorkflowStep struct {
	ID         string        `json:"id"`
	Agent      AgentSnapshot `json:"agent"`
	AgentKind  AgentKind     `json:"agentKind"`
	Input      string        `json:"input"`
	Output     string        `json:"output,omitempty"`
	Status     StepStatus    `json:"status"`
	Logs       []string      `json:"logs"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt *time.Time    `json:"finishedAt,omitempty"`
}

// Clone returns a deep copy safe to hand outside a lock.
func (s WorkflowStep) Clone() WorkflowStep {
	c := s
	c.Logs = append([]string(nil), s.Logs...)
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		c.FinishedAt = &t
	}
	return c
}
