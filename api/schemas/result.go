package schemas

import (
	"fmt"
	"time"
)

// FailureKind classifies why a run terminated without completing its
// goal. An empty kind means the run succeeded.
type FailureKind string

const (
	FailureNone         FailureKind = ""
	FailureGoalNotMet   FailureKind = "goal_not_achieved"
	FailureMaxSteps     FailureKind = "max_steps_exceeded"
	FailureLoopDetected FailureKind = "loop_detected"
	FailureBlocked      FailureKind = "blocked_condition"
	FailureDecision     FailureKind = "decision_error"
	FailureCritical     FailureKind = "critical_failure"
	FailureCancelled    FailureKind = "cancelled"
)

// AgentError is a terminal run error carrying its failure classification.
type AgentError struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (e *AgentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AgentError) Unwrap() error { return e.Err }

// NewAgentError builds a terminal error for the given classification.
func NewAgentError(kind FailureKind, msg string, err error) *AgentError {
	return &AgentError{Kind: kind, Message: msg, Err: err}
}

// TaskResult is the single structured result every run produces,
// regardless of how it terminated.
type TaskResult struct {
	RunID       string                 `json:"run_id"`
	TaskID      string                 `json:"task_id"`
	Goal        string                 `json:"goal"`
	Success     bool                   `json:"success"`
	Summary     string                 `json:"summary"`
	StepsTaken  int                    `json:"steps_taken"`
	Duration    time.Duration          `json:"total_duration_ns"`
	FinalURL    string                 `json:"final_url,omitempty"`
	Failure     FailureKind            `json:"failure,omitempty"`
	Error       string                 `json:"error,omitempty"`
	ContextData map[string]interface{} `json:"context_data,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	FinishedAt  time.Time              `json:"finished_at"`
}
