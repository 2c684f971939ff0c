package pipeline

import (
	"time"
)

// StepID identifies one pipeline step.
type StepID string

const (
	StepContextual       StepID = "1"
	StepContextualReview StepID = "1b"
	StepNormative        StepID = "2"
	StepNormativeReview  StepID = "2b"
	StepTemporal         StepID = "3"
	StepSynthesis        StepID = "4"
	StepAlignment        StepID = "5"
)

// AllSteps returns the steps in execution order.
func AllSteps() []StepID {
	return []StepID{
		StepContextual,
		StepContextualReview,
		StepNormative,
		StepNormativeReview,
		StepTemporal,
		StepSynthesis,
		StepAlignment,
	}
}

// Valid reports whether s is a known step.
func (s StepID) Valid() bool {
	for _, step := range AllSteps() {
		if step == s {
			return true
		}
	}
	return false
}

// Prev returns the immediate predecessor, or "" for the first step.
func (s StepID) Prev() StepID {
	steps := AllSteps()
	for i, step := range steps {
		if step == s {
			if i == 0 {
				return ""
			}
			return steps[i-1]
		}
	}
	return ""
}

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunQueued     RunStatus = "queued"
	RunRunning    RunStatus = "running"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
	RunCancelled  RunStatus = "cancelled"
	RunSuperseded RunStatus = "superseded"
)

// runTransitions is the closed transition table. A run reaches a terminal
// state exactly once; the only relabeling of a terminal run is
// completed -> superseded, applied when a step is re-run after
// clear-and-rerun so prerequisite checks see the newest run.
var runTransitions = map[RunStatus][]RunStatus{
	RunQueued:     {RunRunning, RunCancelled, RunFailed},
	RunRunning:    {RunCompleted, RunFailed, RunCancelled},
	RunCompleted:  {RunSuperseded},
	RunFailed:     {},
	RunCancelled:  {},
	RunSuperseded: {},
}

// Valid reports whether s is a known run status.
func (s RunStatus) Valid() bool {
	_, ok := runTransitions[s]
	return ok
}

// Terminal reports whether s is a terminal status.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunCancelled, RunSuperseded:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is legal.
func (s RunStatus) CanTransition(next RunStatus) bool {
	for _, allowed := range runTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PipelineRun records one execution of a step for a case.
type PipelineRun struct {
	ID           string     `json:"id"`
	CaseID       string     `json:"case_id"`
	Step         StepID     `json:"step"`
	Status       RunStatus  `json:"status"`
	EntityCount  int        `json:"entity_count"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}
