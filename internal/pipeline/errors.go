package pipeline

import "errors"

var (
	// ErrPrerequisiteNotMet indicates the step's predecessor has not completed.
	ErrPrerequisiteNotMet = errors.New("step prerequisite not met")

	// ErrRunAlreadyActive indicates a non-terminal run exists for the case.
	ErrRunAlreadyActive = errors.New("a run is already active for this case")

	// ErrUnknownStep indicates a step ID outside the step graph.
	ErrUnknownStep = errors.New("unknown pipeline step")

	// ErrRunNotFound indicates no run exists with the given ID.
	ErrRunNotFound = errors.New("pipeline run not found")

	// ErrIllegalTransition indicates a run status change the transition
	// table forbids.
	ErrIllegalTransition = errors.New("illegal run status transition")

	// ErrStepNotRegistered indicates no task function is bound to the step.
	ErrStepNotRegistered = errors.New("no task registered for step")
)
