package core

import (
	"context"
	"fmt"

	"obsflow/pkg/workflow"
)

// NewExecutionMonotonicRule returns the in-transaction rule ensuring recorded
// execution facts never regress: visit and step counts only grow, and a
// completed sequence stays completed. An observation that has started
// execution cannot be un-executed.
func NewExecutionMonotonicRule() workflow.Rule {
	return executionMonotonicRule{}
}

type executionMonotonicRule struct{}

func (executionMonotonicRule) Name() string { return "execution_monotonic" }

func (executionMonotonicRule) Evaluate(_ context.Context, _ workflow.RuleView, changes []Change) (Result, error) {
	res := Result{}
	for _, change := range changes {
		if change.Entity != EntityObservation || change.Action != ActionUpdate {
			continue
		}
		before, okB := change.Before.(Observation)
		after, okA := change.After.(Observation)
		if !okB || !okA {
			continue
		}
		if after.Execution.Visits < before.Execution.Visits ||
			after.Execution.ExecutedSteps < before.Execution.ExecutedSteps {
			res.Violations = append(res.Violations, Violation{
				Rule:     "execution_monotonic",
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("observation %s execution counts cannot decrease", after.ID),
				Entity:   EntityObservation,
				EntityID: after.ID,
			})
		}
		if before.Execution.SequenceCompleted && !after.Execution.SequenceCompleted {
			res.Violations = append(res.Violations, Violation{
				Rule:     "execution_monotonic",
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("observation %s cannot leave the completed state", after.ID),
				Entity:   EntityObservation,
				EntityID: after.ID,
			})
		}
	}
	return res, nil
}
