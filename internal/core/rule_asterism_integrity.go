package core

import (
	"context"
	"fmt"

	"obsflow/pkg/workflow"
)

// NewAsterismIntegrityRule returns the in-transaction rule enforcing asterism
// membership constraints: every member exists, belongs to the observation's
// program, and is a science target. Blind-offset targets never appear in an
// asterism.
func NewAsterismIntegrityRule() workflow.Rule {
	return asterismIntegrityRule{}
}

type asterismIntegrityRule struct{}

func (asterismIntegrityRule) Name() string { return "asterism_integrity" }

func (asterismIntegrityRule) Evaluate(_ context.Context, view workflow.RuleView, _ []Change) (Result, error) {
	res := Result{}
	for _, obs := range view.ListObservations() {
		for _, targetID := range obs.AsterismIDs {
			target, ok := view.FindTarget(targetID)
			if !ok {
				res.Violations = append(res.Violations, Violation{
					Rule:     "asterism_integrity",
					Severity: SeverityBlock,
					Message:  fmt.Sprintf("observation %s references missing target %s", obs.ID, targetID),
					Entity:   EntityObservation,
					EntityID: obs.ID,
				})
				continue
			}
			if target.ProgramID != obs.ProgramID {
				res.Violations = append(res.Violations, Violation{
					Rule:     "asterism_integrity",
					Severity: SeverityBlock,
					Message:  fmt.Sprintf("observation %s references target %s from another program", obs.ID, targetID),
					Entity:   EntityObservation,
					EntityID: obs.ID,
				})
			}
			if target.BlindOffset {
				res.Violations = append(res.Violations, Violation{
					Rule:     "asterism_integrity",
					Severity: SeverityBlock,
					Message:  fmt.Sprintf("observation %s includes blind-offset target %s in its asterism", obs.ID, targetID),
					Entity:   EntityObservation,
					EntityID: obs.ID,
				})
			}
		}
	}
	return res, nil
}
