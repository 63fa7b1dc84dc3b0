package core

import (
	"context"

	"obsflow/pkg/workflow"
)

// ITCCache reports whether a cached integration-time result exists for an
// observation. The engine never computes ITC results itself; presence is a
// collaborator-supplied fact.
type ITCCache interface {
	Has(ctx context.Context, observationID string) (bool, error)
}

// GuideAdvisor supplies guide-environment diagnoses for an observation, e.g.
// an unusable assigned guide star. Implementations wrap the guide-star
// catalog collaborator.
type GuideAdvisor interface {
	Problems(ctx context.Context, observationID string) ([]string, error)
}

// buildSnapshot assembles the immutable engine input for one observation from
// the transactional view plus collaborator facts. It must be called within
// the same View or Transaction that serves the rest of the request so the
// read is consistent.
func buildSnapshot(view TransactionView, obs Observation, hasITC bool, guideProblems []string) workflow.Snapshot {
	snap := workflow.Snapshot{
		ObservationID:      obs.ID,
		ProgramID:          obs.ProgramID,
		Calibration:        obs.Calibration,
		Inactive:           obs.Inactive,
		MarkedReady:        obs.MarkedReady,
		ExecutionStarted:   obs.Execution.Started(),
		ExecutionCompleted: obs.Execution.SequenceCompleted,
		ScienceBand:        obs.ScienceBand,
		ExplicitBase:       obs.ExplicitBase,
		HasITCResult:       hasITC,
		GuideProblems:      guideProblems,
		ConfigRequest:      workflow.ConfigNotRequested,
	}
	if obs.Mode != nil {
		snap.Instrument = obs.Mode.Instrument
	}
	for _, targetID := range obs.AsterismIDs {
		target, ok := view.FindTarget(targetID)
		if !ok {
			continue
		}
		snap.Targets = append(snap.Targets, workflow.TargetFacts{
			ID:                target.ID,
			Name:              target.Name,
			Coordinates:       target.Coordinates,
			MissingProperties: target.MissingProperties(),
		})
	}
	if program, ok := view.FindProgram(obs.ProgramID); ok {
		snap.ApprovalRequired = program.ApprovalRequired()
		snap.AllocatedBands = program.AllocatedBands()
	}
	if request, ok := view.RequestForObservation(obs.ID); ok {
		switch request.Status {
		case workflow.RequestApproved:
			snap.ConfigRequest = workflow.ConfigApproved
		case workflow.RequestDenied:
			snap.ConfigRequest = workflow.ConfigDenied
		default:
			snap.ConfigRequest = workflow.ConfigRequested
		}
	}
	return snap
}

// callConstraint resolves the validation constraint of the program's active
// call, or nil when the program is not linked to an active call.
func callConstraint(view TransactionView, programID string) *workflow.CallConstraint {
	program, ok := view.FindProgram(programID)
	if !ok || program.CallID == nil {
		return nil
	}
	call, ok := view.FindCallForProposals(*program.CallID)
	if !ok {
		return nil
	}
	return call.Constraint()
}
