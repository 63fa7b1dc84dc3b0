package workflow

// DeriveState maps a snapshot and its validation findings to exactly one
// workflow state. Precedence, first match wins:
//
//  1. execution completed           -> Completed (terminal)
//  2. execution started             -> Ongoing
//  3. manual inactive flag          -> Inactive (never overrides 1 or 2)
//  4. calibration                   -> Ready
//  5. any validation finding        -> Undefined
//  6. approval required, not given  -> Unapproved
//  7. marked ready with approval    -> Ready
//  8. otherwise                     -> Defined
func DeriveState(snap Snapshot, findings []Finding) State {
	if snap.ExecutionCompleted {
		return StateCompleted
	}
	if snap.ExecutionStarted {
		return StateOngoing
	}
	if snap.Inactive {
		return StateInactive
	}
	if snap.Calibration {
		return StateReady
	}
	if len(findings) > 0 {
		return StateUndefined
	}
	if snap.ApprovalRequired && snap.ConfigRequest != ConfigApproved {
		return StateUnapproved
	}
	if snap.MarkedReady && snap.ConfigRequest == ConfigApproved {
		return StateReady
	}
	return StateDefined
}

// ConfigRequestFinding reports the configuration-request sub-case behind an
// Unapproved state, or false when the state is not Unapproved.
func ConfigRequestFinding(snap Snapshot) (Finding, bool) {
	if !snap.ApprovalRequired {
		return Finding{}, false
	}
	switch snap.ConfigRequest {
	case ConfigNotRequested:
		return ConfigurationFinding(MsgConfigNotRequested), true
	case ConfigRequested:
		return ConfigurationFinding(MsgConfigPending), true
	case ConfigDenied:
		return ConfigurationFinding(MsgConfigDenied), true
	}
	return Finding{}, false
}

// Workflow is the read-side projection served for one observation: its
// derived state, the states an operator may legally transition it into, and
// the findings explaining why it is not further along.
type Workflow struct {
	State            State     `json:"state"`
	ValidTransitions []State   `json:"valid_transitions"`
	ValidationErrors []Finding `json:"validation_errors"`
}

// ComputeWorkflow runs validation, derives the state, and computes the legal
// transition set in one pass. It is pure and side-effect free: calling it
// twice on the same inputs returns identical results.
func ComputeWorkflow(snap Snapshot, call *CallConstraint) Workflow {
	findings := Validate(snap, call)
	state := DeriveState(snap, findings)
	errs := findings
	if state == StateUnapproved {
		if finding, ok := ConfigRequestFinding(snap); ok {
			errs = append(errs, finding)
		}
	}
	return Workflow{
		State:            state,
		ValidTransitions: ValidTransitions(snap, state),
		ValidationErrors: errs,
	}
}
