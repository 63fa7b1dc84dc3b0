package workflow

// ValidTransitions computes the ordered set of states an operator may legally
// move the observation into. The set is a function of the full derivation
// inputs, not of the state tag alone: Defined offers Ready only once the
// configuration request is approved, and a calibration Ready is terminal
// while an operator-declared Ready can still be parked or executed.
func ValidTransitions(snap Snapshot, state State) []State {
	switch state {
	case StateCompleted:
		return nil
	case StateOngoing:
		return []State{StateInactive, StateCompleted}
	case StateInactive:
		return []State{StateOngoing}
	case StateReady:
		if snap.Calibration {
			return nil
		}
		return []State{StateInactive, StateOngoing}
	case StateDefined:
		if snap.ConfigRequest == ConfigApproved {
			return []State{StateInactive, StateReady}
		}
		return []State{StateInactive}
	case StateUndefined, StateUnapproved:
		return []State{StateInactive}
	}
	return nil
}

// TransitionAllowed reports whether target is in the legal transition set.
func TransitionAllowed(snap Snapshot, state State, target State) bool {
	for _, s := range ValidTransitions(snap, state) {
		if s == target {
			return true
		}
	}
	return false
}
