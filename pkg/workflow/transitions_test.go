package workflow

import (
	"reflect"
	"testing"
)

func TestValidTransitionsTable(t *testing.T) {
	cases := []struct {
		name  string
		snap  Snapshot
		state State
		want  []State
	}{
		{"completed is terminal", Snapshot{}, StateCompleted, nil},
		{"ongoing", Snapshot{}, StateOngoing, []State{StateInactive, StateCompleted}},
		{"inactive resumes", Snapshot{}, StateInactive, []State{StateOngoing}},
		{"calibration ready is terminal", Snapshot{Calibration: true}, StateReady, nil},
		{"operator ready", Snapshot{}, StateReady, []State{StateInactive, StateOngoing}},
		{"defined approved gains ready", Snapshot{ConfigRequest: ConfigApproved}, StateDefined, []State{StateInactive, StateReady}},
		{"defined unapproved", Snapshot{ConfigRequest: ConfigRequested}, StateDefined, []State{StateInactive}},
		{"undefined", Snapshot{}, StateUndefined, []State{StateInactive}},
		{"unapproved", Snapshot{}, StateUnapproved, []State{StateInactive}},
	}
	for _, tc := range cases {
		got := ValidTransitions(tc.snap, tc.state)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("%s: ValidTransitions = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestTransitionAllowed(t *testing.T) {
	snap := Snapshot{ConfigRequest: ConfigApproved}
	if !TransitionAllowed(snap, StateDefined, StateReady) {
		t.Fatalf("approved defined observation must allow ready")
	}
	if TransitionAllowed(Snapshot{}, StateDefined, StateReady) {
		t.Fatalf("unapproved defined observation must not allow ready")
	}
	if TransitionAllowed(snap, StateCompleted, StateOngoing) {
		t.Fatalf("completed is terminal")
	}
}
