package workflow

import "testing"

func TestDeriveStatePrecedence(t *testing.T) {
	finding := MissingTargetFinding("o-1")

	cases := []struct {
		name     string
		snap     Snapshot
		findings []Finding
		want     State
	}{
		{
			name: "completed wins over everything",
			snap: Snapshot{ExecutionCompleted: true, ExecutionStarted: true, Inactive: true, Calibration: true},
			want: StateCompleted,
		},
		{
			name: "started beats inactive flag",
			snap: Snapshot{ExecutionStarted: true, Inactive: true},
			want: StateOngoing,
		},
		{
			name: "inactive flag beats calibration",
			snap: Snapshot{Inactive: true, Calibration: true},
			want: StateInactive,
		},
		{
			name: "calibration is ready without validation",
			snap: Snapshot{Calibration: true},
			want: StateReady,
		},
		{
			name:     "findings force undefined",
			snap:     Snapshot{ApprovalRequired: true},
			findings: []Finding{finding},
			want:     StateUndefined,
		},
		{
			name: "valid but unapproved",
			snap: Snapshot{ApprovalRequired: true, ConfigRequest: ConfigRequested},
			want: StateUnapproved,
		},
		{
			name: "denied request stays unapproved",
			snap: Snapshot{ApprovalRequired: true, ConfigRequest: ConfigDenied},
			want: StateUnapproved,
		},
		{
			name: "approved and valid is defined",
			snap: Snapshot{ApprovalRequired: true, ConfigRequest: ConfigApproved},
			want: StateDefined,
		},
		{
			name: "no approval needed is defined",
			snap: Snapshot{},
			want: StateDefined,
		},
		{
			name: "marked ready with approval",
			snap: Snapshot{MarkedReady: true, ApprovalRequired: true, ConfigRequest: ConfigApproved},
			want: StateReady,
		},
		{
			name: "marked ready without approval stays put",
			snap: Snapshot{MarkedReady: true},
			want: StateDefined,
		},
	}
	for _, tc := range cases {
		if got := DeriveState(tc.snap, tc.findings); got != tc.want {
			t.Errorf("%s: DeriveState = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestConfigRequestFinding(t *testing.T) {
	if _, ok := ConfigRequestFinding(Snapshot{}); ok {
		t.Fatalf("no finding expected when approval is not required")
	}
	cases := []struct {
		status ConfigRequestStatus
		want   string
	}{
		{ConfigNotRequested, MsgConfigNotRequested},
		{ConfigRequested, MsgConfigPending},
		{ConfigDenied, MsgConfigDenied},
	}
	for _, tc := range cases {
		finding, ok := ConfigRequestFinding(Snapshot{ApprovalRequired: true, ConfigRequest: tc.status})
		if !ok {
			t.Fatalf("%s: expected a finding", tc.status)
		}
		if finding.Kind != FindingConfiguration || finding.Message != tc.want {
			t.Fatalf("%s: unexpected finding %+v", tc.status, finding)
		}
	}
	if _, ok := ConfigRequestFinding(Snapshot{ApprovalRequired: true, ConfigRequest: ConfigApproved}); ok {
		t.Fatalf("approved request must not produce a finding")
	}
}

func TestComputeWorkflowUnapprovedCarriesSubCase(t *testing.T) {
	snap := readySnapshot()
	snap.ApprovalRequired = true
	snap.ConfigRequest = ConfigRequested

	wf := ComputeWorkflow(snap, nil)
	if wf.State != StateUnapproved {
		t.Fatalf("state = %s, want unapproved", wf.State)
	}
	if len(wf.ValidationErrors) != 1 || wf.ValidationErrors[0].Message != MsgConfigPending {
		t.Fatalf("expected pending sub-case finding, got %v", wf.ValidationErrors)
	}
	if len(wf.ValidTransitions) != 1 || wf.ValidTransitions[0] != StateInactive {
		t.Fatalf("unexpected transitions %v", wf.ValidTransitions)
	}
}

func TestComputeWorkflowIsIdempotent(t *testing.T) {
	snap := readySnapshot()
	snap.ApprovalRequired = true
	snap.ConfigRequest = ConfigApproved

	first := ComputeWorkflow(snap, nil)
	second := ComputeWorkflow(snap, nil)
	if first.State != second.State || len(first.ValidTransitions) != len(second.ValidTransitions) {
		t.Fatalf("repeated computation diverged: %+v vs %+v", first, second)
	}
	if first.State != StateDefined {
		t.Fatalf("state = %s, want defined", first.State)
	}
}
