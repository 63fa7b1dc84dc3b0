package core

import (
	"context"
	"testing"

	"obsflow/pkg/workflow"
)

// stubITC marks observations as holding a cached ITC result.
type stubITC map[string]bool

func (s stubITC) Has(_ context.Context, observationID string) (bool, error) {
	return s[observationID], nil
}

// stubGuide reports fixed guide-environment problems per observation.
type stubGuide map[string][]string

func (s stubGuide) Problems(_ context.Context, observationID string) ([]string, error) {
	return s[observationID], nil
}

func floatPtr(v float64) *float64 { return &v }

// fixture is a service over a seeded program with one complete observation.
type fixture struct {
	svc     *Service
	itc     stubITC
	program Program
	target  Target
	obs     Observation
}

// newFixture seeds a program that needs no proposal approval, one complete
// science target, and one observation ready to become Defined. The ITC stub
// starts with a cached result for the observation.
func newFixture(t *testing.T, opts ...ServiceOption) *fixture {
	t.Helper()
	ctx := context.Background()
	itc := stubITC{}
	opts = append([]ServiceOption{WithITCCache(itc)}, opts...)
	svc := NewInMemoryService(NewDefaultRulesEngine(), opts...)

	program, _, err := svc.CreateProgram(ctx, Program{
		Name:           "Survey of Perseus",
		ProposalStatus: workflow.ProposalNotSubmitted,
	})
	if err != nil {
		t.Fatalf("create program: %v", err)
	}

	target, _, err := svc.CreateTarget(ctx, Target{
		ProgramID:      program.ID,
		Name:           "NGC 1275",
		Coordinates:    &workflow.Coordinates{RA: 49.95, Dec: 41.5},
		Brightness:     floatPtr(11.9),
		RadialVelocity: floatPtr(5264),
	})
	if err != nil {
		t.Fatalf("create target: %v", err)
	}

	obs, _, err := svc.CreateObservation(ctx, Observation{
		ProgramID:   program.ID,
		Subtitle:    "epoch 1",
		Mode:        &workflow.ObservingMode{Instrument: workflow.InstrumentGmosNorth, Name: "longslit"},
		AsterismIDs: []string{target.ID},
	})
	if err != nil {
		t.Fatalf("create observation: %v", err)
	}
	itc[obs.ID] = true

	return &fixture{svc: svc, itc: itc, program: program, target: target, obs: obs}
}

// submitAndApprove moves the fixture program through proposal submission and
// configuration-request approval for the fixture observation.
func (f *fixture) submitAndApprove(t *testing.T) ConfigurationRequest {
	t.Helper()
	ctx := context.Background()
	if _, _, err := f.svc.UpdateProgram(ctx, f.program.ID, func(p *Program) error {
		p.ProposalStatus = workflow.ProposalAccepted
		return nil
	}); err != nil {
		t.Fatalf("submit proposal: %v", err)
	}
	req, _, err := f.svc.CreateConfigurationRequest(ctx, f.obs.ID)
	if err != nil {
		t.Fatalf("create configuration request: %v", err)
	}
	req, _, err = f.svc.SetConfigurationRequestStatus(ctx, req.ID, workflow.RequestApproved)
	if err != nil {
		t.Fatalf("approve configuration request: %v", err)
	}
	return req
}

func mustWorkflow(t *testing.T, svc *Service, id string) Workflow {
	t.Helper()
	wf, err := svc.GetWorkflow(context.Background(), id)
	if err != nil {
		t.Fatalf("get workflow for %s: %v", id, err)
	}
	return wf
}
