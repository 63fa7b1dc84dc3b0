package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"obsflow/pkg/workflow"
)

// Store is the transactional storage surface the service runs on. The memory
// store implements it directly; the durable stores wrap it with snapshotting.
type Store interface {
	RunInTransaction(ctx context.Context, fn func(tx *Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
}

// Service exposes the transactional operations of the observation workflow
// engine: snapshot reads, workflow computation, and gated mutations.
type Service struct {
	store   Store
	logger  Logger
	metrics MetricsRecorder
	itc     ITCCache
	guide   GuideAdvisor
}

// NewService constructs a service backed by the supplied store.
func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		logger: nopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service and in-memory store with the given rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	return NewService(NewMemoryStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() Store {
	return s.store
}

// errGateRejected aborts a per-observation transaction after the eligibility
// gate declined the mutation. It never escapes the service.
var errGateRejected = errors.New("rejected by eligibility gate")

// workflowFor computes the workflow projection for one observation using the
// supplied consistent view plus collaborator facts.
func (s *Service) workflowFor(ctx context.Context, view TransactionView, obs Observation) (Workflow, error) {
	hasITC := false
	if s.itc != nil {
		var err error
		hasITC, err = s.itc.Has(ctx, obs.ID)
		if err != nil {
			return Workflow{}, err
		}
	}
	var guideProblems []string
	if s.guide != nil {
		var err error
		guideProblems, err = s.guide.Problems(ctx, obs.ID)
		if err != nil {
			return Workflow{}, err
		}
	}
	snap := buildSnapshot(view, obs, hasITC, guideProblems)
	return workflow.ComputeWorkflow(snap, callConstraint(view, obs.ProgramID)), nil
}

// GetWorkflow returns the derived state, legal transitions, and validation
// findings for one observation. It is read-only and idempotent: without an
// intervening write two calls return identical results.
func (s *Service) GetWorkflow(ctx context.Context, observationID string) (Workflow, error) {
	start := time.Now()
	var wf Workflow
	err := s.store.View(ctx, func(view TransactionView) error {
		obs, ok := view.FindObservation(observationID)
		if !ok {
			return ErrNotFound{Entity: EntityObservation, ID: observationID}
		}
		var err error
		wf, err = s.workflowFor(ctx, view, obs)
		return err
	})
	s.observe(ctx, "get_workflow", start, err)
	return wf, err
}

// EditCheck partitions a batch edit request into permitted observation ids
// and per-observation rejections.
type EditCheck struct {
	Allowed    []string    `json:"allowed"`
	Rejections []Rejection `json:"rejections"`
}

// CheckEditable evaluates the eligibility gate for a batch of observations
// without mutating anything. Mutation resolvers call it (and the service
// re-checks inside each write transaction) before applying changes.
func (s *Service) CheckEditable(ctx context.Context, observationIDs []string, actor Actor, op OperationKind) (EditCheck, error) {
	start := time.Now()
	var check EditCheck
	err := s.store.View(ctx, func(view TransactionView) error {
		batch := make([]workflow.ObservationStatus, 0, len(observationIDs))
		for _, id := range observationIDs {
			obs, ok := view.FindObservation(id)
			if !ok {
				return ErrNotFound{Entity: EntityObservation, ID: id}
			}
			wf, err := s.workflowFor(ctx, view, obs)
			if err != nil {
				return err
			}
			batch = append(batch, workflow.ObservationStatus{
				ID:               id,
				State:            wf.State,
				ValidTransitions: wf.ValidTransitions,
			})
		}
		check.Allowed, check.Rejections = workflow.FilterEditable(batch, actor, op)
		return nil
	})
	s.observe(ctx, "check_editable", start, err)
	return check, err
}

// ObservationUpdate is a partial SET applied to a batch of observations.
// Only non-nil fields are written; the gate judges the strictest operation
// kind among the touched fields.
type ObservationUpdate struct {
	Subtitle        *string
	PositionAngle   *float64
	GuideTargetName *string
	ScienceBand     *workflow.ScienceBand
	GroupIndex      *int
	Duration        *time.Duration
	ObservationTime *time.Time
}

// operations lists the gate kinds touched by the update.
func (u ObservationUpdate) operations() []OperationKind {
	var ops []OperationKind
	if u.Subtitle != nil {
		ops = append(ops, workflow.OpSubtitle)
	}
	if u.PositionAngle != nil {
		ops = append(ops, workflow.OpPositionAngle)
	}
	if u.GuideTargetName != nil {
		ops = append(ops, workflow.OpGuideTarget)
	}
	if u.ScienceBand != nil {
		ops = append(ops, workflow.OpScienceBand)
	}
	if u.GroupIndex != nil {
		ops = append(ops, workflow.OpGroupIndex)
	}
	if u.Duration != nil {
		ops = append(ops, workflow.OpObservationDuration)
	}
	if u.ObservationTime != nil {
		ops = append(ops, workflow.OpObservationTime)
	}
	return ops
}

func (u ObservationUpdate) apply(o *Observation) {
	if u.Subtitle != nil {
		o.Subtitle = *u.Subtitle
	}
	if u.PositionAngle != nil {
		angle := *u.PositionAngle
		o.PositionAngle = &angle
	}
	if u.GuideTargetName != nil {
		name := *u.GuideTargetName
		o.GuideTargetName = &name
	}
	if u.ScienceBand != nil {
		band := *u.ScienceBand
		o.ScienceBand = &band
	}
	if u.GroupIndex != nil {
		o.GroupIndex = *u.GroupIndex
	}
	if u.Duration != nil {
		d := *u.Duration
		o.Duration = &d
	}
	if u.ObservationTime != nil {
		t := *u.ObservationTime
		o.ObservationTime = &t
	}
}

// BatchResult reports a partial-success batch mutation: the observations that
// were written and a rejection per observation that was not. Rejections carry
// both eligibility refusals and per-observation fatal errors; the two never
// cancel the rest of the batch.
type BatchResult struct {
	Updated    []Observation `json:"updated"`
	Rejections []Rejection   `json:"rejections"`
}

// UpdateObservations applies a partial update to each observation in the
// batch. Every observation is processed in its own transaction: the gate is
// re-checked against the state inside that transaction and the check-then-
// write pair is atomic, so an execution event cannot flip the state between
// check and write. Observations fail independently; the batch never rolls
// back as a whole.
func (s *Service) UpdateObservations(ctx context.Context, observationIDs []string, actor Actor, update ObservationUpdate) (BatchResult, error) {
	start := time.Now()
	ops := update.operations()
	var result BatchResult
	for _, id := range observationIDs {
		var updated Observation
		var rejection *Rejection
		_, err := s.store.RunInTransaction(ctx, func(tx *Transaction) error {
			view := tx.Snapshot()
			obs, ok := view.FindObservation(id)
			if !ok {
				return ErrNotFound{Entity: EntityObservation, ID: id}
			}
			wf, err := s.workflowFor(ctx, view, obs)
			if err != nil {
				return err
			}
			for _, op := range ops {
				if !workflow.OperationPermitted(wf.State, actor, op) {
					rejection = &Rejection{
						ID:      id,
						Message: workflow.IneligibleMessage(id, wf.State, wf.ValidTransitions),
					}
					return errGateRejected
				}
			}
			updated, err = tx.UpdateObservation(id, func(o *Observation) error {
				update.apply(o)
				return nil
			})
			return err
		})
		switch {
		case err == nil:
			result.Updated = append(result.Updated, updated)
		case errors.Is(err, errGateRejected):
			result.Rejections = append(result.Rejections, *rejection)
		default:
			result.Rejections = append(result.Rejections, Rejection{ID: id, Message: err.Error()})
		}
	}
	s.observe(ctx, "update_observations", start, nil)
	return result, nil
}

// AsterismEdit adds and removes targets from observation asterisms.
type AsterismEdit struct {
	Add    []string
	Remove []string
}

// UpdateAsterisms edits the asterism membership of each observation in the
// batch. Blind-offset protection is enforced unconditionally before any
// write: naming a blind-offset target anywhere in the edit fails the whole
// request. Eligible observations are then edited independently.
func (s *Service) UpdateAsterisms(ctx context.Context, observationIDs []string, actor Actor, edit AsterismEdit) (BatchResult, error) {
	start := time.Now()

	err := s.store.View(ctx, func(view TransactionView) error {
		check := func(ids []string, adding bool) error {
			for _, targetID := range ids {
				target, ok := view.FindTarget(targetID)
				if !ok {
					return ErrNotFound{Entity: EntityTarget, ID: targetID}
				}
				if target.BlindOffset {
					return ErrBlindOffset{TargetID: targetID, Adding: adding}
				}
			}
			return nil
		}
		if err := check(edit.Add, true); err != nil {
			return err
		}
		return check(edit.Remove, false)
	})
	if err != nil {
		s.observe(ctx, "update_asterisms", start, err)
		return BatchResult{}, err
	}

	var result BatchResult
	for _, id := range observationIDs {
		var updated Observation
		var rejection *Rejection
		_, err := s.store.RunInTransaction(ctx, func(tx *Transaction) error {
			view := tx.Snapshot()
			obs, ok := view.FindObservation(id)
			if !ok {
				return ErrNotFound{Entity: EntityObservation, ID: id}
			}
			wf, err := s.workflowFor(ctx, view, obs)
			if err != nil {
				return err
			}
			if !workflow.OperationPermitted(wf.State, actor, workflow.OpAsterism) {
				rejection = &Rejection{
					ID:      id,
					Message: workflow.IneligibleMessage(id, wf.State, wf.ValidTransitions),
				}
				return errGateRejected
			}
			updated, err = tx.UpdateObservation(id, func(o *Observation) error {
				o.AsterismIDs = applyAsterismEdit(o.AsterismIDs, edit)
				return nil
			})
			return err
		})
		switch {
		case err == nil:
			result.Updated = append(result.Updated, updated)
		case errors.Is(err, errGateRejected):
			result.Rejections = append(result.Rejections, *rejection)
		default:
			result.Rejections = append(result.Rejections, Rejection{ID: id, Message: err.Error()})
		}
	}
	s.observe(ctx, "update_asterisms", start, nil)
	return result, nil
}

func applyAsterismEdit(current []string, edit AsterismEdit) []string {
	removed := make(map[string]bool, len(edit.Remove))
	for _, id := range edit.Remove {
		removed[id] = true
	}
	out := make([]string, 0, len(current)+len(edit.Add))
	seen := make(map[string]bool, len(current))
	for _, id := range current {
		if removed[id] {
			continue
		}
		out = append(out, id)
		seen[id] = true
	}
	for _, id := range edit.Add {
		if !seen[id] && !removed[id] {
			out = append(out, id)
			seen[id] = true
		}
	}
	return out
}

// TargetBatchResult reports a partial-success batch target mutation.
type TargetBatchResult struct {
	Updated    []Target    `json:"updated"`
	Rejections []Rejection `json:"rejections"`
}

// UpdateTargets applies the mutator to each target in the batch. A target is
// rejected when any observation holding it in its asterism is in a
// non-editable state; the rejection references the target, not the
// observation. The staff bypass does not apply to target edits.
func (s *Service) UpdateTargets(ctx context.Context, targetIDs []string, actor Actor, mutator func(*Target) error) (TargetBatchResult, error) {
	start := time.Now()
	var result TargetBatchResult
	for _, id := range targetIDs {
		var updated Target
		var rejection *Rejection
		_, err := s.store.RunInTransaction(ctx, func(tx *Transaction) error {
			view := tx.Snapshot()
			if _, ok := view.FindTarget(id); !ok {
				return ErrNotFound{Entity: EntityTarget, ID: id}
			}
			for _, obs := range view.ObservationsWithTarget(id) {
				wf, err := s.workflowFor(ctx, view, obs)
				if err != nil {
					return err
				}
				if !workflow.OperationPermitted(wf.State, actor, workflow.OpTargetEdit) {
					rejection = &Rejection{ID: id, Message: workflow.TargetIneligibleMessage(id)}
					return errGateRejected
				}
			}
			var err error
			updated, err = tx.UpdateTarget(id, mutator)
			return err
		})
		switch {
		case err == nil:
			result.Updated = append(result.Updated, updated)
		case errors.Is(err, errGateRejected):
			result.Rejections = append(result.Rejections, *rejection)
		default:
			result.Rejections = append(result.Rejections, Rejection{ID: id, Message: err.Error()})
		}
	}
	s.observe(ctx, "update_targets", start, nil)
	return result, nil
}

// DeleteTarget removes a target. A target still referenced by any asterism
// cannot be deleted; callers remove it from the asterisms first.
func (s *Service) DeleteTarget(ctx context.Context, targetID string) error {
	start := time.Now()
	_, err := s.store.RunInTransaction(ctx, func(tx *Transaction) error {
		view := tx.Snapshot()
		if _, ok := view.FindTarget(targetID); !ok {
			return ErrNotFound{Entity: EntityTarget, ID: targetID}
		}
		if hosts := view.ObservationsWithTarget(targetID); len(hosts) > 0 {
			return fmt.Errorf("target %s is still a member of %d asterism(s)", targetID, len(hosts))
		}
		return tx.DeleteTarget(targetID)
	})
	s.observe(ctx, "delete_target", start, err)
	return err
}

// SetGuideTarget assigns the named guide star to one observation. Elevated
// actors bypass the workflow-state gate for this operation.
func (s *Service) SetGuideTarget(ctx context.Context, observationID, name string, actor Actor) (Observation, []Rejection, error) {
	result, err := s.UpdateObservations(ctx, []string{observationID}, actor, ObservationUpdate{GuideTargetName: &name})
	if err != nil {
		return Observation{}, nil, err
	}
	if len(result.Updated) == 1 {
		return result.Updated[0], nil, nil
	}
	return Observation{}, result.Rejections, nil
}

// SetPositionAngle sets the position angle of one observation. Elevated
// actors bypass the workflow-state gate for this operation.
func (s *Service) SetPositionAngle(ctx context.Context, observationID string, angle float64, actor Actor) (Observation, []Rejection, error) {
	result, err := s.UpdateObservations(ctx, []string{observationID}, actor, ObservationUpdate{PositionAngle: &angle})
	if err != nil {
		return Observation{}, nil, err
	}
	if len(result.Updated) == 1 {
		return result.Updated[0], nil, nil
	}
	return Observation{}, result.Rejections, nil
}

// SetWorkflowState moves the observation into the requested state. The move
// is legal only when the target is in the recomputed transition set; the
// derivation inputs (inactive flag, ready flag, execution facts) are updated
// so the next read derives the requested state.
func (s *Service) SetWorkflowState(ctx context.Context, observationID string, target State, actor Actor) (Workflow, error) {
	start := time.Now()
	var wf Workflow
	_, err := s.store.RunInTransaction(ctx, func(tx *Transaction) error {
		view := tx.Snapshot()
		obs, ok := view.FindObservation(observationID)
		if !ok {
			return ErrNotFound{Entity: EntityObservation, ID: observationID}
		}
		current, err := s.workflowFor(ctx, view, obs)
		if err != nil {
			return err
		}
		allowed := false
		for _, t := range current.ValidTransitions {
			if t == target {
				allowed = true
				break
			}
		}
		if !allowed {
			return ErrIllegalTransition{ObservationID: observationID, From: current.State, To: target}
		}
		if _, err := tx.UpdateObservation(observationID, func(o *Observation) error {
			switch target {
			case workflow.StateInactive:
				o.Inactive = true
			case workflow.StateOngoing:
				o.Inactive = false
			case workflow.StateReady:
				o.MarkedReady = true
			case workflow.StateCompleted:
				o.Execution.SequenceCompleted = true
			}
			return nil
		}); err != nil {
			return err
		}
		after, _ := tx.Snapshot().FindObservation(observationID)
		wf, err = s.workflowFor(ctx, tx.Snapshot(), after)
		return err
	})
	s.observe(ctx, "set_workflow_state", start, err)
	return wf, err
}

// RecordVisit records an execution visit for the observation.
func (s *Service) RecordVisit(ctx context.Context, observationID string) (Observation, Result, error) {
	var updated Observation
	res, err := s.store.RunInTransaction(ctx, func(tx *Transaction) error {
		var err error
		updated, err = tx.UpdateObservation(observationID, func(o *Observation) error {
			o.Execution.Visits++
			return nil
		})
		return err
	})
	return updated, res, err
}

// RecordStep records one executed step. The first recorded step moves the
// derived state to Ongoing on the next read.
func (s *Service) RecordStep(ctx context.Context, observationID string) (Observation, Result, error) {
	var updated Observation
	res, err := s.store.RunInTransaction(ctx, func(tx *Transaction) error {
		var err error
		updated, err = tx.UpdateObservation(observationID, func(o *Observation) error {
			o.Execution.ExecutedSteps++
			return nil
		})
		return err
	})
	return updated, res, err
}

// MarkSequenceComplete records the terminal execution fact.
func (s *Service) MarkSequenceComplete(ctx context.Context, observationID string) (Observation, Result, error) {
	var updated Observation
	res, err := s.store.RunInTransaction(ctx, func(tx *Transaction) error {
		var err error
		updated, err = tx.UpdateObservation(observationID, func(o *Observation) error {
			o.Execution.SequenceCompleted = true
			return nil
		})
		return err
	})
	return updated, res, err
}

// DeleteObservation removes an observation after checking the gate.
func (s *Service) DeleteObservation(ctx context.Context, observationID string, actor Actor) error {
	start := time.Now()
	var rejection *Rejection
	_, err := s.store.RunInTransaction(ctx, func(tx *Transaction) error {
		view := tx.Snapshot()
		obs, ok := view.FindObservation(observationID)
		if !ok {
			return ErrNotFound{Entity: EntityObservation, ID: observationID}
		}
		wf, err := s.workflowFor(ctx, view, obs)
		if err != nil {
			return err
		}
		if !workflow.OperationPermitted(wf.State, actor, workflow.OpDelete) {
			rejection = &Rejection{
				ID:      observationID,
				Message: workflow.IneligibleMessage(observationID, wf.State, wf.ValidTransitions),
			}
			return errGateRejected
		}
		return tx.DeleteObservation(observationID)
	})
	if errors.Is(err, errGateRejected) {
		err = errors.New(rejection.Message)
	}
	s.observe(ctx, "delete_observation", start, err)
	return err
}

// CreateProgram persists a new program.
func (s *Service) CreateProgram(ctx context.Context, program Program) (Program, Result, error) {
	var created Program
	res, err := s.store.RunInTransaction(ctx, func(tx *Transaction) error {
		var err error
		created, err = tx.CreateProgram(program)
		return err
	})
	return created, res, err
}

// UpdateProgram mutates a program using the provided mutator.
func (s *Service) UpdateProgram(ctx context.Context, id string, mutator func(*Program) error) (Program, Result, error) {
	var updated Program
	res, err := s.store.RunInTransaction(ctx, func(tx *Transaction) error {
		var err error
		updated, err = tx.UpdateProgram(id, mutator)
		return err
	})
	return updated, res, err
}

// DeleteProgram removes a program once nothing references it. A program that
// still owns observations or targets must be emptied first.
func (s *Service) DeleteProgram(ctx context.Context, id string) error {
	start := time.Now()
	_, err := s.store.RunInTransaction(ctx, func(tx *Transaction) error {
		view := tx.Snapshot()
		if _, ok := view.FindProgram(id); !ok {
			return ErrNotFound{Entity: EntityProgram, ID: id}
		}
		for _, obs := range view.ListObservations() {
			if obs.ProgramID == id {
				return fmt.Errorf("program %s still owns observation %s", id, obs.ID)
			}
		}
		for _, target := range view.ListTargets() {
			if target.ProgramID == id {
				return fmt.Errorf("program %s still owns target %s", id, target.ID)
			}
		}
		return tx.DeleteProgram(id)
	})
	s.observe(ctx, "delete_program", start, err)
	return err
}

// CreateObservation persists a new observation.
func (s *Service) CreateObservation(ctx context.Context, observation Observation) (Observation, Result, error) {
	var created Observation
	res, err := s.store.RunInTransaction(ctx, func(tx *Transaction) error {
		var err error
		created, err = tx.CreateObservation(observation)
		return err
	})
	return created, res, err
}

// CreateTarget persists a new target.
func (s *Service) CreateTarget(ctx context.Context, target Target) (Target, Result, error) {
	var created Target
	res, err := s.store.RunInTransaction(ctx, func(tx *Transaction) error {
		var err error
		created, err = tx.CreateTarget(target)
		return err
	})
	return created, res, err
}

// CreateCallForProposals persists a new call.
func (s *Service) CreateCallForProposals(ctx context.Context, call CallForProposals) (CallForProposals, Result, error) {
	var created CallForProposals
	res, err := s.store.RunInTransaction(ctx, func(tx *Transaction) error {
		var err error
		created, err = tx.CreateCallForProposals(call)
		return err
	})
	return created, res, err
}

// UpdateCallForProposals mutates a call using the provided mutator.
func (s *Service) UpdateCallForProposals(ctx context.Context, id string, mutator func(*CallForProposals) error) (CallForProposals, Result, error) {
	var updated CallForProposals
	res, err := s.store.RunInTransaction(ctx, func(tx *Transaction) error {
		var err error
		updated, err = tx.UpdateCallForProposals(id, mutator)
		return err
	})
	return updated, res, err
}

// DeleteCallForProposals removes a call no program links to.
func (s *Service) DeleteCallForProposals(ctx context.Context, id string) error {
	start := time.Now()
	_, err := s.store.RunInTransaction(ctx, func(tx *Transaction) error {
		view := tx.Snapshot()
		if _, ok := view.FindCallForProposals(id); !ok {
			return ErrNotFound{Entity: EntityCallForProposals, ID: id}
		}
		for _, p := range view.ListPrograms() {
			if p.CallID != nil && *p.CallID == id {
				return fmt.Errorf("call %s is still linked to program %s", id, p.ID)
			}
		}
		return tx.DeleteCallForProposals(id)
	})
	s.observe(ctx, "delete_call", start, err)
	return err
}

// LinkProgramToCall points a program at a call for proposals.
func (s *Service) LinkProgramToCall(ctx context.Context, programID, callID string) (Program, Result, error) {
	var updated Program
	res, err := s.store.RunInTransaction(ctx, func(tx *Transaction) error {
		if _, ok := tx.Snapshot().FindCallForProposals(callID); !ok {
			return ErrNotFound{Entity: EntityCallForProposals, ID: callID}
		}
		var err error
		updated, err = tx.UpdateProgram(programID, func(p *Program) error {
			p.CallID = &callID
			return nil
		})
		return err
	})
	return updated, res, err
}

// CreateConfigurationRequest opens a configuration request for an observation.
func (s *Service) CreateConfigurationRequest(ctx context.Context, observationID string) (ConfigurationRequest, Result, error) {
	var created ConfigurationRequest
	res, err := s.store.RunInTransaction(ctx, func(tx *Transaction) error {
		var err error
		created, err = tx.CreateConfigurationRequest(ConfigurationRequest{
			ObservationID: observationID,
			Status:        workflow.RequestRequested,
		})
		return err
	})
	return created, res, err
}

// SetConfigurationRequestStatus moves a configuration request to the given
// review status.
func (s *Service) SetConfigurationRequestStatus(ctx context.Context, requestID string, status workflow.RequestStatus) (ConfigurationRequest, Result, error) {
	var updated ConfigurationRequest
	res, err := s.store.RunInTransaction(ctx, func(tx *Transaction) error {
		var err error
		updated, err = tx.UpdateConfigurationRequest(requestID, func(r *ConfigurationRequest) error {
			r.Status = status
			return nil
		})
		return err
	})
	return updated, res, err
}

// DeleteConfigurationRequest withdraws a configuration request. The host
// observation falls back to the not-requested approval sub-state.
func (s *Service) DeleteConfigurationRequest(ctx context.Context, requestID string) error {
	start := time.Now()
	_, err := s.store.RunInTransaction(ctx, func(tx *Transaction) error {
		return tx.DeleteConfigurationRequest(requestID)
	})
	s.observe(ctx, "delete_configuration_request", start, err)
	return err
}

// GetObservation fetches one observation.
func (s *Service) GetObservation(ctx context.Context, id string) (Observation, error) {
	var obs Observation
	err := s.store.View(ctx, func(view TransactionView) error {
		found, ok := view.FindObservation(id)
		if !ok {
			return ErrNotFound{Entity: EntityObservation, ID: id}
		}
		obs = found
		return nil
	})
	return obs, err
}
