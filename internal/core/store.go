package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"obsflow/pkg/workflow"
)

type memoryState struct {
	programs     map[string]Program
	observations map[string]Observation
	targets      map[string]Target
	calls        map[string]CallForProposals
	requests     map[string]ConfigurationRequest
}

func newMemoryState() memoryState {
	return memoryState{
		programs:     make(map[string]Program),
		observations: make(map[string]Observation),
		targets:      make(map[string]Target),
		calls:        make(map[string]CallForProposals),
		requests:     make(map[string]ConfigurationRequest),
	}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.programs {
		cloned.programs[k] = cloneProgram(v)
	}
	for k, v := range s.observations {
		cloned.observations[k] = cloneObservation(v)
	}
	for k, v := range s.targets {
		cloned.targets[k] = cloneTarget(v)
	}
	for k, v := range s.calls {
		cloned.calls[k] = cloneCall(v)
	}
	for k, v := range s.requests {
		cloned.requests[k] = cloneRequest(v)
	}
	return cloned
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

func cloneProgram(p Program) Program {
	cp := p
	cp.CallID = clonePtr(p.CallID)
	cp.Allocations = append([]workflow.BandAllocation(nil), p.Allocations...)
	return cp
}

func cloneObservation(o Observation) Observation {
	cp := o
	cp.Mode = clonePtr(o.Mode)
	cp.ScienceBand = clonePtr(o.ScienceBand)
	cp.ExplicitBase = clonePtr(o.ExplicitBase)
	cp.PositionAngle = clonePtr(o.PositionAngle)
	cp.GuideTargetName = clonePtr(o.GuideTargetName)
	cp.GroupID = clonePtr(o.GroupID)
	cp.Duration = clonePtr(o.Duration)
	cp.ObservationTime = clonePtr(o.ObservationTime)
	cp.AsterismIDs = append([]string(nil), o.AsterismIDs...)
	return cp
}

func cloneTarget(t Target) Target {
	cp := t
	cp.Coordinates = clonePtr(t.Coordinates)
	cp.Brightness = clonePtr(t.Brightness)
	cp.RadialVelocity = clonePtr(t.RadialVelocity)
	cp.Parallax = clonePtr(t.Parallax)
	cp.ProperMotion = clonePtr(t.ProperMotion)
	return cp
}

func cloneCall(c CallForProposals) CallForProposals {
	cp := c
	cp.Instruments = append([]workflow.Instrument(nil), c.Instruments...)
	cp.NorthLimits = clonePtr(c.NorthLimits)
	cp.SouthLimits = clonePtr(c.SouthLimits)
	return cp
}

func cloneRequest(r ConfigurationRequest) ConfigurationRequest { return r }

// MemoryStore provides an in-memory transactional store for the core domain.
type MemoryStore struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewMemoryStore constructs an in-memory store backed by the provided rules engine.
func NewMemoryStore(engine *RulesEngine) *MemoryStore {
	if engine == nil {
		engine = workflow.NewRulesEngine()
	}
	return &MemoryStore{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) newID() string {
	return uuid.NewString()
}

// Transaction represents a mutation set applied to the store state.
type Transaction struct {
	store   *MemoryStore
	state   memoryState
	changes []Change
	now     time.Time
}

// TransactionView exposes a read-only snapshot of the transactional state to
// rules and to the snapshot builder.
type TransactionView struct {
	state *memoryState
}

var _ workflow.RuleView = TransactionView{}

func newTransactionView(state *memoryState) TransactionView {
	return TransactionView{state: state}
}

// Snapshot returns the read-only view of the transaction's current state.
func (tx *Transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// ListPrograms returns all programs within the snapshot.
func (v TransactionView) ListPrograms() []Program {
	out := make([]Program, 0, len(v.state.programs))
	for _, p := range v.state.programs {
		out = append(out, cloneProgram(p))
	}
	return out
}

// ListObservations returns all observations within the snapshot.
func (v TransactionView) ListObservations() []Observation {
	out := make([]Observation, 0, len(v.state.observations))
	for _, o := range v.state.observations {
		out = append(out, cloneObservation(o))
	}
	return out
}

// ListTargets returns all targets within the snapshot.
func (v TransactionView) ListTargets() []Target {
	out := make([]Target, 0, len(v.state.targets))
	for _, t := range v.state.targets {
		out = append(out, cloneTarget(t))
	}
	return out
}

// ListCallsForProposals returns all calls within the snapshot.
func (v TransactionView) ListCallsForProposals() []CallForProposals {
	out := make([]CallForProposals, 0, len(v.state.calls))
	for _, c := range v.state.calls {
		out = append(out, cloneCall(c))
	}
	return out
}

// ListConfigurationRequests returns all configuration requests.
func (v TransactionView) ListConfigurationRequests() []ConfigurationRequest {
	out := make([]ConfigurationRequest, 0, len(v.state.requests))
	for _, r := range v.state.requests {
		out = append(out, cloneRequest(r))
	}
	return out
}

// FindProgram retrieves a program by ID from the snapshot.
func (v TransactionView) FindProgram(id string) (Program, bool) {
	p, ok := v.state.programs[id]
	if !ok {
		return Program{}, false
	}
	return cloneProgram(p), true
}

// FindObservation retrieves an observation by ID from the snapshot.
func (v TransactionView) FindObservation(id string) (Observation, bool) {
	o, ok := v.state.observations[id]
	if !ok {
		return Observation{}, false
	}
	return cloneObservation(o), true
}

// FindTarget retrieves a target by ID from the snapshot.
func (v TransactionView) FindTarget(id string) (Target, bool) {
	t, ok := v.state.targets[id]
	if !ok {
		return Target{}, false
	}
	return cloneTarget(t), true
}

// FindCallForProposals retrieves a call by ID from the snapshot.
func (v TransactionView) FindCallForProposals(id string) (CallForProposals, bool) {
	c, ok := v.state.calls[id]
	if !ok {
		return CallForProposals{}, false
	}
	return cloneCall(c), true
}

// FindConfigurationRequest retrieves a configuration request by ID.
func (v TransactionView) FindConfigurationRequest(id string) (ConfigurationRequest, bool) {
	r, ok := v.state.requests[id]
	if !ok {
		return ConfigurationRequest{}, false
	}
	return cloneRequest(r), true
}

// RequestForObservation finds the configuration request linked to an
// observation, if any.
func (v TransactionView) RequestForObservation(obsID string) (ConfigurationRequest, bool) {
	for _, r := range v.state.requests {
		if r.ObservationID == obsID {
			return cloneRequest(r), true
		}
	}
	return ConfigurationRequest{}, false
}

// ObservationsWithTarget lists the observations whose asterism includes the
// given target.
func (v TransactionView) ObservationsWithTarget(targetID string) []Observation {
	var out []Observation
	for _, o := range v.state.observations {
		for _, id := range o.AsterismIDs {
			if id == targetID {
				out = append(out, cloneObservation(o))
				break
			}
		}
	}
	return out
}

// RunInTransaction executes fn within a transactional copy of the store state.
// Rules are evaluated against the resulting state before commit; blocking
// violations abort the whole transaction.
func (s *MemoryStore) RunInTransaction(ctx context.Context, fn func(tx *Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *MemoryStore) View(ctx context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

func (tx *Transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// CreateProgram stores a new program within the transaction.
func (tx *Transaction) CreateProgram(p Program) (Program, error) {
	if p.ID == "" {
		p.ID = tx.store.newID()
	}
	if _, exists := tx.state.programs[p.ID]; exists {
		return Program{}, ErrAlreadyExists{Entity: EntityProgram, ID: p.ID}
	}
	if p.ProposalStatus == "" {
		p.ProposalStatus = workflow.ProposalNotSubmitted
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.programs[p.ID] = cloneProgram(p)
	tx.recordChange(Change{Entity: EntityProgram, Action: ActionCreate, After: cloneProgram(p)})
	return cloneProgram(p), nil
}

// UpdateProgram mutates a program using the provided mutator function.
func (tx *Transaction) UpdateProgram(id string, mutator func(*Program) error) (Program, error) {
	current, ok := tx.state.programs[id]
	if !ok {
		return Program{}, ErrNotFound{Entity: EntityProgram, ID: id}
	}
	before := cloneProgram(current)
	if err := mutator(&current); err != nil {
		return Program{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.programs[id] = cloneProgram(current)
	tx.recordChange(Change{Entity: EntityProgram, Action: ActionUpdate, Before: before, After: cloneProgram(current)})
	return cloneProgram(current), nil
}

// DeleteProgram removes a program from the transaction state. Referential
// checks belong to the service layer.
func (tx *Transaction) DeleteProgram(id string) error {
	current, ok := tx.state.programs[id]
	if !ok {
		return ErrNotFound{Entity: EntityProgram, ID: id}
	}
	delete(tx.state.programs, id)
	tx.recordChange(Change{Entity: EntityProgram, Action: ActionDelete, Before: cloneProgram(current)})
	return nil
}

// CreateObservation stores a new observation within the transaction.
func (tx *Transaction) CreateObservation(o Observation) (Observation, error) {
	if o.ID == "" {
		o.ID = tx.store.newID()
	}
	if _, exists := tx.state.observations[o.ID]; exists {
		return Observation{}, ErrAlreadyExists{Entity: EntityObservation, ID: o.ID}
	}
	if _, ok := tx.state.programs[o.ProgramID]; !ok {
		return Observation{}, ErrNotFound{Entity: EntityProgram, ID: o.ProgramID}
	}
	o.CreatedAt = tx.now
	o.UpdatedAt = tx.now
	tx.state.observations[o.ID] = cloneObservation(o)
	tx.recordChange(Change{Entity: EntityObservation, Action: ActionCreate, After: cloneObservation(o)})
	return cloneObservation(o), nil
}

// UpdateObservation mutates an observation using the provided mutator function.
func (tx *Transaction) UpdateObservation(id string, mutator func(*Observation) error) (Observation, error) {
	current, ok := tx.state.observations[id]
	if !ok {
		return Observation{}, ErrNotFound{Entity: EntityObservation, ID: id}
	}
	before := cloneObservation(current)
	if err := mutator(&current); err != nil {
		return Observation{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.observations[id] = cloneObservation(current)
	tx.recordChange(Change{Entity: EntityObservation, Action: ActionUpdate, Before: before, After: cloneObservation(current)})
	return cloneObservation(current), nil
}

// DeleteObservation removes an observation from the transaction state.
func (tx *Transaction) DeleteObservation(id string) error {
	current, ok := tx.state.observations[id]
	if !ok {
		return ErrNotFound{Entity: EntityObservation, ID: id}
	}
	delete(tx.state.observations, id)
	tx.recordChange(Change{Entity: EntityObservation, Action: ActionDelete, Before: cloneObservation(current)})
	return nil
}

// CreateTarget stores a new target within the transaction.
func (tx *Transaction) CreateTarget(t Target) (Target, error) {
	if t.ID == "" {
		t.ID = tx.store.newID()
	}
	if _, exists := tx.state.targets[t.ID]; exists {
		return Target{}, ErrAlreadyExists{Entity: EntityTarget, ID: t.ID}
	}
	if _, ok := tx.state.programs[t.ProgramID]; !ok {
		return Target{}, ErrNotFound{Entity: EntityProgram, ID: t.ProgramID}
	}
	t.CreatedAt = tx.now
	t.UpdatedAt = tx.now
	tx.state.targets[t.ID] = cloneTarget(t)
	tx.recordChange(Change{Entity: EntityTarget, Action: ActionCreate, After: cloneTarget(t)})
	return cloneTarget(t), nil
}

// UpdateTarget mutates a target using the provided mutator function.
func (tx *Transaction) UpdateTarget(id string, mutator func(*Target) error) (Target, error) {
	current, ok := tx.state.targets[id]
	if !ok {
		return Target{}, ErrNotFound{Entity: EntityTarget, ID: id}
	}
	before := cloneTarget(current)
	if err := mutator(&current); err != nil {
		return Target{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.targets[id] = cloneTarget(current)
	tx.recordChange(Change{Entity: EntityTarget, Action: ActionUpdate, Before: before, After: cloneTarget(current)})
	return cloneTarget(current), nil
}

// DeleteTarget removes a target from the transaction state.
func (tx *Transaction) DeleteTarget(id string) error {
	current, ok := tx.state.targets[id]
	if !ok {
		return ErrNotFound{Entity: EntityTarget, ID: id}
	}
	delete(tx.state.targets, id)
	tx.recordChange(Change{Entity: EntityTarget, Action: ActionDelete, Before: cloneTarget(current)})
	return nil
}

// CreateCallForProposals stores a new call within the transaction.
func (tx *Transaction) CreateCallForProposals(c CallForProposals) (CallForProposals, error) {
	if c.ID == "" {
		c.ID = tx.store.newID()
	}
	if _, exists := tx.state.calls[c.ID]; exists {
		return CallForProposals{}, ErrAlreadyExists{Entity: EntityCallForProposals, ID: c.ID}
	}
	c.CreatedAt = tx.now
	c.UpdatedAt = tx.now
	tx.state.calls[c.ID] = cloneCall(c)
	tx.recordChange(Change{Entity: EntityCallForProposals, Action: ActionCreate, After: cloneCall(c)})
	return cloneCall(c), nil
}

// UpdateCallForProposals mutates a call using the provided mutator function.
func (tx *Transaction) UpdateCallForProposals(id string, mutator func(*CallForProposals) error) (CallForProposals, error) {
	current, ok := tx.state.calls[id]
	if !ok {
		return CallForProposals{}, ErrNotFound{Entity: EntityCallForProposals, ID: id}
	}
	before := cloneCall(current)
	if err := mutator(&current); err != nil {
		return CallForProposals{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.calls[id] = cloneCall(current)
	tx.recordChange(Change{Entity: EntityCallForProposals, Action: ActionUpdate, Before: before, After: cloneCall(current)})
	return cloneCall(current), nil
}

// DeleteCallForProposals removes a call from the transaction state.
func (tx *Transaction) DeleteCallForProposals(id string) error {
	current, ok := tx.state.calls[id]
	if !ok {
		return ErrNotFound{Entity: EntityCallForProposals, ID: id}
	}
	delete(tx.state.calls, id)
	tx.recordChange(Change{Entity: EntityCallForProposals, Action: ActionDelete, Before: cloneCall(current)})
	return nil
}

// CreateConfigurationRequest stores a new configuration request.
func (tx *Transaction) CreateConfigurationRequest(r ConfigurationRequest) (ConfigurationRequest, error) {
	if r.ID == "" {
		r.ID = tx.store.newID()
	}
	if _, exists := tx.state.requests[r.ID]; exists {
		return ConfigurationRequest{}, ErrAlreadyExists{Entity: EntityConfigurationRequest, ID: r.ID}
	}
	if _, ok := tx.state.observations[r.ObservationID]; !ok {
		return ConfigurationRequest{}, ErrNotFound{Entity: EntityObservation, ID: r.ObservationID}
	}
	if r.Status == "" {
		r.Status = workflow.RequestRequested
	}
	r.CreatedAt = tx.now
	r.UpdatedAt = tx.now
	tx.state.requests[r.ID] = cloneRequest(r)
	tx.recordChange(Change{Entity: EntityConfigurationRequest, Action: ActionCreate, After: cloneRequest(r)})
	return cloneRequest(r), nil
}

// UpdateConfigurationRequest mutates a configuration request.
func (tx *Transaction) UpdateConfigurationRequest(id string, mutator func(*ConfigurationRequest) error) (ConfigurationRequest, error) {
	current, ok := tx.state.requests[id]
	if !ok {
		return ConfigurationRequest{}, ErrNotFound{Entity: EntityConfigurationRequest, ID: id}
	}
	before := cloneRequest(current)
	if err := mutator(&current); err != nil {
		return ConfigurationRequest{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.requests[id] = cloneRequest(current)
	tx.recordChange(Change{Entity: EntityConfigurationRequest, Action: ActionUpdate, Before: before, After: cloneRequest(current)})
	return cloneRequest(current), nil
}

// DeleteConfigurationRequest removes a configuration request from the
// transaction state.
func (tx *Transaction) DeleteConfigurationRequest(id string) error {
	current, ok := tx.state.requests[id]
	if !ok {
		return ErrNotFound{Entity: EntityConfigurationRequest, ID: id}
	}
	delete(tx.state.requests, id)
	tx.recordChange(Change{Entity: EntityConfigurationRequest, Action: ActionDelete, Before: cloneRequest(current)})
	return nil
}

// StateSnapshot is the serializable export of the full store state, used by
// the durable snapshot stores.
type StateSnapshot struct {
	Programs     []Program              `json:"programs"`
	Observations []Observation          `json:"observations"`
	Targets      []Target               `json:"targets"`
	Calls        []CallForProposals     `json:"calls"`
	Requests     []ConfigurationRequest `json:"requests"`
}

// ExportState copies the current store contents into a snapshot.
func (s *MemoryStore) ExportState() StateSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var snap StateSnapshot
	for _, p := range s.state.programs {
		snap.Programs = append(snap.Programs, cloneProgram(p))
	}
	for _, o := range s.state.observations {
		snap.Observations = append(snap.Observations, cloneObservation(o))
	}
	for _, t := range s.state.targets {
		snap.Targets = append(snap.Targets, cloneTarget(t))
	}
	for _, c := range s.state.calls {
		snap.Calls = append(snap.Calls, cloneCall(c))
	}
	for _, r := range s.state.requests {
		snap.Requests = append(snap.Requests, cloneRequest(r))
	}
	return snap
}

// ImportState replaces the store contents with the snapshot.
func (s *MemoryStore) ImportState(snap StateSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := newMemoryState()
	for _, p := range snap.Programs {
		state.programs[p.ID] = cloneProgram(p)
	}
	for _, o := range snap.Observations {
		state.observations[o.ID] = cloneObservation(o)
	}
	for _, t := range snap.Targets {
		state.targets[t.ID] = cloneTarget(t)
	}
	for _, c := range snap.Calls {
		state.calls[c.ID] = cloneCall(c)
	}
	for _, r := range snap.Requests {
		state.requests[r.ID] = cloneRequest(r)
	}
	s.state = state
}
