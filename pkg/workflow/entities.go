// Package workflow defines the observation workflow engine: the domain
// records, validation checks, state derivation, transition sets, and edit
// eligibility gating used by the observation database core.
package workflow

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityProgram identifies a science program record.
	EntityProgram EntityType = "program"
	// EntityObservation identifies an observation record.
	EntityObservation EntityType = "observation"
	// EntityTarget identifies a target record.
	EntityTarget EntityType = "target"
	// EntityCallForProposals identifies a call-for-proposals record.
	EntityCallForProposals EntityType = "call_for_proposals"
	// EntityConfigurationRequest identifies a configuration request record.
	EntityConfigurationRequest EntityType = "configuration_request"
)

// State is the derived workflow lifecycle label for an observation. It is a
// projection computed on every read, never a stored column.
type State string

// Canonical workflow states, a closed enumeration.
const (
	StateUndefined  State = "undefined"
	StateUnapproved State = "unapproved"
	StateDefined    State = "defined"
	StateInactive   State = "inactive"
	StateReady      State = "ready"
	StateOngoing    State = "ongoing"
	StateCompleted  State = "completed"
)

var stateTitles = map[State]string{
	StateUndefined:  "Undefined",
	StateUnapproved: "Unapproved",
	StateDefined:    "Defined",
	StateInactive:   "Inactive",
	StateReady:      "Ready",
	StateOngoing:    "Ongoing",
	StateCompleted:  "Completed",
}

// Title returns the display form of the state used in operator-facing messages.
func (s State) Title() string {
	if title, ok := stateTitles[s]; ok {
		return title
	}
	return string(s)
}

// Instrument enumerates the observing instruments known to the engine.
type Instrument string

// Supported instruments and the sites they observe from.
const (
	InstrumentGmosNorth  Instrument = "GmosNorth"
	InstrumentGmosSouth  Instrument = "GmosSouth"
	InstrumentGnirs      Instrument = "Gnirs"
	InstrumentFlamingos2 Instrument = "Flamingos2"
)

// Site identifies the hemisphere an instrument observes from.
type Site string

// Observatory sites.
const (
	SiteNorth Site = "north"
	SiteSouth Site = "south"
)

var instrumentSites = map[Instrument]Site{
	InstrumentGmosNorth:  SiteNorth,
	InstrumentGnirs:      SiteNorth,
	InstrumentGmosSouth:  SiteSouth,
	InstrumentFlamingos2: SiteSouth,
}

// SiteOf reports the site an instrument observes from.
func SiteOf(instrument Instrument) (Site, bool) {
	site, ok := instrumentSites[instrument]
	return site, ok
}

// ScienceBand enumerates proposal time-allocation bands.
type ScienceBand string

// Allocation bands recognised for time accounting.
const (
	Band1 ScienceBand = "band1"
	Band2 ScienceBand = "band2"
	Band3 ScienceBand = "band3"
	Band4 ScienceBand = "band4"
)

// ProposalStatus tracks the submission state of a program's proposal.
type ProposalStatus string

// Proposal submission states. A submitted or accepted proposal requires
// configuration-request approval before observations become Defined.
const (
	ProposalNotSubmitted ProposalStatus = "not_submitted"
	ProposalSubmitted    ProposalStatus = "submitted"
	ProposalAccepted     ProposalStatus = "accepted"
)

// RequestStatus tracks the review state of a configuration request.
type RequestStatus string

// Configuration request review states. The absence of any linked request is a
// distinct fourth case, represented by ConfigNotRequested on snapshots.
const (
	RequestRequested RequestStatus = "requested"
	RequestApproved  RequestStatus = "approved"
	RequestDenied    RequestStatus = "denied"
)

// ConfigRequestStatus is the snapshot-level view of configuration approval,
// folding the no-request case into the enumeration.
type ConfigRequestStatus string

// Snapshot-level configuration request cases.
const (
	ConfigNotRequested ConfigRequestStatus = "not_requested"
	ConfigRequested    ConfigRequestStatus = "requested"
	ConfigApproved     ConfigRequestStatus = "approved"
	ConfigDenied       ConfigRequestStatus = "denied"
)

// Role captures the privilege level of the actor issuing a request.
type Role string

// Actor roles. Staff, admin, and service actors are elevated.
const (
	RolePi      Role = "pi"
	RoleCoi     Role = "coi"
	RoleStaff   Role = "staff"
	RoleAdmin   Role = "admin"
	RoleService Role = "service"
)

// Actor is the identity and privilege level attached to a mutation.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// Elevated reports whether the actor holds staff-level privileges.
func (a Actor) Elevated() bool {
	switch a.Role {
	case RoleStaff, RoleAdmin, RoleService:
		return true
	}
	return false
}

// OperationKind classifies a mutation for edit-eligibility gating.
type OperationKind string

// Mutation kinds recognised by the eligibility gate.
const (
	OpSubtitle            OperationKind = "subtitle"
	OpPositionAngle       OperationKind = "position_angle"
	OpGuideTarget         OperationKind = "guide_target"
	OpAsterism            OperationKind = "asterism"
	OpTargetEdit          OperationKind = "target_edit"
	OpScienceBand         OperationKind = "science_band"
	OpGroupIndex          OperationKind = "group_index"
	OpObservationDuration OperationKind = "observation_duration"
	OpObservationTime     OperationKind = "observation_time"
	OpDelete              OperationKind = "delete"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BandAllocation grants observing time in a science band.
type BandAllocation struct {
	Band  ScienceBand   `json:"band"`
	Award time.Duration `json:"award"`
}

// Program represents a science program and its proposal facts.
type Program struct {
	Base
	Name           string           `json:"name"`
	ProposalStatus ProposalStatus   `json:"proposal_status"`
	CallID         *string          `json:"call_id"`
	Allocations    []BandAllocation `json:"allocations"`
}

// ApprovalRequired reports whether observations in this program need an
// approved configuration request before they can become Defined.
func (p Program) ApprovalRequired() bool {
	return p.ProposalStatus != ProposalNotSubmitted
}

// AllocatedBands lists the bands the program holds time in.
func (p Program) AllocatedBands() []ScienceBand {
	bands := make([]ScienceBand, 0, len(p.Allocations))
	for _, a := range p.Allocations {
		bands = append(bands, a.Band)
	}
	return bands
}

// ObservingMode selects an instrument and its mode configuration.
type ObservingMode struct {
	Instrument Instrument `json:"instrument"`
	Name       string     `json:"name"`
}

// Execution holds the recorded execution facts for an observation. These are
// facts, not states: the workflow state is derived from them on every read.
type Execution struct {
	Visits            int  `json:"visits"`
	ExecutedSteps     int  `json:"executed_steps"`
	SequenceCompleted bool `json:"sequence_completed"`
}

// Started reports whether at least one step has been recorded.
func (e Execution) Started() bool { return e.ExecutedSteps > 0 }

// Observation represents a single planned observation within a program.
type Observation struct {
	Base
	ProgramID       string         `json:"program_id"`
	Subtitle        string         `json:"subtitle"`
	Mode            *ObservingMode `json:"mode"`
	ScienceBand     *ScienceBand   `json:"science_band"`
	ExplicitBase    *Coordinates   `json:"explicit_base"`
	PositionAngle   *float64       `json:"position_angle"`
	GuideTargetName *string        `json:"guide_target_name"`
	AsterismIDs     []string       `json:"asterism_ids"`
	Calibration     bool           `json:"calibration"`
	Inactive        bool           `json:"inactive"`
	MarkedReady     bool           `json:"marked_ready"`
	GroupID         *string        `json:"group_id"`
	GroupIndex      int            `json:"group_index"`
	Duration        *time.Duration `json:"observation_duration"`
	ObservationTime *time.Time     `json:"observation_time"`
	Execution       Execution      `json:"execution"`
}

// Target represents a science or blind-offset target within a program.
type Target struct {
	Base
	ProgramID      string       `json:"program_id"`
	Name           string       `json:"name"`
	Coordinates    *Coordinates `json:"coordinates"`
	Brightness     *float64     `json:"brightness"`
	RadialVelocity *float64     `json:"radial_velocity"`
	Parallax       *float64     `json:"parallax"`
	ProperMotion   *float64     `json:"proper_motion"`
	BlindOffset    bool         `json:"blind_offset"`
}

// MissingProperties lists the required physical properties the target lacks,
// in stable field order. Parallax and proper motion are optional refinements
// and do not count against completeness.
func (t Target) MissingProperties() []string {
	var missing []string
	if t.Coordinates == nil {
		missing = append(missing, "coordinates")
	}
	if t.Brightness == nil {
		missing = append(missing, "brightness measure")
	}
	if t.RadialVelocity == nil {
		missing = append(missing, "radial velocity")
	}
	return missing
}

// CallForProposals carries the eligibility constraints of an observing call.
type CallForProposals struct {
	Base
	Name        string            `json:"name"`
	Instruments []Instrument      `json:"instruments"`
	NorthLimits *CoordinateLimits `json:"north_limits"`
	SouthLimits *CoordinateLimits `json:"south_limits"`
	Active      bool              `json:"active"`
}

// Constraint projects the call into the subset relevant to validation.
// Inactive calls impose no constraint.
func (c CallForProposals) Constraint() *CallConstraint {
	if !c.Active {
		return nil
	}
	return &CallConstraint{
		Instruments: append([]Instrument(nil), c.Instruments...),
		North:       c.NorthLimits,
		South:       c.SouthLimits,
	}
}

// ConfigurationRequest asks staff to lock in an observation's configuration.
type ConfigurationRequest struct {
	Base
	ObservationID string        `json:"observation_id"`
	Status        RequestStatus `json:"status"`
}
