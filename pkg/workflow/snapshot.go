package workflow

// TargetFacts is the snapshot view of one asterism member.
type TargetFacts struct {
	ID                string       `json:"id"`
	Name              string       `json:"name"`
	Coordinates       *Coordinates `json:"coordinates"`
	MissingProperties []string     `json:"missing_properties"`
}

// Complete reports whether the target carries every required property.
func (t TargetFacts) Complete() bool { return len(t.MissingProperties) == 0 }

// Snapshot is an immutable read of everything the engine needs to compute an
// observation's workflow. It is assembled from current persisted facts within
// a single consistent read, has no identity of its own, and is discarded after
// use.
type Snapshot struct {
	ObservationID string `json:"observation_id"`
	ProgramID     string `json:"program_id"`

	Calibration bool `json:"calibration"`
	Inactive    bool `json:"inactive"`
	MarkedReady bool `json:"marked_ready"`

	ExecutionStarted   bool `json:"execution_started"`
	ExecutionCompleted bool `json:"execution_completed"`

	// Instrument is empty when no observing mode has been chosen.
	Instrument Instrument `json:"instrument"`

	ScienceBand    *ScienceBand  `json:"science_band"`
	AllocatedBands []ScienceBand `json:"allocated_bands"`

	ExplicitBase *Coordinates  `json:"explicit_base"`
	Targets      []TargetFacts `json:"targets"`

	HasITCResult bool `json:"has_itc_result"`

	// GuideProblems carries guide-environment diagnoses supplied by the
	// guide-star collaborator, surfaced verbatim as findings.
	GuideProblems []string `json:"guide_problems"`

	ApprovalRequired bool                `json:"approval_required"`
	ConfigRequest    ConfigRequestStatus `json:"config_request"`
}

// HasObservingMode reports whether an instrument/mode has been chosen.
func (s Snapshot) HasObservingMode() bool { return s.Instrument != "" }

// BandAllocated reports whether the program holds time in the given band.
func (s Snapshot) BandAllocated(band ScienceBand) bool {
	for _, b := range s.AllocatedBands {
		if b == band {
			return true
		}
	}
	return false
}

// BaseSource identifies which coordinate source resolved the effective base.
type BaseSource int

// Effective base coordinate sources, in resolution order.
const (
	BaseNone BaseSource = iota
	BaseExplicit
	BaseSingleTarget
	BaseAsterism
)

// EffectiveBase resolves the observation's base coordinate: the explicit
// override when set, else the single target's coordinates, else the centroid
// of the asterism members that have coordinates.
func (s Snapshot) EffectiveBase() (Coordinates, BaseSource) {
	if s.ExplicitBase != nil {
		return *s.ExplicitBase, BaseExplicit
	}
	var coords []Coordinates
	for _, t := range s.Targets {
		if t.Coordinates != nil {
			coords = append(coords, *t.Coordinates)
		}
	}
	switch len(coords) {
	case 0:
		return Coordinates{}, BaseNone
	case 1:
		return coords[0], BaseSingleTarget
	}
	return Centroid(coords), BaseAsterism
}

// CallConstraint is the subset of an active call for proposals relevant to
// validation. An empty instrument list means the call is unrestricted.
type CallConstraint struct {
	Instruments []Instrument      `json:"instruments"`
	North       *CoordinateLimits `json:"north"`
	South       *CoordinateLimits `json:"south"`
}

// AllowsInstrument reports whether the call admits the instrument.
func (c CallConstraint) AllowsInstrument(instrument Instrument) bool {
	if len(c.Instruments) == 0 {
		return true
	}
	for _, inst := range c.Instruments {
		if inst == instrument {
			return true
		}
	}
	return false
}

// LimitsFor returns the coordinate window the call applies at the given site,
// or nil when the site is unconstrained.
func (c CallConstraint) LimitsFor(site Site) *CoordinateLimits {
	switch site {
	case SiteNorth:
		return c.North
	case SiteSouth:
		return c.South
	}
	return nil
}
