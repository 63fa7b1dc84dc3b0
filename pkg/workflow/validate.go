package workflow

// Check is a single readiness validation over an observation snapshot. Checks
// are pure: they read the snapshot and the call constraint and return zero or
// more findings.
type Check interface {
	Name() string
	Check(snap Snapshot, call *CallConstraint) []Finding
}

// Engine runs an ordered set of independent checks against a snapshot.
type Engine struct {
	checks []Check
}

// NewEngine constructs an empty validation engine.
func NewEngine() *Engine {
	return &Engine{}
}

// NewDefaultEngine builds an engine with the built-in check sequence. Order
// matters: findings are reported in registration order.
func NewDefaultEngine() *Engine {
	engine := NewEngine()
	engine.Register(targetPresenceCheck{})
	engine.Register(observingModeCheck{})
	engine.Register(targetCompletenessCheck{})
	engine.Register(itcPresenceCheck{})
	engine.Register(callInstrumentCheck{})
	engine.Register(callCoordinatesCheck{})
	engine.Register(bandAllocationCheck{})
	engine.Register(guideEnvironmentCheck{})
	return engine
}

// Register appends a check to the engine.
func (e *Engine) Register(check Check) {
	e.checks = append(e.checks, check)
}

// Validate runs every registered check in order and concatenates their
// findings. Calibration observations bypass validation entirely. An empty
// result means the observation has no validation problems.
func (e *Engine) Validate(snap Snapshot, call *CallConstraint) []Finding {
	if snap.Calibration {
		return nil
	}
	var findings []Finding
	for _, check := range e.checks {
		findings = append(findings, check.Check(snap, call)...)
	}
	return findings
}

// Validate runs the default check sequence against the snapshot.
func Validate(snap Snapshot, call *CallConstraint) []Finding {
	return NewDefaultEngine().Validate(snap, call)
}

type targetPresenceCheck struct{}

func (targetPresenceCheck) Name() string { return "target_presence" }

func (targetPresenceCheck) Check(snap Snapshot, _ *CallConstraint) []Finding {
	if len(snap.Targets) > 0 {
		return nil
	}
	return []Finding{MissingTargetFinding(snap.ObservationID)}
}

type observingModeCheck struct{}

func (observingModeCheck) Name() string { return "observing_mode" }

func (observingModeCheck) Check(snap Snapshot, _ *CallConstraint) []Finding {
	if snap.HasObservingMode() {
		return nil
	}
	return []Finding{ConfigurationFinding(MsgMissingObservingMode)}
}

type targetCompletenessCheck struct{}

func (targetCompletenessCheck) Name() string { return "target_completeness" }

func (targetCompletenessCheck) Check(snap Snapshot, _ *CallConstraint) []Finding {
	var findings []Finding
	for _, target := range snap.Targets {
		if target.Complete() {
			continue
		}
		findings = append(findings, MissingPropertiesFinding(target.Name, target.MissingProperties))
	}
	return findings
}

type itcPresenceCheck struct{}

func (itcPresenceCheck) Name() string { return "itc_presence" }

// The ITC check is skipped while earlier configuration problems exist: an
// incomplete configuration cannot have an ITC result, and reporting both
// would be noise.
func (itcPresenceCheck) Check(snap Snapshot, _ *CallConstraint) []Finding {
	if len(snap.Targets) == 0 || !snap.HasObservingMode() {
		return nil
	}
	for _, target := range snap.Targets {
		if !target.Complete() {
			return nil
		}
	}
	if snap.HasITCResult {
		return nil
	}
	return []Finding{ITCFinding(MsgITCResultsMissing)}
}

type callInstrumentCheck struct{}

func (callInstrumentCheck) Name() string { return "call_instrument" }

func (callInstrumentCheck) Check(snap Snapshot, call *CallConstraint) []Finding {
	if call == nil || !snap.HasObservingMode() {
		return nil
	}
	if call.AllowsInstrument(snap.Instrument) {
		return nil
	}
	return []Finding{InstrumentFinding(snap.Instrument, call.Instruments)}
}

type callCoordinatesCheck struct{}

func (callCoordinatesCheck) Name() string { return "call_coordinates" }

func (callCoordinatesCheck) Check(snap Snapshot, call *CallConstraint) []Finding {
	if call == nil || !snap.HasObservingMode() {
		return nil
	}
	site, ok := SiteOf(snap.Instrument)
	if !ok {
		return nil
	}
	limits := call.LimitsFor(site)
	if limits == nil {
		return nil
	}
	base, source := snap.EffectiveBase()
	if source == BaseNone {
		return nil
	}
	if limits.Contains(base) {
		return nil
	}
	if source == BaseExplicit {
		return []Finding{CallFinding(MsgExplicitBaseOutside)}
	}
	return []Finding{CallFinding(MsgAsterismOutside)}
}

type bandAllocationCheck struct{}

func (bandAllocationCheck) Name() string { return "band_allocation" }

func (bandAllocationCheck) Check(snap Snapshot, _ *CallConstraint) []Finding {
	if snap.ScienceBand == nil {
		return nil
	}
	if snap.BandAllocated(*snap.ScienceBand) {
		return nil
	}
	return []Finding{BandFinding(*snap.ScienceBand)}
}

type guideEnvironmentCheck struct{}

func (guideEnvironmentCheck) Name() string { return "guide_environment" }

func (guideEnvironmentCheck) Check(snap Snapshot, _ *CallConstraint) []Finding {
	findings := make([]Finding, 0, len(snap.GuideProblems))
	for _, problem := range snap.GuideProblems {
		findings = append(findings, GuideFinding(problem))
	}
	if len(findings) == 0 {
		return nil
	}
	return findings
}
