package workflow

import (
	"fmt"
	"strings"
)

// FindingKind discriminates the source of a validation finding.
type FindingKind string

// Validation finding kinds, a closed enumeration.
const (
	FindingConfiguration    FindingKind = "configuration"
	FindingITC              FindingKind = "itc"
	FindingCallForProposals FindingKind = "call_for_proposals"
	FindingGuideEnvironment FindingKind = "guide_environment"
)

// Finding reports why an observation is not ready. Findings are data returned
// alongside the workflow state, never errors.
type Finding struct {
	Kind    FindingKind `json:"kind"`
	Message string      `json:"message"`
}

// Messages produced by the validation checks. Kept as constants so callers and
// tests share one source of truth.
const (
	MsgMissingObservingMode = "missing observing mode"
	MsgITCResultsMissing    = "ITC results are not present."
	MsgExplicitBaseOutside  = "explicit base out of range"
	MsgAsterismOutside      = "asterism out of range"

	// Configuration request sub-cases reported with an Unapproved state.
	MsgConfigNotRequested = "configurationRequestNotRequested"
	MsgConfigPending      = "configurationRequestPending"
	MsgConfigDenied       = "configurationRequestDenied"
)

// ConfigurationFinding builds a Configuration-kind finding.
func ConfigurationFinding(message string) Finding {
	return Finding{Kind: FindingConfiguration, Message: message}
}

// ITCFinding builds an ITC-kind finding.
func ITCFinding(message string) Finding {
	return Finding{Kind: FindingITC, Message: message}
}

// CallFinding builds a CallForProposals-kind finding.
func CallFinding(message string) Finding {
	return Finding{Kind: FindingCallForProposals, Message: message}
}

// GuideFinding builds a GuideEnvironment-kind finding.
func GuideFinding(message string) Finding {
	return Finding{Kind: FindingGuideEnvironment, Message: message}
}

// MissingTargetFinding reports an observation with no science target.
func MissingTargetFinding(observationID string) Finding {
	return ConfigurationFinding(fmt.Sprintf("observation %s is missing a target", observationID))
}

// MissingPropertiesFinding reports a target's absent physical properties,
// comma-joined in stable field order.
func MissingPropertiesFinding(target string, missing []string) Finding {
	return ConfigurationFinding(fmt.Sprintf("target %s is missing %s", target, strings.Join(missing, ", ")))
}

// InstrumentFinding reports an instrument excluded by the active call.
func InstrumentFinding(actual Instrument, allowed []Instrument) Finding {
	names := make([]string, len(allowed))
	for i, inst := range allowed {
		names[i] = string(inst)
	}
	return CallFinding(fmt.Sprintf("instrument %s is not permitted by the call for proposals (expected %s)", actual, strings.Join(names, ", ")))
}

// BandFinding reports a science band the program holds no allocation for.
func BandFinding(band ScienceBand) Finding {
	return ConfigurationFinding(fmt.Sprintf("science band %s has no time allocation", band))
}
