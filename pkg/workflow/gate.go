package workflow

import (
	"fmt"
	"strings"
)

// ObservationStatus pairs an observation id with its computed workflow for
// gating. Callers assemble these inside the same transaction that applies the
// mutation so the state cannot flip between check and write.
type ObservationStatus struct {
	ID               string
	State            State
	ValidTransitions []State
}

// Rejection is a per-observation soft failure produced by the gate.
type Rejection struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// alwaysPermitted lists operations allowed regardless of workflow state:
// queue reordering and time-accounting updates.
var alwaysPermitted = map[OperationKind]bool{
	OpGroupIndex:          true,
	OpObservationDuration: true,
	OpObservationTime:     true,
}

// staffBypass lists operations elevated actors may apply to observations the
// gate would otherwise reject.
var staffBypass = map[OperationKind]bool{
	OpGuideTarget:   true,
	OpPositionAngle: true,
}

// Editable reports whether the state admits content-changing mutations.
func Editable(state State) bool {
	switch state {
	case StateUndefined, StateUnapproved, StateDefined, StateReady:
		return true
	}
	return false
}

// OperationPermitted composes the state table with the actor-privilege
// predicate: the two layers are independent and testable on their own.
func OperationPermitted(state State, actor Actor, op OperationKind) bool {
	if alwaysPermitted[op] {
		return true
	}
	if Editable(state) {
		return true
	}
	return actor.Elevated() && staffBypass[op]
}

// IneligibleMessage renders the operator-facing rejection for an observation
// in a non-editable state. The transition clause is omitted when the state is
// terminal.
func IneligibleMessage(id string, state State, transitions []State) string {
	detail := state.Title()
	if len(transitions) > 0 {
		names := make([]string, len(transitions))
		for i, t := range transitions {
			names[i] = t.Title()
		}
		detail = fmt.Sprintf("%s with allowed transition to %s", detail, strings.Join(names, "/"))
	}
	return fmt.Sprintf("Observation %s is ineligibile for this operation due to its workflow state (%s).", id, detail)
}

// TargetIneligibleMessage renders the rejection for a target edit blocked by
// the workflow state of an observation whose asterism includes it.
func TargetIneligibleMessage(id string) string {
	return fmt.Sprintf("Target %s is not eligible for this operation due to the workflow state of one or more associated observations.", id)
}

// FilterEditable partitions a batch of observations into those the actor may
// mutate with the given operation and per-observation rejections. Each
// observation is judged independently: some succeed while others fail within
// the same batch.
func FilterEditable(batch []ObservationStatus, actor Actor, op OperationKind) (allowed []string, rejections []Rejection) {
	for _, obs := range batch {
		if OperationPermitted(obs.State, actor, op) {
			allowed = append(allowed, obs.ID)
			continue
		}
		rejections = append(rejections, Rejection{
			ID:      obs.ID,
			Message: IneligibleMessage(obs.ID, obs.State, obs.ValidTransitions),
		})
	}
	return allowed, rejections
}
