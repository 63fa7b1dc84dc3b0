package core

import "obsflow/pkg/workflow"

// NewDefaultRulesEngine builds a rules engine with the built-in invariant set
// evaluated at every transaction commit.
func NewDefaultRulesEngine() *RulesEngine {
	engine := workflow.NewRulesEngine()
	engine.Register(NewAsterismIntegrityRule())
	engine.Register(NewExecutionMonotonicRule())
	return engine
}
