package core

import "obsflow/pkg/workflow"

type (
	EntityType           = workflow.EntityType
	State                = workflow.State
	Base                 = workflow.Base
	Execution            = workflow.Execution
	Severity             = workflow.Severity
	Actor                = workflow.Actor
	OperationKind        = workflow.OperationKind
	Program              = workflow.Program
	Observation          = workflow.Observation
	Target               = workflow.Target
	CallForProposals     = workflow.CallForProposals
	ConfigurationRequest = workflow.ConfigurationRequest
	Change               = workflow.Change
	Action               = workflow.Action
	Violation            = workflow.Violation
	Result               = workflow.Result
	RulesEngine          = workflow.RulesEngine
	RuleViolationError   = workflow.RuleViolationError
	Workflow             = workflow.Workflow
	Finding              = workflow.Finding
	Rejection            = workflow.Rejection
)

const (
	EntityProgram              = workflow.EntityProgram
	EntityObservation          = workflow.EntityObservation
	EntityTarget               = workflow.EntityTarget
	EntityCallForProposals     = workflow.EntityCallForProposals
	EntityConfigurationRequest = workflow.EntityConfigurationRequest
)

const (
	SeverityBlock = workflow.SeverityBlock
	SeverityWarn  = workflow.SeverityWarn
	SeverityLog   = workflow.SeverityLog
)

const (
	ActionCreate = workflow.ActionCreate
	ActionUpdate = workflow.ActionUpdate
	ActionDelete = workflow.ActionDelete
)
