package core

import (
	"context"
	"errors"
	"testing"

	"obsflow/pkg/workflow"
)

func TestAsterismIntegrityBlocksMissingTarget(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(NewDefaultRulesEngine())

	_, err := store.RunInTransaction(ctx, func(tx *Transaction) error {
		program, err := tx.CreateProgram(Program{Name: "P"})
		if err != nil {
			return err
		}
		_, err = tx.CreateObservation(Observation{
			ProgramID:   program.ID,
			AsterismIDs: []string{"t-ghost"},
		})
		return err
	})
	var violation workflow.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if !violation.Result.HasBlocking() {
		t.Fatalf("expected blocking violation, got %+v", violation.Result)
	}
}

func TestAsterismIntegrityBlocksCrossProgramTarget(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(NewDefaultRulesEngine())

	var otherTarget Target
	_, err := store.RunInTransaction(ctx, func(tx *Transaction) error {
		other, err := tx.CreateProgram(Program{Name: "other"})
		if err != nil {
			return err
		}
		otherTarget, err = tx.CreateTarget(Target{ProgramID: other.ID, Name: "T"})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err = store.RunInTransaction(ctx, func(tx *Transaction) error {
		program, err := tx.CreateProgram(Program{Name: "mine"})
		if err != nil {
			return err
		}
		_, err = tx.CreateObservation(Observation{
			ProgramID:   program.ID,
			AsterismIDs: []string{otherTarget.ID},
		})
		return err
	})
	var violation workflow.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
}

func TestAsterismIntegrityBlocksBlindOffsetMember(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(NewDefaultRulesEngine())

	_, err := store.RunInTransaction(ctx, func(tx *Transaction) error {
		program, err := tx.CreateProgram(Program{Name: "P"})
		if err != nil {
			return err
		}
		blind, err := tx.CreateTarget(Target{ProgramID: program.ID, Name: "offset", BlindOffset: true})
		if err != nil {
			return err
		}
		_, err = tx.CreateObservation(Observation{
			ProgramID:   program.ID,
			AsterismIDs: []string{blind.ID},
		})
		return err
	})
	var violation workflow.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
}

func TestExecutionMonotonicBlocksRegression(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(NewDefaultRulesEngine())

	var obs Observation
	_, err := store.RunInTransaction(ctx, func(tx *Transaction) error {
		program, err := tx.CreateProgram(Program{Name: "P"})
		if err != nil {
			return err
		}
		obs, err = tx.CreateObservation(Observation{
			ProgramID: program.ID,
			Execution: Execution{Visits: 2, ExecutedSteps: 5},
		})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err = store.RunInTransaction(ctx, func(tx *Transaction) error {
		_, err := tx.UpdateObservation(obs.ID, func(o *Observation) error {
			o.Execution.ExecutedSteps = 3
			return nil
		})
		return err
	})
	var violation workflow.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}

	// The rejected transaction did not commit.
	_ = store.View(ctx, func(view TransactionView) error {
		got, _ := view.FindObservation(obs.ID)
		if got.Execution.ExecutedSteps != 5 {
			t.Fatalf("regressed write leaked: %+v", got.Execution)
		}
		return nil
	})
}

func TestExecutionMonotonicBlocksUncompleting(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(NewDefaultRulesEngine())

	var obs Observation
	_, err := store.RunInTransaction(ctx, func(tx *Transaction) error {
		program, err := tx.CreateProgram(Program{Name: "P"})
		if err != nil {
			return err
		}
		obs, err = tx.CreateObservation(Observation{
			ProgramID: program.ID,
			Execution: Execution{ExecutedSteps: 1, SequenceCompleted: true},
		})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err = store.RunInTransaction(ctx, func(tx *Transaction) error {
		_, err := tx.UpdateObservation(obs.ID, func(o *Observation) error {
			o.Execution.SequenceCompleted = false
			return nil
		})
		return err
	})
	var violation workflow.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
}

func TestExecutionMonotonicAllowsGrowth(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(NewDefaultRulesEngine())

	var obs Observation
	_, err := store.RunInTransaction(ctx, func(tx *Transaction) error {
		program, err := tx.CreateProgram(Program{Name: "P"})
		if err != nil {
			return err
		}
		obs, err = tx.CreateObservation(Observation{ProgramID: program.ID})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err = store.RunInTransaction(ctx, func(tx *Transaction) error {
		_, err := tx.UpdateObservation(obs.ID, func(o *Observation) error {
			o.Execution.Visits++
			o.Execution.ExecutedSteps++
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("monotonic growth must commit: %v", err)
	}
}
