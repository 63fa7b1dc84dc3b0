package core

import (
	"context"
	"errors"
	"testing"

	"obsflow/pkg/workflow"
)

func TestStoreAssignsIDsAndTimestamps(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(NewDefaultRulesEngine())

	var program Program
	_, err := store.RunInTransaction(ctx, func(tx *Transaction) error {
		var err error
		program, err = tx.CreateProgram(Program{Name: "P"})
		return err
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if program.ID == "" {
		t.Fatalf("id not assigned")
	}
	if program.CreatedAt.IsZero() || program.UpdatedAt.IsZero() {
		t.Fatalf("timestamps not set: %+v", program.Base)
	}
}

func TestStoreCreateDuplicateID(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(NewDefaultRulesEngine())

	_, err := store.RunInTransaction(ctx, func(tx *Transaction) error {
		if _, err := tx.CreateProgram(Program{Base: Base{ID: "p-1"}, Name: "a"}); err != nil {
			return err
		}
		_, err := tx.CreateProgram(Program{Base: Base{ID: "p-1"}, Name: "b"})
		return err
	})
	var exists ErrAlreadyExists
	if !errors.As(err, &exists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestStoreRollbackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(NewDefaultRulesEngine())

	boom := errors.New("boom")
	_, err := store.RunInTransaction(ctx, func(tx *Transaction) error {
		if _, err := tx.CreateProgram(Program{Base: Base{ID: "p-1"}, Name: "a"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	_ = store.View(ctx, func(view TransactionView) error {
		if _, ok := view.FindProgram("p-1"); ok {
			t.Fatalf("failed transaction leaked a write")
		}
		return nil
	})
}

func TestStoreViewIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(NewDefaultRulesEngine())

	_, err := store.RunInTransaction(ctx, func(tx *Transaction) error {
		if _, err := tx.CreateProgram(Program{Base: Base{ID: "p-1"}, Name: "P"}); err != nil {
			return err
		}
		_, err := tx.CreateTarget(Target{Base: Base{ID: "t-1"}, ProgramID: "p-1", Name: "orig"})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Mutating the copy handed to a view must not touch stored state.
	_ = store.View(ctx, func(view TransactionView) error {
		target, _ := view.FindTarget("t-1")
		target.Name = "mutated"
		return nil
	})
	_ = store.View(ctx, func(view TransactionView) error {
		target, _ := view.FindTarget("t-1")
		if target.Name != "orig" {
			t.Fatalf("view mutation leaked: %q", target.Name)
		}
		return nil
	})
}

func TestObservationsWithTarget(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(NewDefaultRulesEngine())

	_, err := store.RunInTransaction(ctx, func(tx *Transaction) error {
		program, err := tx.CreateProgram(Program{Base: Base{ID: "p-1"}, Name: "P"})
		if err != nil {
			return err
		}
		if _, err := tx.CreateTarget(Target{Base: Base{ID: "t-1"}, ProgramID: program.ID, Name: "T"}); err != nil {
			return err
		}
		if _, err := tx.CreateObservation(Observation{Base: Base{ID: "o-1"}, ProgramID: program.ID, AsterismIDs: []string{"t-1"}}); err != nil {
			return err
		}
		_, err = tx.CreateObservation(Observation{Base: Base{ID: "o-2"}, ProgramID: program.ID})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	_ = store.View(ctx, func(view TransactionView) error {
		hosts := view.ObservationsWithTarget("t-1")
		if len(hosts) != 1 || hosts[0].ID != "o-1" {
			t.Fatalf("hosts = %+v", hosts)
		}
		return nil
	})
}

func TestRequestForObservation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(NewDefaultRulesEngine())

	_, err := store.RunInTransaction(ctx, func(tx *Transaction) error {
		if _, err := tx.CreateProgram(Program{Base: Base{ID: "p-1"}, Name: "P"}); err != nil {
			return err
		}
		if _, err := tx.CreateObservation(Observation{Base: Base{ID: "o-1"}, ProgramID: "p-1"}); err != nil {
			return err
		}
		_, err := tx.CreateConfigurationRequest(ConfigurationRequest{
			Base:          Base{ID: "r-1"},
			ObservationID: "o-1",
			Status:        workflow.RequestRequested,
		})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	_ = store.View(ctx, func(view TransactionView) error {
		req, ok := view.RequestForObservation("o-1")
		if !ok || req.ID != "r-1" {
			t.Fatalf("request = %+v ok = %v", req, ok)
		}
		if _, ok := view.RequestForObservation("o-other"); ok {
			t.Fatalf("unexpected request for unrelated observation")
		}
		return nil
	})
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(NewDefaultRulesEngine())

	_, err := store.RunInTransaction(ctx, func(tx *Transaction) error {
		program, err := tx.CreateProgram(Program{Base: Base{ID: "p-1"}, Name: "P", ProposalStatus: workflow.ProposalAccepted})
		if err != nil {
			return err
		}
		if _, err := tx.CreateTarget(Target{Base: Base{ID: "t-1"}, ProgramID: program.ID, Name: "T"}); err != nil {
			return err
		}
		if _, err := tx.CreateObservation(Observation{Base: Base{ID: "o-1"}, ProgramID: program.ID, AsterismIDs: []string{"t-1"}}); err != nil {
			return err
		}
		if _, err := tx.CreateCallForProposals(CallForProposals{Base: Base{ID: "c-1"}, Name: "2026A", Active: true}); err != nil {
			return err
		}
		_, err = tx.CreateConfigurationRequest(ConfigurationRequest{Base: Base{ID: "r-1"}, ObservationID: "o-1", Status: workflow.RequestApproved})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	snap := store.ExportState()
	restored := NewMemoryStore(NewDefaultRulesEngine())
	restored.ImportState(snap)

	_ = restored.View(ctx, func(view TransactionView) error {
		if _, ok := view.FindProgram("p-1"); !ok {
			t.Fatalf("program lost in round trip")
		}
		obs, ok := view.FindObservation("o-1")
		if !ok || len(obs.AsterismIDs) != 1 {
			t.Fatalf("observation lost: %+v", obs)
		}
		if _, ok := view.FindCallForProposals("c-1"); !ok {
			t.Fatalf("call lost")
		}
		req, ok := view.RequestForObservation("o-1")
		if !ok || req.Status != workflow.RequestApproved {
			t.Fatalf("request lost: %+v", req)
		}
		return nil
	})
}
