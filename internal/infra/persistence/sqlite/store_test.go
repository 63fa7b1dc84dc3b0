package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"obsflow/internal/core"
)

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "obsflow.db")

	store, err := NewStore(path, core.NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	_, err = store.RunInTransaction(ctx, func(tx *core.Transaction) error {
		program, err := tx.CreateProgram(core.Program{Base: core.Base{ID: "p-1"}, Name: "Survey"})
		if err != nil {
			return err
		}
		if _, err := tx.CreateTarget(core.Target{Base: core.Base{ID: "t-1"}, ProgramID: program.ID, Name: "T"}); err != nil {
			return err
		}
		_, err = tx.CreateObservation(core.Observation{Base: core.Base{ID: "o-1"}, ProgramID: program.ID, AsterismIDs: []string{"t-1"}})
		return err
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path, core.NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	err = reopened.View(ctx, func(view core.TransactionView) error {
		if _, ok := view.FindProgram("p-1"); !ok {
			t.Fatalf("program not persisted")
		}
		obs, ok := view.FindObservation("o-1")
		if !ok {
			t.Fatalf("observation not persisted")
		}
		if len(obs.AsterismIDs) != 1 || obs.AsterismIDs[0] != "t-1" {
			t.Fatalf("asterism not persisted: %+v", obs.AsterismIDs)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestStoreBlockedTransactionNotPersisted(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "obsflow.db")

	store, err := NewStore(path, core.NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	// Referencing a missing target blocks the commit.
	_, err = store.RunInTransaction(ctx, func(tx *core.Transaction) error {
		program, err := tx.CreateProgram(core.Program{Base: core.Base{ID: "p-1"}, Name: "P"})
		if err != nil {
			return err
		}
		_, err = tx.CreateObservation(core.Observation{Base: core.Base{ID: "o-1"}, ProgramID: program.ID, AsterismIDs: []string{"t-ghost"}})
		return err
	})
	if err == nil {
		t.Fatalf("expected rule violation")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path, core.NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	_ = reopened.View(ctx, func(view core.TransactionView) error {
		if _, ok := view.FindProgram("p-1"); ok {
			t.Fatalf("blocked transaction leaked to disk")
		}
		return nil
	})
}

func TestStoreDefaultsPath(t *testing.T) {
	t.Chdir(t.TempDir())
	store, err := NewStore("", core.NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	if store.Path() != "obsflow.db" {
		t.Fatalf("path = %q", store.Path())
	}
}
