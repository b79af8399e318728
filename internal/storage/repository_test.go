package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"lunchtools/internal/core"
	"lunchtools/internal/log"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "data", "journal.db")
	repo, err := NewSQLiteRepository(dbPath, log.Discard())
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestNewSQLiteRepository_Migrates(t *testing.T) {
	repo := newTestRepo(t)
	if v := repo.SchemaVersion(); v != 1 {
		t.Errorf("SchemaVersion() = %d, want 1", v)
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")
	for i := 0; i < 2; i++ {
		if _, err := RunMigrations(dbPath); err != nil {
			t.Fatalf("RunMigrations() run %d error = %v", i+1, err)
		}
	}
}

func TestRecordAndRecent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 2, 5, 9, 0, 0, 0, time.UTC)

	entries := []core.ChangeEntry{
		{Tool: "create_tag", Resources: []string{"tags"}, Arguments: `{"name":"work"}`, Result: "Created tag #5.", CreatedAt: base},
		{Tool: "update_manual_account", Resources: []string{"manual_accounts"}, Result: "Updated manual account #3.", Warning: "names may be stale", CreatedAt: base.Add(time.Minute)},
		{Tool: "create_transaction", Resources: []string{"transactions"}, Result: "Created transaction #100.", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		if err := repo.Record(ctx, e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	got, err := repo.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent() returned %d entries, want 2", len(got))
	}
	if got[0].Tool != "create_transaction" || got[1].Tool != "update_manual_account" {
		t.Errorf("Recent() order = %s, %s", got[0].Tool, got[1].Tool)
	}
	if got[1].Warning != "names may be stale" {
		t.Errorf("Warning = %q", got[1].Warning)
	}
	if !got[1].CreatedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("CreatedAt = %v, want %v", got[1].CreatedAt, base.Add(time.Minute))
	}
	if len(got[0].Resources) != 1 || got[0].Resources[0] != "transactions" {
		t.Errorf("Resources = %v", got[0].Resources)
	}
	if got[0].ID <= got[1].ID {
		t.Errorf("IDs not descending: %d, %d", got[0].ID, got[1].ID)
	}

	n, err := repo.Count(ctx)
	if err != nil || n != 3 {
		t.Errorf("Count() = %d, %v, want 3", n, err)
	}
}

func TestRecent_NonPositiveLimit(t *testing.T) {
	repo := newTestRepo(t)
	got, err := repo.Recent(context.Background(), 0)
	if err != nil || len(got) != 0 {
		t.Errorf("Recent(0) = %v, %v", got, err)
	}
}

func TestRecord_MultipleResources(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	e := core.ChangeEntry{Tool: "delete_category", Resources: []string{"categories", "tags"}, CreatedAt: time.Now()}
	if err := repo.Record(ctx, e); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	got, err := repo.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got[0].Resources) != 2 || got[0].Resources[1] != "tags" {
		t.Errorf("Resources = %v", got[0].Resources)
	}
}

func TestPrune(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for _, at := range []time.Time{old, old.Add(time.Hour), recent} {
		if err := repo.Record(ctx, core.ChangeEntry{Tool: "create_tag", CreatedAt: at}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	n, err := repo.Prune(ctx, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Prune() removed %d, want 2", n)
	}
	left, _ := repo.Count(ctx)
	if left != 1 {
		t.Errorf("Count() after prune = %d, want 1", left)
	}
}
