package stores

import (
	"context"
	"errors"
	"testing"
	"time"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })
	return store
}

func strPtr(s string) *string { return &s }

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.HealthCheck(ctx); err == nil {
		t.Fatal("expected health check to fail before Init")
	}
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestNewSQLiteStoreRequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

// TestStoreMigrations tests that migrations are idempotent
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("second migration failed: %v", err)
	}
}

func TestCookLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	cook := &Cook{ID: "cook-1", AssetName: "rock", NodeID: 7}
	if err := store.RecordCookStarted(ctx, cook); err != nil {
		t.Fatalf("failed to record cook start: %v", err)
	}
	if cook.Result != ResultWorking {
		t.Errorf("expected result %q, got %q", ResultWorking, cook.Result)
	}

	got, err := store.GetCook(ctx, "cook-1")
	if err != nil {
		t.Fatalf("failed to get cook: %v", err)
	}
	if got.CompletedAt != nil {
		t.Error("expected open cook to have no completion time")
	}

	err = store.RecordCookCompleted(ctx, "cook-1", CookCompletion{
		State:     "ready_with_cook_errors",
		Result:    ResultSuccess,
		CookCount: 3,
		CookLog:   strPtr("Cook Results:\nwarning"),
	})
	if err != nil {
		t.Fatalf("failed to record cook completion: %v", err)
	}

	got, err = store.GetCook(ctx, "cook-1")
	if err != nil {
		t.Fatalf("failed to get cook: %v", err)
	}
	if got.CompletedAt == nil {
		t.Fatal("expected completion time")
	}
	if got.State != "ready_with_cook_errors" || got.Result != ResultSuccess {
		t.Errorf("unexpected state/result: %s/%s", got.State, got.Result)
	}
	if got.CookCount != 3 {
		t.Errorf("expected cook count 3, got %d", got.CookCount)
	}
	if got.CookLog == nil || *got.CookLog != "Cook Results:\nwarning" {
		t.Errorf("unexpected cook log: %v", got.CookLog)
	}
	if got.DurationMS < 0 {
		t.Errorf("negative duration: %d", got.DurationMS)
	}
	if got.Error != nil {
		t.Errorf("expected no error, got %q", *got.Error)
	}
}

func TestCookNotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.GetCook(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	err := store.RecordCookCompleted(ctx, "missing", CookCompletion{Result: ResultAborted})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.RecordCookStarted(ctx, &Cook{AssetName: "x"}); err == nil {
		t.Error("expected error for cook without id")
	}
}

func TestListCooksFilters(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cooks := []*Cook{
		{ID: "a1", AssetName: "rock", StartedAt: base},
		{ID: "a2", AssetName: "rock", StartedAt: base.Add(time.Hour)},
		{ID: "b1", AssetName: "tree", StartedAt: base.Add(2 * time.Hour)},
	}
	for _, c := range cooks {
		if err := store.RecordCookStarted(ctx, c); err != nil {
			t.Fatalf("failed to record cook: %v", err)
		}
	}
	if err := store.RecordCookCompleted(ctx, "a2", CookCompletion{Result: ResultFinishedWithFatalError, Error: strPtr("boom")}); err != nil {
		t.Fatalf("failed to complete cook: %v", err)
	}

	tests := []struct {
		name   string
		filter CookFilter
		want   []string
	}{
		{"all newest first", CookFilter{}, []string{"b1", "a2", "a1"}},
		{"by asset", CookFilter{AssetName: strPtr("rock")}, []string{"a2", "a1"}},
		{"by result", CookFilter{Result: strPtr(ResultFinishedWithFatalError)}, []string{"a2"}},
		{"since", CookFilter{Since: timePtr(base.Add(30 * time.Minute))}, []string{"b1", "a2"}},
		{"paged", CookFilter{Limit: 1, Offset: 1}, []string{"a2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListCooks(ctx, tt.filter)
			if err != nil {
				t.Fatalf("failed to list cooks: %v", err)
			}
			var ids []string
			for _, c := range got {
				ids = append(ids, c.ID)
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, ids)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Fatalf("expected %v, got %v", tt.want, ids)
				}
			}
		})
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func TestPruneCooks(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_ = store.RecordCookStarted(ctx, &Cook{ID: "old", AssetName: "rock", StartedAt: now.Add(-48 * time.Hour)})
	_ = store.RecordCookStarted(ctx, &Cook{ID: "new", AssetName: "rock", StartedAt: now})

	n, err := store.PruneCooks(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("failed to prune: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned cook, got %d", n)
	}
	if _, err := store.GetCook(ctx, "new"); err != nil {
		t.Errorf("recent cook was pruned: %v", err)
	}
}

func TestTransitions(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	steps := [][2]string{
		{"need_instantiation", "instantiating"},
		{"instantiating", "pre_cook"},
		{"pre_cook", "cooking"},
		{"cooking", "post_cook"},
	}
	for _, s := range steps {
		tr := &Transition{AssetName: "rock", FromState: s[0], ToState: s[1], Result: ResultWorking}
		if err := store.RecordTransition(ctx, tr); err != nil {
			t.Fatalf("failed to record transition: %v", err)
		}
		if tr.ID == 0 {
			t.Error("expected transition id to be set")
		}
	}
	_ = store.RecordTransition(ctx, &Transition{AssetName: "tree", FromState: "none", ToState: "need_rebuild"})

	all, err := store.ListTransitions(ctx, "rock", 0)
	if err != nil {
		t.Fatalf("failed to list transitions: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 transitions, got %d", len(all))
	}
	if all[0].ToState != "instantiating" || all[3].ToState != "post_cook" {
		t.Errorf("transitions out of order: %s ... %s", all[0].ToState, all[3].ToState)
	}

	last, err := store.ListTransitions(ctx, "rock", 2)
	if err != nil {
		t.Fatalf("failed to list transitions: %v", err)
	}
	if len(last) != 2 || last[0].ToState != "cooking" || last[1].ToState != "post_cook" {
		t.Errorf("unexpected recent transitions: %+v", last)
	}
}
