package stores

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stackfleet/composer/pkg/engine"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := Open(context.Background(), Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

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
		t.Error("expected health check to fail before Init")
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

func TestNewSQLiteStore_RequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Error("expected error for empty path")
	}
}

// TestStoreMigrations tests database migrations
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	tables := []string{"runs", "stack_results", "audit"}
	for _, table := range tables {
		query := "SELECT COUNT(*) FROM " + table
		var count int
		err := store.db.QueryRowContext(ctx, query).Scan(&count)
		if err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}

	// running again is a no-op
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("second migration failed: %v", err)
	}
}

func TestOpen_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	store, err := Open(context.Background(), Config{Path: path})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	// reopening an existing database keeps the schema
	store, err = Open(context.Background(), Config{Path: path})
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer store.Close()

	runs, err := store.ListRuns(context.Background(), 10, 0)
	if err != nil || len(runs) != 0 {
		t.Errorf("expected empty history, got %v (err=%v)", runs, err)
	}
}

// TestRunCRUD tests Run CRUD operations
func TestRunCRUD(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	done := now.Add(3 * time.Second)

	run := &Run{
		ID:          "8f1c2a44-run-001",
		Operation:   "up",
		Target:      "category test",
		Status:      "partial",
		StartedAt:   now,
		CompletedAt: &done,
		Succeeded:   2,
		Failed:      1,
	}

	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	retrieved, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if retrieved.Operation != "up" || retrieved.Target != "category test" || retrieved.Status != "partial" {
		t.Errorf("unexpected run: %+v", retrieved)
	}
	if retrieved.Succeeded != 2 || retrieved.Failed != 1 {
		t.Errorf("expected 2/1, got %d/%d", retrieved.Succeeded, retrieved.Failed)
	}
	if !retrieved.StartedAt.Equal(now) {
		t.Errorf("expected StartedAt %v, got %v", now, retrieved.StartedAt)
	}
	if retrieved.Duration() != 3*time.Second {
		t.Errorf("expected 3s duration, got %v", retrieved.Duration())
	}

	// prefix lookup
	byPrefix, err := store.GetRun(ctx, "8f1c")
	if err != nil || byPrefix.ID != run.ID {
		t.Errorf("expected prefix lookup to find run, got %v (err=%v)", byPrefix, err)
	}

	if err := store.DeleteRun(ctx, run.ID); err != nil {
		t.Fatalf("failed to delete run: %v", err)
	}

	_, err = store.GetRun(ctx, run.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.DeleteRun(ctx, run.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestGetRun_AmbiguousPrefix(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"abc-1", "abc-2"} {
		if err := store.CreateRun(ctx, &Run{ID: id, Operation: "up", Target: "all stacks", Status: "succeeded", StartedAt: time.Now()}); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
	}

	if _, err := store.GetRun(ctx, "abc"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("expected ambiguity error, got %v", err)
	}
	if r, err := store.GetRun(ctx, "abc-2"); err != nil || r.ID != "abc-2" {
		t.Errorf("expected exact match, got %v (err=%v)", r, err)
	}
}

func TestGetRun_PrefixIsLiteral(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.CreateRun(ctx, &Run{ID: "abc-1", Operation: "up", Target: "all stacks", Status: "succeeded", StartedAt: time.Now()}); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	tests := []struct {
		prefix string
		found  bool
	}{
		{"abc", true},
		{"abc-", true},
		{"%", false},
		{"a%", false},
		{"_bc", false},
		{"abc_1", false},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			run, err := store.GetRun(ctx, tt.prefix)
			if tt.found {
				if err != nil || run.ID != "abc-1" {
					t.Errorf("expected abc-1 for %q, got %v (err=%v)", tt.prefix, run, err)
				}
				return
			}
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound for %q, got %v (err=%v)", tt.prefix, run, err)
			}
		})
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"first", "second", "third"} {
		run := &Run{ID: id, Operation: "down", Target: "all stacks", Status: "succeeded", StartedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := store.CreateRun(ctx, run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
	}

	runs, err := store.ListRuns(ctx, 2, 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "third" || runs[1].ID != "second" {
		t.Errorf("unexpected order: %v", runIDs(runs))
	}

	runs, err = store.ListRuns(ctx, 2, 2)
	if err != nil || len(runs) != 1 || runs[0].ID != "first" {
		t.Errorf("unexpected second page: %v (err=%v)", runIDs(runs), err)
	}
}

func runIDs(runs []*Run) []string {
	ids := make([]string, 0, len(runs))
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestStackResults(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.CreateRun(ctx, &Run{ID: "run-1", Operation: "restart", Target: "stack web", Status: "failed", StartedAt: time.Now()}); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	msg := "failed to start stack web: exit 1"
	results := []*StackResult{
		{RunID: "run-1", Seq: 0, Stack: "web", Action: "stop", Success: true, DurationMs: 120},
		{RunID: "run-1", Seq: 1, Stack: "web", Action: "start", Success: false, Error: &msg, DurationMs: 900},
	}
	for _, r := range results {
		if err := store.AddStackResult(ctx, r); err != nil {
			t.Fatalf("failed to add result: %v", err)
		}
		if r.ID == 0 {
			t.Error("expected ID to be assigned")
		}
	}

	got, err := store.ListStackResults(ctx, "run-1")
	if err != nil {
		t.Fatalf("failed to list results: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].Action != "stop" || !got[0].Success || got[0].Error != nil {
		t.Errorf("unexpected first result: %+v", got[0])
	}
	if got[1].Success || got[1].Error == nil || *got[1].Error != msg {
		t.Errorf("unexpected second result: %+v", got[1])
	}

	// foreign key
	if err := store.AddStackResult(ctx, &StackResult{RunID: "missing", Stack: "x", Action: "start"}); err == nil {
		t.Error("expected foreign key violation")
	}

	// cascade
	if err := store.DeleteRun(ctx, "run-1"); err != nil {
		t.Fatalf("failed to delete run: %v", err)
	}
	got, err = store.ListStackResults(ctx, "run-1")
	if err != nil || len(got) != 0 {
		t.Errorf("expected results to be deleted with the run, got %d (err=%v)", len(got), err)
	}
}

func TestRecordRun(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	run := &engine.Run{
		ID:          "run-engine",
		Operation:   engine.OperationRestart,
		Target:      engine.TagTarget("dev"),
		Status:      engine.RunStatusPartial,
		StartedAt:   start,
		CompletedAt: start.Add(2 * time.Second),
		Outcomes: []engine.Outcome{
			{Stack: "hello", Action: engine.ActionStop, Success: true, Duration: 100 * time.Millisecond},
			{Stack: "stack-a", Action: engine.ActionStop, Success: true},
			{Stack: "hello", Action: engine.ActionStart, Success: true},
			{Stack: "stack-a", Action: engine.ActionStart, Success: false, Error: "boom"},
		},
	}

	var recorder engine.RunRecorder = store
	if err := recorder.RecordRun(ctx, run); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	got, err := store.GetRun(ctx, "run-engine")
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if got.Operation != "restart" || got.Status != string(engine.RunStatusPartial) {
		t.Errorf("unexpected run: %+v", got)
	}
	if got.Target != run.Target.String() {
		t.Errorf("expected target %q, got %q", run.Target.String(), got.Target)
	}
	if got.Succeeded != 1 || got.Failed != 1 {
		t.Errorf("expected 1 succeeded / 1 failed stack, got %d/%d", got.Succeeded, got.Failed)
	}

	results, err := store.ListStackResults(ctx, "run-engine")
	if err != nil {
		t.Fatalf("failed to list results: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if results[0].DurationMs != 100 || results[3].Error == nil || *results[3].Error != "boom" {
		t.Errorf("unexpected results: %+v %+v", results[0], results[3])
	}

	// duplicate run IDs roll back the whole record
	if err := store.RecordRun(ctx, run); err == nil {
		t.Error("expected duplicate run to fail")
	}
	results, _ = store.ListStackResults(ctx, "run-engine")
	if len(results) != 4 {
		t.Errorf("expected failed record to leave results untouched, got %d", len(results))
	}
}

func TestAuditEntries(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	target := "hello"
	details := `{"tags":["new"]}`
	entries := []*AuditEntry{
		{Action: AuditTagAdd, Actor: "ops", TargetID: &target, Details: &details, Timestamp: base},
		{Action: AuditCategorySet, Actor: "ops", TargetID: &target, Timestamp: base.Add(time.Minute)},
		{Action: AuditTagAdd, Actor: "dev", Timestamp: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		if err := store.CreateAuditEntry(ctx, e); err != nil {
			t.Fatalf("failed to create audit entry: %v", err)
		}
		if e.ID == 0 {
			t.Error("expected ID to be assigned")
		}
	}

	all, err := store.ListAuditEntries(ctx, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to list audit entries: %v", err)
	}
	if len(all) != 3 || all[0].Actor != "dev" {
		t.Errorf("expected newest first, got %d entries", len(all))
	}

	action := AuditTagAdd
	tagged, err := store.ListAuditEntries(ctx, &action, 10, 0)
	if err != nil {
		t.Fatalf("failed to list filtered audit entries: %v", err)
	}
	if len(tagged) != 2 {
		t.Fatalf("expected 2 tag.add entries, got %d", len(tagged))
	}
	last := tagged[1]
	if last.TargetID == nil || *last.TargetID != "hello" || last.Details == nil || *last.Details != details {
		t.Errorf("unexpected entry: %+v", last)
	}
}
