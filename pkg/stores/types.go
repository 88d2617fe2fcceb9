package stores

import (
	"context"
	"database/sql"
	"time"
)

// Audit actions written by the CLI.
const (
	AuditTagAdd         = "tag.add"
	AuditTagRemove      = "tag.remove"
	AuditTagRename      = "tag.rename"
	AuditCategorySet    = "category.set"
	AuditCategoryRename = "category.rename"
)

// Run is a recorded lifecycle batch.
type Run struct {
	ID          string     `json:"id"`
	Operation   string     `json:"operation"` // up, down, restart
	Target      string     `json:"target"`    // e.g. "stack:web", "category:test"
	Status      string     `json:"status"`    // succeeded, partial, failed, empty
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Succeeded   int        `json:"succeeded"`
	Failed      int        `json:"failed"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Duration returns how long the run took, or zero if it never completed.
func (r *Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// StackResult is one start or stop action within a run.
type StackResult struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	Seq        int       `json:"seq"`
	Stack      string    `json:"stack"`
	Action     string    `json:"action"` // start, stop
	Success    bool      `json:"success"`
	Error      *string   `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// AuditEntry represents an audit trail entry
type AuditEntry struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`              // e.g. "tag.add", "category.rename"
	Actor     string    `json:"actor"`               // user running composer
	TargetID  *string   `json:"target_id,omitempty"` // stack, tag or category
	Details   *string   `json:"details,omitempty"`   // JSON blob
	Timestamp time.Time `json:"timestamp"`
}

// Store defines the interface for the history database
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
	HealthCheck(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)

	// Run operations
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*Run, error)
	DeleteRun(ctx context.Context, id string) error

	// Stack result operations
	AddStackResult(ctx context.Context, result *StackResult) error
	ListStackResults(ctx context.Context, runID string) ([]*StackResult, error)

	// Audit operations
	CreateAuditEntry(ctx context.Context, entry *AuditEntry) error
	ListAuditEntries(ctx context.Context, action *string, limit, offset int) ([]*AuditEntry, error)
}
