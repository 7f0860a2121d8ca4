package stores

import (
	"context"
	"time"
)

// Cook results as recorded in the history. They mirror the asset state results.
const (
	ResultWorking                = "working"
	ResultSuccess                = "success"
	ResultFinishedWithError      = "finished_with_error"
	ResultFinishedWithFatalError = "finished_with_fatal_error"
	ResultAborted                = "aborted"
)

// Cook is one cook of one asset instance.
type Cook struct {
	ID          string     `json:"id"`
	AssetName   string     `json:"asset_name"`
	NodeID      int32      `json:"node_id"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// State is the final engine cook state, e.g. "ready_with_cook_errors".
	State      string  `json:"state"`
	Result     string  `json:"result"`
	DurationMS int64   `json:"duration_ms"`
	CookCount  int     `json:"cook_count"`
	CookLog    *string `json:"cook_log,omitempty"`
	Error      *string `json:"error,omitempty"`
}

// CookCompletion carries what is known when a cook ends.
type CookCompletion struct {
	State     string
	Result    string
	CookCount int
	CookLog   *string
	Error     *string
}

// Transition is one asset state change.
type Transition struct {
	ID        int64     `json:"id"`
	AssetName string    `json:"asset_name"`
	FromState string    `json:"from_state"`
	ToState   string    `json:"to_state"`
	Result    string    `json:"result"`
	At        time.Time `json:"at"`
}

// CookFilter narrows ListCooks. Nil fields match everything.
type CookFilter struct {
	AssetName *string
	Result    *string
	Since     *time.Time
	Limit     int
	Offset    int
}

// Store defines the interface for the cook history
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Cook operations
	RecordCookStarted(ctx context.Context, cook *Cook) error
	RecordCookCompleted(ctx context.Context, id string, c CookCompletion) error
	GetCook(ctx context.Context, id string) (*Cook, error)
	ListCooks(ctx context.Context, filter CookFilter) ([]*Cook, error)
	PruneCooks(ctx context.Context, olderThan time.Time) (int64, error)

	// Transition operations
	RecordTransition(ctx context.Context, t *Transition) error
	ListTransitions(ctx context.Context, assetName string, limit int) ([]*Transition, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
