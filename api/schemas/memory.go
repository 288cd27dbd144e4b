package schemas

import (
	"context"
	"time"
)

// RunRecord summarizes a finished run for long-term memory.
type RunRecord struct {
	RunID      string    `json:"run_id"`
	Task       string    `json:"task"`
	Output     string    `json:"output"`
	Memory     string    `json:"memory"`
	Iterations int       `json:"iterations"`
	Completed  bool      `json:"completed"`
	CreatedAt  time.Time `json:"created_at"`
}

// MemoryStore persists what the agent learned across runs.
type MemoryStore interface {
	// Recall returns up to limit notes relevant to task, most recent first.
	Recall(ctx context.Context, task string, limit int) ([]string, error)
	// Remember stores the outcome of a run.
	Remember(ctx context.Context, rec RunRecord) error
	Close()
}
