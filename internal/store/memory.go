package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tanmaysk001/Browser-Agent/api/schemas"
)

// InMemory keeps run records for the lifetime of the process.
type InMemory struct {
	mu      sync.RWMutex
	records []schemas.RunRecord
	log     *zap.Logger
}

var _ schemas.MemoryStore = (*InMemory)(nil)

func NewInMemory(logger *zap.Logger) *InMemory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemory{log: logger.Named("memory_store")}
}

func (m *InMemory) Remember(_ context.Context, rec schemas.RunRecord) error {
	rec.CreatedAt = createdAtOf(rec)
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.records {
		if existing.RunID == rec.RunID {
			m.records[i] = rec
			return nil
		}
	}
	m.records = append(m.records, rec)
	m.log.Debug("Run stored in long-term memory.", zap.String("run_id", rec.RunID), zap.Int("records", len(m.records)))
	return nil
}

// Recall orders notes the same way Store does: same task first, then newest.
func (m *InMemory) Recall(_ context.Context, task string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	records := append([]schemas.RunRecord(nil), m.records...)
	m.mu.RUnlock()

	sort.SliceStable(records, func(i, j int) bool {
		si, sj := records[i].Task == task, records[j].Task == task
		if si != sj {
			return si
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if len(records) > limit {
		records = records[:limit]
	}
	notes := make([]string, len(records))
	for i, rec := range records {
		notes[i] = Note(rec)
	}
	return notes, nil
}

func (m *InMemory) Close() {}

// Note condenses a run into the one-line hint shown to later runs.
func Note(rec schemas.RunRecord) string {
	status := "completed"
	if !rec.Completed {
		status = "did not complete"
	}
	takeaway := strings.TrimSpace(rec.Memory)
	if takeaway == "" {
		takeaway = strings.TrimSpace(rec.Output)
	}
	return strings.TrimSpace(fmt.Sprintf("Task %q %s after %d steps. %s", rec.Task, status, rec.Iterations, takeaway))
}

func createdAtOf(rec schemas.RunRecord) time.Time {
	if rec.CreatedAt.IsZero() {
		return time.Now().UTC()
	}
	return rec.CreatedAt.UTC()
}
