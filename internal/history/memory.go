package history

import (
	"fmt"
	"sync"
	"time"

	"hubsync/internal/hub"
)

// MemoryHistory is an in-memory hub.History. Use in tests or when no
// persistence is configured.
type MemoryHistory struct {
	mu      sync.Mutex
	nextID  int64
	records []hub.PushRecord
}

// NewMemoryHistory creates an empty in-memory history.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{nextID: 1}
}

func (h *MemoryHistory) Begin(operation string, startedAt time.Time) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.records = append(h.records, hub.PushRecord{
		ID:        id,
		Operation: operation,
		StartedAt: startedAt,
		Status:    "running",
	})
	return id, nil
}

func (h *MemoryHistory) Finish(id int64, finishedAt time.Time, status string, filesUploaded int64, errMsg string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.records {
		if h.records[i].ID == id {
			h.records[i].FinishedAt = finishedAt
			h.records[i].Status = status
			h.records[i].FilesUploaded = filesUploaded
			h.records[i].Error = errMsg
			return nil
		}
	}
	return fmt.Errorf("push record %d not found", id)
}

func (h *MemoryHistory) List(limit int) ([]hub.PushRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []hub.PushRecord
	for i := len(h.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, h.records[i])
	}
	return out, nil
}

func (h *MemoryHistory) Close() error { return nil }

// Compile-time check that MemoryHistory implements hub.History.
var _ hub.History = (*MemoryHistory)(nil)
