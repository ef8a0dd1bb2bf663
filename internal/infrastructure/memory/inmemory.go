package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/duragraph/duragraph/internal/domain/execution"
	pkguuid "github.com/duragraph/duragraph/internal/pkg/uuid"
)

type timestampedEntry struct {
	entry execution.MemoryEntry
	at    time.Time
}

// InMemoryAdapter is a process-local MemoryAdapter for tests and for hosts
// that run without Redis. Not safe across processes.
type InMemoryAdapter struct {
	mu      sync.Mutex
	entries map[string][]timestampedEntry
}

func NewInMemoryAdapter() *InMemoryAdapter {
	return &InMemoryAdapter{entries: make(map[string][]timestampedEntry)}
}

func (m *InMemoryAdapter) Store(entry execution.MemoryEntry) error {
	if entry.ID == "" {
		entry.ID = pkguuid.New()
	}
	sessionID, _ := entry.Metadata["sessionId"].(string)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[sessionID] = append(m.entries[sessionID], timestampedEntry{entry: entry, at: time.Now()})
	return nil
}

func (m *InMemoryAdapter) Query(q execution.MemoryQuery) ([]execution.MemoryEntry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	m.mu.Lock()
	all := append([]timestampedEntry(nil), m.entries[q.SessionID]...)
	m.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].at.After(all[j].at) })

	out := make([]execution.MemoryEntry, 0, limit)
	for _, te := range all {
		if q.Text != "" && !strings.Contains(strings.ToLower(te.entry.Content), strings.ToLower(q.Text)) {
			continue
		}
		if !matchesFilter(te.entry.Metadata, q.Filter) {
			continue
		}
		out = append(out, te.entry)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}
