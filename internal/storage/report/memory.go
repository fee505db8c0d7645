package report

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/minleaf/sieve/internal/core"
)

// MemoryStore is an in-memory report store bounded to maxSize dates.
type MemoryStore struct {
	records map[string]*Record
	dates   []string // sorted ascending
	maxSize int
	mu      sync.RWMutex
	counter int64
}

// NewMemoryStore creates an in-memory store keeping at most maxSize
// run dates. When full, saving a new date evicts the oldest one.
func NewMemoryStore(maxSize int) *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record, maxSize),
		maxSize: maxSize,
	}
}

// Save stores doc under runDate, replacing any record already held for
// that date.
func (m *MemoryStore) Save(ctx context.Context, runDate string, doc map[string]any) (*Record, error) {
	if runDate == "" {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("report run date is empty"))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.counter++
	rec := &Record{
		ID:         fmt.Sprintf("rpt_%d_%d", time.Now().UnixNano(), m.counter),
		RunDate:    runDate,
		ReceivedAt: time.Now(),
		Inserted:   resultCount(doc),
		Document:   doc,
	}

	if _, exists := m.records[runDate]; !exists {
		i := sort.SearchStrings(m.dates, runDate)
		m.dates = append(m.dates, "")
		copy(m.dates[i+1:], m.dates[i:])
		m.dates[i] = runDate
	}
	m.records[runDate] = rec

	// Evict oldest dates when over capacity
	for len(m.dates) > m.maxSize {
		oldest := m.dates[0]
		m.dates = m.dates[1:]
		delete(m.records, oldest)
	}

	out := *rec
	return &out, nil
}

// Latest returns the record with the most recent run date.
func (m *MemoryStore) Latest(ctx context.Context) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.dates) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no reports stored"))
	}
	out := *m.records[m.dates[len(m.dates)-1]]
	return &out, nil
}

// ByDate returns the record for one run date.
func (m *MemoryStore) ByDate(ctx context.Context, runDate string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[runDate]
	if !ok {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no report for %s", runDate))
	}
	out := *rec
	return &out, nil
}

// Dates returns the held run dates, newest first.
func (m *MemoryStore) Dates(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, len(m.dates))
	for i, d := range m.dates {
		out[len(m.dates)-1-i] = d
	}
	return out, nil
}

// Count returns the number of records held.
func (m *MemoryStore) Count(ctx context.Context) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func resultCount(doc map[string]any) int {
	switch results := doc["results"].(type) {
	case []any:
		return len(results)
	case []map[string]any:
		return len(results)
	default:
		return 0
	}
}
