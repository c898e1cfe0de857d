package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/simon-relay/internal/domain/model"
)

// Memory keeps records in process. Used by tests and store_driver=memory.
type Memory struct {
	mu      sync.RWMutex
	records []model.ScoreRecord
	closed  bool
	now     func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{now: func() time.Time { return time.Now().UTC() }}
}

// Name implements Store.
func (m *Memory) Name() string { return "memory" }

// Save implements Store.
func (m *Memory) Save(_ context.Context, rec *model.ScoreRecord) (err error) {
	start := time.Now()
	defer func() { observe(m.Name(), "save", start, err) }()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if err := prepare(rec, m.now()); err != nil {
		return err
	}
	m.records = append(m.records, *rec)
	return nil
}

// FindAllOrderedByDateDescending implements Store. Records with equal dates
// are returned most recently saved first.
func (m *Memory) FindAllOrderedByDateDescending(_ context.Context, limit int) ([]model.ScoreRecord, error) {
	start := time.Now()
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		observe(m.Name(), "find", start, ErrClosed)
		return nil, ErrClosed
	}
	out := make([]model.ScoreRecord, len(m.records))
	for i, r := range m.records {
		out[len(out)-1-i] = r
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	observe(m.Name(), "find", start, nil)
	return out, nil
}

// Count implements Store.
func (m *Memory) Count(context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrClosed
	}
	return int64(len(m.records)), nil
}

// Close implements Store.
func (m *Memory) Close(context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
