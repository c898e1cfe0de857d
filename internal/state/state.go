// Package state holds the relay's observable in-memory state: broker
// connection, latest score, a window of recent scores and the last legacy
// reading. A single Container is shared by the broker and HTTP sides.
package state

import (
	"sync"
	"time"

	"github.com/okian/simon-relay/internal/domain/model"
	"github.com/okian/simon-relay/pkg/metrics"
)

const defaultRecentLimit = 10

// Snapshot is a point-in-time copy of the container. Safe to hand out.
type Snapshot struct {
	Connection       model.ConnectionState `json:"connection"`
	Connected        bool                  `json:"connected"`
	LastTransitionAt time.Time             `json:"lastTransitionAt"`
	LastError        string                `json:"lastError,omitempty"`
	LatestScore      *model.ScoreEvent     `json:"latestScore"`
	RecentScores     []model.ScoreEvent    `json:"recentScores"`
	LegacyScore      *model.LegacyReading  `json:"legacyScore"`
	ScoresReceived   int64                 `json:"scoresReceived"`
}

// Container is guarded by a RWMutex; the last completed write wins.
type Container struct {
	mu          sync.RWMutex
	conn        model.ConnectionState
	changedAt   time.Time
	lastErr     string
	latest      *model.ScoreEvent
	recent      []model.ScoreEvent // newest first
	recentLimit int
	legacy      *model.LegacyReading
	received    int64
}

// New returns a disconnected container keeping up to recentLimit scores.
func New(recentLimit int) *Container {
	if recentLimit <= 0 {
		recentLimit = defaultRecentLimit
	}
	return &Container{
		conn:        model.StateDisconnected,
		recentLimit: recentLimit,
		recent:      make([]model.ScoreEvent, 0, recentLimit),
	}
}

// SetConnection records a connection transition. err is the cause of a
// disconnect and is cleared on connect.
func (c *Container) SetConnection(s model.ConnectionState, at time.Time, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = s
	c.changedAt = at
	c.lastErr = ""
	if err != nil && !s.Connected() {
		c.lastErr = err.Error()
	}
}

// Connection returns the current connection state.
func (c *Container) Connection() model.ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// Connected reports whether the broker session is up.
func (c *Container) Connected() bool {
	return c.Connection().Connected()
}

// RecordScore makes e the latest score and pushes it onto the recent window.
func (c *Container) RecordScore(e model.ScoreEvent) {
	c.mu.Lock()
	latest := e
	c.latest = &latest
	c.received++
	if len(c.recent) == c.recentLimit {
		c.recent = c.recent[:c.recentLimit-1]
	}
	c.recent = append(c.recent, model.ScoreEvent{})
	copy(c.recent[1:], c.recent)
	c.recent[0] = e
	n := len(c.recent)
	c.mu.Unlock()

	metrics.UpdateLatestScore(e.Score)
	metrics.UpdateRecentScores(n)
}

// RecordLegacy replaces the legacy reading.
func (c *Container) RecordLegacy(r model.LegacyReading) {
	c.mu.Lock()
	c.legacy = &r
	c.mu.Unlock()

	metrics.UpdateLegacyScore(r.Value)
}

// Latest returns the most recent valid score, if any.
func (c *Container) Latest() (model.ScoreEvent, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.latest == nil {
		return model.ScoreEvent{}, false
	}
	return *c.latest, true
}

// Snapshot copies the current state.
func (c *Container) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Connection:       c.conn,
		Connected:        c.conn.Connected(),
		LastTransitionAt: c.changedAt,
		LastError:        c.lastErr,
		RecentScores:     make([]model.ScoreEvent, len(c.recent)),
		ScoresReceived:   c.received,
	}
	copy(s.RecentScores, c.recent)
	if c.latest != nil {
		latest := *c.latest
		s.LatestScore = &latest
	}
	if c.legacy != nil {
		legacy := *c.legacy
		s.LegacyScore = &legacy
	}
	return s
}
