// Package context implements the per-user conversation ring buffer (C15):
// a bounded history of turns with TTL-based eviction, keyed by user_id.
package context

import (
	"sync"
	"time"

	"github.com/vigilfeed/vigilfeed/internal/usecase/qa/query"
)

// Clock is injectable so expiry comparisons are testable without sleeping.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Turn is one recorded (question, answer) pair.
type Turn struct {
	Query     string
	Answer    string
	Timestamp time.Time
	Sources   []string
}

type conversationState struct {
	turns      []Turn
	lastActive time.Time
}

// Manager keeps, per user_id, up to maxHistory most recent turns and
// evicts a user's context once idle for longer than ttl.
type Manager struct {
	mu         sync.Mutex
	byUser     map[string]*conversationState
	maxHistory int
	ttl        time.Duration
	clock      Clock
}

// Option configures a Manager at construction time.
type Option func(*Manager)

func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

func New(maxHistory int, ttl time.Duration, opts ...Option) *Manager {
	if maxHistory <= 0 {
		maxHistory = 5
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	m := &Manager{
		byUser:     map[string]*conversationState{},
		maxHistory: maxHistory,
		ttl:        ttl,
		clock:      realClock{},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// AddTurn appends a turn for user and drops the oldest if over cap.
func (m *Manager) AddTurn(userID string, t Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.Timestamp.IsZero() {
		t.Timestamp = m.clock.Now()
	}

	st, ok := m.byUser[userID]
	if !ok {
		st = &conversationState{}
		m.byUser[userID] = st
	}
	st.turns = append(st.turns, t)
	if len(st.turns) > m.maxHistory {
		st.turns = st.turns[len(st.turns)-m.maxHistory:]
	}
	st.lastActive = m.clock.Now()
}

// GetContext returns the chronologically ordered turns for userID, or nil
// if the user has no context or it has expired (an expired entry is
// evicted as a side effect).
func (m *Manager) GetContext(userID string) []Turn {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.byUser[userID]
	if !ok {
		return nil
	}
	if m.clock.Now().Sub(st.lastActive) > m.ttl {
		delete(m.byUser, userID)
		return nil
	}

	out := make([]Turn, len(st.turns))
	copy(out, st.turns)
	return out
}

// HistoryTurns adapts GetContext's turns to the query package's Turn shape
// for use with HistoryAwareQueryBuilder.
func (m *Manager) HistoryTurns(userID string) []query.Turn {
	turns := m.GetContext(userID)
	out := make([]query.Turn, len(turns))
	for i, t := range turns {
		out[i] = query.Turn{Query: t.Query, Answer: t.Answer}
	}
	return out
}

// CleanupExpired sweeps all users and evicts any context idle past ttl.
func (m *Manager) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	evicted := 0
	for userID, st := range m.byUser {
		if now.Sub(st.lastActive) > m.ttl {
			delete(m.byUser, userID)
			evicted++
		}
	}
	return evicted
}
