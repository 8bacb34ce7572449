// Package session tracks push connections: which types a client follows
// and the watermark it has caught up to.
package session

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session holds per-connection push state.
type Session struct {
	ID           string    `json:"id"`
	ClientID     string    `json:"client_id,omitempty"`
	Types        []string  `json:"types"`
	LastUpdate   int64     `json:"last_update"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`

	mu sync.Mutex
}

func newSession(clientID string, now time.Time) *Session {
	return &Session{
		ID:           uuid.New().String(),
		ClientID:     clientID,
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// Follow replaces the followed types; none means every type.
func (s *Session) Follow(types []string, lastUpdate int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Types = slices.Clone(types)
	s.LastUpdate = lastUpdate
}

// Followed returns the followed types; nil means every type.
func (s *Session) Followed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.Types)
}

// Wants reports whether changes of typ are sent to the session.
func (s *Session) Wants(typ string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Types) == 0 || slices.Contains(s.Types, typ)
}

// Advance records that the client has received changes up to seq.
func (s *Session) Advance(seq int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastUpdate = max(s.LastUpdate, seq)
}

// Watermark returns the last sequence number sent to the client.
func (s *Session) Watermark() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.LastUpdate
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.LastActiveAt = now
	s.mu.Unlock()
}

func (s *Session) expired(now time.Time, maxAge, idle time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.CreatedAt) > maxAge || now.Sub(s.LastActiveAt) > idle
}

// Manager handles session creation, lookup, and cleanup.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	maxAge      time.Duration
	idleTimeout time.Duration
	now         func() time.Time
}

// NewManager creates a session manager with the given timeouts.
func NewManager(maxAge, idleTimeout time.Duration) *Manager {
	return &Manager{
		sessions:    make(map[string]*Session),
		maxAge:      maxAge,
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

// Create creates a new session for a client and returns it.
func (m *Manager) Create(clientID string) *Session {
	s := newSession(clientID, m.now())
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get retrieves a session by ID and marks it active. Returns nil if not
// found or expired.
func (m *Manager) Get(id string) *Session {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	now := m.now()
	if s.expired(now, m.maxAge, m.idleTimeout) {
		m.Remove(id)
		return nil
	}
	s.touch(now)
	return s
}

// Touch marks a session active.
func (m *Manager) Touch(s *Session) { s.touch(m.now()) }

// Remove deletes a session.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Len returns the number of tracked sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Cleanup removes all expired and idle sessions and returns how many.
func (m *Manager) Cleanup() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.expired(now, m.maxAge, m.idleTimeout) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}
