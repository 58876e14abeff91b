package editor

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/drawmap/backend/internal/store"
)

// MaxSessions limits concurrent editor sessions.
const MaxSessions = 32

// ErrTooManySessions is returned by Open when the session cap is reached
// and no idle session could be reclaimed.
var ErrTooManySessions = errors.New("too many open editor sessions")

// SessionMaxAge is how long an idle session is kept before cleanup.
const SessionMaxAge = 30 * time.Minute

// Session binds an editor to a session ID and tracks last access for
// idle cleanup.
type Session struct {
	ID           string
	Editor       *Editor
	CreatedAt    time.Time
	LastAccessed time.Time
}

// Manager owns the active editor sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	store    *store.Store
	persist  Persister
	frame    time.Duration
	onPaint  func(sessionID string)
}

// NewManager creates a session manager. onPaint, when non-nil, receives
// coalesced repaint notifications per session.
func NewManager(st *store.Store, persist Persister, frame time.Duration, onPaint func(sessionID string)) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		store:    st,
		persist:  persist,
		frame:    frame,
		onPaint:  onPaint,
	}
}

// Open starts a new editing session on the owner. Closing the session
// without saving discards in-progress geometry.
func (m *Manager) Open(ref store.OwnerRef, width, height float64) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= MaxSessions {
		m.cleanupLocked(SessionMaxAge)
		if len(m.sessions) >= MaxSessions {
			return nil, ErrTooManySessions
		}
	}

	id := uuid.New().String()
	var redraw *Redraw
	if m.onPaint != nil {
		paint := m.onPaint
		redraw = NewRedraw(m.frame, func() { paint(id) })
	}
	ed, err := Open(m.store, m.persist, ref, width, height, redraw)
	if err != nil {
		if redraw != nil {
			redraw.Close()
		}
		return nil, err
	}

	now := time.Now()
	sess := &Session{ID: id, Editor: ed, CreatedAt: now, LastAccessed: now}
	m.sessions[id] = sess
	return sess, nil
}

// Get returns a session and refreshes its last-accessed time.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if ok {
		sess.LastAccessed = time.Now()
	}
	return sess, ok
}

// Close discards a session without saving.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return false
	}
	if sess.Editor.redraw != nil {
		sess.Editor.redraw.Close()
	}
	delete(m.sessions, id)
	return true
}

// CleanupOldSessions drops sessions idle for longer than maxAge.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cleanupLocked(maxAge)
}

func (m *Manager) cleanupLocked(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, sess := range m.sessions {
		if sess.LastAccessed.Before(cutoff) {
			if sess.Editor.redraw != nil {
				sess.Editor.redraw.Close()
			}
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
