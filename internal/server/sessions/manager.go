package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/vaultgate/internal/common"
	"github.com/dmitrijs2005/vaultgate/internal/logging"
	"github.com/dmitrijs2005/vaultgate/internal/server/ledger"
	"github.com/dmitrijs2005/vaultgate/internal/timex"
	"github.com/google/uuid"
)

const DefaultDuration = 300 * time.Second

// Manager owns every session of the process.
//
// Ended sessions are kept for one extra session duration so that callers
// holding their id get common.ErrSessionExpired rather than a bare not
// found.
type Manager struct {
	duration time.Duration
	clock    timex.Clock
	logger   logging.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	hooks    []func(*Session, State)
}

func NewManager(duration time.Duration, clock timex.Clock, logger logging.Logger) *Manager {
	if duration <= 0 {
		duration = DefaultDuration
	}
	if clock == nil {
		clock = timex.SystemClock
	}
	return &Manager{
		duration: duration,
		clock:    clock,
		logger:   logger.With("module", "sessions"),
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Duration() time.Duration { return m.duration }

// OnTerminate registers fn to run after a session ends. Hooks run outside
// the session lock.
func (m *Manager) OnTerminate(fn func(*Session, State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, fn)
}

// Start opens a session over catalog. unlocked seeds the set of assets the
// vault has already sold.
func (m *Manager) Start(catalog *ledger.Catalog, unlocked []string) *Session {
	now := m.clock()
	s := &Session{
		ID:        uuid.NewString(),
		VaultID:   catalog.VaultID,
		StartedAt: now,
		ExpiresAt: now.Add(m.duration),
		Catalog:   catalog,
		clock:     m.clock,
		state:     StateActive,
		cart: Cart{
			Selection: &ledger.Selection{},
			Unlocked:  ledger.NewSet(unlocked...),
		},
		done:   make(chan struct{}),
		onStop: m.ended,
	}

	m.mu.Lock()
	m.sweepLocked(now)
	m.sessions[s.ID] = s
	m.mu.Unlock()

	// Lock so that a very short timer cannot fire before s.timer is set.
	s.mu.Lock()
	s.timer = time.AfterFunc(m.duration, func() {
		if s.terminate(StateExpired) {
			m.logger.Debug(context.Background(), "session timer fired", "session_id", s.ID)
		}
	})
	s.mu.Unlock()

	m.logger.Info(context.Background(), "session started",
		"session_id", s.ID, "vault_id", s.VaultID, "expires_at", s.ExpiresAt)
	return s
}

// Get returns a live session. Ended or overdue sessions yield
// common.ErrSessionExpired, unknown ids common.ErrSessionNotFound.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, common.ErrSessionNotFound
	}
	if s.State() != StateActive {
		return nil, common.ErrSessionExpired
	}
	if s.IsExpired(m.clock()) {
		s.terminate(StateExpired)
		return nil, common.ErrSessionExpired
	}
	return s, nil
}

// IsExpired reports whether session s is past its deadline at now.
func (m *Manager) IsExpired(s *Session, now time.Time) bool {
	return s.IsExpired(now)
}

// Terminate ends s with reason. Calling it on an ended session is a no-op.
func (m *Manager) Terminate(s *Session, reason State) bool {
	if reason == StateActive {
		reason = StateExited
	}
	return s.terminate(reason)
}

// TerminateAll ends every live session, used on shutdown.
func (m *Manager) TerminateAll() int {
	m.mu.RLock()
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.mu.RUnlock()

	n := 0
	for _, s := range live {
		if s.terminate(StateExited) {
			n++
		}
	}
	return n
}

// Active counts sessions that have not ended.
func (m *Manager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.sessions {
		if s.State() == StateActive {
			n++
		}
	}
	return n
}

func (m *Manager) ended(s *Session, reason State) {
	m.logger.Info(context.Background(), "session ended",
		"session_id", s.ID, "vault_id", s.VaultID, "reason", string(reason))

	m.mu.RLock()
	hooks := append([]func(*Session, State){}, m.hooks...)
	m.mu.RUnlock()
	for _, fn := range hooks {
		fn(s, reason)
	}
}

// sweepLocked drops tombstones older than one session duration.
func (m *Manager) sweepLocked(now time.Time) {
	for id, s := range m.sessions {
		s.mu.Lock()
		stale := s.state != StateActive && now.Sub(s.endAt) > m.duration
		s.mu.Unlock()
		if stale {
			delete(m.sessions, id)
		}
	}
}
