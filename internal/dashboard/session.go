package dashboard

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerbridge/recvdash/internal/aging"
)

// Session is one mounted view: its filter state and drill-down cache. Filter
// state is mutated only through ApplyFilter; the aggregation and drill-down
// layers never write it.
type Session struct {
	ID       uuid.UUID
	UserID   string
	mu       sync.Mutex
	filter   aging.FilterState
	drill    *DrillDown
	lastSeen time.Time
}

// Filter returns the session's current filter state.
func (s *Session) Filter() aging.FilterState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// ApplyFilter updates the filter state. A bucket selector change propagates to
// the drill-down cache as the new active bucket context, invalidating cached
// entries.
func (s *Session) ApplyFilter(state aging.FilterState) aging.FilterState {
	state = state.Normalize()
	s.mu.Lock()
	s.filter = state
	s.mu.Unlock()
	s.drill.SetBucketContext(state.Bucket)
	return state
}

// Drill exposes the session's drill-down cache.
func (s *Session) Drill() *DrillDown {
	return s.drill
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idle(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// SessionRegistry tracks mounted view sessions in memory. Sessions hold no
// durable state beyond the zero-visibility preference, which lives in the
// preference store, so losing the registry on restart only costs a remount.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	ledger   LedgerPort
	logger   *slog.Logger
	observer FetchObserver
	maxIdle  time.Duration
	now      func() time.Time
}

// NewSessionRegistry builds the registry.
func NewSessionRegistry(port LedgerPort, logger *slog.Logger, maxIdle time.Duration) *SessionRegistry {
	if maxIdle <= 0 {
		maxIdle = time.Hour
	}
	return &SessionRegistry{
		sessions: make(map[uuid.UUID]*Session),
		ledger:   port,
		logger:   logger,
		maxIdle:  maxIdle,
		now:      time.Now,
	}
}

// WithObserver attaches a fetch outcome observer to every future session's
// drill-down cache.
func (r *SessionRegistry) WithObserver(obs FetchObserver) {
	r.observer = obs
}

// Mount creates a session with the given initial filter state.
func (r *SessionRegistry) Mount(userID string, initial aging.FilterState) *Session {
	drill := NewDrillDown(r.ledger, r.logger)
	drill.observe = r.observer
	sess := &Session{
		ID:       uuid.New(),
		UserID:   userID,
		filter:   initial.Normalize(),
		drill:    drill,
		lastSeen: r.now(),
	}
	sess.drill.SetBucketContext(sess.filter.Bucket)

	r.mu.Lock()
	r.sessions[sess.ID] = sess
	r.mu.Unlock()
	r.evictIdle()
	return sess
}

// Lookup resolves a session by ID, refreshing its idle timer.
func (r *SessionRegistry) Lookup(id uuid.UUID) (*Session, bool) {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	r.mu.Unlock()
	if ok {
		sess.touch(r.now())
	}
	return sess, ok
}

// Unmount drops a session.
func (r *SessionRegistry) Unmount(id uuid.UUID) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

func (r *SessionRegistry) evictIdle() {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, sess := range r.sessions {
		if sess.idle(now) > r.maxIdle {
			delete(r.sessions, id)
		}
	}
}
