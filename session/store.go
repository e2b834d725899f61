// Package session holds per-conversation order state: at most one live
// order preview and at most one pending prescription per session.
package session

import (
	"sync"
	"time"

	"github.com/pharmaflow-project/pharmacy-multi-agent/types"
)

// DefaultTTL is how long idle session state survives before the sweeper
// reclaims it.
const DefaultTTL = 30 * time.Minute

// Session is the mutable state of one conversation. Access only happens
// inside Store.WithSession, which holds the per-session lock, so
// preview/pending transitions are linearizable per session.
type Session struct {
	mu        sync.Mutex
	preview   *types.OrderPreview
	pending   *types.PendingPrescription
	updatedAt time.Time
}

// Preview returns the live order preview, or nil.
func (s *Session) Preview() *types.OrderPreview {
	return s.preview
}

// SetPreview installs the live preview, superseding any earlier one.
func (s *Session) SetPreview(p *types.OrderPreview) {
	s.preview = p
}

// ClearPreview removes the live preview.
func (s *Session) ClearPreview() {
	s.preview = nil
}

// Pending returns the pending prescription, or nil.
func (s *Session) Pending() *types.PendingPrescription {
	return s.pending
}

// SetPending installs the pending prescription snapshot.
func (s *Session) SetPending(p *types.PendingPrescription) {
	s.pending = p
}

// MarkUploaded flags the pending prescription as uploaded and records the
// verification outcome.
func (s *Session) MarkUploaded(verified bool) {
	if s.pending != nil {
		s.pending.Uploaded = true
		s.pending.Verified = verified
	}
}

// ClearPending removes the pending prescription.
func (s *Session) ClearPending() {
	s.pending = nil
}

// Store keeps session state keyed by session id. The outer lock only
// guards the map; each session carries its own mutex so slow work in one
// session never blocks another.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewStore creates a session store with the given idle TTL. A TTL of zero
// falls back to DefaultTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		stopCh:   make(chan struct{}),
	}
	go s.sweep()
	return s
}

// WithSession runs fn while holding the session's lock, creating the
// session on first use. State mutations in fn are atomic with respect to
// other callers of the same session id.
func (s *Store) WithSession(sessionID string, fn func(*Session) error) error {
	sess := s.obtain(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if s.expired(sess) {
		// Stale state behaves as absent.
		sess.preview = nil
		sess.pending = nil
	}
	err := fn(sess)
	sess.updatedAt = time.Now()
	return err
}

// GetPreview returns a session's live preview without mutating anything.
func (s *Store) GetPreview(sessionID string) (*types.OrderPreview, bool) {
	var preview *types.OrderPreview
	_ = s.WithSession(sessionID, func(sess *Session) error {
		preview = sess.Preview()
		return nil
	})
	return preview, preview != nil
}

// GetPending returns a session's pending prescription without mutating
// anything.
func (s *Store) GetPending(sessionID string) (*types.PendingPrescription, bool) {
	var pending *types.PendingPrescription
	_ = s.WithSession(sessionID, func(sess *Session) error {
		pending = sess.Pending()
		return nil
	})
	return pending, pending != nil
}

// Close stops the background sweeper.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *Store) obtain(sessionID string) *Session {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok = s.sessions[sessionID]; ok {
		return sess
	}
	sess = &Session{updatedAt: time.Now()}
	s.sessions[sessionID] = sess
	return sess
}

func (s *Store) expired(sess *Session) bool {
	return !sess.updatedAt.IsZero() && time.Since(sess.updatedAt) > s.ttl
}

// sweep periodically drops sessions idle past the TTL.
func (s *Store) sweep() {
	interval := s.ttl / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.mu.Lock()
			for id, sess := range s.sessions {
				if s.expired(sess) {
					delete(s.sessions, id)
				}
			}
			s.mu.Unlock()
		}
	}
}
