package store

import (
	"context"
	"sync"
	"time"

	"github.com/dunamismax/stylize/internal/form"
	"github.com/dunamismax/stylize/internal/id"
)

// Session is one browser tab worth of form state.
type Session struct {
	ID         string
	Controller *form.Controller

	mu       sync.Mutex
	alert    string
	resultID string
	result   *form.Result
	lastSeen time.Time
}

func (s *Session) SetAlert(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alert = msg
}

// TakeAlert returns the pending alert and clears it.
func (s *Session) TakeAlert() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := s.alert
	s.alert = ""
	return msg
}

// PublishResult stores res under a fresh id. The previous result id stops
// resolving.
func (s *Session) PublishResult(res form.Result) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishLocked(&res)
	return s.resultID
}

func (s *Session) ClearResult() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

// SyncResult points the result slot at the controller's current output and
// returns the live result id. Call it after every Submit: whichever submit
// completed last owns the output, so the final sync always agrees with it.
func (s *Session) SyncResult() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.Controller.Output()
	switch out.State {
	case form.StateImage:
		if out.Result != nil && out.Result != s.result {
			s.publishLocked(out.Result)
		}
	case form.StatePlaceholder, form.StateIdle:
		s.clearLocked()
	}
	return s.resultID
}

func (s *Session) publishLocked(res *form.Result) {
	s.resultID = id.New()
	s.result = res
}

func (s *Session) clearLocked() {
	s.resultID = ""
	s.result = nil
}

func (s *Session) Result(resultID string) (form.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil || resultID == "" || resultID != s.resultID {
		return form.Result{}, false
	}
	return *s.result, true
}

func (s *Session) CurrentResultID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resultID
}

type SessionStore struct {
	ttl           time.Duration
	newController func() *form.Controller
	now           func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionStore(ttl time.Duration, newController func() *form.Controller) *SessionStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SessionStore{
		ttl:           ttl,
		newController: newController,
		now:           time.Now,
		sessions:      make(map[string]*Session),
	}
}

func (s *SessionStore) Create() *Session {
	sess := &Session{
		ID:         id.New(),
		Controller: s.newController(),
		lastSeen:   s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return sess
}

// Get returns a live session and refreshes its idle timer.
func (s *SessionStore) Get(sessionID string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}

	now := s.now()
	sess.mu.Lock()
	expired := now.Sub(sess.lastSeen) > s.ttl
	if !expired {
		sess.lastSeen = now
	}
	sess.mu.Unlock()

	if expired {
		delete(s.sessions, sessionID)
		return nil, false
	}
	return sess, true
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep drops idle sessions and reports how many were removed.
func (s *SessionStore) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, sess := range s.sessions {
		sess.mu.Lock()
		idle := now.Sub(sess.lastSeen)
		sess.mu.Unlock()
		if idle > s.ttl {
			delete(s.sessions, key)
			removed++
		}
	}
	return removed
}

func (s *SessionStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
