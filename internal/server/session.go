package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"resumeform/internal/errors"
	"resumeform/internal/observability"
	"resumeform/internal/uploadform"

	"github.com/google/uuid"
)

// SessionCookie names the cookie holding the browser session ID
const SessionCookie = "resumeform_session"

// Session is one browser's upload form and the alerts it has not seen yet
type Session struct {
	ID      string
	Form    *uploadform.Form
	Notices *uploadform.NoticeRecorder

	lastSeen time.Time
}

// SessionStore keeps browser sessions in memory and evicts idle ones
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration

	client  uploadform.AnalysisClient
	metrics *observability.Metrics
	logger  *errors.Logger

	now       func() time.Time
	done      chan struct{}
	closeOnce sync.Once
}

// NewSessionStore creates a store and starts its eviction loop
func NewSessionStore(client uploadform.AnalysisClient, ttl time.Duration, metrics *observability.Metrics, logger *errors.Logger) *SessionStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	st := &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		client:   client,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
		done:     make(chan struct{}),
	}

	interval := max(min(ttl/2, time.Minute), time.Millisecond)
	go st.cleanupRoutine(interval)
	return st
}

// Acquire returns the session named by the request cookie, creating one and
// setting the cookie when it is missing or expired.
func (st *SessionStore) Acquire(w http.ResponseWriter, r *http.Request, secure bool) *Session {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if sess := st.touch(cookie.Value); sess != nil {
			return sess
		}
	}

	sess := st.create(r.Context())
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return sess
}

func (st *SessionStore) touch(id string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.sessions[id]
	if !ok || st.now().Sub(sess.lastSeen) > st.ttl {
		return nil
	}
	sess.lastSeen = st.now()
	return sess
}

func (st *SessionStore) create(ctx context.Context) *Session {
	notices := &uploadform.NoticeRecorder{}
	sess := &Session{
		ID:      uuid.NewString(),
		Notices: notices,
		Form: uploadform.New(st.client,
			uploadform.WithNotifier(notices),
			uploadform.WithLogger(st.logger)),
	}

	st.mu.Lock()
	sess.lastSeen = st.now()
	st.sessions[sess.ID] = sess
	st.mu.Unlock()

	st.metrics.SessionOpened(ctx)
	st.logger.Debug("Session created", "session_id", sess.ID)
	return sess
}

// Len returns the number of live sessions
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

func (st *SessionStore) cleanupRoutine(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			st.evictExpired()
		case <-st.done:
			return
		}
	}
}

// evictExpired drops sessions idle for longer than the TTL. A submission
// still running on an evicted form completes; only its result is lost.
func (st *SessionStore) evictExpired() int {
	st.mu.Lock()
	now := st.now()
	evicted := 0
	for id, sess := range st.sessions {
		if now.Sub(sess.lastSeen) > st.ttl {
			delete(st.sessions, id)
			evicted++
		}
	}
	remaining := len(st.sessions)
	st.mu.Unlock()

	for i := 0; i < evicted; i++ {
		st.metrics.SessionClosed(context.Background())
	}
	if evicted > 0 {
		st.logger.Debug("Session cleanup completed", "evicted", evicted, "remaining_sessions", remaining)
	}
	return evicted
}

// Close stops the eviction loop
func (st *SessionStore) Close() {
	st.closeOnce.Do(func() { close(st.done) })
}
