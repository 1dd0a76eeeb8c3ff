package service

import (
	"context"
	"sync"
	"time"

	appErrors "github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/pkg/errors"
)

// SessionLocks serializes seat mutations per session. Different sessions never
// block each other; acquisition is retried a bounded number of times before
// surfacing as Busy, the single transient failure class in the system.
type SessionLocks struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	sem  chan struct{}
	refs int
}

func NewSessionLocks() *SessionLocks {
	return &SessionLocks{slots: make(map[string]*lockSlot)}
}

func (l *SessionLocks) slot(sessionID string) *lockSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[sessionID]
	if !ok {
		s = &lockSlot{sem: make(chan struct{}, 1)}
		l.slots[sessionID] = s
	}
	s.refs++
	return s
}

func (l *SessionLocks) unref(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[sessionID]
	if !ok {
		return
	}
	s.refs--
	if s.refs <= 0 {
		delete(l.slots, sessionID)
	}
}

// Acquire takes the per-session lock, waiting retryWait per attempt for up to
// retries+1 attempts. The returned release function must be called exactly once.
func (l *SessionLocks) Acquire(ctx context.Context, sessionID string, retries int, retryWait time.Duration) (func(), error) {
	if retries < 0 {
		retries = 0
	}
	if retryWait <= 0 {
		retryWait = 50 * time.Millisecond
	}

	s := l.slot(sessionID)
	timer := time.NewTimer(retryWait)
	defer timer.Stop()

	for attempt := 0; attempt <= retries; attempt++ {
		select {
		case s.sem <- struct{}{}:
			return func() {
				<-s.sem
				l.unref(sessionID)
			}, nil
		case <-ctx.Done():
			l.unref(sessionID)
			return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrBusy.Code, appErrors.ErrBusy.Status, appErrors.ErrBusy.Message)
		case <-timer.C:
			timer.Reset(retryWait)
		}
	}

	l.unref(sessionID)
	return nil, appErrors.Clone(appErrors.ErrBusy, "")
}
