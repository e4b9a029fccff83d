package sessions

import (
	"context"
	"sync"
	"time"

	bfferrors "github.com/jrsteele09/go-oidc-bff/internal/errors"
	"github.com/rs/zerolog/log"
)

var _ Repo = (*InMemoryRepo)(nil)

type memoryEntry struct {
	fields    map[string]string
	expiresAt time.Time
}

// InMemoryRepo is a mutex guarded session store for single instance deployments and tests
type InMemoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]*memoryEntry // sessionID -> fields
	now      func() time.Time
	closed   bool

	sweepInterval time.Duration
	stopSweep     chan struct{}
	sweepDone     chan struct{}
}

type InMemoryRepoOption func(*InMemoryRepo)

// WithClock overrides the clock used for expiry
func WithClock(now func() time.Time) InMemoryRepoOption {
	return func(r *InMemoryRepo) {
		r.now = now
	}
}

// WithSweepInterval starts a janitor that drops expired sessions every interval
// until Close
func WithSweepInterval(interval time.Duration) InMemoryRepoOption {
	return func(r *InMemoryRepo) {
		r.sweepInterval = interval
	}
}

// NewInMemoryRepo creates a new in-memory session repository
func NewInMemoryRepo(opts ...InMemoryRepoOption) *InMemoryRepo {
	r := &InMemoryRepo{
		sessions: make(map[string]*memoryEntry),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.sweepInterval > 0 {
		r.stopSweep = make(chan struct{})
		r.sweepDone = make(chan struct{})
		go r.sweep()
	}
	return r
}

func (r *InMemoryRepo) sweep() {
	defer close(r.sweepDone)
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopSweep:
			return
		case <-ticker.C:
			if removed := r.DeleteExpired(); removed > 0 {
				log.Debug().Int("removed", removed).Int("remaining", r.Len()).Msg("Expired sessions swept")
			}
		}
	}
}

// Get returns a copy of the stored fields
func (r *InMemoryRepo) Get(_ context.Context, id string) (map[string]string, error) {
	if id == "" {
		return nil, bfferrors.ErrInvalidSessionID
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, bfferrors.ErrSessionStoreClose
	}

	fields := make(map[string]string)
	entry, ok := r.sessions[id]
	if !ok || r.expired(entry) {
		return fields, nil
	}
	for k, v := range entry.fields {
		fields[k] = v
	}
	return fields, nil
}

func (r *InMemoryRepo) Set(_ context.Context, id string, fields map[string]string, ttl time.Duration) error {
	if id == "" {
		return bfferrors.ErrInvalidSessionID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return bfferrors.ErrSessionStoreClose
	}

	entry, ok := r.sessions[id]
	if !ok || r.expired(entry) {
		entry = &memoryEntry{fields: make(map[string]string)}
		r.sessions[id] = entry
	}
	for k, v := range fields {
		entry.fields[k] = v
	}
	entry.expiresAt = r.now().Add(ttl)
	return nil
}

func (r *InMemoryRepo) Remove(_ context.Context, id string, keys ...string) error {
	if id == "" {
		return bfferrors.ErrInvalidSessionID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return bfferrors.ErrSessionStoreClose
	}

	entry, ok := r.sessions[id]
	if !ok {
		return nil
	}
	for _, k := range keys {
		delete(entry.fields, k)
	}
	// Mirror redis, which drops a hash once its last field is gone
	if len(entry.fields) == 0 {
		delete(r.sessions, id)
	}
	return nil
}

func (r *InMemoryRepo) Purge(_ context.Context, id string) error {
	if id == "" {
		return bfferrors.ErrInvalidSessionID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return bfferrors.ErrSessionStoreClose
	}
	delete(r.sessions, id)
	return nil
}

func (r *InMemoryRepo) Touch(_ context.Context, id string, ttl time.Duration) error {
	if id == "" {
		return bfferrors.ErrInvalidSessionID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return bfferrors.ErrSessionStoreClose
	}

	entry, ok := r.sessions[id]
	if !ok || r.expired(entry) {
		return nil
	}
	entry.expiresAt = r.now().Add(ttl)
	return nil
}

func (r *InMemoryRepo) Ping(_ context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return bfferrors.ErrSessionStoreClose
	}
	return nil
}

// Close stops the janitor and drops every session. Later calls fail with
// ErrSessionStoreClose.
func (r *InMemoryRepo) Close() error {
	r.mu.Lock()
	alreadyClosed := r.closed
	r.closed = true
	r.sessions = make(map[string]*memoryEntry)
	r.mu.Unlock()

	if r.stopSweep != nil && !alreadyClosed {
		close(r.stopSweep)
		<-r.sweepDone
	}
	return nil
}

// Len counts stored entries, expired or not
func (r *InMemoryRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// DeleteExpired removes sessions whose TTL has passed and returns how many went
func (r *InMemoryRepo) DeleteExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, entry := range r.sessions {
		if r.expired(entry) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

func (r *InMemoryRepo) expired(entry *memoryEntry) bool {
	return !r.now().Before(entry.expiresAt)
}
