package repofakes

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-oidc-bff/sessions"
)

var _ sessions.Repo = (*FakeSessionRepo)(nil)

// FakeSessionRepo is an in-memory repo that records writes and can be told to fail.
type FakeSessionRepo struct {
	lock     sync.RWMutex
	sessions map[string]map[string]string
	ttls     map[string]time.Duration

	// Errors returned by every matching call while set
	GetErr    error
	SetErr    error
	RemoveErr error
	PurgeErr  error
	TouchErr  error

	// FailSetOnKey makes Set fail whenever the write contains this field
	FailSetOnKey string

	SetCalls   int
	PurgeCalls int
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{
		sessions: make(map[string]map[string]string),
		ttls:     make(map[string]time.Duration),
	}
}

// Seed stores fields for id without counting as a write
func (sr *FakeSessionRepo) Seed(id string, fields map[string]string) {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	stored := make(map[string]string, len(fields))
	for k, v := range fields {
		stored[k] = v
	}
	sr.sessions[id] = stored
}

// Fields returns a copy of what is stored for id
func (sr *FakeSessionRepo) Fields(id string) map[string]string {
	sr.lock.RLock()
	defer sr.lock.RUnlock()

	fields := make(map[string]string)
	for k, v := range sr.sessions[id] {
		fields[k] = v
	}
	return fields
}

func (sr *FakeSessionRepo) TTL(id string) time.Duration {
	sr.lock.RLock()
	defer sr.lock.RUnlock()
	return sr.ttls[id]
}

func (sr *FakeSessionRepo) Get(_ context.Context, id string) (map[string]string, error) {
	sr.lock.RLock()
	defer sr.lock.RUnlock()

	if sr.GetErr != nil {
		return nil, sr.GetErr
	}
	fields := make(map[string]string)
	for k, v := range sr.sessions[id] {
		fields[k] = v
	}
	return fields, nil
}

func (sr *FakeSessionRepo) Set(_ context.Context, id string, fields map[string]string, ttl time.Duration) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	sr.SetCalls++
	if sr.SetErr != nil {
		return sr.SetErr
	}
	if _, ok := fields[sr.FailSetOnKey]; ok && sr.FailSetOnKey != "" {
		return errFailSetOnKey
	}

	stored, ok := sr.sessions[id]
	if !ok {
		stored = make(map[string]string)
		sr.sessions[id] = stored
	}
	for k, v := range fields {
		stored[k] = v
	}
	sr.ttls[id] = ttl
	return nil
}

func (sr *FakeSessionRepo) Remove(_ context.Context, id string, keys ...string) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	if sr.RemoveErr != nil {
		return sr.RemoveErr
	}
	for _, k := range keys {
		delete(sr.sessions[id], k)
	}
	return nil
}

func (sr *FakeSessionRepo) Purge(_ context.Context, id string) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	sr.PurgeCalls++
	if sr.PurgeErr != nil {
		return sr.PurgeErr
	}
	delete(sr.sessions, id)
	delete(sr.ttls, id)
	return nil
}

func (sr *FakeSessionRepo) Touch(_ context.Context, id string, ttl time.Duration) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	if sr.TouchErr != nil {
		return sr.TouchErr
	}
	if _, ok := sr.sessions[id]; ok {
		sr.ttls[id] = ttl
	}
	return nil
}

func (sr *FakeSessionRepo) Ping(context.Context) error {
	sr.lock.RLock()
	defer sr.lock.RUnlock()
	return sr.GetErr
}

func (sr *FakeSessionRepo) Close() error {
	return nil
}

type fakeError string

func (e fakeError) Error() string { return string(e) }

const errFailSetOnKey = fakeError("fake session repo: injected set failure")
