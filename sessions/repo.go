package sessions

import (
	"context"
	"time"
)

// Repo stores each session as a flat bag of string fields keyed by session id.
// Implementations must be safe for concurrent use.
type Repo interface {
	// Get returns the fields of a session. A missing session yields an empty map.
	Get(ctx context.Context, id string) (map[string]string, error)
	// Set writes the given fields and renews the session TTL.
	Set(ctx context.Context, id string, fields map[string]string, ttl time.Duration) error
	Remove(ctx context.Context, id string, keys ...string) error
	Purge(ctx context.Context, id string) error
	// Touch renews the TTL of an existing session.
	Touch(ctx context.Context, id string, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close() error
}
