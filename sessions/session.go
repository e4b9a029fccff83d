package sessions

import (
	"context"
	"time"

	bfferrors "github.com/jrsteele09/go-oidc-bff/internal/errors"
)

// Session is the per-request handle on one stored record. It is not safe for
// concurrent use; every request gets its own handle.
type Session struct {
	id    string
	repo  Repo
	ttl   time.Duration
	isNew bool

	loaded   bool
	record   Record
	modified bool
	purged   bool
}

// NewSession returns a handle for id. A new session has nothing stored yet
// so the first Load does not hit the repo.
func NewSession(id string, repo Repo, ttl time.Duration, isNew bool) *Session {
	return &Session{
		id:    id,
		repo:  repo,
		ttl:   ttl,
		isNew: isNew,
	}
}

func (s *Session) ID() string     { return s.id }
func (s *Session) Modified() bool { return s.modified }
func (s *Session) Purged() bool   { return s.purged }

// Load reads the record once per request. A missing session is an empty record.
func (s *Session) Load(ctx context.Context) (Record, error) {
	if s.loaded {
		return s.record.Clone(), nil
	}
	if s.id == "" {
		return Record{}, bfferrors.ErrInvalidSessionID
	}
	if !s.isNew {
		fields, err := s.repo.Get(ctx, s.id)
		if err != nil {
			return Record{}, bfferrors.Wrapf(err, "failed to read session")
		}
		rec, err := RecordFromFields(fields)
		if err != nil {
			return Record{}, err
		}
		s.record = rec
	}
	s.loaded = true
	return s.record.Clone(), nil
}

// Update applies mutate to the record and writes only what changed: new or
// changed fields with Set, cleared fields with Remove.
func (s *Session) Update(ctx context.Context, mutate func(*Record)) error {
	current, err := s.Load(ctx)
	if err != nil {
		return err
	}
	next := current.Clone()
	mutate(&next)

	changed, removed := diff(current, next)
	if len(changed) > 0 {
		if err := s.repo.Set(ctx, s.id, changed, s.ttl); err != nil {
			return bfferrors.Wrapf(err, "failed to write session fields")
		}
		s.modified = true
		s.purged = false
	}
	if len(removed) > 0 {
		if err := s.repo.Remove(ctx, s.id, removed...); err != nil {
			return bfferrors.Wrapf(err, "failed to remove session fields")
		}
		s.modified = true
	}
	s.record = next
	return nil
}

// Rotate moves the stored record to newID and deletes it under the old id.
// The handle follows the record, so the cookie written for this request
// carries newID.
func (s *Session) Rotate(ctx context.Context, newID string) error {
	if newID == "" || newID == s.id {
		return bfferrors.ErrInvalidSessionID
	}
	rec, err := s.Load(ctx)
	if err != nil {
		return err
	}

	fields := rec.Fields()
	if len(fields) > 0 {
		if err := s.repo.Set(ctx, newID, fields, s.ttl); err != nil {
			return bfferrors.Wrapf(err, "failed to write rotated session")
		}
		s.modified = true
		s.purged = false
	}
	oldID := s.id
	s.id = newID
	s.isNew = false

	if err := s.repo.Purge(ctx, oldID); err != nil {
		return bfferrors.Wrapf(err, "failed to purge previous session id")
	}
	return nil
}

// Purge deletes the whole record. The handle stays usable and reads as empty.
func (s *Session) Purge(ctx context.Context) error {
	s.loaded = true
	s.record = Record{}
	s.purged = true
	s.modified = false
	if err := s.repo.Purge(ctx, s.id); err != nil {
		return bfferrors.Wrapf(err, "failed to purge session")
	}
	return nil
}

// Live reports whether the session has stored state worth keeping a cookie for.
func (s *Session) Live() bool {
	if s.purged {
		return false
	}
	if s.modified {
		return true
	}
	return s.loaded && !s.isNew && !s.record.IsEmpty()
}

// Touch renews the store TTL of a live session.
func (s *Session) Touch(ctx context.Context) error {
	if !s.Live() {
		return nil
	}
	return s.repo.Touch(ctx, s.id, s.ttl)
}
