package sessions

import (
	"strconv"

	bfferrors "github.com/jrsteele09/go-oidc-bff/internal/errors"
)

// Flat field names used by every store.
const (
	KeyPKCEVerifier = "pkce_verifier"
	KeyState        = "state"
	KeyNonce        = "nonce"
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyIDToken      = "id_token"
	KeyTokenExpiry  = "token_expiry"
	KeyUsername     = "username"
	KeyUserID       = "user_id"
)

// AllKeys lists every field a Record can carry.
var AllKeys = []string{
	KeyPKCEVerifier,
	KeyState,
	KeyNonce,
	KeyAccessToken,
	KeyRefreshToken,
	KeyIDToken,
	KeyTokenExpiry,
	KeyUsername,
	KeyUserID,
}

// Record is the typed view of one browser session. A nil field is absent.
type Record struct {
	// Pre-authentication values, each consumed once by the callback
	PKCEVerifier *string
	State        *string
	Nonce        *string

	// Provider tokens
	AccessToken  *string
	RefreshToken *string
	IDToken      *string
	TokenExpiry  *int64 // unix seconds

	// Identity
	Username *string
	UserID   *string
}

// RecordFromFields builds a Record from the store's flat representation.
// Unknown keys are ignored.
func RecordFromFields(fields map[string]string) (Record, error) {
	var rec Record
	for key, value := range fields {
		v := value
		switch key {
		case KeyPKCEVerifier:
			rec.PKCEVerifier = &v
		case KeyState:
			rec.State = &v
		case KeyNonce:
			rec.Nonce = &v
		case KeyAccessToken:
			rec.AccessToken = &v
		case KeyRefreshToken:
			rec.RefreshToken = &v
		case KeyIDToken:
			rec.IDToken = &v
		case KeyTokenExpiry:
			expiry, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return Record{}, bfferrors.Wrapf(bfferrors.ErrMalformedField, "%s=%q", key, v)
			}
			rec.TokenExpiry = &expiry
		case KeyUsername:
			rec.Username = &v
		case KeyUserID:
			rec.UserID = &v
		}
	}
	return rec, nil
}

// Fields returns the flat representation holding only the present fields.
func (r Record) Fields() map[string]string {
	fields := make(map[string]string, len(AllKeys))
	put := func(key string, value *string) {
		if value != nil {
			fields[key] = *value
		}
	}
	put(KeyPKCEVerifier, r.PKCEVerifier)
	put(KeyState, r.State)
	put(KeyNonce, r.Nonce)
	put(KeyAccessToken, r.AccessToken)
	put(KeyRefreshToken, r.RefreshToken)
	put(KeyIDToken, r.IDToken)
	if r.TokenExpiry != nil {
		fields[KeyTokenExpiry] = strconv.FormatInt(*r.TokenExpiry, 10)
	}
	put(KeyUsername, r.Username)
	put(KeyUserID, r.UserID)
	return fields
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	clone := Record{
		PKCEVerifier: cloneString(r.PKCEVerifier),
		State:        cloneString(r.State),
		Nonce:        cloneString(r.Nonce),
		AccessToken:  cloneString(r.AccessToken),
		RefreshToken: cloneString(r.RefreshToken),
		IDToken:      cloneString(r.IDToken),
		Username:     cloneString(r.Username),
		UserID:       cloneString(r.UserID),
	}
	if r.TokenExpiry != nil {
		expiry := *r.TokenExpiry
		clone.TokenExpiry = &expiry
	}
	return clone
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// IsEmpty reports whether no field is present.
func (r Record) IsEmpty() bool {
	return len(r.Fields()) == 0
}

// HasEphemeral reports whether any pre-authentication value is present.
func (r Record) HasEphemeral() bool {
	return r.PKCEVerifier != nil || r.State != nil || r.Nonce != nil
}

// HasAuthenticated reports whether any token or identity value is present.
func (r Record) HasAuthenticated() bool {
	return r.AccessToken != nil || r.RefreshToken != nil || r.IDToken != nil ||
		r.TokenExpiry != nil || r.Username != nil || r.UserID != nil
}

// ClearEphemeral drops the pre-authentication values.
func (r *Record) ClearEphemeral() {
	r.PKCEVerifier = nil
	r.State = nil
	r.Nonce = nil
}

// ClearAuthenticated drops the tokens and identity.
func (r *Record) ClearAuthenticated() {
	r.AccessToken = nil
	r.RefreshToken = nil
	r.IDToken = nil
	r.TokenExpiry = nil
	r.Username = nil
	r.UserID = nil
}

// diff compares two records and returns the fields to write and the keys to remove.
func diff(before, after Record) (map[string]string, []string) {
	prev := before.Fields()
	next := after.Fields()

	changed := make(map[string]string)
	for key, value := range next {
		if old, ok := prev[key]; !ok || old != value {
			changed[key] = value
		}
	}

	var removed []string
	for _, key := range AllKeys {
		if _, had := prev[key]; !had {
			continue
		}
		if _, has := next[key]; !has {
			removed = append(removed, key)
		}
	}
	return changed, removed
}
