// Package authflow is the authentication state machine of the gateway: it
// starts logins, completes the authorization code callback, reports and
// refreshes session liveness, and ends sessions.
//
// Operations only return errors; the caller applies the fail-closed policy.
package authflow

import (
	"errors"
	"time"

	"github.com/jrsteele09/go-oidc-bff/idp"
	"github.com/jrsteele09/go-oidc-bff/internal/metrics"
	"github.com/segmentio/ksuid"
	"golang.org/x/sync/singleflight"
)

const DefaultEarlyRefreshSkew = 120 * time.Second

// DefaultScopes are requested on every authorization redirect
var DefaultScopes = []string{"openid", "profile", "email", "offline_access", "groups"}

type Config struct {
	// ClientAppURL is where the browser lands after login and logout
	ClientAppURL string
	// LogoutURL overrides the discovered end_session_endpoint when set
	LogoutURL        string
	EarlyRefreshSkew time.Duration
	Scopes           []string

	FailDetailsWhenUnauthenticated bool
	DefaultUsername                string
	DefaultUserID                  string
}

type Flow struct {
	idp       idp.Client
	cfg       Config
	nowTime   func() time.Time
	metrics   *metrics.Metrics
	refreshes singleflight.Group
	// newSessionID names the session once it is authenticated
	newSessionID func() string
}

type Option func(*Flow)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(f *Flow) {
		f.nowTime = nowFunc
	}
}

// WithSessionIDs overrides the generator for post-login session ids
func WithSessionIDs(next func() string) Option {
	return func(f *Flow) {
		f.newSessionID = next
	}
}

// WithMetrics records flow outcomes
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Flow) {
		f.metrics = m
	}
}

func New(client idp.Client, cfg Config, options ...Option) (*Flow, error) {
	if client == nil {
		return nil, errors.New("[authflow.New] identity provider client is required")
	}
	if cfg.ClientAppURL == "" {
		return nil, errors.New("[authflow.New] client app URL is required")
	}
	if cfg.EarlyRefreshSkew < 0 {
		return nil, errors.New("[authflow.New] early refresh skew cannot be negative")
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}

	f := &Flow{
		idp:          client,
		cfg:          cfg,
		nowTime:      time.Now,
		metrics:      metrics.New(),
		newSessionID: newKSUID,
	}
	for _, opt := range options {
		opt(f)
	}
	return f, nil
}

func newKSUID() string {
	return ksuid.New().String()
}

// ClientAppURL is the redirect target for successful callbacks and failures
func (f *Flow) ClientAppURL() string {
	return f.cfg.ClientAppURL
}

// usable reports whether a token expiring at expiry can still be used now
func (f *Flow) usable(expiry int64) bool {
	deadline := time.Unix(expiry, 0).Add(-f.cfg.EarlyRefreshSkew)
	return f.nowTime().Before(deadline)
}

func (f *Flow) absoluteExpiry(expiresIn time.Duration) int64 {
	return f.nowTime().Add(expiresIn).Unix()
}
