package authflow_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-oidc-bff/authflow"
	"github.com/jrsteele09/go-oidc-bff/idp"
	"github.com/jrsteele09/go-oidc-bff/sessions"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// seedAuthenticated stores a logged in session whose token expires at expiry
func (f *testFixture) seedAuthenticated(expiry time.Time) {
	f.repo.Seed(testSessionID, map[string]string{
		"access_token":  "AT1",
		"refresh_token": "RT1",
		"id_token":      "ID1",
		"token_expiry":  strconv.FormatInt(expiry.Unix(), 10),
		"username":      "alice",
		"user_id":       "u-1",
	})
}

func TestCheckSessionStatus_NotLoggedIn(t *testing.T) {
	tests := []struct {
		name string
		seed map[string]string
	}{
		{name: "empty session", seed: nil},
		{name: "pre-auth only", seed: map[string]string{"state": "abc123", "nonce": "n", "pkce_verifier": "v"}},
		{name: "no refresh token", seed: map[string]string{"access_token": "AT1", "token_expiry": "1700003600"}},
		{name: "no access token", seed: map[string]string{"refresh_token": "RT1", "token_expiry": "1700003600"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t)
			f.repo.Seed(testSessionID, tt.seed)

			status, err := f.flow.CheckSessionStatus(f.ctx, f.session())
			require.NoError(t, err)
			require.Equal(t, authflow.StatusNotLoggedIn, status)
			require.Zero(t, f.repo.PurgeCalls)
		})
	}
}

func TestCheckSessionStatus_MissingExpiry(t *testing.T) {
	f := setupTestFixture(t)
	f.repo.Seed(testSessionID, map[string]string{"access_token": "AT1", "refresh_token": "RT1"})

	_, err := f.flow.CheckSessionStatus(f.ctx, f.session())
	requireKind(t, err, authflow.KindMissingExpiry)
}

func TestCheckSessionStatus_StorageError(t *testing.T) {
	f := setupTestFixture(t)
	f.repo.GetErr = errors.New("connection refused")

	_, err := f.flow.CheckSessionStatus(f.ctx, f.session())
	requireKind(t, err, authflow.KindStorageError)
}

func TestCheckSessionStatus_UsableTokenMakesNoProviderCall(t *testing.T) {
	for _, remaining := range []time.Duration{121 * time.Second, time.Hour, 24 * time.Hour} {
		t.Run(remaining.String(), func(t *testing.T) {
			f := setupTestFixture(t)
			f.seedAuthenticated(f.now.Add(remaining))

			// The mock fails the test on any provider call
			status, err := f.flow.CheckSessionStatus(f.ctx, f.session())
			require.NoError(t, err)
			require.Equal(t, authflow.StatusLoggedIn, status)
			require.Zero(t, f.repo.SetCalls)
		})
	}
}

func TestCheckSessionStatus_RefreshesInsideSkew(t *testing.T) {
	f := setupTestFixture(t)
	oldExpiry := f.now.Add(-10 * time.Second)
	f.seedAuthenticated(oldExpiry)

	f.idp.EXPECT().
		Refresh(gomock.Any(), "RT1").
		Return(&idp.TokenSet{AccessToken: "AT2", ExpiresIn: 1800 * time.Second}, nil).
		Times(1)

	status, err := f.flow.CheckSessionStatus(f.ctx, f.session())
	require.NoError(t, err)
	require.Equal(t, authflow.StatusLoggedIn, status)

	fields := f.fields()
	require.Equal(t, "AT2", fields["access_token"])
	require.Equal(t, "RT1", fields["refresh_token"])
	newExpiry, err := strconv.ParseInt(fields["token_expiry"], 10, 64)
	require.NoError(t, err)
	require.Equal(t, f.now.Add(1800*time.Second).Unix(), newExpiry)
	require.Greater(t, newExpiry, oldExpiry.Unix())
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TokenRefreshes.WithLabelValues("success")))
}

func TestCheckSessionStatus_SkewBoundaryRefreshes(t *testing.T) {
	f := setupTestFixture(t)
	f.seedAuthenticated(f.now.Add(authflow.DefaultEarlyRefreshSkew))

	f.idp.EXPECT().
		Refresh(gomock.Any(), "RT1").
		Return(&idp.TokenSet{AccessToken: "AT2", ExpiresIn: time.Hour}, nil)

	status, err := f.flow.CheckSessionStatus(f.ctx, f.session())
	require.NoError(t, err)
	require.Equal(t, authflow.StatusLoggedIn, status)
}

func TestCheckSessionStatus_StoresRotatedRefreshToken(t *testing.T) {
	f := setupTestFixture(t)
	f.seedAuthenticated(f.now)

	f.idp.EXPECT().
		Refresh(gomock.Any(), "RT1").
		Return(&idp.TokenSet{AccessToken: "AT2", RefreshToken: "RT2", ExpiresIn: time.Hour}, nil)

	_, err := f.flow.CheckSessionStatus(f.ctx, f.session())
	require.NoError(t, err)
	require.Equal(t, "RT2", f.fields()["refresh_token"])
}

func TestCheckSessionStatus_ShortLivedRefreshIsNotLoggedIn(t *testing.T) {
	f := setupTestFixture(t)
	f.seedAuthenticated(f.now)

	f.idp.EXPECT().
		Refresh(gomock.Any(), "RT1").
		Return(&idp.TokenSet{AccessToken: "AT2", ExpiresIn: 60 * time.Second}, nil)

	status, err := f.flow.CheckSessionStatus(f.ctx, f.session())
	require.NoError(t, err)
	require.Equal(t, authflow.StatusNotLoggedIn, status)
	require.Zero(t, f.repo.PurgeCalls)
	require.Equal(t, "AT2", f.fields()["access_token"])
}

func TestCheckSessionStatus_RefreshFailures(t *testing.T) {
	tests := []struct {
		name   string
		tokens *idp.TokenSet
		err    error
		kind   authflow.Kind
	}{
		{name: "exchange fails", err: errors.New("invalid_grant"), kind: authflow.KindExchangeError},
		{name: "no expiry", tokens: &idp.TokenSet{AccessToken: "AT2"}, kind: authflow.KindMissingExpiry},
		{name: "no access token", tokens: &idp.TokenSet{ExpiresIn: time.Hour}, kind: authflow.KindExchangeError},
		{name: "no tokens and no error", kind: authflow.KindExchangeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t)
			f.seedAuthenticated(f.now)
			f.idp.EXPECT().Refresh(gomock.Any(), "RT1").Return(tt.tokens, tt.err)

			_, err := f.flow.CheckSessionStatus(f.ctx, f.session())
			requireKind(t, err, tt.kind)
			require.Equal(t, "AT1", f.fields()["access_token"])
		})
	}
}

func TestCheckSessionStatus_ConcurrentRefreshesShareOneCall(t *testing.T) {
	f := setupTestFixture(t)
	f.seedAuthenticated(f.now)

	started := make(chan struct{})
	release := make(chan struct{})
	f.idp.EXPECT().
		Refresh(gomock.Any(), "RT1").
		DoAndReturn(func(context.Context, string) (*idp.TokenSet, error) {
			close(started)
			<-release
			return &idp.TokenSet{AccessToken: "AT2", ExpiresIn: time.Hour}, nil
		}).
		Times(1)

	results := make([]authflow.Status, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	check := func(i int) {
		defer wg.Done()
		sess := sessions.NewSession(testSessionID, f.repo, testSessionTTL, false)
		results[i], errs[i] = f.flow.CheckSessionStatus(f.ctx, sess)
	}

	wg.Add(1)
	go check(0)
	<-started

	wg.Add(1)
	go check(1)
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		require.Equal(t, authflow.StatusLoggedIn, results[i])
	}
	require.Equal(t, "AT2", f.fields()["access_token"])
}
