package authflow_test

import (
	"errors"
	"testing"
	"time"

	"github.com/jrsteele09/go-oidc-bff/authflow"
	"github.com/jrsteele09/go-oidc-bff/idp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testAuthURL = "https://idp.example.com/authorize?client_id=bff"

// seedPreAuth stores the values BeginLogin would have left behind
func (f *testFixture) seedPreAuth(state string) {
	f.repo.Seed(testSessionID, map[string]string{
		"pkce_verifier": "verifier-1",
		"state":         state,
		"nonce":         "nonce-1",
	})
}

func (f *testFixture) expectSuccessfulExchange() {
	f.idp.EXPECT().
		ExchangeCode(gomock.Any(), "xyz", "verifier-1").
		Return(&idp.TokenSet{AccessToken: "AT1", RefreshToken: "RT1", IDToken: "raw-id-token", ExpiresIn: time.Hour}, nil)
	f.idp.EXPECT().
		VerifyIDToken(gomock.Any(), "raw-id-token", "nonce-1").
		Return(&idp.Claims{Subject: "u-1", PreferredUsername: "alice"}, nil)
}

func TestBeginLogin_StoresDistinctEphemeralValues(t *testing.T) {
	f := setupTestFixture(t)

	var gotState, gotNonce, gotVerifier string
	f.idp.EXPECT().
		AuthCodeURL(gomock.Any(), gomock.Any(), gomock.Any(), authflow.DefaultScopes).
		DoAndReturn(func(state, nonce, verifier string, _ []string) string {
			gotState, gotNonce, gotVerifier = state, nonce, verifier
			return testAuthURL
		})

	sess := f.session()
	authURL, err := f.flow.BeginLogin(f.ctx, sess)
	require.NoError(t, err)
	require.Equal(t, testAuthURL, authURL)

	fields := f.fields()
	require.Len(t, fields, 3)
	require.Equal(t, gotVerifier, fields["pkce_verifier"])
	require.Equal(t, gotState, fields["state"])
	require.Equal(t, gotNonce, fields["nonce"])
	for _, key := range []string{"pkce_verifier", "state", "nonce"} {
		require.NotEmpty(t, fields[key])
	}
	require.NotEqual(t, fields["state"], fields["nonce"])
	require.NotEqual(t, fields["state"], fields["pkce_verifier"])
	require.NotEqual(t, fields["nonce"], fields["pkce_verifier"])
	require.True(t, sess.Modified())
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LoginsStarted))
}

func TestBeginLogin_EveryLoginGetsNewValues(t *testing.T) {
	f := setupTestFixture(t)
	f.idp.EXPECT().AuthCodeURL(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(testAuthURL).Times(2)

	_, err := f.flow.BeginLogin(f.ctx, f.session())
	require.NoError(t, err)
	first := f.fields()

	_, err = f.flow.BeginLogin(f.ctx, f.session())
	require.NoError(t, err)
	second := f.fields()

	for _, key := range []string{"pkce_verifier", "state", "nonce"} {
		require.NotEqual(t, first[key], second[key], key)
	}
}

func TestBeginLogin_ClearsAuthenticatedSession(t *testing.T) {
	f := setupTestFixture(t)
	f.repo.Seed(testSessionID, map[string]string{
		"access_token":  "AT1",
		"refresh_token": "RT1",
		"id_token":      "ID1",
		"token_expiry":  "1700003600",
		"username":      "alice",
		"user_id":       "u-1",
	})
	f.idp.EXPECT().AuthCodeURL(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(testAuthURL)

	_, err := f.flow.BeginLogin(f.ctx, f.session())
	require.NoError(t, err)

	fields := f.fields()
	require.Len(t, fields, 3)
	require.Contains(t, fields, "state")
	require.NotContains(t, fields, "access_token")
	require.NotContains(t, fields, "username")
}

func TestBeginLogin_StorageFailures(t *testing.T) {
	for _, key := range []string{"pkce_verifier", "state", "nonce"} {
		t.Run(key, func(t *testing.T) {
			f := setupTestFixture(t)
			f.repo.FailSetOnKey = key

			_, err := f.flow.BeginLogin(f.ctx, f.session())
			requireKind(t, err, authflow.KindStorageError)
			require.Zero(t, testutil.ToFloat64(f.metrics.LoginsStarted))
		})
	}
}

func TestCompleteLogin_Success(t *testing.T) {
	f := setupTestFixture(t)
	f.seedPreAuth("abc123")
	f.expectSuccessfulExchange()

	err := f.flow.CompleteLogin(f.ctx, f.session(), authflow.CallbackParams{Code: "xyz", State: "abc123"})
	require.NoError(t, err)

	require.Equal(t, map[string]string{
		"access_token":  "AT1",
		"refresh_token": "RT1",
		"id_token":      "raw-id-token",
		"token_expiry":  "1700003600",
		"username":      "alice",
		"user_id":       "u-1",
	}, f.loggedInFields())
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LoginsCompleted))
}

func TestCompleteLogin_RotatesSessionID(t *testing.T) {
	f := setupTestFixture(t)
	f.seedPreAuth("abc123")
	f.expectSuccessfulExchange()

	sess := f.session()
	require.NoError(t, f.flow.CompleteLogin(f.ctx, sess, authflow.CallbackParams{Code: "xyz", State: "abc123"}))

	require.Equal(t, testLoggedInID, sess.ID())
	require.True(t, sess.Live())
	require.Empty(t, f.fields())
	require.Equal(t, "alice", f.loggedInFields()["username"])
	require.Equal(t, testSessionTTL, f.repo.TTL(testLoggedInID))

	// The pre-login id no longer reaches the authenticated record
	details, err := f.flow.UserDetails(f.ctx, f.session())
	requireKind(t, err, authflow.KindMissingIdentity)
	require.Empty(t, details.Username)
}

func TestCompleteLogin_RotationFailureIsStorageError(t *testing.T) {
	f := setupTestFixture(t)
	f.seedPreAuth("abc123")
	f.expectSuccessfulExchange()
	f.repo.PurgeErr = errors.New("connection reset")

	err := f.flow.CompleteLogin(f.ctx, f.session(), authflow.CallbackParams{Code: "xyz", State: "abc123"})
	requireKind(t, err, authflow.KindStorageError)
	require.Zero(t, testutil.ToFloat64(f.metrics.LoginsCompleted))
}

func TestCompleteLogin_ReplayFails(t *testing.T) {
	f := setupTestFixture(t)
	f.seedPreAuth("abc123")
	f.expectSuccessfulExchange()

	params := authflow.CallbackParams{Code: "xyz", State: "abc123"}
	require.NoError(t, f.flow.CompleteLogin(f.ctx, f.session(), params))

	err := f.flow.CompleteLogin(f.ctx, f.session(), params)
	requireKind(t, err, authflow.KindValidationError)
}

func TestCompleteLogin_StateMismatch(t *testing.T) {
	tests := []struct {
		name       string
		stored     string
		queryState string
	}{
		{name: "different", stored: "abc123", queryState: "wrong"},
		{name: "prefix", stored: "abc123", queryState: "abc12"},
		{name: "longer", stored: "abc123", queryState: "abc1234"},
		{name: "case", stored: "abc123", queryState: "ABC123"},
		{name: "trailing space", stored: "abc123", queryState: "abc123 "},
		{name: "missing query state", stored: "abc123", queryState: ""},
		{name: "empty stored state", stored: "", queryState: "abc123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t)
			f.seedPreAuth(tt.stored)

			err := f.flow.CompleteLogin(f.ctx, f.session(), authflow.CallbackParams{Code: "xyz", State: tt.queryState})
			requireKind(t, err, authflow.KindValidationError)

			fields := f.fields()
			require.NotContains(t, fields, "access_token")
			require.NotContains(t, fields, "id_token")
		})
	}
}

func TestCompleteLogin_ProviderError(t *testing.T) {
	f := setupTestFixture(t)
	f.seedPreAuth("abc123")

	err := f.flow.CompleteLogin(f.ctx, f.session(), authflow.CallbackParams{
		State:            "abc123",
		Error:            "access_denied",
		ErrorDescription: "user cancelled",
	})
	requireKind(t, err, authflow.KindProviderError)
	require.Contains(t, authflow.ReasonOf(err), "access_denied")
	require.Contains(t, authflow.ReasonOf(err), "user cancelled")
}

func TestCompleteLogin_Failures(t *testing.T) {
	validTokens := func() *idp.TokenSet {
		return &idp.TokenSet{AccessToken: "AT1", RefreshToken: "RT1", IDToken: "raw-id-token", ExpiresIn: time.Hour}
	}

	tests := []struct {
		name   string
		seed   map[string]string
		params authflow.CallbackParams
		expect func(f *testFixture)
		kind   authflow.Kind
	}{
		{
			name:   "no state in session",
			seed:   map[string]string{"pkce_verifier": "verifier-1", "nonce": "nonce-1"},
			params: authflow.CallbackParams{Code: "xyz", State: "abc123"},
			kind:   authflow.KindValidationError,
		},
		{
			name:   "missing code",
			params: authflow.CallbackParams{State: "abc123"},
			kind:   authflow.KindValidationError,
		},
		{
			name:   "no verifier in session",
			seed:   map[string]string{"state": "abc123", "nonce": "nonce-1"},
			params: authflow.CallbackParams{Code: "xyz", State: "abc123"},
			kind:   authflow.KindValidationError,
		},
		{
			name:   "exchange fails",
			params: authflow.CallbackParams{Code: "xyz", State: "abc123"},
			expect: func(f *testFixture) {
				f.idp.EXPECT().ExchangeCode(gomock.Any(), "xyz", "verifier-1").Return(nil, errors.New("context deadline exceeded"))
			},
			kind: authflow.KindExchangeError,
		},
		{
			name:   "exchange returns nothing",
			params: authflow.CallbackParams{Code: "xyz", State: "abc123"},
			expect: func(f *testFixture) {
				f.idp.EXPECT().ExchangeCode(gomock.Any(), "xyz", "verifier-1").Return(nil, nil)
			},
			kind: authflow.KindExchangeError,
		},
		{
			name:   "no expiry",
			params: authflow.CallbackParams{Code: "xyz", State: "abc123"},
			expect: func(f *testFixture) {
				tokens := validTokens()
				tokens.ExpiresIn = 0
				f.idp.EXPECT().ExchangeCode(gomock.Any(), "xyz", "verifier-1").Return(tokens, nil)
			},
			kind: authflow.KindMissingExpiry,
		},
		{
			name:   "no refresh token",
			params: authflow.CallbackParams{Code: "xyz", State: "abc123"},
			expect: func(f *testFixture) {
				tokens := validTokens()
				tokens.RefreshToken = ""
				f.idp.EXPECT().ExchangeCode(gomock.Any(), "xyz", "verifier-1").Return(tokens, nil)
			},
			kind: authflow.KindExchangeError,
		},
		{
			name:   "no id token",
			params: authflow.CallbackParams{Code: "xyz", State: "abc123"},
			expect: func(f *testFixture) {
				tokens := validTokens()
				tokens.IDToken = ""
				f.idp.EXPECT().ExchangeCode(gomock.Any(), "xyz", "verifier-1").Return(tokens, nil)
			},
			kind: authflow.KindExchangeError,
		},
		{
			name:   "no nonce in session",
			seed:   map[string]string{"pkce_verifier": "verifier-1", "state": "abc123"},
			params: authflow.CallbackParams{Code: "xyz", State: "abc123"},
			expect: func(f *testFixture) {
				f.idp.EXPECT().ExchangeCode(gomock.Any(), "xyz", "verifier-1").Return(validTokens(), nil)
			},
			kind: authflow.KindValidationError,
		},
		{
			name:   "id token rejected",
			params: authflow.CallbackParams{Code: "xyz", State: "abc123"},
			expect: func(f *testFixture) {
				f.idp.EXPECT().ExchangeCode(gomock.Any(), "xyz", "verifier-1").Return(validTokens(), nil)
				f.idp.EXPECT().VerifyIDToken(gomock.Any(), "raw-id-token", "nonce-1").Return(nil, errors.New("nonce mismatch"))
			},
			kind: authflow.KindClaimsVerificationError,
		},
		{
			name:   "verification returns no claims",
			params: authflow.CallbackParams{Code: "xyz", State: "abc123"},
			expect: func(f *testFixture) {
				f.idp.EXPECT().ExchangeCode(gomock.Any(), "xyz", "verifier-1").Return(validTokens(), nil)
				f.idp.EXPECT().VerifyIDToken(gomock.Any(), "raw-id-token", "nonce-1").Return(nil, nil)
			},
			kind: authflow.KindClaimsVerificationError,
		},
		{
			name:   "no preferred username",
			params: authflow.CallbackParams{Code: "xyz", State: "abc123"},
			expect: func(f *testFixture) {
				f.idp.EXPECT().ExchangeCode(gomock.Any(), "xyz", "verifier-1").Return(validTokens(), nil)
				f.idp.EXPECT().VerifyIDToken(gomock.Any(), "raw-id-token", "nonce-1").Return(&idp.Claims{Subject: "u-1"}, nil)
			},
			kind: authflow.KindMissingIdentity,
		},
		{
			name:   "no subject",
			params: authflow.CallbackParams{Code: "xyz", State: "abc123"},
			expect: func(f *testFixture) {
				f.idp.EXPECT().ExchangeCode(gomock.Any(), "xyz", "verifier-1").Return(validTokens(), nil)
				f.idp.EXPECT().VerifyIDToken(gomock.Any(), "raw-id-token", "nonce-1").Return(&idp.Claims{PreferredUsername: "alice"}, nil)
			},
			kind: authflow.KindMissingIdentity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t)
			if tt.seed != nil {
				f.repo.Seed(testSessionID, tt.seed)
			} else {
				f.seedPreAuth("abc123")
			}
			if tt.expect != nil {
				tt.expect(f)
			}

			err := f.flow.CompleteLogin(f.ctx, f.session(), tt.params)
			requireKind(t, err, tt.kind)
			require.NotContains(t, f.fields(), "username")
			require.Zero(t, testutil.ToFloat64(f.metrics.LoginsCompleted))
		})
	}
}

func TestCompleteLogin_StorageFailure(t *testing.T) {
	f := setupTestFixture(t)
	f.seedPreAuth("abc123")
	f.idp.EXPECT().
		ExchangeCode(gomock.Any(), "xyz", "verifier-1").
		Return(&idp.TokenSet{AccessToken: "AT1", RefreshToken: "RT1", IDToken: "raw-id-token", ExpiresIn: time.Hour}, nil)
	f.repo.FailSetOnKey = "access_token"

	err := f.flow.CompleteLogin(f.ctx, f.session(), authflow.CallbackParams{Code: "xyz", State: "abc123"})
	requireKind(t, err, authflow.KindStorageError)
}

func TestCompleteLogin_MalformedStoredExpiryIsStorageError(t *testing.T) {
	f := setupTestFixture(t)
	f.repo.Seed(testSessionID, map[string]string{"state": "abc123", "token_expiry": "tomorrow"})

	err := f.flow.CompleteLogin(f.ctx, f.session(), authflow.CallbackParams{Code: "xyz", State: "abc123"})
	requireKind(t, err, authflow.KindStorageError)
}

func TestBeginThenCompleteLogin_LeavesNoEphemeralFields(t *testing.T) {
	f := setupTestFixture(t)

	var state, nonce, verifier string
	f.idp.EXPECT().
		AuthCodeURL(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(s, n, v string, _ []string) string {
			state, nonce, verifier = s, n, v
			return testAuthURL
		})
	_, err := f.flow.BeginLogin(f.ctx, f.session())
	require.NoError(t, err)

	f.idp.EXPECT().
		ExchangeCode(gomock.Any(), "xyz", verifier).
		Return(&idp.TokenSet{AccessToken: "AT1", RefreshToken: "RT1", IDToken: "raw", ExpiresIn: time.Hour}, nil)
	f.idp.EXPECT().
		VerifyIDToken(gomock.Any(), "raw", nonce).
		Return(&idp.Claims{Subject: "u-1", PreferredUsername: "alice"}, nil)

	require.NoError(t, f.flow.CompleteLogin(f.ctx, f.session(), authflow.CallbackParams{Code: "xyz", State: state}))

	require.Empty(t, f.fields())
	fields := f.loggedInFields()
	for _, key := range []string{"state", "nonce", "pkce_verifier"} {
		require.NotContains(t, fields, key)
	}
	require.Equal(t, "AT1", fields["access_token"])
	require.Equal(t, "raw", fields["id_token"])
}
