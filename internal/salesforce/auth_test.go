package salesforce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenServer(t *testing.T, tokenCalls *int32) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/services/oauth2/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		atomic.AddInt32(tokenCalls, 1)

		if r.PostFormValue("password") != "secretTOKEN123" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{
				"error":             "invalid_grant",
				"error_description": "authentication failure",
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"access_token": "tok-abc",
			"instance_url": srv.URL,
			"token_type":   "Bearer",
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testCredentials(loginURL string) Credentials {
	return Credentials{
		ClientID:      "client-id",
		ClientSecret:  "client-secret",
		Username:      "user@example.com",
		Password:      "secret",
		SecurityToken: "TOKEN123",
		LoginURL:      loginURL,
	}
}

func TestTokenManagerObtainsAndCachesToken(t *testing.T) {
	var calls int32
	srv := newTokenServer(t, &calls)

	mgr := NewTokenManager(nil)
	mgr.SetCredentials(testCredentials(srv.URL))

	token, instance, err := mgr.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", token)
	assert.Equal(t, srv.URL, instance)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// Second call serves from cache.
	token2, _, err := mgr.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, token, token2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTokenManagerRefreshBypassesCache(t *testing.T) {
	var calls int32
	srv := newTokenServer(t, &calls)

	mgr := NewTokenManager(nil)
	mgr.SetCredentials(testCredentials(srv.URL))

	_, _, err := mgr.GetToken(context.Background())
	require.NoError(t, err)
	_, _, err = mgr.RefreshToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTokenManagerAuthFailure(t *testing.T) {
	var calls int32
	srv := newTokenServer(t, &calls)

	creds := testCredentials(srv.URL)
	creds.Password = "wrong"
	mgr := NewTokenManager(nil)
	mgr.SetCredentials(creds)

	_, _, err := mgr.GetToken(context.Background())
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrKindAuth))
	assert.Contains(t, err.Error(), "invalid_grant")
}

func TestTokenManagerSetCredentialsInvalidatesCache(t *testing.T) {
	var calls int32
	srv := newTokenServer(t, &calls)

	mgr := NewTokenManager(nil)
	mgr.SetCredentials(testCredentials(srv.URL))
	_, _, err := mgr.GetToken(context.Background())
	require.NoError(t, err)

	mgr.SetCredentials(testCredentials(srv.URL))
	_, _, err = mgr.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTokenManagerClearCredentials(t *testing.T) {
	var calls int32
	srv := newTokenServer(t, &calls)

	mgr := NewTokenManager(nil)
	mgr.SetCredentials(testCredentials(srv.URL))
	require.True(t, mgr.HasCredentials())

	mgr.ClearCredentials()
	require.False(t, mgr.HasCredentials())

	_, _, err := mgr.GetToken(context.Background())
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrKindAuth))
}

func TestTokenManagerTestConnection(t *testing.T) {
	var calls int32
	srv := newTokenServer(t, &calls)

	mgr := NewTokenManager(nil)
	mgr.SetCredentials(testCredentials(srv.URL))

	msg, err := mgr.TestConnection(context.Background())
	require.NoError(t, err)
	assert.Contains(t, msg, srv.URL)
}

func TestLoginURLFor(t *testing.T) {
	assert.Equal(t, "https://login.salesforce.com", LoginURLFor(false))
	assert.Equal(t, "https://test.salesforce.com", LoginURLFor(true))
}
