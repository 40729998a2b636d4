package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fatflowers/craftbill/pkg/config"
)

func newProvider(t *testing.T, deleteStatus int) (*httptest.Server, *int32, *string) {
	t.Helper()
	var deletes int32
	var authHeader string
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		require.Equal(t, "api://identity", r.Form.Get("audience"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok_1","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/api/v2/users/", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		atomic.AddInt32(&deletes, 1)
		authHeader = r.Header.Get("Authorization")
		w.WriteHeader(deleteStatus)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &deletes, &authHeader
}

func identityConfig(base string) config.IdentityConfig {
	return config.IdentityConfig{
		BaseURL:      base,
		TokenURL:     base + "/oauth/token",
		ClientID:     "cid",
		ClientSecret: "secret",
		Audience:     "api://identity",
	}
}

func TestDeleteUser_UsesClientCredentialsToken(t *testing.T) {
	srv, deletes, auth := newProvider(t, http.StatusNoContent)
	c := newClient(context.Background(), identityConfig(srv.URL))

	require.NoError(t, c.DeleteUser(context.Background(), "acct|1"))
	require.EqualValues(t, 1, atomic.LoadInt32(deletes))
	require.Equal(t, "Bearer tok_1", *auth)
}

func TestDeleteUser_NotFoundIsSuccess(t *testing.T) {
	srv, _, _ := newProvider(t, http.StatusNotFound)
	c := newClient(context.Background(), identityConfig(srv.URL))
	require.NoError(t, c.DeleteUser(context.Background(), "acct_1"))
}

func TestDeleteUser_ServerErrorFails(t *testing.T) {
	srv, _, _ := newProvider(t, http.StatusInternalServerError)
	c := newClient(context.Background(), identityConfig(srv.URL))
	require.Error(t, c.DeleteUser(context.Background(), "acct_1"))
}

func TestDeleteUser_NotConfigured(t *testing.T) {
	c := newClient(context.Background(), config.IdentityConfig{})
	require.ErrorIs(t, c.DeleteUser(context.Background(), "acct_1"), ErrNotConfigured)
}
