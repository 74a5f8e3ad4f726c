package oidc

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// newFakeProvider serves just enough of the OIDC discovery document for
// oidc.NewProvider to succeed, with a revocation_endpoint so New can
// capture it.
func newFakeProvider(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var issuer string

	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		doc := map[string]interface{}{
			"issuer":                 issuer,
			"authorization_endpoint": issuer + "/auth",
			"token_endpoint":         issuer + "/token",
			"userinfo_endpoint":      issuer + "/userinfo",
			"jwks_uri":               issuer + "/keys",
			"revocation_endpoint":    issuer + "/revoke",
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	})
	mux.HandleFunc("/keys", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"keys":[]}`))
	})

	srv := httptest.NewServer(mux)
	issuer = srv.URL
	return srv
}

func TestNewDiscoversRevocationEndpoint(t *testing.T) {
	srv := newFakeProvider(t)
	defer srv.Close()

	client, err := New(t.Context(), Config{
		ClientID:     "gateway",
		ClientSecret: "secret",
		IssuerURL:    srv.URL,
		Scopes:       []string{"openid", "profile"},
	})
	require.NoError(t, err)
	require.Equal(t, srv.URL+"/revoke", client.revocationEndpoint)
}

func TestAuthCodeURLEmbedsNonceAndRedirect(t *testing.T) {
	srv := newFakeProvider(t)
	defer srv.Close()

	client, err := New(t.Context(), Config{
		ClientID:  "gateway",
		IssuerURL: srv.URL,
		Scopes:    []string{"openid"},
	})
	require.NoError(t, err)

	authURL := client.AuthCodeURL("https://app.example.com/login/authorized/abc123", "abc123")

	require.True(t, strings.Contains(authURL, "nonce=abc123"))
	require.True(t, strings.Contains(authURL, "state=abc123"))
	require.True(t, strings.Contains(authURL, "redirect_uri="))
}

func TestRevokeWithoutEndpointErrors(t *testing.T) {
	client := &Client{}
	err := client.Revoke(t.Context(), "access", "refresh")
	require.Error(t, err)
}

func TestRevokeNoopWithoutTokens(t *testing.T) {
	client := &Client{revocationEndpoint: "http://unused.invalid/revoke"}
	err := client.Revoke(t.Context(), "", "")
	require.NoError(t, err)
}
