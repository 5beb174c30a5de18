package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func tokenConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		Endpoint: oauth2.Endpoint{
			AuthURL:   "http://unused.invalid/auth",
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: "http://127.0.0.1:8765/oauth/callback",
	}
}

func TestExchangeCode(t *testing.T) {
	var gotGrant, gotCode, gotVerifier string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotGrant = r.Form.Get("grant_type")
		gotCode = r.Form.Get("code")
		gotVerifier = r.Form.Get("code_verifier")

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"at-1","refresh_token":"rt-1","token_type":"Bearer","expires_in":3600}`)
	}))
	defer srv.Close()

	e := NewExchanger()
	tokens, err := e.ExchangeCode(context.Background(), tokenConfig(srv.URL), "auth-code-1", "verifier-1")

	require.NoError(t, err)
	assert.Equal(t, "at-1", tokens.AccessToken)
	assert.Equal(t, "rt-1", tokens.RefreshToken)
	assert.Equal(t, "authorization_code", gotGrant)
	assert.Equal(t, "auth-code-1", gotCode)
	assert.Equal(t, "verifier-1", gotVerifier)
}

func TestExchangeCodeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant"}`)
	}))
	defer srv.Close()

	e := NewExchanger()
	_, err := e.ExchangeCode(context.Background(), tokenConfig(srv.URL), "bad-code", "verifier-1")

	var exchErr *ExchangeError
	require.ErrorAs(t, err, &exchErr)
	assert.Equal(t, "authorization_code", exchErr.Grant)
}

func TestExchangeRefresh(t *testing.T) {
	var gotGrant, gotRefresh string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotGrant = r.Form.Get("grant_type")
		gotRefresh = r.Form.Get("refresh_token")

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"at-2","token_type":"Bearer","expires_in":3600}`)
	}))
	defer srv.Close()

	e := NewExchanger()
	tokens, err := e.ExchangeRefresh(context.Background(), tokenConfig(srv.URL), "rt-old")

	require.NoError(t, err)
	assert.Equal(t, "at-2", tokens.AccessToken)
	assert.Equal(t, "rt-old", tokens.RefreshToken,
		"when the endpoint omits a refresh token the supplied one carries forward")
	assert.Equal(t, "refresh_token", gotGrant)
	assert.Equal(t, "rt-old", gotRefresh)
}

func TestExchangeRefreshRotation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"at-3","refresh_token":"rt-new","token_type":"Bearer","expires_in":3600}`)
	}))
	defer srv.Close()

	e := NewExchanger()
	tokens, err := e.ExchangeRefresh(context.Background(), tokenConfig(srv.URL), "rt-old")

	require.NoError(t, err)
	assert.Equal(t, "rt-new", tokens.RefreshToken)
}

func TestExchangeRefreshRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant","error_description":"Token has been revoked"}`)
	}))
	defer srv.Close()

	e := NewExchanger()
	_, err := e.ExchangeRefresh(context.Background(), tokenConfig(srv.URL), "rt-revoked")

	var exchErr *ExchangeError
	require.ErrorAs(t, err, &exchErr)
	assert.Equal(t, "refresh_token", exchErr.Grant)
}

func TestExchangeDoesNotFollowRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://unused.invalid/elsewhere", http.StatusFound)
	}))
	defer srv.Close()

	e := NewExchanger()
	_, err := e.ExchangeCode(context.Background(), tokenConfig(srv.URL), "auth-code-1", "verifier-1")

	var exchErr *ExchangeError
	require.ErrorAs(t, err, &exchErr,
		"a redirect is not a token response and must fail the exchange")
}
