package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/nhle/mail-engine/internal/auth"
	"github.com/nhle/mail-engine/internal/inbox"
	"github.com/nhle/mail-engine/internal/model"
	"github.com/nhle/mail-engine/tests/testutil"
)

const testClientID = "app.apps.googleusercontent.com"

// stubFetcher records the access token it was handed and returns a canned
// inbox.
type stubFetcher struct {
	provider model.Provider
	gotToken string
	err      error
}

func (f *stubFetcher) Provider() model.Provider { return f.provider }

func (f *stubFetcher) FetchInbox(ctx context.Context, accessToken string) (*model.LoginResult, error) {
	f.gotToken = accessToken
	if f.err != nil {
		return nil, f.err
	}
	return &model.LoginResult{
		Provider: f.provider,
		Account:  "user@example.com",
		Messages: []model.MailMessage{{Subject: "hello"}},
	}, nil
}

// tokenResponses configures the fake token endpoint per grant type. A nil
// entry yields a 400 invalid_grant.
type tokenResponses struct {
	authCode *model.TokenSet
	refresh  *model.TokenSet
}

func newTokenServer(t *testing.T, responses tokenResponses) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")

		var tokens *model.TokenSet
		switch r.Form.Get("grant_type") {
		case "refresh_token":
			tokens = responses.refresh
		default:
			tokens = responses.authCode
		}

		if tokens == nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
			return
		}

		refreshField := ""
		if tokens.RefreshToken != "" {
			refreshField = fmt.Sprintf(`,"refresh_token":%q`, tokens.RefreshToken)
		}
		fmt.Fprintf(w, `{"access_token":%q,"token_type":"Bearer","expires_in":3600%s}`,
			tokens.AccessToken, refreshField)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// testEngine wires an Engine onto an in-memory store, a fake token endpoint,
// stub fetchers, and a browser stub that approves the login by driving the
// callback itself.
type testEngine struct {
	*Engine
	google   *stubFetcher
	outlook  *stubFetcher
	authURLs []string
}

func newTestEngine(t *testing.T, responses tokenResponses) *testEngine {
	t.Helper()

	srv := newTokenServer(t, responses)
	endpoint := oauth2.Endpoint{
		AuthURL:   "http://auth.invalid/authorize",
		TokenURL:  srv.URL,
		AuthStyle: oauth2.AuthStyleInParams,
	}

	cfg := &model.EngineConfig{
		RedirectURI:        "http://127.0.0.1:0/oauth/callback",
		CallbackTimeoutSec: 5,
		ReadTimeoutSec:     2,
	}

	te := &testEngine{
		Engine:  NewWithStore(cfg, testutil.NewTestStore(t)),
		google:  &stubFetcher{provider: model.ProviderGoogle},
		outlook: &stubFetcher{provider: model.ProviderOutlook},
	}
	te.catalog = auth.Catalog{
		model.ProviderGoogle:  {Endpoint: endpoint, Scopes: []string{"openid"}},
		model.ProviderOutlook: {Endpoint: endpoint, Scopes: []string{"offline_access"}},
	}
	te.fetchers = map[model.Provider]inbox.Fetcher{
		model.ProviderGoogle:  te.google,
		model.ProviderOutlook: te.outlook,
	}
	te.openURL = func(authURL string) error {
		te.authURLs = append(te.authURLs, authURL)
		u, err := url.Parse(authURL)
		if err != nil {
			return err
		}
		q := u.Query()
		callback := fmt.Sprintf("%s?code=auth-code-1&state=%s",
			q.Get("redirect_uri"), url.QueryEscape(q.Get("state")))
		go func() {
			resp, err := http.Get(callback)
			if err == nil {
				resp.Body.Close()
			}
		}()
		return nil
	}
	return te
}

func noBrowser(t *testing.T) func(string) error {
	return func(authURL string) error {
		t.Error("browser opened in a flow that must stay silent")
		return nil
	}
}

func saveGoogleCreds(t *testing.T, te *testEngine) {
	t.Helper()
	require.NoError(t, te.SaveProviderCredentials(context.Background(),
		model.ProviderGoogle, model.ProviderCredentials{ClientID: testClientID}))
}

func TestLoginAndFetchInteractive(t *testing.T) {
	te := newTestEngine(t, tokenResponses{
		authCode: &model.TokenSet{AccessToken: "at-1", RefreshToken: "rt-1"},
	})
	saveGoogleCreds(t, te)

	result, err := te.LoginAndFetch(context.Background(), model.ProviderGoogle)
	require.NoError(t, err)

	assert.Equal(t, "user@example.com", result.Account)
	assert.Equal(t, "at-1", te.google.gotToken)

	stored, err := te.store.LoadRefreshToken(context.Background(), model.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, "rt-1", stored)

	// First grant for Google: offline access and consent are forced so a
	// refresh token is actually issued.
	require.Len(t, te.authURLs, 1)
	assert.Contains(t, te.authURLs[0], "access_type=offline")
	assert.Contains(t, te.authURLs[0], "code_challenge_method=S256")
}

func TestLoginAndFetchMissingCredentials(t *testing.T) {
	te := newTestEngine(t, tokenResponses{})

	_, err := te.LoginAndFetch(context.Background(), model.ProviderGoogle)

	var missingErr *MissingCredentialsError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, model.ProviderGoogle, missingErr.Provider)
}

func TestLoginAndFetchInvalidGoogleClientID(t *testing.T) {
	te := newTestEngine(t, tokenResponses{})
	// Bypass SaveProviderCredentials to plant an id that fails the
	// per-provider rule.
	require.NoError(t, te.store.SaveCredentials(context.Background(),
		model.ProviderGoogle, model.ProviderCredentials{ClientID: "not-a-google-id"}))

	_, err := te.LoginAndFetch(context.Background(), model.ProviderGoogle)

	var validationErr *model.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestLoginAndFetchViaRefreshToken(t *testing.T) {
	te := newTestEngine(t, tokenResponses{
		refresh: &model.TokenSet{AccessToken: "at-2"},
	})
	te.openURL = noBrowser(t)
	saveGoogleCreds(t, te)
	require.NoError(t, te.store.SaveRefreshToken(context.Background(), model.ProviderGoogle, "rt-0"))

	result, err := te.LoginAndFetch(context.Background(), model.ProviderGoogle)
	require.NoError(t, err)

	assert.Equal(t, "user@example.com", result.Account)
	assert.Equal(t, "at-2", te.google.gotToken)

	stored, err := te.store.LoadRefreshToken(context.Background(), model.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, "rt-0", stored, "no rotation means the stored token stays untouched")
}

func TestLoginAndFetchRefreshRotation(t *testing.T) {
	te := newTestEngine(t, tokenResponses{
		refresh: &model.TokenSet{AccessToken: "at-2", RefreshToken: "rt-2"},
	})
	te.openURL = noBrowser(t)
	saveGoogleCreds(t, te)
	require.NoError(t, te.store.SaveRefreshToken(context.Background(), model.ProviderGoogle, "rt-0"))

	_, err := te.LoginAndFetch(context.Background(), model.ProviderGoogle)
	require.NoError(t, err)

	stored, err := te.store.LoadRefreshToken(context.Background(), model.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, "rt-2", stored)
}

func TestLoginAndFetchFallsBackToInteractive(t *testing.T) {
	te := newTestEngine(t, tokenResponses{
		authCode: &model.TokenSet{AccessToken: "at-3", RefreshToken: "rt-new"},
		// refresh nil: the endpoint rejects the stored token
	})
	saveGoogleCreds(t, te)
	require.NoError(t, te.store.SaveRefreshToken(context.Background(), model.ProviderGoogle, "rt-revoked"))

	result, err := te.LoginAndFetch(context.Background(), model.ProviderGoogle)
	require.NoError(t, err)

	assert.Equal(t, "user@example.com", result.Account)
	assert.Equal(t, "at-3", te.google.gotToken)

	stored, err := te.store.LoadRefreshToken(context.Background(), model.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, "rt-new", stored)

	// A refresh token existed at flow start, so the re-login does not force
	// the consent prompt again.
	require.Len(t, te.authURLs, 1)
	assert.NotContains(t, te.authURLs[0], "access_type=offline")
}

func TestLoginAndFetchDenied(t *testing.T) {
	te := newTestEngine(t, tokenResponses{
		authCode: &model.TokenSet{AccessToken: "at-1", RefreshToken: "rt-1"},
	})
	saveGoogleCreds(t, te)
	te.openURL = func(authURL string) error {
		u, err := url.Parse(authURL)
		require.NoError(t, err)
		q := u.Query()
		callback := fmt.Sprintf("%s?error=access_denied&state=%s",
			q.Get("redirect_uri"), url.QueryEscape(q.Get("state")))
		go func() {
			resp, err := http.Get(callback)
			if err == nil {
				resp.Body.Close()
			}
		}()
		return nil
	}

	_, err := te.LoginAndFetch(context.Background(), model.ProviderGoogle)

	var deniedErr *auth.DeniedError
	require.ErrorAs(t, err, &deniedErr)
	assert.Equal(t, "access_denied", deniedErr.Reason)
	assert.Empty(t, te.google.gotToken, "a denied flow never reaches the inbox fetch")

	stored, err := te.store.LoadRefreshToken(context.Background(), model.ProviderGoogle)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestLoginAndFetchGoogleEnvFallback(t *testing.T) {
	te := newTestEngine(t, tokenResponses{
		authCode: &model.TokenSet{AccessToken: "at-1", RefreshToken: "rt-1"},
	})
	te.cfg.GoogleClientID = "env-app.apps.googleusercontent.com"

	result, err := te.LoginAndFetch(context.Background(), model.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", result.Account)
}

func TestLoginAndFetchUpstreamFailure(t *testing.T) {
	te := newTestEngine(t, tokenResponses{
		refresh: &model.TokenSet{AccessToken: "at-2"},
	})
	te.openURL = noBrowser(t)
	saveGoogleCreds(t, te)
	require.NoError(t, te.store.SaveRefreshToken(context.Background(), model.ProviderGoogle, "rt-0"))
	te.google.err = errors.New("gmail unavailable")

	_, err := te.LoginAndFetch(context.Background(), model.ProviderGoogle)
	assert.ErrorContains(t, err, "gmail unavailable")
}

func TestTryRestoreSessionNoCredentials(t *testing.T) {
	te := newTestEngine(t, tokenResponses{})
	te.openURL = noBrowser(t)

	result, err := te.TryRestoreSession(context.Background(), model.ProviderGoogle)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestTryRestoreSessionNoToken(t *testing.T) {
	te := newTestEngine(t, tokenResponses{})
	te.openURL = noBrowser(t)
	saveGoogleCreds(t, te)

	result, err := te.TryRestoreSession(context.Background(), model.ProviderGoogle)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestTryRestoreSessionRejectedToken(t *testing.T) {
	te := newTestEngine(t, tokenResponses{})
	te.openURL = noBrowser(t)
	saveGoogleCreds(t, te)
	require.NoError(t, te.store.SaveRefreshToken(context.Background(), model.ProviderGoogle, "rt-revoked"))

	result, err := te.TryRestoreSession(context.Background(), model.ProviderGoogle)
	require.NoError(t, err)
	assert.Nil(t, result)

	stored, err := te.store.LoadRefreshToken(context.Background(), model.ProviderGoogle)
	require.NoError(t, err)
	assert.Empty(t, stored, "a rejected token is discarded so the next login is interactive")
}

func TestTryRestoreSessionSuccess(t *testing.T) {
	te := newTestEngine(t, tokenResponses{
		refresh: &model.TokenSet{AccessToken: "at-4"},
	})
	te.openURL = noBrowser(t)
	saveGoogleCreds(t, te)
	require.NoError(t, te.store.SaveRefreshToken(context.Background(), model.ProviderGoogle, "rt-0"))

	result, err := te.TryRestoreSession(context.Background(), model.ProviderGoogle)
	require.NoError(t, err)

	require.NotNil(t, result)
	assert.Equal(t, "user@example.com", result.Account)
	assert.Equal(t, "at-4", te.google.gotToken)
}

func TestSaveProviderCredentials(t *testing.T) {
	te := newTestEngine(t, tokenResponses{})

	err := te.SaveProviderCredentials(context.Background(),
		model.ProviderGoogle, model.ProviderCredentials{ClientID: "not-a-google-id"})
	var validationErr *model.ValidationError
	require.ErrorAs(t, err, &validationErr)

	require.NoError(t, te.SaveProviderCredentials(context.Background(),
		model.ProviderOutlook, model.ProviderCredentials{ClientID: "client-1", ClientSecret: "s"}))

	settings, err := te.LoadOAuthSettings(context.Background())
	require.NoError(t, err)
	assert.Nil(t, settings.Google)
	require.NotNil(t, settings.Outlook)
	assert.Equal(t, "client-1", settings.Outlook.ClientID)
}
