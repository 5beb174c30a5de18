package auth

import (
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"

	"github.com/nhle/mail-engine/internal/model"
)

// googleClientIDSuffix is the suffix every Google OAuth client id carries.
const googleClientIDSuffix = ".apps.googleusercontent.com"

// Entry holds the static OAuth endpoints and scopes for one provider.
type Entry struct {
	Endpoint oauth2.Endpoint
	Scopes   []string
}

// Catalog maps each provider to its OAuth endpoints and scopes. It is a
// pure lookup; entries never change during a flow.
type Catalog map[model.Provider]Entry

// DefaultCatalog returns the production endpoints and scope sets.
func DefaultCatalog() Catalog {
	return Catalog{
		model.ProviderGoogle: {
			Endpoint: google.Endpoint,
			Scopes: []string{
				"openid",
				"email",
				"https://www.googleapis.com/auth/gmail.readonly",
			},
		},
		model.ProviderOutlook: {
			Endpoint: microsoft.AzureADEndpoint("common"),
			Scopes: []string{
				"https://graph.microsoft.com/User.Read",
				"https://graph.microsoft.com/Mail.Read",
				"offline_access",
			},
		},
	}
}

// ValidateClientID applies per-provider client id rules before any network
// call. Google client ids must carry the standard suffix; other providers
// accept any non-empty id.
func (c Catalog) ValidateClientID(p model.Provider, clientID string) error {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return &model.ValidationError{
			Reason: fmt.Sprintf("no client id configured for %s", p.Label()),
		}
	}
	if p == model.ProviderGoogle && !strings.HasSuffix(clientID, googleClientIDSuffix) {
		return &model.ValidationError{
			Reason: fmt.Sprintf("Google client id must end with %q", googleClientIDSuffix),
		}
	}
	return nil
}

// OAuthConfig derives the per-flow oauth2 configuration for a provider from
// its catalog entry and stored credentials. The result is ephemeral and
// never persisted.
func (c Catalog) OAuthConfig(p model.Provider, creds model.ProviderCredentials, redirectURL string) (*oauth2.Config, error) {
	entry, ok := c[p]
	if !ok {
		return nil, &model.ValidationError{Reason: fmt.Sprintf("no catalog entry for provider %q", p)}
	}

	return &oauth2.Config{
		ClientID:     strings.TrimSpace(creds.ClientID),
		ClientSecret: strings.TrimSpace(creds.ClientSecret),
		Endpoint:     entry.Endpoint,
		RedirectURL:  redirectURL,
		Scopes:       append([]string(nil), entry.Scopes...),
	}, nil
}

// AuthCodeURL builds the browser authorization URL for one flow, binding it
// to the PKCE verifier and CSRF state. For Google, offline access and the
// consent prompt are forced only when no refresh token existed at flow
// start, so re-logins don't re-prompt needlessly.
func AuthCodeURL(cfg *oauth2.Config, p model.Provider, state, verifier string, forceConsent bool) string {
	opts := []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(verifier)}
	if p == model.ProviderGoogle && forceConsent {
		opts = append(opts, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	}
	return cfg.AuthCodeURL(state, opts...)
}

// HintFor inspects a token exchange failure and returns an advisory
// remediation hint when the upstream error text matches a known condition,
// or "" otherwise.
func HintFor(p model.Provider, err error) string {
	if err == nil {
		return ""
	}
	text := strings.ToLower(err.Error())
	switch {
	case strings.Contains(text, "client_secret is missing") ||
		strings.Contains(text, "client secret is missing") ||
		strings.Contains(text, "missing client_secret"):
		return fmt.Sprintf("the %s OAuth client requires a client secret; add one in settings", p.Label())
	case strings.Contains(text, "invalid_client"):
		return fmt.Sprintf("check the client id and secret configured for %s", p.Label())
	default:
		return ""
	}
}
