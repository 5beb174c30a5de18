package model

import "fmt"

// Provider identifies a supported mail provider.
type Provider string

const (
	ProviderGoogle  Provider = "google"
	ProviderOutlook Provider = "outlook"
)

// ParseProvider converts a user-supplied string into a Provider.
func ParseProvider(s string) (Provider, error) {
	switch Provider(s) {
	case ProviderGoogle, ProviderOutlook:
		return Provider(s), nil
	default:
		return "", fmt.Errorf("unknown provider %q (expected %q or %q)",
			s, ProviderGoogle, ProviderOutlook)
	}
}

// Label returns the human-readable name for the provider.
func (p Provider) Label() string {
	switch p {
	case ProviderGoogle:
		return "Google"
	case ProviderOutlook:
		return "Outlook"
	default:
		return string(p)
	}
}

// ProviderCredentials holds the OAuth client registration for one provider.
// ClientSecret is optional; the empty string means no secret is configured.
type ProviderCredentials struct {
	ClientID     string
	ClientSecret string
}

// SavedOAuthSettings is the persisted per-provider credential view surfaced
// to the caller. A nil entry means no credentials are stored for that
// provider.
type SavedOAuthSettings struct {
	Google  *ProviderCredentials
	Outlook *ProviderCredentials
}

// ForProvider returns the stored credentials for p, or nil.
func (s SavedOAuthSettings) ForProvider(p Provider) *ProviderCredentials {
	switch p {
	case ProviderGoogle:
		return s.Google
	case ProviderOutlook:
		return s.Outlook
	default:
		return nil
	}
}

// TokenSet is the in-memory result of a token exchange. It is consumed
// immediately by an inbox fetch and never persisted or logged.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
}

// ValidationError reports invalid caller-supplied data (a missing client id,
// an unknown provider). It is surfaced verbatim and never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}
