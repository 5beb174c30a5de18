// Package engine orchestrates the end-to-end mail session flows: interactive
// login, silent session restore, and credential management. It owns the
// wiring between the credential store, the OAuth machinery, and the
// per-provider inbox adapters.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nhle/mail-engine/internal/auth"
	"github.com/nhle/mail-engine/internal/browser"
	"github.com/nhle/mail-engine/internal/inbox"
	"github.com/nhle/mail-engine/internal/inbox/google"
	"github.com/nhle/mail-engine/internal/inbox/outlook"
	"github.com/nhle/mail-engine/internal/model"
	"github.com/nhle/mail-engine/internal/store"
)

// MissingCredentialsError reports a login attempt for a provider with no
// stored client credentials and no environment fallback.
type MissingCredentialsError struct {
	Provider model.Provider
}

func (e *MissingCredentialsError) Error() string {
	return fmt.Sprintf("no OAuth client configured for %s; save credentials first", e.Provider.Label())
}

// Engine ties the credential store, OAuth catalog, token exchanger, and
// inbox adapters into the session flows.
type Engine struct {
	cfg       *model.EngineConfig
	store     store.Store
	catalog   auth.Catalog
	exchanger *auth.Exchanger
	fetchers  map[model.Provider]inbox.Fetcher
	openURL   func(string) error
	logger    *slog.Logger
}

// New builds an Engine backed by the SQLite store at cfg.StorePath.
func New(cfg *model.EngineConfig) (*Engine, error) {
	st, err := store.NewSQLiteStore(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("opening credential store: %w", err)
	}
	return NewWithStore(cfg, st), nil
}

// NewWithStore builds an Engine on an existing store. The caller keeps
// ownership of nothing; Close tears the store down.
func NewWithStore(cfg *model.EngineConfig, st store.Store) *Engine {
	return &Engine{
		cfg:       cfg,
		store:     st,
		catalog:   auth.DefaultCatalog(),
		exchanger: auth.NewExchanger(),
		fetchers: map[model.Provider]inbox.Fetcher{
			model.ProviderGoogle:  google.New(),
			model.ProviderOutlook: outlook.New(),
		},
		openURL: browser.Open,
		logger:  slog.Default(),
	}
}

// Close releases the underlying store.
func (e *Engine) Close() error {
	return e.store.Close()
}

// SaveProviderCredentials validates and persists the OAuth client
// registration for a provider.
func (e *Engine) SaveProviderCredentials(ctx context.Context, p model.Provider, creds model.ProviderCredentials) error {
	if err := e.catalog.ValidateClientID(p, creds.ClientID); err != nil {
		return err
	}
	return e.store.SaveCredentials(ctx, p, creds)
}

// LoadOAuthSettings returns the persisted credentials for every provider.
func (e *Engine) LoadOAuthSettings(ctx context.Context) (model.SavedOAuthSettings, error) {
	return e.store.LoadSettings(ctx)
}

// LoginAndFetch signs the user in to a provider and returns the account
// identity plus a bounded inbox summary. A stored refresh token is tried
// first; when the endpoint rejects it, the token is discarded and the flow
// falls back to an interactive browser login.
func (e *Engine) LoginAndFetch(ctx context.Context, p model.Provider) (*model.LoginResult, error) {
	creds, err := e.resolveCredentials(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := e.catalog.ValidateClientID(p, creds.ClientID); err != nil {
		return nil, err
	}

	stored, err := e.store.LoadRefreshToken(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("loading refresh token: %w", err)
	}

	if stored != "" {
		result, err := e.refreshAndFetch(ctx, p, creds, stored)
		if err == nil {
			return result, nil
		}
		var exchErr *auth.ExchangeError
		if !errors.As(err, &exchErr) {
			return nil, err
		}
		// The endpoint rejected the stored token: treat it as revoked.
		e.logger.Info("refresh token rejected, falling back to interactive login",
			"provider", p)
		if clearErr := e.store.ClearRefreshToken(ctx, p); clearErr != nil {
			return nil, fmt.Errorf("clearing rejected refresh token: %w", clearErr)
		}
	}

	return e.interactiveLogin(ctx, p, creds, stored != "")
}

// TryRestoreSession attempts a silent session restore from a stored refresh
// token. It never opens a browser: no stored credentials, no stored token,
// or a rejected token all yield (nil, nil). Only infrastructure failures
// return an error.
func (e *Engine) TryRestoreSession(ctx context.Context, p model.Provider) (*model.LoginResult, error) {
	creds, err := e.resolveCredentials(ctx, p)
	if err != nil {
		var missing *MissingCredentialsError
		if errors.As(err, &missing) {
			return nil, nil
		}
		return nil, err
	}

	stored, err := e.store.LoadRefreshToken(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("loading refresh token: %w", err)
	}
	if stored == "" {
		return nil, nil
	}

	result, err := e.refreshAndFetch(ctx, p, creds, stored)
	if err != nil {
		var exchErr *auth.ExchangeError
		if errors.As(err, &exchErr) {
			e.logger.Info("refresh token rejected during restore, discarding it",
				"provider", p)
			if clearErr := e.store.ClearRefreshToken(ctx, p); clearErr != nil {
				return nil, fmt.Errorf("clearing rejected refresh token: %w", clearErr)
			}
			return nil, nil
		}
		return nil, err
	}
	return result, nil
}

// refreshAndFetch redeems a stored refresh token for an access token and
// fetches the inbox. The stored token is rewritten only when the endpoint
// rotated it to a different value.
func (e *Engine) refreshAndFetch(ctx context.Context, p model.Provider, creds model.ProviderCredentials, stored string) (*model.LoginResult, error) {
	ocfg, err := e.catalog.OAuthConfig(p, creds, "")
	if err != nil {
		return nil, err
	}

	tokens, err := e.exchanger.ExchangeRefresh(ctx, ocfg, stored)
	if err != nil {
		return nil, e.withHint(p, err)
	}

	if tokens.RefreshToken != "" && tokens.RefreshToken != stored {
		e.logger.Debug("refresh token rotated", "provider", p)
		if err := e.store.SaveRefreshToken(ctx, p, tokens.RefreshToken); err != nil {
			return nil, fmt.Errorf("saving rotated refresh token: %w", err)
		}
	}

	return e.fetch(ctx, p, tokens.AccessToken)
}

// interactiveLogin runs the full browser authorization-code flow with PKCE.
// hadRefresh records whether a (now discarded) refresh token existed at flow
// start; for Google, a fresh grant forces the consent prompt so a refresh
// token is actually issued.
func (e *Engine) interactiveLogin(ctx context.Context, p model.Provider, creds model.ProviderCredentials, hadRefresh bool) (*model.LoginResult, error) {
	target, err := auth.ResolveRedirect(e.cfg.RedirectURI)
	if err != nil {
		return nil, err
	}

	listener, err := auth.ListenCallback(target, e.cfg.CallbackTimeout(), e.cfg.ReadTimeout())
	if err != nil {
		return nil, err
	}
	defer listener.Close()

	// The listener may have been bound on a kernel-chosen port; the
	// authorization URL must carry the port actually bound.
	redirectURL := fmt.Sprintf("http://%s:%d%s", target.Host, listener.Port(), target.Path)

	ocfg, err := e.catalog.OAuthConfig(p, creds, redirectURL)
	if err != nil {
		return nil, err
	}

	state := auth.GenerateState()
	verifier, err := auth.GenerateVerifier()
	if err != nil {
		return nil, err
	}

	authURL := auth.AuthCodeURL(ocfg, p, state, verifier, !hadRefresh)
	e.logger.Info("opening browser for authorization", "provider", p)
	if err := e.openURL(authURL); err != nil {
		// The flow can still complete if the user opens the URL themselves.
		e.logger.Warn("cannot open browser, visit the URL manually",
			"provider", p, "url", authURL, "error", err)
	}

	code, err := listener.Await(state)
	if err != nil {
		return nil, err
	}

	tokens, err := e.exchanger.ExchangeCode(ctx, ocfg, code, verifier)
	if err != nil {
		return nil, e.withHint(p, err)
	}

	if tokens.RefreshToken != "" {
		if err := e.store.SaveRefreshToken(ctx, p, tokens.RefreshToken); err != nil {
			return nil, fmt.Errorf("saving refresh token: %w", err)
		}
	} else {
		e.logger.Warn("no refresh token issued, next login will be interactive",
			"provider", p)
	}

	return e.fetch(ctx, p, tokens.AccessToken)
}

func (e *Engine) fetch(ctx context.Context, p model.Provider, accessToken string) (*model.LoginResult, error) {
	fetcher, ok := e.fetchers[p]
	if !ok {
		return nil, &model.ValidationError{Reason: fmt.Sprintf("no inbox adapter for provider %q", p)}
	}
	result, err := fetcher.FetchInbox(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	e.logger.Info("inbox fetched",
		"provider", p, "account", result.Account, "messages", len(result.Messages))
	return result, nil
}

// resolveCredentials loads the stored client registration for a provider,
// falling back to GOOGLE_CLIENT_ID / GOOGLE_CLIENT_SECRET for Google when
// nothing is stored.
func (e *Engine) resolveCredentials(ctx context.Context, p model.Provider) (model.ProviderCredentials, error) {
	settings, err := e.store.LoadSettings(ctx)
	if err != nil {
		return model.ProviderCredentials{}, fmt.Errorf("loading settings: %w", err)
	}

	if creds := settings.ForProvider(p); creds != nil {
		return *creds, nil
	}

	if p == model.ProviderGoogle && e.cfg.GoogleClientID != "" {
		return model.ProviderCredentials{
			ClientID:     e.cfg.GoogleClientID,
			ClientSecret: e.cfg.GoogleClientSecret,
		}, nil
	}

	return model.ProviderCredentials{}, &MissingCredentialsError{Provider: p}
}

// withHint appends an advisory remediation hint to a token exchange error
// when the upstream text matches a known condition.
func (e *Engine) withHint(p model.Provider, err error) error {
	if hint := auth.HintFor(p, err); hint != "" {
		return fmt.Errorf("%w (%s)", err, hint)
	}
	return err
}
