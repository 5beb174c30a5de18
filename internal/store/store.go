package store

import (
	"context"

	"github.com/nhle/mail-engine/internal/model"
)

// Store defines the persistence interface for per-provider OAuth client
// credentials and refresh tokens. At most one row exists per provider in
// each table; saves are upserts, never appends.
type Store interface {
	// LoadSettings returns the stored credentials for every provider.
	LoadSettings(ctx context.Context) (model.SavedOAuthSettings, error)

	// SaveCredentials upserts the client credentials for a provider.
	// Fails with *model.ValidationError when the trimmed client id is empty.
	SaveCredentials(ctx context.Context, p model.Provider, creds model.ProviderCredentials) error

	// LoadRefreshToken returns the stored refresh token for a provider,
	// or "" when none is stored.
	LoadRefreshToken(ctx context.Context, p model.Provider) (string, error)

	// SaveRefreshToken upserts the refresh token for a provider. A token
	// that is empty after trimming clears the stored one instead.
	SaveRefreshToken(ctx context.Context, p model.Provider, token string) error

	// ClearRefreshToken removes the stored refresh token for a provider.
	ClearRefreshToken(ctx context.Context, p model.Provider) error

	Close() error
}
