package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/mail-engine/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creating
// parent directories if needed, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating store directory %s: %w", dir, err)
			}
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// LoadSettings retrieves the stored client credentials for all providers.
func (s *SQLiteStore) LoadSettings(ctx context.Context) (model.SavedOAuthSettings, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT provider, client_id, client_secret FROM oauth_settings",
	)
	if err != nil {
		return model.SavedOAuthSettings{}, fmt.Errorf("querying oauth settings: %w", err)
	}
	defer rows.Close()

	var settings model.SavedOAuthSettings
	for rows.Next() {
		var (
			provider string
			clientID string
			secret   sql.NullString
		)
		if err := rows.Scan(&provider, &clientID, &secret); err != nil {
			return model.SavedOAuthSettings{}, fmt.Errorf("scanning oauth settings row: %w", err)
		}

		creds := &model.ProviderCredentials{
			ClientID:     strings.TrimSpace(clientID),
			ClientSecret: normalize(secret.String),
		}

		switch model.Provider(provider) {
		case model.ProviderGoogle:
			settings.Google = creds
		case model.ProviderOutlook:
			settings.Outlook = creds
		}
	}

	return settings, rows.Err()
}

// SaveCredentials upserts the client credentials for a provider.
func (s *SQLiteStore) SaveCredentials(ctx context.Context, p model.Provider, creds model.ProviderCredentials) error {
	clientID := strings.TrimSpace(creds.ClientID)
	if clientID == "" {
		return &model.ValidationError{Reason: "client id must not be empty"}
	}

	var secret interface{}
	if v := normalize(creds.ClientSecret); v != "" {
		secret = v
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO oauth_settings (provider, client_id, client_secret)
		VALUES (?, ?, ?)`,
		string(p), clientID, secret,
	)
	if err != nil {
		return fmt.Errorf("saving credentials for %s: %w", p, err)
	}

	return nil
}

// LoadRefreshToken returns the stored refresh token for a provider, or ""
// when none is stored.
func (s *SQLiteStore) LoadRefreshToken(ctx context.Context, p model.Provider) (string, error) {
	var token string
	err := s.db.GetContext(ctx, &token,
		"SELECT refresh_token FROM oauth_tokens WHERE provider = ?", string(p),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("loading refresh token for %s: %w", p, err)
	}

	return normalize(token), nil
}

// SaveRefreshToken upserts the refresh token for a provider; an empty or
// whitespace-only token clears the stored one instead.
func (s *SQLiteStore) SaveRefreshToken(ctx context.Context, p model.Provider, token string) error {
	token = normalize(token)
	if token == "" {
		return s.ClearRefreshToken(ctx, p)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO oauth_tokens (provider, refresh_token)
		VALUES (?, ?)`,
		string(p), token,
	)
	if err != nil {
		return fmt.Errorf("saving refresh token for %s: %w", p, err)
	}

	return nil
}

// ClearRefreshToken removes the stored refresh token for a provider.
func (s *SQLiteStore) ClearRefreshToken(ctx context.Context, p model.Provider) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM oauth_tokens WHERE provider = ?", string(p),
	)
	if err != nil {
		return fmt.Errorf("clearing refresh token for %s: %w", p, err)
	}
	return nil
}

// normalize trims a stored value so whitespace-only secrets and tokens are
// indistinguishable from absent ones.
func normalize(v string) string {
	return strings.TrimSpace(v)
}
