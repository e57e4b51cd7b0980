package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Credentials is the stored authentication state. Manual tokens (pasted by
// the user) have no refresh token and are never auto-refreshed.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time // zero when the token does not expire
	Manual       bool
}

// HasRefresh reports whether the credentials can be refreshed.
func (c Credentials) HasRefresh() bool {
	return !c.Manual && c.RefreshToken != ""
}

// ExpiresWithin reports whether the token expires inside d. Tokens without
// an expiry never do.
func (c Credentials) ExpiresWithin(d time.Duration) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return time.Until(c.ExpiresAt) < d
}

// GetCredentials returns the stored credentials, or (nil, nil) when the user
// is not logged in.
func (s *Store) GetCredentials(ctx context.Context) (*Credentials, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT access_token, refresh_token, token_type, expires_at, manual
		FROM auth WHERE key = 'default'`)
	var c Credentials
	var expires string
	var manual int
	err := row.Scan(&c.AccessToken, &c.RefreshToken, &c.TokenType, &expires, &manual)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}
	if expires != "" {
		if t, perr := time.Parse(time.RFC3339, expires); perr == nil {
			c.ExpiresAt = t
		}
	}
	c.Manual = manual != 0
	return &c, nil
}

// SetCredentials upserts the single credential row.
func (s *Store) SetCredentials(ctx context.Context, c Credentials) error {
	expires := ""
	if !c.ExpiresAt.IsZero() {
		expires = c.ExpiresAt.UTC().Format(time.RFC3339)
	}
	manual := 0
	if c.Manual {
		manual = 1
	}
	tokenType := c.TokenType
	if tokenType == "" {
		tokenType = "bearer"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auth (key, access_token, refresh_token, token_type, expires_at, manual)
		VALUES ('default', ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type = excluded.token_type,
			expires_at = excluded.expires_at,
			manual = excluded.manual`,
		c.AccessToken, c.RefreshToken, tokenType, expires, manual)
	if err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}
	return nil
}

// ClearAuth removes the stored credentials and, in the same transaction, the
// org region map. Regions are only meaningful for the account they were
// discovered under, so the two always clear together.
func (s *Store) ClearAuth(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM auth`); err != nil {
			return fmt.Errorf("failed to clear auth: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM org_regions`); err != nil {
			return fmt.Errorf("failed to clear org regions: %w", err)
		}
		return nil
	})
}
