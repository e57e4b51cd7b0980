package store

import (
	"context"
	"fmt"
)

// GetMetadata returns the value for key from the metadata table, with ok
// false when the key is absent.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, bool, error) {
	return s.queryRowString(ctx, `SELECT value FROM metadata WHERE key = ?`, key)
}

// SetMetadata upserts a metadata key.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata %q: %w", key, err)
	}
	return nil
}

// DeleteMetadata removes a metadata key. Deleting an absent key is not an
// error.
func (s *Store) DeleteMetadata(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM metadata WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete metadata %q: %w", key, err)
	}
	return nil
}

// GetDefault reads a user default (default_org, default_project, ...).
func (s *Store) GetDefault(ctx context.Context, key string) (string, bool, error) {
	return s.queryRowString(ctx, `SELECT value FROM defaults WHERE key = ?`, key)
}

// SetDefault upserts a user default.
func (s *Store) SetDefault(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO defaults (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set default %q: %w", key, err)
	}
	return nil
}

// UnsetDefault removes a user default.
func (s *Store) UnsetDefault(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM defaults WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to unset default %q: %w", key, err)
	}
	return nil
}

// SetUserInfo upserts a user_info key (login identity, user id).
func (s *Store) SetUserInfo(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_info (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set user info %q: %w", key, err)
	}
	return nil
}

// GetUserInfo reads a user_info key.
func (s *Store) GetUserInfo(ctx context.Context, key string) (string, bool, error) {
	return s.queryRowString(ctx, `SELECT value FROM user_info WHERE key = ?`, key)
}

// SetInstanceInfo upserts an instance_info key (server version, deployment
// flavor probed at login).
func (s *Store) SetInstanceInfo(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO instance_info (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set instance info %q: %w", key, err)
	}
	return nil
}

// GetInstanceInfo reads an instance_info key.
func (s *Store) GetInstanceInfo(ctx context.Context, key string) (string, bool, error) {
	return s.queryRowString(ctx, `SELECT value FROM instance_info WHERE key = ?`, key)
}
