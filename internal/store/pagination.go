package store

import (
	"context"
)

// Pagination cursors live in the metadata table keyed by command and context
// key. The context key fingerprints every query parameter that affects the
// cursor chain, so a cursor saved for one query shape can never resume a
// different one.

func paginationKey(commandKey, contextKey string) string {
	return "pagination:" + commandKey + ":" + contextKey
}

// GetPaginationCursor returns the stored cursor for (commandKey, contextKey),
// with ok false when none exists.
func (s *Store) GetPaginationCursor(ctx context.Context, commandKey, contextKey string) (string, bool, error) {
	return s.GetMetadata(ctx, paginationKey(commandKey, contextKey))
}

// SetPaginationCursor upserts the cursor for (commandKey, contextKey). The
// write is atomic per key: a reader sees the old value or the new one, never
// a partial write.
func (s *Store) SetPaginationCursor(ctx context.Context, commandKey, contextKey, cursor string) error {
	return s.SetMetadata(ctx, paginationKey(commandKey, contextKey), cursor)
}

// DeletePaginationCursor removes the entry, ending the cursor chain.
func (s *Store) DeletePaginationCursor(ctx context.Context, commandKey, contextKey string) error {
	return s.DeleteMetadata(ctx, paginationKey(commandKey, contextKey))
}
