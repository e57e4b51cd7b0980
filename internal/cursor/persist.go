package cursor

import (
	"context"

	"github.com/spyglass-cli/spyglass/internal/store"
)

// Save persists an encoded compound cursor under contextKey. When every
// segment is empty there is no next page anywhere, so the entry is deleted
// instead: a later -c last starts fresh.
func Save(ctx context.Context, s *store.Store, contextKey, encoded string) error {
	if !HasNext(encoded) {
		return s.DeletePaginationCursor(ctx, CommandKey, contextKey)
	}
	return s.SetPaginationCursor(ctx, CommandKey, contextKey, encoded)
}

// Load returns the stored per-target cursors for contextKey, aligned to
// sortedKeys. A missing entry, a legacy value, or a target-set mismatch all
// return nil.
func Load(ctx context.Context, s *store.Store, contextKey string, sortedKeys []string) (map[string]string, error) {
	stored, ok, err := s.GetPaginationCursor(ctx, CommandKey, contextKey)
	if err != nil || !ok {
		return nil, err
	}
	return DecodeCompound(stored, sortedKeys), nil
}

// LoadRaw returns the stored cursor string for contextKey without compound
// decoding; the org-all path stores a single plain cursor.
func LoadRaw(ctx context.Context, s *store.Store, contextKey string) (string, error) {
	stored, ok, err := s.GetPaginationCursor(ctx, CommandKey, contextKey)
	if err != nil || !ok {
		return "", err
	}
	if len(stored) > 0 && stored[0] == '[' {
		return "", nil
	}
	return stored, nil
}
