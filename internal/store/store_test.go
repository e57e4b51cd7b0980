package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCredentialsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	c, err := s.GetCredentials(ctx)
	require.NoError(t, err)
	require.Nil(t, c, "fresh store has no credentials")

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	err = s.SetCredentials(ctx, Credentials{
		AccessToken:  "tok",
		RefreshToken: "refresh",
		ExpiresAt:    expires,
	})
	require.NoError(t, err)

	c, err = s.GetCredentials(ctx)
	require.NoError(t, err)
	require.NotNil(t, c)
	require.Equal(t, "tok", c.AccessToken)
	require.Equal(t, "refresh", c.RefreshToken)
	require.Equal(t, "bearer", c.TokenType)
	require.True(t, c.ExpiresAt.Equal(expires))
	require.True(t, c.HasRefresh())
}

func TestClearAuthClearsRegions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SetCredentials(ctx, Credentials{AccessToken: "tok"}))
	require.NoError(t, s.SetOrgRegions(ctx, []OrgRegion{
		{OrgSlug: "acme", RegionURL: "https://us.example.com"},
		{OrgSlug: "globex", RegionURL: "https://de.example.com"},
	}))

	require.NoError(t, s.ClearAuth(ctx))

	c, err := s.GetCredentials(ctx)
	require.NoError(t, err)
	require.Nil(t, c)

	regions, err := s.ListOrgRegions(ctx)
	require.NoError(t, err)
	require.Empty(t, regions, "clearing auth must leave the region directory empty")
}

func TestManualCredentialsNeverRefresh(t *testing.T) {
	c := Credentials{AccessToken: "tok", RefreshToken: "r", Manual: true}
	if c.HasRefresh() {
		t.Fatal("manual tokens must not be refreshable")
	}
	if (Credentials{AccessToken: "tok"}).ExpiresWithin(time.Hour) {
		t.Fatal("tokens without expiry never expire")
	}
}

func TestOrgRegionUpsert(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SetOrgRegions(ctx, []OrgRegion{{OrgSlug: "acme", RegionURL: "https://us.example.com"}}))
	require.NoError(t, s.SetOrgRegions(ctx, []OrgRegion{{OrgSlug: "acme", RegionURL: "https://de.example.com"}}))

	url, ok, err := s.GetOrgRegion(ctx, "acme")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "https://de.example.com", url)
}

func TestProjectAliasesReplaceNotMerge(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SetProjectAliases(ctx, []AliasEntry{
		{Alias: "f", OrgSlug: "acme", ProjectSlug: "frontend"},
		{Alias: "b", OrgSlug: "acme", ProjectSlug: "backend"},
	}, "fp1"))

	require.NoError(t, s.SetProjectAliases(ctx, []AliasEntry{
		{Alias: "w", OrgSlug: "acme", ProjectSlug: "website"},
	}, "fp2"))

	all, err := s.ListProjectAliases(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1, "SetProjectAliases replaces, never merges")
	require.Equal(t, "website", all[0].ProjectSlug)

	// The old alias is gone even without fingerprint gating.
	e, err := s.GetProjectAlias(ctx, "f", "")
	require.NoError(t, err)
	require.Nil(t, e)
}

func TestProjectAliasFingerprintGating(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SetProjectAliases(ctx, []AliasEntry{
		{Alias: "F", OrgSlug: "acme", ProjectSlug: "frontend"},
	}, "fp1"))

	// Stored lowercase, looked up case-insensitively.
	e, err := s.GetProjectAlias(ctx, "F", "fp1")
	require.NoError(t, err)
	require.NotNil(t, e)
	require.Equal(t, "f", e.Alias)
	require.Equal(t, "frontend", e.ProjectSlug)

	// Fingerprint mismatch rejects the table.
	e, err = s.GetProjectAlias(ctx, "f", "fp2")
	require.NoError(t, err)
	require.Nil(t, e)

	// No caller fingerprint always passes.
	e, err = s.GetProjectAlias(ctx, "f", "")
	require.NoError(t, err)
	require.NotNil(t, e)
}

func TestProjectAliasLegacyNoFingerprint(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// Legacy tables have aliases but no stored fingerprint; any caller
	// fingerprint passes validation.
	require.NoError(t, s.SetProjectAliases(ctx, []AliasEntry{
		{Alias: "x", OrgSlug: "acme", ProjectSlug: "xylo"},
	}, ""))

	e, err := s.GetProjectAlias(ctx, "x", "whatever")
	require.NoError(t, err)
	require.NotNil(t, e)
}

func TestPaginationCursorLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, ok, err := s.GetPaginationCursor(ctx, "issues.list", "ctx1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.SetPaginationCursor(ctx, "issues.list", "ctx1", "cF2|"))
	cur, ok, err := s.GetPaginationCursor(ctx, "issues.list", "ctx1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "cF2|", cur)

	// A different context key never sees the cursor.
	_, ok, err = s.GetPaginationCursor(ctx, "issues.list", "ctx2")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.DeletePaginationCursor(ctx, "issues.list", "ctx1"))
	_, ok, err = s.GetPaginationCursor(ctx, "issues.list", "ctx1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRootCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	entry, err := s.GetRootCache(ctx, "/work/app")
	require.NoError(t, err)
	require.Nil(t, entry)

	require.NoError(t, s.SetRootCache(ctx, RootCacheEntry{
		Root:        "/work/app",
		Identifiers: []string{"https://abc@o1.ingest.example.com/42"},
		DirMtime:    "1700000000",
	}))

	entry, err = s.GetRootCache(ctx, "/work/app")
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, []string{"https://abc@o1.ingest.example.com/42"}, entry.Identifiers)
	require.Equal(t, "1700000000", entry.DirMtime)
	require.False(t, entry.CachedAt.IsZero())

	require.NoError(t, s.DeleteRootCache(ctx, "/work/app"))
	entry, err = s.GetRootCache(ctx, "/work/app")
	require.NoError(t, err)
	require.Nil(t, entry)
}

func TestDSNAndProjectCaches(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	r, err := s.GetDSNCache(ctx, "abcd1234")
	require.NoError(t, err)
	require.Nil(t, r)

	want := CachedResolution{OrgSlug: "acme", ProjectSlug: "frontend", OrgName: "Acme", ProjectName: "Frontend"}
	require.NoError(t, s.SetDSNCache(ctx, "abcd1234", want))
	r, err = s.GetDSNCache(ctx, "abcd1234")
	require.NoError(t, err)
	require.NotNil(t, r)
	require.Equal(t, "frontend", r.ProjectSlug)
	require.False(t, r.CachedAt.IsZero())

	require.NoError(t, s.SetProjectCache(ctx, "o1", "p42", want))
	r, err = s.GetProjectCache(ctx, "o1", "p42")
	require.NoError(t, err)
	require.NotNil(t, r)
	require.Equal(t, "acme", r.OrgSlug)
}
