package resolve

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spyglass-cli/spyglass/internal/alias"
	"github.com/spyglass-cli/spyglass/internal/api"
	"github.com/spyglass-cli/spyglass/internal/store"
	"github.com/spyglass-cli/spyglass/internal/types"
)

const (
	// maxScanDepth bounds the tree walk below the project root.
	maxScanDepth = 6
	// maxScanFileSize skips generated blobs and bundles.
	maxScanFileSize = 512 * 1024
	// rootCacheTTL bounds how long a cached scan is trusted even when the
	// root directory's mtime is unchanged.
	rootCacheTTL = 24 * time.Hour
	// resolutionCacheTTL bounds identifier -> project cache entries.
	resolutionCacheTTL = 24 * time.Hour
)

// dsnURLRe matches a full client-key URL: key@host/projectID, with an
// optional o<orgID> host label identifying the owning org.
var dsnURLRe = regexp.MustCompile(`https?://([0-9a-f]{16,64})@((?:o(\d+)\.)?[A-Za-z0-9.-]+(?::\d+)?)/(\d+)`)

// publicKeyRe matches the bare public-key shape used by key-only
// configuration (32 lowercase hex chars).
var publicKeyRe = regexp.MustCompile(`\b[0-9a-f]{32}\b`)

// rootMarkers indicate a project root during the upward walk.
var rootMarkers = []string{
	".git", ".hg", "go.mod", "package.json", "pyproject.toml",
	"Cargo.toml", "Gemfile", "pom.xml",
}

// skipDirs are never descended into.
var skipDirs = map[string]bool{
	"node_modules": true, "vendor": true, "dist": true,
	"build": true, "target": true, "__pycache__": true,
}

// scanExtensions are the source and config file types worth reading.
var scanExtensions = map[string]bool{
	".go": true, ".js": true, ".mjs": true, ".cjs": true, ".ts": true,
	".jsx": true, ".tsx": true, ".py": true, ".rb": true, ".java": true,
	".kt": true, ".php": true, ".cs": true, ".swift": true,
	".json": true, ".yaml": true, ".yml": true, ".toml": true,
	".ini": true, ".cfg": true, ".properties": true, ".sh": true,
	".xml": true, ".html": true,
}

// identifier is one parsed embedded client key.
type identifier struct {
	Raw       string
	PublicKey string
	OrgID     string // empty for key-only identifiers
	ProjectID string // empty for key-only identifiers
}

func parseIdentifier(raw string) (identifier, bool) {
	if m := dsnURLRe.FindStringSubmatch(raw); m != nil {
		return identifier{Raw: raw, PublicKey: m[1], OrgID: m[3], ProjectID: m[4]}, true
	}
	if publicKeyRe.MatchString(raw) && len(raw) == 32 {
		return identifier{Raw: raw, PublicKey: raw}, true
	}
	return identifier{}, false
}

// detectFromTree scans the working tree and the process environment for
// embedded identifiers and resolves each to a target. Returns nil when no
// identifier is found.
func (r *Resolver) detectFromTree(ctx context.Context) (*types.TargetResolution, error) {
	root := findProjectRoot(r.workDir())
	identifiers, err := r.scanWithCache(ctx, root)
	if err != nil {
		return nil, err
	}
	for _, raw := range scanStrings(r.environ()) {
		identifiers = appendIdentifier(identifiers, raw)
	}
	if len(identifiers) == 0 {
		return nil, nil
	}

	res := &types.TargetResolution{Fingerprint: alias.Fingerprint(identifiers)}
	var accessible []api.Project
	for _, raw := range identifiers {
		id, ok := parseIdentifier(raw)
		if !ok {
			continue
		}
		target, err := r.resolveIdentifier(ctx, id, &accessible)
		if err != nil {
			return nil, err
		}
		if target == nil {
			res.SkippedSelfHosted++
			continue
		}
		res.Targets = append(res.Targets, *target)
	}
	dedupeTargets(res)
	return res, nil
}

// scanWithCache returns the identifiers under root, from the root cache when
// the directory mtime is unchanged and the entry is younger than the TTL.
func (r *Resolver) scanWithCache(ctx context.Context, root string) ([]string, error) {
	mtime := dirMtime(root)
	if r.Store != nil {
		cached, err := r.Store.GetRootCache(ctx, root)
		if err != nil {
			return nil, err
		}
		if cached != nil && cached.DirMtime == mtime && time.Since(cached.CachedAt) < rootCacheTTL {
			return cached.Identifiers, nil
		}
	}

	identifiers := scanTree(root)
	if r.Store != nil {
		if err := r.Store.SetRootCache(ctx, store.RootCacheEntry{
			Root: root, Identifiers: identifiers, DirMtime: mtime,
		}); err != nil {
			return nil, err
		}
	}
	return identifiers, nil
}

// resolveIdentifier maps one identifier to a target, via the store caches
// first and the API on a miss. Returns nil for identifiers the configured
// service does not know (typically keys of another deployment).
func (r *Resolver) resolveIdentifier(ctx context.Context, id identifier, accessible *[]api.Project) (*types.Target, error) {
	if r.Store != nil {
		var cached *store.CachedResolution
		var err error
		if id.OrgID != "" {
			cached, err = r.Store.GetProjectCache(ctx, id.OrgID, id.ProjectID)
		} else {
			cached, err = r.Store.GetDSNCache(ctx, id.PublicKey)
		}
		if err != nil {
			return nil, err
		}
		if cached != nil && time.Since(cached.CachedAt) < resolutionCacheTTL {
			return &types.Target{
				OrgSlug:     cached.OrgSlug,
				ProjectSlug: cached.ProjectSlug,
				OrgName:     cached.OrgName,
				ProjectName: cached.ProjectName,
				Source:      "detected",
			}, nil
		}
	}

	if *accessible == nil {
		projects, err := r.API.ListAccessibleProjects(ctx)
		if err != nil {
			return nil, err
		}
		*accessible = projects
	}

	var match *api.Project
	if id.OrgID != "" {
		for i, p := range *accessible {
			if p.ID == id.ProjectID && p.Organization != nil && p.Organization.ID == id.OrgID {
				match = &(*accessible)[i]
				break
			}
		}
	} else {
		match = r.matchByPublicKey(ctx, id.PublicKey, *accessible)
	}
	if match == nil || match.Organization == nil {
		return nil, nil
	}

	resolution := store.CachedResolution{
		OrgSlug:     match.Organization.Slug,
		ProjectSlug: match.Slug,
		OrgName:     match.Organization.Name,
		ProjectName: match.Name,
	}
	if r.Store != nil {
		var err error
		if id.OrgID != "" {
			err = r.Store.SetProjectCache(ctx, id.OrgID, id.ProjectID, resolution)
		} else {
			err = r.Store.SetDSNCache(ctx, id.PublicKey, resolution)
		}
		if err != nil {
			return nil, err
		}
	}
	return &types.Target{
		OrgSlug:     resolution.OrgSlug,
		ProjectSlug: resolution.ProjectSlug,
		OrgName:     resolution.OrgName,
		ProjectName: resolution.ProjectName,
		Source:      "detected",
	}, nil
}

// matchByPublicKey finds the project owning a key-only identifier by probing
// each accessible project's key list. Errors on individual projects are
// skipped: a key that cannot be confirmed resolves to nothing.
func (r *Resolver) matchByPublicKey(ctx context.Context, publicKey string, accessible []api.Project) *api.Project {
	for i, p := range accessible {
		if p.Organization == nil {
			continue
		}
		keys, err := r.API.ListProjectKeys(ctx, p.Organization.Slug, p.Slug)
		if err != nil {
			continue
		}
		for _, k := range keys {
			if k.Public == publicKey || k.DSN.Public != "" && strings.Contains(k.DSN.Public, publicKey) {
				return &accessible[i]
			}
		}
	}
	return nil
}

// findProjectRoot walks upward from dir to the nearest directory carrying a
// version-control or language marker. Falls back to dir itself.
func findProjectRoot(dir string) string {
	cur, err := filepath.Abs(dir)
	if err != nil {
		return dir
	}
	for probe := cur; ; {
		for _, marker := range rootMarkers {
			if _, err := os.Stat(filepath.Join(probe, marker)); err == nil {
				return probe
			}
		}
		parent := filepath.Dir(probe)
		if parent == probe {
			return cur
		}
		probe = parent
	}
}

// scanTree walks root to maxScanDepth collecting identifiers from source
// files and .env* dotfiles, deduplicated in discovery order.
func scanTree(root string) []string {
	var out []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			return nil
		}
		depth := strings.Count(rel, string(filepath.Separator))
		name := d.Name()
		if d.IsDir() {
			if path == root {
				return nil
			}
			if depth >= maxScanDepth || skipDirs[name] || strings.HasPrefix(name, ".") {
				return fs.SkipDir
			}
			return nil
		}
		if !scannableFile(name) {
			return nil
		}
		if info, ierr := d.Info(); ierr != nil || info.Size() > maxScanFileSize {
			return nil
		}
		data, rerr := os.ReadFile(path)
		if rerr != nil {
			return nil
		}
		for _, raw := range extractIdentifiers(string(data)) {
			out = appendIdentifier(out, raw)
		}
		return nil
	})
	return out
}

func scannableFile(name string) bool {
	if strings.HasPrefix(name, ".env") {
		return true
	}
	if strings.HasPrefix(name, ".") {
		return false
	}
	return scanExtensions[strings.ToLower(filepath.Ext(name))]
}

// extractIdentifiers pulls every identifier literal out of a blob of text.
// Full URL identifiers win over the bare keys embedded inside them.
func extractIdentifiers(text string) []string {
	var out []string
	matched := map[string]bool{}
	for _, m := range dsnURLRe.FindAllStringSubmatch(text, -1) {
		out = appendIdentifier(out, m[0])
		matched[m[1]] = true
	}
	for _, key := range publicKeyRe.FindAllString(text, -1) {
		if matched[key] {
			continue // already covered by a URL identifier
		}
		out = appendIdentifier(out, key)
	}
	return out
}

// scanStrings extracts identifiers from arbitrary values, e.g. the process
// environment.
func scanStrings(values []string) []string {
	var out []string
	for _, v := range values {
		for _, raw := range extractIdentifiers(v) {
			out = appendIdentifier(out, raw)
		}
	}
	return out
}

func appendIdentifier(list []string, raw string) []string {
	for _, existing := range list {
		if existing == raw {
			return list
		}
	}
	return append(list, raw)
}

func dirMtime(dir string) string {
	info, err := os.Stat(dir)
	if err != nil {
		return ""
	}
	return info.ModTime().UTC().Format(time.RFC3339Nano)
}

func (r *Resolver) workDir() string {
	if r.WorkDir != "" {
		return r.WorkDir
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

func (r *Resolver) environ() []string {
	if r.Environ != nil {
		return r.Environ
	}
	return os.Environ()
}
