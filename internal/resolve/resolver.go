package resolve

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spyglass-cli/spyglass/internal/api"
	"github.com/spyglass-cli/spyglass/internal/config"
	"github.com/spyglass-cli/spyglass/internal/store"
	"github.com/spyglass-cli/spyglass/internal/types"
)

// ProjectAPI is the slice of the API client the resolver needs. *api.Client
// satisfies it.
type ProjectAPI interface {
	ListOrgProjects(ctx context.Context, org string) ([]api.Project, error)
	ListAccessibleProjects(ctx context.Context) ([]api.Project, error)
	ListProjectKeys(ctx context.Context, org, project string) ([]api.ProjectKey, error)
}

// Flags carries explicit CLI-supplied target context.
type Flags struct {
	Org     string
	Project string
}

// Resolver produces target lists. WorkDir and Environ default to the process
// working directory and environment; tests override them.
type Resolver struct {
	Store   *store.Store
	API     ProjectAPI
	Env     *config.Config
	WorkDir string
	Environ []string
}

// Resolve turns a parsed positional argument into the resolved target set.
func (r *Resolver) Resolve(ctx context.Context, parsed types.ParsedTarget, flags Flags) (*types.TargetResolution, error) {
	switch parsed.Mode {
	case types.ModeExplicit:
		return singleResolution(types.Target{
			OrgSlug: parsed.Org, ProjectSlug: parsed.Project, Source: "argument",
		}), nil
	case types.ModeURL:
		if parsed.Org == "" || parsed.Project == "" {
			return nil, types.NewValidationError(
				"URL does not identify a project", "pass org/project or a project URL")
		}
		return singleResolution(types.Target{
			OrgSlug: parsed.Org, ProjectSlug: parsed.Project, Source: "url",
		}), nil
	case types.ModeOrgAll:
		return r.resolveOrgAll(ctx, parsed.Org)
	case types.ModeProjectSearch:
		return r.resolveProjectSearch(ctx, parsed.Project)
	case types.ModeAutoDetect:
		return r.autoDetect(ctx, flags)
	}
	return nil, types.NewValidationError("target mode not usable for listing", "")
}

// resolveOrgAll expands org/ to every project in the org.
func (r *Resolver) resolveOrgAll(ctx context.Context, org string) (*types.TargetResolution, error) {
	projects, err := r.API.ListOrgProjects(ctx, org)
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, &types.ContextError{Msg: fmt.Sprintf("organization %q has no projects", org)}
	}
	res := &types.TargetResolution{}
	for _, p := range projects {
		res.Targets = append(res.Targets, types.Target{
			OrgSlug:     org,
			ProjectSlug: p.Slug,
			ProjectName: p.Name,
			Source:      "org-all",
		})
	}
	finishResolution(res)
	return res, nil
}

// resolveProjectSearch finds projects matching slug across every accessible
// org. More than one match yields a multi-target resolution.
func (r *Resolver) resolveProjectSearch(ctx context.Context, slug string) (*types.TargetResolution, error) {
	projects, err := r.API.ListAccessibleProjects(ctx)
	if err != nil {
		return nil, err
	}
	res := &types.TargetResolution{}
	for _, p := range projects {
		if !strings.EqualFold(p.Slug, slug) || p.Organization == nil {
			continue
		}
		res.Targets = append(res.Targets, types.Target{
			OrgSlug:     p.Organization.Slug,
			OrgName:     p.Organization.Name,
			ProjectSlug: p.Slug,
			ProjectName: p.Name,
			Source:      "project-search",
		})
	}
	if len(res.Targets) == 0 {
		return nil, &types.ResolutionError{Kind: "project", Name: slug}
	}
	dedupeTargets(res)
	finishResolution(res)
	return res, nil
}

// autoDetect applies the detection chain, returning on the first source that
// yields a target:
//
//  1. CLI flags (both org and project; one alone is an error)
//  2. environment (PROJECT=org/project combo wins over ORG+PROJECT)
//  3. project-local defaults file
//  4. stored defaults
//  5. embedded identifier scan of the working tree
//  6. directory-name inference
func (r *Resolver) autoDetect(ctx context.Context, flags Flags) (*types.TargetResolution, error) {
	if flags.Org != "" || flags.Project != "" {
		if flags.Org == "" || flags.Project == "" {
			return nil, &types.ContextError{
				Msg: "both --org and --project are required when either is given",
			}
		}
		return singleResolution(types.Target{
			OrgSlug: flags.Org, ProjectSlug: flags.Project, Source: "flags",
		}), nil
	}

	if r.Env != nil {
		if org, project, ok := config.SplitCombo(r.Env.Project); ok {
			return singleResolution(types.Target{
				OrgSlug: org, ProjectSlug: project, Source: "environment",
			}), nil
		}
		if r.Env.Org != "" && r.Env.Project != "" {
			return singleResolution(types.Target{
				OrgSlug: r.Env.Org, ProjectSlug: r.Env.Project, Source: "environment",
			}), nil
		}
	}

	if pf := config.FindProjectFile(r.WorkDir); pf != nil && pf.Org != "" && pf.Project != "" {
		return singleResolution(types.Target{
			OrgSlug: pf.Org, ProjectSlug: pf.Project, Source: config.ProjectFileName,
		}), nil
	}

	if r.Store != nil {
		org, okOrg, err := r.Store.GetDefault(ctx, "org")
		if err != nil {
			return nil, err
		}
		project, okProject, err := r.Store.GetDefault(ctx, "project")
		if err != nil {
			return nil, err
		}
		if okOrg && okProject && org != "" && project != "" {
			return singleResolution(types.Target{
				OrgSlug: org, ProjectSlug: project, Source: "defaults",
			}), nil
		}
	}

	res, err := r.detectFromTree(ctx)
	if err != nil {
		return nil, err
	}
	if res != nil && len(res.Targets) > 0 {
		finishResolution(res)
		return res, nil
	}

	inferred, err := r.inferFromDirName(ctx)
	if err != nil {
		return nil, err
	}
	if inferred != nil && len(inferred.Targets) > 0 {
		finishResolution(inferred)
		return inferred, nil
	}

	return nil, &types.ContextError{
		Msg: "could not determine a target: no client keys found in the working tree and no defaults configured",
	}
}

func singleResolution(t types.Target) *types.TargetResolution {
	return &types.TargetResolution{Targets: []types.Target{t}}
}

// dedupeTargets removes duplicate (org, project) pairs, keeping discovery
// order.
func dedupeTargets(res *types.TargetResolution) {
	seen := make(map[string]bool, len(res.Targets))
	out := res.Targets[:0]
	for _, t := range res.Targets {
		if seen[t.Key()] {
			continue
		}
		seen[t.Key()] = true
		out = append(out, t)
	}
	res.Targets = out
}

// finishResolution fills the multi-target footer.
func finishResolution(res *types.TargetResolution) {
	if len(res.Targets) < 2 {
		return
	}
	keys := make([]string, len(res.Targets))
	for i, t := range res.Targets {
		keys[i] = t.Key()
	}
	sort.Strings(keys)
	res.Footer = fmt.Sprintf("Listing issues from %d projects: %s", len(keys), strings.Join(keys, ", "))
}
