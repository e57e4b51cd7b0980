package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spyglass-cli/spyglass/internal/api"
	"github.com/spyglass-cli/spyglass/internal/config"
	"github.com/spyglass-cli/spyglass/internal/region"
	"github.com/spyglass-cli/spyglass/internal/resolve"
	"github.com/spyglass-cli/spyglass/internal/store"
	"github.com/spyglass-cli/spyglass/internal/types"
)

// openStore returns the process-wide store.
func openStore(ctx context.Context) (*store.Store, error) {
	return store.Default(ctx, config.Load().ConfigDir)
}

// newClient wires the API client with credentials and region routing.
func newClient(ctx context.Context) (*api.Client, *store.Store, error) {
	s, err := openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	c := api.NewClient(config.Load().BaseURL, s)
	c.SetRouter(region.New(s, c))
	return c, s, nil
}

// newResolver builds the target resolver over the shared client and store.
func newResolver(c *api.Client, s *store.Store) *resolve.Resolver {
	return &resolve.Resolver{
		Store: s,
		API:   c,
		Env:   config.Load(),
	}
}

// outputJSON pretty-prints v to stdout.
func outputJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// errorHint maps error kinds to the usage hint printed under the message.
func errorHint(err error) string {
	var (
		vErr *types.ValidationError
		cErr *types.ContextError
		aErr *types.AuthError
		pErr *types.ApiError
		mErr *types.MultiFetchError
	)
	switch {
	case errors.As(err, &vErr):
		return vErr.Hint
	case errors.As(err, &cErr):
		return "pass org/project, set defaults with `spy config set`, or run inside an instrumented project"
	case errors.As(err, &aErr):
		return "run `spy login` to authenticate"
	case errors.As(err, &pErr), errors.As(err, &mErr):
		return ""
	}
	return ""
}

// warn prints a non-fatal problem to stderr.
func warn(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
}
