package types

import (
	"errors"
	"fmt"
)

// Exit codes for the spy binary.
const (
	ExitOK         = 0
	ExitValidation = 1
	ExitAuth       = 2
	ExitAPI        = 3
	ExitOther      = 4
)

// ValidationError reports structurally invalid caller input: a bad cursor,
// an out-of-range limit, a malformed target argument.
type ValidationError struct {
	Msg  string
	Hint string
}

func (e *ValidationError) Error() string { return e.Msg }

// NewValidationError builds a validation error with an optional usage hint.
func NewValidationError(msg, hint string) *ValidationError {
	return &ValidationError{Msg: msg, Hint: hint}
}

// AuthError means credentials are missing, invalid, or unrefreshable. It
// always propagates; nothing downgrades it.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	if e.Reason == "" {
		return "authentication required"
	}
	return e.Reason
}

// ContextError means no target could be determined: nothing detected in the
// working tree, only one of org/project supplied, or an org with no projects.
type ContextError struct {
	Msg string
}

func (e *ContextError) Error() string { return e.Msg }

// ResolutionError means a named entity (org, project, short id) was not found.
type ResolutionError struct {
	Kind string // "organization", "project", "issue"
	Name string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

// ApiError is a non-2xx response from the service. Detail carries the
// server-provided message when the body was JSON-parseable.
type ApiError struct {
	Status   int
	Detail   string
	Endpoint string
}

func (e *ApiError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("API error %d on %s: %s", e.Status, e.Endpoint, e.Detail)
	}
	return fmt.Sprintf("API error %d on %s", e.Status, e.Endpoint)
}

// NetworkError is a transport failure before any HTTP status was received.
type NetworkError struct {
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error on %s: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// MultiFetchError is the all-targets-failed composite. It preserves the
// first underlying ApiError's status so callers (and local telemetry) can
// still see a meaningful code.
type MultiFetchError struct {
	Count  int
	Status int
	First  error
}

func (e *MultiFetchError) Error() string {
	return fmt.Sprintf("Failed to fetch issues from %d project(s): %v", e.Count, e.First)
}

func (e *MultiFetchError) Unwrap() error { return e.First }

// ExitCode maps an error to the spy process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var (
		vErr *ValidationError
		cErr *ContextError
		aErr *AuthError
		pErr *ApiError
		mErr *MultiFetchError
		nErr *NetworkError
	)
	switch {
	case errors.As(err, &vErr), errors.As(err, &cErr):
		return ExitValidation
	case errors.As(err, &aErr):
		return ExitAuth
	case errors.As(err, &pErr), errors.As(err, &mErr), errors.As(err, &nErr):
		return ExitAPI
	default:
		return ExitOther
	}
}
