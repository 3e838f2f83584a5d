package aopswiki

import (
	"errors"
	"fmt"
)

// Fetch failure categories. Each has its own retry policy: transient and
// rate-limited fetches are retried with backoff, not-found is cached and
// never retried, an auth challenge triggers a single session refresh.
var (
	ErrNotFound     = errors.New("page not found")
	ErrAuthRequired = errors.New("authentication required")
	ErrRateLimited  = errors.New("rate limited by server")
	ErrTransient    = errors.New("transient fetch failure")
)

// FetchError annotates one of the failure sentinels above with the logical
// address and, when available, the HTTP status and underlying error.
// errors.Is works against the sentinels.
type FetchError struct {
	Address Address
	Kind    error
	Status  int
	Err     error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s: %s", e.Address.Key(), e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err)
	}
	return msg
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

type AuthReason int

const (
	AuthInvalidCredentials AuthReason = iota
	AuthNetworkUnavailable
	AuthChallengeUnsupported
	// AuthSessionRejected means the site kept challenging us after a
	// successful-looking re-login; the run cannot make progress.
	AuthSessionRejected
)

func (r AuthReason) String() string {
	switch r {
	case AuthInvalidCredentials:
		return "invalid credentials"
	case AuthNetworkUnavailable:
		return "network unavailable"
	case AuthChallengeUnsupported:
		return "challenge unsupported"
	case AuthSessionRejected:
		return "session rejected"
	}
	return "unknown"
}

// AuthError is fatal for the whole run once the single re-authentication
// attempt has been spent.
type AuthError struct {
	Reason AuthReason
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("authentication failed: %s", e.Reason)
	}
	return fmt.Sprintf("authentication failed: %s: %s", e.Reason, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

type CatalogReason int

const (
	CatalogYearNotFound CatalogReason = iota
	CatalogCompetitionNotFound
	CatalogIndexUnparseable
)

func (r CatalogReason) String() string {
	switch r {
	case CatalogYearNotFound:
		return "year not found"
	case CatalogCompetitionNotFound:
		return "competition not found"
	case CatalogIndexUnparseable:
		return "index unparseable"
	}
	return "unknown"
}

// CatalogError is fatal for the requested year/competition selection only.
// It deliberately never doubles as a per-problem failure: "no such
// competition" and "problem has no data yet" must stay distinguishable.
type CatalogError struct {
	Year        int
	Competition string
	Reason      CatalogReason
	Err         error
}

func (e *CatalogError) Error() string {
	target := fmt.Sprintf("%d", e.Year)
	if e.Competition != "" {
		target = fmt.Sprintf("%d %s", e.Year, e.Competition)
	}
	if e.Err == nil {
		return fmt.Sprintf("catalog %s: %s", target, e.Reason)
	}
	return fmt.Sprintf("catalog %s: %s: %s", target, e.Reason, e.Err)
}

func (e *CatalogError) Unwrap() error { return e.Err }

// ParseError is only produced for pages with no recognizable structure at
// all; everything milder becomes a Warning on the parsed problem.
type ParseError struct {
	Ref    ProblemRef
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s problem %d: %s", e.Ref.Competition.Code, e.Ref.Number, e.Reason)
}

// Warning flags a structural oddity that the parser or index tolerated.
type Warning string

const (
	WarnStatementNotFound        Warning = "statement not found"
	WarnAnswerNotFound           Warning = "answer not found"
	WarnConflictingAnswer        Warning = "conflicting answer markers"
	WarnSolutionSectionAmbiguous Warning = "solution section ambiguous"
	WarnDuplicateProblemListing  Warning = "duplicate problem listing"
	WarnProblemNotAvailable      Warning = "problem not yet available"
)
