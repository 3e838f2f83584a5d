package aopswiki

import (
	"bytes"
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Page is one successfully retrieved page of raw markup.
type Page struct {
	Address   Address
	Body      []byte
	FetchedAt time.Time
}

// PageFetcher retrieves one page by logical address. The Cache implements
// it too, so callers never care whether a result came off the network.
type PageFetcher interface {
	Fetch(ctx context.Context, addr Address) (Page, error)
}

type FetcherOptions struct {
	// MaxRetries bounds retries of transient and rate-limited failures.
	// Not-found and auth challenges are never retried this way.
	MaxRetries    int
	RetryBaseWait time.Duration
	// Budget is the total wall-clock allowance for one fetch including
	// retries; exceeding it surfaces as a transient failure rather than
	// hanging.
	Budget time.Duration
}

type Fetcher struct {
	session   *Session
	templates Templates
	opts      FetcherOptions
}

func NewFetcher(session *Session, opts FetcherOptions) *Fetcher {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryBaseWait <= 0 {
		opts.RetryBaseWait = time.Millisecond * 500
	}
	if opts.Budget <= 0 {
		opts.Budget = time.Second * 45
	}
	return &Fetcher{
		session:   session,
		templates: session.Templates(),
		opts:      opts,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, addr Address) (Page, error) {
	ctx, span := tracer.Start(ctx, "fetcher:Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("address", addr.Key()))

	ctx, cancel := context.WithTimeout(ctx, f.opts.Budget)
	defer cancel()

	endpoint := f.templates.Path(addr)
	generation := f.session.Generation()
	reauthed := false
	retries := 0
	wait := f.opts.RetryBaseWait

	for {
		page, err := f.fetchOnce(ctx, addr, endpoint)
		if err == nil {
			return page, nil
		}

		switch {
		case errors.Is(err, ErrNotFound):
			span.SetStatus(codes.Error, "not found")
			return Page{}, err

		case errors.Is(err, ErrAuthRequired):
			if reauthed {
				// the refreshed session got challenged again, the run
				// cannot make progress
				span.SetStatus(codes.Error, "auth challenge after refresh")
				return Page{}, &AuthError{Reason: AuthSessionRejected, Err: err}
			}
			if rerr := f.session.Refresh(ctx, generation); rerr != nil {
				span.RecordError(rerr)
				span.SetStatus(codes.Error, "session refresh failed")
				return Page{}, rerr
			}
			reauthed = true
			generation = f.session.Generation()

		default:
			if retries >= f.opts.MaxRetries {
				span.RecordError(err)
				span.SetStatus(codes.Error, "retries exhausted")
				return Page{}, err
			}
			retries++
			jitter := wait/2 + rand.N(wait/2+1)
			select {
			case <-ctx.Done():
				return Page{}, &FetchError{Address: addr, Kind: ErrTransient, Err: ctx.Err()}
			case <-time.After(jitter):
			}
			wait *= 2
		}
	}
}

var (
	missingPageMarker    = []byte("noarticletext")
	loginChallengeMarker = []byte("wpLoginToken")
)

func (f *Fetcher) fetchOnce(ctx context.Context, addr Address, endpoint string) (Page, error) {
	res, err := f.session.Client().R().
		SetContext(ctx).
		Get(endpoint)
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return Page{}, &FetchError{Address: addr, Kind: ErrTransient, Err: err}
	}

	status := res.StatusCode()
	switch {
	case status == 404:
		return Page{}, &FetchError{Address: addr, Kind: ErrNotFound, Status: status}
	case status == 401 || status == 403:
		return Page{}, &FetchError{Address: addr, Kind: ErrAuthRequired, Status: status}
	case status == 429:
		return Page{}, &FetchError{Address: addr, Kind: ErrRateLimited, Status: status}
	case status >= 400:
		return Page{}, &FetchError{Address: addr, Kind: ErrTransient, Status: status}
	}

	body := res.Body()
	// the wiki serves missing pages as 200 with an empty-article container,
	// and auth-walled pages as a redirect to the login form
	if bytes.Contains(body, missingPageMarker) {
		return Page{}, &FetchError{Address: addr, Kind: ErrNotFound, Status: status}
	}
	if bytes.Contains(body, loginChallengeMarker) {
		return Page{}, &FetchError{Address: addr, Kind: ErrAuthRequired, Status: status}
	}

	return Page{Address: addr, Body: body, FetchedAt: time.Now()}, nil
}
