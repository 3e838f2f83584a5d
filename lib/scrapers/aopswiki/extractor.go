package aopswiki

import (
	"context"
	"errors"
	"slices"
	"strings"

	"aopskey/lib/mathtext"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

type ProblemStatus int

const (
	StatusOk ProblemStatus = iota
	StatusWarned
	StatusFailed
)

func (s ProblemStatus) String() string {
	switch s {
	case StatusOk:
		return "ok"
	case StatusWarned:
		return "warned"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// ProblemOutcome records how extraction of one problem went. Failures are
// isolated here instead of aborting the run.
type ProblemOutcome struct {
	Ref      ProblemRef
	Status   ProblemStatus
	Warnings []Warning
	Err      error
}

// Report is the result of extracting one competition. Problems holds the
// successfully parsed problems in problem-number order; Outcomes covers
// every discovered problem, including the failed ones.
type Report struct {
	Competition Competition
	AnswerKey   []string
	Problems    []Problem
	Outcomes    []ProblemOutcome
	Warnings    []Warning
}

type ExtractorOptions struct {
	Session *Session
	// Concurrency bounds in-flight problem fetches. Defaults to 3.
	Concurrency int
	Fetcher     FetcherOptions
	Cache       CacheOptions
}

// Extractor drives the whole pipeline for a competition: discover the
// problem list, fetch the answer key and every problem page through the
// cache, parse them, and merge canonical answers in.
type Extractor struct {
	session     *Session
	fetcher     PageFetcher
	index       NavigationIndex
	concurrency int
}

func NewExtractor(opts ExtractorOptions) *Extractor {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 3
	}
	fetcher := NewCache(NewFetcher(opts.Session, opts.Fetcher), opts.Cache)
	return &Extractor{
		session:     opts.Session,
		fetcher:     fetcher,
		index:       NewNavigationIndex(fetcher),
		concurrency: concurrency,
	}
}

func (e *Extractor) ensureAuthenticated(ctx context.Context) error {
	if e.session.Valid() {
		return nil
	}
	return e.session.Login(ctx)
}

// Competitions lists the competitions held in a year.
func (e *Extractor) Competitions(ctx context.Context, year int) ([]Competition, error) {
	if err := e.ensureAuthenticated(ctx); err != nil {
		return nil, err
	}
	return e.index.Competitions(ctx, year)
}

// Problems lists the problems of a competition without fetching them.
func (e *Extractor) Problems(ctx context.Context, year int, competition string) ([]ProblemRef, []Warning, error) {
	if err := e.ensureAuthenticated(ctx); err != nil {
		return nil, nil, err
	}
	comp, err := e.resolveCompetition(ctx, year, competition)
	if err != nil {
		return nil, nil, err
	}
	return e.index.Problems(ctx, comp)
}

// resolveCompetition matches a user-supplied competition selector against
// the year's catalog. Matching tolerates spacing and case differences
// ("amc 10a" selects AMC_10A).
func (e *Extractor) resolveCompetition(ctx context.Context, year int, selector string) (Competition, error) {
	comps, err := e.index.Competitions(ctx, year)
	if err != nil {
		return Competition{}, err
	}

	want := mathtext.NormalizeKey(selector)
	for _, comp := range comps {
		code := mathtext.NormalizeKey(strings.ReplaceAll(comp.Code, "_", " "))
		name := mathtext.NormalizeKey(comp.Name)
		if want == code || want == name {
			return comp, nil
		}
	}
	return Competition{}, &CatalogError{
		Year:        year,
		Competition: selector,
		Reason:      CatalogCompetitionNotFound,
	}
}

// Extract runs the full pipeline for one competition of one year.
//
// Per-problem failures never abort the run; they land in the report as
// failed outcomes. The two exceptions are authentication failure, which is
// fatal because no further fetch can succeed, and cancellation, which
// returns whatever completed so far with a nil error.
func (e *Extractor) Extract(ctx context.Context, year int, competition string) (Report, error) {
	ctx, span := tracer.Start(ctx, "extractor:Extract")
	defer span.End()
	span.SetAttributes(
		attribute.Int("year", year),
		attribute.String("competition", competition),
	)

	if err := e.ensureAuthenticated(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "authentication failed")
		return Report{}, err
	}

	comp, err := e.resolveCompetition(ctx, year, competition)
	if err != nil {
		span.RecordError(err)
		return Report{}, err
	}

	refs, warnings, err := e.index.Problems(ctx, comp)
	if err != nil {
		span.RecordError(err)
		return Report{}, err
	}

	report := Report{Competition: comp, Warnings: warnings}
	report.AnswerKey = e.fetchAnswerKey(ctx, comp)

	// index-addressed slots keep the report in problem-number order no
	// matter which goroutine finishes first
	problems := make([]Problem, len(refs))
	outcomes := make([]ProblemOutcome, len(refs))
	resolved := make([]bool, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, ref := range refs {
		g.Go(func() error {
			problem, outcome := e.extractProblem(gctx, ref, report.AnswerKey)

			var authErr *AuthError
			if errors.As(outcome.Err, &authErr) {
				return outcome.Err
			}
			if outcome.Err != nil && errors.Is(outcome.Err, context.Canceled) {
				// a canceled slot holds no real outcome; leave it
				// unresolved so the partial report stays truthful
				return gctx.Err()
			}

			problems[i] = problem
			outcomes[i] = outcome
			resolved[i] = true
			return nil
		})
	}
	err = g.Wait()

	for i, outcome := range outcomes {
		if !resolved[i] {
			continue
		}
		report.Outcomes = append(report.Outcomes, outcome)
		if outcome.Status != StatusFailed {
			report.Problems = append(report.Problems, problems[i])
		}
	}

	if err != nil {
		var authErr *AuthError
		switch {
		case errors.As(err, &authErr):
			span.RecordError(err)
			span.SetStatus(codes.Error, "authentication failed mid-run")
			return report, err
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			span.SetStatus(codes.Ok, "canceled, partial report")
			return report, nil
		}
		span.RecordError(err)
		return report, err
	}
	return report, nil
}

// fetchAnswerKey is best-effort: many older competitions have no answer
// key page, and per-problem answers still get extracted without one.
func (e *Extractor) fetchAnswerKey(ctx context.Context, comp Competition) []string {
	page, err := e.fetcher.Fetch(ctx, AnswerKeyAddress(comp.Year, comp.Code))
	if err != nil {
		return nil
	}
	answers, err := ParseAnswerKey(page.Body)
	if err != nil {
		return nil
	}
	return answers
}

func (e *Extractor) extractProblem(ctx context.Context, ref ProblemRef, answerKey []string) (Problem, ProblemOutcome) {
	outcome := ProblemOutcome{Ref: ref}

	page, err := e.fetcher.Fetch(ctx, ProblemAddress(ref.Competition.Year, ref.Competition.Code, ref.Number))
	if errors.Is(err, ErrNotFound) {
		// the index can run ahead of the wiki: a listed problem with no
		// page yet is a valid, empty record
		outcome.Status = StatusWarned
		outcome.Warnings = []Warning{WarnProblemNotAvailable}
		return Problem{Ref: ref, Warnings: outcome.Warnings}, outcome
	}
	if err != nil {
		outcome.Status = StatusFailed
		outcome.Err = err
		return Problem{}, outcome
	}

	problem, err := ParseProblem(ref, page.Body)
	if err != nil {
		outcome.Status = StatusFailed
		outcome.Err = err
		return Problem{}, outcome
	}

	problem = mergeCanonicalAnswer(problem, answerKey)

	outcome.Warnings = problem.Warnings
	if len(problem.Warnings) > 0 {
		outcome.Status = StatusWarned
	}
	return problem, outcome
}

// mergeCanonicalAnswer fills a missing per-page answer from the
// competition's answer key. The key is authoritative when both exist and
// disagree, since the key page sees far more editorial review than
// individual problem pages.
func mergeCanonicalAnswer(problem Problem, answerKey []string) Problem {
	idx := problem.Ref.Number - 1
	if idx < 0 || idx >= len(answerKey) {
		return problem
	}
	canonical := answerKey[idx]
	if canonical == "" {
		return problem
	}

	if problem.Answer == "" {
		problem.Answer = canonical
		problem.Warnings = slices.DeleteFunc(problem.Warnings, func(w Warning) bool {
			return w == WarnAnswerNotFound
		})
		return problem
	}
	if mathtext.NormalizeKey(problem.Answer) != mathtext.NormalizeKey(canonical) {
		problem.Answer = canonical
		if !slices.Contains(problem.Warnings, WarnConflictingAnswer) {
			problem.Warnings = append(problem.Warnings, WarnConflictingAnswer)
		}
	}
	return problem
}
