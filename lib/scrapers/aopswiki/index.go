package aopswiki

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"aopskey/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// NavigationIndex discovers the catalog: which competitions a year has,
// and which problems a competition has. Index pages are community-edited
// and drift over time, so each level applies a structural rule first and a
// text heuristic second before giving up.
type NavigationIndex struct {
	fetcher PageFetcher
}

func NewNavigationIndex(fetcher PageFetcher) NavigationIndex {
	return NavigationIndex{fetcher: fetcher}
}

func (n NavigationIndex) Competitions(ctx context.Context, year int) ([]Competition, error) {
	ctx, span := tracer.Start(ctx, "index:Competitions")
	defer span.End()
	span.SetAttributes(attribute.Int("year", year))

	page, err := n.fetcher.Fetch(ctx, YearIndexAddress(year))
	if errors.Is(err, ErrNotFound) {
		// not every year has an index page; the built-in catalog covers
		// the gap
		comps := catalogCompetitions(year)
		if len(comps) == 0 {
			span.SetStatus(codes.Error, "year not found")
			return nil, &CatalogError{Year: year, Reason: CatalogYearNotFound}
		}
		return comps, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	comps := parseYearIndex(year, page.Body)
	if len(comps) == 0 {
		comps = catalogCompetitions(year)
		if len(comps) == 0 {
			span.SetStatus(codes.Error, "index unparseable")
			return nil, &CatalogError{Year: year, Reason: CatalogIndexUnparseable}
		}
	}
	return comps, nil
}

var (
	// "2002 AMC 10A Problems" style link names
	competitionLinkRe = regexp.MustCompile(`^(\d{4})\s+(.+?)\s+Problems$`)
	// looser sweep over raw text for pages that list competitions without
	// links
	competitionTextRe = regexp.MustCompile(`(?m)\b(\d{4})\s+((?:AMC|AIME|AJHSME|AHSME)[^\n.,;:]*?)\s+Problems\b`)
)

func parseYearIndex(year int, raw []byte) []Competition {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil
	}
	content := doc.Find("div.mw-parser-output")
	if content.Length() == 0 {
		return nil
	}

	var comps []Competition
	seen := map[string]bool{}
	add := func(linkYear int, name string) {
		if linkYear != year {
			return
		}
		code := competitionCode(name)
		if code == "" || seen[code] {
			return
		}
		seen[code] = true
		comps = append(comps, Competition{Year: year, Code: code, Name: name})
	}

	for _, anchor := range htmlutil.GetAnchors(content.Find("a")) {
		groups := competitionLinkRe.FindStringSubmatch(anchor.Name)
		if len(groups) != 3 {
			continue
		}
		linkYear, err := strconv.Atoi(groups[1])
		if err != nil {
			continue
		}
		add(linkYear, groups[2])
	}
	if len(comps) > 0 {
		return comps
	}

	// fallback heuristic over the page text
	text := htmlutil.GetText(content.Nodes[0])
	for _, groups := range competitionTextRe.FindAllStringSubmatch(text, -1) {
		textYear, err := strconv.Atoi(groups[1])
		if err != nil {
			continue
		}
		add(textYear, strings.TrimSpace(groups[2]))
	}
	return comps
}

func competitionCode(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.ReplaceAll(name, " ", "_")
}

func (n NavigationIndex) Problems(ctx context.Context, comp Competition) ([]ProblemRef, []Warning, error) {
	ctx, span := tracer.Start(ctx, "index:Problems")
	defer span.End()
	span.SetAttributes(
		attribute.Int("year", comp.Year),
		attribute.String("competition", comp.Code),
	)

	page, err := n.fetcher.Fetch(ctx, ProblemIndexAddress(comp.Year, comp.Code))
	if errors.Is(err, ErrNotFound) {
		span.SetStatus(codes.Error, "competition not found")
		return nil, nil, &CatalogError{
			Year:        comp.Year,
			Competition: comp.Code,
			Reason:      CatalogCompetitionNotFound,
		}
	}
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	refs, warnings := parseProblemIndex(comp, page.Body)
	if len(refs) == 0 {
		span.SetStatus(codes.Error, "index unparseable")
		return nil, nil, &CatalogError{
			Year:        comp.Year,
			Competition: comp.Code,
			Reason:      CatalogIndexUnparseable,
		}
	}

	slices.SortFunc(refs, func(a, b ProblemRef) int {
		return a.Number - b.Number
	})
	return refs, warnings, nil
}

var (
	problemLinkRe = regexp.MustCompile(`Problem[ _](\d+)\s*$`)
	problemTextRe = regexp.MustCompile(`(?m)\bProblem[ _](\d+)\b`)
)

func parseProblemIndex(comp Competition, raw []byte) ([]ProblemRef, []Warning) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, nil
	}
	content := doc.Find("div.mw-parser-output")
	if content.Length() == 0 {
		return nil, nil
	}

	var refs []ProblemRef
	var warnings []Warning
	seen := map[int]bool{}
	add := func(number int, warnOnDuplicate bool) {
		if number <= 0 {
			return
		}
		if seen[number] {
			// duplicate listings show up in some edit histories; keep the
			// first occurrence
			if warnOnDuplicate {
				warnings = append(warnings, WarnDuplicateProblemListing)
			}
			return
		}
		seen[number] = true
		refs = append(refs, ProblemRef{Competition: comp, Number: number})
	}

	for _, anchor := range htmlutil.GetAnchors(content.Find("a")) {
		groups := problemLinkRe.FindStringSubmatch(anchor.Name)
		if len(groups) != 2 {
			groups = problemLinkRe.FindStringSubmatch(anchor.Href)
		}
		if len(groups) != 2 {
			continue
		}
		number, err := strconv.Atoi(groups[1])
		if err != nil {
			continue
		}
		add(number, true)
	}
	if len(refs) > 0 {
		return refs, warnings
	}

	// prose mentions repeat problem numbers freely, so the text sweep does
	// not treat repeats as duplicate listings
	text := htmlutil.GetText(content.Nodes[0])
	for _, groups := range problemTextRe.FindAllStringSubmatch(text, -1) {
		number, err := strconv.Atoi(groups[1])
		if err != nil {
			continue
		}
		add(number, false)
	}
	return refs, warnings
}
