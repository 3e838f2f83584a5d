package aopswiki

import (
	"fmt"
	"strconv"
	"strings"
)

type PageKind int

const (
	PageYearIndex PageKind = iota
	PageProblemIndex
	PageAnswerKey
	PageProblem
)

// Address identifies a page in domain terms (year, competition code,
// optional problem number) independently of any concrete URL. Translation
// to a URL happens through Templates, so the site layout can change
// without touching the catalog or the parser.
type Address struct {
	Year        int
	Competition string
	Problem     int
	Kind        PageKind
}

func YearIndexAddress(year int) Address {
	return Address{Year: year, Kind: PageYearIndex}
}

func ProblemIndexAddress(year int, code string) Address {
	return Address{Year: year, Competition: code, Kind: PageProblemIndex}
}

func AnswerKeyAddress(year int, code string) Address {
	return Address{Year: year, Competition: code, Kind: PageAnswerKey}
}

func ProblemAddress(year int, code string, number int) Address {
	return Address{Year: year, Competition: code, Problem: number, Kind: PageProblem}
}

// Key is the canonical cache key for the address.
func (a Address) Key() string {
	switch a.Kind {
	case PageYearIndex:
		return fmt.Sprintf("%d/index", a.Year)
	case PageProblemIndex:
		return fmt.Sprintf("%d/%s/problems", a.Year, a.Competition)
	case PageAnswerKey:
		return fmt.Sprintf("%d/%s/answer_key", a.Year, a.Competition)
	}
	return fmt.Sprintf("%d/%s/problem_%d", a.Year, a.Competition, a.Problem)
}

func (a Address) String() string { return a.Key() }

// Templates holds the site's URL layout. Page templates are paths relative
// to BaseUrl; {year}, {competition} and {problem} are substituted from the
// address. The defaults match the AoPS wiki but everything is overridable
// from configuration.
type Templates struct {
	BaseUrl      string `json:"base_url"`
	LoginPage    string `json:"login_page"`
	YearIndex    string `json:"year_index"`
	ProblemIndex string `json:"problem_index"`
	AnswerKey    string `json:"answer_key"`
	Problem      string `json:"problem"`
}

func DefaultTemplates() Templates {
	return Templates{
		BaseUrl:      "https://artofproblemsolving.com/wiki/index.php",
		LoginPage:    "/Special:UserLogin",
		YearIndex:    "/{year}_Mathematics_Competitions",
		ProblemIndex: "/{year}_{competition}_Problems",
		AnswerKey:    "/{year}_{competition}_Answer_Key",
		Problem:      "/{year}_{competition}_Problems/Problem_{problem}",
	}
}

func (t Templates) withDefaults() Templates {
	defaults := DefaultTemplates()
	if t.BaseUrl == "" {
		t.BaseUrl = defaults.BaseUrl
	}
	if t.LoginPage == "" {
		t.LoginPage = defaults.LoginPage
	}
	if t.YearIndex == "" {
		t.YearIndex = defaults.YearIndex
	}
	if t.ProblemIndex == "" {
		t.ProblemIndex = defaults.ProblemIndex
	}
	if t.AnswerKey == "" {
		t.AnswerKey = defaults.AnswerKey
	}
	if t.Problem == "" {
		t.Problem = defaults.Problem
	}
	return t
}

// Path expands the template matching the address kind into a request path
// relative to BaseUrl.
func (t Templates) Path(a Address) string {
	replacer := strings.NewReplacer(
		"{year}", strconv.Itoa(a.Year),
		"{competition}", a.Competition,
		"{problem}", strconv.Itoa(a.Problem),
	)
	switch a.Kind {
	case PageYearIndex:
		return replacer.Replace(t.YearIndex)
	case PageProblemIndex:
		return replacer.Replace(t.ProblemIndex)
	case PageAnswerKey:
		return replacer.Replace(t.AnswerKey)
	}
	return replacer.Replace(t.Problem)
}
