package aopswiki

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// populateCompetition fills the fake wiki with a 15-problem competition:
// a year index, a problem index, an answer key, and one page per problem.
// Problem 7 is garbage, problem 9 has no answer section, problem 10
// contradicts the answer key, problem 11 has no page at all.
func populateCompetition(wiki *testWiki) []string {
	answers := make([]string, 15)
	for i := range answers {
		answers[i] = fmt.Sprintf("%d", (i+1)*11)
	}

	wiki.put("/2002_Mathematics_Competitions", wikiPage(
		`<a href="/2002_AMC_10A_Problems">2002 AMC 10A Problems</a>`+
			`<a href="/2002_AMC_10B_Problems">2002 AMC 10B Problems</a>`))

	var index strings.Builder
	for n := 1; n <= 15; n++ {
		fmt.Fprintf(&index, `<a href="/2002_AMC_10A_Problems/Problem_%d">Problem %d</a>`, n, n)
	}
	wiki.put("/2002_AMC_10A_Problems", wikiPage(index.String()))

	var key strings.Builder
	key.WriteString("<ol>")
	for _, answer := range answers {
		fmt.Fprintf(&key, "<li>%s</li>", answer)
	}
	key.WriteString("</ol>")
	wiki.put("/2002_AMC_10A_Answer_Key", wikiPage(key.String()))

	for n := 1; n <= 15; n++ {
		path := fmt.Sprintf("/2002_AMC_10A_Problems/Problem_%d", n)
		switch n {
		case 7:
			wiki.put(path, `<html><body><p>vandalized beyond recognition</p></body></html>`)
		case 9:
			wiki.put(path, wikiPage(
				wikiHeading("Problem")+
					fmt.Sprintf(`<p>Statement %d.</p>`, n)+
					wikiHeading("Solution")+
					`<p>A solution.</p>`))
		case 10:
			wiki.put(path, wikiPage(
				wikiHeading("Problem")+
					fmt.Sprintf(`<p>Statement %d.</p>`, n)+
					wikiHeading("Answer")+
					`<p>999</p>`))
		case 11:
			// no page: the index runs ahead of the wiki
		default:
			wiki.put(path, wikiPage(
				wikiHeading("Problem")+
					fmt.Sprintf(`<p>Statement %d.</p>`, n)+
					wikiHeading("Answer")+
					fmt.Sprintf(`<p>%s</p>`, answers[n-1])+
					wikiHeading("Solution")+
					`<p>A solution.</p><p>~alice</p>`))
		}
	}

	return answers
}

func newTestExtractor(t *testing.T, wiki *testWiki) *Extractor {
	return NewExtractor(ExtractorOptions{
		Session:     newTestSession(t, wiki),
		Concurrency: 3,
		Fetcher:     FetcherOptions{RetryBaseWait: time.Millisecond},
	})
}

func TestExtract(t *testing.T) {
	ctx := context.Background()
	wiki := newTestWiki(t)
	wiki.setRequireAuth(true)
	answers := populateCompetition(wiki)

	report, err := newTestExtractor(t, wiki).Extract(ctx, 2002, "AMC 10A")
	require.NoError(t, err)
	require.Equal(t, 1, wiki.loginCount())

	require.Equal(t, "AMC_10A", report.Competition.Code)
	require.Equal(t, answers, report.AnswerKey)

	require.Len(t, report.Outcomes, 15)
	for i, outcome := range report.Outcomes {
		require.Equal(t, i+1, outcome.Ref.Number, "outcomes must be in problem order")
	}

	byNumber := map[int]ProblemOutcome{}
	for _, outcome := range report.Outcomes {
		byNumber[outcome.Ref.Number] = outcome
	}

	t.Run("well-formed problems are ok", func(t *testing.T) {
		require.Equal(t, StatusOk, byNumber[1].Status)
		require.Equal(t, StatusOk, byNumber[15].Status)
	})

	t.Run("garbage page fails in isolation", func(t *testing.T) {
		require.Equal(t, StatusFailed, byNumber[7].Status)
		var parseErr *ParseError
		require.ErrorAs(t, byNumber[7].Err, &parseErr)
	})

	t.Run("missing answer is filled from the key", func(t *testing.T) {
		require.Equal(t, StatusOk, byNumber[9].Status)
		problem := problemByNumber(t, report, 9)
		require.Equal(t, answers[8], problem.Answer)
	})

	t.Run("answer key wins a disagreement", func(t *testing.T) {
		require.Equal(t, StatusWarned, byNumber[10].Status)
		require.Contains(t, byNumber[10].Warnings, WarnConflictingAnswer)
		problem := problemByNumber(t, report, 10)
		require.Equal(t, answers[9], problem.Answer)
	})

	t.Run("missing page is an empty record", func(t *testing.T) {
		require.Equal(t, StatusWarned, byNumber[11].Status)
		require.Contains(t, byNumber[11].Warnings, WarnProblemNotAvailable)
		problem := problemByNumber(t, report, 11)
		require.Empty(t, problem.Statement)
	})

	t.Run("failed problems are excluded from the problem list", func(t *testing.T) {
		require.Len(t, report.Problems, 14)
		for _, problem := range report.Problems {
			require.NotEqual(t, 7, problem.Ref.Number)
		}
	})
}

func problemByNumber(t *testing.T, report Report, number int) Problem {
	for _, problem := range report.Problems {
		if problem.Ref.Number == number {
			return problem
		}
	}
	t.Fatalf("problem %d not in report", number)
	return Problem{}
}

func TestExtractUnknownCompetition(t *testing.T) {
	ctx := context.Background()
	wiki := newTestWiki(t)
	populateCompetition(wiki)

	_, err := newTestExtractor(t, wiki).Extract(ctx, 2002, "USAMO")
	var catErr *CatalogError
	require.ErrorAs(t, err, &catErr)
	require.Equal(t, CatalogCompetitionNotFound, catErr.Reason)
}

func TestExtractCoalescesReauthentication(t *testing.T) {
	ctx := context.Background()
	wiki := newTestWiki(t)
	wiki.setRequireAuth(true)
	populateCompetition(wiki)

	session := newTestSession(t, wiki)
	extract := func() {
		extractor := NewExtractor(ExtractorOptions{
			Session:     session,
			Concurrency: 3,
			Fetcher:     FetcherOptions{RetryBaseWait: time.Millisecond},
		})
		report, err := extractor.Extract(ctx, 2002, "AMC 10A")
		require.NoError(t, err)
		require.Len(t, report.Outcomes, 15)
	}

	extract()
	require.Equal(t, 1, wiki.loginCount())

	// every in-flight fetch of the second run sees a challenge, but only
	// one re-login happens
	wiki.revoke()
	extract()
	require.Equal(t, 2, wiki.loginCount())
}

func TestExtractCancellationReturnsPartialReport(t *testing.T) {
	wiki := newTestWiki(t)
	populateCompetition(wiki)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var once sync.Once
	var served sync.Map
	wiki.mu.Lock()
	wiki.pageDelay = time.Millisecond * 20
	wiki.onPage = func(path string) {
		if !strings.Contains(path, "/Problem_") {
			return
		}
		served.Store(path, true)
		count := 0
		served.Range(func(_, _ any) bool {
			count++
			return true
		})
		if count >= 5 {
			once.Do(cancel)
		}
	}
	wiki.mu.Unlock()

	report, err := newTestExtractor(t, wiki).Extract(ctx, 2002, "AMC 10A")
	require.NoError(t, err, "cancellation must not surface as an error")
	require.Less(t, len(report.Outcomes), 15)

	// no outcome may be fabricated from a canceled fetch
	for _, outcome := range report.Outcomes {
		require.NotErrorIs(t, outcome.Err, context.Canceled)
	}
	for i := 1; i < len(report.Outcomes); i++ {
		require.Greater(t, report.Outcomes[i].Ref.Number, report.Outcomes[i-1].Ref.Number)
	}
}
