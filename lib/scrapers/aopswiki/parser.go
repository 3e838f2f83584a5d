package aopswiki

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"aopskey/lib/htmlutil"
	"aopskey/lib/mathtext"

	"github.com/PuerkitoBio/goquery"
)

// Solution is one solution variant of a problem, kept in source order.
// The wiki makes no promise of a single correct solution per problem.
type Solution struct {
	Title  string
	Author string
	Body   string
	Rank   int
}

type Problem struct {
	Ref       ProblemRef
	Statement string
	Answer    string
	Solutions []Solution
	Warnings  []Warning
}

type section struct {
	heading string
	body    strings.Builder
}

var editSuffix = regexp.MustCompile(`\s*\[edit\]\s*$`)

// splitSections walks the wiki content container in document order and
// groups it into heading-delimited sections. Everything before the first
// heading is returned as the lead.
func splitSections(content *goquery.Selection) (string, []*section) {
	var lead strings.Builder
	var sections []*section

	content.Children().Each(func(_ int, child *goquery.Selection) {
		name := goquery.NodeName(child)
		if name == "h2" || name == "h3" {
			heading := child.Find("span.mw-headline").Text()
			if heading == "" {
				heading = htmlutil.GetText(child.Nodes[0])
			}
			heading = editSuffix.ReplaceAllString(strings.TrimSpace(heading), "")
			sections = append(sections, &section{heading: heading})
			return
		}

		text := htmlutil.GetText(child.Nodes[0])
		if len(sections) == 0 {
			lead.WriteString(text)
			lead.WriteString("\n")
			return
		}
		current := sections[len(sections)-1]
		current.body.WriteString(text)
		current.body.WriteString("\n")
	})

	return lead.String(), sections
}

var (
	statementHeadingRe = regexp.MustCompile(`(?i)^problem(\s+\d+)?$`)
	answerHeadingRe    = regexp.MustCompile(`(?i)^answer$`)
	// strict form: "Solution", "Solution 3", "Solution 2 (Casework)"
	solutionHeadingRe = regexp.MustCompile(`(?i)^solution(\s+\d+)?(\s*\(.+\))?$`)
)

// ParseProblem converts one problem page into a structured record. Pages
// here are community-edited with no enforced schema: missing statements,
// missing answers and odd section titles are warnings on the result, not
// failures. Only a page with no recognizable content container at all is
// a hard ParseError.
func ParseProblem(ref ProblemRef, raw []byte) (Problem, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return Problem{}, &ParseError{Ref: ref, Reason: "invalid markup"}
	}

	content := doc.Find("div.mw-parser-output")
	if content.Length() == 0 {
		content = doc.Find("div#mw-content-text")
	}
	if content.Length() == 0 {
		return Problem{}, &ParseError{Ref: ref, Reason: "no recognizable content container"}
	}

	lead, sections := splitSections(content.First())
	problem := Problem{Ref: ref}

	for _, sec := range sections {
		if statementHeadingRe.MatchString(sec.heading) {
			problem.Statement = mathtext.Normalize(sec.body.String())
			break
		}
	}
	if problem.Statement == "" {
		// some pages carry the statement above the first heading instead
		// of under a "Problem" one
		problem.Statement = mathtext.Normalize(lead)
	}
	if problem.Statement == "" {
		problem.Warnings = append(problem.Warnings, WarnStatementNotFound)
	}

	problem.Answer, problem.Warnings = extractAnswer(sections, problem.Warnings)
	problem.Solutions, problem.Warnings = extractSolutions(sections, problem.Warnings)

	// no answer and no solutions is a valid "not yet written up" state
	return problem, nil
}

// extractAnswer locates explicit answer markers. Conflicting markers are a
// known wiki inconsistency: the first occurrence wins and the conflict is
// recorded instead of guessed away.
func extractAnswer(sections []*section, warnings []Warning) (string, []Warning) {
	answer := ""
	conflict := false
	for _, sec := range sections {
		if !answerHeadingRe.MatchString(sec.heading) {
			continue
		}
		value := mathtext.Normalize(sec.body.String())
		if value == "" {
			continue
		}
		if answer == "" {
			answer = value
			continue
		}
		if mathtext.NormalizeKey(value) != mathtext.NormalizeKey(answer) {
			conflict = true
		}
	}

	if answer == "" {
		warnings = append(warnings, WarnAnswerNotFound)
	}
	if conflict {
		warnings = append(warnings, WarnConflictingAnswer)
	}
	return answer, warnings
}

func extractSolutions(sections []*section, warnings []Warning) ([]Solution, []Warning) {
	var solutions []Solution
	ambiguous := false

	for _, sec := range sections {
		strict := solutionHeadingRe.MatchString(sec.heading)
		loose := strings.Contains(strings.ToLower(sec.heading), "solution")
		if !strict && !loose {
			continue
		}
		if !strict {
			// e.g. "Video Solution by XYZ", "Solution/Remark" — recognized
			// as a solution boundary but flagged
			ambiguous = true
		}

		body := mathtext.Normalize(sec.body.String())
		solutions = append(solutions, Solution{
			Title:  sec.heading,
			Author: mathtext.Attribution(body),
			Body:   body,
			Rank:   len(solutions) + 1,
		})
	}

	if ambiguous {
		warnings = append(warnings, WarnSolutionSectionAmbiguous)
	}
	return solutions, warnings
}

// ParseAnswerKey extracts the ordered answer list of a competition's
// answer key page; index i holds the answer to problem i+1.
func ParseAnswerKey(raw []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid answer key markup: %w", err)
	}

	items := doc.Find("div.mw-parser-output > ol > li")
	var answers []string
	items.Each(func(_ int, item *goquery.Selection) {
		answers = append(answers, mathtext.Normalize(htmlutil.GetText(item.Nodes[0])))
	})
	if len(answers) == 0 {
		return nil, fmt.Errorf("no answer list found on answer key page")
	}
	return answers, nil
}
