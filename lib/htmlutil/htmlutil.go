// Package htmlutil contains small helpers for pulling text out of parsed
// wiki markup. Math notation on the wiki is rendered as <img> tags whose
// alt attribute carries the original LaTeX source; text extraction keeps
// that payload verbatim so downstream consumers can interpret it.
package htmlutil

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	if node.Type == html.ElementNode {
		switch node.Data {
		case "img":
			// latex payload, kept verbatim
			for _, a := range node.Attr {
				if a.Key == "alt" {
					buffer.WriteString(a.Val)
					break
				}
			}
			return
		case "script", "style":
			return
		case "br", "p", "ul", "ol", "li", "div", "pre", "table", "tr":
			buffer.WriteString("\n")
		}
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

type Anchor struct {
	Name string
	Href string
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removePrivateUse(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// GetAnchors collects the (name, href) pairs of a selection of <a> nodes.
// Anchors with unparseable hrefs are skipped rather than failing the whole
// selection since index pages routinely contain broken edit links.
func GetAnchors(sel *goquery.Selection) []Anchor {
	anchors := []Anchor{}
	for _, n := range sel.Nodes {
		href := ""
		for _, a := range n.Attr {
			if a.Key == "href" {
				href = a.Val
				break
			}
		}

		link, err := url.Parse(href)
		if err != nil {
			continue
		}

		name := GetText(n)
		name = removePrivateUse(name)
		name = strings.Trim(name, " \t\n")
		name = innerWhitespace.ReplaceAllString(name, " ")

		anchors = append(anchors, Anchor{
			Name: name,
			Href: link.String(),
		})
	}
	return anchors
}
