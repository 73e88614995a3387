// Package htmlutil provides a small typed DOM-query layer over goquery
// (text extraction, class and colspan reading, anchor projection) shared by
// the parsers. None of its helpers mutate the tree.
package htmlutil

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// GetText returns the concatenated text content of node and its descendants.
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
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		getTextRecursive(child, buffer)
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	b := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			b.WriteRune(c)
		}
	}
	return b.String()
}

// CleanText trims, collapses internal whitespace, and drops non-printable
// runes from s. Parsers use it on every scraped text fragment.
func CleanText(s string) string {
	s = removeNonPrintable(s)
	s = strings.Trim(s, " \t\n\r")
	return innerWhitespace.ReplaceAllString(s, " ")
}

// Classes returns the space-separated class list of sel's first node.
func Classes(sel *goquery.Selection) []string {
	class := sel.AttrOr("class", "")
	if class == "" {
		return nil
	}
	return strings.Fields(class)
}

// HasClass reports whether sel's first node carries the given class.
func HasClass(sel *goquery.Selection, name string) bool {
	for _, c := range Classes(sel) {
		if c == name {
			return true
		}
	}
	return false
}

// AnyClassMatches reports whether any of sel's classes match re.
func AnyClassMatches(sel *goquery.Selection, re *regexp.Regexp) bool {
	for _, c := range Classes(sel) {
		if re.MatchString(c) {
			return true
		}
	}
	return false
}

// Colspan returns the cell's colspan attribute, defaulting to 1 when absent
// or unparseable.
func Colspan(sel *goquery.Selection) int {
	raw := sel.AttrOr("colspan", "1")
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Anchor is a lightweight projection of an <a> element.
type Anchor struct {
	Text string
	Href string
}

// Anchors extracts Anchor values for every <a> node in sel, in document
// order.
func Anchors(sel *goquery.Selection) []Anchor {
	var out []Anchor
	sel.Each(func(_ int, a *goquery.Selection) {
		out = append(out, Anchor{
			Text: CleanText(GetText(a.Nodes[0])),
			Href: a.AttrOr("href", ""),
		})
	})
	return out
}
