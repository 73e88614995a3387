// Package homework implements C6: extracting one lesson's homework note
// from its standalone HTML snippet and converting it to Markdown.
package homework

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"tgadapter/internal/htmlutil"
)

var (
	spaceBeforeNewline = regexp.MustCompile(` +\n`)
	spaceAfterNewline  = regexp.MustCompile(`\n +`)
)

// Parse extracts the lesson id and homework Markdown from one note.asp
// response body. The lesson id comes from a hidden "LektionsID..." input;
// the homework block is the <p> parenting a <b>Heimaarbeiði</b> header. An
// empty lessonID or an empty/absent homework block both produce "".
func Parse(body string) (lessonID string, text string) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBufferString(body))
	if err != nil {
		return "", ""
	}

	doc.Find(`input[type="hidden"]`).EachWithBreak(func(_ int, input *goquery.Selection) bool {
		id, _ := input.Attr("id")
		if !strings.HasPrefix(id, "LektionsID") {
			return true
		}
		lessonID, _ = input.Attr("value")
		return false
	})
	if lessonID == "" {
		return "", ""
	}

	var header *goquery.Selection
	doc.Find("b").EachWithBreak(func(_ int, b *goquery.Selection) bool {
		if htmlutil.CleanText(htmlutil.GetText(b.Nodes[0])) == "Heimaarbeiði" {
			header = b
			return false
		}
		return true
	})
	if header == nil {
		return lessonID, ""
	}

	p := header.Closest("p")
	if p.Length() == 0 {
		return lessonID, ""
	}

	w := &walker{}
	for child := p.Nodes[0].FirstChild; child != nil; child = child.NextSibling {
		w.processTopLevel(child)
	}

	homeworkText := strings.Join(w.parts, "")
	homeworkText = spaceBeforeNewline.ReplaceAllString(homeworkText, "\n")
	homeworkText = spaceAfterNewline.ReplaceAllString(homeworkText, "\n")
	homeworkText = strings.TrimSpace(homeworkText)

	return lessonID, homeworkText
}

// walker threads the two top-level suppressions (the "Heimaarbeiði" header
// itself, and the single <br> immediately following it) across sibling
// nodes of the homework <p>.
type walker struct {
	parts          []string
	headerSkipped  bool
	firstBRSkipped bool
}

func (w *walker) processTopLevel(node *html.Node) {
	if node.Type == html.ElementNode && !w.headerSkipped && node.Data == "b" &&
		htmlutil.CleanText(htmlutil.GetText(node)) == "Heimaarbeiði" {
		w.headerSkipped = true
		return
	}
	if node.Type == html.ElementNode && w.headerSkipped && !w.firstBRSkipped && node.Data == "br" {
		w.firstBRSkipped = true
		return
	}
	w.parts = append(w.parts, renderNode(node))
}

// renderNode converts one node (and its descendants) to Markdown. Only the
// two suppressions above ever apply, and only at the homework <p>'s
// immediate children, so nested recursion never needs to re-check them.
func renderNode(node *html.Node) string {
	switch node.Type {
	case html.TextNode:
		return node.Data
	case html.ElementNode:
		switch node.Data {
		case "br":
			return "\n"
		case "b":
			inner := renderChildren(node)
			inner = strings.TrimSpace(inner)
			if inner == "" {
				return ""
			}
			return "**" + inner + "**"
		case "i":
			inner := renderChildren(node)
			inner = strings.TrimSpace(inner)
			if inner == "" {
				return ""
			}
			return "*" + inner + "*"
		default:
			return renderChildren(node)
		}
	default:
		return ""
	}
}

func renderChildren(node *html.Node) string {
	var b strings.Builder
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		b.WriteString(renderNode(child))
	}
	return b.String()
}
