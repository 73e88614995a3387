// Package offsets implements C7: discovering the set of week offsets the
// upstream exposes from a base week page's navigation anchors.
package offsets

import (
	"bytes"
	"regexp"
	"sort"
	"strconv"

	"github.com/PuerkitoBio/goquery"
)

var onclickOffsetRe = regexp.MustCompile(`v=(-?\d+)`)

// Discover returns the sorted, deduplicated list of week offsets advertised
// by anchors whose onclick attribute carries a "v=N" argument. An empty
// slice is returned when none are found.
func Discover(html string) []int {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBufferString(html))
	if err != nil {
		return nil
	}

	seen := map[int]bool{}
	doc.Find("a[onclick]").Each(func(_ int, a *goquery.Selection) {
		onclick, _ := a.Attr("onclick")
		m := onclickOffsetRe.FindStringSubmatch(onclick)
		if m == nil {
			return
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return
		}
		seen[n] = true
	})

	out := make([]int, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}
