// Package teachers implements C4: a process-wide TTL cache of the
// initials -> full name mapping, populated from the upstream teacher list.
package teachers

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel"

	"tgadapter/internal/concurrency"
	"tgadapter/internal/session"
	"tgadapter/internal/transport"
)

var tracer = otel.Tracer("tgadapter/teachers")

// Map is short initials -> full name. Missing initials resolve to
// themselves (identity fallback); see Resolve.
type Map map[string]string

const cacheTTL = 24 * time.Hour
const cacheKey = "teacher-map"

// Cache is the process-wide singleton described in the spec: a single
// cache slot shared by every session of the same upstream tenant. It is
// constructed once at startup and injected, not a hidden package global.
type Cache struct {
	lru *expirable.LRU[string, Map]
	// FuzzyThreshold records the default Jaro-Winkler threshold (1.0 is an
	// exact match). Neither Get nor Resolve reads it: callers pass the
	// threshold to Map.Resolve directly, where 0 disables fuzzy recovery.
	FuzzyThreshold float64
}

// New constructs a Cache with the spec's default 24h TTL. Capacity is
// fixed at 1 entry: the spec assumes a single upstream tenant per process.
func New() *Cache {
	return &Cache{
		lru:            expirable.NewLRU[string, Map](1, nil, cacheTTL),
		FuzzyThreshold: 0.92,
	}
}

// Get returns the cached map, fetching and populating it on miss. Fetch
// failures degrade to an empty map, which is itself cached for the TTL
// window so a flaky upstream isn't hammered every request.
func (c *Cache) Get(ctx context.Context, client *transport.Client, sess *session.Session, limiter *concurrency.Limiter) Map {
	ctx, span := tracer.Start(ctx, "teachers:Get")
	defer span.End()

	if m, hit := c.lru.Get(cacheKey); hit {
		return m
	}

	m := fetch(ctx, client, sess, limiter)
	c.lru.Add(cacheKey, m)
	return m
}

func fetch(ctx context.Context, client *transport.Client, sess *session.Session, limiter *concurrency.Limiter) Map {
	res, err := client.Post(ctx, "/i/teachers.asp", map[string]string{
		"fname": "Henry",
		"lname": sess.LName,
		"timer": transport.NextTimer(),
	}, limiter)
	if err != nil {
		return Map{}
	}
	return Parse(string(res.Body))
}

var (
	teacherWithLink = regexp.MustCompile(`([^<>]+?)\s*\(\s*<a[^>]*?>([A-Z]{2,4})</a>\s*\)`)
	teacherNoLink   = regexp.MustCompile(`([^<>]+?)\s*\(\s*([A-Z]{2,4})\s*\)`)
)

// Parse parses the upstream teacher-list HTML. The <select><option> path
// wins when both it and the regex fallback find rows.
func Parse(html string) Map {
	out := Map{}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBufferString(html))
	if err == nil {
		doc.Find("select option").Each(func(_ int, opt *goquery.Selection) {
			initials, ok := opt.Attr("value")
			if !ok || initials == "" || initials == "-1" {
				return
			}
			name := strings.TrimSpace(opt.Text())
			if name == "" {
				return
			}
			out[initials] = name
		})
	}
	if len(out) > 0 {
		return out
	}

	for _, m := range teacherWithLink.FindAllStringSubmatch(html, -1) {
		out[m[2]] = strings.TrimSpace(m[1])
	}
	if len(out) > 0 {
		return out
	}
	for _, m := range teacherNoLink.FindAllStringSubmatch(html, -1) {
		out[m[2]] = strings.TrimSpace(m[1])
	}
	return out
}

// Resolve looks up initials in m, falling back to a best-effort fuzzy
// match against the cached keys (Jaro-Winkler similarity >= threshold)
// before finally falling back to the bare initials (identity fallback).
// The fuzzy step never changes the documented contract: it only reduces
// how often a typo'd initials class produces an ugly bare-initials name.
func (m Map) Resolve(initials string, fuzzyThreshold float64) string {
	if name, ok := m[initials]; ok {
		return name
	}
	if fuzzyThreshold > 0 {
		best := ""
		bestScore := 0.0
		for key, name := range m {
			score := matchr.JaroWinkler(initials, key, false)
			if score > bestScore {
				bestScore = score
				best = name
			}
		}
		if bestScore >= fuzzyThreshold {
			return best
		}
	}
	return initials
}
