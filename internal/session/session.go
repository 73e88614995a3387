// Package session implements C2: turning an opaque cookie string into a
// bootstrapped Session carrying the upstream's lname token.
package session

import (
	"context"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"tgadapter/internal/apierr"
	"tgadapter/internal/transport"
)

var tracer = otel.Tracer("tgadapter/session")

// Session is the transient, per-request bootstrap result. It is created
// once by Bootstrap, shared read-only by fan-out tasks, and discarded at
// request end.
type Session struct {
	Cookies map[string]string
	LName   string
}

// ParseCookies parses a semicolon-separated "name=value" list. Surrounding
// whitespace is trimmed; pairs without "=" are dropped. Parsing the same
// string twice always yields an identical map.
func ParseCookies(s string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		idx := strings.IndexByte(pair, '=')
		if idx < 0 {
			continue
		}
		name := strings.TrimSpace(pair[:idx])
		value := strings.TrimSpace(pair[idx+1:])
		if name == "" {
			continue
		}
		out[name] = value
	}
	return out
}

// lnamePatterns is searched in order; the first match wins.
var lnamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`lname=([^&"'\s<]+)`),
	regexp.MustCompile(`xmlhttp\.send\("[^"]*lname=([^&"'\s]+)`),
	regexp.MustCompile(`MyUpdate\('[^']*','[^']*','[^']*',\d+,(\d+)\)`),
	regexp.MustCompile(`name=['"]lname['"]\s*value=['"]([^'"]+)['"]`),
}

// extractLName runs the ordered pattern list over html and returns the
// first match, truncated at the first comma if one is present.
func extractLName(html string) string {
	for _, re := range lnamePatterns {
		m := re.FindStringSubmatch(html)
		if m == nil {
			continue
		}
		raw := m[1]
		if idx := strings.IndexByte(raw, ','); idx >= 0 {
			raw = raw[:idx]
		}
		return raw
	}
	return ""
}

// Bootstrapper bootstraps sessions against one upstream base timetable
// page.
type Bootstrapper struct {
	client      *transport.Client
	basePath    string
}

// NewBootstrapper wraps an already-constructed transport.Client. basePath
// is the relative path to the base timetable page (e.g. "/132n/").
func NewBootstrapper(client *transport.Client, basePath string) *Bootstrapper {
	return &Bootstrapper{client: client, basePath: basePath}
}

// Bootstrap fetches the base page (through a client already carrying
// cookies) with redirects disabled so a login redirect surfaces as a
// non-200 status, and extracts lname. Callers are responsible for parsing
// the inbound cookie string with ParseCookies and rejecting an empty
// result before constructing the transport client.
func (b *Bootstrapper) Bootstrap(ctx context.Context, cookies map[string]string) (*Session, error) {
	ctx, span := tracer.Start(ctx, "session:Bootstrap")
	defer span.End()

	res, err := b.client.Get(ctx, b.basePath, nil)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if res.StatusCode != 200 {
		span.SetStatus(codes.Error, "non-200 on bootstrap fetch")
		return nil, apierr.Auth("upstream redirected or refused the session bootstrap request")
	}

	lname := extractLName(string(res.Body))
	if lname == "" {
		span.SetStatus(codes.Error, "lname missing")
		return nil, apierr.UpstreamProtocol("session parameter missing")
	}

	return &Session{Cookies: cookies, LName: lname}, nil
}
