// Package transport implements C1: a pooled, retrying HTTP client in front
// of the upstream, instrumented with otel spans and reporting attempt
// outcomes to an optional concurrency.Limiter.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"tgadapter/internal/apierr"
	"tgadapter/internal/concurrency"
)

var tracer = otel.Tracer("tgadapter/transport")

// sharedPool is the one process-wide keep-alive connection pool every
// per-request Client draws connections from; only cookies and redirect
// policy are per-request.
var (
	sharedPoolOnce sync.Once
	sharedPool     *http.Transport
)

func getSharedPool() *http.Transport {
	sharedPoolOnce.Do(func() {
		sharedPool = &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 20,
			ForceAttemptHTTP2:   true,
		}
	})
	return sharedPool
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// DumpWriter receives a raw request/response dump keyed by an opaque id.
// Implementations are expected to be cheap; transport calls Write
// synchronously from its response and error hooks.
type DumpWriter interface {
	Write(id string, contents string)
}

// Options configures a Client at construction.
type Options struct {
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     int
	BackoffFactor  time.Duration
	Dump           DumpWriter
}

// DefaultOptions mirrors the upstream contract's defaults.
func DefaultOptions(baseURL string) Options {
	return Options{
		BaseURL:       baseURL,
		Timeout:       30 * time.Second,
		MaxRetries:    3,
		BackoffFactor: 500 * time.Millisecond,
	}
}

// Client wraps a shared resty.Client with the upstream's connection,
// header, and retry policy.
type Client struct {
	http          *resty.Client
	baseURL       *url.URL
	maxRetries    int
	backoffFactor time.Duration
	dump          DumpWriter
}

// New constructs a Client. Cookies are merged into the jar so subsequent
// calls through this client send them automatically.
func New(opts Options, cookies map[string]string) (*Client, error) {
	baseURL, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("transport: parse base url: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("transport: new cookiejar: %w", err)
	}
	if len(cookies) > 0 {
		var httpCookies []*http.Cookie
		for name, value := range cookies {
			httpCookies = append(httpCookies, &http.Cookie{Name: name, Value: value})
		}
		jar.SetCookies(baseURL, httpCookies)
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseURL)
	client.SetCookieJar(jar)
	client.SetHeader("user-agent", defaultUserAgent)
	client.SetHeader("accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	// Redirects are never followed transparently: both the session bootstrap
	// GET and the week POSTs need a bare 3xx status to detect session loss
	// (see apierr.Auth callers), so the policy is fixed for the
	// whole lifetime of a per-request Client rather than toggled around
	// individual calls (which would race with concurrent fan-out).
	client.SetRedirectPolicy(resty.NoRedirectPolicy())
	client.SetTimeout(opts.Timeout)
	client.SetTransport(getSharedPool())

	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	backoff := opts.BackoffFactor
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	c := &Client{
		http:          client,
		baseURL:       baseURL,
		maxRetries:    maxRetries,
		backoffFactor: backoff,
		dump:          opts.Dump,
	}
	if opts.Dump != nil {
		instrument(client, opts.Dump)
	}
	return c, nil
}

// Response carries the bits downstream parsers need.
type Response struct {
	StatusCode int
	Body       []byte
	FinalURL   string
	Headers    http.Header
}

func retryableStatus(status int) bool {
	switch status {
	case 429, 500, 503:
		return true
	default:
		return false
	}
}

// Get issues a GET to path (absolute or relative to the base URL), reporting
// attempt outcomes to limiter if non-nil.
func (c *Client) Get(ctx context.Context, path string, limiter *concurrency.Limiter) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, nil, limiter)
}

// Post issues a form-encoded POST to path, reporting attempt outcomes to
// limiter if non-nil.
func (c *Client) Post(ctx context.Context, path string, form map[string]string, limiter *concurrency.Limiter) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, form, limiter)
}

func (c *Client) do(ctx context.Context, method, path string, form map[string]string, limiter *concurrency.Limiter) (*Response, error) {
	ctx, span := tracer.Start(ctx, fmt.Sprintf("transport:%s", method))
	defer span.End()

	var lastErr error
	reportedOutcome := false

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		req := c.http.R().SetContext(ctx)
		if form != nil {
			req.SetFormData(form)
		}

		var res *resty.Response
		var err error
		switch method {
		case http.MethodGet:
			res, err = req.Get(path)
		default:
			res, err = req.Post(path)
		}

		if err != nil {
			if res != nil && res.StatusCode() >= 300 && res.StatusCode() < 400 {
				// The no-redirect policy reports a 3xx as an error; hand the
				// bare status back so callers can detect session loss.
				return &Response{
					StatusCode: res.StatusCode(),
					FinalURL:   res.Request.URL,
					Headers:    res.Header(),
				}, nil
			}
			lastErr = err
			if ctx.Err() != nil {
				// Cancellation is not a failure; elide the limiter report.
				return nil, ctx.Err()
			}
			if limiter != nil && !reportedOutcome {
				limiter.ReportFailure()
				reportedOutcome = true
			}
			if attempt == c.maxRetries {
				break
			}
			if !sleepBackoff(ctx, c.backoffFactor, attempt) {
				return nil, ctx.Err()
			}
			reportedOutcome = false
			continue
		}

		if retryableStatus(res.StatusCode()) {
			lastErr = fmt.Errorf("transport: retryable status %d", res.StatusCode())
			if limiter != nil {
				limiter.ReportFailure()
			}
			if attempt == c.maxRetries {
				span.SetStatus(codes.Error, "retries exhausted")
				return nil, apierr.UpstreamStatus(fmt.Sprintf("upstream returned %d after %d attempts", res.StatusCode(), c.maxRetries), res.StatusCode())
			}
			if !sleepBackoff(ctx, c.backoffFactor, attempt) {
				return nil, ctx.Err()
			}
			continue
		}

		if res.StatusCode() >= 400 {
			span.SetStatus(codes.Error, "non-retryable status")
			return nil, apierr.UpstreamStatus(fmt.Sprintf("upstream returned %d", res.StatusCode()), res.StatusCode())
		}

		if limiter != nil {
			limiter.ReportSuccess()
		}
		return &Response{
			StatusCode: res.StatusCode(),
			Body:       res.Body(),
			FinalURL:   res.Request.URL,
			Headers:    res.Header(),
		}, nil
	}

	span.SetStatus(codes.Error, "network error")
	return nil, apierr.Network("request failed after retries", lastErr)
}

func sleepBackoff(ctx context.Context, base time.Duration, attempt int) bool {
	delay := base * time.Duration(1<<(attempt-1))
	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		return false
	}
}

// NextTimer mints a fresh anti-cache nonce, the decimal millisecond epoch
// stamp the upstream expects as timer/timex.
func NextTimer() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}
