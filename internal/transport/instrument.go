package transport

import (
	"fmt"
	"log/slog"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// instrument wires request/response dumping into client, adapted from the
// teacher's resty middleware hooks but trimmed to a single dump sink
// instead of a full otel semconv pipeline.
func instrument(client *resty.Client, dump DumpWriter) {
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		req.SetHeader("x-tgadapter-dump-id", uuid.NewString())
		return nil
	})

	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		id := res.Request.Header.Get("x-tgadapter-dump-id")
		dump.Write(id, formatMessage(res.Request.Method, res.Request.URL, res.StatusCode(), string(res.Body())))
		return nil
	})

	client.OnError(func(req *resty.Request, err error) {
		id := req.Header.Get("x-tgadapter-dump-id")
		dump.Write(id, fmt.Sprintf("%s %s\n\nerror: %s", req.Method, req.URL, err))
		slog.Debug("transport request failed", "method", req.Method, "url", req.URL, "err", err)
	})
}

func formatMessage(method, url string, status int, body string) string {
	return fmt.Sprintf("%s %s -> %d\n\n%s", method, url, status, body)
}
