package discord

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxErrorBody = 64 << 10

// Response is what the endpoint answered.
type Response struct {
	Status int
	Body   []byte
}

// StatusError is returned for any non-2xx answer.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook returned %d: %s", e.Status, strings.TrimSpace(e.Body))
}

// Client posts Execute Webhook requests.
type Client struct {
	HTTP *http.Client
}

// NewClient returns a Client with the given per-request timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{HTTP: &http.Client{Timeout: timeout}}
}

// Execute sends p. Success is any 2xx status; everything else is a
// *StatusError carrying the response body.
func (c *Client) Execute(ctx context.Context, webhookURL string, p ExecuteWebhook) (Response, error) {
	req, err := NewRequest(ctx, webhookURL, p)
	if err != nil {
		return Response{}, err
	}
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	res, err := hc.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			uerr.URL = Redact(uerr.URL)
		}
		return Response{}, fmt.Errorf("post webhook: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	if err != nil {
		return Response{Status: res.StatusCode}, fmt.Errorf("read webhook response: %w", err)
	}
	out := Response{Status: res.StatusCode, Body: body}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return out, &StatusError{Status: res.StatusCode, Body: string(body)}
	}
	return out, nil
}

// Redact hides the token segment of a webhook URL
// (https://discord.com/api/webhooks/{id}/{token}) for logs.
func Redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	segs := strings.Split(strings.TrimSuffix(u.Path, "/"), "/")
	if len(segs) >= 3 {
		segs[len(segs)-1] = "redacted"
	}
	u.Path = strings.Join(segs, "/")
	u.RawPath = ""
	u.RawQuery = ""
	u.User = nil
	return u.String()
}
