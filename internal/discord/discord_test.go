package discord

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hookURL = "https://discord.test/api/webhooks/123/tok3n"

func samplePayload() ExecuteWebhook {
	return ExecuteWebhook{
		Embeds: []Embed{{
			Title:       "Subject",
			Author:      &EmbedAuthor{Name: "Alice <alice@example.com>"},
			Timestamp:   "2024-05-01T09:30:00.000Z",
			Description: "body",
		}},
	}
}

func TestNewRequestJSON(t *testing.T) {
	wait := true
	p := samplePayload()
	p.Wait = &wait
	p.ThreadID = "987"

	req, err := NewRequest(context.Background(), hookURL, p)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Equal(t, "true", req.URL.Query().Get("wait"))
	assert.Equal(t, "987", req.URL.Query().Get("thread_id"))

	raw, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "", got["content"], "empty content is still sent")
	assert.NotContains(t, got, "Wait")
	embeds := got["embeds"].([]any)
	require.Len(t, embeds, 1)
	embed := embeds[0].(map[string]any)
	assert.Equal(t, "Subject", embed["title"])
	assert.Equal(t, map[string]any{"name": "Alice <alice@example.com>"}, embed["author"])
}

func TestNewRequestOmitsUnsetQuery(t *testing.T) {
	req, err := NewRequest(context.Background(), hookURL, samplePayload())
	require.NoError(t, err)
	assert.Empty(t, req.URL.RawQuery)
}

func TestNewRequestMultipart(t *testing.T) {
	p := samplePayload()
	p.Files = []File{
		{Name: "a.txt", ContentType: "text/plain", Data: []byte("hello")},
		{Name: `we"ird.bin`, Data: []byte{0, 1}},
	}

	req, err := NewRequest(context.Background(), hookURL, p)
	require.NoError(t, err)
	mediaType, params, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/form-data", mediaType)

	mr := multipart.NewReader(req.Body, params["boundary"])
	parts := map[string][]byte{}
	names := map[string]string{}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(part)
		require.NoError(t, err)
		parts[part.FormName()] = data
		names[part.FormName()] = part.FileName()
	}

	require.Contains(t, parts, "payload_json")
	var payload ExecuteWebhook
	require.NoError(t, json.Unmarshal(parts["payload_json"], &payload))
	assert.Equal(t, []Attachment{{ID: 0, Filename: "a.txt"}, {ID: 1, Filename: `we"ird.bin`}}, payload.Attachments)
	assert.Equal(t, []byte("hello"), parts["files[0]"])
	assert.Equal(t, []byte{0, 1}, parts["files[1]"])
	assert.Equal(t, `we"ird.bin`, names["files[1]"])
	assert.Empty(t, p.Attachments, "caller payload is not mutated")
}

func TestNewRequestBadURL(t *testing.T) {
	_, err := NewRequest(context.Background(), "://nope", samplePayload())
	require.Error(t, err)
}

func TestExecute(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	res, err := NewClient(time.Second).Execute(context.Background(), srv.URL+"/api/webhooks/1/x", samplePayload())
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, res.Status)
	assert.Contains(t, string(gotBody), `"title":"Subject"`)
}

func TestExecuteNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"message":"You are being rate limited.","retry_after":1.5}`)
	}))
	t.Cleanup(srv.Close)

	res, err := NewClient(time.Second).Execute(context.Background(), srv.URL, samplePayload())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.Status)
	assert.Contains(t, se.Body, "rate limited")
	assert.Equal(t, http.StatusTooManyRequests, res.Status)
}

func TestExecuteTransportErrorIsRedacted(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := NewClient(time.Second).Execute(context.Background(), addr+"/api/webhooks/1/s3cret", samplePayload())
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "s3cret")
	var se *StatusError
	assert.False(t, errors.As(err, &se))
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "https://discord.test/api/webhooks/123/redacted", Redact(hookURL+"?wait=true"))
	assert.Equal(t, "https://discord.test/hook", Redact("https://discord.test/hook"))
}

func TestLinkRow(t *testing.T) {
	row := LinkRow(Button{Label: "Open", URL: "https://mail.google.com/"})
	assert.Equal(t, ComponentActionRow, row.Type)
	require.Len(t, row.Components, 1)
	assert.Equal(t, ComponentButton, row.Components[0].Type)
	assert.Equal(t, ButtonLink, row.Components[0].Style)
}

func TestNewRequestComponentsQuery(t *testing.T) {
	p := samplePayload()
	req, err := NewRequest(context.Background(), hookURL, p)
	require.NoError(t, err)
	assert.False(t, req.URL.Query().Has("with_components"))

	p.Components = []ActionRow{LinkRow(Button{Label: "Open", URL: "https://mail.google.com/"})}
	req, err = NewRequest(context.Background(), hookURL, p)
	require.NoError(t, err)
	assert.Equal(t, "true", req.URL.Query().Get("with_components"))

	raw, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"components":[{"type":1,"components":[{"type":2,"style":5,"label":"Open","url":"https://mail.google.com/"}]}]`)
}
