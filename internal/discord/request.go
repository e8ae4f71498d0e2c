package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
)

// NewRequest builds the POST for p against webhookURL. Without files the body
// is JSON; with files it is multipart/form-data carrying payload_json and one
// files[n] part per file.
func NewRequest(ctx context.Context, webhookURL string, p ExecuteWebhook) (*http.Request, error) {
	u, err := url.Parse(webhookURL)
	if err != nil {
		return nil, fmt.Errorf("parse webhook url: %w", err)
	}
	q := u.Query()
	if p.Wait != nil {
		q.Set("wait", strconv.FormatBool(*p.Wait))
	}
	if p.ThreadID != "" {
		q.Set("thread_id", p.ThreadID)
	}
	// Webhooks not owned by an application drop components unless asked.
	if len(p.Components) > 0 {
		q.Set("with_components", "true")
	}
	u.RawQuery = q.Encode()

	var (
		body        []byte
		contentType string
	)
	if len(p.Files) == 0 {
		body, err = json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		contentType = "application/json"
	} else {
		body, contentType, err = multipartBody(p)
		if err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	return req, nil
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func multipartBody(p ExecuteWebhook) ([]byte, string, error) {
	if len(p.Attachments) == 0 {
		p.Attachments = make([]Attachment, len(p.Files))
		for i, f := range p.Files {
			p.Attachments[i] = Attachment{ID: i, Filename: f.Name}
		}
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, "", fmt.Errorf("encode payload: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="payload_json"`)
	h.Set("Content-Type", "application/json")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("write payload_json: %w", err)
	}
	if _, err := part.Write(payload); err != nil {
		return nil, "", fmt.Errorf("write payload_json: %w", err)
	}

	for i, f := range p.Files {
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files[%d]"; filename="%s"`, i, quoteEscaper.Replace(f.Name)))
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("write file %d: %w", i, err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", fmt.Errorf("write file %d: %w", i, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
