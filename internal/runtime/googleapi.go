// internal/runtime/googleapi.go: adapts *gmail.Service to mailbox.Client
package runtime

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"slices"
	"strings"
	"time"

	"github.com/emersion/go-message/charset"
	"google.golang.org/api/gmail/v1"

	"github.com/joshsymonds/mailrelay/internal/mailbox"
)

const (
	labelDraft = "DRAFT"
	webURL     = "https://mail.google.com/mail/u/0/#all/"
)

type googleClient struct {
	svc  *gmail.Service
	user string
}

func NewGoogleAPIClient(svc *gmail.Service, user string) *googleClient {
	if user == "" {
		user = "me"
	}
	return &googleClient{svc: svc, user: user}
}

func (g *googleClient) Search(ctx context.Context, q mailbox.Query) ([]mailbox.Thread, error) {
	var ids []string
	err := g.svc.Users.Threads.List(g.user).Q(q.Raw()).Pages(ctx, func(res *gmail.ListThreadsResponse) error {
		for _, th := range res.Threads {
			ids = append(ids, th.Id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}

	threads := make([]mailbox.Thread, 0, len(ids))
	for _, id := range ids {
		th, err := g.svc.Users.Threads.Get(g.user, id).Format("full").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("get thread %s: %w", id, err)
		}
		threads = append(threads, threadFromAPI(th))
	}
	return threads, nil
}

func threadFromAPI(th *gmail.Thread) mailbox.Thread {
	out := mailbox.Thread{ID: th.Id, Messages: make([]mailbox.Message, 0, len(th.Messages))}
	for _, m := range th.Messages {
		out.Messages = append(out.Messages, messageFromAPI(m))
	}
	if len(out.Messages) > 0 {
		out.Subject = out.Messages[0].Subject
	}
	return out
}

func messageFromAPI(m *gmail.Message) mailbox.Message {
	msg := mailbox.Message{
		ID:       mailbox.MessageID(m.Id),
		ThreadID: m.ThreadId,
		Date:     time.UnixMilli(m.InternalDate),
		IsDraft:  slices.Contains(m.LabelIds, labelDraft),
	}
	if m.ThreadId != "" {
		msg.Link = webURL + m.ThreadId
	}
	if m.Payload == nil {
		return msg
	}
	for _, h := range m.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "from":
			msg.From = h.Value
		case "subject":
			msg.Subject = h.Value
		}
	}
	plain, html := walkParts(m.Payload)
	msg.PlainBody = plain
	msg.Body = plain
	if html != "" {
		msg.Body = html
	}
	return msg
}

// walkParts returns the first text/plain and text/html bodies, skipping
// attachments.
func walkParts(p *gmail.MessagePart) (plain, html string) {
	if p == nil {
		return "", ""
	}
	mediaType, params, _ := mime.ParseMediaType(p.MimeType)
	switch {
	case strings.HasPrefix(mediaType, "multipart/"):
		for _, part := range p.Parts {
			pl, ht := walkParts(part)
			if plain == "" {
				plain = pl
			}
			if html == "" {
				html = ht
			}
		}
	case p.Filename != "":
		// attachment
	case mediaType == "text/plain":
		plain = decodePart(p.Body, partCharset(p, params))
	case mediaType == "text/html":
		html = decodePart(p.Body, partCharset(p, params))
	}
	return plain, html
}

func partCharset(p *gmail.MessagePart, params map[string]string) string {
	if cs := params["charset"]; cs != "" {
		return cs
	}
	for _, h := range p.Headers {
		if strings.EqualFold(h.Name, "Content-Type") {
			if _, ps, err := mime.ParseMediaType(h.Value); err == nil {
				return ps["charset"]
			}
		}
	}
	return ""
}

func decodePart(body *gmail.MessagePartBody, cs string) string {
	if body == nil || body.Data == "" {
		return ""
	}
	data, err := base64.URLEncoding.DecodeString(body.Data)
	if err != nil {
		data, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(body.Data, "="))
		if err != nil {
			return ""
		}
	}
	return toUTF8(data, cs)
}

func toUTF8(data []byte, cs string) string {
	cs = strings.ToLower(strings.TrimSpace(cs))
	if cs == "" || cs == "utf-8" || cs == "us-ascii" {
		return string(data)
	}
	r, err := charset.Reader(cs, bytes.NewReader(data))
	if err != nil {
		return string(data)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return string(data)
	}
	return string(out)
}
