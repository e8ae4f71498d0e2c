package runtime

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"

	"github.com/joshsymonds/mailrelay/internal/mailbox"
)

func b64(s string) string { return base64.URLEncoding.EncodeToString([]byte(s)) }

func TestMessageFromAPIPlain(t *testing.T) {
	m := &gmail.Message{
		Id:           "18f0",
		ThreadId:     "18e9",
		InternalDate: 1714555800123,
		LabelIds:     []string{"INBOX"},
		Payload: &gmail.MessagePart{
			MimeType: "text/plain; charset=UTF-8",
			Headers: []*gmail.MessagePartHeader{
				{Name: "From", Value: "Alice <alice@example.com>"},
				{Name: "Subject", Value: "Lunch?"},
			},
			Body: &gmail.MessagePartBody{Data: b64("See you at noon\n> earlier")},
		},
	}

	got := messageFromAPI(m)
	assert.Equal(t, mailbox.MessageID("18f0"), got.ID)
	assert.Equal(t, "18e9", got.ThreadID)
	assert.Equal(t, "https://mail.google.com/mail/u/0/#all/18e9", got.Link)
	assert.Equal(t, int64(1714555800123), got.Date.UnixMilli())
	assert.Equal(t, "Alice <alice@example.com>", got.From)
	assert.Equal(t, "Lunch?", got.Subject)
	assert.Equal(t, "See you at noon\n> earlier", got.PlainBody)
	assert.True(t, got.IsPlainText())
	assert.False(t, got.IsDraft)
}

func TestMessageFromAPIMultipart(t *testing.T) {
	m := &gmail.Message{
		Id:       "1",
		LabelIds: []string{"DRAFT"},
		Payload: &gmail.MessagePart{
			MimeType: "multipart/mixed",
			Parts: []*gmail.MessagePart{
				{
					MimeType: "multipart/alternative",
					Parts: []*gmail.MessagePart{
						{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: b64("hi")}},
						{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: b64("<p>hi</p>")}},
					},
				},
				{MimeType: "text/plain", Filename: "notes.txt", Body: &gmail.MessagePartBody{AttachmentId: "a1"}},
			},
		},
	}

	got := messageFromAPI(m)
	assert.Equal(t, "hi", got.PlainBody)
	assert.Equal(t, "<p>hi</p>", got.Body)
	assert.False(t, got.IsPlainText())
	assert.True(t, got.IsDraft)
}

func TestDecodePartUnpaddedAndCharset(t *testing.T) {
	raw := base64.RawURLEncoding.EncodeToString([]byte("caf\xe9"))
	got := decodePart(&gmail.MessagePartBody{Data: raw}, "ISO-8859-1")
	assert.Equal(t, "café", got)

	assert.Empty(t, decodePart(&gmail.MessagePartBody{Data: "!!!"}, ""))
	assert.Empty(t, decodePart(nil, ""))
}

func TestThreadFromAPISubject(t *testing.T) {
	th := &gmail.Thread{Id: "t", Messages: []*gmail.Message{
		{Id: "a", Payload: &gmail.MessagePart{Headers: []*gmail.MessagePartHeader{{Name: "Subject", Value: "first"}}}},
		{Id: "b", Payload: &gmail.MessagePart{Headers: []*gmail.MessagePartHeader{{Name: "Subject", Value: "Re: first"}}}},
	}}
	got := threadFromAPI(th)
	assert.Equal(t, "first", got.Subject)
	assert.Len(t, got.Messages, 2)
}

const multipartMail = "From: Bob <bob@example.com>\r\n" +
	"Subject: Report\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=XX\r\n" +
	"\r\n" +
	"--XX\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Numbers attached\r\n" +
	"--XX\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>Numbers attached</p>\r\n" +
	"--XX--\r\n"

func TestMessageFromIMAP(t *testing.T) {
	received := time.Date(2024, time.May, 1, 9, 30, 0, 0, time.UTC)
	env := &imap.Envelope{
		Subject: "Report",
		From:    []imap.Address{{Name: "Bob", Mailbox: "bob", Host: "example.com"}},
	}

	got := messageFromIMAP(42, []imap.Flag{imap.FlagSeen}, env, received, []byte(multipartMail))
	assert.Equal(t, mailbox.MessageID("42"), got.ID)
	assert.Equal(t, "Bob <bob@example.com>", got.From)
	assert.Equal(t, "Report", got.Subject)
	assert.True(t, got.Date.Equal(received))
	assert.Equal(t, "Numbers attached", strings.TrimSpace(got.PlainBody))
	assert.Contains(t, got.Body, "<p>Numbers attached</p>")
	assert.Empty(t, got.Link)
	assert.False(t, got.IsDraft)
}

func TestMessageFromIMAPDraftAndPlain(t *testing.T) {
	raw := "Subject: x\r\nContent-Type: text/plain\r\n\r\nbody\r\n"
	got := messageFromIMAP(7, []imap.Flag{imap.FlagDraft}, nil, time.Time{}, []byte(raw))
	require.True(t, got.IsDraft)
	assert.True(t, got.IsPlainText())
	assert.Equal(t, "body", strings.TrimSpace(got.PlainBody))
}

func TestParseMIMEGarbage(t *testing.T) {
	plain, html := parseMIME([]byte("not a mail at all"))
	assert.Empty(t, html)
	assert.NotPanics(t, func() { parseMIME(nil) })
	_ = plain
}

func TestSearchCriteriaIncludesBoundaryDay(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	q := mailbox.QueryAfter(time.Date(2024, time.May, 1, 23, 30, 0, 0, time.UTC), tokyo)
	got := searchCriteria(q)

	// 23:30 UTC is already May 2 in Tokyo; the search starts a day earlier.
	assert.True(t, got.Since.Equal(time.Date(2024, time.May, 1, 0, 0, 0, 0, tokyo)), "got %s", got.Since)
	assert.True(t, got.Since.Before(q.After))
	assert.Empty(t, got.Before)
}
