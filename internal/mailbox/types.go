// internal/mailbox/types.go
package mailbox

import (
	"fmt"
	"time"
)

type MessageID string

type Message struct {
	ID        MessageID
	ThreadID  string
	Date      time.Time
	From      string
	Subject   string
	PlainBody string
	Body      string // rendered body; identical to PlainBody for text/plain mail
	IsDraft   bool
	Link      string // web UI address of the message, when the backend has one
}

// IsPlainText reports whether the message has no separate rendered (HTML) body.
func (m Message) IsPlainText() bool {
	return m.PlainBody == m.Body
}

// Preview is the short form used in run logs: `2006-01-02: "first ten..."`.
func (m Message) Preview() string {
	runes := []rune(m.PlainBody)
	if len(runes) > previewRunes {
		runes = runes[:previewRunes]
	}
	return fmt.Sprintf("%s: %q...", m.Date.Format(time.DateOnly), string(runes))
}

const previewRunes = 10

type Thread struct {
	ID       string
	Subject  string // subject of the first message
	Messages []Message
}

// Query selects messages by calendar day. Backends may return older messages
// (whole threads, day granularity); callers re-filter by exact timestamp.
type Query struct {
	After time.Time // only the date component in After.Location() is used
}

// QueryAfter builds a day-granular query for the day containing t in loc.
func QueryAfter(t time.Time, loc *time.Location) Query {
	if loc == nil {
		loc = time.Local
	}
	local := t.In(loc)
	return Query{After: time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)}
}

// Raw renders the query in Gmail search syntax. Gmail reads date literals in
// its own time zone, so the day boundary is sent as epoch seconds.
func (q Query) Raw() string {
	return fmt.Sprintf("after:%d", q.After.Unix()-1)
}
