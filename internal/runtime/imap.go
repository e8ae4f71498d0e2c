// internal/runtime/imap.go: mailbox.Client over IMAP
package runtime

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/joshsymonds/mailrelay/internal/mailbox"
)

type IMAPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	TLS      bool
	Mailbox  string
}

// IMAPClient searches one IMAP mailbox. Every message is its own thread.
type IMAPClient struct {
	cfg IMAPConfig
}

func NewIMAPClient(cfg IMAPConfig) *IMAPClient {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	return &IMAPClient{cfg: cfg}
}

func (c *IMAPClient) connect() (*imapclient.Client, error) {
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	var (
		client *imapclient.Client
		err    error
	)
	if c.cfg.TLS {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connect imap %s: %w", addr, err)
	}
	if err := client.Login(c.cfg.Username, c.cfg.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("login %s: %w", c.cfg.Username, err)
	}
	return client, nil
}

func (c *IMAPClient) Search(ctx context.Context, q mailbox.Query) ([]mailbox.Thread, error) {
	client, err := c.connect()
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()
	stop := context.AfterFunc(ctx, func() { _ = client.Close() })
	defer stop()

	if _, err := client.Select(c.cfg.Mailbox, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, fmt.Errorf("select %s: %w", c.cfg.Mailbox, err)
	}

	data, err := client.UIDSearch(searchCriteria(q), nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", c.cfg.Mailbox, err)
	}
	uids := data.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	section := &imap.FetchItemBodySection{Peek: true}
	fetch := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:          true,
		Flags:        true,
		Envelope:     true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{section},
	})
	defer fetch.Close()

	var threads []mailbox.Thread
	for {
		m := fetch.Next()
		if m == nil {
			break
		}
		buf, err := m.Collect()
		if err != nil {
			return nil, fmt.Errorf("fetch message: %w", err)
		}
		msg := messageFromIMAP(uint32(buf.UID), buf.Flags, buf.Envelope, buf.InternalDate, buf.FindBodySection(section))
		threads = append(threads, mailbox.Thread{ID: msg.ThreadID, Subject: msg.Subject, Messages: []mailbox.Message{msg}})
	}
	if err := fetch.Close(); err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return threads, nil
}

// searchCriteria widens the query by a day: SINCE compares dates in the
// server's zone, so the boundary day stays in range wherever the server is.
func searchCriteria(q mailbox.Query) *imap.SearchCriteria {
	return &imap.SearchCriteria{Since: q.After.AddDate(0, 0, -1)}
}

func messageFromIMAP(uid uint32, flags []imap.Flag, env *imap.Envelope, received time.Time, raw []byte) mailbox.Message {
	id := strconv.FormatUint(uint64(uid), 10)
	msg := mailbox.Message{
		ID:       mailbox.MessageID(id),
		ThreadID: id,
		Date:     received,
		IsDraft:  slices.Contains(flags, imap.FlagDraft),
	}
	if env != nil {
		msg.Subject = env.Subject
		if msg.Date.IsZero() {
			msg.Date = env.Date
		}
		if len(env.From) > 0 {
			msg.From = formatAddress(env.From[0])
		}
	}
	plain, html := parseMIME(raw)
	msg.PlainBody = plain
	msg.Body = plain
	if html != "" {
		msg.Body = html
	}
	return msg
}

func formatAddress(a imap.Address) string {
	if a.Name == "" {
		return a.Addr()
	}
	return fmt.Sprintf("%s <%s>", a.Name, a.Addr())
}

// parseMIME returns the first inline text/plain and text/html parts.
// Unparseable input is treated as a plain-text body.
func parseMIME(raw []byte) (plain, html string) {
	if len(raw) == 0 {
		return "", ""
	}
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return string(raw), ""
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}
		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		switch {
		case strings.HasPrefix(ct, "text/plain") && plain == "":
			plain = string(body)
		case strings.HasPrefix(ct, "text/html") && html == "":
			html = string(body)
		}
	}
	return plain, html
}
