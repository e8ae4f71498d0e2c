// Package format maps relayed messages onto webhook payloads.
package format

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/joshsymonds/mailrelay/internal/discord"
	"github.com/joshsymonds/mailrelay/internal/mailbox"
	"github.com/joshsymonds/mailrelay/internal/normalize"
)

// DescriptionLimit caps the embed description of the default strategy.
const DescriptionLimit = 2048

// isoMillis matches JavaScript's Date.toISOString, which Discord accepts.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// Formatter builds the payload for one message from its cleaned body.
// Implementations must be pure.
type Formatter interface {
	Format(msg mailbox.Message, body string) discord.ExecuteWebhook
}

// Func adapts a function to Formatter.
type Func func(msg mailbox.Message, body string) discord.ExecuteWebhook

func (f Func) Format(msg mailbox.Message, body string) discord.ExecuteWebhook { return f(msg, body) }

// Default renders one embed: subject as title, sender as author, the
// message time and the body as description.
var Default Formatter = Func(func(msg mailbox.Message, body string) discord.ExecuteWebhook {
	return discord.ExecuteWebhook{
		Content: "",
		Embeds: []discord.Embed{{
			Title:       normalize.Truncate(msg.Subject, discord.MaxEmbedTitle),
			Author:      &discord.EmbedAuthor{Name: normalize.Truncate(msg.From, discord.MaxEmbedAuthorName)},
			Timestamp:   Timestamp(msg.Date),
			Description: normalize.Truncate(body, DescriptionLimit),
		}},
	}
})

// Content renders a plain chat message without embeds, with a link button
// to the message when the mailbox provides one. Mentions are disabled so
// mail text cannot ping the channel.
var Content Formatter = Func(func(msg mailbox.Message, body string) discord.ExecuteWebhook {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\nFrom: %s\n", strings.TrimSpace(msg.Subject), strings.TrimSpace(msg.From))
	if body != "" {
		b.WriteString("\n")
		b.WriteString(body)
	}
	p := discord.ExecuteWebhook{
		Content:         normalize.Truncate(b.String(), discord.MaxContentLength),
		AllowedMentions: discord.NoMentions(),
	}
	if msg.Link != "" {
		p.Components = []discord.ActionRow{discord.LinkRow(discord.Button{Label: "Open message", URL: msg.Link})}
	}
	return p
})

// Timestamp formats t the way Discord embeds expect.
func Timestamp(t time.Time) string {
	return t.UTC().Format(isoMillis)
}

var registry = map[string]Formatter{
	"default": Default,
	"embed":   Default,
	"content": Content,
}

// Lookup resolves a strategy by name; the empty name is the default.
func Lookup(name string) (Formatter, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Default, nil
	}
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown format %q (want one of %s)", name, strings.Join(Names(), ", "))
	}
	return f, nil
}

// Names lists the registered strategy names.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
