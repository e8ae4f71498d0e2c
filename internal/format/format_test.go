package format

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshsymonds/mailrelay/internal/discord"
	"github.com/joshsymonds/mailrelay/internal/mailbox"
)

func sample() mailbox.Message {
	return mailbox.Message{
		ID:      "m1",
		Date:    time.Date(2024, time.May, 1, 18, 30, 0, 250_000_000, time.FixedZone("JST", 9*60*60)),
		From:    "Alice <alice@example.com>",
		Subject: "Quarterly numbers",
	}
}

func TestDefault(t *testing.T) {
	p := Default.Format(sample(), "see attached")
	assert.Empty(t, p.Content)
	require.Len(t, p.Embeds, 1)
	e := p.Embeds[0]
	assert.Equal(t, "Quarterly numbers", e.Title)
	assert.Equal(t, &discord.EmbedAuthor{Name: "Alice <alice@example.com>"}, e.Author)
	assert.Equal(t, "2024-05-01T09:30:00.250Z", e.Timestamp)
	assert.Equal(t, "see attached", e.Description)
	assert.Empty(t, p.Files)
}

func TestDefaultTruncates(t *testing.T) {
	msg := sample()
	msg.Subject = strings.Repeat("s", 300)
	body := strings.Repeat("é", 3000)

	e := Default.Format(msg, body).Embeds[0]
	assert.Equal(t, DescriptionLimit, utf8.RuneCountInString(e.Description))
	assert.Equal(t, discord.MaxEmbedTitle, utf8.RuneCountInString(e.Title))
}

func TestContent(t *testing.T) {
	p := Content.Format(sample(), "hello @everyone")
	assert.Empty(t, p.Embeds)
	assert.Equal(t, "**Quarterly numbers**\nFrom: Alice <alice@example.com>\n\nhello @everyone", p.Content)
	require.NotNil(t, p.AllowedMentions)
	assert.Empty(t, p.AllowedMentions.Parse)

	assert.Empty(t, p.Components)

	long := Content.Format(sample(), strings.Repeat("x", 5000))
	assert.Equal(t, discord.MaxContentLength, utf8.RuneCountInString(long.Content))
}

func TestContentLinkButton(t *testing.T) {
	msg := sample()
	msg.Link = "https://mail.google.com/mail/u/0/#all/18e9"

	p := Content.Format(msg, "hi")
	require.Len(t, p.Components, 1)
	row := p.Components[0]
	assert.Equal(t, discord.ComponentActionRow, row.Type)
	require.Len(t, row.Components, 1)
	assert.Equal(t, discord.ButtonLink, row.Components[0].Style)
	assert.Equal(t, msg.Link, row.Components[0].URL)

	assert.Empty(t, Default.Format(msg, "hi").Components)
}

func TestFuncAdapter(t *testing.T) {
	var f Formatter = Func(func(msg mailbox.Message, body string) discord.ExecuteWebhook {
		return discord.ExecuteWebhook{Content: string(msg.ID) + ":" + body}
	})
	assert.Equal(t, "m1:x", f.Format(sample(), "x").Content)
}

func TestLookup(t *testing.T) {
	for _, name := range []string{"", "default", "EMBED", " content "} {
		f, err := Lookup(name)
		require.NoError(t, err, name)
		require.NotNil(t, f)
	}
	_, err := Lookup("xml")
	require.ErrorContains(t, err, "unknown format")
	assert.Equal(t, []string{"content", "default", "embed"}, Names())
}
