// Package normalize turns raw mail bodies into display text by removing the
// quoted previous messages that mail clients append to replies.
package normalize

import (
	"strings"

	"github.com/joshsymonds/mailrelay/internal/mailbox"
)

// Body returns the cleaned plain text of msg. It never fails; malformed
// markup degrades to whatever text can be recovered.
func Body(msg mailbox.Message) string {
	if msg.IsPlainText() {
		return StripPlainQuotes(msg.Body)
	}
	return StripHTMLQuotes(msg.Body)
}

// StripPlainQuotes removes every run of two or more consecutive "> " lines
// that follows other text. Blank lines between quoted lines belong to the
// run. A single quoted line is kept since it is usually an inline citation
// rather than reply chrome, and so is a run opening the body.
func StripPlainQuotes(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); {
		if !isQuoted(lines[i]) {
			out = append(out, lines[i])
			i++
			continue
		}
		quoted, end := 0, i
		for j := i; j < len(lines) && (isQuoted(lines[j]) || strings.TrimSpace(lines[j]) == ""); j++ {
			if isQuoted(lines[j]) {
				quoted++
				end = j + 1
			}
		}
		if quoted < 2 || i == 0 {
			out = append(out, lines[i:end]...)
		}
		i = end
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func isQuoted(line string) bool {
	return strings.HasPrefix(strings.TrimLeft(line, " \t"), ">")
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
