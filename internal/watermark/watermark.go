// Package watermark persists the boundary between already-relayed and new
// messages.
package watermark

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joshsymonds/mailrelay/internal/mailbox"
	"github.com/joshsymonds/mailrelay/internal/props"
)

// DefaultEpochMillis is the watermark used before anything was relayed.
const DefaultEpochMillis int64 = 1680274800000

// Default returns the initial mark.
func Default() Mark {
	return Mark{Time: time.UnixMilli(DefaultEpochMillis).UTC()}
}

// Mark is the instant of the last confirmed delivery together with the IDs
// confirmed at exactly that instant, so ties are neither resent nor lost.
type Mark struct {
	Time time.Time
	IDs  []mailbox.MessageID
}

// Covers reports whether msg was already relayed according to m.
func (m Mark) Covers(msg mailbox.Message) bool {
	at := msg.Date.Truncate(time.Millisecond)
	switch {
	case at.Before(m.Time):
		return true
	case at.Equal(m.Time):
		return slices.Contains(m.IDs, msg.ID)
	default:
		return false
	}
}

// Advance returns the mark after msg was confirmed delivered. It never moves
// backwards.
func (m Mark) Advance(msg mailbox.Message) Mark {
	at := msg.Date.Truncate(time.Millisecond)
	switch {
	case at.After(m.Time):
		return Mark{Time: at.UTC(), IDs: []mailbox.MessageID{msg.ID}}
	case at.Equal(m.Time):
		if slices.Contains(m.IDs, msg.ID) {
			return m
		}
		ids := append(slices.Clone(m.IDs), msg.ID)
		return Mark{Time: m.Time, IDs: ids}
	default:
		return m
	}
}

// Store reads and writes the mark through a property store.
type Store struct {
	Props props.Store
}

func New(p props.Store) *Store { return &Store{Props: p} }

// Get returns the persisted mark, or Default when none was written yet.
func (s *Store) Get(ctx context.Context) (Mark, error) {
	raw, ok, err := s.Props.Get(ctx, props.KeyChecked)
	if err != nil {
		return Mark{}, fmt.Errorf("read %s: %w", props.KeyChecked, err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return Default(), nil
	}
	return Parse(raw)
}

// Set persists m as a single property so the instant and its IDs never
// diverge.
func (s *Store) Set(ctx context.Context, m Mark) error {
	if err := s.Props.Set(ctx, props.KeyChecked, m.String()); err != nil {
		return fmt.Errorf("write %s: %w", props.KeyChecked, err)
	}
	return nil
}

// String encodes m as "<unix millis>" or "<unix millis>;<id>,<id>".
func (m Mark) String() string {
	ms := strconv.FormatInt(m.Time.UnixMilli(), 10)
	if len(m.IDs) == 0 {
		return ms
	}
	parts := make([]string, len(m.IDs))
	for i, id := range m.IDs {
		parts[i] = string(id)
	}
	return ms + ";" + strings.Join(parts, ",")
}

// Parse decodes the String form. A bare millisecond value is accepted.
func Parse(raw string) (Mark, error) {
	msPart, idPart, _ := strings.Cut(strings.TrimSpace(raw), ";")
	ms, err := strconv.ParseInt(strings.TrimSpace(msPart), 10, 64)
	if err != nil {
		return Mark{}, fmt.Errorf("parse watermark %q: %w", raw, err)
	}
	mark := Mark{Time: time.UnixMilli(ms).UTC()}
	for _, part := range strings.Split(idPart, ",") {
		if part = strings.TrimSpace(part); part != "" {
			mark.IDs = append(mark.IDs, mailbox.MessageID(part))
		}
	}
	return mark, nil
}
