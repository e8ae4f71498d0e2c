package rate

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Limiter gates outbound webhook calls so we respect endpoint rate limits.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Interval releases at most one caller per period. The first call proceeds
// immediately; later calls block until period has elapsed since the previous
// release.
type Interval struct {
	period time.Duration
	now    func() time.Time

	mu   sync.Mutex
	next time.Time
}

// NewInterval returns a limiter spacing releases period apart.
func NewInterval(period time.Duration) *Interval {
	return &Interval{period: period, now: time.Now}
}

// Wait blocks until the next slot or until ctx is canceled. A canceled wait
// does not consume the slot.
func (l *Interval) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if delay := l.next.Sub(l.now()); delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return fmt.Errorf("rate wait canceled: %w", ctx.Err())
		case <-timer.C:
		}
	}
	l.next = l.now().Add(l.period)
	return nil
}

// Period returns the configured spacing.
func (l *Interval) Period() time.Duration { return l.period }

// None never blocks.
type None struct{}

func (None) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("rate wait canceled: %w", err)
	}
	return nil
}

var (
	_ Limiter = (*Interval)(nil)
	_ Limiter = None{}
)
