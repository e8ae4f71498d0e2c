// internal/relay/service.go
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joshsymonds/mailrelay/internal/discord"
	"github.com/joshsymonds/mailrelay/internal/format"
	"github.com/joshsymonds/mailrelay/internal/mailbox"
	"github.com/joshsymonds/mailrelay/internal/normalize"
	"github.com/joshsymonds/mailrelay/internal/props"
	"github.com/joshsymonds/mailrelay/internal/rate"
	"github.com/joshsymonds/mailrelay/internal/watermark"
)

// Webhook posts one payload.
type Webhook interface {
	Execute(ctx context.Context, webhookURL string, p discord.ExecuteWebhook) (discord.Response, error)
}

// Watermarks persists the relay boundary.
type Watermarks interface {
	Get(ctx context.Context) (watermark.Mark, error)
	Set(ctx context.Context, m watermark.Mark) error
}

// Options are per-run overrides.
type Options struct {
	Formatter format.Formatter // nil means format.Default
}

type State string

const (
	StateIdle   State = "idle"
	StateFailed State = "failed"
)

// Outcome records one delivery attempt.
type Outcome struct {
	MessageID mailbox.MessageID `json:"message_id"`
	Date      time.Time         `json:"date"`
	Status    int               `json:"status"`
	Sent      bool              `json:"sent"`
}

// Result summarizes a run.
type Result struct {
	RunID     string    `json:"run_id"`
	State     State     `json:"state"`
	Threads   int       `json:"threads"`
	Messages  int       `json:"messages"`
	Pending   int       `json:"pending"`
	Outcomes  []Outcome `json:"outcomes"`
	Watermark time.Time `json:"watermark"`
}

// ScanResult is what the change detector found.
type ScanResult struct {
	Threads  int
	Messages int
	Pending  []mailbox.Message // scan order
}

// Service relays new mailbox messages to a webhook.
type Service struct {
	Mailbox    mailbox.Client
	Props      props.Store
	Watermarks Watermarks
	Webhook    Webhook
	Limiter    rate.Limiter
	Logger     *slog.Logger
	Normalize  func(mailbox.Message) string
	Location   *time.Location // day boundary for mailbox queries

	// WebhookURL takes precedence over the DISCORD_WEBHOOK_URL property.
	WebhookURL string
	// Wait and ThreadID are applied to payloads that leave them unset.
	Wait     *bool
	ThreadID string

	running sync.Mutex
}

// NewService constructs a Service with sane defaults.
func NewService(
	mb mailbox.Client,
	store props.Store,
	webhook Webhook,
	limiter rate.Limiter,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if limiter == nil {
		limiter = rate.None{}
	}
	return &Service{
		Mailbox:    mb,
		Props:      store,
		Watermarks: watermark.New(store),
		Webhook:    webhook,
		Limiter:    limiter,
		Logger:     logger,
		Normalize:  normalize.Body,
		Location:   time.Local,
	}
}

// Run performs one IDLE → SCANNING → DELIVERING → IDLE/FAILED cycle.
func (s *Service) Run(ctx context.Context, opts Options) (Result, error) {
	if !s.running.TryLock() {
		return Result{State: StateIdle}, ErrRunInProgress
	}
	defer s.running.Unlock()

	res := Result{RunID: uuid.NewString(), State: StateIdle}
	log := s.logger().With(slog.String("run_id", res.RunID))

	webhookURL, err := s.resolveWebhook(ctx)
	if err != nil {
		res.State = StateFailed
		return res, err
	}

	mark, err := s.Watermarks.Get(ctx)
	if err != nil {
		res.State = StateFailed
		return res, &PersistenceError{Op: "read watermark", Err: err}
	}
	res.Watermark = mark.Time

	scan, err := s.scan(ctx, log, mark)
	res.Threads, res.Messages, res.Pending = scan.Threads, scan.Messages, len(scan.Pending)
	if err != nil {
		res.State = StateFailed
		return res, err
	}

	outcomes, mark, err := s.deliver(ctx, log, webhookURL, mark, scan.Pending, opts.Formatter)
	res.Outcomes = outcomes
	res.Watermark = mark.Time
	if err != nil {
		res.State = StateFailed
		return res, err
	}
	return res, nil
}

// Scan returns the messages newer than mark that are not drafts.
func (s *Service) Scan(ctx context.Context, mark watermark.Mark) (ScanResult, error) {
	return s.scan(ctx, s.logger(), mark)
}

func (s *Service) scan(ctx context.Context, log *slog.Logger, mark watermark.Mark) (ScanResult, error) {
	q := mailbox.QueryAfter(mark.Time, s.Location)
	threads, err := s.Mailbox.Search(ctx, q)
	if err != nil {
		return ScanResult{}, fmt.Errorf("search mailbox: %w", err)
	}
	res := ScanResult{Threads: len(threads)}
	if len(threads) == 0 {
		log.InfoContext(ctx, "no messages", slog.Time("after", q.After))
		return res, nil
	}
	log.InfoContext(ctx, "checking threads", slog.Int("count", len(threads)))

	for _, th := range threads {
		log.DebugContext(ctx, "check thread", slog.String("subject", th.Subject))
		for _, msg := range th.Messages {
			res.Messages++
			switch {
			case msg.IsDraft:
				log.InfoContext(ctx, "[SKIP][DRAFT]", slog.String("message", msg.Preview()))
			case mark.Covers(msg):
				log.DebugContext(ctx, "[SKIP]", slog.String("message", msg.Preview()))
			default:
				log.InfoContext(ctx, "[NEW]", slog.String("message", msg.Preview()))
				res.Pending = append(res.Pending, msg)
			}
		}
	}
	log.InfoContext(ctx, "send messages", slog.Int("count", len(res.Pending)))
	return res, nil
}

// Deliver sends pending in chronological order, persisting the advanced
// watermark after every confirmed delivery. It stops at the first failure
// and returns the mark as last persisted.
func (s *Service) Deliver(
	ctx context.Context,
	webhookURL string,
	mark watermark.Mark,
	pending []mailbox.Message,
	f format.Formatter,
) ([]Outcome, watermark.Mark, error) {
	return s.deliver(ctx, s.logger(), webhookURL, mark, pending, f)
}

func (s *Service) deliver(
	ctx context.Context,
	log *slog.Logger,
	webhookURL string,
	mark watermark.Mark,
	pending []mailbox.Message,
	f format.Formatter,
) ([]Outcome, watermark.Mark, error) {
	if len(pending) == 0 {
		return nil, mark, nil
	}
	if f == nil {
		f = format.Default
	}
	clean := s.Normalize
	if clean == nil {
		clean = normalize.Body
	}
	limiter := s.Limiter
	if limiter == nil {
		limiter = rate.None{}
	}

	ordered := slices.Clone(pending)
	slices.SortStableFunc(ordered, func(a, b mailbox.Message) int { return a.Date.Compare(b.Date) })

	outcomes := make([]Outcome, 0, len(ordered))
	for i, msg := range ordered {
		tag := fmt.Sprintf("[%d/%d]", i+1, len(ordered))
		if err := limiter.Wait(ctx); err != nil {
			return outcomes, mark, fmt.Errorf("pace deliveries: %w", err)
		}

		payload := f.Format(msg, clean(msg))
		s.applyDefaults(&payload)

		res, err := s.Webhook.Execute(ctx, webhookURL, payload)
		if err != nil {
			outcomes = append(outcomes, Outcome{MessageID: msg.ID, Date: msg.Date, Status: res.Status})
			derr := &DeliveryError{MessageID: msg.ID, Status: res.Status, Err: err}
			var se *discord.StatusError
			if errors.As(err, &se) {
				derr.Body = se.Body
			}
			log.ErrorContext(ctx, tag+"[ERROR]",
				slog.Int("status", res.Status),
				slog.String("message", msg.Preview()),
				slog.String("body", derr.Body),
				slog.Any("error", err),
			)
			return outcomes, mark, derr
		}
		outcomes = append(outcomes, Outcome{MessageID: msg.ID, Date: msg.Date, Status: res.Status, Sent: true})

		// The post is confirmed; cancellation must not drop its watermark.
		next := mark.Advance(msg)
		if err := s.Watermarks.Set(context.WithoutCancel(ctx), next); err != nil {
			return outcomes, mark, &PersistenceError{Op: "write watermark", Err: err}
		}
		mark = next
		log.InfoContext(ctx, tag+"[SENT]", slog.String("message", msg.Preview()), slog.Int("status", res.Status))
	}
	return outcomes, mark, nil
}

func (s *Service) applyDefaults(p *discord.ExecuteWebhook) {
	if p.Wait == nil && s.Wait != nil {
		wait := *s.Wait
		p.Wait = &wait
	}
	if p.ThreadID == "" {
		p.ThreadID = s.ThreadID
	}
}

func (s *Service) resolveWebhook(ctx context.Context) (string, error) {
	raw := strings.TrimSpace(s.WebhookURL)
	if raw == "" && s.Props != nil {
		v, _, err := s.Props.Get(ctx, props.KeyWebhookURL)
		if err != nil {
			return "", &PersistenceError{Op: "read webhook url", Err: err}
		}
		raw = strings.TrimSpace(v)
	}
	if raw == "" {
		return "", fmt.Errorf("%w: %s is not set", ErrConfiguration, props.KeyWebhookURL)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %s is not an absolute http(s) url", ErrConfiguration, props.KeyWebhookURL)
	}
	return raw, nil
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return s.Logger
}
