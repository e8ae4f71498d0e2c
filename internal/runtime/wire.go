// internal/runtime/wire.go: builds the relay from configuration
package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joshsymonds/mailrelay/internal/config"
	"github.com/joshsymonds/mailrelay/internal/discord"
	"github.com/joshsymonds/mailrelay/internal/mailbox"
	"github.com/joshsymonds/mailrelay/internal/props"
	"github.com/joshsymonds/mailrelay/internal/rate"
	"github.com/joshsymonds/mailrelay/internal/relay"
)

func OpenProps(ctx context.Context, cfg *config.Config) (props.Backend, error) {
	return props.Open(ctx, props.Options{
		Driver:     cfg.Store.Driver,
		DSN:        cfg.Store.DSN,
		KeyringDir: cfg.Store.KeyringDir,
	})
}

func NewMailbox(ctx context.Context, cfg *config.Config) (mailbox.Client, error) {
	switch cfg.Mailbox.Backend {
	case "gmail":
		return NewGmailClient(ctx, GmailConfig{
			Credentials: cfg.Gmail.Credentials,
			Token:       cfg.Gmail.Token,
			User:        cfg.Gmail.User,
		})
	case "imap":
		return NewIMAPClient(IMAPConfig{
			Host:     cfg.IMAP.Host,
			Port:     cfg.IMAP.Port,
			Username: cfg.IMAP.Username,
			Password: cfg.IMAP.Password,
			TLS:      cfg.IMAP.TLS,
			Mailbox:  cfg.IMAP.Mailbox,
		}), nil
	default:
		return nil, fmt.Errorf("unknown mailbox backend %q", cfg.Mailbox.Backend)
	}
}

// NewRelay wires a relay.Service. The caller owns the returned backend.
func NewRelay(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*relay.Service, props.Backend, error) {
	store, err := OpenProps(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open property store: %w", err)
	}
	mb, err := NewMailbox(ctx, cfg)
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("create mailbox: %w", err)
	}

	var limiter rate.Limiter = rate.None{}
	if cfg.Delivery.Interval > 0 {
		limiter = rate.NewInterval(cfg.Delivery.Interval)
	}

	svc := relay.NewService(mb, store, discord.NewClient(cfg.Delivery.Timeout), limiter, logger)
	svc.Location = cfg.TimeZone()
	svc.WebhookURL = cfg.WebhookURL
	svc.Wait = cfg.WaitParam()
	svc.ThreadID = cfg.Delivery.ThreadID
	return svc, store, nil
}
