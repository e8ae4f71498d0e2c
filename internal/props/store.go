// Package props provides the string-keyed property stores that hold the
// webhook URL and the delivery watermark between runs.
package props

import (
	"context"
	"fmt"
	"strings"
)

// Well-known property keys.
const (
	KeyWebhookURL = "DISCORD_WEBHOOK_URL"
	KeyChecked    = "CHECKED"
)

// Store is a durable string-keyed property bag. Set must be persisted before
// it returns.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Backend is a Store that owns resources.
type Backend interface {
	Store
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Driver     string // sqlite, postgres, keyring, memory
	DSN        string
	KeyringDir string
}

// Open returns the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", DriverSQLite:
		dsn := opts.DSN
		if dsn == "" {
			dsn = "mailrelay.db"
		}
		return OpenSQL(ctx, DriverSQLite, dsn)
	case DriverPostgres:
		if opts.DSN == "" {
			return nil, fmt.Errorf("postgres store requires a dsn")
		}
		return OpenSQL(ctx, DriverPostgres, opts.DSN)
	case "keyring":
		return OpenKeyring(opts.KeyringDir)
	case "memory":
		return NewMemory(nil), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}
