// internal/runtime/auth.go
package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/joshsymonds/mailrelay/internal/mailbox"
)

// ErrNoToken means the Gmail token file has not been created yet.
var ErrNoToken = errors.New("gmail token missing; run mailrelay-auth first")

// GmailConfig locates the OAuth client secret and the cached token.
type GmailConfig struct {
	Credentials string
	Token       string
	User        string
}

func oauthConfig(path string) (*oauth2.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read client secret: %w", err)
	}
	cfg, err := google.ConfigFromJSON(b, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse client secret: %w", err)
	}
	return cfg, nil
}

// NewGmailClient builds a read-only Gmail mailbox from a stored token.
func NewGmailClient(ctx context.Context, cfg GmailConfig) (mailbox.Client, error) {
	oc, err := oauthConfig(cfg.Credentials)
	if err != nil {
		return nil, err
	}
	tok, err := loadToken(cfg.Token)
	if err != nil {
		return nil, err
	}
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(oc.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return NewGoogleAPIClient(svc, cfg.User), nil
}

// Authorize runs the offline consent flow: it prints the consent URL to out,
// reads the code from in and stores the token.
func Authorize(ctx context.Context, cfg GmailConfig, in io.Reader, out io.Writer) error {
	oc, err := oauthConfig(cfg.Credentials)
	if err != nil {
		return err
	}
	authURL := oc.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Fprintf(out, "Open this link, approve access, then paste the authorization code:\n%s\n", authURL)
	var code string
	if _, err := fmt.Fscan(in, &code); err != nil {
		return fmt.Errorf("read authorization code: %w", err)
	}
	tok, err := oc.Exchange(ctx, strings.TrimSpace(code))
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	return saveToken(cfg.Token, tok)
}

func loadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("open token: %w", err)
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	return nil
}

func DefaultLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
