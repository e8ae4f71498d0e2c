package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joshsymonds/mailrelay/internal/config"
	"github.com/joshsymonds/mailrelay/internal/runtime"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (optional)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		runtime.DefaultLogger(slog.LevelInfo).Error("mailrelay-auth failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gc := runtime.GmailConfig{Credentials: cfg.Gmail.Credentials, Token: cfg.Gmail.Token, User: cfg.Gmail.User}
	if err := runtime.Authorize(context.Background(), gc, os.Stdin, os.Stdout); err != nil {
		return err
	}
	fmt.Printf("token saved to %s\n", cfg.Gmail.Token)
	return nil
}
