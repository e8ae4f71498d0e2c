package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joshsymonds/mailrelay/internal/config"
	"github.com/joshsymonds/mailrelay/internal/runtime"
	"github.com/joshsymonds/mailrelay/internal/server"
)

type serveConfig struct {
	configPath string
	listen     string
}

func main() {
	cfg := parseServeFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger(slog.LevelInfo).Error("mailrelay-serve failed", "error", err)
		os.Exit(1)
	}
}

func parseServeFlags() serveConfig {
	configPath := flag.String("config", "", "YAML config file (optional)")
	listen := flag.String("listen", "", "listen address, overrides server.listen")
	flag.Parse()
	return serveConfig{configPath: *configPath, listen: *listen}
}

func run(sc serveConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(sc.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	addr := cfg.Server.Listen
	if sc.listen != "" {
		addr = sc.listen
	}
	level, _ := cfg.LogLevel()
	logger := runtime.DefaultLogger(level)

	svc, store, err := runtime.NewRelay(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	return server.New(svc, cfg.Delivery.Format, logger).ListenAndServe(ctx, addr)
}
