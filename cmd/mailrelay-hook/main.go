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
	"github.com/joshsymonds/mailrelay/internal/format"
	"github.com/joshsymonds/mailrelay/internal/relay"
	"github.com/joshsymonds/mailrelay/internal/runtime"
)

type hookConfig struct {
	configPath string
	format     string
}

func main() {
	cfg := parseHookFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger(slog.LevelInfo).Error("mailrelay-hook failed", "error", err)
		os.Exit(1)
	}
}

func parseHookFlags() hookConfig {
	configPath := flag.String("config", "", "YAML config file (optional)")
	formatName := flag.String("format", "", "payload strategy, overrides delivery.format")
	flag.Parse()
	return hookConfig{configPath: *configPath, format: *formatName}
}

func run(hc hookConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(hc.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	name := cfg.Delivery.Format
	if hc.format != "" {
		name = hc.format
	}
	f, err := format.Lookup(name)
	if err != nil {
		return err
	}
	level, _ := cfg.LogLevel()
	logger := runtime.DefaultLogger(level)

	svc, store, err := runtime.NewRelay(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := svc.Run(ctx, relay.Options{Formatter: f})
	if err != nil {
		return fmt.Errorf("run %s: %w", res.RunID, err)
	}
	logger.Info("run complete",
		slog.String("run_id", res.RunID),
		slog.Int("threads", res.Threads),
		slog.Int("sent", len(res.Outcomes)),
		slog.Time("watermark", res.Watermark),
	)
	return nil
}
