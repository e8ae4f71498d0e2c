package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joshsymonds/mailrelay/internal/config"
	"github.com/joshsymonds/mailrelay/internal/props"
	"github.com/joshsymonds/mailrelay/internal/runtime"
	"github.com/joshsymonds/mailrelay/internal/watermark"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (optional)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: mailrelay-props [-config file] get KEY | set KEY VALUE\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(*configPath, flag.Args()); err != nil {
		runtime.DefaultLogger(slog.LevelInfo).Error("mailrelay-props failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, args []string) error {
	ctx := context.Background()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store, err := runtime.OpenProps(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open property store: %w", err)
	}
	defer store.Close()

	switch {
	case len(args) == 2 && args[0] == "get":
		v, ok, err := store.Get(ctx, args[1])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s is not set", args[1])
		}
		fmt.Println(v)
		return nil
	case len(args) == 3 && args[0] == "set":
		if args[1] == props.KeyChecked {
			if _, err := watermark.Parse(args[2]); err != nil {
				return err
			}
		}
		return store.Set(ctx, args[1], args[2])
	default:
		flag.Usage()
		return fmt.Errorf("expected get KEY or set KEY VALUE")
	}
}
