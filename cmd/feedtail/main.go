// feedtail connects to a live room and streams decoded events to console.
// Usage: go run ./cmd/feedtail --config configs/feed.example.yaml
//
// The session key can come from the environment via ${...} expansion in the
// config file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yuronglin/bililive-feed/internal/config"
	"github.com/yuronglin/bililive-feed/internal/connection"
	"github.com/yuronglin/bililive-feed/internal/event"
	"github.com/yuronglin/bililive-feed/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/feed.example.yaml", "path to config file")
	roomID := flag.Uint64("room", 0, "room ID (overrides config)")
	verbose := flag.Bool("verbose", false, "print unrecognized payloads in full")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	if *roomID != 0 {
		cfg.Room.ID = *roomID
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting feedtail",
		"version", version.Version,
		"commit", version.Commit,
		"room_id", cfg.Room.ID,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	provider := connection.StaticProvider{P: connection.Params{
		Endpoints: cfg.Room.Endpoints,
		RoomID:    cfg.Room.ID,
		UID:       cfg.Room.UID,
		Key:       cfg.Room.Key,
	}}

	sup := connection.NewSupervisor(connection.Config{
		EventBuffer:        cfg.Connection.EventBuffer,
		HeartbeatInterval:  cfg.Connection.HeartbeatInterval,
		HandshakeTimeout:   cfg.Connection.HandshakeTimeout,
		ReconnectBaseDelay: cfg.Connection.ReconnectBaseDelay,
		ReconnectMaxDelay:  cfg.Connection.ReconnectMaxDelay,
		StableReset:        cfg.Connection.StableReset,
	}, provider, logger)

	sup.Start(ctx)

	go func() {
		for st := range sup.Status() {
			if st.Err != nil {
				logger.Warn("session state", "state", st.State, "error", st.Err)
			} else {
				logger.Debug("session state", "state", st.State, "online", st.Online)
			}
		}
	}()

	for ev := range sup.Events() {
		printEvent(ev, *verbose)
	}

	sup.Stop()
	logger.Info("feedtail stopped")
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func printEvent(ev event.ServerEvent, verbose bool) {
	n, ok := ev.(event.Notification)
	if !ok {
		return
	}

	switch p := n.Payload.(type) {
	case event.Danmu:
		when := time.UnixMilli(p.SentAt).Format(time.TimeOnly)
		fmt.Printf("%s <%s> %s\n", when, p.Uname, p.Text)
	case event.Gift:
		fmt.Printf("gift: %s x%d from %s\n", p.GiftName, p.Num, p.Uname)
	case event.ComboGift:
		fmt.Printf("combo: %s x%d from %s\n", p.GiftName, p.TotalNum, p.Uname)
	case event.GuardBuy:
		fmt.Printf("guard: %s bought %s x%d\n", p.Username, p.GiftName, p.Num)
	case event.Interact:
		fmt.Printf("enter: %s\n", p.Uname)
	case event.WatchedChange:
		fmt.Printf("watched: %d\n", p.Num)
	case event.LiveStart:
		fmt.Printf("live started in room %d\n", p.RoomID)
	case event.LivePrepare:
		fmt.Printf("live ended in room %s\n", p.RoomID)
	case event.Unknown:
		if verbose {
			fmt.Printf("unknown %s: %s\n", p.Name, p.Raw)
		}
	case event.Signal:
		if verbose {
			fmt.Printf("signal: %s\n", p.Name)
		}
	}
}
