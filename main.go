package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/john/chattui/internal/backoff"
	"github.com/john/chattui/internal/config"
	"github.com/john/chattui/internal/health"
	"github.com/john/chattui/internal/logger"
	"github.com/john/chattui/internal/message"
	"github.com/john/chattui/internal/metrics"
	"github.com/john/chattui/internal/recorder"
	"github.com/john/chattui/internal/render"
	"github.com/john/chattui/internal/scrollback"
	"github.com/john/chattui/internal/transport"
	"github.com/john/chattui/internal/twitch"
	"github.com/john/chattui/internal/ui"
)

const (
	shutdownTimeout = 30 * time.Second
	dialTimeout     = 15 * time.Second
)

func main() {
	os.Exit(run())
}

func run() int {
	// Get config path from environment variable or use default
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = config.DefaultPath
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chattui: failed to load config: %v\n", err)
		return 1
	}

	// Warnings go to the status bar as well as the log file.
	notices := ui.NewNoticeHandler(slog.LevelWarn)
	lg := logger.New(logger.Options{
		File:       cfg.Log.File,
		Level:      cfg.Log.Level,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	}, notices)
	defer lg.Close()

	lg.Info("Chattui starting", slog.String("config", configPath), slog.String("channel", cfg.Channel))

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	dialer, err := transport.New(transport.Endpoint{
		Kind:    cfg.Endpoint.Transport,
		Address: cfg.Endpoint.Address,
		TLS:     cfg.Endpoint.TLS,
		URL:     cfg.Endpoint.URL,

		DialTimeout: dialTimeout,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "chattui: %v\n", err)
		return 1
	}

	buffer := scrollback.New(cfg.Scrollback)
	rec := recorder.New(message.NewClassifier(cfg.Channel, cfg.PaletteColors()), buffer, m, lg.Logger)

	session := twitch.New(twitch.Config{
		Channel:           cfg.Channel,
		Username:          cfg.Identity.Username,
		OAuth:             cfg.Identity.OAuth,
		CapabilityTimeout: cfg.Session.CapabilityTimeout,
		JoinTimeout:       cfg.Session.JoinTimeout,
		PingInterval:      cfg.Session.PingInterval,
		PongTimeout:       cfg.Session.PongTimeout,
		Backoff: backoff.Policy{
			Base:   cfg.Session.Backoff.Base,
			Max:    cfg.Session.Backoff.Max,
			Jitter: cfg.Session.Backoff.Jitter,
		},
	}, dialer, rec, twitch.WithLogger(lg.Logger), twitch.WithMetrics(m))

	renderer := render.New(render.Options{
		Icons:       badgeIcons(cfg.Icons),
		InvertBelow: cfg.Palette.InvertBelowBrightness,
		Timestamps:  cfg.Render.Timestamps,
	})
	model := ui.New(renderer, buffer.Snapshot, session.State, ui.Options{
		Channel: session.Channel(),
		Tick:    cfg.Render.Tick,
		Notices: notices,
	})
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithoutSignalHandler())

	// Setup context and signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var wg sync.WaitGroup
	sessionErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		err := session.Run(ctx)
		sessionErr <- err
		program.Send(ui.SessionEndedMsg{Err: err})
	}()

	var statusServer *health.Server
	if cfg.Status.Addr != "" {
		statusServer = health.New(cfg.Status.Addr, session.State, reg, lg.Logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := statusServer.Start(); err != nil {
				lg.Error("Status server error", slog.String("error", err.Error()))
			}
		}()
	}

	go func() {
		select {
		case <-sigChan:
			lg.Info("Shutdown signal received")
			program.Quit()
		case <-ctx.Done():
		}
	}()

	if _, err := program.Run(); err != nil {
		lg.Error("Terminal program error", slog.String("error", err.Error()))
	}

	lg.Info("Shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if statusServer != nil {
		if err := statusServer.Shutdown(shutdownCtx); err != nil {
			lg.Error("Error shutting down status server", slog.String("error", err.Error()))
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		lg.Info("All components stopped gracefully")
	case <-shutdownCtx.Done():
		lg.Warn("Shutdown timeout exceeded, forcing exit")
		return 1
	}

	// The terminal is restored by now, so a fatal error can be printed.
	if err := <-sessionErr; err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "chattui: %v\n", err)
		return 1
	}
	return 0
}

func badgeIcons(c config.IconsConfig) map[message.Badge]render.Icon {
	icon := func(ic config.IconConfig) render.Icon {
		return render.Icon{Symbol: ic.Symbol, Width: ic.Width}
	}
	return map[message.Badge]render.Icon{
		message.BadgeFounder:    icon(c.Founder),
		message.BadgeModerator:  icon(c.Moderator),
		message.BadgeVIP:        icon(c.VIP),
		message.BadgeSubscriber: icon(c.Subscriber),
	}
}
