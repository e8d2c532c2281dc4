// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/wingedpig/bridge/internal/bridge"
	"github.com/wingedpig/bridge/internal/config"
	"github.com/wingedpig/bridge/internal/cronsvc"
	"github.com/wingedpig/bridge/internal/driver"
	"github.com/wingedpig/bridge/internal/events"
	"github.com/wingedpig/bridge/internal/lane"
	"github.com/wingedpig/bridge/internal/manifest"
	"github.com/wingedpig/bridge/internal/modelalias"
	"github.com/wingedpig/bridge/internal/resume"
	"github.com/wingedpig/bridge/internal/sessionlog"
	"github.com/wingedpig/bridge/internal/sessionstore"
	"github.com/wingedpig/bridge/internal/statusapi"
	"github.com/wingedpig/bridge/internal/subagent"
	"github.com/wingedpig/bridge/internal/telegram"
	"github.com/wingedpig/bridge/internal/transport"
)

var version = "0.1"

func main() {
	var (
		configPath  string
		host        string
		port        int
		showVersion bool
		debug       bool
		console     bool
	)

	flag.StringVar(&configPath, "config", "", "Path to config file (default: auto-detect)")
	flag.StringVar(&configPath, "c", "", "Path to config file (short)")
	flag.StringVar(&host, "host", "", "Status API host (overrides config)")
	flag.IntVar(&port, "port", 0, "Status API port (overrides config)")
	flag.BoolVar(&showVersion, "version", false, "Show version")
	flag.BoolVar(&showVersion, "v", false, "Show version (short)")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&console, "console", false, "Use the stdin/stdout console transport instead of Telegram")
	flag.Parse()

	if showVersion {
		fmt.Printf("bridge %s\n", version)
		os.Exit(0)
	}

	if configPath == "" {
		loader := config.NewLoader()
		found, err := loader.FindConfig()
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		configPath = found
	}
	log.Printf("Using config: %s", configPath)

	loader := config.NewLoader()
	cfg, err := loader.LoadWithDefaults(context.Background(), configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := config.NewValidator().Validate(cfg); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	if host != "" {
		cfg.Server.Host = host
	}
	if port > 0 {
		cfg.Server.Port = port
	}
	if debug {
		cfg.Logging.Level = "debug"
	}

	if err := run(context.Background(), cfg, console); err != nil {
		log.Fatalf("bridge error: %v", err)
	}
}

// run wires every collaborator and blocks until a shutdown signal
// arrives, grounded on internal/app/app.go's Run/Shutdown lifecycle.
func run(ctx context.Context, cfg *config.Config, console bool) error {
	manifests := manifest.NewRegistry()
	if err := manifests.LoadDir(cfg.Agents.ManifestDir); err != nil {
		return fmt.Errorf("load manifests: %w", err)
	}
	drivers := driver.NewRegistry(manifests)

	stateDir := cfg.Sessions.StateDir
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	resumeStore, err := resume.Open(filepath.Join(stateDir, "resume-tokens.json"))
	if err != nil {
		return fmt.Errorf("open resume store: %w", err)
	}

	sessionLog, err := sessionlog.New(filepath.Join(stateDir, "sessions"))
	if err != nil {
		return fmt.Errorf("open session log: %w", err)
	}

	sessions := sessionstore.New()

	subagents := subagent.New()
	snapshotPath := filepath.Join(stateDir, "subagents.json")
	if err := subagents.LoadSnapshot(snapshotPath); err != nil {
		log.Printf("subagent snapshot load: %v", err)
	}

	lanes := lane.New(lane.DefaultWidths)

	historyMaxAge, err := time.ParseDuration(cfg.Events.History.MaxAge)
	if err != nil {
		return fmt.Errorf("parse events.history.max_age: %w", err)
	}
	bus := events.NewMemoryEventBus(events.MemoryBusConfig{
		HistoryMaxEvents: cfg.Events.History.MaxEvents,
		HistoryMaxAge:    historyMaxAge,
	})
	defer bus.Close()

	models := modelalias.New()
	for _, m := range cfg.Models {
		models.Register(m.Alias, m.Model)
	}

	cronStore, err := cronsvc.OpenStore(filepath.Join(stateDir, "cron.json"))
	if err != nil {
		return fmt.Errorf("open cron store: %w", err)
	}

	checkInterval, err := time.ParseDuration(cfg.Cron.CheckInterval)
	if err != nil {
		return fmt.Errorf("parse cron.check_interval: %w", err)
	}

	var sink transport.OutboundSink
	var inbound <-chan transport.InboundMessage
	var tgBot *telegram.Bot
	var consoleTransport *transport.Console

	if console {
		consoleTransport = transport.NewConsole("console")
		sink = consoleTransport
	} else {
		tgBot, err = telegram.New(cfg.Telegram.Token, telegram.WithAllowedUsers(cfg.Telegram.AllowedUserIDs))
		if err != nil {
			return fmt.Errorf("create telegram bot: %w", err)
		}
		sink = tgBot
		inbound = tgBot.Inbound()
	}

	cron := cronsvc.NewService(cronsvc.Config{
		Store:         cronStore,
		Bus:           bus,
		RunsDir:       filepath.Join(stateDir, "cron-runs"),
		PrimaryChatID: "",
		CheckInterval: checkInterval,
	})
	if err := cron.Recover(ctx); err != nil {
		log.Printf("cron recover: %v", err)
	}

	controller := bridge.New(bridge.Config{
		WorkDir:      cfg.Agents.WorkDir,
		DefaultCLI:   cfg.Agents.DefaultCLI,
		ResumeStore:  resumeStore,
		Sessions:     sessions,
		Log:          sessionLog,
		Subagents:    subagents,
		RegistryPath: snapshotPath,
		Lanes:        lanes,
		Drivers:      drivers,
		Cron:         cron,
		CronStore:    cronStore,
		Bus:          bus,
		Models:       models,
		Sink:         sink,
	})
	defer controller.Close()

	cron.Start(ctx)
	defer cron.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if console {
		go runConsoleLoop(runCtx, consoleTransport, controller)
	} else {
		go tgBot.Start(runCtx)
		go runInboundLoop(runCtx, inbound, controller)
	}

	router := statusapi.NewRouter(statusapi.Dependencies{
		Sessions:  sessions,
		Subagents: subagents,
		CronStore: cronStore,
		Bus:       bus,
	})
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{Addr: addr, Handler: router}

	go func() {
		log.Printf("status API listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("status API error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("received signal %v, shutting down...", sig)
	case <-ctx.Done():
		log.Printf("context cancelled, shutting down...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("error shutting down status API: %v", err)
	}

	if err := subagents.SaveSnapshot(snapshotPath); err != nil {
		log.Printf("error saving subagent snapshot: %v", err)
	}

	log.Println("shutdown complete")
	return nil
}

// runInboundLoop feeds every inbound Telegram message to the Controller
// until the context is cancelled.
func runInboundLoop(ctx context.Context, inbound <-chan transport.InboundMessage, controller *bridge.Controller) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-inbound:
			if !ok {
				return
			}
			if err := controller.HandleInbound(ctx, msg); err != nil {
				log.Printf("handle inbound: %v", err)
			}
		}
	}
}

// runConsoleLoop feeds stdin lines to the Controller for local testing.
func runConsoleLoop(ctx context.Context, c *transport.Console, controller *bridge.Controller) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		msg, ok := c.ReadLine()
		if !ok {
			return
		}
		if err := controller.HandleInbound(ctx, msg); err != nil {
			log.Printf("handle inbound: %v", err)
		}
	}
}
