package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/webstackd/webstackd"
	"github.com/webstackd/webstackd/internal/logger"
)

func runServeCommand(flags *ServeFlags, args []string) error {
	configPath := flags.ConfigPath
	if len(args) > 0 {
		configPath = args[0]
	}
	if configPath == "" {
		return fmt.Errorf("config file required: use --config=webstack.toml or pass it as an argument")
	}

	cfg, err := webstackd.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Server == nil || cfg.Server.Listen == "" {
		return fmt.Errorf("[server] listen must be configured to run the daemon")
	}

	log := logger.SetupDefault(slog.LevelInfo)

	sup := webstackd.New(cfg)
	defer sup.Shutdown()

	var jrnl webstackd.Journal
	if cfg.Journal != nil && cfg.Journal.DSN != "" {
		jrnl, err = webstackd.OpenJournal(cfg.Journal.DSN)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer func() { _ = jrnl.Close() }()
		if err := sup.SetJournal(jrnl); err != nil {
			return fmt.Errorf("journal schema: %w", err)
		}
	}

	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		if err := webstackd.RegisterMetricsDefault(); err != nil {
			log.Warn("metrics registration failed", "err", err)
		}
		if cfg.Metrics.Listen != "" {
			go func() {
				if err := webstackd.ServeMetrics(cfg.Metrics.Listen); err != nil {
					log.Error("metrics server error", "err", err)
				}
			}()
		}
	}

	sup.StartHealthLoop()

	srv, err := webstackd.NewHTTPServer(cfg.Server.Listen, cfg.Server.BasePath, sup, jrnl)
	if err != nil {
		return fmt.Errorf("start API server: %w", err)
	}
	log.Info("webstackd serving", "listen", cfg.Server.Listen, "base_path", cfg.Server.BasePath)

	if flags.StartAll {
		if err := sup.StartAll(); err != nil {
			log.Warn("initial stack start incomplete", "err", err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	if err := sup.StopAll(); err != nil {
		log.Warn("stack stop incomplete", "err", err)
	}
	return srv.Close()
}
