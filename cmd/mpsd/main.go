package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"mps/internal/backlog"
	"mps/internal/config"
	"mps/internal/credentials"
	"mps/internal/daemon"
	"mps/internal/ipc"
	"mps/internal/logging"
	"mps/internal/notifications"
	"mps/internal/scrobbler"
	"mps/internal/settings"
	"mps/internal/simkl"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := backlog.Open(cfg)
	if err != nil {
		logger.Error("open backlog store", logging.Error(err))
		return
	}

	thresholds, err := settings.Open(cfg.SettingsPath())
	if err != nil {
		logger.Error("open settings store", logging.Error(err))
		_ = store.Close()
		return
	}

	provider := credentials.NewProvider(cfg.Simkl.ClientID, cfg.Paths.DataDir)
	notifier := notifications.NewService(cfg)
	engine := scrobbler.New(cfg, store, thresholds, provider, notifier, logger)

	if err := engine.Initialize(ctx); err != nil {
		if simkl.IsNotAuthenticated(err) {
			logger.Error("not authenticated",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run 'mps auth' to sign in"),
			)
		} else {
			logger.Error("initialize engine", logging.Error(err))
		}
		_ = store.Close()
		return
	}

	d, err := daemon.New(cfg, store, thresholds, engine, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		_ = store.Close()
		return
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		logger.Error("start IPC server", logging.Error(err))
		return
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(ctx); err != nil {
		logger.Warn("daemon start", logging.Error(err))
	}

	<-ctx.Done()
	logger.Info("mpsd shutting down")
}
