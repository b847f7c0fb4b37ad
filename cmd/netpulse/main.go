package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"netpulse/internal/config"
	"netpulse/internal/history"
	"netpulse/internal/poller"
	logx "netpulse/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config file (yaml or json)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfgPath); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string) error {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	logSvc, log := logx.New(logConfig(cfg))
	defer logSvc.Close()
	mgr.SetLogger(log)

	store, err := history.Open(historyConfig(cfg), log)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	if store != nil {
		defer store.Close()
	}

	svc := poller.New(cfg, store, log)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start poller: %w", err)
	}

	// Hot reload: the watcher publishes validated configs, we re-apply both
	// the log sinks and the probe set.
	updates := mgr.Subscribe(1)
	defer mgr.Unsubscribe(updates)
	go func() { _ = mgr.Watch(ctx) }()
	go func() {
		for next := range updates {
			logSvc.Apply(logConfig(next))
			if err := svc.Apply(next); err != nil {
				log.Error("config apply failed", logx.Err(err))
			}
		}
	}()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	go watchdog(ctx)
	log.Info("netpulse ready", logx.String("config", cfgPath))

	<-ctx.Done()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	svc.Stop(stopCtx)
	return nil
}

func logConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.ConsoleEnabled(),
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func historyConfig(cfg *config.Config) history.Config {
	if cfg.History == nil {
		return history.Config{}
	}
	// Validate() already checked the duration; an error here can't happen.
	busy, _ := config.ParseDurationOrDefault("history.busy_timeout", cfg.History.BusyTimeout, 5*time.Second)
	return history.Config{
		Path:        cfg.History.Path,
		BusyTimeout: busy,
		Retention:   time.Duration(cfg.History.RetentionDays) * 24 * time.Hour,
	}
}

// watchdog pings systemd at half the configured WatchdogSec, if any.
func watchdog(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	t := time.NewTicker(interval / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		}
	}
}
