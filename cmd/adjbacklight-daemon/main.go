package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/cptspacemanspiff/adjbacklight/internal/collector"
	"github.com/cptspacemanspiff/adjbacklight/internal/config"
	dbussvc "github.com/cptspacemanspiff/adjbacklight/internal/dbus"
	"github.com/cptspacemanspiff/adjbacklight/internal/storage"
)

const defaultConfigPath = "/etc/adjbacklight/config.toml"

type flags struct {
	configPath string
	verbose    bool
	logTopics  string
	resetDB    bool
	initConfig bool
}

func main() {
	var f flags
	cmd := &cobra.Command{
		Use:           "adjbacklight-daemon",
		Short:         "Record backlight history, restore it after resume and serve it over D-Bus",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(f)
		},
	}
	cmd.Flags().StringVar(&f.configPath, "config", defaultConfigPath, "config file")
	cmd.Flags().BoolVar(&f.verbose, "verbose", false, "enable all verbose logging (equivalent to --log=all)")
	cmd.Flags().StringVar(&f.logTopics, "log", "", "comma-separated log topics: uevent,wake,dbus,cleanup,config (or 'all')")
	cmd.Flags().BoolVar(&f.resetDB, "reset-db", false, "delete the database and exit")
	cmd.Flags().BoolVar(&f.initConfig, "init-config", false, "write the default config file and exit")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "adjbacklight-daemon: %v\n", err)
		os.Exit(1)
	}
}

func run(f flags) error {
	if f.initConfig {
		if _, err := os.Stat(f.configPath); err == nil {
			return fmt.Errorf("%s already exists", f.configPath)
		}
		if err := config.Save(f.configPath, config.DefaultConfig()); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Println("wrote", f.configPath)
		return nil
	}

	cfg, err := config.LoadOrDefault(f.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	handler := newTopicHandler(
		tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelDebug, TimeFormat: time.DateTime}),
		parseTopics(f.verbose, f.logTopics, cfg.Daemon.LogTopics),
	)
	logger := slog.New(handler)

	dbPath := cfg.History.DBPath
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	if f.resetDB {
		for _, suffix := range []string{"", "-wal", "-shm"} {
			if err := os.Remove(dbPath + suffix); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("delete database: %w", err)
			}
		}
		logger.Info("database deleted", "path", dbPath)
		return nil
	}

	db, err := storage.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	d := newDaemon(cfg, db, logger)

	svc := dbussvc.NewService(db, d.devices, &d.all, logger.With("topic", "dbus"))
	if conn, err := svc.Export(cfg.Daemon.Bus); err != nil {
		logger.Warn("D-Bus service unavailable", "bus", cfg.Daemon.Bus, "err", err)
	} else {
		defer conn.Close()
		logger.Info("D-Bus service registered", "name", dbussvc.BusName, "bus", cfg.Daemon.Bus)
	}

	n := d.recordAll(collector.SourceStartup)
	logger.Info("recorded startup samples", "devices", n, "root", d.devices.Root())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	events, err := collector.BacklightEvents(ctx, d.ueventLog)
	if err != nil {
		logger.Warn("uevent listener unavailable", "err", err)
	}

	var wakeCh <-chan int64
	if mon, err := collector.NewResumeMonitor(d.wakeLog); err != nil {
		logger.Warn("resume monitor unavailable", "err", err)
	} else {
		wakeCh = mon.Resumed()
		defer mon.Close()
	}

	var (
		configEvents <-chan fsnotify.Event
		configErrors <-chan error
	)
	if watcher, err := watchConfig(f.configPath); err != nil {
		logger.Warn("config watch unavailable", "path", f.configPath, "err", err)
	} else {
		configEvents, configErrors = watcher.Events, watcher.Errors
		defer watcher.Close()
	}

	d.cleanup(time.Now())
	ticker := time.NewTicker(time.Duration(cfg.History.CleanupIntervalHours) * time.Hour)
	defer ticker.Stop()

	logger.Info("adjbacklight-daemon started")
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				logger.Warn("uevent listener stopped")
				continue
			}
			d.recordDevice(ev.Device)
		case sleptAt := <-wakeCh:
			before := sleptAt
			if before == 0 {
				before = time.Now().Unix()
			}
			d.restore(before)
		case ev := <-configEvents:
			if filepath.Clean(ev.Name) != filepath.Clean(f.configPath) || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			next, err := config.Load(f.configPath)
			if err != nil {
				d.configLog.Warn("reload failed, keeping previous config", "err", err)
				continue
			}
			d.reload(cfg, next)
			handler.setTopics(parseTopics(f.verbose, f.logTopics, next.Daemon.LogTopics))
			cfg = next
		case err := <-configErrors:
			d.configLog.Warn("config watch", "err", err)
		case now := <-ticker.C:
			d.cleanup(now)
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		}
	}
}

// watchConfig watches the directory holding path, so that editors that
// replace the file by rename are still noticed.
func watchConfig(path string) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}
	return watcher, nil
}
