package main

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cptspacemanspiff/adjbacklight/internal/adjust"
	"github.com/cptspacemanspiff/adjbacklight/internal/backlight"
	"github.com/cptspacemanspiff/adjbacklight/internal/collector"
	"github.com/cptspacemanspiff/adjbacklight/internal/config"
	"github.com/cptspacemanspiff/adjbacklight/internal/storage"
)

// daemon records brightness history and puts it back after resume.
type daemon struct {
	db      *storage.DB
	devices *backlight.Store

	all           atomic.Bool
	restoreOnWake atomic.Bool
	retentionDays atomic.Int64

	mu   sync.Mutex
	last map[string]int64 // last recorded brightness per device

	log        *slog.Logger
	ueventLog  *slog.Logger
	wakeLog    *slog.Logger
	cleanupLog *slog.Logger
	configLog  *slog.Logger
}

func newDaemon(cfg *config.Config, db *storage.DB, logger *slog.Logger) *daemon {
	d := &daemon{
		db:         db,
		devices:    backlight.NewStore(cfg.Devices.Root),
		last:       make(map[string]int64),
		log:        logger,
		ueventLog:  logger.With("topic", "uevent"),
		wakeLog:    logger.With("topic", "wake"),
		cleanupLog: logger.With("topic", "cleanup"),
		configLog:  logger.With("topic", "config"),
	}
	d.apply(cfg)
	return d
}

// apply takes over the settings that can change at runtime.
func (d *daemon) apply(cfg *config.Config) {
	d.all.Store(cfg.Devices.All)
	d.restoreOnWake.Store(cfg.Daemon.RestoreOnWake)
	d.retentionDays.Store(int64(cfg.History.RetentionDays))
}

// store inserts samples whose brightness differs from the last one recorded
// for the same device and returns how many were written.
func (d *daemon) store(samples []collector.BacklightSample) int {
	d.mu.Lock()
	var fresh []collector.BacklightSample
	for _, s := range samples {
		if prev, ok := d.last[s.Device]; ok && prev == s.Brightness && s.Source == collector.SourceUevent {
			continue
		}
		d.last[s.Device] = s.Brightness
		fresh = append(fresh, s)
	}
	d.mu.Unlock()

	if err := d.db.InsertBacklightSamples(fresh); err != nil {
		d.log.Error("store backlight", "err", err)
		return 0
	}
	return len(fresh)
}

// recordAll samples every device.
func (d *daemon) recordAll(source string) int {
	samples, err := collector.CollectBacklight(d.devices, source, d.ueventLog)
	if err != nil {
		d.ueventLog.Warn("collect failed", "err", err)
		return 0
	}
	return d.store(samples)
}

// recordDevice samples one device after a uevent.
func (d *daemon) recordDevice(dev string) int {
	r, err := d.devices.Read(dev)
	if err != nil {
		d.ueventLog.Debug("read failed", "device", dev, "err", err)
		return 0
	}
	n := d.store([]collector.BacklightSample{{
		Timestamp:     time.Now().Unix(),
		Device:        dev,
		Brightness:    r.Current,
		MaxBrightness: r.Maximum,
		Source:        collector.SourceUevent,
	}})
	if n > 0 {
		d.ueventLog.Info("sample", "device", dev, "brightness", r.Current, "max_brightness", r.Maximum)
	}
	return n
}

// restore writes back, for each device, the last brightness recorded at or
// before the given time. Values are clamped to the device's present maximum.
func (d *daemon) restore(before int64) int {
	if !d.restoreOnWake.Load() {
		return 0
	}
	samples, err := d.db.LatestBacklightSamples(before)
	if err != nil {
		d.wakeLog.Error("load latest samples", "err", err)
		return 0
	}

	now := time.Now().Unix()
	var restored []collector.BacklightSample
	for _, s := range samples {
		r, err := d.devices.Read(s.Device)
		if err != nil {
			d.wakeLog.Debug("skip device", "device", s.Device, "err", err)
			continue
		}
		target := adjust.Clamp(s.Brightness, r.Maximum)
		if target == r.Current {
			continue
		}
		if err := d.devices.SetCurrent(s.Device, target); err != nil {
			d.wakeLog.Warn("restore brightness", "device", s.Device, "err", err)
			continue
		}
		d.wakeLog.Info("restored brightness", "device", s.Device, "from", r.Current, "to", target)
		restored = append(restored, collector.BacklightSample{
			Timestamp:     now,
			Device:        s.Device,
			Brightness:    target,
			MaxBrightness: r.Maximum,
			Source:        collector.SourceWake,
		})
	}
	d.store(restored)
	return len(restored)
}

// cleanup deletes samples that fall outside the retention window.
func (d *daemon) cleanup(now time.Time) {
	days := d.retentionDays.Load()
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour).Unix()
	n, err := d.db.DeleteOlderThan(cutoff)
	if err != nil {
		d.cleanupLog.Error("delete old samples", "err", err)
		return
	}
	d.cleanupLog.Info("deleted old samples", "rows", n, "retention_days", days)
}

// reload applies a changed config. Settings that are bound at startup are
// only reported.
func (d *daemon) reload(prev, next *config.Config) {
	d.apply(next)
	d.configLog.Info("config reloaded",
		"all", next.Devices.All,
		"restore_on_wake", next.Daemon.RestoreOnWake,
		"retention_days", next.History.RetentionDays)

	if prev.Devices.Root != next.Devices.Root {
		d.configLog.Warn("devices.root change takes effect after restart", "root", next.Devices.Root)
	}
	if prev.History.DBPath != next.History.DBPath {
		d.configLog.Warn("history.db_path change takes effect after restart", "db_path", next.History.DBPath)
	}
	if prev.History.CleanupIntervalHours != next.History.CleanupIntervalHours {
		d.configLog.Warn("history.cleanup_interval_hours change takes effect after restart")
	}
	if prev.Daemon.Bus != next.Daemon.Bus {
		d.configLog.Warn("daemon.bus change takes effect after restart", "bus", next.Daemon.Bus)
	}
}
