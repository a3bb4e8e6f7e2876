package dbus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	godbus "github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/cptspacemanspiff/adjbacklight/internal/adjust"
	"github.com/cptspacemanspiff/adjbacklight/internal/backlight"
	"github.com/cptspacemanspiff/adjbacklight/internal/collector"
	"github.com/cptspacemanspiff/adjbacklight/internal/storage"
)

const (
	BusName   = "org.adjbacklight.Backlight"
	objPath   = "/org/adjbacklight/Backlight"
	ifaceName = "org.adjbacklight.Backlight"
)

const maxHistorySpan = 365 * 24 * 60 * 60

const introspectXML = `
<node>
  <interface name="` + ifaceName + `">
    <method name="GetBrightness">
      <arg direction="out" type="s" name="percent"/>
    </method>
    <method name="SetBrightness">
      <arg direction="in" type="s" name="expr"/>
      <arg direction="out" type="s" name="json"/>
    </method>
    <method name="ListDevices">
      <arg direction="out" type="s" name="json"/>
    </method>
    <method name="GetHistory">
      <arg direction="in" type="x" name="from_epoch"/>
      <arg direction="in" type="x" name="to_epoch"/>
      <arg direction="out" type="s" name="json"/>
    </method>
  </interface>
` + introspect.IntrospectDataString + `
</node>`

// Service exposes backlight control and history over D-Bus.
type Service struct {
	history *storage.DB
	devices *backlight.Store
	all     *atomic.Bool
	log     *slog.Logger
}

// NewService creates a new D-Bus service. all selects whether methods act on
// every device or only the first one found; the caller may flip it at any
// time.
func NewService(history *storage.DB, devices *backlight.Store, all *atomic.Bool, logger *slog.Logger) *Service {
	return &Service{history: history, devices: devices, all: all, log: logger}
}

// Export registers the service on the named bus ("session" or "system").
func (s *Service) Export(bus string) (*godbus.Conn, error) {
	var (
		conn *godbus.Conn
		err  error
	)
	switch bus {
	case "session":
		conn, err = godbus.SessionBus()
	case "system":
		conn, err = godbus.SystemBus()
	default:
		return nil, fmt.Errorf("unknown bus %q", bus)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s bus: %w", bus, err)
	}

	conn.Export(s, objPath, ifaceName)
	conn.Export(introspect.Introspectable(introspectXML), objPath, "org.freedesktop.DBus.Introspectable")

	reply, err := conn.RequestName(BusName, godbus.NameFlagDoNotQueue)
	if err != nil {
		return nil, fmt.Errorf("request name: %w", err)
	}
	if reply != godbus.RequestNameReplyPrimaryOwner {
		return nil, fmt.Errorf("name %s already taken", BusName)
	}

	return conn, nil
}

// GetBrightness returns the mean brightness of the selected devices,
// formatted like "37.50%".
func (s *Service) GetBrightness() (string, *godbus.Error) {
	devices, err := s.devices.Select(nil, s.all.Load())
	if err != nil {
		return "", godbus.MakeFailedError(err)
	}
	pct, _ := adjust.Query(s.devices, devices, s.log)
	return adjust.FormatPercent(pct), nil
}

type setResult struct {
	adjust.Result
	Error string `json:"error,omitempty"`
}

// SetBrightness applies an adjustment expression to the selected devices and
// returns the per-device outcome as JSON.
func (s *Service) SetBrightness(expr string) (string, *godbus.Error) {
	adj, err := adjust.Parse(expr)
	if err != nil {
		return "", godbus.NewError(ifaceName+".InvalidAdjustment", []any{err.Error()})
	}
	devices, err := s.devices.Select(nil, s.all.Load())
	if err != nil {
		return "", godbus.MakeFailedError(err)
	}
	s.log.Info("set brightness", "expr", expr, "devices", len(devices))

	now := time.Now().Unix()
	results := adjust.SetAll(s.devices, devices, adj, s.log)
	out := make([]setResult, 0, len(results))
	var samples []collector.BacklightSample
	for _, r := range results {
		sr := setResult{Result: r}
		if r.Err != nil {
			sr.Error = r.Err.Error()
		} else {
			samples = append(samples, collector.BacklightSample{
				Timestamp:     now,
				Device:        r.Device,
				Brightness:    r.After,
				MaxBrightness: r.Max,
				Source:        collector.SourceDBus,
			})
		}
		out = append(out, sr)
	}
	if err := s.history.InsertBacklightSamples(samples); err != nil {
		s.log.Error("store backlight", "err", err)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return "", godbus.MakeFailedError(err)
	}
	return string(data), nil
}

type deviceInfo struct {
	Device string `json:"device"`
	backlight.Reading
	Percent string `json:"percent,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ListDevices returns every device under the root with its reading as JSON.
func (s *Service) ListDevices() (string, *godbus.Error) {
	devices, err := s.devices.Select(nil, true)
	if err != nil {
		return "", godbus.MakeFailedError(err)
	}
	out := make([]deviceInfo, 0, len(devices))
	for _, dev := range devices {
		info := deviceInfo{Device: dev}
		r, err := s.devices.Read(dev)
		if err != nil {
			info.Error = err.Error()
		} else {
			info.Reading = r
			info.Percent = adjust.FormatPercent(r.Ratio() * 100)
		}
		out = append(out, info)
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", godbus.MakeFailedError(err)
	}
	return string(data), nil
}

// GetHistory returns recorded backlight samples in a time range as JSON.
func (s *Service) GetHistory(fromEpoch, toEpoch int64) (string, *godbus.Error) {
	if err := validateRange(fromEpoch, toEpoch); err != nil {
		return "", godbus.MakeFailedError(err)
	}
	samples, err := s.history.BacklightSamplesInRange(fromEpoch, toEpoch)
	if err != nil {
		return "", godbus.MakeFailedError(err)
	}
	if samples == nil {
		samples = []collector.BacklightSample{}
	}
	data, err := json.Marshal(samples)
	if err != nil {
		return "", godbus.MakeFailedError(err)
	}
	return string(data), nil
}

func validateRange(from, to int64) error {
	if from < 0 {
		return fmt.Errorf("from_epoch must be non-negative, got %d", from)
	}
	if to < from {
		return fmt.Errorf("to_epoch %d is before from_epoch %d", to, from)
	}
	if to-from > maxHistorySpan {
		return fmt.Errorf("range of %d seconds exceeds %d", to-from, maxHistorySpan)
	}
	return nil
}
