package dbus

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/cptspacemanspiff/adjbacklight/internal/backlight"
	"github.com/cptspacemanspiff/adjbacklight/internal/collector"
	"github.com/cptspacemanspiff/adjbacklight/internal/storage"
)

func writeTestDevice(t *testing.T, root, name, cur, max string) {
	t.Helper()

	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "brightness"), []byte(cur), 0o644); err != nil {
		t.Fatalf("write brightness: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "max_brightness"), []byte(max), 0o644); err != nil {
		t.Fatalf("write max_brightness: %v", err)
	}
}

func readBrightness(t *testing.T, root, name string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(root, name, "brightness"))
	if err != nil {
		t.Fatalf("read brightness: %v", err)
	}
	return string(data)
}

func newTestService(t *testing.T) (*Service, *storage.DB, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := storage.Open(path)
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Fatalf("db.Close() error = %v", err)
		}
	})

	root := t.TempDir()
	all := new(atomic.Bool)
	all.Store(true)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(db, backlight.NewStore(root), all, logger), db, root
}

func TestService_InvalidTimeRanges(t *testing.T) {
	svc, _, _ := newTestService(t)

	tests := []struct {
		name     string
		from, to int64
	}{
		{name: "negative from", from: -1, to: 0},
		{name: "to before from", from: 10, to: 9},
		{name: "range too large", from: 0, to: 86400 * 366},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.GetHistory(tt.from, tt.to); err == nil {
				t.Fatal("expected D-Bus error, got nil")
			}
		})
	}
}

func TestService_GetHistory(t *testing.T) {
	svc, db, _ := newTestService(t)

	if err := db.InsertBacklightSample(collector.BacklightSample{Timestamp: 100, Device: "intel_backlight", Brightness: 200, MaxBrightness: 500, Source: collector.SourceUevent}); err != nil {
		t.Fatalf("InsertBacklightSample() error = %v", err)
	}

	historyJSON, dbusErr := svc.GetHistory(0, 200)
	if dbusErr != nil {
		t.Fatalf("GetHistory() error = %v", dbusErr)
	}
	var history []collector.BacklightSample
	if err := json.Unmarshal([]byte(historyJSON), &history); err != nil {
		t.Fatalf("unmarshal history JSON: %v", err)
	}
	if len(history) != 1 || history[0].Device != "intel_backlight" || history[0].Source != collector.SourceUevent {
		t.Fatalf("history = %+v, want one uevent sample for intel_backlight", history)
	}

	emptyJSON, dbusErr := svc.GetHistory(300, 400)
	if dbusErr != nil {
		t.Fatalf("GetHistory() error = %v", dbusErr)
	}
	if emptyJSON != "[]" {
		t.Fatalf("GetHistory() = %s, want []", emptyJSON)
	}
}

func TestService_GetBrightness(t *testing.T) {
	svc, _, root := newTestService(t)
	writeTestDevice(t, root, "a", "50\n", "100\n")
	writeTestDevice(t, root, "b", "25\n", "100\n")

	got, err := svc.GetBrightness()
	if err != nil {
		t.Fatalf("GetBrightness() error = %v", err)
	}
	if got != "37.50%" {
		t.Fatalf("GetBrightness() = %q, want %q", got, "37.50%")
	}
}

func TestService_GetBrightness_NoDevices(t *testing.T) {
	svc, _, _ := newTestService(t)

	got, err := svc.GetBrightness()
	if err != nil {
		t.Fatalf("GetBrightness() error = %v", err)
	}
	if got != "100.00%" {
		t.Fatalf("GetBrightness() = %q, want %q", got, "100.00%")
	}
}

func TestService_SetBrightness(t *testing.T) {
	svc, db, root := newTestService(t)
	writeTestDevice(t, root, "intel_backlight", "50\n", "200\n")

	resultJSON, dbusErr := svc.SetBrightness("+10%")
	if dbusErr != nil {
		t.Fatalf("SetBrightness() error = %v", dbusErr)
	}
	if got := readBrightness(t, root, "intel_backlight"); got != "70\n" {
		t.Fatalf("brightness = %q, want %q", got, "70\n")
	}

	var results []map[string]any
	if err := json.Unmarshal([]byte(resultJSON), &results); err != nil {
		t.Fatalf("unmarshal result JSON: %v", err)
	}
	if len(results) != 1 || results[0]["device"] != "intel_backlight" || results[0]["after"] != float64(70) {
		t.Fatalf("results = %v, want intel_backlight after=70", results)
	}
	if _, ok := results[0]["error"]; ok {
		t.Fatalf("results[0] has error: %v", results[0])
	}

	latest, err := db.LatestBacklightSample("intel_backlight")
	if err != nil {
		t.Fatalf("LatestBacklightSample() error = %v", err)
	}
	if latest == nil || latest.Brightness != 70 || latest.Source != collector.SourceDBus {
		t.Fatalf("LatestBacklightSample() = %+v, want brightness 70 from dbus", latest)
	}
}

func TestService_SetBrightness_ReportsDeviceErrors(t *testing.T) {
	svc, db, root := newTestService(t)
	writeTestDevice(t, root, "broken", "x\n", "200\n")

	resultJSON, dbusErr := svc.SetBrightness("=10")
	if dbusErr != nil {
		t.Fatalf("SetBrightness() error = %v", dbusErr)
	}
	if !strings.Contains(resultJSON, `"error"`) {
		t.Fatalf("SetBrightness() = %s, want an error entry", resultJSON)
	}
	latest, err := db.LatestBacklightSample("broken")
	if err != nil {
		t.Fatalf("LatestBacklightSample() error = %v", err)
	}
	if latest != nil {
		t.Fatalf("LatestBacklightSample() = %+v, want nothing recorded", latest)
	}
}

func TestService_SetBrightness_InvalidExpression(t *testing.T) {
	svc, _, root := newTestService(t)
	writeTestDevice(t, root, "intel_backlight", "50\n", "200\n")

	_, err := svc.SetBrightness("+ten")
	if err == nil {
		t.Fatal("SetBrightness() error = nil, want D-Bus error")
	}
	if err.Name != ifaceName+".InvalidAdjustment" {
		t.Fatalf("error name = %q, want %q", err.Name, ifaceName+".InvalidAdjustment")
	}
	if got := readBrightness(t, root, "intel_backlight"); got != "50\n" {
		t.Fatalf("brightness = %q, want unchanged", got)
	}
}

func TestService_ListDevices(t *testing.T) {
	svc, _, root := newTestService(t)
	writeTestDevice(t, root, "intel_backlight", "50\n", "200\n")

	listJSON, dbusErr := svc.ListDevices()
	if dbusErr != nil {
		t.Fatalf("ListDevices() error = %v", dbusErr)
	}
	var list []map[string]any
	if err := json.Unmarshal([]byte(listJSON), &list); err != nil {
		t.Fatalf("unmarshal list JSON: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len(list) = %d, want 1", len(list))
	}
	if list[0]["device"] != "intel_backlight" || list[0]["current"] != float64(50) || list[0]["maximum"] != float64(200) || list[0]["percent"] != "25.00%" {
		t.Fatalf("list[0] = %v, want intel_backlight 50/200 25.00%%", list[0])
	}
}

func TestService_ExportUnknownBus(t *testing.T) {
	svc, _, _ := newTestService(t)

	if _, err := svc.Export("nope"); err == nil {
		t.Fatal("Export() error = nil, want unknown bus error")
	}
}
