package adjust

import (
	"log/slog"

	"github.com/cptspacemanspiff/adjbacklight/internal/backlight"
)

// DeviceStore is the part of backlight.Store the batch operations need.
type DeviceStore interface {
	Read(name string) (backlight.Reading, error)
	SetCurrent(name string, value int64) error
}

// Result is the outcome of applying a Adjustment to one device.
type Result struct {
	Device string `json:"device"`
	Before int64  `json:"before"`
	After  int64  `json:"after"`
	Max    int64  `json:"max"`
	Err    error  `json:"-"`
}

// SetAll applies adj to each device in turn. A failing device is logged
// and reported in its Result; the remaining devices are still processed.
func SetAll(store DeviceStore, devices []string, adj Adjustment, logger *slog.Logger) []Result {
	results := make([]Result, 0, len(devices))
	for _, dev := range devices {
		res := Result{Device: dev}
		r, err := store.Read(dev)
		if err != nil {
			logger.Warn("skip device", "device", dev, "err", err)
			res.Err = err
			results = append(results, res)
			continue
		}
		res.Before, res.Max = r.Current, r.Maximum
		res.After = Apply(r, adj)
		if err := store.SetCurrent(dev, res.After); err != nil {
			logger.Warn("set brightness", "device", dev, "err", err)
			res.Err = err
			res.After = res.Before
		} else {
			logger.Debug("set brightness", "device", dev, "from", res.Before, "to", res.After, "max", res.Max)
		}
		results = append(results, res)
	}
	return results
}

// Query reads each device and returns the aggregate percentage over those
// that could be read, together with how many that was.
func Query(store DeviceStore, devices []string, logger *slog.Logger) (float64, int) {
	readings := make([]backlight.Reading, 0, len(devices))
	for _, dev := range devices {
		r, err := store.Read(dev)
		if err != nil {
			logger.Warn("skip device", "device", dev, "err", err)
			continue
		}
		readings = append(readings, r)
	}
	return Aggregate(readings), len(readings)
}
