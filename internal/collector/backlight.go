package collector

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/cptspacemanspiff/adjbacklight/internal/backlight"
)

// CollectBacklight reads every device under the store's root. Devices that
// cannot be read are logged and left out.
func CollectBacklight(store *backlight.Store, source string, logger *slog.Logger) ([]BacklightSample, error) {
	devices, err := store.Devices()
	if err != nil {
		return nil, fmt.Errorf("list backlight: %w", err)
	}

	now := time.Now().Unix()
	var samples []BacklightSample
	found := false
	for dev := range devices {
		found = true
		r, err := store.Read(dev)
		if err != nil {
			logger.Debug("skip device", "device", dev, "err", err)
			continue
		}
		samples = append(samples, BacklightSample{
			Timestamp:     now,
			Device:        dev,
			Brightness:    r.Current,
			MaxBrightness: r.Maximum,
			Source:        source,
		})
	}
	if !found {
		return nil, fmt.Errorf("no backlight found")
	}
	return samples, nil
}
