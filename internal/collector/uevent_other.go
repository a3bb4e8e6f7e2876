//go:build !linux

package collector

import (
	"context"
	"errors"
	"log/slog"
)

// BacklightEvents is only available on Linux.
func BacklightEvents(ctx context.Context, logger *slog.Logger) (<-chan Uevent, error) {
	return nil, errors.New("backlight uevents require linux")
}
