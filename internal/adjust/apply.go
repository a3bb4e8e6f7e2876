package adjust

import (
	"fmt"
	"math"

	"github.com/cptspacemanspiff/adjbacklight/internal/backlight"
)

// Apply returns the value a device should be set to. The result is always
// within [0, r.Maximum].
func Apply(r backlight.Reading, adj Adjustment) int64 {
	var delta float64
	switch adj.Unit {
	case PercentOfRange:
		delta = roundHalfUp(adj.Magnitude / 100 * float64(r.Maximum))
	case PercentOfCurrent:
		delta = roundHalfUp(adj.Magnitude / 100 * float64(r.Current))
	default:
		delta = math.Trunc(adj.Magnitude)
	}

	target := delta
	if adj.Mode == Relative {
		target = float64(r.Current) + float64(adj.Sign)*delta
	}
	// Clamp before converting so huge magnitudes cannot overflow int64.
	if math.IsNaN(target) || target <= 0 {
		return 0
	}
	if target >= float64(r.Maximum) {
		return r.Maximum
	}
	return int64(target)
}

// Clamp limits v to [0, maximum].
func Clamp(v, maximum int64) int64 {
	return min(max(v, 0), maximum)
}

// Aggregate returns the mean brightness of readings as a percentage. With no
// readings it is 100.
func Aggregate(readings []backlight.Reading) float64 {
	if len(readings) == 0 {
		return 100
	}
	var sum float64
	for _, r := range readings {
		sum += r.Ratio()
	}
	return sum * 100 / float64(len(readings))
}

// FormatPercent renders an aggregate percentage as "NN.NN%".
func FormatPercent(pct float64) string {
	return fmt.Sprintf("%.2f%%", pct)
}

// roundHalfUp rounds a non-negative value to the nearest integer, ties up.
func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}
