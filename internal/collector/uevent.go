package collector

import (
	"path"
	"strings"
)

// Uevent is a kernel device event for a backlight device.
type Uevent struct {
	Action    string
	Subsystem string
	DevPath   string
	Device    string
}

// parseUevent splits KEY=VALUE fields separated by sep. Fields without '='
// (such as the "action@devpath" header of a netlink message) are ignored.
func parseUevent(data, sep string) map[string]string {
	props := make(map[string]string)
	for _, line := range strings.Split(data, sep) {
		if k, v, ok := strings.Cut(line, "="); ok {
			props[k] = v
		}
	}
	return props
}

// parseBacklightUevent decodes a netlink uevent message and reports whether
// it is a backlight change.
func parseBacklightUevent(msg []byte) (Uevent, bool) {
	props := parseUevent(string(msg), "\x00")
	ev := Uevent{
		Action:    props["ACTION"],
		Subsystem: props["SUBSYSTEM"],
		DevPath:   props["DEVPATH"],
	}
	if ev.Subsystem != "backlight" || ev.Action != "change" {
		return Uevent{}, false
	}
	if ev.DevPath != "" {
		ev.Device = path.Base(ev.DevPath)
	}
	return ev, true
}
