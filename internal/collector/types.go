package collector

// Sample sources recorded alongside each BacklightSample.
const (
	SourceStartup = "startup"
	SourceUevent  = "uevent"
	SourceDBus    = "dbus"
	SourceWake    = "wake"
)

// BacklightSample holds a snapshot of one backlight device.
type BacklightSample struct {
	Timestamp     int64  `json:"timestamp"`
	Device        string `json:"device"`
	Brightness    int64  `json:"brightness"`
	MaxBrightness int64  `json:"max_brightness"`
	Source        string `json:"source"`
}
