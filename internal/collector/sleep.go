package collector

import (
	"log/slog"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	logindInterface = "org.freedesktop.login1.Manager"
	prepareForSleep = logindInterface + ".PrepareForSleep"
)

// ResumeMonitor watches systemd-logind's PrepareForSleep signal and reports
// each resume. Firmware commonly resets the backlight on resume, so the
// daemon uses this to put the last recorded brightness back.
type ResumeMonitor struct {
	conn    *dbus.Conn
	signals chan *dbus.Signal
	done    chan struct{}
	resumed chan int64
	sleptAt int64
	log     *slog.Logger
}

// NewResumeMonitor subscribes to logind on the system bus.
func NewResumeMonitor(logger *slog.Logger) (*ResumeMonitor, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, err
	}

	err = conn.AddMatchSignal(
		dbus.WithMatchInterface(logindInterface),
		dbus.WithMatchMember("PrepareForSleep"),
	)
	if err != nil {
		return nil, err
	}

	m := &ResumeMonitor{
		conn:    conn,
		signals: make(chan *dbus.Signal, 16),
		done:    make(chan struct{}),
		resumed: make(chan int64, 1),
		log:     logger,
	}
	conn.Signal(m.signals)
	go m.listen()
	return m, nil
}

// Resumed receives a value each time the system wakes from sleep: the unix
// time at which it went to sleep, or 0 if that was not observed.
func (m *ResumeMonitor) Resumed() <-chan int64 {
	return m.resumed
}

// Close stops the monitor.
func (m *ResumeMonitor) Close() {
	close(m.done)
}

func (m *ResumeMonitor) listen() {
	defer m.conn.RemoveSignal(m.signals)

	for {
		select {
		case sig := <-m.signals:
			if m.handle(sig) {
				at := m.sleptAt
				m.sleptAt = 0
				select {
				case m.resumed <- at:
				default:
				}
			}
		case <-m.done:
			return
		}
	}
}

// handle reports whether sig announces a resume.
func (m *ResumeMonitor) handle(sig *dbus.Signal) bool {
	if sig == nil || sig.Name != prepareForSleep || len(sig.Body) < 1 {
		return false
	}
	sleeping, ok := sig.Body[0].(bool)
	if !ok {
		return false
	}
	if sleeping {
		m.sleptAt = time.Now().Unix()
		m.log.Info("system going to sleep")
		return false
	}
	m.log.Info("system woke up")
	return true
}
