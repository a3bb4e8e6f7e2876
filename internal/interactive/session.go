// Package interactive drives the live brightness bar for a single device.
package interactive

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/cptspacemanspiff/adjbacklight/internal/adjust"
	"github.com/cptspacemanspiff/adjbacklight/internal/backlight"
)

// Writer stores a new brightness value for a device.
type Writer interface {
	SetCurrent(name string, value int64) error
}

// State is the controller's position in its keystroke loop.
type State int

const (
	Displaying State = iota
	Applying
	Terminated
)

const (
	keyCtrlC = 0x03
	keyCtrlD = 0x04
)

// StepSize is the amount one keystroke moves the brightness: 1/200 of the
// maximum, but never less than 1.
func StepSize(maximum int64) int64 {
	return max(maximum/200, 1)
}

// Session holds the state of one device's interactive adjustment.
type Session struct {
	store   Writer
	device  string
	max     int64
	initial int64
	current int64
	step    int64
	state   State

	out *bufio.Writer
	bar *bar
}

// NewSession prepares a session for device starting from r. cols is the
// terminal width the bar is drawn to.
func NewSession(store Writer, device string, r backlight.Reading, cols int, out io.Writer) *Session {
	return &Session{
		store:   store,
		device:  device,
		max:     r.Maximum,
		initial: r.Current,
		current: adjust.Clamp(r.Current, r.Maximum),
		step:    StepSize(r.Maximum),
		out:     bufio.NewWriter(out),
		bar:     newBar(cols),
	}
}

// Current returns the last value written (or the initial reading).
func (s *Session) Current() int64 { return s.current }

// State returns where the session is in its loop.
func (s *Session) State() State { return s.state }

// Run draws the bar and then processes keystrokes from in until a quit key,
// end of input, or a failed write. Reaching the end of input is not an error.
func (s *Session) Run(in io.ByteReader) error {
	if _, err := s.out.WriteString("\n\n\n\n\n\n"); err != nil {
		return err
	}
	if err := s.redraw(); err != nil {
		return err
	}
	for s.state != Terminated {
		c, err := in.ReadByte()
		if err != nil {
			s.state = Terminated
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read key: %w", err)
		}
		if err := s.HandleKey(c); err != nil {
			return err
		}
	}
	return nil
}

// HandleKey applies a single keystroke. The final byte of the arrow key
// escape sequences selects the direction: A/C (up/right) raise, B/D
// (down/left) lower. Other bytes, including the ESC and '[' that precede
// them, are ignored.
func (s *Session) HandleKey(c byte) error {
	if s.state == Terminated {
		return nil
	}
	switch c {
	case 'q', '\n', '\r', keyCtrlC, keyCtrlD:
		s.state = Terminated
		if _, err := s.out.WriteString("\n"); err != nil {
			return err
		}
		return s.out.Flush()
	case 'A', 'C':
		s.current += s.step << 1
		fallthrough
	case 'B', 'D':
		s.current -= s.step
		return s.apply()
	}
	return nil
}

func (s *Session) apply() error {
	s.state = Applying
	s.current = adjust.Clamp(s.current, s.max)
	if err := s.store.SetCurrent(s.device, s.current); err != nil {
		s.state = Terminated
		_, _ = s.out.WriteString("\n")
		_ = s.out.Flush()
		return fmt.Errorf("set %s: %w", s.device, err)
	}
	s.state = Displaying
	return s.redraw()
}

func (s *Session) redraw() error {
	s.bar.render(s.out, s.max, s.initial, s.current)
	return s.out.Flush()
}
