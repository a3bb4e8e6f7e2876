package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/cptspacemanspiff/adjbacklight/internal/adjust"
	"github.com/cptspacemanspiff/adjbacklight/internal/backlight"
	"github.com/cptspacemanspiff/adjbacklight/internal/interactive"
)

type runner struct {
	env    Env
	logger *slog.Logger
	root   string
	all    bool
}

// devices resolves the device set. An empty enumeration is reported on
// stderr but is not an error.
func (r *runner) devices(store *backlight.Store, args []string) []string {
	devices, err := store.Select(args, r.all)
	if err != nil {
		r.logger.Debug("enumerate devices", "root", store.Root(), "err", err)
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.env.Stderr, "adjbacklight: cannot find any backlight devices")
	}
	return devices
}

func (r *runner) get(args []string) error {
	store := backlight.NewStore(r.root)
	pct, _ := adjust.Query(store, r.devices(store, args), r.logger)
	_, err := fmt.Fprintln(r.env.Stdout, adjust.FormatPercent(pct))
	return err
}

func (r *runner) set(args []string, expr string) error {
	adj, err := adjust.Parse(expr)
	if err != nil {
		return err
	}
	store := backlight.NewStore(r.root)
	adjust.SetAll(store, r.devices(store, args), adj, r.logger)
	return nil
}

// batch applies one adjustment per line of stdin to the same devices. An
// unparsable line ends the input without failing the command.
func (r *runner) batch(args []string) error {
	store := backlight.NewStore(r.root)
	var devices []string
	resolved := false

	sc := bufio.NewScanner(r.env.Stdin)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		adj, err := adjust.Parse(line)
		if err != nil {
			fmt.Fprintf(r.env.Stderr, "adjbacklight: invalid input: %s\n", line)
			return nil
		}
		if !resolved {
			devices = r.devices(store, args)
			resolved = true
		}
		adjust.SetAll(store, devices, adj, r.logger)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	return nil
}

func (r *runner) list(args []string) error {
	store := backlight.NewStore(r.root)
	devices, err := store.Select(args, true)
	if err != nil {
		r.logger.Debug("enumerate devices", "root", store.Root(), "err", err)
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.env.Stderr, "adjbacklight: cannot find any backlight devices")
		return nil
	}
	for _, dev := range devices {
		reading, err := store.Read(dev)
		if err != nil {
			fmt.Fprintf(r.env.Stdout, "%s: %v\n", dev, err)
			continue
		}
		fmt.Fprintf(r.env.Stdout, "%s %d/%d (%s)\n", dev, reading.Current, reading.Maximum, adjust.FormatPercent(reading.Ratio()*100))
	}
	return nil
}

const recoveryHint = `
If the program is abnormally aborted there may be some residual
effects on the terminal. The following commands should reset it:

    stty sane
    printf '\ec'

`

// keyReader remembers whether the input has been exhausted, so that the
// remaining devices are not started after EOF.
type keyReader struct {
	*bufio.Reader
	eof bool
}

func (k *keyReader) ReadByte() (byte, error) {
	c, err := k.Reader.ReadByte()
	if errors.Is(err, io.EOF) {
		k.eof = true
	}
	return c, err
}

// interactive runs a Session for each device in turn with the terminal in
// raw mode. A device that cannot be read is skipped; a failed write ends
// only that device's session.
func (r *runner) interactive(args []string) error {
	store := backlight.NewStore(r.root)
	devices := r.devices(store, args)
	if len(devices) == 0 {
		return nil
	}

	if _, err := io.WriteString(r.env.Stdout, recoveryHint); err != nil {
		return err
	}
	in := &keyReader{Reader: bufio.NewReader(r.env.Stdin)}
	return r.env.Term.RunRaw(func() error {
		for _, dev := range devices {
			reading, err := store.Read(dev)
			if err != nil {
				r.logger.Warn("skip device", "device", dev, "err", err)
				continue
			}
			s := interactive.NewSession(store, dev, reading, r.env.Term.Width(), r.env.Stdout)
			if err := s.Run(in); err != nil {
				if !errors.Is(err, backlight.ErrWriteFailed) {
					return err
				}
				r.logger.Warn("adjust", "device", dev, "err", err)
			}
			if in.eof {
				return nil
			}
		}
		return nil
	})
}
