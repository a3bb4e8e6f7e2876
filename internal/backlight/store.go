package backlight

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultRoot is where the kernel exposes backlight devices.
const DefaultRoot = "/sys/class/backlight"

const (
	maxBrightnessFile = "max_brightness"
	brightnessFile    = "brightness"
)

var (
	ErrNotFound    = errors.New("backlight device not found")
	ErrInvalid     = errors.New("invalid backlight value")
	ErrWriteFailed = errors.New("backlight write failed")
)

// Reading is a device's brightness at one instant.
type Reading struct {
	Current int64 `json:"current"`
	Maximum int64 `json:"maximum"`
}

// Ratio returns Current/Maximum.
func (r Reading) Ratio() float64 {
	return float64(r.Current) / float64(r.Maximum)
}

// Store reads and writes the attribute files of devices under a root
// directory. Nothing is cached: every call goes to the filesystem.
type Store struct {
	root string
}

// NewStore returns a Store rooted at root, or DefaultRoot when root is empty.
func NewStore(root string) *Store {
	if root == "" {
		root = DefaultRoot
	}
	return &Store{root: root}
}

// Root returns the device root directory.
func (s *Store) Root() string {
	return s.root
}

// DeviceName reduces a caller-supplied identifier to a device name: anything
// up to and including the last path separator is dropped.
func DeviceName(id string) string {
	if i := strings.LastIndexByte(id, '/'); i >= 0 {
		return id[i+1:]
	}
	return id
}

func (s *Store) path(name, file string) (string, error) {
	name = DeviceName(name)
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return filepath.Join(s.root, name, file), nil
}

// Maximum reads max_brightness. Values below 1 are ErrInvalid.
func (s *Store) Maximum(name string) (int64, error) {
	path, err := s.path(name, maxBrightnessFile)
	if err != nil {
		return 0, err
	}
	v, err := readValue(path)
	if err != nil {
		return 0, err
	}
	if v < 1 {
		return 0, fmt.Errorf("%w: %s = %d", ErrInvalid, path, v)
	}
	return v, nil
}

// Current reads brightness. Zero is a valid reading.
func (s *Store) Current(name string) (int64, error) {
	path, err := s.path(name, brightnessFile)
	if err != nil {
		return 0, err
	}
	return readValue(path)
}

// Read returns both values for a device, maximum first. The current value
// is clamped to [0, maximum].
func (s *Store) Read(name string) (Reading, error) {
	maxVal, err := s.Maximum(name)
	if err != nil {
		return Reading{}, err
	}
	cur, err := s.Current(name)
	if err != nil {
		return Reading{}, err
	}
	return Reading{Current: min(cur, maxVal), Maximum: maxVal}, nil
}

// SetCurrent writes value to the device's brightness file as decimal text
// followed by a newline.
func (s *Store) SetCurrent(name string, value int64) error {
	path, err := s.path(name, brightnessFile)
	if err != nil {
		return err
	}
	if value < 0 {
		return fmt.Errorf("%w: negative value %d", ErrWriteFailed, value)
	}

	// Never create: a missing attribute means a missing device.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrWriteFailed, path, err)
	}
	werr := writeFull(f, []byte(strconv.FormatInt(value, 10)+"\n"))
	cerr := f.Close()
	if werr != nil {
		return fmt.Errorf("%w: write %s: %w", ErrWriteFailed, path, werr)
	}
	if cerr != nil {
		return fmt.Errorf("%w: close %s: %w", ErrWriteFailed, path, cerr)
	}
	return nil
}

// Devices lists the entries under the root, skipping dot entries. The
// sequence reads the directory lazily in the order the OS returns it and
// can only be consumed once.
func (s *Store) Devices() (iter.Seq[string], error) {
	dir, err := os.Open(s.root)
	if err != nil {
		return nil, fmt.Errorf("open device root: %w", err)
	}
	return func(yield func(string) bool) {
		defer dir.Close()
		for {
			entries, err := dir.ReadDir(16)
			for _, e := range entries {
				name := e.Name()
				if name == "" || name[0] == '.' {
					continue
				}
				if !yield(name) {
					return
				}
			}
			if err != nil {
				return
			}
		}
	}, nil
}

func readValue(path string) (int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	v, err := parseValue(string(data))
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalid, path, err)
	}
	return v, nil
}

// parseValue accepts a non-negative decimal with at most one trailing newline.
func parseValue(text string) (int64, error) {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return 0, errors.New("empty value")
	}
	for i := 0; i < len(text); i++ {
		if text[i] < '0' || text[i] > '9' {
			return 0, fmt.Errorf("unexpected character %q", text[i])
		}
	}
	return strconv.ParseInt(text, 10, 64)
}

// writeFull keeps writing until buf is consumed or the writer fails.
func writeFull(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		buf = buf[n:]
	}
	return nil
}
