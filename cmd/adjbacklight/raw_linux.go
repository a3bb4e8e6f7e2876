//go:build linux

package main

import "golang.org/x/sys/unix"

// makeRaw is `stty -icanon -echo -isig`: keys arrive one byte at a time and
// Ctrl-C reaches the program as 0x03. Output processing is left alone so
// "\n" still returns the carriage.
func makeRaw(fd int) (func() error, error) {
	saved, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, err
	}

	raw := *saved
	raw.Lflag &^= unix.ICANON | unix.ECHO | unix.ISIG
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETSF, &raw); err != nil {
		return nil, err
	}

	return func() error {
		return unix.IoctlSetTermios(fd, unix.TCSETSF, saved)
	}, nil
}
