package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/term"
)

const (
	hideCursor   = "\033[?25l"
	showCursor   = "\033[?25h"
	defaultWidth = 80
)

// terminal implements cli.Terminal on top of the process's stdin/stdout.
type terminal struct {
	in  *os.File
	out *os.File
}

func newTerminal(in, out *os.File) *terminal {
	return &terminal{in: in, out: out}
}

func (t *terminal) IsInteractive() bool {
	return term.IsTerminal(int(t.in.Fd()))
}

func (t *terminal) Width() int {
	w, _, err := term.GetSize(int(t.out.Fd()))
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return w
}

// RunRaw switches stdin out of canonical mode, hides the cursor and runs fn.
// The terminal is restored when fn returns and also when the process is
// terminated by a signal while fn is running.
func (t *terminal) RunRaw(fn func() error) error {
	restore, err := makeRaw(int(t.in.Fd()))
	if err != nil {
		return fmt.Errorf("set terminal mode: %w", err)
	}

	var once sync.Once
	var restoreErr error
	cleanup := func() {
		once.Do(func() {
			fmt.Fprint(t.out, showCursor)
			restoreErr = restore()
		})
	}
	defer cleanup()
	fmt.Fprint(t.out, hideCursor)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case sig := <-sigCh:
			cleanup()
			code := 1
			if s, ok := sig.(syscall.Signal); ok {
				code = 128 + int(s)
			}
			os.Exit(code)
		case <-done:
		}
	}()

	if err := fn(); err != nil {
		return err
	}
	cleanup()
	if restoreErr != nil {
		return fmt.Errorf("restore terminal mode: %w", restoreErr)
	}
	return nil
}
