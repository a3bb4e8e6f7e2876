package collector

import (
	"context"
	"fmt"
	"log/slog"
	"syscall"
)

// BacklightEvents listens on the kernel uevent netlink socket and delivers
// backlight change events until ctx is cancelled.
func BacklightEvents(ctx context.Context, logger *slog.Logger) (<-chan Uevent, error) {
	fd, err := syscall.Socket(syscall.AF_NETLINK, syscall.SOCK_RAW, syscall.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, fmt.Errorf("open netlink socket: %w", err)
	}

	addr := &syscall.SockaddrNetlink{
		Family: syscall.AF_NETLINK,
		Groups: 1, // kernel broadcast group
	}
	if err := syscall.Bind(fd, addr); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("bind netlink socket: %w", err)
	}

	// Wake up once a second so cancellation is noticed.
	timeout := syscall.Timeval{Sec: 1}
	if err := syscall.SetsockoptTimeval(fd, syscall.SOL_SOCKET, syscall.SO_RCVTIMEO, &timeout); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("set netlink timeout: %w", err)
	}

	events := make(chan Uevent, 1)
	go func() {
		defer close(events)
		defer syscall.Close(fd)
		buf := make([]byte, 4096)
		for ctx.Err() == nil {
			n, _, err := syscall.Recvfrom(fd, buf, 0)
			if err != nil {
				switch err {
				case syscall.EAGAIN, syscall.EINTR, syscall.ENOBUFS:
					continue
				}
				logger.Error("netlink recv", "err", err)
				return
			}

			ev, ok := parseBacklightUevent(buf[:n])
			if !ok {
				continue
			}
			logger.Debug("backlight uevent", "device", ev.Device, "action", ev.Action)
			select {
			case events <- ev:
			default:
			}
		}
	}()

	return events, nil
}
