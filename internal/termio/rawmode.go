// Package termio puts stdin into raw, byte-at-a-time mode for the feed
// subcommand, so keystrokes reach the peripheral's feeder one at a time
// without waiting on a newline.
//
// Grounded on core_engine/network/tap_device.go's use of
// golang.org/x/sys/unix for a Linux-only ioctl; adapted here from
// TUNSETIFF on a tap fd to TCGETS/TCSETS on fd 0.
package termio

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// RawMode disables canonical mode and echo on stdin and returns a restore
// function that must be called to put the terminal back the way it was.
func RawMode(fd int) (restore func() error, err error) {
	original, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, fmt.Errorf("termio: TCGETS: %w", err)
	}

	raw := *original
	raw.Lflag &^= unix.ICANON | unix.ECHO
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &raw); err != nil {
		return nil, fmt.Errorf("termio: TCSETS: %w", err)
	}

	return func() error {
		if err := unix.IoctlSetTermios(fd, unix.TCSETS, original); err != nil {
			return fmt.Errorf("termio: restore TCSETS: %w", err)
		}
		return nil
	}, nil
}
