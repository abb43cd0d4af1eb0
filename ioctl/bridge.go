package ioctl

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// escByte aborts a raw-mode bridging session; there is no other portable
// way to signal "stop" once stdin is in raw mode (every other byte,
// including Ctrl-C, is meant to reach the simulated keyboard).
const escByte = 0x1b

// RunRawBridge puts the host terminal into raw mode and copies real
// keypresses from stdin into the terminal at base until Esc is read,
// restoring the host terminal's mode on return. It exists so the demo
// binary's four simulated terminals can be driven from a real keyboard
// instead of the `key` console command — the reference simulator's own
// terminal devices are likewise fed from a real line discipline (telnet)
// rather than synthetic bytes. Not used by any test: go test has no
// controlling terminal to put in raw mode.
func RunRawBridge(c *Controller, base int) error {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("ioctl: entering raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		if buf[0] == escByte {
			return nil
		}
		c.Feed(base, buf[0])
	}
}
