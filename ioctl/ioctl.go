// Package ioctl is a reference I/O controller: four character terminals
// (keyboard/keyboard-ready/screen/screen-ready) plus a real-time clock,
// grounded in the reference simulator's emu/device.Device interface and its
// emu/model1052 terminal (command polling, busy/ready split) and emu/timer
// clock. It exists to exercise ifc.IOController end to end in tests and the
// demo binary; it is not a faithful device model.
package ioctl

import "github.com/kernel-sim/sok/ifc"

// Four terminals, base device ids, matching spec.md §6.
const (
	TermA = 0
	TermB = 4
	TermC = 8
	TermD = 12
)

// Per-terminal subdevice offsets re-exported from ifc for convenience —
// see ifc.OffKeyboard et al. for the ABI-level definition and the dev_id
// % 4 open-question resolution.
const (
	OffKeyboard      = ifc.OffKeyboard
	OffKeyboardReady = ifc.OffKeyboardReady
	OffScreen        = ifc.OffScreen
	OffScreenReady   = ifc.OffScreenReady
)

// Clock device ids.
const (
	ClockInstructions = 16
	ClockTimer        = 17
	ClockInterrupt    = 18
)

// NumTerminals is the fixed terminal count the ABI assumes.
const NumTerminals = 4

// Terminal holds the state of one keyboard+screen pair: a byte queue fed by
// whatever drives input (a test, or the raw-mode host terminal) and a sink
// for output.
type Terminal struct {
	inQueue  []byte
	screen   []byte
	inUse    bool
	keyReady bool
}

// Clock is the real-time interrupt source.
type Clock struct {
	instructions int
	timer        int
	interrupt    bool
}

// Controller is the reference IOController: four terminals plus one clock.
type Controller struct {
	Terms [NumTerminals]Terminal
	Clk   Clock
}

// New builds a Controller with every terminal free.
func New() *Controller {
	return &Controller{}
}

// AllocateTerminal returns the base device id of the first terminal not
// already in use, or ok=false if all four are taken (spec.md §8 boundary:
// CRIA_PROC with all four terminals in use).
func (c *Controller) AllocateTerminal() (base int, ok bool) {
	for i := range c.Terms {
		if !c.Terms[i].inUse {
			c.Terms[i].inUse = true
			return i * 4, true
		}
	}
	return 0, false
}

// ReleaseTerminal frees the terminal owning base, clearing any queued
// input/output.
func (c *Controller) ReleaseTerminal(base int) {
	idx := base / 4
	if idx < 0 || idx >= NumTerminals {
		return
	}
	c.Terms[idx] = Terminal{}
}

// Feed queues a byte of keyboard input for the terminal at base — used by
// tests and the raw-mode host bridge, never by the kernel itself.
func (c *Controller) Feed(base int, b byte) {
	idx := base / 4
	if idx < 0 || idx >= NumTerminals {
		return
	}
	c.Terms[idx].inQueue = append(c.Terms[idx].inQueue, b)
	c.Terms[idx].keyReady = true
}

// Screen returns everything written to the terminal at base so far.
func (c *Controller) Screen(base int) []byte {
	idx := base / 4
	if idx < 0 || idx >= NumTerminals {
		return nil
	}
	return c.Terms[idx].screen
}

// ArmTimer programs the clock with ticks remaining until the next
// interrupt (boot.ResetImages and the demo binary's Step both call this).
func (c *Controller) ArmTimer(ticks int) {
	c.Clk.timer = ticks
	c.Clk.interrupt = false
}

// Tick advances the clock by one instruction, raising the interrupt flag
// when the timer reaches zero.
func (c *Controller) Tick() {
	c.Clk.instructions++
	if c.Clk.timer > 0 {
		c.Clk.timer--
		if c.Clk.timer == 0 {
			c.Clk.interrupt = true
		}
	}
}

// Read implements ifc.IOController.
func (c *Controller) Read(dev int) (val int, ready bool, err error) {
	switch dev {
	case ClockInstructions:
		return c.Clk.instructions, true, nil
	case ClockTimer:
		return c.Clk.timer, true, nil
	case ClockInterrupt:
		v := 0
		if c.Clk.interrupt {
			v = 1
		}
		return v, true, nil
	}

	idx := dev / 4
	if idx < 0 || idx >= NumTerminals {
		return 0, false, errInvalidDevice(dev)
	}
	term := &c.Terms[idx]
	switch dev % 4 {
	case OffKeyboard:
		if !term.keyReady || len(term.inQueue) == 0 {
			return 0, false, nil
		}
		b := term.inQueue[0]
		term.inQueue = term.inQueue[1:]
		term.keyReady = len(term.inQueue) > 0
		return int(b), true, nil
	case OffKeyboardReady:
		v := 0
		if term.keyReady {
			v = 1
		}
		return v, true, nil
	case OffScreenReady:
		return 1, true, nil // the reference screen sink is never busy
	}
	return 0, false, errInvalidDevice(dev)
}

// Write implements ifc.IOController.
func (c *Controller) Write(dev int, val int) (ready bool, err error) {
	switch dev {
	case ClockTimer:
		c.Clk.timer = val
		return true, nil
	case ClockInterrupt:
		c.Clk.interrupt = val != 0
		return true, nil
	}

	idx := dev / 4
	if idx < 0 || idx >= NumTerminals || dev%4 != OffScreen {
		return false, errInvalidDevice(dev)
	}
	c.Terms[idx].screen = append(c.Terms[idx].screen, byte(val))
	return true, nil
}

type errInvalidDevice int

func (e errInvalidDevice) Error() string {
	return "ioctl: invalid device id"
}

var _ ifc.IOController = (*Controller)(nil)
