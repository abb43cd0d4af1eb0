// Package vcpu is a reference CPU stand-in: the fixed memory save area
// (spec.md §6: slots 50-53 for PC/A/err/complement, 59 for X, trap handler
// at 60) plus a "call-C" style trap mechanism that invokes a registered
// kernel entry point with the IRQ kind in register A, mirroring the
// reference simulator's host-function callback hook.
package vcpu

import "github.com/kernel-sim/sok/ifc"

// Stub is a minimal CPU: it just holds the save-area slots and a trap
// callback. It never executes user instructions; tests and the demo driver
// call Trap directly to simulate a hardware trap.
type Stub struct {
	save    ifc.SaveArea
	handler func(ifc.IRQ) int
	failRead bool // test hook: force ReadSaveArea to return an error
}

// New returns a Stub with a zeroed save area.
func New() *Stub {
	return &Stub{}
}

// RegisterTrapHandler installs the function invoked on Trap; it returns the
// CPU's next run mode (the kernel's "resume user" vs. "halt" return code),
// mirroring the host callback the reference simulator's call-C instruction
// invokes.
func (s *Stub) RegisterTrapHandler(h func(ifc.IRQ) int) {
	s.handler = h
}

// Trap simulates the CPU trap stub: it is given the IRQ kind and the
// current register values to place in the save area, then invokes the
// registered handler and returns its return code.
func (s *Stub) Trap(kind ifc.IRQ, pc uint32, regA, regX int32, errCode ifc.CPUErr, complement uint32) int {
	s.save = ifc.SaveArea{PC: pc, RegA: regA, RegX: regX, Err: errCode, Complement: complement}
	if s.handler == nil {
		return 1
	}
	return s.handler(kind)
}

// ForceReadFailure(true) makes every ReadSaveArea call fail until
// ForceReadFailure(false) is called, simulating the kernel-internal
// "failure reading the CPU save area" condition (spec.md §7).
func (s *Stub) ForceReadFailure(fail bool) {
	s.failRead = fail
}

func (s *Stub) ReadSaveArea() (ifc.SaveArea, error) {
	if s.failRead {
		return ifc.SaveArea{}, ifc.ErrInternal
	}
	return s.save, nil
}

func (s *Stub) WriteSaveArea(sa ifc.SaveArea) error {
	s.save = sa
	return nil
}

var _ ifc.CPU = (*Stub)(nil)
