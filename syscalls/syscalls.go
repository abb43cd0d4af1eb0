// Package syscalls implements the five-call ABI spec.md §4.6/§6 defines:
// LE, ESCR, CRIA_PROC, MATA_PROC, ESPERA_PROC. Dispatch has the shape
// kernel.SyscallFunc expects and is wired in by boot.Reset — kernel never
// imports this package directly (spec.md §9's single-owned-kernel-struct
// redesign flag: syscalls is a collaborator operating on a *kernel.Kernel
// borrow, not a second locus of kernel state).
package syscalls

import (
	"github.com/kernel-sim/sok/ifc"
	"github.com/kernel-sim/sok/internal/kdebug"
	"github.com/kernel-sim/sok/kernel"
	"github.com/kernel-sim/sok/proc"
)

// ID is one of the five syscall numbers arriving in the caller's regA.
type ID int32

const (
	LE         ID = 1
	ESCR       ID = 2
	CriaProc   ID = 3
	MataProc   ID = 4
	EsperaProc ID = 5
)

// maxFilenameLen bounds the CRIA_PROC filename copy so a corrupt or
// unterminated string in user memory can't loop forever.
const maxFilenameLen = 255

// Dispatch routes the trapping process's regA to the matching handler
// (spec.md §4.6). An id outside 1-5 kills the caller and flags an
// internal error, per spec.md §4.6's "Unknown syscall" clause.
func Dispatch(k *kernel.Kernel, p *proc.PCB, now int64) {
	kdebug.PIDTracef(kdebug.Sys, p.PID, "syscall %d (regX=%d)", p.Ctx.A, p.Ctx.X)
	switch ID(p.Ctx.A) {
	case LE:
		le(k, p, now)
	case ESCR:
		escr(k, p, now)
	case CriaProc:
		criaProc(k, p, now)
	case MataProc:
		mataProc(k, p, now)
	case EsperaProc:
		esperaProc(k, p, now)
	default:
		k.Terminate(p, now)
		k.ClearCurrent()
		k.FlagInternal()
	}
}

// le is syscall 1 (spec.md §4.6): poll the keyboard subdevice; if a byte
// is waiting, deliver it into regA, otherwise block the caller on
// input_dev. The stand-in ifc.IOController.Read for the keyboard
// subdevice both checks readiness and consumes the byte in one
// non-blocking call, matching spec.md §5's "no await, no spinning".
func le(k *kernel.Kernel, p *proc.PCB, now int64) {
	val, ready, err := k.IO.Read(p.InputDev)
	if err != nil {
		k.FlagInternal()
		return
	}
	if !ready {
		k.BlockCurrentOnDevice(p, p.InputDev, now)
		return
	}
	p.Ctx.A = int32(val)
}

// escr is syscall 2 (spec.md §4.6): poll the screen subdevice; if ready,
// write regX and clear regA, otherwise block the caller on output_dev.
func escr(k *kernel.Kernel, p *proc.PCB, now int64) {
	ready, err := k.IO.Write(p.OutputDev, int(p.Ctx.X))
	if err != nil {
		k.FlagInternal()
		return
	}
	if !ready {
		k.BlockCurrentOnDevice(p, p.OutputDev, now)
		return
	}
	p.Ctx.A = 0
}

// criaProc is syscall 3 (spec.md §4.6): regX names a NUL-terminated
// filename in the caller's address space, read via MMU-translated reads.
// Any failure — unreadable string, unknown program, no free PCB slot, no
// free terminal — writes -1 to the caller's regA and leaves no partial
// allocation behind (spec.md §9's Open Question on CRIA_PROC cleanup):
// the terminal is the only resource claimed before a possible later
// failure, so it is the only one a failure path must release.
func criaProc(k *kernel.Kernel, p *proc.PCB, now int64) {
	name, ok := readCString(k, uint32(p.Ctx.X))
	if !ok {
		p.Ctx.A = -1
		return
	}

	entry, ok := k.Catalog[name]
	if !ok {
		p.Ctx.A = -1
		return
	}

	base, ok := k.AllocateTerm()
	if !ok {
		p.Ctx.A = -1
		return
	}
	if !k.Table.HasCapacity() {
		k.ReleaseTerm(base)
		p.Ctx.A = -1
		return
	}

	pid := k.AllocatePID()
	child := proc.New(pid, base+ifc.OffKeyboard, base+ifc.OffScreen, k.Sched.Quantum, entry.Base, entry.Entry, now)
	child.HasTerminal = true
	child.PageTable = k.NewPageTable(k.VPagesPerProc)
	k.Table.Put(child)
	k.Sched.Enqueue(pid)
	k.Rec.RecordCreation()

	p.Ctx.A = int32(pid)
}

// readCString copies bytes one at a time through the currently installed
// (caller's) page table until a NUL or maxFilenameLen is hit. It reads in
// ModeSupervisor (ifc.MMU's doc comment calls this out by name) so a
// missing translation surfaces as a plain error here — "unreadable
// string", user-fatal only for the CRIA_PROC call itself — rather than
// as ifc.ErrInternal, which means something else entirely on the normal
// user-execution path (a page that should already have faulted in).
func readCString(k *kernel.Kernel, addr uint32) (string, bool) {
	buf := make([]byte, 0, 32)
	for i := 0; i < maxFilenameLen; i++ {
		val, err := k.MMU.Read(addr+uint32(i), ifc.ModeSupervisor)
		if err != nil {
			return "", false
		}
		if val == 0 {
			return string(buf), true
		}
		buf = append(buf, byte(val))
	}
	return "", false
}

// mataProc is syscall 4 (spec.md §4.6): regX is the target pid, or 0 for
// self. Self-termination clears "current" so the scheduler reaps the
// caller on this same pass; a remote kill returns success/failure in the
// caller's regA without touching "current": 0 if the target is live or
// already Terminated but not yet reaped, -1 if no PCB has that pid. Self
// writes no regA value —
// the caller is gone (spec.md §9's Open Question).
func mataProc(k *kernel.Kernel, p *proc.PCB, now int64) {
	target := int(p.Ctx.X)
	if target == 0 {
		k.Terminate(p, now)
		k.ClearCurrent()
		return
	}

	victim := k.Table.Get(target)
	if victim == nil {
		p.Ctx.A = -1
		return
	}
	if victim.State == proc.Terminated {
		p.Ctx.A = 0
		return
	}
	k.Terminate(victim, now)
	p.Ctx.A = 0
}

// esperaProc is syscall 5 (spec.md §4.6): regX is the awaited pid. Self-
// wait and non-positive pids are rejected; an unknown or already-
// terminated target is reported as immediate success (the target is
// assumed already gone/going); otherwise the caller blocks.
func esperaProc(k *kernel.Kernel, p *proc.PCB, now int64) {
	target := int(p.Ctx.X)
	if target <= 0 || target == p.PID {
		p.Ctx.A = -1
		return
	}

	victim := k.Table.Get(target)
	if victim == nil || victim.State == proc.Terminated {
		p.Ctx.A = 0
		return
	}

	k.BlockCurrentOnWait(p, target, now)
}
