// Package kernel is the interrupt/syscall dispatcher and the thread that
// ties every other package together (spec.md §2's control flow): on every
// CPU trap, Kernel.Entry runs metric-time-update, context-save, IRQ
// dispatch, pending-I/O resolution, scheduling and dispatch in that order,
// synchronously, to completion — spec.md §5's single-threaded cooperative
// model. Kernel is one owned value threaded through every handler; there
// is no package-level mutable state (spec.md §9's REDESIGN FLAG against
// the reference simulator's package-level memory/device globals).
package kernel

import (
	"github.com/kernel-sim/sok/ifc"
	"github.com/kernel-sim/sok/metrics"
	"github.com/kernel-sim/sok/proc"
	"github.com/kernel-sim/sok/sched"
	"github.com/kernel-sim/sok/vm"
)

// Return codes the dispatcher hands back to the CPU stand-in: whether it
// should resume the chosen process or halt until the next external
// interrupt (spec.md §2).
const (
	RcHalt   = 0
	RcResume = 1
)

// NewPageTableFunc builds a fresh, empty per-process page table. Injected
// so kernel never imports a concrete MMU implementation.
type NewPageTableFunc func(npages int) ifc.PageTable

// AllocateTerminalFunc hands out a free terminal's base device id, used by
// the CRIA_PROC syscall handler. Injected so kernel never imports ioctl's
// concrete type.
type AllocateTerminalFunc func() (base int, ok bool)

// ReleaseTerminalFunc frees the terminal at base, called both when a
// process holding one terminates and when CRIA_PROC must unwind a partial
// allocation (spec.md §7's CRIA_PROC cleanup).
type ReleaseTerminalFunc func(base int)

// ProgramEntry describes one catalog entry available to CRIA_PROC: a
// program image preloaded into swap once and shared read-only across every
// process that runs it (spec.md §1's non-goals exclude writeback, so
// sharing the backing copy across instances is safe).
type ProgramEntry struct {
	Base  int
	Size  int
	Entry uint32
}

// Kernel owns every piece of mutable kernel state. It is constructed once
// by New, initialized by boot.Reset, and threaded by reference through
// every trap.
type Kernel struct {
	CPU ifc.CPU
	MMU ifc.MMU
	Mem ifc.PhysicalMemory
	IO  ifc.IOController

	Table   proc.Table
	History proc.History
	Sched   *sched.Scheduler
	Alloc   *vm.Allocator
	Swap    *vm.Swap
	Rec     *metrics.Recorder

	PageSize      int
	VPagesPerProc int
	NewPageTable  NewPageTableFunc
	AllocateTerm  AllocateTerminalFunc
	ReleaseTerm   ReleaseTerminalFunc
	Syscall       SyscallFunc
	Catalog       map[string]ProgramEntry

	nextPID     int
	cycles      int64
	internalErr bool
}

// New assembles a Kernel from its collaborators. Callers still need to run
// boot.Reset to create init and arm the clock.
func New(cpu ifc.CPU, mmu ifc.MMU, mem ifc.PhysicalMemory, io ifc.IOController,
	schedMode sched.Mode, quantum int, alloc *vm.Allocator, swap *vm.Swap,
	pageSize, vpagesPerProc int, newPT NewPageTableFunc) *Kernel {
	return &Kernel{
		CPU:           cpu,
		MMU:           mmu,
		Mem:           mem,
		IO:            io,
		Sched:         sched.New(schedMode, quantum),
		Alloc:         alloc,
		Swap:          swap,
		Rec:           metrics.NewRecorder(0),
		PageSize:      pageSize,
		VPagesPerProc: vpagesPerProc,
		NewPageTable:  newPT,
		Catalog:       make(map[string]ProgramEntry),
		nextPID:       1,
	}
}

// Now returns the kernel's internal cycle counter — this simulator has no
// wall clock; every trap advances time by exactly one unit, matching the
// reference simulator's cycle-based event scheduling rather than real
// time.
func (k *Kernel) Now() int64 {
	return k.cycles
}

// InternalError reports whether the kernel has latched the unrecoverable
// internal-error condition (spec.md §7): once set, Entry always halts.
func (k *Kernel) InternalError() bool {
	return k.internalErr
}

// flagInternal latches the internal-error condition. There is no reset: the
// kernel never attempts recovery (spec.md §7).
func (k *Kernel) flagInternal() {
	k.internalErr = true
}

// current returns the running PCB, or nil.
func (k *Kernel) current() *proc.PCB {
	if k.Sched.Current == 0 {
		return nil
	}
	return k.Table.Get(k.Sched.Current)
}

// AllocatePID returns the next never-reused pid (spec.md §3). Pids are
// monotonic for the life of the kernel even though the process table
// reclaims a terminated pid's storage on reap — the two are independent,
// matching spec.md §3's "monotonically assigned... never reused" versus
// §3's frame/table reclamation on reap.
func (k *Kernel) AllocatePID() int {
	pid := k.nextPID
	k.nextPID++
	return pid
}

// releaseProcess frees every resource a terminated PCB holds: its
// terminal, its frames, and its page table. Passed as a sched.ReleaseFunc
// to Scheduler.Reap/Schedule.
func (k *Kernel) releaseProcess(p *proc.PCB) {
	if p.HasTerminal && k.ReleaseTerm != nil {
		k.ReleaseTerm(p.InputDev)
	}
	k.Alloc.FreeOwnedBy(p.PID)
	p.PageTable = nil
}
