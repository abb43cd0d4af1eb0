package kernel

import (
	"github.com/kernel-sim/sok/ifc"
	"github.com/kernel-sim/sok/proc"
)

// SyscallFunc handles an IRQSystem trap for the currently running process.
// Kernel never imports the syscalls package directly — syscalls imports
// kernel instead — so this hook is wired by boot.Reset.
type SyscallFunc func(k *Kernel, p *proc.PCB, now int64)

// dispatchIRQ routes on the trap kind (spec.md §4.2), incrementing the
// per-kind counter metrics.Recorder.IRQCount tracks regardless of outcome.
// An IRQ kind outside the four the ABI defines is kernel-internal.
func (k *Kernel) dispatchIRQ(kind ifc.IRQ, now int64) {
	if kind < ifc.IRQReset || kind > ifc.IRQClock {
		k.flagInternal()
		return
	}
	k.Rec.IRQCount[kind]++

	switch kind {
	case ifc.IRQReset:
		// boot.Reset performs the one-time reset sequence before the trap
		// loop starts; a RESET trap arriving mid-run is only counted.
	case ifc.IRQSystem:
		if k.Syscall == nil {
			k.flagInternal()
			return
		}
		p := k.current()
		if p == nil {
			k.flagInternal()
			return
		}
		k.Syscall(k, p, now)
	case ifc.IRQCPUErr:
		k.handleCPUError(now)
	case ifc.IRQClock:
		k.Sched.Tick(now, &k.Table, k.Rec)
	}
}
