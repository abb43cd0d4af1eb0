package kernel

import (
	"github.com/kernel-sim/sok/ifc"
	"github.com/kernel-sim/sok/vm"
)

// handleCPUError is the IRQCPUErr handler (spec.md §4.8). A page-absent
// error is demand paging's normal case and goes to the page-fault handler;
// every other CPU error (invalid instruction, protection violation) is
// fatal to the faulting process only, not to the kernel: it is terminated
// and its waiters are woken. A failure inside the fault handler itself
// (spurious fault on an already-mapped page, or no frame available even
// after eviction) is kernel-internal.
func (k *Kernel) handleCPUError(now int64) {
	p := k.current()
	if p == nil {
		k.flagInternal()
		return
	}

	if p.Ctx.Err == ifc.ErrPageAbsent {
		err := vm.HandleFault(now, p, &k.Table, k.MMU, k.Mem, k.Alloc, k.Swap, k.PageSize)
		if err != nil {
			k.flagInternal()
		}
		return
	}

	k.Terminate(p, now)
}
