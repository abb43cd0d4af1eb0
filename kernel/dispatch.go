package kernel

import "github.com/kernel-sim/sok/ifc"

// dispatch is the final step of Entry (spec.md §4.5): if the kernel has
// latched an internal error, or no process is current, return the halt
// code without touching the CPU. Otherwise install the running process's
// page table and write its context back to the save area so it resumes
// exactly where it trapped.
func (k *Kernel) dispatch() int {
	if k.internalErr {
		return RcHalt
	}

	p := k.current()
	if p == nil {
		return RcHalt
	}

	k.MMU.SetPageTable(p.PageTable)
	sa := ifc.SaveArea{
		PC:         p.Ctx.PC,
		RegA:       p.Ctx.A,
		RegX:       p.Ctx.X,
		Err:        p.Ctx.Err,
		Complement: p.Ctx.Complement,
	}
	if err := k.CPU.WriteSaveArea(sa); err != nil {
		k.flagInternal()
		return RcHalt
	}
	return RcResume
}
