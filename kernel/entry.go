package kernel

import (
	"github.com/kernel-sim/sok/ifc"
	"github.com/kernel-sim/sok/proc"
)

// Entry is the single point every CPU trap funnels through (spec.md §4.1):
// update accounting for the elapsed cycle, save the trapping process's
// context, dispatch on the IRQ kind, resolve any pending I/O, run the
// scheduler, and dispatch the chosen process (or halt). It is registered
// with the CPU stand-in via RegisterTrapHandler and is the kernel's only
// exported entry point besides construction and boot.
func (k *Kernel) Entry(kind ifc.IRQ) int {
	k.cycles++
	now := k.cycles

	cur := k.current()
	k.Rec.UpdateTimes(now, cur, k.Table.All())

	if !k.internalErr {
		if err := k.saveContext(cur); err != nil {
			k.flagInternal()
		}
	}

	if !k.internalErr {
		k.dispatchIRQ(kind, now)
	}
	if !k.internalErr {
		k.resolvePending(now)
	}

	k.Sched.Schedule(now, &k.Table, &k.History, k.Rec, k.releaseProcess)

	return k.dispatch()
}

// saveContext copies the CPU's save area into the running process's
// context. A nil cur (no process was running, e.g. the very first RESET
// entry) is not an error — there's nothing to save. A failure to read the
// save area is kernel-internal (spec.md §4.1/§7).
func (k *Kernel) saveContext(cur *proc.PCB) error {
	sa, err := k.CPU.ReadSaveArea()
	if err != nil {
		return ifc.ErrInternal
	}
	if cur == nil {
		return nil
	}
	cur.Ctx.PC = sa.PC
	cur.Ctx.A = sa.RegA
	cur.Ctx.X = sa.RegX
	cur.Ctx.Err = sa.Err
	cur.Ctx.Complement = sa.Complement
	return nil
}
