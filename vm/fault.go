package vm

import (
	"errors"

	"github.com/kernel-sim/sok/ifc"
	"github.com/kernel-sim/sok/internal/kdebug"
	"github.com/kernel-sim/sok/proc"
)

// ErrSpuriousFault marks a fault on a virtual page that was already mapped
// — a kernel-internal condition (spec.md §4.9/§7).
var ErrSpuriousFault = errors.New("vm: spurious page fault on mapped page")

// ErrNoFrames marks the case where even eviction found nothing to steal —
// every frame, including reserved ones, is occupied. Kernel-internal.
var ErrNoFrames = errors.New("vm: no frame available even after eviction")

// HandleFault resolves a missing translation for the faulting process p
// (spec.md §4.9): locate a free frame or evict the LRU victim, swap the
// page in, and map it.
//
// The faulting virtual address lives in p.Ctx.Complement; pageSize is the
// MMU's page granularity (vmmu.PageSize in the reference stand-in).
func HandleFault(now int64, p *proc.PCB, tbl *proc.Table, mmu ifc.MMU, mem ifc.PhysicalMemory, alloc *Allocator, swap *Swap, pageSize int) error {
	vpage := int(p.Ctx.Complement) / pageSize

	if _, ok := mmu.Translate(p.PageTable, vpage); ok {
		return ErrSpuriousFault
	}

	frame, ok := alloc.FreeFrame()
	if !ok {
		frame, ok = alloc.Evict()
		if !ok {
			return ErrNoFrames
		}
		victim := alloc.Entry(frame)
		if owner := tbl.Get(victim.OwnerPID); owner != nil && owner.PageTable != nil {
			owner.PageTable.Unmap(victim.OwnerVPage)
		}
		kdebug.Tracef(kdebug.Fault, "evicted frame %d (pid %d, vpage %d)", frame, victim.OwnerPID, victim.OwnerVPage)
	}

	buf := make([]byte, pageSize)
	swap.ReadPage(p.DiskBase, vpage, pageSize, buf)
	mem.LoadFrame(frame, buf)

	alloc.Occupy(frame, p.PID, vpage, now)
	p.PageTable.Map(vpage, frame)
	kdebug.PIDTracef(kdebug.Fault, p.PID, "faulted in vpage %d -> frame %d", vpage, frame)
	return nil
}
