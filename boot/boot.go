// Package boot runs the kernel's one-time reset sequence (spec.md §4.3):
// load and validate the trap-handler image, arm the clock, preload every
// catalog program into swap, wire the syscall dispatcher, and create and
// enqueue init.
package boot

import (
	"fmt"

	"github.com/kernel-sim/sok/ifc"
	"github.com/kernel-sim/sok/ioctl"
	"github.com/kernel-sim/sok/kernel"
	"github.com/kernel-sim/sok/loader"
	"github.com/kernel-sim/sok/proc"
	"github.com/kernel-sim/sok/syscalls"
	"github.com/kernel-sim/sok/vcpu"
)

// TrapHandlerAddr is the fixed virtual address (spec.md §6: the trap stub
// jumps to address 60) the trap-handler image must declare as its entry
// point. A mismatch is fatal (spec.md §4.3).
const TrapHandlerAddr = 60

// Program names one catalog entry to preload into swap at boot: a
// filename CRIA_PROC can later name, and the path to its .maq image on
// the host filesystem.
type Program struct {
	Name string
	Path string
}

// Reset loads the trap handler and every catalog program from disk, then
// runs ResetImages. Call this from the demo binary; tests that want to
// avoid the filesystem should build *loader.Image values directly and
// call ResetImages.
func Reset(k *kernel.Kernel, cpu *vcpu.Stub, io *ioctl.Controller, trapImagePath string, programs []Program, initName string) error {
	trap, err := loader.LoadFile(trapImagePath)
	if err != nil {
		return fmt.Errorf("boot: loading trap handler: %w", err)
	}

	catalog := make(map[string]*loader.Image, len(programs))
	for _, prog := range programs {
		im, err := loader.LoadFile(prog.Path)
		if err != nil {
			return fmt.Errorf("boot: loading %s: %w", prog.Name, err)
		}
		catalog[prog.Name] = im
	}

	return ResetImages(k, cpu, io, trap, catalog, initName)
}

// ResetImages is the reset sequence proper, operating on already-parsed
// images so it can be exercised without touching the filesystem.
func ResetImages(k *kernel.Kernel, cpu *vcpu.Stub, io *ioctl.Controller, trap *loader.Image, catalog map[string]*loader.Image, initName string) error {
	if trap.EntryAddr != TrapHandlerAddr {
		return fmt.Errorf("boot: trap handler entry %d does not match required slot %d", trap.EntryAddr, TrapHandlerAddr)
	}

	cpu.RegisterTrapHandler(k.Entry)
	io.ArmTimer(k.Sched.Quantum)
	k.Syscall = syscalls.Dispatch

	for name, im := range catalog {
		base, err := k.Swap.Allocate(im.Bytes())
		if err != nil {
			return fmt.Errorf("boot: swapping in %s: %w", name, err)
		}
		k.Catalog[name] = kernel.ProgramEntry{Base: base, Size: len(im.Words) * 4, Entry: im.EntryAddr}
	}

	entry, ok := k.Catalog[initName]
	if !ok {
		return fmt.Errorf("boot: init program %q not in catalog", initName)
	}

	base, ok := k.AllocateTerm()
	if !ok {
		return fmt.Errorf("boot: no terminal available for init")
	}

	pid := k.AllocatePID()
	proc0 := proc.New(pid, base+ifc.OffKeyboard, base+ifc.OffScreen, k.Sched.Quantum, entry.Base, entry.Entry, k.Now())
	proc0.HasTerminal = true
	proc0.PageTable = k.NewPageTable(k.VPagesPerProc)

	k.Table.Put(proc0)
	k.Sched.Enqueue(pid)
	k.Rec.RecordCreation()
	k.History.Record(pid, proc0.Metrics)

	return nil
}
