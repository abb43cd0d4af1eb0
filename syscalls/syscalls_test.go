package syscalls

import (
	"testing"

	"github.com/kernel-sim/sok/ifc"
	"github.com/kernel-sim/sok/ioctl"
	"github.com/kernel-sim/sok/kernel"
	"github.com/kernel-sim/sok/proc"
	"github.com/kernel-sim/sok/sched"
	"github.com/kernel-sim/sok/vcpu"
	"github.com/kernel-sim/sok/vm"
	"github.com/kernel-sim/sok/vmmu"
)

func newTestKernel() (*kernel.Kernel, *ioctl.Controller) {
	cpu := vcpu.New()
	mmu := vmmu.New()
	io := ioctl.New()
	alloc := vm.NewAllocator(8, 1)
	swap := vm.NewSwap(4096)
	k := kernel.New(cpu, mmu, mmu, io, sched.ModeRoundRobin, 4, alloc, swap, vmmu.PageSize, 4,
		func(n int) ifc.PageTable { return vmmu.NewTable(n) })
	k.AllocateTerm = io.AllocateTerminal
	k.ReleaseTerm = io.ReleaseTerminal
	k.Syscall = Dispatch
	return k, io
}

// writeCString copies s, NUL-terminated, into mmu byte-addressed memory at
// addr through the active page table, mirroring how a real process's own
// data segment would hold an argument string.
func writeCString(t *testing.T, mmu ifc.MMU, addr uint32, s string) {
	t.Helper()
	for i := 0; i < len(s); i++ {
		if err := mmu.Write(addr+uint32(i), uint32(s[i]), ifc.ModeSupervisor); err != nil {
			t.Fatalf("writeCString: %v", err)
		}
	}
	if err := mmu.Write(addr+uint32(len(s)), 0, ifc.ModeSupervisor); err != nil {
		t.Fatalf("writeCString: NUL: %v", err)
	}
}

func TestLEBlocksWhenKeyboardNotReady(t *testing.T) {
	k, io := newTestKernel()
	base, _ := io.AllocateTerminal()
	p := proc.New(1, base+ioctl.OffKeyboard, base+ioctl.OffScreen, 4, 0, 0, 0)
	p.State = proc.Running
	k.Table.Put(p)
	k.Sched.Current = 1
	p.Ctx.A = int32(LE)

	Dispatch(k, p, 1)

	if p.State != proc.Blocked {
		t.Fatalf("State = %v, want Blocked", p.State)
	}
	if dev, ok := p.Block.Device(); !ok || dev != p.InputDev {
		t.Fatalf("Block.Device() = (%d,%v), want (%d,true)", dev, ok, p.InputDev)
	}
	if k.Sched.Current != 0 {
		t.Fatal("expected Current cleared after blocking")
	}
}

func TestLECompletesWhenKeyboardReady(t *testing.T) {
	k, io := newTestKernel()
	base, _ := io.AllocateTerminal()
	io.Feed(base, 'X')
	p := proc.New(1, base+ioctl.OffKeyboard, base+ioctl.OffScreen, 4, 0, 0, 0)
	p.State = proc.Running
	k.Table.Put(p)
	k.Sched.Current = 1
	p.Ctx.A = int32(LE)

	Dispatch(k, p, 1)

	if p.State != proc.Running {
		t.Fatalf("State = %v, want unchanged Running", p.State)
	}
	if p.Ctx.A != int32('X') {
		t.Fatalf("Ctx.A = %d, want %d", p.Ctx.A, 'X')
	}
}

func TestESCRWritesToScreen(t *testing.T) {
	k, io := newTestKernel()
	base, _ := io.AllocateTerminal()
	p := proc.New(1, base+ioctl.OffKeyboard, base+ioctl.OffScreen, 4, 0, 0, 0)
	p.State = proc.Running
	k.Table.Put(p)
	k.Sched.Current = 1
	p.Ctx.A = int32(ESCR)
	p.Ctx.X = 'Y'

	Dispatch(k, p, 1)

	if p.Ctx.A != 0 {
		t.Fatalf("Ctx.A = %d, want 0", p.Ctx.A)
	}
	screen := io.Screen(base)
	if len(screen) != 1 || screen[0] != 'Y' {
		t.Fatalf("Screen(base) = %v, want [Y]", screen)
	}
}

func TestCriaProcCreatesChild(t *testing.T) {
	k, _ := newTestKernel()
	k.Catalog["p1.maq"] = kernel.ProgramEntry{Base: 0, Size: 16, Entry: 0x1000}

	parent := proc.New(1, 0, 0, 4, 0, 0, 0)
	parent.PageTable = vmmu.NewTable(4)
	parent.State = proc.Running
	k.Table.Put(parent)
	k.Sched.Current = 1
	k.MMU.SetPageTable(parent.PageTable)
	parent.PageTable.Map(0, 5)
	writeCString(t, k.MMU, 0x20, "p1.maq")

	parent.Ctx.A = int32(CriaProc)
	parent.Ctx.X = 0x20

	Dispatch(k, parent, 1)

	if parent.Ctx.A <= 0 {
		t.Fatalf("Ctx.A = %d, want a positive new pid", parent.Ctx.A)
	}
	child := k.Table.Get(int(parent.Ctx.A))
	if child == nil {
		t.Fatal("expected child PCB present in table")
	}
	if child.State != proc.Ready {
		t.Fatalf("child.State = %v, want Ready", child.State)
	}
	if child.Ctx.PC != 0x1000 {
		t.Fatalf("child.Ctx.PC = %#x, want 0x1000", child.Ctx.PC)
	}
}

func TestCriaProcUnknownProgramFails(t *testing.T) {
	k, _ := newTestKernel()
	parent := proc.New(1, 0, 0, 4, 0, 0, 0)
	parent.PageTable = vmmu.NewTable(4)
	parent.State = proc.Running
	k.Table.Put(parent)
	k.Sched.Current = 1
	k.MMU.SetPageTable(parent.PageTable)
	parent.PageTable.Map(0, 5)
	writeCString(t, k.MMU, 0x20, "missing.maq")

	parent.Ctx.A = int32(CriaProc)
	parent.Ctx.X = 0x20

	Dispatch(k, parent, 1)

	if parent.Ctx.A != -1 {
		t.Fatalf("Ctx.A = %d, want -1", parent.Ctx.A)
	}
}

func TestCriaProcNoFreeTerminalReleasesNothingAndFails(t *testing.T) {
	k, io := newTestKernel()
	k.Catalog["p1.maq"] = kernel.ProgramEntry{Base: 0, Size: 16, Entry: 0x1000}
	for i := 0; i < ioctl.NumTerminals; i++ {
		io.AllocateTerminal()
	}

	parent := proc.New(1, 0, 0, 4, 0, 0, 0)
	parent.PageTable = vmmu.NewTable(4)
	parent.State = proc.Running
	k.Table.Put(parent)
	k.Sched.Current = 1
	k.MMU.SetPageTable(parent.PageTable)
	parent.PageTable.Map(0, 5)
	writeCString(t, k.MMU, 0x20, "p1.maq")

	parent.Ctx.A = int32(CriaProc)
	parent.Ctx.X = 0x20

	Dispatch(k, parent, 1)

	if parent.Ctx.A != -1 {
		t.Fatalf("Ctx.A = %d, want -1 (all four terminals in use)", parent.Ctx.A)
	}
}

func TestMataProcSelfTerminatesAndClearsCurrent(t *testing.T) {
	k, _ := newTestKernel()
	p := proc.New(1, 0, 0, 4, 0, 0, 0)
	p.State = proc.Running
	k.Table.Put(p)
	k.Sched.Current = 1
	p.Ctx.A = int32(MataProc)
	p.Ctx.X = 0

	Dispatch(k, p, 1)

	if p.State != proc.Terminated {
		t.Fatalf("State = %v, want Terminated", p.State)
	}
	if k.Sched.Current != 0 {
		t.Fatal("expected Current cleared after self-termination")
	}
}

func TestMataProcRemoteUnknownPidFails(t *testing.T) {
	k, _ := newTestKernel()
	p := proc.New(1, 0, 0, 4, 0, 0, 0)
	p.State = proc.Running
	k.Table.Put(p)
	k.Sched.Current = 1
	p.Ctx.A = int32(MataProc)
	p.Ctx.X = 99

	Dispatch(k, p, 1)

	if p.Ctx.A != -1 {
		t.Fatalf("Ctx.A = %d, want -1", p.Ctx.A)
	}
}

func TestMataProcIdempotence(t *testing.T) {
	k, _ := newTestKernel()
	caller1 := proc.New(1, 0, 0, 4, 0, 0, 0)
	caller1.State = proc.Running
	victim := proc.New(2, 0, 0, 4, 0, 0, 0)
	k.Table.Put(caller1)
	k.Table.Put(victim)
	k.Sched.Current = 1

	caller1.Ctx.A = int32(MataProc)
	caller1.Ctx.X = 2
	Dispatch(k, caller1, 1)
	if caller1.Ctx.A != 0 {
		t.Fatalf("first MATA_PROC: Ctx.A = %d, want 0", caller1.Ctx.A)
	}

	caller2 := proc.New(3, 0, 0, 4, 0, 0, 0)
	caller2.State = proc.Running
	k.Table.Put(caller2)
	k.Sched.Current = 3
	caller2.Ctx.A = int32(MataProc)
	caller2.Ctx.X = 2
	Dispatch(k, caller2, 2)

	if caller2.Ctx.A != 0 {
		t.Fatalf("second MATA_PROC on already-Terminated target: Ctx.A = %d, want 0 (idempotent)", caller2.Ctx.A)
	}
}

func TestEsperaProcRejectsSelfAndInvalid(t *testing.T) {
	k, _ := newTestKernel()
	p := proc.New(1, 0, 0, 4, 0, 0, 0)
	p.State = proc.Running
	k.Table.Put(p)
	k.Sched.Current = 1

	p.Ctx.A = int32(EsperaProc)
	p.Ctx.X = 1 // self
	Dispatch(k, p, 1)
	if p.Ctx.A != -1 {
		t.Fatalf("self-wait: Ctx.A = %d, want -1", p.Ctx.A)
	}

	p.State = proc.Running
	k.Sched.Current = 1
	p.Ctx.X = 0
	Dispatch(k, p, 1)
	if p.Ctx.A != -1 {
		t.Fatalf("wait on pid 0: Ctx.A = %d, want -1", p.Ctx.A)
	}
}

func TestEsperaProcOnNeverCreatedPidSucceeds(t *testing.T) {
	k, _ := newTestKernel()
	p := proc.New(1, 0, 0, 4, 0, 0, 0)
	p.State = proc.Running
	k.Table.Put(p)
	k.Sched.Current = 1

	p.Ctx.A = int32(EsperaProc)
	p.Ctx.X = 42

	Dispatch(k, p, 1)
	if p.Ctx.A != 0 {
		t.Fatalf("Ctx.A = %d, want 0 (never-created pid is already gone)", p.Ctx.A)
	}
}

func TestEsperaProcBlocksThenWakesOnTermination(t *testing.T) {
	k, _ := newTestKernel()
	waiter := proc.New(1, 0, 0, 4, 0, 0, 0)
	target := proc.New(2, 0, 0, 4, 0, 0, 0)
	waiter.State = proc.Running
	k.Table.Put(waiter)
	k.Table.Put(target)
	k.Sched.Current = 1

	waiter.Ctx.A = int32(EsperaProc)
	waiter.Ctx.X = 2
	Dispatch(k, waiter, 1)

	if waiter.State != proc.Blocked {
		t.Fatalf("waiter.State = %v, want Blocked", waiter.State)
	}
	if k.Sched.Current != 0 {
		t.Fatal("expected Current cleared")
	}

	k.Terminate(target, 2)

	if waiter.State != proc.Ready {
		t.Fatalf("waiter.State = %v, want Ready after target terminates", waiter.State)
	}
	if waiter.Ctx.A != 0 {
		t.Fatalf("waiter.Ctx.A = %d, want 0", waiter.Ctx.A)
	}
}

// Scenario S6: A -> CRIA_PROC B -> CRIA_PROC C; B and C both
// ESPERA_PROC(A). When A dies, both are unblocked in the same pass.
func TestWaiterCascadeBothWakeOnSharedTargetTermination(t *testing.T) {
	k, _ := newTestKernel()
	a := proc.New(1, 0, 0, 4, 0, 0, 0)
	b := proc.New(2, 0, 0, 4, 0, 0, 0)
	c := proc.New(3, 0, 0, 4, 0, 0, 0)
	k.Table.Put(a)
	k.Table.Put(b)
	k.Table.Put(c)

	b.State = proc.Running
	k.Sched.Current = 2
	b.Ctx.A, b.Ctx.X = int32(EsperaProc), 1
	Dispatch(k, b, 1)

	c.State = proc.Running
	k.Sched.Current = 3
	c.Ctx.A, c.Ctx.X = int32(EsperaProc), 1
	Dispatch(k, c, 2)

	k.Terminate(a, 3)

	if b.State != proc.Ready || b.Ctx.A != 0 {
		t.Fatalf("b: state=%v A=%d, want Ready/0", b.State, b.Ctx.A)
	}
	if c.State != proc.Ready || c.Ctx.A != 0 {
		t.Fatalf("c: state=%v A=%d, want Ready/0", c.State, c.Ctx.A)
	}
}

func TestUnknownSyscallKillsCallerAndFlagsInternal(t *testing.T) {
	k, _ := newTestKernel()
	p := proc.New(1, 0, 0, 4, 0, 0, 0)
	p.State = proc.Running
	k.Table.Put(p)
	k.Sched.Current = 1
	p.Ctx.A = 99

	Dispatch(k, p, 1)

	if p.State != proc.Terminated {
		t.Fatalf("State = %v, want Terminated", p.State)
	}
	if !k.InternalError() {
		t.Fatal("expected internal error flagged for an unrecognized syscall id")
	}
}
