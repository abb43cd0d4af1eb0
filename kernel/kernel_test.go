package kernel

import (
	"errors"
	"testing"

	"github.com/kernel-sim/sok/ifc"
	"github.com/kernel-sim/sok/ioctl"
	"github.com/kernel-sim/sok/proc"
	"github.com/kernel-sim/sok/sched"
	"github.com/kernel-sim/sok/vcpu"
	"github.com/kernel-sim/sok/vm"
	"github.com/kernel-sim/sok/vmmu"
)

func newTestKernel() *Kernel {
	cpu := vcpu.New()
	mmu := vmmu.New()
	io := ioctl.New()
	alloc := vm.NewAllocator(8, 1)
	swap := vm.NewSwap(4096)
	return New(cpu, mmu, mmu, io, sched.ModeRoundRobin, 4, alloc, swap, vmmu.PageSize, 4,
		func(n int) ifc.PageTable { return vmmu.NewTable(n) })
}

func TestSaveContextCopiesIntoCurrent(t *testing.T) {
	k := newTestKernel()
	p := proc.New(1, 0, 0, 4, 0, 0, 0)
	cpu := k.CPU.(*vcpu.Stub)
	cpu.Trap(ifc.IRQSystem, 0x100, 7, 8, ifc.ErrNone, 0)

	if err := k.saveContext(p); err != nil {
		t.Fatalf("saveContext: %v", err)
	}
	if p.Ctx.PC != 0x100 || p.Ctx.A != 7 || p.Ctx.X != 8 {
		t.Fatalf("context not copied: %+v", p.Ctx)
	}
}

func TestSaveContextReadFailureIsInternal(t *testing.T) {
	k := newTestKernel()
	k.CPU.(*vcpu.Stub).ForceReadFailure(true)

	if err := k.saveContext(nil); err == nil {
		t.Fatal("expected error from a failed save-area read")
	}
}

func TestDispatchIRQRoutesSyscall(t *testing.T) {
	k := newTestKernel()
	p := proc.New(1, 0, 0, 4, 0, 0, 0)
	k.Table.Put(p)
	k.Sched.Current = 1

	called := false
	k.Syscall = func(kk *Kernel, pp *proc.PCB, now int64) {
		called = true
		pp.Ctx.A = 42
	}

	k.dispatchIRQ(ifc.IRQSystem, 1)
	if !called {
		t.Fatal("expected syscall handler invoked")
	}
	if p.Ctx.A != 42 {
		t.Fatalf("Ctx.A = %d, want 42", p.Ctx.A)
	}
	if k.Rec.IRQCount[ifc.IRQSystem] != 1 {
		t.Fatalf("IRQCount[SYSTEM] = %d, want 1", k.Rec.IRQCount[ifc.IRQSystem])
	}
}

func TestDispatchIRQSyscallWithNoCurrentIsInternal(t *testing.T) {
	k := newTestKernel()
	k.Syscall = func(kk *Kernel, pp *proc.PCB, now int64) {}

	k.dispatchIRQ(ifc.IRQSystem, 1)
	if !k.internalErr {
		t.Fatal("expected internal error when SYSTEM traps with no current process")
	}
}

func TestDispatchIRQUnknownKindIsInternal(t *testing.T) {
	k := newTestKernel()
	k.dispatchIRQ(ifc.IRQ(99), 1)
	if !k.internalErr {
		t.Fatal("expected internal error on an unrecognized IRQ kind")
	}
}

func TestResolvePendingDeliversReadyDevice(t *testing.T) {
	k := newTestKernel()
	ctl := k.IO.(*ioctl.Controller)
	base, _ := ctl.AllocateTerminal()
	dev := base + ioctl.OffKeyboard
	ctl.Feed(base, 'x')

	p := proc.New(1, dev, 0, 4, 0, 0, 0)
	p.BlockOnDevice(dev)
	k.Table.Put(p)

	k.resolvePending(5)

	if p.State != proc.Ready {
		t.Fatalf("State = %v, want Ready", p.State)
	}
	if p.Ctx.A != int32('x') {
		t.Fatalf("Ctx.A = %d, want %d", p.Ctx.A, 'x')
	}
	found := false
	for _, pid := range k.Sched.ReadyPIDs() {
		if pid == 1 {
			found = true
		}
	}
	if !found {
		t.Fatal("expected pid 1 enqueued after unblocking")
	}
}

type erroringIO struct{}

func (erroringIO) Read(dev int) (int, bool, error)  { return 0, false, errors.New("device fault") }
func (erroringIO) Write(dev, val int) (bool, error) { return false, errors.New("device fault") }

func TestResolvePendingDeviceErrorIsInternal(t *testing.T) {
	k := newTestKernel()
	k.IO = erroringIO{}

	p := proc.New(1, 0, 0, 4, 0, 0, 0)
	p.BlockOnDevice(0)
	k.Table.Put(p)

	k.resolvePending(5)
	if !k.internalErr {
		t.Fatal("expected a device read error to flag the kernel internal-error condition")
	}
}

func TestDispatchHaltsWhenInternalErrorLatched(t *testing.T) {
	k := newTestKernel()
	k.internalErr = true
	if rc := k.dispatch(); rc != RcHalt {
		t.Fatalf("dispatch() = %d, want RcHalt", rc)
	}
}

func TestDispatchHaltsWithNoCurrentProcess(t *testing.T) {
	k := newTestKernel()
	if rc := k.dispatch(); rc != RcHalt {
		t.Fatalf("dispatch() = %d, want RcHalt", rc)
	}
}

func TestDispatchResumesAndWritesContext(t *testing.T) {
	k := newTestKernel()
	p := proc.New(1, 0, 0, 4, 0, 0x200, 0)
	p.Ctx.A = 9
	p.PageTable = vmmu.NewTable(4)
	k.Table.Put(p)
	k.Sched.Current = 1

	if rc := k.dispatch(); rc != RcResume {
		t.Fatalf("dispatch() = %d, want RcResume", rc)
	}
	sa, _ := k.CPU.(*vcpu.Stub).ReadSaveArea()
	if sa.PC != 0x200 || sa.RegA != 9 {
		t.Fatalf("save area = %+v, want PC 0x200 A 9", sa)
	}
}

func TestHandleCPUErrorPageAbsentMapsPage(t *testing.T) {
	k := newTestKernel()
	image := make([]byte, vmmu.PageSize*2)
	base, _ := k.Swap.Allocate(image)

	p := proc.New(1, 0, 0, 4, base, 0, 0)
	p.PageTable = vmmu.NewTable(4)
	p.Ctx.Err = ifc.ErrPageAbsent
	p.Ctx.Complement = 0
	k.Table.Put(p)
	k.Sched.Current = 1
	k.MMU.SetPageTable(p.PageTable)

	k.handleCPUError(1)
	if k.internalErr {
		t.Fatal("did not expect internal error on a resolvable page fault")
	}
	if _, ok := p.PageTable.Frame(0); !ok {
		t.Fatal("expected page 0 mapped")
	}
}

func TestHandleCPUErrorOtherKindTerminatesProcess(t *testing.T) {
	k := newTestKernel()
	p := proc.New(1, 0, 0, 4, 0, 0, 0)
	p.State = proc.Running
	p.Ctx.Err = ifc.ErrInvalidInstr
	k.Table.Put(p)
	k.Sched.Current = 1

	k.handleCPUError(1)
	if p.State != proc.Terminated {
		t.Fatalf("State = %v, want Terminated", p.State)
	}
}

func TestEntryFirstTickSchedulesReadyProcess(t *testing.T) {
	k := newTestKernel()
	p := proc.New(1, 0, 0, 4, 0, 0, 0)
	k.Table.Put(p)
	k.Sched.Enqueue(1)

	rc := k.Entry(ifc.IRQReset)
	if rc != RcResume {
		t.Fatalf("Entry() = %d, want RcResume", rc)
	}
	if k.Sched.Current != 1 {
		t.Fatalf("Current = %d, want 1", k.Sched.Current)
	}
	if p.State != proc.Running {
		t.Fatalf("State = %v, want Running", p.State)
	}
}

func TestEntryLatchesInternalErrorPermanently(t *testing.T) {
	k := newTestKernel()
	k.CPU.(*vcpu.Stub).ForceReadFailure(true)

	if rc := k.Entry(ifc.IRQClock); rc != RcHalt {
		t.Fatalf("Entry() = %d, want RcHalt", rc)
	}
	if !k.InternalError() {
		t.Fatal("expected internal error latched")
	}

	k.CPU.(*vcpu.Stub).ForceReadFailure(false)
	if rc := k.Entry(ifc.IRQClock); rc != RcHalt {
		t.Fatalf("Entry() after latch = %d, want RcHalt even though the read would now succeed", rc)
	}
}
