package kernel

import "github.com/kernel-sim/sok/proc"

// FlagInternal latches the kernel-internal error condition (spec.md §7)
// from outside the package — the syscalls layer reaches for this on a
// device error or an unrecognized syscall id, since it cannot touch
// Kernel's unexported fields directly.
func (k *Kernel) FlagInternal() {
	k.flagInternal()
}

// ClearCurrent clears the running-process slot so Schedule's step 3 picks
// a new process on this same pass, used by the syscall layer whenever the
// currently running process blocks or terminates itself.
func (k *Kernel) ClearCurrent() {
	k.Sched.Current = 0
}

// BlockCurrentOnDevice transitions p to Blocked waiting on dev and clears
// "current" (spec.md §4.6's LE/ESCR not-ready path).
func (k *Kernel) BlockCurrentOnDevice(p *proc.PCB, dev int, now int64) {
	p.Block = proc.OnDevice(dev)
	p.HasWait = false
	k.Rec.Transition(p, proc.Blocked, now)
	k.ClearCurrent()
}

// BlockCurrentOnWait transitions p to Blocked waiting on pid's exit and
// clears "current" (spec.md §4.6's ESPERA_PROC blocking path).
func (k *Kernel) BlockCurrentOnWait(p *proc.PCB, pid int, now int64) {
	p.Block = proc.OnWait(pid)
	p.HasWait = true
	p.WaitingForPID = pid
	k.Rec.Transition(p, proc.Blocked, now)
	k.ClearCurrent()
}
