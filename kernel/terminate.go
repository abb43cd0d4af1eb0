package kernel

import "github.com/kernel-sim/sok/proc"

// Terminate transitions p to Terminated and wakes every process blocked
// waiting on p's pid (spec.md §4.6/§4.8: MATA_PROC, ESPERA_PROC's target
// exiting, and CPU-error termination all funnel through here). Reaping —
// metrics history, resource release, slot removal — happens later in
// Scheduler.Reap so a just-terminated process is still visible to ESPERA_PROC
// callers checking it in the same entry.
func (k *Kernel) Terminate(p *proc.PCB, now int64) {
	if p.State == proc.Terminated {
		return
	}
	k.Rec.Transition(p, proc.Terminated, now)
	k.wakeWaitersOf(p.PID)
}

// wakeWaitersOf transitions every process blocked waiting for pid to Ready,
// delivers the success code in regA, and enqueues it (spec.md §4.6's
// ESPERA_PROC/MATA_PROC interaction, §8's Wakeup law).
func (k *Kernel) wakeWaitersOf(pid int) {
	for _, p := range k.Table.All() {
		if p.State != proc.Blocked {
			continue
		}
		if waitPID, ok := p.Block.WaitPID(); ok && waitPID == pid {
			p.Ctx.A = 0
			k.Rec.Transition(p, proc.Ready, k.cycles)
			k.Sched.Enqueue(p.PID)
		}
	}
}
