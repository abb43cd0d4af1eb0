// Package sched implements the ready queue and scheduler (spec.md §4.4):
// reap terminated processes, preserve a still-running current process, and
// otherwise pick the next Ready one — round-robin FIFO or, in the priority
// variant, minimum-priority selection.
package sched

import (
	"github.com/kernel-sim/sok/internal/kdebug"
	"github.com/kernel-sim/sok/metrics"
	"github.com/kernel-sim/sok/proc"
)

// Mode selects the ready-queue discipline.
type Mode int

const (
	ModeRoundRobin Mode = iota
	ModePriority
)

// Scheduler owns the ready queue and the pid of the currently running
// process (0 meaning none). It holds no pointers to PCBs — only pids,
// resolved through the process table on every use, per spec.md §9's
// REDESIGN FLAG against pointer-back references.
type Scheduler struct {
	Mode    Mode
	Quantum int // configured ticks before forced preemption

	ready   []int // FIFO order for round-robin; unordered set for priority
	Current int
}

// New returns an empty Scheduler configured with the given mode and
// quantum.
func New(mode Mode, quantum int) *Scheduler {
	return &Scheduler{Mode: mode, Quantum: quantum}
}

// Enqueue appends pid to the ready set. Order matters only in round-robin
// mode; FIFO tail insertion gives the round-robin law (preempted processes
// re-enter at the tail).
func (s *Scheduler) Enqueue(pid int) {
	s.ready = append(s.ready, pid)
}

func (s *Scheduler) removePid(pid int) {
	for i, p := range s.ready {
		if p == pid {
			s.ready = append(s.ready[:i], s.ready[i+1:]...)
			return
		}
	}
}

// ReadyPIDs returns a copy of the ready set in its current order.
func (s *Scheduler) ReadyPIDs() []int {
	out := make([]int, len(s.ready))
	copy(out, s.ready)
	return out
}

// ReleaseFunc frees every resource a terminated PCB still holds: its
// terminal, its page table and frames. Injected by the kernel so sched
// never imports vm/ioctl.
type ReleaseFunc func(p *proc.PCB)

// Reap is step 1 of Schedule (spec.md §4.4): any Terminated PCB has its
// metrics history populated, its resources released, and its slot cleared.
func (s *Scheduler) Reap(now int64, tbl *proc.Table, hist *proc.History, release ReleaseFunc) {
	for _, p := range tbl.All() {
		if p.State != proc.Terminated {
			continue
		}
		if p.Metrics.Finished < 0 {
			p.Metrics.Finished = now
		}
		hist.Record(p.PID, p.Metrics)
		release(p)
		s.removePid(p.PID)
		tbl.Remove(p.PID)
		if s.Current == p.PID {
			s.Current = 0
		}
		kdebug.PIDTracef(kdebug.Sched, p.PID, "reaped")
	}
}

// Schedule runs the full reap/preserve/pick sequence and leaves s.Current
// set to the chosen pid, or 0 if nothing is runnable.
func (s *Scheduler) Schedule(now int64, tbl *proc.Table, hist *proc.History, rec *metrics.Recorder, release ReleaseFunc) {
	s.Reap(now, tbl, hist, release)

	// Step 2: preserve. A still-Running current process keeps the CPU.
	if s.Current != 0 {
		if cur := tbl.Get(s.Current); cur != nil && cur.State == proc.Running {
			return
		}
	}

	// Step 3: pick.
	pid, ok := s.pick(tbl)
	if !ok {
		s.Current = 0
		return
	}
	p := tbl.Get(pid)
	rec.Transition(p, proc.Running, now)
	s.Current = pid
	kdebug.PIDTracef(kdebug.Sched, pid, "picked to run")
}

// pick dequeues/selects the next Ready pid, skipping stale entries
// (invariant 5: a ready-set pid may reference no PCB, or a PCB no longer
// Ready — both are silently skipped, never executed).
func (s *Scheduler) pick(tbl *proc.Table) (int, bool) {
	switch s.Mode {
	case ModePriority:
		return s.pickPriority(tbl)
	default:
		return s.pickRoundRobin(tbl)
	}
}

func (s *Scheduler) pickRoundRobin(tbl *proc.Table) (int, bool) {
	for len(s.ready) > 0 {
		pid := s.ready[0]
		s.ready = s.ready[1:]
		if p := tbl.Get(pid); p != nil && p.State == proc.Ready {
			return pid, true
		}
	}
	return 0, false
}

func (s *Scheduler) pickPriority(tbl *proc.Table) (int, bool) {
	bestIdx := -1
	bestPriority := 0.0
	for i, pid := range s.ready {
		p := tbl.Get(pid)
		if p == nil || p.State != proc.Ready {
			continue
		}
		if bestIdx == -1 || p.Priority < bestPriority {
			bestIdx = i
			bestPriority = p.Priority
		}
	}
	// Only the winner is removed; stale entries stay in the set and are
	// skipped again on later scans. When no entry is a live Ready pid, every
	// entry is stale and the whole set is cleared.
	if bestIdx == -1 {
		s.ready = s.ready[:0]
		return 0, false
	}
	pid := s.ready[bestIdx]
	s.ready = append(s.ready[:bestIdx], s.ready[bestIdx+1:]...)
	return pid, true
}

// Tick handles one CLOCK interrupt against the current process (spec.md
// §4.4): decrement quantum_remaining, and on expiry — if the process isn't
// Blocked — preempt it: record the preemption, reset its quantum, requeue
// it Ready at the tail, update its priority (priority mode only), and clear
// Current.
func (s *Scheduler) Tick(now int64, tbl *proc.Table, rec *metrics.Recorder) {
	if s.Current == 0 {
		return
	}
	p := tbl.Get(s.Current)
	if p == nil {
		s.Current = 0
		return
	}

	p.QuantumRemaining--
	if p.QuantumRemaining > 0 || p.State == proc.Blocked {
		return
	}

	tExec := s.Quantum - p.QuantumRemaining
	rec.RecordPreemption(p)
	p.QuantumRemaining = s.Quantum
	if s.Mode == ModePriority {
		p.Priority = (p.Priority + float64(tExec)/float64(s.Quantum)) / 2
	}
	rec.Transition(p, proc.Ready, now)
	s.Enqueue(p.PID)
	s.Current = 0
	kdebug.PIDTracef(kdebug.Sched, p.PID, "preempted, t_exec=%d", tExec)
}
