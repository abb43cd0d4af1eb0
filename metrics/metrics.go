// Package metrics is the single funnel every PCB state transition passes
// through (spec.md §4.10, §9 REDESIGN FLAGS: "funnel every state change
// through one entry point so entry counts and time deltas are accumulated
// exactly once").
package metrics

import (
	"github.com/kernel-sim/sok/internal/kdebug"
	"github.com/kernel-sim/sok/proc"
)

// Recorder owns the system-wide counters spec.md §6's shutdown report
// needs beyond what any single PCB carries: idle cycles, per-IRQ counts,
// total preemptions, and the "time of the last kernel entry" used to
// compute per-entry deltas.
type Recorder struct {
	LastEntry    int64
	IdleCycles   int64
	IRQCount     [4]int64 // indexed by ifc.IRQ
	Preemptions  int64
	ProcsCreated int64
}

// NewRecorder returns a Recorder with LastEntry set to the boot timestamp.
func NewRecorder(bootTime int64) *Recorder {
	return &Recorder{LastEntry: bootTime}
}

// UpdateTimes is step 1 of every kernel entry (spec.md §4.1/§4.10): it
// charges the elapsed delta since the previous entry to the running
// process's Running-time, to every other live process's current-state
// time, or to system idle if no process is current.
func (r *Recorder) UpdateTimes(now int64, current *proc.PCB, all []*proc.PCB) {
	delta := now - r.LastEntry
	r.LastEntry = now
	if delta <= 0 {
		return
	}

	if current == nil {
		r.IdleCycles += delta
	}
	for _, p := range all {
		if p == current {
			p.Metrics.StateTime[proc.Running] += delta
			continue
		}
		if p.State == proc.Ready || p.State == proc.Blocked {
			p.Metrics.StateTime[p.State] += delta
		}
	}
}

// Transition is the sole place a PCB's State field changes. It maintains
// entry counts and the response-time bookkeeping described in spec.md
// §4.10: a Blocked->Ready transition records an unblock timestamp; the
// following Ready->Running transition turns that into a response-time
// sample. The first transition to Terminated records the termination time
// in Metrics.Finished.
func (r *Recorder) Transition(p *proc.PCB, to proc.State, now int64) {
	from := p.State

	if from == proc.Blocked && to == proc.Ready {
		p.Metrics.UnblockedAt = now
	}
	if from == proc.Ready && to == proc.Running && p.Metrics.UnblockedAt >= 0 {
		p.Metrics.ResponseSum += now - p.Metrics.UnblockedAt
		p.Metrics.ResponseCount++
		p.Metrics.UnblockedAt = -1
	}

	if to == proc.Terminated && p.Metrics.Finished < 0 {
		p.Metrics.Finished = now
	}

	p.State = to
	p.Metrics.EntryCount[to]++
	p.Metrics.LastChange = now
	kdebug.PIDTracef(kdebug.Metric, p.PID, "%s -> %s", from, to)
}

// RecordCreation bumps the system-wide processes-created counter (spec.md
// §6's shutdown report global block).
func (r *Recorder) RecordCreation() {
	r.ProcsCreated++
}

// RecordPreemption bumps both the system-wide preemption counter (metric 5)
// and the PCB's own (metric 7); spec.md §8's law ties these two together.
func (r *Recorder) RecordPreemption(p *proc.PCB) {
	r.Preemptions++
	p.Metrics.Preemptions++
}

// Snapshot is a rendering-friendly copy of a PCB's accounting plus its
// derived turnaround and mean response time.
type Snapshot struct {
	PID              int
	Created          int64
	Finished         int64
	EntryCount       [4]int64
	StateTime        [4]int64
	Preemptions      int64
	MeanResponseTime float64
	HasResponse      bool
}

// Summarize converts a proc.Metrics into a reporting Snapshot.
func Summarize(pid int, m proc.Metrics) Snapshot {
	s := Snapshot{
		PID:         pid,
		Created:     m.Created,
		Finished:    m.Finished,
		EntryCount:  m.EntryCount,
		StateTime:   m.StateTime,
		Preemptions: m.Preemptions,
	}
	if m.ResponseCount > 0 {
		s.HasResponse = true
		s.MeanResponseTime = float64(m.ResponseSum) / float64(m.ResponseCount)
	}
	return s
}

// Turnaround returns Finished-Created, or -1 if not yet terminated.
func (s Snapshot) Turnaround() int64 {
	if s.Finished < 0 {
		return -1
	}
	return s.Finished - s.Created
}

// ReadyTime, RunningTime and BlockedTime expose the per-state time
// breakdown by name, so rendering code (report.Render) doesn't need to
// import proc just to index StateTime.
func (s Snapshot) ReadyTime() int64    { return s.StateTime[proc.Ready] }
func (s Snapshot) RunningTime() int64  { return s.StateTime[proc.Running] }
func (s Snapshot) BlockedTime() int64  { return s.StateTime[proc.Blocked] }

// ReadyCount, RunningCount and BlockedCount expose the per-state entry
// counts by name, matching spec.md §3's "per-state entry counts".
func (s Snapshot) ReadyCount() int64   { return s.EntryCount[proc.Ready] }
func (s Snapshot) RunningCount() int64 { return s.EntryCount[proc.Running] }
func (s Snapshot) BlockedCount() int64 { return s.EntryCount[proc.Blocked] }

// FinalizeAll forcibly terminates every still-live PCB and snapshots it
// into hist — spec.md §4.10: "On final report, still-live PCBs are
// forcibly transitioned to Terminated and snapshotted."
func (r *Recorder) FinalizeAll(all []*proc.PCB, hist *proc.History, now int64) {
	r.UpdateTimes(now, nil, all)
	for _, p := range all {
		if p.State != proc.Terminated {
			r.Transition(p, proc.Terminated, now)
		}
		p.Metrics.Finished = now
		hist.Record(p.PID, p.Metrics)
	}
}
