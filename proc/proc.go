// Package proc defines the process control block and process table —
// spec.md §3's data model, realized as a Go sum type for state and block
// reason instead of a loose collection of optional fields (spec.md §9's
// REDESIGN FLAGS: "tagged process state").
package proc

import (
	"sort"

	"github.com/kernel-sim/sok/ifc"
)

// State is the lifecycle state of a process. The zero value is Ready, the
// state New gives every fresh PCB.
type State int

const (
	Ready State = iota
	Running
	Blocked
	Terminated
)

func (s State) String() string {
	switch s {
	case Ready:
		return "Ready"
	case Running:
		return "Running"
	case Blocked:
		return "Blocked"
	case Terminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// BlockReason names why a Blocked process is blocked. Exactly one of
// Device/WaitPID reports ok=true, selected by which constructor (OnDevice
// or OnWait) built the value — spec.md §3's invariant
// "a Blocked process has exactly one of blocked_on_dev or waiting_for_pid
// set" made structural rather than advisory.
type BlockReason struct {
	onDevice bool
	device   int
	onWait   bool
	waitPID  int
}

// Device returns the device id this process is blocked on, if any.
func (b BlockReason) Device() (int, bool) {
	return b.device, b.onDevice
}

// WaitPID returns the pid this process is waiting to terminate, if any.
func (b BlockReason) WaitPID() (int, bool) {
	return b.waitPID, b.onWait
}

// OnDevice constructs a BlockReason for I/O blocking.
func OnDevice(dev int) BlockReason {
	return BlockReason{onDevice: true, device: dev}
}

// OnWait constructs a BlockReason for wait-for-exit blocking.
func OnWait(pid int) BlockReason {
	return BlockReason{onWait: true, waitPID: pid}
}

// Context is the CPU register snapshot saved/restored on every dispatch.
type Context struct {
	PC         uint32
	A          int32
	X          int32
	Err        ifc.CPUErr
	Complement uint32
}

// Metrics accumulates the per-process accounting spec.md §3/§4.10
// describes: entry counts and accumulated time per state, plus the
// response-time bookkeeping for Blocked→Ready→Running.
type Metrics struct {
	PID      int
	Created  int64
	Finished int64 // -1 until terminated

	EntryCount [4]int64 // indexed by State
	StateTime  [4]int64 // indexed by State, cycles accumulated

	LastChange int64 // timestamp of the last state transition

	UnblockedAt    int64 // timestamp of the most recent Blocked->Ready, -1 if none pending
	ResponseSum    int64 // cumulative (Running-entry - UnblockedAt) deltas
	ResponseCount  int64
	Preemptions    int64
}

// PCB is one process's kernel descriptor.
type PCB struct {
	PID   int
	State State

	Ctx Context

	InputDev    int
	OutputDev   int
	HasTerminal bool // true for processes holding a terminal (init from boot, children from CRIA_PROC)

	Block BlockReason

	WaitingForPID int // valid only while State == Blocked via OnWait
	HasWait       bool

	QuantumRemaining int
	Priority         float64 // priority variant only, in [0,1]

	PageTable ifc.PageTable
	DiskBase  int

	Metrics Metrics
}

// New returns a fresh Ready PCB. The caller still owns enqueuing it.
func New(pid, inputDev, outputDev, quantum int, diskBase int, entry uint32, now int64) *PCB {
	p := &PCB{
		PID:              pid,
		State:            Ready,
		InputDev:         inputDev,
		OutputDev:        outputDev,
		QuantumRemaining: quantum,
		DiskBase:         diskBase,
	}
	p.Ctx.PC = entry
	p.Metrics.PID = pid
	p.Metrics.Created = now
	p.Metrics.Finished = -1
	p.Metrics.UnblockedAt = -1
	p.Metrics.LastChange = now
	p.Metrics.EntryCount[Ready] = 1
	return p
}

// BlockOnDevice transitions p to Blocked, waiting on a device. Metrics
// transition is the caller's responsibility (metrics.Recorder.Transition).
func (p *PCB) BlockOnDevice(dev int) {
	p.State = Blocked
	p.Block = OnDevice(dev)
	p.HasWait = false
}

// BlockOnWait transitions p to Blocked, waiting on another pid's exit.
func (p *PCB) BlockOnWait(pid int) {
	p.State = Blocked
	p.Block = OnWait(pid)
	p.HasWait = true
	p.WaitingForPID = pid
}

// MaxProcs bounds the number of simultaneously live processes the table
// will hold; spec.md doesn't fix a number, so this is a generous constant
// sized well past any of the end-to-end scenarios. It bounds concurrent
// occupancy only — pids themselves are never reused within a run
// (spec.md §3), so a fixed pid-1-indexed array would eventually overrun
// once enough processes had been created and reaped. A map keyed by pid
// keeps lookup O(1) without that ceiling.
const MaxProcs = 64

// Table is the process table: O(1) lookup by pid. HasCapacity reports
// whether occupancy (not pid value) is below MaxProcs; Put itself does not
// check it.
type Table struct {
	slots map[int]*PCB
}

func (t *Table) ensure() {
	if t.slots == nil {
		t.slots = make(map[int]*PCB)
	}
}

// Get returns the PCB for pid, or nil if no live process has that pid.
func (t *Table) Get(pid int) *PCB {
	t.ensure()
	return t.slots[pid]
}

// Put installs p at its pid's slot.
func (t *Table) Put(p *PCB) {
	t.ensure()
	t.slots[p.PID] = p
}

// Remove clears pid's slot.
func (t *Table) Remove(pid int) {
	t.ensure()
	delete(t.slots, pid)
}

// HasCapacity reports whether the table can hold another live process
// (spec.md §7: "no free PCB slot" is user-fatal for the CRIA_PROC caller,
// not kernel-internal — checked before AllocatePID/Put so a failed
// CRIA_PROC never consumes a pid).
func (t *Table) HasCapacity() bool {
	t.ensure()
	return len(t.slots) < MaxProcs
}

// All returns every live PCB, sorted by pid. Used by the scheduler's reap
// pass and by metrics reporting; sorted so iteration order (and therefore
// reporting order) doesn't depend on Go's randomized map iteration.
func (t *Table) All() []*PCB {
	t.ensure()
	out := make([]*PCB, 0, len(t.slots))
	for _, s := range t.slots {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out
}

// History is the final-snapshot table keyed by pid (spec.md §3's "pid-1"
// keying convention, realized here as a map so it survives pids beyond
// MaxProcs), surviving PCB reaping so aggregate reporting still sees
// terminated processes.
type History struct {
	entries map[int]Metrics
}

func (h *History) Record(pid int, m Metrics) {
	if h.entries == nil {
		h.entries = make(map[int]Metrics)
	}
	m.PID = pid
	h.entries[pid] = m
}

func (h *History) Get(pid int) (Metrics, bool) {
	m, ok := h.entries[pid]
	return m, ok
}

// All returns every recorded snapshot, sorted by pid.
func (h *History) All() []Metrics {
	pids := make([]int, 0, len(h.entries))
	for pid := range h.entries {
		pids = append(pids, pid)
	}
	sort.Ints(pids)
	out := make([]Metrics, 0, len(pids))
	for _, pid := range pids {
		out = append(out, h.entries[pid])
	}
	return out
}
