// Package report renders the shutdown metrics report spec.md §6
// describes: a global block (processes created, total cycles, idle
// cycles and percent, per-IRQ counts, total preemptions) followed by a
// per-process block keyed by pid. Grounded in arctir-proctor's
// tablewriter-based process listing — the only repo in the retrieval
// pack that renders tabular process data rather than hand-padding
// columns.
package report

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/kernel-sim/sok/ifc"
	"github.com/kernel-sim/sok/metrics"
)

// Global is the system-wide half of the shutdown report.
type Global struct {
	ProcsCreated int64
	TotalCycles  int64
	IdleCycles   int64
	IRQCount     [4]int64 // indexed by ifc.IRQ
	Preemptions  int64
}

// Render writes the two-table shutdown report to w: the global summary,
// then one row per process in pid order (live or historical — callers
// pass metrics.Recorder.FinalizeAll's resulting history snapshots so
// every process created during the run appears exactly once).
func Render(w io.Writer, g Global, procs []metrics.Snapshot) {
	fmt.Fprintln(w, "=== System Summary ===")
	renderGlobal(w, g)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Per-Process Summary ===")
	renderProcesses(w, procs)
}

func renderGlobal(w io.Writer, g Global) {
	idlePct := 0.0
	if g.TotalCycles > 0 {
		idlePct = 100 * float64(g.IdleCycles) / float64(g.TotalCycles)
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})
	table.Append([]string{"Processes created", fmt.Sprint(g.ProcsCreated)})
	table.Append([]string{"Total cycles", fmt.Sprint(g.TotalCycles)})
	table.Append([]string{"Idle cycles", fmt.Sprintf("%d (%.1f%%)", g.IdleCycles, idlePct)})
	table.Append([]string{"RESET traps", fmt.Sprint(g.IRQCount[ifc.IRQReset])})
	table.Append([]string{"SYSTEM traps", fmt.Sprint(g.IRQCount[ifc.IRQSystem])})
	table.Append([]string{"CPU_ERR traps", fmt.Sprint(g.IRQCount[ifc.IRQCPUErr])})
	table.Append([]string{"CLOCK traps", fmt.Sprint(g.IRQCount[ifc.IRQClock])})
	table.Append([]string{"Total preemptions", fmt.Sprint(g.Preemptions)})
	table.Render()
}

func renderProcesses(w io.Writer, procs []metrics.Snapshot) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"PID", "Turnaround", "Preempts", "Ready", "Running", "Blocked", "Mean Response"})
	for _, s := range procs {
		turnaround := "N/A"
		if t := s.Turnaround(); t >= 0 {
			turnaround = fmt.Sprint(t)
		}
		response := "N/A"
		if s.HasResponse {
			response = fmt.Sprintf("%.2f", s.MeanResponseTime)
		}
		table.Append([]string{
			fmt.Sprint(s.PID),
			turnaround,
			fmt.Sprint(s.Preemptions),
			fmt.Sprint(s.ReadyTime()),
			fmt.Sprint(s.RunningTime()),
			fmt.Sprint(s.BlockedTime()),
			response,
		})
	}
	table.Render()
}
