// sok-kernel is the demo driver for the pedagogical kernel: it assembles
// the kernel from its reference CPU/MMU/I/O stand-ins, runs the reset
// sequence, and hands control to an interactive console so a user can
// step the simulated clock, inject syscalls and page faults, and inspect
// kernel state. Adapted from the reference simulator's main.go — same
// getopt flags and slog-through-a-custom-handler logging setup, retargeted
// at this kernel's own config/collaborators instead of S/370's.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	getopt "github.com/pborman/getopt/v2"

	"github.com/kernel-sim/sok/boot"
	"github.com/kernel-sim/sok/command/parser"
	"github.com/kernel-sim/sok/command/reader"
	"github.com/kernel-sim/sok/config/sokconfig"
	"github.com/kernel-sim/sok/ifc"
	"github.com/kernel-sim/sok/internal/kdebug"
	"github.com/kernel-sim/sok/internal/klog"
	"github.com/kernel-sim/sok/ioctl"
	"github.com/kernel-sim/sok/kernel"
	"github.com/kernel-sim/sok/metrics"
	"github.com/kernel-sim/sok/report"
	"github.com/kernel-sim/sok/sched"
	"github.com/kernel-sim/sok/vcpu"
	"github.com/kernel-sim/sok/vm"
	"github.com/kernel-sim/sok/vmmu"
)

func main() {
	optConfig := getopt.StringLong("config", 'c', "", "Configuration file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optQuantum := getopt.IntLong("quantum", 'q', 0, "Override configured quantum (ticks)")
	optPriority := getopt.BoolLong("priority", 'p', "Use the priority scheduler instead of round-robin")
	optSwapFile := getopt.StringLong("swapfile", 's', "", "Directory holding <name>.maq program images")
	optDebug := getopt.StringLong("debug", 'd', "", "Comma-separated trace subsystems: sched,fault,sys,io,metric")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var logFile *os.File
	if *optLogFile != "" {
		var err error
		logFile, err = os.Create(*optLogFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "sok:", err)
			os.Exit(1)
		}
	}
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)
	logger := slog.New(klog.NewHandler(logFile, &slog.HandlerOptions{Level: level}, false))
	slog.SetDefault(logger)

	if *optDebug != "" {
		kdebug.SetMask(parseDebugMask(*optDebug))
	}

	cfg := sokconfig.Default()
	if *optConfig != "" {
		loaded, err := sokconfig.LoadFile(*optConfig)
		if err != nil {
			logger.Error("loading configuration", "path", *optConfig, "err", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *optQuantum > 0 {
		cfg.Quantum = *optQuantum
	}
	if *optPriority {
		cfg.Priority = true
	}
	if cfg.Terminals != ioctl.NumTerminals {
		logger.Warn("configured terminal count ignored, ABI fixes it", "configured", cfg.Terminals, "actual", ioctl.NumTerminals)
	}

	dir := *optSwapFile
	if dir == "" {
		dir, _ = os.Getwd()
	}

	k, cpu, io := assemble(cfg)

	programs := []boot.Program{{Name: cfg.InitProg, Path: dir + "/" + cfg.InitProg}}
	if err := boot.Reset(k, cpu, io, dir+"/"+cfg.TrapImage, programs, cfg.InitProg); err != nil {
		logger.Error("reset", "err", err)
		os.Exit(1)
	}
	logger.Info("kernel reset complete", "quantum", cfg.Quantum, "priority", cfg.Priority)

	// The console reader owns the only goroutine that ever touches kernel
	// state (spec.md §5's single-threaded cooperative model — no worker
	// goroutines, no reentrance); Ctrl-D/Ctrl-C simply return from Run, and
	// the shutdown report runs afterward on this same goroutine.
	dk := &demoKernel{k: k, io: io, cpu: cpu}
	reader.Run(&parser.Console{Kernel: dk}, "sok> ")

	printShutdownReport(k)
}

// assemble builds a Kernel from the reference stand-ins, the shape
// boot_test.go's newTestKernel uses, generalized to the config the demo
// binary was actually invoked with.
func assemble(cfg sokconfig.Config) (*kernel.Kernel, *vcpu.Stub, *ioctl.Controller) {
	cpu := vcpu.New()
	mmu := vmmu.New()
	io := ioctl.New()
	alloc := vm.NewAllocator(vmmu.FramesTotal, reservedFrames())
	swap := vm.NewSwap(cfg.SwapWords * 4)

	mode := sched.ModeRoundRobin
	if cfg.Priority {
		mode = sched.ModePriority
	}

	k := kernel.New(cpu, mmu, mmu, io, mode, cfg.Quantum, alloc, swap, vmmu.PageSize, 16,
		func(n int) ifc.PageTable { return vmmu.NewTable(n) })
	k.AllocateTerm = io.AllocateTerminal
	k.ReleaseTerm = io.ReleaseTerminal
	return k, cpu, io
}

// reservedFrames mirrors spec.md §3's "ceil((END_PROT+1)/PAGE_SIZE)"
// reservation for the kernel image; END_PROT (address 99, the top of the
// protected region) and PageSize come from this stand-in's own constants.
func reservedFrames() int {
	const endProt = 99
	n := (endProt + 1 + vmmu.PageSize - 1) / vmmu.PageSize
	if n < 1 {
		n = 1
	}
	return n
}

func printShutdownReport(k *kernel.Kernel) {
	now := k.Now()
	k.Rec.FinalizeAll(k.Table.All(), &k.History, now)

	g := report.Global{
		ProcsCreated: k.Rec.ProcsCreated,
		TotalCycles:  now,
		IdleCycles:   k.Rec.IdleCycles,
		IRQCount:     k.Rec.IRQCount,
		Preemptions:  k.Rec.Preemptions,
	}
	var procs []metrics.Snapshot
	for _, m := range k.History.All() {
		procs = append(procs, metrics.Summarize(m.PID, m))
	}
	report.Render(os.Stdout, g, procs)
}

func parseDebugMask(spec string) int {
	mask := 0
	for _, name := range splitComma(spec) {
		switch name {
		case "sched":
			mask |= kdebug.Sched
		case "fault":
			mask |= kdebug.Fault
		case "sys":
			mask |= kdebug.Sys
		case "io":
			mask |= kdebug.IO
		case "metric":
			mask |= kdebug.Metric
		}
	}
	return mask
}

func splitComma(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

// demoKernel adapts *kernel.Kernel and its stand-ins to the console's
// parser.KernelOps, translating kernel/proc/metrics types into
// rendering-ready strings so parser stays free of those package imports.
type demoKernel struct {
	k   *kernel.Kernel
	io  *ioctl.Controller
	cpu *vcpu.Stub
}

func (d *demoKernel) PS() []parser.ProcLine {
	var rows []parser.ProcLine
	for _, p := range d.k.Table.All() {
		blocked := "-"
		if dev, ok := p.Block.Device(); ok {
			blocked = "dev " + strconv.Itoa(dev)
		} else if pid, ok := p.Block.WaitPID(); ok {
			blocked = "pid " + strconv.Itoa(pid)
		}
		priority := "-"
		if d.k.Sched.Mode == sched.ModePriority {
			priority = strconv.FormatFloat(p.Priority, 'f', 3, 64)
		}
		rows = append(rows, parser.ProcLine{
			PID:      strconv.Itoa(p.PID),
			State:    p.State.String(),
			Blocked:  blocked,
			Priority: priority,
		})
	}
	return rows
}

func (d *demoKernel) Frames() []parser.FrameLine {
	rows := make([]parser.FrameLine, d.k.Alloc.NumFrames())
	for i := range rows {
		e := d.k.Alloc.Entry(i)
		owner, vpage := "-", "-"
		if e.Occupied && e.OwnerPID > 0 {
			owner = strconv.Itoa(e.OwnerPID)
			vpage = strconv.Itoa(e.OwnerVPage)
		}
		rows[i] = parser.FrameLine{Frame: strconv.Itoa(i), Owner: owner, VPage: vpage, Occupied: e.Occupied}
	}
	return rows
}

func (d *demoKernel) Queue() []int {
	return d.k.Sched.ReadyPIDs()
}

func (d *demoKernel) Report() (parser.GlobalLine, []parser.MetricLine) {
	now := d.k.Now()
	idlePct := 0.0
	if now > 0 {
		idlePct = 100 * float64(d.k.Rec.IdleCycles) / float64(now)
	}
	g := parser.GlobalLine{
		ProcsCreated: strconv.FormatInt(d.k.Rec.ProcsCreated, 10),
		TotalCycles:  strconv.FormatInt(now, 10),
		IdleCycles:   strconv.FormatInt(d.k.Rec.IdleCycles, 10),
		Preemptions:  strconv.FormatInt(d.k.Rec.Preemptions, 10),
		IdlePct:      strconv.FormatFloat(idlePct, 'f', 1, 64),
	}
	for i := range g.IRQCounts {
		g.IRQCounts[i] = strconv.FormatInt(d.k.Rec.IRQCount[i], 10)
	}

	var lines []parser.MetricLine
	for _, p := range d.k.Table.All() {
		lines = append(lines, metricLine(metrics.Summarize(p.PID, p.Metrics)))
	}
	for _, m := range d.k.History.All() {
		lines = append(lines, metricLine(metrics.Summarize(m.PID, m)))
	}
	return g, lines
}

func metricLine(s metrics.Snapshot) parser.MetricLine {
	turnaround := "N/A"
	if t := s.Turnaround(); t >= 0 {
		turnaround = strconv.FormatInt(t, 10)
	}
	response := "N/A"
	if s.HasResponse {
		response = strconv.FormatFloat(s.MeanResponseTime, 'f', 2, 64)
	}
	return parser.MetricLine{
		PID:        strconv.Itoa(s.PID),
		Turnaround: turnaround,
		Preempts:   strconv.FormatInt(s.Preemptions, 10),
		Ready:      strconv.FormatInt(s.ReadyTime(), 10),
		Running:    strconv.FormatInt(s.RunningTime(), 10),
		Block:      strconv.FormatInt(s.BlockedTime(), 10),
		Response:   response,
	}
}

// currentContext returns the running process' saved context, or zeros if
// the kernel is idle — used to build every injected trap so resuming after
// it lands where the process actually was.
func (d *demoKernel) currentContext() (pc uint32, regA, regX int32) {
	pid := d.k.Sched.Current
	if pid == 0 {
		return 0, 0, 0
	}
	p := d.k.Table.Get(pid)
	if p == nil {
		return 0, 0, 0
	}
	return p.Ctx.PC, p.Ctx.A, p.Ctx.X
}

// Step advances the simulated clock by n ticks, delivering a CLOCK trap
// and rearming the hardware timer (the demo binary's own responsibility —
// spec.md §1 places the clock device outside the kernel) whenever the
// interrupt fires.
func (d *demoKernel) Step(n int) []string {
	var out []string
	for i := 0; i < n; i++ {
		d.io.Tick()
		v, _, _ := d.io.Read(ioctl.ClockInterrupt)
		if v == 0 {
			continue
		}
		pc, regA, regX := d.currentContext()
		rc := d.cpu.Trap(ifc.IRQClock, pc, regA, regX, ifc.ErrNone, 0)
		d.io.Write(ioctl.ClockInterrupt, 0)
		d.io.ArmTimer(d.k.Sched.Quantum)
		out = append(out, fmt.Sprintf("tick %d: CLOCK trap, rc=%s", i, rcName(rc)))
	}
	if out == nil {
		out = []string{fmt.Sprintf("advanced %d tick(s), no interrupt", n)}
	}
	return out
}

func (d *demoKernel) Syscall(id, arg int) string {
	pc, _, _ := d.currentContext()
	rc := d.cpu.Trap(ifc.IRQSystem, pc, int32(id), int32(arg), ifc.ErrNone, 0)
	return "SYSTEM trap delivered, rc=" + rcName(rc)
}

func (d *demoKernel) Fault(vaddr int) string {
	pc, regA, regX := d.currentContext()
	rc := d.cpu.Trap(ifc.IRQCPUErr, pc, regA, regX, ifc.ErrPageAbsent, uint32(vaddr))
	return "CPU_ERR(page absent) trap delivered, rc=" + rcName(rc)
}

func (d *demoKernel) Key(term int, b byte) error {
	base, err := terminalBase(term)
	if err != nil {
		return err
	}
	d.io.Feed(base, b)
	return nil
}

func (d *demoKernel) Attach(term int) error {
	base, err := terminalBase(term)
	if err != nil {
		return err
	}
	return ioctl.RunRawBridge(d.io, base)
}

func terminalBase(term int) (int, error) {
	if term < 0 || term >= ioctl.NumTerminals {
		return 0, fmt.Errorf("terminal must be 0-%d", ioctl.NumTerminals-1)
	}
	return term * 4, nil
}

func rcName(rc int) string {
	if rc == kernel.RcResume {
		return "resume"
	}
	return "halt"
}
