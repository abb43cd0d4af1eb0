// Package parser implements the interactive kernel console's command
// language: a small set of introspection and trap-injection commands,
// matched by unambiguous prefix the same way the reference simulator's
// own console commands are, but over kernel state instead of channel/CCW
// state.
package parser

import (
	"errors"
	"strings"
)

// Console owns everything a command needs: the kernel under test plus its
// collaborating stand-ins. It is constructed once by main and threaded
// through every command the same way core.Core is in the reference
// simulator's command package.
type Console struct {
	Kernel KernelOps
}

// KernelOps is the narrow surface the console needs from the assembled
// kernel and its stand-ins — defined here instead of importing kernel/
// ioctl/vcpu directly so parser stays a leaf package, matching the
// reference simulator's command/parser depending only on emu/core's
// already-narrow Core type.
type KernelOps interface {
	PS() []ProcLine
	Frames() []FrameLine
	Queue() []int
	Report() (GlobalLine, []MetricLine)
	Step(n int) []string
	Syscall(id, arg int) string
	Fault(vaddr int) string
	Key(term int, b byte) error
	Attach(term int) error
}

// ProcLine, FrameLine, GlobalLine and MetricLine are rendering-ready rows;
// kept here (not in kernel) so parser never needs proc/metrics struct
// layouts.
type ProcLine struct {
	PID, State string
	Blocked    string
	Priority   string
}

type FrameLine struct {
	Frame, Owner, VPage string
	Occupied            bool
}

type GlobalLine struct {
	ProcsCreated, TotalCycles, IdleCycles, Preemptions string
	IdlePct                                            string
	IRQCounts                                          [4]string
}

type MetricLine struct {
	PID, Turnaround, Preempts      string
	Ready, Running, Block, Response string
}

type cmd struct {
	name     string
	min      int
	process  func(*Console, []string) (string, error)
	complete bool
}

var cmdList = []cmd{
	{name: "ps", min: 1, process: cmdPS},
	{name: "frames", min: 2, process: cmdFrames},
	{name: "queue", min: 2, process: cmdQueue},
	{name: "metrics", min: 1, process: cmdMetrics},
	{name: "step", min: 2, process: cmdStep},
	{name: "syscall", min: 2, process: cmdSyscall},
	{name: "fault", min: 2, process: cmdFault},
	{name: "key", min: 1, process: cmdKey},
	{name: "attach", min: 2, process: cmdAttach},
	{name: "help", min: 1, process: cmdHelp},
	{name: "quit", min: 1, process: cmdQuit},
}

// ErrQuit is returned by ProcessCommand when the user asked to leave the
// console loop.
var ErrQuit = errors.New("parser: quit")

// ProcessCommand parses and runs one line, returning any text to print.
// ErrQuit signals the caller to stop reading lines — it is not an error
// condition, matching the reference simulator's ProcessCommand returning
// a bool for "should the console loop exit" alongside its error value,
// collapsed here into one sentinel since the console has no other reason
// to stop.
func ProcessCommand(c *Console, line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	match := matchList(name)
	switch len(match) {
	case 0:
		return "", errors.New("unknown command: " + name)
	case 1:
		return match[0].process(c, args)
	default:
		return "", errors.New("ambiguous command: " + name)
	}
}

// CompleteCmd lists command names matching the partial word typed so far,
// used by the liner-backed reader's tab completion.
func CompleteCmd(line string) []string {
	fields := strings.Fields(line)
	if len(fields) > 1 || strings.HasSuffix(line, " ") {
		return nil
	}
	word := ""
	if len(fields) == 1 {
		word = strings.ToLower(fields[0])
	}
	var out []string
	for _, m := range cmdList {
		if strings.HasPrefix(m.name, word) {
			out = append(out, m.name)
		}
	}
	return out
}

// matchCommand reports whether typed is an unambiguous prefix of m.name at
// least m.min characters long — the reference console's abbreviation rule
// ("attach" matches "at", "set" needs all three letters) applied to this
// console's own minimum-length table.
func matchCommand(m cmd, typed string) bool {
	if len(typed) < m.min || len(typed) > len(m.name) {
		return false
	}
	return strings.HasPrefix(m.name, typed)
}

func matchList(typed string) []cmd {
	if typed == "" {
		return nil
	}
	var out []cmd
	for _, m := range cmdList {
		if matchCommand(m, typed) {
			out = append(out, m)
		}
	}
	return out
}
