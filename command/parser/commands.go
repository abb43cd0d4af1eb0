package parser

import (
	"fmt"
	"strconv"
	"strings"
)

func cmdPS(c *Console, _ []string) (string, error) {
	rows := c.Kernel.PS()
	if len(rows) == 0 {
		return "no live processes", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-5s %-10s %-12s %s\n", "PID", "STATE", "BLOCKED-ON", "PRIORITY")
	for _, r := range rows {
		fmt.Fprintf(&b, "%-5s %-10s %-12s %s\n", r.PID, r.State, r.Blocked, r.Priority)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func cmdFrames(c *Console, _ []string) (string, error) {
	rows := c.Kernel.Frames()
	var b strings.Builder
	fmt.Fprintf(&b, "%-6s %-5s %-10s %s\n", "FRAME", "OWNER", "VPAGE", "STATE")
	for _, r := range rows {
		state := "occupied"
		if !r.Occupied {
			state = "free"
		}
		fmt.Fprintf(&b, "%-6s %-5s %-10s %s\n", r.Frame, r.Owner, r.VPage, state)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func cmdQueue(c *Console, _ []string) (string, error) {
	q := c.Kernel.Queue()
	if len(q) == 0 {
		return "ready queue empty", nil
	}
	parts := make([]string, len(q))
	for i, pid := range q {
		parts[i] = strconv.Itoa(pid)
	}
	return "ready: " + strings.Join(parts, " "), nil
}

func cmdMetrics(c *Console, _ []string) (string, error) {
	g, procs := c.Kernel.Report()
	var b strings.Builder
	fmt.Fprintf(&b, "created=%s cycles=%s idle=%s(%s%%) preempts=%s\n",
		g.ProcsCreated, g.TotalCycles, g.IdleCycles, g.IdlePct, g.Preemptions)
	fmt.Fprintf(&b, "irq: reset=%s system=%s cpuerr=%s clock=%s\n",
		g.IRQCounts[0], g.IRQCounts[1], g.IRQCounts[2], g.IRQCounts[3])
	for _, p := range procs {
		fmt.Fprintf(&b, "pid %s: turnaround=%s preempts=%s ready=%s running=%s blocked=%s response=%s\n",
			p.PID, p.Turnaround, p.Preempts, p.Ready, p.Running, p.Block, p.Response)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func cmdStep(c *Console, args []string) (string, error) {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return "", fmt.Errorf("step: bad count %q: %w", args[0], err)
		}
		n = v
	}
	return strings.Join(c.Kernel.Step(n), "\n"), nil
}

func cmdSyscall(c *Console, args []string) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("usage: syscall <id> [arg]")
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return "", fmt.Errorf("syscall: bad id %q: %w", args[0], err)
	}
	arg := 0
	if len(args) > 1 {
		arg, err = strconv.Atoi(args[1])
		if err != nil {
			return "", fmt.Errorf("syscall: bad arg %q: %w", args[1], err)
		}
	}
	return c.Kernel.Syscall(id, arg), nil
}

func cmdFault(c *Console, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("usage: fault <virtual address>")
	}
	v, err := strconv.Atoi(args[0])
	if err != nil {
		return "", fmt.Errorf("fault: bad address %q: %w", args[0], err)
	}
	return c.Kernel.Fault(v), nil
}

func cmdKey(c *Console, args []string) (string, error) {
	if len(args) != 2 {
		return "", fmt.Errorf("usage: key <terminal 0-3> <byte>")
	}
	term, err := strconv.Atoi(args[0])
	if err != nil {
		return "", fmt.Errorf("key: bad terminal %q: %w", args[0], err)
	}
	b, err := strconv.Atoi(args[1])
	if err != nil {
		return "", fmt.Errorf("key: bad byte %q: %w", args[1], err)
	}
	if err := c.Kernel.Key(term, byte(b)); err != nil {
		return "", err
	}
	return "", nil
}

func cmdAttach(c *Console, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("usage: attach <terminal 0-3>")
	}
	term, err := strconv.Atoi(args[0])
	if err != nil {
		return "", fmt.Errorf("attach: bad terminal %q: %w", args[0], err)
	}
	if err := c.Kernel.Attach(term); err != nil {
		return "", err
	}
	return "", nil
}

func cmdHelp(_ *Console, _ []string) (string, error) {
	return strings.Join([]string{
		"ps                    list live processes",
		"frames                list physical frame occupancy",
		"queue                 show the ready queue",
		"metrics               render the accounting report",
		"step [n]              advance the clock by n ticks (default 1)",
		"syscall <id> [arg]    trap into the current process' syscall (regA=id, regX=arg)",
		"fault <addr>          trap a page-absent CPU error at virtual address addr",
		"key <term> <byte>     queue a keyboard byte for terminal 0-3",
		"attach <term>         bridge real keypresses into terminal 0-3 until Esc",
		"quit                  leave the console",
	}, "\n"), nil
}

func cmdQuit(_ *Console, _ []string) (string, error) {
	return "", ErrQuit
}
