// Package sokconfig reads the kernel's startup configuration file: a flat,
// line-based, '#'-comment-tolerant key/value grammar, the same shape the
// reference simulator uses for its device-configuration file, keyed here on
// kernel tunables instead of device models.
//
//	<line> := <key> <whitespace> <value> | '#' <comment>
//	<key>  := 'quantum' | 'mode' | 'terminals' | 'swapwords' |
//	          'trapimage' | 'init'
package sokconfig

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Config holds every tunable read from the configuration file, defaulted
// before Load overwrites whatever keys are present.
type Config struct {
	Quantum    int    // clock ticks before forced preemption
	Priority   bool   // true selects the priority scheduler, false round-robin
	Terminals  int    // number of terminal devices (fixed at 4 by the ABI)
	SwapWords  int    // total size of the swap area, in words
	TrapImage  string // path to the trap-handler program image
	InitProg   string // path to the init program image
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Quantum:   5,
		Priority:  false,
		Terminals: 4,
		SwapWords: 1 << 16,
		TrapImage: "trap.maq",
		InitProg:  "init.maq",
	}
}

// Load reads key/value pairs from r into a copy of base, returning the
// merged configuration. Unknown keys are rejected; a line is a comment if
// its first non-blank rune is '#'.
func Load(r io.Reader, base Config) (Config, error) {
	cfg := base
	scanner := bufio.NewScanner(r)
	lineNumber := 0

	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			return cfg, fmt.Errorf("sokconfig: line %d: expected <key> <value>", lineNumber)
		}
		key := strings.ToLower(fields[0])
		value := fields[1]

		var err error
		switch key {
		case "quantum":
			cfg.Quantum, err = strconv.Atoi(value)
		case "mode":
			cfg.Priority = strings.EqualFold(value, "priority")
		case "terminals":
			cfg.Terminals, err = strconv.Atoi(value)
		case "swapwords":
			cfg.SwapWords, err = strconv.Atoi(value)
		case "trapimage":
			cfg.TrapImage = value
		case "init":
			cfg.InitProg = value
		default:
			return cfg, fmt.Errorf("sokconfig: line %d: unknown key %q", lineNumber, fields[0])
		}
		if err != nil {
			return cfg, fmt.Errorf("sokconfig: line %d: %w", lineNumber, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFile opens path and calls Load against Default().
func LoadFile(path string) (Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()
	return Load(file, Default())
}
