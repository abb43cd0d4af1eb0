// Package reader drives the interactive kernel console: read a line with
// liner (history, tab completion), hand it to parser.ProcessCommand, print
// whatever comes back. Adapted from the reference simulator's own
// liner-backed console reader, retargeted at kernel introspection commands
// instead of S/370 channel commands.
package reader

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/peterh/liner"

	"github.com/kernel-sim/sok/command/parser"
)

// Run reads commands from stdin until the user quits or aborts the prompt
// (Ctrl-D/Ctrl-C).
func Run(c *parser.Console, prompt string) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(partial string) []string {
		return parser.CompleteCmd(partial)
	})

	for {
		input, err := line.Prompt(prompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				return
			}
			slog.Error("console: error reading line", "err", err)
			return
		}
		line.AppendHistory(input)

		out, err := parser.ProcessCommand(c, input)
		if err != nil {
			if errors.Is(err, parser.ErrQuit) {
				return
			}
			fmt.Println("error:", err)
			continue
		}
		if out != "" {
			fmt.Println(out)
		}
	}
}
