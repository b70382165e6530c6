// cmd/sniffctl/shell.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/tamzrod/harp-sniffdetector/internal/sniffdetector"
)

func (s *session) shell(ctx context.Context) error {
	var names []readline.PrefixCompleterInterface
	for _, d := range s.dev.Raw().Catalog().Descriptors() {
		names = append(names, readline.PcItem(d.Name))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "sniff> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("read", names...),
			readline.PcItem("write", names...),
			readline.PcItem("events"),
			readline.PcItem("info"),
			readline.PcItem("help"),
			readline.PcItem("exit"),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	// Output goes through readline so it does not clobber the prompt.
	s.out = rl.Stdout()
	printShellHelp(s.out)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			return nil
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := strings.ToLower(parts[0]), parts[1:]

		var cerr error
		switch cmd {
		case "help", "?":
			printShellHelp(s.out)
		case "info", "i":
			cerr = s.info(ctx)
		case "read", "r":
			cerr = s.read(ctx, args)
		case "write", "w":
			cerr = s.write(ctx, args)
		case "events", "e":
			// ^C ends the stream, not the shell.
			ectx, cancel := context.WithCancel(ctx)
			stop := make(chan struct{})
			go func() {
				defer cancel()
				_, _ = rl.Readline()
				close(stop)
			}()
			fmt.Fprintln(s.out, "streaming, press enter to stop")
			cerr = s.events(ectx, args)
			cancel()
			<-stop
		case "quit", "exit", "q":
			return nil
		default:
			fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
		if cerr != nil {
			fmt.Fprintf(s.out, "error: %v\n", cerr)
		}
	}
}

func printShellHelp(w io.Writer) {
	fmt.Fprintf(w, `
%s commands:
  info                        identity, versions and device clock
  read <register>             read a register (name or address)
  write <register> <value>... write a register
  events [-hz N] [-for D]     stream RawVoltage events (enter stops)
  exit
`, sniffdetector.DeviceName)
}
