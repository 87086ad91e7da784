// ABOUTME: chat subcommand feeding messages to the command interpreter
// ABOUTME: Reads one message per line, or takes messages from repeated -m flags

package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harper/calendar-mcp/pkg/events"
	"github.com/harper/calendar-mcp/pkg/interpreter"
)

const chatPrompt = "> "

func newChatCmd(a *app) *cobra.Command {
	var messages []string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the calendar in plain language",
		Long: `Interpret messages such as "add Team Meeting on 2026-01-15" or "what's on tomorrow".
Events live only for the session. Type "exit" or "quit" to leave.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			interp := interpreter.New(events.NewStore(), interpreter.WithLogger(a.logger))
			out := cmd.OutOrStdout()

			if len(messages) > 0 {
				for _, m := range messages {
					fmt.Fprintln(out, strings.TrimRight(interp.Interpret(m), "\n"))
				}
				return nil
			}
			return chatLoop(cmd.InOrStdin(), out, interp)
		},
	}

	cmd.Flags().StringArrayVarP(&messages, "message", "m", nil, "Message to interpret (repeatable); skips the interactive loop")
	return cmd
}

func chatLoop(in io.Reader, out io.Writer, interp *interpreter.Interpreter) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, chatPrompt)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
		case "exit", "quit":
			return nil
		default:
			fmt.Fprintln(out, strings.TrimRight(interp.Interpret(line), "\n"))
		}
		fmt.Fprint(out, chatPrompt)
	}
	fmt.Fprintln(out)
	return scanner.Err()
}
