// Package ui implements the interactive chat console. It renders the
// runner's event stream as styled terminal output and owns the input loop.
package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/galileo0/galileo/internal/agent"
	"github.com/galileo0/galileo/internal/log"
)

// exitCommands end the session when typed alone on a line.
var exitCommands = map[string]bool{
	"exit": true,
	"quit": true,
	"stop": true,
	"cl":   true,
}

// toolOutputPreview caps how much tool output is echoed to the terminal.
const toolOutputPreview = 400

// TurnRunner is the part of agent.Runner the console drives.
type TurnRunner interface {
	Run(ctx context.Context, userText string) <-chan agent.Event
}

// Console is a line-oriented REPL over a TurnRunner.
type Console struct {
	runner TurnRunner
	in     io.Reader
	out    io.Writer
	styles Styles
	logger log.Logger
	clock  func() time.Time
}

// New creates a console reading from in and writing to out.
func New(runner TurnRunner, in io.Reader, out io.Writer, logger log.Logger) *Console {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Console{
		runner: runner,
		in:     in,
		out:    out,
		styles: DefaultStyles(),
		logger: logger,
		clock:  time.Now,
	}
}

// Run executes the input loop until an exit command, end of input, or
// context cancellation.
func (c *Console) Run(ctx context.Context) error {
	fmt.Fprint(c.out, c.styles.RenderBanner())
	fmt.Fprintln(c.out, c.styles.Elapsed.Render("Ask about Sentinel scenes in plain language. Type exit to leave."))
	fmt.Fprintln(c.out)

	scanner := bufio.NewScanner(c.in)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprint(c.out, c.styles.Prompt.Render("you ❯ "))
		if !scanner.Scan() {
			fmt.Fprintln(c.out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if exitCommands[strings.ToLower(line)] {
			fmt.Fprintln(c.out, c.styles.Elapsed.Render("bye"))
			return nil
		}

		c.runTurn(ctx, line)
	}
}

func (c *Console) runTurn(ctx context.Context, line string) {
	start := c.clock()
	streaming := false

	for ev := range c.runner.Run(ctx, line) {
		switch ev.Type {
		case agent.EventTextFragment:
			if !streaming {
				fmt.Fprint(c.out, c.styles.Agent.Render(ev.Agent+" ❯ "))
				streaming = true
			}
			fmt.Fprint(c.out, ev.Content)

		case agent.EventMessage:
			if streaming {
				fmt.Fprintln(c.out)
				streaming = false
				continue
			}
			fmt.Fprintln(c.out, c.styles.Agent.Render(ev.Agent+" ❯ ")+ev.Content)

		case agent.EventToolCall:
			fmt.Fprintln(c.out, c.styles.Tool.Render(fmt.Sprintf("  ⚙ %s %s", ev.Tool, ev.Content)))

		case agent.EventToolResult:
			fmt.Fprintln(c.out, c.styles.Tool.Render(indent(preview(ev.Content), "    ")))

		case agent.EventAgentSwitch:
			fmt.Fprintln(c.out, c.styles.Switch.Render("  ↳ "+ev.Agent))

		case agent.EventFinal:
			fmt.Fprintln(c.out, c.styles.Elapsed.Render(fmt.Sprintf("(%s)", c.clock().Sub(start).Round(time.Millisecond))))
			fmt.Fprintln(c.out)

		case agent.EventError:
			if streaming {
				fmt.Fprintln(c.out)
				streaming = false
			}
			fmt.Fprintln(c.out, c.styles.Error.Render("error: "+ev.Err.Error()))
			fmt.Fprintln(c.out)
			c.logger.Error("turn failed", "error", ev.Err)
		}
	}
}

func preview(s string) string {
	s = strings.TrimRight(s, "\n")
	if len(s) <= toolOutputPreview {
		return s
	}
	return s[:toolOutputPreview] + "…"
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
