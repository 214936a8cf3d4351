package adapter

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"charm.land/lipgloss/v2"
)

const cliExitCommand = "/sair"

// CLIAdapter plays the gateway in a terminal: each line read is one inbound
// message from a fixed sender, and replies are printed back.
type CLIAdapter struct {
	in           io.Reader
	out          io.Writer
	senderID     string
	eventHandler EventHandler

	mu sync.Mutex

	botStyle    lipgloss.Style
	promptStyle lipgloss.Style
}

func NewCLIAdapter(in io.Reader, out io.Writer, senderID string, eventHandler EventHandler) *CLIAdapter {
	return &CLIAdapter{
		in:           in,
		out:          out,
		senderID:     senderID,
		eventHandler: eventHandler,
		botStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("241")).
			Padding(0, 1),
		promptStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("99")).
			Bold(true),
	}
}

func (a *CLIAdapter) Name() string {
	return "cli"
}

func (a *CLIAdapter) Send(ctx context.Context, recipientID string, content string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, err := fmt.Fprintln(a.out, a.botStyle.Render(content))
	return err
}

// Start reads lines until EOF, /sair or ctx is done. Messages are handled
// one at a time so replies print before the next prompt.
func (a *CLIAdapter) Start(ctx context.Context) error {
	fmt.Fprintf(a.out, "Simulando conversa como %s. Digite %s para sair.\n", a.senderID, cliExitCommand)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(a.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		a.prompt()
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == cliExitCommand {
				return nil
			}
			if a.eventHandler == nil {
				continue
			}
			if err := a.eventHandler(ctx, Message{Source: a.Name(), SenderID: a.senderID, Text: line}); err != nil {
				fmt.Fprintf(a.out, "erro: %v\n", err)
			}
		}
	}
}

func (a *CLIAdapter) prompt() {
	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprint(a.out, a.promptStyle.Render("> "))
}

func (a *CLIAdapter) Stop(ctx context.Context) error {
	return nil
}

// Health is always nil; the terminal cannot go away under the process.
func (a *CLIAdapter) Health(ctx context.Context) error {
	return nil
}
