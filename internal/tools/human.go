package tools

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/tanmaysk001/Browser-Agent/api/schemas"
)

// HumanIO asks the person running the agent for input.
type HumanIO interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// ConsoleHuman prompts on Out and reads one line from In. A single reader
// goroutine owns In, so a line typed after an abandoned Ask answers the next one.
type ConsoleHuman struct {
	In  io.Reader
	Out io.Writer

	once  sync.Once
	lines chan consoleLine
	mu    sync.Mutex
}

type consoleLine struct {
	text string
	err  error
}

// NewConsoleHuman returns a HumanIO bound to stdin and stdout.
func NewConsoleHuman() *ConsoleHuman {
	return &ConsoleHuman{In: os.Stdin, Out: os.Stdout}
}

func (c *ConsoleHuman) start() {
	c.lines = make(chan consoleLine, 1)
	go func() {
		defer close(c.lines)
		reader := bufio.NewReader(c.In)
		for {
			text, err := reader.ReadString('\n')
			if err == io.EOF && text != "" {
				err = nil
			}
			c.lines <- consoleLine{strings.TrimRight(text, "\r\n"), err}
			if err != nil {
				return
			}
		}
	}()
}

// Ask blocks until a line is read or ctx is done.
func (c *ConsoleHuman) Ask(ctx context.Context, prompt string) (string, error) {
	c.once.Do(c.start)
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := fmt.Fprintf(c.Out, "%s\n> ", prompt); err != nil {
		return "", err
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case l, ok := <-c.lines:
		if !ok {
			return "", io.EOF
		}
		return l.text, l.err
	}
}

func humanHandler(human HumanIO) Handler {
	return func(ctx context.Context, args Args, _ schemas.BrowserSession) (string, error) {
		if human == nil {
			return "", schemas.NewError(schemas.CodeEnvironment, "no human is available to answer")
		}
		resp, err := human.Ask(ctx, args.String("prompt"))
		if err != nil {
			return "", schemas.WrapError(schemas.CodeEnvironment, err, "reading human input")
		}
		return fmt.Sprintf("Human provided the following input: '%s'", resp), nil
	}
}
