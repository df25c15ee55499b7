package consent

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/x/term"

	"github.com/fr4iser90/FoundryCord-sub001/internal/tui"
)

// Surface asks the user a yes/no question about one collector.
type Surface interface {
	Confirm(ctx context.Context, p Prompt) (bool, error)
}

// DialogSurface shows a full-screen confirmation dialog.
type DialogSurface struct {
	In  io.Reader
	Out io.Writer
}

func (d *DialogSurface) Confirm(ctx context.Context, p Prompt) (bool, error) {
	return tui.Confirm(ctx, dialogTitle(p), dialogBody(p), d.In, d.Out)
}

// LineSurface asks on a single line and blocks until a line is read.
type LineSurface struct {
	In  io.Reader
	Out io.Writer

	once  sync.Once
	lines chan lineAnswer
}

type lineAnswer struct {
	line string
	err  error
}

// Confirm accepts "y" or "yes" (any case) as approval. Anything else,
// including end of input, is a refusal.
func (l *LineSurface) Confirm(ctx context.Context, p Prompt) (bool, error) {
	l.once.Do(l.startReader)
	fmt.Fprintf(l.Out, "%s\n%s (y/n): ", dialogBody(p), dialogTitle(p))

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case a, ok := <-l.lines:
		if !ok {
			return false, nil
		}
		if a.err != nil && !errors.Is(a.err, io.EOF) {
			return false, a.err
		}
		ans := strings.ToLower(strings.TrimSpace(a.line))
		return ans == "y" || ans == "yes", nil
	}
}

// startReader feeds lines from In to Confirm calls. A single reader keeps
// a cancelled prompt from leaving a second goroutine racing on In.
func (l *LineSurface) startReader() {
	l.lines = make(chan lineAnswer)
	r := bufio.NewReader(l.In)
	go func() {
		defer close(l.lines)
		for {
			line, err := r.ReadString('\n')
			l.lines <- lineAnswer{line: line, err: err}
			if err != nil {
				return
			}
		}
	}()
}

// SelectSurface picks the dialog when in is an interactive terminal and the
// line prompt otherwise.
func SelectSurface(in *os.File, out io.Writer) Surface {
	if in != nil && term.IsTerminal(in.Fd()) {
		return &DialogSurface{In: in, Out: out}
	}
	var r io.Reader = in
	if in == nil {
		r = strings.NewReader("")
	}
	return &LineSurface{In: r, Out: out}
}

func dialogTitle(p Prompt) string {
	return fmt.Sprintf("Allow collector %q to run?", p.Name)
}

func dialogBody(p Prompt) string {
	if p.Description == "" {
		return "This collector captures page state and may send it to the dashboard backend."
	}
	return p.Description + ". Captured data may be sent to the dashboard backend."
}
