// Package ui provides stderr-based progress output for nullfix.
package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/papapumpkin/nullfix/internal/round"
)

var (
	bold    = color.New(color.Bold).SprintFunc()
	faint   = color.New(color.Faint).SprintFunc()
	cyan    = color.New(color.FgCyan, color.Bold).SprintFunc()
	magenta = color.New(color.FgMagenta, color.Bold).SprintFunc()
	green   = color.New(color.FgGreen, color.Bold).SprintFunc()
	yellow  = color.New(color.FgYellow, color.Bold).SprintFunc()
	red     = color.New(color.FgRed, color.Bold).SprintFunc()
)

// Printer writes human-facing progress to a terminal. While a tool runs it
// animates a spinner if the output is a TTY.
type Printer struct {
	w       io.Writer
	spinner bool

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

var _ round.UI = (*Printer)(nil)

// New returns a Printer writing to stderr.
func New() *Printer {
	fd := os.Stderr.Fd()
	return NewWriter(os.Stderr, isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd))
}

// NewWriter returns a Printer writing to w. spinner enables the animated
// wait indicator.
func NewWriter(w io.Writer, spinner bool) *Printer {
	return &Printer{w: w, spinner: spinner}
}

func (p *Printer) RoundStart(n int) {
	fmt.Fprintf(p.w, "\n%s\n", magenta(fmt.Sprintf("── round %d ──", n)))
}

func (p *Printer) ToolStart(op string) {
	if !p.spinner {
		fmt.Fprintf(p.w, "%s %s\n", cyan("▶ "+op), faint("running..."))
		return
	}
	p.startSpinner(op)
}

func (p *Printer) ToolDone(op string, elapsed time.Duration, err error) {
	p.stopSpinner()
	if err != nil {
		fmt.Fprintf(p.w, "%s %s\n", red("✗ "+op), faint(fmt.Sprintf("failed after %s", round2(elapsed))))
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", green("✓ "+op), faint(fmt.Sprintf("done (%s)", round2(elapsed))))
}

func (p *Printer) RoundDone(n int, s round.Stats) {
	fmt.Fprintf(p.w, "  reported %s, selected %s, new %s, accumulated %s\n",
		bold(s.Reported), bold(s.Selected), bold(s.New), bold(s.Accumulated))
}

func (p *Printer) InitializersSelected(count int) {
	if count == 0 {
		fmt.Fprintln(p.w, faint("no initializer methods found"))
		return
	}
	fmt.Fprintf(p.w, "%s %d initializer method(s) selected\n", cyan("◆"), count)
}

func (p *Printer) Finished(outcome round.Outcome, rounds int) {
	switch outcome {
	case round.OutcomeNoIssues:
		fmt.Fprintf(p.w, "%s after %d round(s)\n", green("✓ no more issues"), rounds)
	case round.OutcomeConverged:
		fmt.Fprintf(p.w, "%s after %d round(s)\n", green("✓ reached fixed point"), rounds)
	default:
		fmt.Fprintf(p.w, "%s after %d round(s)\n", yellow("⚠ "+string(outcome)), rounds)
	}
}

// Elapsed reports the total wall time of a command.
func (p *Printer) Elapsed(d time.Duration) {
	fmt.Fprintf(p.w, "%s %s\n", faint("elapsed:"), round2(d))
}

func (p *Printer) Info(msg string) {
	fmt.Fprintln(p.w, faint(msg))
}

func (p *Printer) Success(msg string) {
	fmt.Fprintln(p.w, green("✓ ")+msg)
}

func (p *Printer) Warn(msg string) {
	fmt.Fprintf(p.w, "%s %s\n", yellow("warning:"), msg)
}

func (p *Printer) Error(msg string) {
	fmt.Fprintf(p.w, "%s %s\n", red("error:"), msg)
}

// startSpinner animates an indeterminate bar until stopSpinner is called.
func (p *Printer) startSpinner(op string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return
	}
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetDescription(op),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionThrottle(65*time.Millisecond),
	)
	stop, done := make(chan struct{}), make(chan struct{})
	p.stop, p.done = stop, done
	go func() {
		defer close(done)
		t := time.NewTicker(100 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-stop:
				bar.Finish() //nolint:errcheck // terminal write
				return
			case <-t.C:
				bar.Add(1) //nolint:errcheck // terminal write
			}
		}
	}()
}

func (p *Printer) stopSpinner() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop == nil {
		return
	}
	close(p.stop)
	<-p.done
	p.stop, p.done = nil, nil
}

func round2(d time.Duration) time.Duration {
	if d > time.Second {
		return d.Round(100 * time.Millisecond)
	}
	return d.Round(time.Millisecond)
}
