// Package round drives the fixed-point loop: explore the project, apply the
// fixes that do not add new errors, fold the report into the accumulated
// set, and stop once a round teaches nothing new.
package round

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/papapumpkin/nullfix/internal/artifact"
	"github.com/papapumpkin/nullfix/internal/finding"
	"github.com/papapumpkin/nullfix/internal/ledger"
	"github.com/papapumpkin/nullfix/internal/metrics"
	"github.com/papapumpkin/nullfix/internal/selector"
	"github.com/papapumpkin/nullfix/internal/telemetry"
)

// Analyzer runs the external analysis tool. Every call blocks until the
// tool exits.
type Analyzer interface {
	Explore(ctx context.Context) error
	Apply(ctx context.Context, batchPath string) error
	Trace(ctx context.Context) error
}

// UI receives progress notifications for the operator.
type UI interface {
	RoundStart(round int)
	ToolStart(op string)
	ToolDone(op string, elapsed time.Duration, err error)
	RoundDone(round int, stats Stats)
	InitializersSelected(count int)
	Finished(outcome Outcome, rounds int)
}

// Stats summarizes one round.
type Stats struct {
	Reported    int
	Selected    int
	New         int
	Accumulated int
}

// Result is the outcome of Run.
type Result struct {
	Outcome     Outcome
	Rounds      int
	Accumulated int
}

// Controller orchestrates rounds against one output directory. Analyzer,
// Store and Dir are required; the rest are optional.
type Controller struct {
	Analyzer              Analyzer
	Store                 *finding.Store
	Dir                   artifact.Dir
	UI                    UI
	Events                *telemetry.Emitter
	Ledger                *ledger.Ledger
	Metrics               *metrics.Recorder
	InitializerAnnotation string
	MaxRounds             int // 0 means unbounded.
	Log                   *slog.Logger
	Now                   func() time.Time

	state *State
}

func (c *Controller) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Controller) log() *slog.Logger {
	if c.Log != nil {
		return c.Log
	}
	return slog.Default()
}

func (c *Controller) ui() UI {
	if c.UI != nil {
		return c.UI
	}
	return nopUI{}
}

// RunID is the identifier of the run started by Begin.
func (c *Controller) RunID() string {
	if c.state == nil {
		return ""
	}
	return c.state.RunID
}

// Begin starts a run of the named command: it allocates a run id, records
// the run in the ledger and resets the persisted run state. Operations
// called without Begin start an implicit run.
func (c *Controller) Begin(ctx context.Context, command string) string {
	at := c.now()
	c.state = &State{
		Version:   1,
		RunID:     uuid.NewString(),
		Command:   command,
		Phase:     PhaseIdle,
		Outcome:   OutcomeRunning,
		StartedAt: at,
		UpdatedAt: at,
	}
	if c.Store != nil {
		c.state.Accumulated = c.Store.Len()
	}
	if err := c.Ledger.StartRun(ctx, c.state.RunID, command, at); err != nil {
		c.log().Warn("ledger unavailable", "error", err)
	}
	c.emit(telemetry.Event{Kind: telemetry.KindRunStart, Data: map[string]string{"command": command}})
	c.saveState()
	c.log().Info("run started", "run", c.state.RunID, "command", command)
	return c.state.RunID
}

// End closes the run. The outcome is derived from err when it is non-nil.
func (c *Controller) End(ctx context.Context, outcome Outcome, err error) {
	if c.state == nil {
		return
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		outcome = OutcomeInterrupted
	case errors.Is(err, ErrMaxRounds):
		outcome = OutcomeMaxRounds
	case err != nil:
		outcome = OutcomeFailed
	}
	at := c.now()
	c.state.Phase = PhaseDone
	c.state.Outcome = outcome
	if err != nil {
		c.state.Error = err.Error()
	}
	c.saveState()

	data := telemetry.RunData{
		Outcome:    string(outcome),
		Rounds:     c.state.Round,
		DurationMs: at.Sub(c.state.StartedAt).Milliseconds(),
	}
	if err != nil {
		data.Error = err.Error()
	}
	c.emit(telemetry.Event{Kind: telemetry.KindRunDone, Data: data})

	// The command context may already be cancelled; the ledger row must
	// still be closed.
	if lerr := c.Ledger.FinishRun(context.WithoutCancel(ctx), c.state.RunID, string(outcome), err, at); lerr != nil {
		c.log().Warn("ledger unavailable", "error", lerr)
	}
	c.Metrics.RunDone(string(outcome), at)
	if merr := c.Metrics.WriteTextfile(c.Dir.Path(artifact.Metrics)); merr != nil {
		c.log().Warn("metrics not written", "error", merr)
	}
	c.log().Info("run finished", "run", c.state.RunID, "outcome", outcome, "rounds", c.state.Round)
}

// Run executes rounds until a fixed point is reached: either the tool
// reports nothing, or a round adds nothing to the accumulated set.
func (c *Controller) Run(ctx context.Context) (*Result, error) {
	c.ensureRun(ctx, "run")
	for round := 1; ; round++ {
		if c.MaxRounds > 0 && round > c.MaxRounds {
			c.log().Warn("round limit reached", "max_rounds", c.MaxRounds)
			return c.result(OutcomeMaxRounds, round-1), ErrMaxRounds
		}
		if err := ctx.Err(); err != nil {
			return c.result(OutcomeInterrupted, round-1), err
		}

		outcome, err := c.runRound(ctx, round)
		if err != nil {
			return c.result(OutcomeFailed, round), fmt.Errorf("round %d: %w", round, err)
		}
		if outcome != OutcomeRunning {
			c.ui().Finished(outcome, round)
			return c.result(outcome, round), nil
		}
	}
}

func (c *Controller) result(outcome Outcome, rounds int) *Result {
	return &Result{Outcome: outcome, Rounds: rounds, Accumulated: c.Store.Len()}
}

// runRound performs one explore, select, apply and merge step and returns
// OutcomeRunning when another round is needed.
func (c *Controller) runRound(ctx context.Context, round int) (Outcome, error) {
	started := c.now()
	c.state.Round = round
	c.ui().RoundStart(round)
	c.emit(telemetry.Event{Kind: telemetry.KindRoundStart, Round: round})
	c.log().Info("round started", "round", round)

	report, err := c.Explore(ctx)
	if err != nil {
		return "", err
	}
	stats := Stats{Reported: len(report), Accumulated: c.Store.Len()}
	if len(report) == 0 {
		c.finishRound(ctx, round, started, stats)
		c.log().Info("no more issues", "round", round)
		return OutcomeNoIssues, nil
	}

	selected, err := c.ApplySelected(ctx, report)
	if err != nil {
		return "", err
	}
	stats.Selected = len(selected)

	c.setPhase(PhaseMerge)
	added, err := c.Store.Merge(report)
	if err != nil {
		return "", err
	}
	stats.New = added
	stats.Accumulated = c.Store.Len()
	c.state.Accumulated = stats.Accumulated
	c.finishRound(ctx, round, started, stats)

	if added == 0 {
		c.log().Info("reached fixed point", "round", round, "accumulated", stats.Accumulated)
		return OutcomeConverged, nil
	}
	return OutcomeRunning, nil
}

func (c *Controller) finishRound(ctx context.Context, round int, started time.Time, stats Stats) {
	c.ui().RoundDone(round, stats)
	c.Metrics.RoundDone(stats.Selected, stats.Accumulated)
	c.emit(telemetry.Event{Kind: telemetry.KindRoundDone, Round: round, Data: telemetry.RoundData{
		Reported:    stats.Reported,
		Selected:    stats.Selected,
		New:         stats.New,
		Accumulated: stats.Accumulated,
	}})
	err := c.Ledger.RecordRound(ctx, ledger.Round{
		RunID:       c.state.RunID,
		Round:       round,
		Reported:    stats.Reported,
		Selected:    stats.Selected,
		New:         stats.New,
		Accumulated: stats.Accumulated,
		StartedAt:   started,
		FinishedAt:  c.now(),
	})
	if err != nil {
		c.log().Warn("ledger unavailable", "error", err)
	}
	c.saveState()
}

// Explore runs one diagnostic pass and returns the Round Report. A report
// left over from an earlier pass is discarded first, so a tool that exits
// cleanly without writing one is detected.
func (c *Controller) Explore(ctx context.Context) ([]finding.Finding, error) {
	c.ensureRun(ctx, "explore")
	c.setPhase(PhaseExplore)
	if err := c.Store.DiscardRoundReport(); err != nil {
		return nil, err
	}
	if err := c.tool(ctx, "explore", func() error { return c.Analyzer.Explore(ctx) }); err != nil {
		return nil, err
	}
	report, err := c.Store.LoadRoundReport()
	if err != nil {
		return nil, err
	}
	c.log().Debug("round report loaded", "findings", len(report))
	return report, nil
}

// ApplySelected writes the effective subset of report to the selected-fix
// batch and applies it. An empty selection is written but not applied.
func (c *Controller) ApplySelected(ctx context.Context, report []finding.Finding) ([]finding.Finding, error) {
	c.ensureRun(ctx, "apply")
	selected := selector.Select(report)
	path, err := finding.WriteBatch(c.Dir, artifact.SelectedFixes, selected)
	if err != nil {
		return nil, err
	}
	c.emit(telemetry.Event{Kind: telemetry.KindFixesSelected, Round: c.state.Round, Data: telemetry.RoundData{
		Reported: len(report),
		Selected: len(selected),
	}})
	c.log().Debug("fixes selected", "reported", len(report), "selected", len(selected))
	if len(selected) == 0 {
		c.log().Info("nothing to inject")
		return selected, nil
	}
	if err := c.Apply(ctx, path); err != nil {
		return nil, err
	}
	return selected, nil
}

// Apply injects the batch at path.
func (c *Controller) Apply(ctx context.Context, path string) error {
	c.ensureRun(ctx, "apply")
	c.setPhase(PhaseApply)
	return c.tool(ctx, "apply", func() error { return c.Analyzer.Apply(ctx, path) })
}

// tool wraps one analyzer invocation with progress and telemetry.
func (c *Controller) tool(ctx context.Context, op string, fn func() error) error {
	started := c.now()
	c.ui().ToolStart(op)
	c.emit(telemetry.Event{Kind: telemetry.KindToolStart, Round: c.state.Round, Data: telemetry.ToolData{Op: op}})

	err := fn()

	elapsed := c.now().Sub(started)
	c.ui().ToolDone(op, elapsed, err)
	c.Metrics.ToolDone(op, elapsed, err)
	data := telemetry.ToolData{Op: op, DurationMs: elapsed.Milliseconds()}
	if err != nil {
		data.Error = err.Error()
	}
	c.emit(telemetry.Event{Kind: telemetry.KindToolDone, Round: c.state.Round, Data: data})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	c.log().Debug("tool finished", "op", op, "elapsed", elapsed)
	return nil
}

func (c *Controller) ensureRun(ctx context.Context, command string) {
	if c.state == nil {
		c.Begin(ctx, command)
	}
}

func (c *Controller) setPhase(p Phase) {
	c.state.Phase = p
	c.saveState()
}

func (c *Controller) saveState() {
	c.state.UpdatedAt = c.now()
	if err := SaveState(c.Dir, c.state); err != nil {
		c.log().Warn("run state not saved", "error", err)
	}
}

func (c *Controller) emit(evt telemetry.Event) {
	if c.state != nil {
		evt.RunID = c.state.RunID
	}
	if err := c.Events.Emit(evt); err != nil {
		c.log().Warn("telemetry event dropped", "kind", evt.Kind, "error", err)
	}
}

type nopUI struct{}

func (nopUI) RoundStart(int)                        {}
func (nopUI) ToolStart(string)                      {}
func (nopUI) ToolDone(string, time.Duration, error) {}
func (nopUI) RoundDone(int, Stats)                  {}
func (nopUI) InitializersSelected(int)              {}
func (nopUI) Finished(Outcome, int)                 {}
