package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/papapumpkin/nullfix/internal/analyzer"
	"github.com/papapumpkin/nullfix/internal/artifact"
	"github.com/papapumpkin/nullfix/internal/config"
	"github.com/papapumpkin/nullfix/internal/finding"
	"github.com/papapumpkin/nullfix/internal/ledger"
	"github.com/papapumpkin/nullfix/internal/logging"
	"github.com/papapumpkin/nullfix/internal/metrics"
	"github.com/papapumpkin/nullfix/internal/round"
	"github.com/papapumpkin/nullfix/internal/telemetry"
	"github.com/papapumpkin/nullfix/internal/ui"
)

// loadConfig reads the effective configuration and configures logging.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return config.Config{}, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logging.Init(level, cfg.LogFormat, os.Stderr)
	return cfg, nil
}

// session wires every component of one command invocation around the
// output directory.
type session struct {
	cfg     config.Config
	dir     artifact.Dir
	printer *ui.Printer
	store   *finding.Store
	ledger  *ledger.Ledger
	events  *telemetry.Emitter
	ctrl    *round.Controller
}

// openSession validates the configuration and the analyzer installation,
// prepares the output directory and opens the persisted state.
func openSession(ctx context.Context, cfg config.Config, printer *ui.Printer) (*session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	inv := analyzer.New(cfg, logging.New("analyzer"))
	if cfg.Verbose {
		inv.Echo = os.Stderr
	}
	if err := inv.Validate(); err != nil {
		printer.Error(fmt.Sprintf("analyzer not available: %v", err))
		return nil, err
	}

	dir := artifact.Dir(cfg.OutDir)
	if err := dir.Prepare(); err != nil {
		return nil, err
	}
	store, err := finding.Open(dir, logging.New("store"))
	if err != nil {
		return nil, fmt.Errorf("%w (run `nullfix clean` to start over)", err)
	}

	s := &session{cfg: cfg, dir: dir, printer: printer, store: store}
	// The ledger and the event stream are records of the run, not inputs to
	// it; losing them is not fatal.
	if s.ledger, err = ledger.Open(ctx, dir.Path(artifact.History)); err != nil {
		printer.Warn(fmt.Sprintf("run history disabled: %v", err))
		s.ledger = nil
	}
	if s.events, err = telemetry.NewEmitter(dir.Path(artifact.Events)); err != nil {
		printer.Warn(fmt.Sprintf("telemetry disabled: %v", err))
		s.events = nil
	}

	s.ctrl = &round.Controller{
		Analyzer:              inv,
		Store:                 store,
		Dir:                   dir,
		UI:                    printer,
		Events:                s.events,
		Ledger:                s.ledger,
		Metrics:               metrics.New(),
		InitializerAnnotation: cfg.Annotation.Initializer,
		MaxRounds:             cfg.MaxRounds,
		Log:                   logging.New("round"),
	}
	return s, nil
}

func (s *session) Close() {
	if err := s.events.Close(); err != nil {
		s.printer.Warn(err.Error())
	}
	if err := s.ledger.Close(); err != nil {
		s.printer.Warn(err.Error())
	}
}

// setupSignalContext returns a child of parent that is canceled on SIGINT
// or SIGTERM.
func setupSignalContext(parent context.Context, printer *ui.Printer) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			printer.Info("\nshutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
