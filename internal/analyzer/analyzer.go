// Package analyzer runs the external nullability analyzer and the target
// project's build. Every call blocks until the subprocess exits and reports
// only success or failure; results are exchanged through files in the
// output directory.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/papapumpkin/nullfix/internal/artifact"
	"github.com/papapumpkin/nullfix/internal/config"
)

const (
	stderrTail = 4096
	// waitDelay bounds how long output copying may outlive a killed process.
	waitDelay = 5 * time.Second
)

// Invoker runs the analyzer jar and the project build for one configuration.
type Invoker struct {
	cfg config.Config
	dir artifact.Dir
	log *slog.Logger

	// Echo, when non-nil, receives subprocess output as it is produced.
	Echo io.Writer
}

// New returns an Invoker for cfg.
func New(cfg config.Config, log *slog.Logger) *Invoker {
	if log == nil {
		log = slog.Default()
	}
	return &Invoker{cfg: cfg, dir: artifact.Dir(cfg.OutDir), log: log}
}

// exploreArgs builds the jar arguments for a diagnostic pass. The order is
// fixed by the analyzer's command line.
func exploreArgs(cfg config.Config, configPath string) []string {
	return []string{
		"-jar", cfg.Tool.Jar,
		"explore",
		configPath,
		cfg.BuildInRoot(),
		strconv.Itoa(cfg.Depth),
		cfg.Annotation.Nullable,
		strconv.FormatBool(cfg.Format),
		strconv.FormatBool(cfg.Tool.Cache),
		strconv.FormatBool(cfg.Tool.Optimized),
		strconv.FormatBool(cfg.Tool.Bailout),
		strconv.FormatBool(cfg.Tool.Chain),
	}
}

// applyArgs builds the jar arguments for injecting a fix batch.
func applyArgs(cfg config.Config, batchPath string) []string {
	return []string{
		"-jar", cfg.Tool.Jar,
		"apply",
		batchPath,
		strconv.FormatBool(cfg.Format),
	}
}

// Explore runs one diagnostic pass. On success the analyzer has written the
// round report into the output directory.
func (inv *Invoker) Explore(ctx context.Context) error {
	cfgPath, err := inv.writeConfig(false)
	if err != nil {
		return err
	}
	return inv.run(ctx, "explore", inv.cfg.ProjectPath, inv.cfg.Tool.JavaPath, exploreArgs(inv.cfg, cfgPath)...)
}

// Apply injects the fixes listed in the batch file at batchPath into the
// project's sources.
func (inv *Invoker) Apply(ctx context.Context, batchPath string) error {
	return inv.run(ctx, "apply", inv.cfg.ProjectPath, inv.cfg.Tool.JavaPath, applyArgs(inv.cfg, batchPath)...)
}

// Trace builds the project with field-write tracing enabled. On success the
// suggested-fix and field-write tables are in the output directory.
func (inv *Invoker) Trace(ctx context.Context) error {
	if _, err := inv.writeConfig(true); err != nil {
		return err
	}
	return inv.run(ctx, "trace", inv.cfg.RepoRootPath, "/bin/sh", "-c", inv.cfg.BuildCommand)
}

// Validate checks that the java binary and the analyzer jar are present.
func (inv *Invoker) Validate() error {
	if _, err := exec.LookPath(inv.cfg.Tool.JavaPath); err != nil {
		return fmt.Errorf("java not found at %q: %w", inv.cfg.Tool.JavaPath, err)
	}
	if _, err := os.Stat(inv.cfg.Tool.Jar); err != nil {
		return fmt.Errorf("analyzer jar not found at %q: %w", inv.cfg.Tool.Jar, err)
	}
	return nil
}

func (inv *Invoker) writeConfig(traceFieldWrites bool) (string, error) {
	path := inv.dir.Path(artifact.SerializationConfig)
	c := newSerializationConfig(inv.cfg.OutDir, inv.cfg.Annotation.Nullable, inv.cfg.Annotation.NonNull, traceFieldWrites)
	if err := writeSerializationConfig(path, c); err != nil {
		return "", err
	}
	return path, nil
}

// run executes name in dir and waits for it. Output is appended to the tool
// log in the output directory.
func (inv *Invoker) run(ctx context.Context, op, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.SysProcAttr = sessionAttr()
	cmd.Cancel = func() error { return killSession(cmd.Process) }
	cmd.WaitDelay = waitDelay

	stderr := &tailBuffer{max: stderrTail}
	stdout := []io.Writer{}
	errw := []io.Writer{stderr}

	logFile, err := os.OpenFile(inv.dir.Path(artifact.ToolLog), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		inv.log.Warn("tool log unavailable", "err", err)
	} else {
		defer logFile.Close()
		fmt.Fprintf(logFile, "\n=== %s: %s %s\n", op, name, strings.Join(args, " "))
		stdout = append(stdout, logFile)
		errw = append(errw, logFile)
	}
	if inv.Echo != nil {
		stdout = append(stdout, inv.Echo)
		errw = append(errw, inv.Echo)
	}
	cmd.Stdout = io.MultiWriter(stdout...)
	cmd.Stderr = io.MultiWriter(errw...)

	inv.log.Debug("running", "op", op, "cmd", name, "args", args, "dir", dir)

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s interrupted: %w", op, ctxErr)
		}
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &ToolError{Op: op, ExitCode: code, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	inv.log.Debug("finished", "op", op)
	return nil
}
