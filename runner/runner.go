// Package runner executes a single test suite against a network.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/ethereum-optimism/infra/op-soltest/logging"
	"github.com/ethereum-optimism/infra/op-soltest/metrics"
	"github.com/ethereum-optimism/infra/op-soltest/types"
	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultPackageManager runs the suite scripts.
	DefaultPackageManager = "yarn"

	// waitDelay bounds how long output is drained after an interrupted
	// suite is killed, since test processes it spawned may hold the pipes.
	waitDelay = 5 * time.Second
)

// SuiteRunner runs one suite's test script for a network.
type SuiteRunner interface {
	Run(ctx context.Context, suite types.SuiteDescriptor, network types.Network) (*types.RunResult, error)
}

// cmdBuilder creates the command for a suite. It is replaced in tests.
type cmdBuilder func(ctx context.Context, name string, arg ...string) *exec.Cmd

// runner implements SuiteRunner
type runner struct {
	log            log.Logger
	packageManager string
	stdout         io.Writer
	stderr         io.Writer
	fileLogger     *logging.FileLogger
	buildCmd       cmdBuilder
	tracer         trace.Tracer
}

// Config holds configuration for creating a new runner
type Config struct {
	Log            log.Logger
	PackageManager string              // defaults to yarn
	Stdout         io.Writer           // defaults to os.Stdout
	Stderr         io.Writer           // defaults to os.Stderr
	FileLogger     *logging.FileLogger // optional, receives a copy of each suite's output
}

// NewSuiteRunner creates a new suite runner
func NewSuiteRunner(cfg Config) SuiteRunner {
	return newRunner(cfg, exec.CommandContext)
}

func newRunner(cfg Config, build cmdBuilder) *runner {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.PackageManager == "" {
		cfg.PackageManager = DefaultPackageManager
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}

	return &runner{
		log:            cfg.Log,
		packageManager: cfg.PackageManager,
		stdout:         cfg.Stdout,
		stderr:         cfg.Stderr,
		fileLogger:     cfg.FileLogger,
		buildCmd:       build,
		tracer:         otel.Tracer("suite runner"),
	}
}

// Run invokes `<package manager> <script>` in the suite directory, passing
// its output through, and waits for it to exit. A nonzero exit code is a
// normal result; an error is returned only when the suite could not be run.
func (r *runner) Run(ctx context.Context, suite types.SuiteDescriptor, network types.Network) (*types.RunResult, error) {
	script := network.Script()
	if script == "" {
		return nil, fmt.Errorf("unknown network %q", network)
	}

	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("suite %s", suite.Name))
	defer span.End()
	span.SetAttributes(
		attribute.String("suite", suite.Name),
		attribute.String("network", network.String()),
	)

	cmd := r.buildCmd(ctx, r.packageManager, script)
	cmd.Dir = suite.Dir
	cmd.Env = telemetry.InstrumentEnvironment(ctx, os.Environ())
	cmd.WaitDelay = waitDelay

	stdout, stderr := r.stdout, r.stderr
	if r.fileLogger != nil {
		suiteLog, err := r.fileLogger.SuiteWriter(suite.Name)
		if err != nil {
			r.log.Warn("Failed to open suite log file", "suite", suite.Name, "err", err)
		} else {
			defer func() {
				if err := suiteLog.Close(); err != nil {
					r.log.Warn("Failed to close suite log file", "suite", suite.Name, "err", err)
				}
			}()
			stdout = io.MultiWriter(stdout, suiteLog)
			stderr = io.MultiWriter(stderr, suiteLog)
		}
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	r.log.Debug("Running suite command", "suite", suite.Name, "dir", cmd.Dir, "command", cmd.String())

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)
	if errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil {
		r.log.Warn("Suite output still open after exit", "suite", suite.Name)
		err = nil
		if code := cmd.ProcessState.ExitCode(); code != 0 {
			err = &exec.ExitError{ProcessState: cmd.ProcessState}
		}
	}

	exitCode, err := exitCodeFrom(err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "suite did not run")
		metrics.RecordErrorDetails("suite_spawn", err)
		return nil, fmt.Errorf("running suite %s: %w", suite.Name, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("suite %s interrupted: %w", suite.Name, ctxErr)
	}

	result := &types.RunResult{
		Suite:    suite.Name,
		Network:  network,
		ExitCode: exitCode,
		Duration: duration,
	}
	span.SetAttributes(attribute.Int("exit_code", exitCode))
	if !result.Succeeded() {
		span.SetStatus(codes.Error, fmt.Sprintf("exit code %d", exitCode))
	}
	metrics.RecordSuiteRun(network, suite.Name, result.Status(), duration)

	if r.fileLogger != nil {
		if err := r.fileLogger.LogResult(result); err != nil {
			r.log.Warn("Failed to log suite result", "suite", suite.Name, "err", err)
		}
	}

	return result, nil
}

// exitCodeFrom maps the error of cmd.Run to an exit code. Only failures
// to start or wait on the process are returned as errors.
func exitCodeFrom(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code, nil
		}
		// Killed by a signal.
		return -1, nil
	}
	return 0, err
}

var _ SuiteRunner = &runner{}
