// Package soltest runs contract test suites against a simulated or live
// network and reports a single pass/fail outcome.
package soltest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-soltest/exitcodes"
	"github.com/ethereum-optimism/infra/op-soltest/logging"
	"github.com/ethereum-optimism/infra/op-soltest/metrics"
	"github.com/ethereum-optimism/infra/op-soltest/registry"
	"github.com/ethereum-optimism/infra/op-soltest/runner"
	"github.com/ethereum-optimism/infra/op-soltest/service"
	"github.com/ethereum-optimism/infra/op-soltest/supervisor"
	"github.com/ethereum-optimism/infra/op-soltest/types"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
)

// soltest implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &soltest{}

// soltest performs a single test run and then asks the app to shut down.
type soltest struct {
	config       *Config
	version      string
	orchestrator *Orchestrator
	fileLogger   *logging.FileLogger
	service      *service.Service
	out          io.Writer
	report       *types.Report

	running atomic.Bool

	shutdownCallback func(error) // Callback to signal application shutdown
}

func New(config *Config, version string, svc *service.Service, shutdownCallback func(error)) (*soltest, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	runID := uuid.New().String()
	config.Log.Debug("Creating soltest with config",
		"run_id", runID,
		"network", config.Network,
		"batch", config.Batch,
		"allowTests", config.AllowTests,
		"workDir", config.WorkDir,
		"suitesDir", config.SuitesDir,
		"bootstrapCmd", config.BootstrapCmd)

	var fileLogger *logging.FileLogger
	if config.LogDir != "" {
		var err error
		fileLogger, err = logging.NewFileLogger(config.LogDir, runID, config.Network)
		if err != nil {
			return nil, fmt.Errorf("failed to create file logger: %w", err)
		}
	}

	suiteRunner := runner.NewSuiteRunner(runner.Config{
		Log:            config.Log,
		PackageManager: config.PackageManager,
		FileLogger:     fileLogger,
	})

	var starter NetworkStarter
	if config.Network.IsLive() {
		sup, err := supervisor.New(supervisor.Config{
			Log:             config.Log,
			Network:         config.Network,
			Command:         config.BootstrapCmd,
			Args:            config.BootstrapArgs,
			Dir:             config.WorkDir,
			ReadinessMarker: config.ReadinessMarker,
			Timeout:         config.StartupTimeout,
			Verbose:         config.VerboseLog,
			RPCURL:          config.NodeRPCURL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create node supervisor: %w", err)
		}
		starter = SupervisorStarter{Supervisor: sup}
	}

	orchestrator, err := NewOrchestrator(OrchestratorConfig{
		Log:        config.Log,
		Network:    config.Network,
		SuitesDir:  config.SuitesDir,
		AllowTests: config.AllowTests,
		Batch:      config.Batch,
		RunID:      runID,
		Discover:   registry.Discover,
		Runner:     suiteRunner,
		Starter:    starter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	if svc == nil {
		svc = service.New(service.Config{Log: config.Log})
	}

	return &soltest{
		config:           config,
		version:          version,
		orchestrator:     orchestrator,
		fileLogger:       fileLogger,
		service:          svc,
		out:              os.Stdout,
		shutdownCallback: shutdownCallback,
	}, nil
}

// Start performs the test run. It returns once the run is over; any error
// makes the process exit with exitcodes.Fatal. Errors are returned, not
// logged, so each failure is printed exactly once.
// Start implements the cliapp.Lifecycle interface.
func (s *soltest) Start(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordError("panic")
			err = cli.Exit(fmt.Sprintf("runtime error: %v", r), exitcodes.Fatal)
		}
	}()

	s.running.Store(true)
	s.config.Log.Info("Starting op-soltest", "version", s.version, "run_id", s.orchestrator.RunID(), "network", s.config.Network)

	if err := s.service.Start(); err != nil {
		_ = s.Stop(ctx)
		return err
	}

	report, err := s.orchestrator.Run(ctx)
	s.report = report
	s.finish(report)

	if err != nil {
		// The app does not call Stop when Start fails.
		_ = s.Stop(ctx)
		return err
	}

	s.config.Log.Info("Test run completed", "run_id", s.orchestrator.RunID(), "suites", report.TotalRun())
	go s.shutdownCallback(nil)
	return nil
}

// finish prints the results and flushes the log files.
func (s *soltest) finish(report *types.Report) {
	if report != nil && len(report.Selected) > 0 {
		printResultsTable(s.out, report)
		fmt.Fprintln(s.out, report.String())
	}
	if s.fileLogger == nil {
		return
	}
	if report != nil {
		if err := s.fileLogger.LogSummary(report.String()); err != nil {
			s.config.Log.Warn("Failed to write run summary", "err", err)
		}
	}
	if err := s.fileLogger.Complete(); err != nil {
		s.config.Log.Warn("Failed to complete log files", "err", err)
	}
	s.config.Log.Info("Suite logs written", "dir", s.fileLogger.GetDirectory())
}

// Stop implements the cliapp.Lifecycle interface.
func (s *soltest) Stop(ctx context.Context) error {
	if !s.running.Swap(false) {
		return nil
	}
	s.config.Log.Info("Stopping op-soltest")
	s.service.Shutdown()
	return nil
}

// Stopped implements the cliapp.Lifecycle interface.
func (s *soltest) Stopped() bool {
	return !s.running.Load()
}

// Report returns the report of the last run, if any.
func (s *soltest) Report() *types.Report {
	return s.report
}
