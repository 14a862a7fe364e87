package soltest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/op-soltest/metrics"
	"github.com/ethereum-optimism/infra/op-soltest/partition"
	"github.com/ethereum-optimism/infra/op-soltest/runner"
	"github.com/ethereum-optimism/infra/op-soltest/supervisor"
	"github.com/ethereum-optimism/infra/op-soltest/types"
	"github.com/ethereum/go-ethereum/log"
)

// SuiteDiscoverer lists the runnable suites under suitesDir, sorted by name
// and restricted to allowList when it is non-empty.
type SuiteDiscoverer func(logger log.Logger, suitesDir string, allowList []string) ([]types.SuiteDescriptor, error)

// NetworkHandle is a started live node.
type NetworkHandle interface {
	Stop()
	State() supervisor.State
}

// NetworkStarter boots the live node. When it returns a non-nil handle the
// caller must Stop it, also on error.
type NetworkStarter interface {
	Start(ctx context.Context) (NetworkHandle, error)
}

// SupervisorStarter adapts a supervisor.Supervisor to NetworkStarter.
type SupervisorStarter struct {
	Supervisor *supervisor.Supervisor
}

func (s SupervisorStarter) Start(ctx context.Context) (NetworkHandle, error) {
	h, err := s.Supervisor.Start(ctx)
	if h == nil {
		// A nil *Handle must not become a non-nil interface.
		return nil, err
	}
	return h, err
}

// OrchestratorConfig wires an Orchestrator.
type OrchestratorConfig struct {
	Log        log.Logger
	Network    types.Network
	SuitesDir  string
	AllowTests []string
	Batch      *types.Batch
	RunID      string // generated when empty

	Discover SuiteDiscoverer
	Runner   runner.SuiteRunner
	Starter  NetworkStarter // required for live networks
}

// Orchestrator runs the selected suites one after another against a network.
type Orchestrator struct {
	config OrchestratorConfig
	tracer trace.Tracer
}

func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Discover == nil {
		return nil, fmt.Errorf("suite discoverer is required")
	}
	if cfg.Runner == nil {
		return nil, fmt.Errorf("suite runner is required")
	}
	if !cfg.Network.IsValid() {
		return nil, NewConfigError(fmt.Errorf("unknown network %q", cfg.Network))
	}
	if cfg.Network.IsLive() && cfg.Starter == nil {
		return nil, fmt.Errorf("network starter is required for %s", cfg.Network)
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.New().String()
	}
	return &Orchestrator{
		config: cfg,
		tracer: otel.Tracer("orchestrator"),
	}, nil
}

// RunID identifies this run in logs, metrics and log directories.
func (o *Orchestrator) RunID() string {
	return o.config.RunID
}

// Run discovers and selects suites, boots the live node when needed and
// runs the suites in order, stopping at the first failure. The node is
// stopped before Run returns on every path. The returned report is non-nil
// whenever suites were selected, also on error.
func (o *Orchestrator) Run(ctx context.Context) (report *types.Report, err error) {
	ctx, span := o.tracer.Start(ctx, "test run")
	defer span.End()
	span.SetAttributes(
		attribute.String("run_id", o.config.RunID),
		attribute.String("network", o.config.Network.String()),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	suites, err := o.selectSuites()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	report = &types.Report{
		RunID:    o.config.RunID,
		Network:  o.config.Network,
		Selected: types.SuiteNames(suites),
	}
	defer func() {
		report.Duration = time.Since(start)
		metrics.RecordRun(o.config.Network, o.config.RunID, err == nil && report.AllSucceeded())
	}()

	// Unlike an empty registry, an empty shard is not fatal: with more
	// shards than suites some shards run nothing and succeed without a node.
	if len(suites) == 0 {
		o.config.Log.Warn("Batch selected no test suites", "batch", o.config.Batch)
		return report, nil
	}

	if o.config.Network.IsLive() {
		handle, err := o.config.Starter.Start(ctx)
		if handle != nil {
			defer handle.Stop()
		}
		if err != nil {
			return report, &BootstrapError{Err: err}
		}
	}

	if err := o.runSuites(ctx, suites, report); err != nil {
		return report, err
	}

	o.config.Log.Info(fmt.Sprintf("%d test suites passed!", report.TotalRun()), "network", o.config.Network, "run_id", o.config.RunID)
	return report, nil
}

// selectSuites discovers the suites and applies the batch.
func (o *Orchestrator) selectSuites() ([]types.SuiteDescriptor, error) {
	suites, err := o.config.Discover(o.config.Log, o.config.SuitesDir, o.config.AllowTests)
	if err != nil {
		return nil, NewConfigError(fmt.Errorf("discovering suites: %w", err))
	}
	if len(suites) == 0 {
		return nil, &NoSuitesError{SuitesDir: o.config.SuitesDir, AllowTests: o.config.AllowTests}
	}

	if b := o.config.Batch; b != nil {
		total := len(suites)
		suites, err = partition.Partition(suites, b.Index, b.Count)
		if err != nil {
			return nil, NewConfigError(err)
		}
		o.config.Log.Info("Running batch", "batch", b.String(), "selected", len(suites), "total", total)
	}

	o.config.Log.Info("Running test suites", "network", o.config.Network, "suites", types.SuiteNames(suites))
	return suites, nil
}

// runSuites runs each suite sequentially, stopping at the first failure.
func (o *Orchestrator) runSuites(ctx context.Context, suites []types.SuiteDescriptor, report *types.Report) error {
	for _, suite := range suites {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run interrupted: %w", err)
		}

		o.config.Log.Info("Start test suite", "suite", suite.Name)
		result, err := o.config.Runner.Run(ctx, suite, o.config.Network)
		if err != nil {
			return fmt.Errorf("test suite %s could not run: %w", suite.Name, err)
		}
		report.Record(*result)

		if !result.Succeeded() {
			return &SuiteFailureError{Suite: result.Suite, ExitCode: result.ExitCode}
		}
		o.config.Log.Info("Test suite passed", "suite", suite.Name, "duration", result.Duration)
	}
	return nil
}
