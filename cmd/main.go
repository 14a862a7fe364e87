package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	soltest "github.com/ethereum-optimism/infra/op-soltest"
	"github.com/ethereum-optimism/infra/op-soltest/exitcodes"
	"github.com/ethereum-optimism/infra/op-soltest/flags"
	"github.com/ethereum-optimism/infra/op-soltest/service"
	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "op-soltest"
	app.Usage = "Contract test suite runner"
	app.Description = "op-soltest runs the contract test suites against a simulated or live network"
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.Action = cliapp.LifecycleCmd(run)
	app.ExitErrHandler = func(c *cli.Context, err error) {
		if err == nil {
			return
		}
		// Every failure, whether configuration, bootstrap, suite or
		// runtime, exits with the same code.
		cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.Fatal))
	}

	// Start telemetry
	ctx, shutdown, err := telemetry.SetupOpenTelemetry(
		context.Background(),
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Error("Failed to setup open telemetry", "message", err)
		os.Exit(exitcodes.Fatal)
	}
	defer shutdown()

	// Start CLI
	ctx = ctxinterrupt.WithSignalWaiterMain(ctx)
	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Error("Application failed", "message", err)
		shutdown()
		os.Exit(exitcodes.Fatal)
	}
}

func run(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
	logCfg := oplog.ReadCLIConfig(ctx)
	log := oplog.NewLogger(oplog.AppOut(ctx), logCfg)
	oplog.SetGlobalLogHandler(log.Handler())
	oplog.SetupDefaults()

	cfg, err := soltest.NewConfig(ctx, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create config: %w", err)
	}
	cfg.Log.Debug("Config", "config", cfg)

	metricsCfg := opmetrics.ReadCLIConfig(ctx)
	if err := metricsCfg.Check(); err != nil {
		return nil, soltest.NewConfigError(fmt.Errorf("invalid metrics config: %w", err))
	}
	svc := service.New(service.ConfigFromMetrics(log, metricsCfg.Enabled, metricsCfg.ListenAddr, metricsCfg.ListenPort))

	app, err := soltest.New(cfg, Version, svc, closeApp)
	if err != nil {
		return nil, fmt.Errorf("failed to create op-soltest: %w", err)
	}
	return app, nil
}
