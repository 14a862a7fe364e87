package flags

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-soltest/types"
	opservice "github.com/ethereum-optimism/optimism/op-service"
	opflags "github.com/ethereum-optimism/optimism/op-service/flags"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

const EnvVarPrefix = "OP_SOLTEST"

const (
	DefaultWorkDir        = "."
	DefaultPackageManager = "yarn"
	DefaultBootstrapCmd   = "../e2e/init-node.sh"
	DefaultStartupTimeout = 50 * time.Second
)

var (
	Network = &cli.StringFlag{
		Name:    "network",
		Value:   string(types.DefaultNetwork),
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "NETWORK"),
		Usage:   fmt.Sprintf("Network to run the suites against (%v)", types.Networks()),
		Action: func(_ *cli.Context, v string) error {
			_, err := types.ParseNetwork(v)
			return err
		},
	}
	Batch = &cli.StringFlag{
		Name:    "batch",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "BATCH"),
		Usage:   "Run only one shard of the suites, as '<index>-<count>' (eg. '2-4')",
	}
	AllowTests = &cli.StringSliceFlag{
		Name:    "allow-tests",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "ALLOW_TESTS"),
		Usage:   "Comma separated list of suite names to run; all suites when empty",
	}
	VerboseLog = &cli.BoolFlag{
		Name:    "verbose-log",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "VERBOSE_LOG"),
		Usage:   "Forward the node's output to the console while it boots",
	}
	WorkDir = &cli.StringFlag{
		Name:    "workdir",
		Value:   DefaultWorkDir,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "WORKDIR"),
		Usage:   "Harness root directory; the bootstrap command runs from here",
	}
	SuitesDir = &cli.StringFlag{
		Name:    "suites-dir",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SUITES_DIR"),
		Usage:   "Directory containing the test suites (default: <workdir>/suites)",
	}
	SkipDepsCheck = &cli.BoolFlag{
		Name:    "skip-deps-check",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SKIP_DEPS_CHECK"),
		Usage:   "Do not require <workdir>/node_modules to exist",
	}
	PackageManager = &cli.StringFlag{
		Name:    "package-manager",
		Value:   DefaultPackageManager,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PACKAGE_MANAGER"),
		Usage:   "Package manager used to run each suite's test script",
	}
	BootstrapCmd = &cli.StringFlag{
		Name:    "bootstrap-cmd",
		Value:   DefaultBootstrapCmd,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "BOOTSTRAP_CMD"),
		Usage:   "Script that boots the live node, relative to the workdir",
	}
	StartupTimeout = &cli.DurationFlag{
		Name:    "startup-timeout",
		Value:   DefaultStartupTimeout,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "STARTUP_TIMEOUT"),
		Usage:   "How long to wait for the node to report readiness",
	}
	NodeRPCURL = &cli.StringFlag{
		Name:    "node.rpc-url",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "NODE_RPC_URL"),
		Usage:   "Optional JSON-RPC endpoint of the live node, probed once it is ready",
	}
	LogDir = &cli.StringFlag{
		Name:    "logdir",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LOGDIR"),
		Usage:   "Directory to store a log file per suite; disabled when empty",
	}
	HarnessConfig = &cli.StringFlag{
		Name:    "config",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CONFIG"),
		Usage:   "Optional YAML harness file (eg. 'soltest.yaml')",
	}
)

var requiredFlags = []cli.Flag{}

var optionalFlags = []cli.Flag{
	Network,
	Batch,
	AllowTests,
	VerboseLog,
	WorkDir,
	SuitesDir,
	SkipDepsCheck,
	PackageManager,
	BootstrapCmd,
	StartupTimeout,
	NodeRPCURL,
	LogDir,
	HarnessConfig,
}
var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return opflags.CheckRequiredXor(ctx)
}
