package soltest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/op-soltest/flags"
	"github.com/ethereum-optimism/infra/op-soltest/supervisor"
	"github.com/ethereum-optimism/infra/op-soltest/types"
	"github.com/ethereum/go-ethereum/log"
)

const (
	DefaultSuitesDir = "suites"
	DependencyDir    = "node_modules"
)

// Config holds the application configuration
type Config struct {
	Network         types.Network
	Batch           *types.Batch // nil runs every suite
	AllowTests      []string
	VerboseLog      bool
	WorkDir         string // harness root; the bootstrap command runs here
	SuitesDir       string
	PackageManager  string
	BootstrapCmd    string
	BootstrapArgs   []string
	ReadinessMarker string
	StartupTimeout  time.Duration
	NodeRPCURL      string
	LogDir          string // per-suite log files are written when set
	Log             log.Logger
}

// NewConfig creates a new Config from cli context. Values from the optional
// YAML harness file override the built-in defaults; flags set explicitly on
// the command line or through the environment override both.
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, NewConfigError(fmt.Errorf("missing required flags: %w", err))
	}

	network, err := types.ParseNetwork(ctx.String(flags.Network.Name))
	if err != nil {
		return nil, NewConfigError(err)
	}

	var batch *types.Batch
	if s := ctx.String(flags.Batch.Name); s != "" {
		batch, err = types.ParseBatch(s)
		if err != nil {
			return nil, NewConfigError(err)
		}
	}

	workDir, err := filepath.Abs(ctx.String(flags.WorkDir.Name))
	if err != nil {
		return nil, NewConfigError(fmt.Errorf("failed to resolve absolute path for workdir '%s': %w", ctx.String(flags.WorkDir.Name), err))
	}
	if info, err := os.Stat(workDir); err != nil || !info.IsDir() {
		return nil, NewConfigError(fmt.Errorf("workdir %s is not a directory", workDir))
	}

	harness := &types.HarnessConfig{}
	if path := ctx.String(flags.HarnessConfig.Name); path != "" {
		harness, err = LoadHarnessConfig(path)
		if err != nil {
			return nil, NewConfigError(err)
		}
	}

	cfg := &Config{
		Network:         network,
		Batch:           batch,
		AllowTests:      normalizeAllowList(ctx.StringSlice(flags.AllowTests.Name)),
		VerboseLog:      ctx.Bool(flags.VerboseLog.Name),
		WorkDir:         workDir,
		SuitesDir:       filepath.Join(workDir, DefaultSuitesDir),
		PackageManager:  flags.DefaultPackageManager,
		BootstrapCmd:    flags.DefaultBootstrapCmd,
		ReadinessMarker: supervisor.DefaultReadinessMarker,
		StartupTimeout:  flags.DefaultStartupTimeout,
		Log:             log,
	}
	cfg.applyHarness(harness)
	if err := cfg.applyFlags(ctx); err != nil {
		return nil, NewConfigError(err)
	}

	cfg.BootstrapCmd = resolveCommand(cfg.WorkDir, cfg.BootstrapCmd)
	if cfg.StartupTimeout <= 0 {
		return nil, NewConfigError(fmt.Errorf("startup timeout must be positive, got %s", cfg.StartupTimeout))
	}
	if strings.TrimSpace(cfg.PackageManager) == "" {
		return nil, NewConfigError(errors.New("package manager cannot be empty"))
	}

	if !ctx.Bool(flags.SkipDepsCheck.Name) {
		deps := filepath.Join(cfg.WorkDir, DependencyDir)
		if info, err := os.Stat(deps); err != nil || !info.IsDir() {
			return nil, NewConfigError(fmt.Errorf("%s not found in %s, run `%s install` first", DependencyDir, cfg.WorkDir, cfg.PackageManager))
		}
	}

	return cfg, nil
}

// LoadHarnessConfig reads the YAML harness file at path.
func LoadHarnessConfig(path string) (*types.HarnessConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading harness config: %w", err)
	}
	var harness types.HarnessConfig
	if err := yaml.Unmarshal(data, &harness); err != nil {
		return nil, fmt.Errorf("parsing harness config %s: %w", path, err)
	}
	return &harness, nil
}

// applyHarness overlays non-zero harness values. Relative paths are taken
// from the workdir.
func (c *Config) applyHarness(h *types.HarnessConfig) {
	if h.SuitesDir != "" {
		c.SuitesDir = resolvePath(c.WorkDir, h.SuitesDir)
	}
	if h.PackageManager != "" {
		c.PackageManager = h.PackageManager
	}
	if h.LogDir != "" {
		c.LogDir = resolvePath(c.WorkDir, h.LogDir)
	}
	b := h.Bootstrap
	if b.Command != "" {
		c.BootstrapCmd = b.Command
	}
	if len(b.Args) > 0 {
		c.BootstrapArgs = b.Args
	}
	if b.ReadinessMarker != "" {
		c.ReadinessMarker = b.ReadinessMarker
	}
	if b.StartupTimeout != nil {
		c.StartupTimeout = *b.StartupTimeout
	}
	if b.RPCURL != "" {
		c.NodeRPCURL = b.RPCURL
	}
}

// applyFlags overlays flags that were set explicitly.
func (c *Config) applyFlags(ctx *cli.Context) error {
	if ctx.IsSet(flags.SuitesDir.Name) {
		dir, err := filepath.Abs(ctx.String(flags.SuitesDir.Name))
		if err != nil {
			return fmt.Errorf("failed to resolve absolute path for suites directory: %w", err)
		}
		c.SuitesDir = dir
	}
	if ctx.IsSet(flags.LogDir.Name) {
		c.LogDir = ""
		if v := ctx.String(flags.LogDir.Name); v != "" {
			dir, err := filepath.Abs(v)
			if err != nil {
				return fmt.Errorf("failed to resolve absolute path for log directory: %w", err)
			}
			c.LogDir = dir
		}
	}
	if ctx.IsSet(flags.PackageManager.Name) {
		c.PackageManager = ctx.String(flags.PackageManager.Name)
	}
	if ctx.IsSet(flags.BootstrapCmd.Name) {
		c.BootstrapCmd = ctx.String(flags.BootstrapCmd.Name)
		c.BootstrapArgs = nil
	}
	if ctx.IsSet(flags.StartupTimeout.Name) {
		c.StartupTimeout = ctx.Duration(flags.StartupTimeout.Name)
	}
	if ctx.IsSet(flags.NodeRPCURL.Name) {
		c.NodeRPCURL = ctx.String(flags.NodeRPCURL.Name)
	}
	return nil
}

func normalizeAllowList(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func resolvePath(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

// resolveCommand anchors a relative script path to the workdir. Bare
// command names are left for PATH lookup.
func resolveCommand(workDir, cmd string) string {
	if filepath.IsAbs(cmd) || !strings.ContainsRune(cmd, filepath.Separator) {
		return cmd
	}
	return filepath.Join(workDir, cmd)
}
