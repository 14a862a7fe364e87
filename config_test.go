package soltest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-soltest/flags"
	"github.com/ethereum-optimism/infra/op-soltest/supervisor"
	"github.com/ethereum-optimism/infra/op-soltest/types"
)

// harnessDir creates a workdir with node_modules installed.
func harnessDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, DependencyDir), 0755))
	return dir
}

// loadConfig runs NewConfig inside a cli app parsing args.
func loadConfig(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	var (
		cfg    *Config
		cfgErr error
	)
	app := &cli.App{
		Flags: flags.Flags,
		Action: func(ctx *cli.Context) error {
			cfg, cfgErr = NewConfig(ctx, log.NewLogger(log.DiscardHandler()))
			return nil
		},
	}
	if err := app.Run(append([]string{"op-soltest"}, args...)); err != nil {
		return nil, err
	}
	return cfg, cfgErr
}

func TestNewConfigDefaults(t *testing.T) {
	dir := harnessDir(t)

	cfg, err := loadConfig(t, "--workdir", dir)
	require.NoError(t, err)

	assert.Equal(t, types.NetworkGanache, cfg.Network)
	assert.Nil(t, cfg.Batch)
	assert.Empty(t, cfg.AllowTests)
	assert.False(t, cfg.VerboseLog)
	assert.Equal(t, dir, cfg.WorkDir)
	assert.Equal(t, filepath.Join(dir, "suites"), cfg.SuitesDir)
	assert.Equal(t, "yarn", cfg.PackageManager)
	assert.Equal(t, filepath.Join(filepath.Dir(dir), "e2e", "init-node.sh"), cfg.BootstrapCmd)
	assert.Equal(t, supervisor.DefaultReadinessMarker, cfg.ReadinessMarker)
	assert.Equal(t, 50*time.Second, cfg.StartupTimeout)
	assert.Empty(t, cfg.NodeRPCURL)
	assert.Empty(t, cfg.LogDir)
	assert.NotNil(t, cfg.Log)
}

func TestNewConfigFromFlags(t *testing.T) {
	dir := harnessDir(t)
	suites := t.TempDir()
	logs := t.TempDir()

	cfg, err := loadConfig(t,
		"--workdir", dir,
		"--network", "eidon-chain",
		"--batch", "2-3",
		"--allow-tests", "opcode, storage,,",
		"--verbose-log",
		"--suites-dir", suites,
		"--package-manager", "npm",
		"--bootstrap-cmd", "/usr/local/bin/start-node",
		"--startup-timeout", "5s",
		"--node.rpc-url", "http://127.0.0.1:8545",
		"--logdir", logs,
	)
	require.NoError(t, err)

	assert.Equal(t, types.NetworkEidonChain, cfg.Network)
	assert.Equal(t, &types.Batch{Index: 2, Count: 3}, cfg.Batch)
	assert.Equal(t, []string{"opcode", "storage"}, cfg.AllowTests)
	assert.True(t, cfg.VerboseLog)
	assert.Equal(t, suites, cfg.SuitesDir)
	assert.Equal(t, "npm", cfg.PackageManager)
	assert.Equal(t, "/usr/local/bin/start-node", cfg.BootstrapCmd)
	assert.Equal(t, 5*time.Second, cfg.StartupTimeout)
	assert.Equal(t, "http://127.0.0.1:8545", cfg.NodeRPCURL)
	assert.Equal(t, logs, cfg.LogDir)
}

func TestNewConfigBareBootstrapCommand(t *testing.T) {
	cfg, err := loadConfig(t, "--workdir", harnessDir(t), "--bootstrap-cmd", "eidond")
	require.NoError(t, err)
	assert.Equal(t, "eidond", cfg.BootstrapCmd, "bare names are looked up in PATH")
}

func TestNewConfigBadBatch(t *testing.T) {
	dir := harnessDir(t)
	for _, batch := range []string{"3-2", "0-2", "1-0", "a-b", "12", "-1-2"} {
		t.Run(batch, func(t *testing.T) {
			_, err := loadConfig(t, "--workdir", dir, "--batch", batch)
			require.Error(t, err)
			assert.True(t, IsConfigError(err))
		})
	}
}

func TestNewConfigUnknownNetwork(t *testing.T) {
	_, err := loadConfig(t, "--workdir", harnessDir(t), "--network", "hardhat")
	require.Error(t, err)
}

func TestNewConfigMissingDependencies(t *testing.T) {
	dir := t.TempDir()

	_, err := loadConfig(t, "--workdir", dir)
	require.True(t, IsConfigError(err))
	assert.Contains(t, err.Error(), "yarn install")

	_, err = loadConfig(t, "--workdir", dir, "--skip-deps-check")
	require.NoError(t, err)
}

func TestNewConfigMissingWorkdir(t *testing.T) {
	_, err := loadConfig(t, "--workdir", filepath.Join(t.TempDir(), "missing"))
	require.True(t, IsConfigError(err))
}

func TestNewConfigInvalidStartupTimeout(t *testing.T) {
	_, err := loadConfig(t, "--workdir", harnessDir(t), "--startup-timeout", "0s")
	require.True(t, IsConfigError(err))
}

func TestNewConfigHarnessFile(t *testing.T) {
	dir := harnessDir(t)
	harness := filepath.Join(dir, "soltest.yaml")
	require.NoError(t, os.WriteFile(harness, []byte(`
suites_dir: contracts/suites
package_manager: npm
log_dir: /tmp/soltest-logs
bootstrap:
  command: ./scripts/boot.sh
  args: ["--dev"]
  readiness_marker: "JSON-RPC ready"
  startup_timeout: 90s
  rpc_url: http://localhost:8545
`), 0644))

	t.Run("harness overrides defaults", func(t *testing.T) {
		cfg, err := loadConfig(t, "--workdir", dir, "--config", harness)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "contracts", "suites"), cfg.SuitesDir)
		assert.Equal(t, "npm", cfg.PackageManager)
		assert.Equal(t, "/tmp/soltest-logs", cfg.LogDir)
		assert.Equal(t, filepath.Join(dir, "scripts", "boot.sh"), cfg.BootstrapCmd)
		assert.Equal(t, []string{"--dev"}, cfg.BootstrapArgs)
		assert.Equal(t, "JSON-RPC ready", cfg.ReadinessMarker)
		assert.Equal(t, 90*time.Second, cfg.StartupTimeout)
		assert.Equal(t, "http://localhost:8545", cfg.NodeRPCURL)
	})

	t.Run("explicit flags override harness", func(t *testing.T) {
		cfg, err := loadConfig(t,
			"--workdir", dir,
			"--config", harness,
			"--package-manager", "pnpm",
			"--startup-timeout", "10s",
			"--bootstrap-cmd", "/opt/node/start.sh",
		)
		require.NoError(t, err)
		assert.Equal(t, "pnpm", cfg.PackageManager)
		assert.Equal(t, 10*time.Second, cfg.StartupTimeout)
		assert.Equal(t, "/opt/node/start.sh", cfg.BootstrapCmd)
		assert.Empty(t, cfg.BootstrapArgs, "harness args belong to the harness command")
		assert.Equal(t, filepath.Join(dir, "contracts", "suites"), cfg.SuitesDir)
	})

	t.Run("environment counts as explicit", func(t *testing.T) {
		t.Setenv("OP_SOLTEST_PACKAGE_MANAGER", "bun")
		cfg, err := loadConfig(t, "--workdir", dir, "--config", harness)
		require.NoError(t, err)
		assert.Equal(t, "bun", cfg.PackageManager)
	})
}

func TestNewConfigBadHarnessFile(t *testing.T) {
	dir := harnessDir(t)

	_, err := loadConfig(t, "--workdir", dir, "--config", filepath.Join(dir, "missing.yaml"))
	require.True(t, IsConfigError(err))

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("bootstrap: [unclosed"), 0644))
	_, err = loadConfig(t, "--workdir", dir, "--config", bad)
	require.True(t, IsConfigError(err))

	badDuration := filepath.Join(dir, "duration.yaml")
	require.NoError(t, os.WriteFile(badDuration, []byte("bootstrap:\n  startup_timeout: soon\n"), 0644))
	_, err = loadConfig(t, "--workdir", dir, "--config", badDuration)
	require.True(t, IsConfigError(err))
}
