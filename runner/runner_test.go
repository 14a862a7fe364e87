//go:build !windows

package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum-optimism/infra/op-soltest/logging"
	"github.com/ethereum-optimism/infra/op-soltest/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type invocation struct {
	name string
	args []string
}

// shellBuilder runs script with /bin/sh in place of the package manager and
// records what would have been invoked.
func shellBuilder(script string, calls *[]invocation) cmdBuilder {
	return func(ctx context.Context, name string, arg ...string) *exec.Cmd {
		*calls = append(*calls, invocation{name: name, args: arg})
		return exec.CommandContext(ctx, "/bin/sh", "-c", script)
	}
}

func testSuite(t *testing.T, name string) types.SuiteDescriptor {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	return types.SuiteDescriptor{
		Name:              name,
		Dir:               dir,
		HasRequiredLayout: true,
		SupportedNetworks: types.Networks(),
	}
}

func newTestRunner(script string, calls *[]invocation, stdout, stderr *bytes.Buffer, fl *logging.FileLogger) *runner {
	return newRunner(Config{
		Log:        log.NewLogger(log.DiscardHandler()),
		Stdout:     stdout,
		Stderr:     stderr,
		FileLogger: fl,
	}, shellBuilder(script, calls))
}

func TestNewRunnerDefaults(t *testing.T) {
	r := newRunner(Config{}, exec.CommandContext)
	assert.Equal(t, DefaultPackageManager, r.packageManager)
	assert.Equal(t, os.Stdout, r.stdout)
	assert.Equal(t, os.Stderr, r.stderr)
	assert.NotNil(t, r.log)
}

func TestRunPassingSuite(t *testing.T) {
	var calls []invocation
	var stdout, stderr bytes.Buffer
	r := newTestRunner(`echo "  3 passing"; echo "warning: deprecated" >&2`, &calls, &stdout, &stderr, nil)

	suite := testSuite(t, "opcode")
	result, err := r.Run(context.Background(), suite, types.NetworkEidonChain)
	require.NoError(t, err)

	assert.Equal(t, "opcode", result.Suite)
	assert.Equal(t, types.NetworkEidonChain, result.Network)
	assert.Equal(t, 0, result.ExitCode)
	assert.True(t, result.Succeeded())
	assert.Greater(t, result.Duration, time.Duration(0))

	assert.Equal(t, "  3 passing\n", stdout.String())
	assert.Equal(t, "warning: deprecated\n", stderr.String())

	require.Len(t, calls, 1)
	assert.Equal(t, "yarn", calls[0].name)
	assert.Equal(t, []string{"test-eidon-chain"}, calls[0].args)
}

func TestRunScriptPerNetwork(t *testing.T) {
	for _, network := range types.Networks() {
		t.Run(network.String(), func(t *testing.T) {
			var calls []invocation
			var stdout, stderr bytes.Buffer
			r := newTestRunner(`exit 0`, &calls, &stdout, &stderr, nil)

			_, err := r.Run(context.Background(), testSuite(t, "s"), network)
			require.NoError(t, err)
			require.Len(t, calls, 1)
			assert.Equal(t, []string{network.Script()}, calls[0].args)
		})
	}
}

func TestRunFailingSuiteIsNotAnError(t *testing.T) {
	var calls []invocation
	var stdout, stderr bytes.Buffer
	r := newTestRunner(`echo "  1 failing"; exit 3`, &calls, &stdout, &stderr, nil)

	result, err := r.Run(context.Background(), testSuite(t, "storage"), types.NetworkGanache)
	require.NoError(t, err)
	assert.Equal(t, 3, result.ExitCode)
	assert.False(t, result.Succeeded())
	assert.Equal(t, types.SuiteStatusFail, result.Status())
}

func TestRunUsesSuiteDirectory(t *testing.T) {
	var calls []invocation
	var stdout, stderr bytes.Buffer
	r := newTestRunner(`pwd -P`, &calls, &stdout, &stderr, nil)

	suite := testSuite(t, "cwd")
	_, err := r.Run(context.Background(), suite, types.NetworkGanache)
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(suite.Dir)
	require.NoError(t, err)
	assert.Equal(t, want, strings.TrimSpace(stdout.String()))
}

func TestRunInheritsEnvironment(t *testing.T) {
	t.Setenv("SOLTEST_RUNNER_MARKER", "inherited")

	var calls []invocation
	var stdout, stderr bytes.Buffer
	r := newTestRunner(`printf "%s" "$SOLTEST_RUNNER_MARKER"`, &calls, &stdout, &stderr, nil)

	_, err := r.Run(context.Background(), testSuite(t, "env"), types.NetworkGanache)
	require.NoError(t, err)
	assert.Equal(t, "inherited", stdout.String())
}

func TestRunSpawnFailure(t *testing.T) {
	r := newRunner(Config{
		Log:            log.NewLogger(log.DiscardHandler()),
		PackageManager: "/nonexistent/yarn",
		Stdout:         &bytes.Buffer{},
		Stderr:         &bytes.Buffer{},
	}, exec.CommandContext)

	result, err := r.Run(context.Background(), testSuite(t, "opcode"), types.NetworkGanache)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "opcode")
}

func TestRunUnknownNetwork(t *testing.T) {
	var calls []invocation
	var stdout, stderr bytes.Buffer
	r := newTestRunner(`exit 0`, &calls, &stdout, &stderr, nil)

	_, err := r.Run(context.Background(), testSuite(t, "opcode"), types.Network("hardhat"))
	require.Error(t, err)
	assert.Empty(t, calls)
}

func TestRunInterrupted(t *testing.T) {
	var calls []invocation
	var stdout, stderr bytes.Buffer
	r := newTestRunner(`exec sleep 30`, &calls, &stdout, &stderr, nil)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	result, err := r.Run(ctx, testSuite(t, "slow"), types.NetworkGanache)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Nil(t, result)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestRunWritesSuiteLog(t *testing.T) {
	fl, err := logging.NewFileLogger(t.TempDir(), "run-1", types.NetworkGanache)
	require.NoError(t, err)

	var calls []invocation
	var stdout, stderr bytes.Buffer
	r := newTestRunner(`echo "Contract: Bank"; echo "  1 failing" >&2; exit 1`, &calls, &stdout, &stderr, fl)

	result, err := r.Run(context.Background(), testSuite(t, "bank"), types.NetworkGanache)
	require.NoError(t, err)
	require.Equal(t, 1, result.ExitCode)
	require.NoError(t, fl.Complete())

	// Terminal pass-through is kept.
	assert.Equal(t, "Contract: Bank\n", stdout.String())
	assert.Equal(t, "  1 failing\n", stderr.String())

	suiteLog, err := os.ReadFile(fl.GetSuiteLogFile("bank"))
	require.NoError(t, err)
	assert.Contains(t, string(suiteLog), "Contract: Bank\n")
	assert.Contains(t, string(suiteLog), "  1 failing\n")

	summary, err := os.ReadFile(fl.GetSummaryFile())
	require.NoError(t, err)
	assert.Contains(t, string(summary), "bank")
	assert.Contains(t, string(summary), "exit=1")
}

func TestExitCodeFrom(t *testing.T) {
	code, err := exitCodeFrom(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	runErr := exec.Command("/bin/sh", "-c", "exit 7").Run()
	code, err = exitCodeFrom(runErr)
	require.NoError(t, err)
	assert.Equal(t, 7, code)

	_, err = exitCodeFrom(errors.New("exec: not found"))
	require.Error(t, err)
}
