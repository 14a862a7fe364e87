package metrics

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/ethereum-optimism/infra/op-soltest/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestErrToLabel(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{
			name: "nil error",
			err:  nil,
		},
		{
			name: "simple error",
			err:  errors.New("test error"),
		},
		{
			name: "error with special chars",
			err:  errors.New("start node timeout: 50s!"),
		},
		{
			name: "error with multiple spaces",
			err:  errors.New("test   error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := errToLabel(tt.err)
			validLabelRegex := regexp.MustCompile(`[a-zA-Z_][a-zA-Z0-9_]*`)
			if !validLabelRegex.MatchString(result) {
				t.Errorf("errToLabel() = %v, is not a valid Prometheus label", result)
			}
		})
	}
}

func TestRecordErrorDetails(t *testing.T) {
	// nil errors are not recorded
	RecordErrorDetails("test", nil)

	RecordErrorDetails("test", errors.New("sample error"))
	require.Equal(t, float64(1), testutil.ToFloat64(errorsTotal.WithLabelValues("test.sample_error")))
}

func TestRecordSuiteRun(t *testing.T) {
	RecordSuiteRun(types.NetworkGanache, "opcode", types.SuiteStatusPass, 2*time.Second)
	RecordSuiteRun(types.NetworkGanache, "opcode", types.SuiteStatusFail, 3*time.Second)
	RecordSuiteRun(types.NetworkGanache, "opcode", types.SuiteStatus("bogus"), time.Second)

	require.Equal(t, float64(1), testutil.ToFloat64(suiteRunsTotal.WithLabelValues("ganache", "opcode", "pass")))
	require.Equal(t, float64(1), testutil.ToFloat64(suiteRunsTotal.WithLabelValues("ganache", "opcode", "fail")))
	require.Equal(t, float64(3), testutil.ToFloat64(suiteDuration.WithLabelValues("ganache", "opcode")))
}

func TestRecordSuiteRejected(t *testing.T) {
	RecordSuiteRejected("missing_layout")
	RecordSuiteRejected("missing_layout")
	require.Equal(t, float64(2), testutil.ToFloat64(suiteRejectionsTotal.WithLabelValues("missing_layout")))
}

func TestRecordNodeStartupAndRun(t *testing.T) {
	RecordNodeStartup(types.NetworkEidonChain, true, 1500*time.Millisecond)
	require.Equal(t, 1.5, testutil.ToFloat64(nodeStartupSeconds.WithLabelValues("eidon-chain", "ready")))

	RecordRun(types.NetworkEidonChain, "run1", false)
	require.Equal(t, float64(1), testutil.ToFloat64(runResults.WithLabelValues("eidon-chain", "run1", "fail")))
}
