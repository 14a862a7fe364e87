package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/ethereum-optimism/infra/op-soltest/types"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "soltest"
)

// Registry holds every soltest collector along with the process and Go
// runtime collectors. It is what the metrics server exposes.
var Registry = opmetrics.NewRegistry()

var factory = promauto.With(Registry)

var (
	Debug                bool = true
	validStatuses             = []types.SuiteStatus{types.SuiteStatusPass, types.SuiteStatusFail, types.SuiteStatusSkip}
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	suiteRejectionsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "suite_rejections_total",
		Help:      "Count of suite directories skipped during discovery",
	}, []string{
		"reason",
	})

	suiteRunsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "suite_runs_total",
		Help:      "Count of suite executions",
	}, []string{
		"network",
		"suite",
		"result",
	})

	suiteDuration = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "suite_duration_seconds",
		Help:      "Duration of the last execution of a suite",
	}, []string{
		"network",
		"suite",
	})

	nodeStartupSeconds = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "node_startup_seconds",
		Help:      "Time from spawning the node bootstrap process until it was ready or failed",
	}, []string{
		"network",
		"result",
	})

	runResults = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Result of a harness run",
	}, []string{
		"network",
		"run_id",
		"result",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

func RecordSuiteRejected(reason string) {
	suiteRejectionsTotal.WithLabelValues(reason).Inc()
}

func RecordSuiteRun(network types.Network, suite string, status types.SuiteStatus, duration time.Duration) {
	if !slices.Contains(validStatuses, status) {
		log.Error("RecordSuiteRun - invalid status", "status", status)
		return
	}
	if Debug {
		log.Debug("metric inc",
			"m", "suite_runs_total",
			"network", network,
			"suite", suite,
			"result", status)
	}
	suiteRunsTotal.WithLabelValues(network.String(), suite, string(status)).Inc()
	suiteDuration.WithLabelValues(network.String(), suite).Set(duration.Seconds())
}

func RecordNodeStartup(network types.Network, ready bool, duration time.Duration) {
	result := "ready"
	if !ready {
		result = "failed"
	}
	nodeStartupSeconds.WithLabelValues(network.String(), result).Set(duration.Seconds())
}

func RecordRun(network types.Network, runID string, passed bool) {
	result := string(types.SuiteStatusPass)
	if !passed {
		result = string(types.SuiteStatusFail)
	}
	runResults.WithLabelValues(network.String(), runID, result).Set(1)
}
