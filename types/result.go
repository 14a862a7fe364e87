package types

import (
	"fmt"
	"time"
)

// SuiteStatus represents the outcome of a suite in a run
type SuiteStatus string

const (
	SuiteStatusPass SuiteStatus = "pass"
	SuiteStatusFail SuiteStatus = "fail"
	SuiteStatusSkip SuiteStatus = "skip" // not run because an earlier suite failed
)

// RunResult captures the outcome of a single suite execution.
type RunResult struct {
	Suite    string
	Network  Network
	ExitCode int
	Duration time.Duration
}

// Succeeded reports whether the suite exited with code 0.
func (r RunResult) Succeeded() bool {
	return r.ExitCode == 0
}

// Status returns the pass/fail status of the result.
func (r RunResult) Status() SuiteStatus {
	if r.Succeeded() {
		return SuiteStatusPass
	}
	return SuiteStatusFail
}

// Report aggregates the results of a run.
type Report struct {
	RunID    string
	Network  Network
	Selected []string    // suites selected for this run, in order
	Results  []RunResult // results of the suites that ran, in order
	Duration time.Duration

	// FirstFailure is the suite that stopped the run, if any.
	FirstFailure *RunResult
}

// Record appends a result. The first failing result becomes FirstFailure.
func (r *Report) Record(result RunResult) {
	r.Results = append(r.Results, result)
	if !result.Succeeded() && r.FirstFailure == nil {
		failure := result
		r.FirstFailure = &failure
	}
}

// TotalRun is the number of suites that were executed.
func (r *Report) TotalRun() int {
	return len(r.Results)
}

// AllSucceeded reports whether every selected suite ran and passed.
func (r *Report) AllSucceeded() bool {
	return r.FirstFailure == nil && len(r.Results) == len(r.Selected)
}

// NotRun returns the selected suites that never started.
func (r *Report) NotRun() []string {
	if len(r.Results) >= len(r.Selected) {
		return nil
	}
	return r.Selected[len(r.Results):]
}

func (r *Report) String() string {
	if r.FirstFailure != nil {
		return fmt.Sprintf("%d/%d test suites run on %s, %s failed with exit code %d",
			r.TotalRun(), len(r.Selected), r.Network, r.FirstFailure.Suite, r.FirstFailure.ExitCode)
	}
	return fmt.Sprintf("%d/%d test suites passed on %s", r.TotalRun(), len(r.Selected), r.Network)
}
