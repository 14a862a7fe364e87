// Package exitcodes defines the standard exit codes used by op-soltest.
package exitcodes

// Exit code constants used by op-soltest.
//
// * Success (0): all selected test suites passed
// * Fatal (-1): any fatal condition. No suites found, bad batch input,
//   node bootstrap timeout or spawn failure, a suite exiting nonzero, or an
//   unexpected runtime error.
const (
	Success = 0  // All suites pass
	Fatal   = -1 // Configuration, bootstrap, suite or runtime failure
)
