package types

import "slices"

// SuiteDescriptor describes one discovered test suite directory.
type SuiteDescriptor struct {
	Name              string
	Dir               string
	HasRequiredLayout bool
	SupportedNetworks []Network
}

// Supports reports whether the suite declares a run script for n.
func (s SuiteDescriptor) Supports(n Network) bool {
	return slices.Contains(s.SupportedNetworks, n)
}

// SuiteNames returns the names of suites in order.
func SuiteNames(suites []SuiteDescriptor) []string {
	names := make([]string, 0, len(suites))
	for _, s := range suites {
		names = append(names, s.Name)
	}
	return names
}
