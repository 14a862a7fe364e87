package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// ManifestFile is the dependency manifest every suite directory must contain.
	ManifestFile = "package.json"
	// TestEntryDir is the directory holding a suite's test files.
	TestEntryDir = "test"
)

// ErrMissingScript is returned by Manifest.Validate when a required run script is absent.
var ErrMissingScript = errors.New("missing test script")

// Manifest is the subset of a suite's package.json the harness depends on.
type Manifest struct {
	Name    string          `json:"name"`
	Scripts ManifestScripts `json:"scripts"`
}

// ManifestScripts enumerates the run scripts a suite must declare, one per network.
// Other scripts are ignored.
type ManifestScripts struct {
	TestGanache    string `json:"test-ganache"`
	TestEidonChain string `json:"test-eidon-chain"`
}

// DecodeManifest reads a manifest. The whole input must be a single JSON
// document; any shape other than an object with a "scripts" object of
// strings is an error.
func DecodeManifest(r io.Reader) (*Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", ManifestFile, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ManifestFile, err)
	}
	return &m, nil
}

// Script returns the command declared for network n, if any.
func (m *Manifest) Script(n Network) string {
	switch n {
	case NetworkGanache:
		return strings.TrimSpace(m.Scripts.TestGanache)
	case NetworkEidonChain:
		return strings.TrimSpace(m.Scripts.TestEidonChain)
	default:
		return ""
	}
}

// SupportedNetworks returns the networks the manifest declares a script for.
func (m *Manifest) SupportedNetworks() []Network {
	var networks []Network
	for _, n := range Networks() {
		if m.Script(n) != "" {
			networks = append(networks, n)
		}
	}
	return networks
}

// Validate requires a script for every network.
func (m *Manifest) Validate() error {
	for _, n := range Networks() {
		if m.Script(n) == "" {
			return fmt.Errorf("%w: `%s`", ErrMissingScript, n.Script())
		}
	}
	return nil
}
