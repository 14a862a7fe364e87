package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/ethereum-optimism/infra/op-soltest/metrics"
	"github.com/ethereum-optimism/infra/op-soltest/types"
	"github.com/ethereum/go-ethereum/log"
)

// Reasons a suite directory is skipped during discovery.
const (
	RejectNotDirectory   = "not_directory"
	RejectMissingLayout  = "missing_layout"
	RejectBadManifest    = "bad_manifest"
	RejectMissingScripts = "missing_scripts"
)

// Registry holds the test suites discovered under a suites directory
type Registry struct {
	config Config
	suites []types.SuiteDescriptor
	mu     sync.RWMutex
}

// Config contains registry configuration
type Config struct {
	Log       log.Logger
	SuitesDir string
}

// NewRegistry creates a new registry instance and scans the suites directory.
// Malformed suites are skipped with a warning; only an unreadable suites
// directory is an error.
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.SuitesDir == "" {
		return nil, fmt.Errorf("suites directory is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}

	r := &Registry{
		config: cfg,
	}

	if err := r.loadSuites(); err != nil {
		return nil, fmt.Errorf("failed to load suites: %w", err)
	}

	cfg.Log.Debug("Registry loaded", "len(suites)", len(r.suites))

	return r, nil
}

// Discover scans suitesDir and returns the valid suites sorted by name,
// restricted to allowList when it is non-empty.
func Discover(logger log.Logger, suitesDir string, allowList []string) ([]types.SuiteDescriptor, error) {
	r, err := NewRegistry(Config{Log: logger, SuitesDir: suitesDir})
	if err != nil {
		return nil, err
	}
	return r.GetSuitesByName(allowList), nil
}

func (r *Registry) loadSuites() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// os.ReadDir returns entries sorted by filename, which keeps batches
	// reproducible across machines.
	entries, err := os.ReadDir(r.config.SuitesDir)
	if err != nil {
		return fmt.Errorf("reading suites directory: %w", err)
	}

	var suites []types.SuiteDescriptor
	for _, entry := range entries {
		suite, ok := r.inspectSuite(entry.Name())
		if !ok {
			continue
		}
		suites = append(suites, suite)
	}
	r.suites = suites
	return nil
}

// inspectSuite validates a single candidate directory.
func (r *Registry) inspectSuite(name string) (types.SuiteDescriptor, bool) {
	dir := filepath.Join(r.config.SuitesDir, name)
	suite := types.SuiteDescriptor{Name: name, Dir: dir}

	// Stat follows symlinks, so a linked suite directory is accepted.
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		r.reject(name, RejectNotDirectory, "Skipping test suite: not a directory")
		return suite, false
	}

	for _, f := range []string{types.ManifestFile, types.TestEntryDir} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			r.reject(name, RejectMissingLayout, "Skipping test suite: missing file or directory", "path", f)
			return suite, false
		}
	}
	suite.HasRequiredLayout = true

	manifest, err := loadManifest(filepath.Join(dir, types.ManifestFile))
	if err != nil {
		r.reject(name, RejectBadManifest, "Skipping test suite: manifest load failed", "err", err)
		return suite, false
	}
	if err := manifest.Validate(); err != nil {
		r.reject(name, RejectMissingScripts, "Skipping test suite: missing test script", "err", err)
		return suite, false
	}
	suite.SupportedNetworks = manifest.SupportedNetworks()

	return suite, true
}

func (r *Registry) reject(name, reason, msg string, ctx ...any) {
	r.config.Log.Warn(msg, append([]any{"suite", name}, ctx...)...)
	metrics.RecordSuiteRejected(reason)
}

// GetSuites returns all discovered suites in name order
func (r *Registry) GetSuites() []types.SuiteDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.suites)
}

// GetSuitesByName returns the discovered suites whose names appear in
// allowList, in name order. An empty allowList returns every suite. Names
// that match no suite are ignored.
func (r *Registry) GetSuitesByName(allowList []string) []types.SuiteDescriptor {
	if len(allowList) == 0 {
		return r.GetSuites()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var suites []types.SuiteDescriptor
	for _, suite := range r.suites {
		if slices.Contains(allowList, suite.Name) {
			suites = append(suites, suite)
		}
	}
	return suites
}

// GetConfig returns the registry configuration
func (r *Registry) GetConfig() Config {
	return r.config
}

// loadManifest reads and decodes a suite's package.json
func loadManifest(path string) (*types.Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	defer f.Close()

	return types.DecodeManifest(f)
}
