package types

import "time"

// HarnessConfig is the optional YAML file describing how the harness is wired
// into a repository. Zero values leave the built-in defaults in place.
type HarnessConfig struct {
	SuitesDir      string          `yaml:"suites_dir,omitempty"`
	PackageManager string          `yaml:"package_manager,omitempty"`
	LogDir         string          `yaml:"log_dir,omitempty"`
	Bootstrap      BootstrapConfig `yaml:"bootstrap,omitempty"`
}

// BootstrapConfig describes the command that boots a live node.
type BootstrapConfig struct {
	Command         string         `yaml:"command,omitempty"`
	Args            []string       `yaml:"args,omitempty"`
	ReadinessMarker string         `yaml:"readiness_marker,omitempty"`
	StartupTimeout  *time.Duration `yaml:"startup_timeout,omitempty"`
	RPCURL          string         `yaml:"rpc_url,omitempty"`
}
