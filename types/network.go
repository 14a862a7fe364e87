package types

import (
	"fmt"
	"strings"
)

// Network identifies the chain a test suite runs against.
type Network string

const (
	// NetworkGanache is the simulated network provided by each suite's own tooling.
	NetworkGanache Network = "ganache"
	// NetworkEidonChain is a live eidond node booted by the harness.
	NetworkEidonChain Network = "eidon-chain"
)

// DefaultNetwork is used when no network is selected.
const DefaultNetwork = NetworkGanache

// suiteScripts maps every network to the manifest script that runs a suite against it.
var suiteScripts = map[Network]string{
	NetworkGanache:    "test-ganache",
	NetworkEidonChain: "test-eidon-chain",
}

// Networks returns all supported networks in a stable order.
func Networks() []Network {
	return []Network{NetworkGanache, NetworkEidonChain}
}

// ParseNetwork converts a CLI value into a Network. An empty value selects DefaultNetwork.
func ParseNetwork(s string) (Network, error) {
	if strings.TrimSpace(s) == "" {
		return DefaultNetwork, nil
	}
	n := Network(strings.TrimSpace(s))
	if !n.IsValid() {
		return "", fmt.Errorf("network is invalid: %q. Must be %s or %s", s, NetworkGanache, NetworkEidonChain)
	}
	return n, nil
}

// IsValid reports whether n is a known network.
func (n Network) IsValid() bool {
	_, ok := suiteScripts[n]
	return ok
}

// IsLive reports whether the network requires the harness to boot a node.
func (n Network) IsLive() bool {
	return n == NetworkEidonChain
}

// Script returns the manifest script name that runs a suite against n.
func (n Network) Script() string {
	return suiteScripts[n]
}

func (n Network) String() string {
	return string(n)
}
