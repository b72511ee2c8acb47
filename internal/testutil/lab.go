//go:build e2e

package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/newtron-network/fpverify/pkg/device"
	"github.com/newtron-network/fpverify/pkg/topology"
)

// Environment variables that point the e2e tests at a running lab.
const (
	EnvLabTopology = "FPVERIFY_LAB_TOPOLOGY"
	EnvLabBindings = "FPVERIFY_LAB_BINDINGS"
)

// SkipIfNoLab skips the test when no lab topology and bindings are configured.
func SkipIfNoLab(t *testing.T) {
	t.Helper()
	if os.Getenv(EnvLabTopology) == "" || os.Getenv(EnvLabBindings) == "" {
		t.Skipf("no lab configured: set %s and %s", EnvLabTopology, EnvLabBindings)
	}
}

// LabTopology loads the lab topology and binds it to the lab's endpoints.
func LabTopology(t *testing.T) *topology.Topology {
	t.Helper()
	SkipIfNoLab(t)

	topo, err := topology.Load(os.Getenv(EnvLabTopology))
	if err != nil {
		t.Fatalf("loading lab topology: %v", err)
	}
	b, err := topology.LoadBindings(os.Getenv(EnvLabBindings))
	if err != nil {
		t.Fatalf("loading lab bindings: %v", err)
	}
	if err := topo.Bind(b); err != nil {
		t.Fatalf("binding lab topology: %v", err)
	}
	return topo
}

// LabContext returns a context with a 2-minute timeout for switch operations.
func LabContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)
	return ctx
}

// LabConnectedDevice connects to a lab node over SSH. Registers cleanup.
func LabConnectedDevice(t *testing.T, node *topology.Node) *device.SSHDevice {
	t.Helper()
	dev, err := device.DialNode(LabContext(t), node)
	if err != nil {
		t.Fatalf("connecting to %s: %v", node.ID, err)
	}
	t.Cleanup(func() { dev.Close() })
	return dev
}
