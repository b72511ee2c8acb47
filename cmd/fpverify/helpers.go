package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/newtron-network/fpverify/pkg/metrics"
	"github.com/newtron-network/fpverify/pkg/topology"
)

// loadTopology parses a declaration file and binds it when bindingsPath is set.
func loadTopology(topoPath, bindingsPath string) (*topology.Topology, error) {
	if topoPath == "" {
		return nil, fmt.Errorf("no topology file (use --topology or 'fpverify settings set topology FILE')")
	}
	topo, err := topology.Load(topoPath)
	if err != nil {
		return nil, err
	}
	if bindingsPath == "" {
		return topo, nil
	}
	b, err := topology.LoadBindings(bindingsPath)
	if err != nil {
		return nil, err
	}
	if err := topo.Bind(b); err != nil {
		return nil, err
	}
	return topo, nil
}

// signalContext returns a context cancelled on SIGINT.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// writeMetrics writes rec to path when path is set.
func writeMetrics(rec *metrics.Recorder, path string) error {
	if path == "" {
		return nil
	}
	if err := rec.WriteTextfile(path); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
