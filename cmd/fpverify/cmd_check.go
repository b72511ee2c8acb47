package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/fpverify/pkg/cli"
	"github.com/newtron-network/fpverify/pkg/device"
	"github.com/newtron-network/fpverify/pkg/fpcheck"
	"github.com/newtron-network/fpverify/pkg/metrics"
	"github.com/newtron-network/fpverify/pkg/util"
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run a single verification against one node",
	}
	cmd.AddCommand(newCheckOSPFCmd())
	return cmd
}

type checkOptions struct {
	topology        string
	bindings        string
	node            string
	platform        string
	metricsTextfile string
	timeout         time.Duration
}

func newCheckOSPFCmd() *cobra.Command {
	var opts checkOptions

	cmd := &cobra.Command{
		Use:   "ospf",
		Short: "Verify OSPF FP entries are programmed in the ASIC",
		Long: `Runs 'ovs-appctl plugin/debug fp ospf-group' on the node and checks that
the dump holds exactly two OSPF protocol (0x59) entries and one entry each
for the all-routers (224.0.0.5) and designated-routers (224.0.0.6) groups.

The check is skipped on the docker platform.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckOSPF(opts)
		},
	}

	cmd.Flags().StringVar(&opts.topology, "topology", "", "topology declaration file")
	cmd.Flags().StringVar(&opts.bindings, "bindings", "", "node bindings file")
	cmd.Flags().StringVar(&opts.node, "node", "", "node to check (default sw1)")
	cmd.Flags().StringVar(&opts.platform, "platform", "", "override node platform")
	cmd.Flags().StringVar(&opts.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this textfile")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "overall timeout for connect and check")

	return cmd
}

func runCheckOSPF(opts checkOptions) error {
	name := firstNonEmpty(opts.node, appSettings.Node, "sw1")

	// An explicit platform decides applicability before the node is looked up.
	if platform := firstNonEmpty(opts.platform, appSettings.Platform); platform != "" && !fpcheck.Applicable(platform) {
		printSkip(name, platform)
		return nil
	}

	topo, err := loadTopology(
		firstNonEmpty(opts.topology, appSettings.Topology),
		firstNonEmpty(opts.bindings, appSettings.Bindings),
	)
	if err != nil {
		return err
	}

	node := topo.Get(name)
	if node == nil {
		return &util.NodeNotFoundError{Node: name}
	}

	platform := firstNonEmpty(opts.platform, appSettings.Platform, node.Platform())
	if !fpcheck.Applicable(platform) {
		printSkip(name, platform)
		return nil
	}

	ctx, cancel := signalContext()
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, opts.timeout)
	defer cancelTimeout()

	dev, err := device.DialNode(ctx, node)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", name, err)
	}
	defer dev.Close()

	rec := metrics.NewRecorder()
	res, checkErr := fpcheck.Run(ctx, name, dev, os.Stdout)
	if res != nil {
		rec.ObserveCounts(name, res.Counts)
	}
	rec.ObserveResult(name, fpcheck.CheckName, checkErr == nil)
	if err := writeMetrics(rec, opts.metricsTextfile); err != nil {
		util.Warnf("%v", err)
	}

	var aerr *fpcheck.AssertionError
	switch {
	case checkErr == nil:
		util.Infof("%s: OSPF FP check passed", name)
		fmt.Printf("%s %s: %s\n", cli.Status("PASS"), name, res.Counts)
		return nil
	case errors.As(checkErr, &aerr):
		fmt.Printf("%s %s: %s\n", cli.Status("FAIL"), name, aerr.Message)
	default:
		fmt.Printf("%s %s\n", cli.Status("ERROR"), name)
	}
	return checkErr
}

func printSkip(name, platform string) {
	fmt.Printf("%s %s: not applicable on platform %s\n", cli.Status("SKIP"), name, platform)
}
