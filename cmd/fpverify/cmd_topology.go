package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/newtron-network/fpverify/pkg/cli"
)

func newTopologyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topology",
		Short: "Inspect topology declarations",
	}

	var bindings string
	showCmd := &cobra.Command{
		Use:   "show <file>",
		Short: "Show the nodes and links of a topology declaration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topo, err := loadTopology(args[0], firstNonEmpty(bindings, appSettings.Bindings))
			if err != nil {
				return err
			}

			t := cli.NewTable(os.Stdout, "NODE", "TYPE", "NAME", "PLATFORM", "ADDRESS")
			for _, n := range topo.Nodes() {
				addr := "-"
				if n.Binding != nil {
					addr = n.Binding.Address()
				}
				t.Row(n.ID, dash(n.Type()), n.Label(), dash(n.Platform()), addr)
			}
			t.Flush()

			if links := topo.Links; len(links) > 0 {
				fmt.Println()
				lt := cli.NewTable(os.Stdout, "LINK")
				for _, l := range links {
					lt.Row(fmt.Sprintf("%s -- %s", l.A, l.B))
				}
				lt.Flush()
			}
			return nil
		},
	}
	showCmd.Flags().StringVar(&bindings, "bindings", "", "node bindings file")

	cmd.AddCommand(showCmd)
	return cmd
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
