package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/newtron-network/fpverify/pkg/settings"
	"github.com/newtron-network/fpverify/pkg/util"
	"github.com/newtron-network/fpverify/pkg/version"
)

var (
	verboseFlag  bool
	logLevelFlag string
	jsonLogsFlag bool

	// appSettings is loaded once before any subcommand runs.
	appSettings = &settings.Settings{}
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fpverify",
		Short: "Verify ASIC field-processor programming on network switches",
		Long: `fpverify checks that a switch has programmed the field-processor entries
that trap OSPF control traffic to the CPU.

  fpverify check ospf --topology topo.txt --bindings lab.yaml
  fpverify run scenarios/ospf-fp.yaml --junit reports/junit.xml
  fpverify topology show topo.txt
  fpverify settings set bindings ~/lab/bindings.yaml`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			s, err := settings.Load()
			if err != nil {
				return fmt.Errorf("loading settings: %w", err)
			}
			appSettings = s

			level := logLevelFlag
			if level == "" {
				level = s.LogLevel
			}
			if level == "" && verboseFlag {
				level = "debug"
			}
			if level != "" {
				if err := util.SetLogLevel(level); err != nil {
					return err
				}
			}
			if jsonLogsFlag {
				util.SetJSONFormat()
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogsFlag, "json-logs", false, "Emit logs as JSON")

	rootCmd.AddCommand(
		newCheckCmd(),
		newRunCmd(),
		newTopologyCmd(),
		newSettingsCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("fpverify %s\n", version.Info())
			},
		},
	)

	return rootCmd
}

// firstNonEmpty returns the first non-empty value: flag, then setting, then default.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
