package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/newtron-network/fpverify/pkg/metrics"
	"github.com/newtron-network/fpverify/pkg/newtest"
	"github.com/newtron-network/fpverify/pkg/util"
)

func newRunCmd() *cobra.Command {
	var opts newtest.RunOptions
	var junitPath, reportPath, metricsTextfile string

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml|dir>...",
		Short: "Run verification scenarios",
		Long: `Runs YAML scenarios. A directory argument runs every .yaml file in it.

  fpverify run scenarios/ospf-fp.yaml
  fpverify run scenarios/ --junit reports/junit.xml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarios, err := parseScenarioArgs(args)
			if err != nil {
				return err
			}

			if opts.Platform == "" {
				opts.Platform = appSettings.Platform
			}
			if opts.Bindings == "" {
				opts.Bindings = appSettings.Bindings
			}

			ctx, cancel := signalContext()
			defer cancel()

			runner := newtest.NewRunner()
			runner.Metrics = metrics.NewRecorder()
			runner.Progress = newtest.NewConsoleProgress(verboseFlag)
			if verboseFlag {
				runner.Output = os.Stdout
			}

			results, err := runner.Run(ctx, scenarios, opts)
			if err != nil {
				return err
			}

			gen := &newtest.ReportGenerator{Results: results}
			if reportPath == "" {
				reportPath = filepath.Join(appSettings.GetReportDir(), "report.md")
			}
			if err := gen.WriteMarkdown(reportPath); err != nil {
				util.Warnf("writing report: %v", err)
			}
			if junitPath != "" {
				if err := gen.WriteJUnit(junitPath); err != nil {
					util.Warnf("writing JUnit report: %v", err)
				}
			}
			if err := writeMetrics(runner.Metrics, metricsTextfile); err != nil {
				util.Warnf("%v", err)
			}

			notPassed := 0
			for _, r := range results {
				if r.Status == newtest.StepStatusFailed || r.Status == newtest.StepStatusError {
					notPassed++
				}
			}
			if notPassed > 0 {
				return fmt.Errorf("%d of %d scenarios did not pass", notPassed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Platform, "platform", "", "override platform")
	cmd.Flags().StringVar(&opts.Bindings, "bindings", "", "override the scenarios' bindings file")
	cmd.Flags().StringVar(&junitPath, "junit", "", "JUnit XML output path")
	cmd.Flags().StringVar(&reportPath, "report", "", "markdown report path (default <report_dir>/report.md)")
	cmd.Flags().StringVar(&metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this textfile")

	return cmd
}

// parseScenarioArgs expands file and directory arguments into scenarios.
func parseScenarioArgs(args []string) ([]*newtest.Scenario, error) {
	var scenarios []*newtest.Scenario
	for _, arg := range args {
		fi, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if fi.IsDir() {
			dirScenarios, err := newtest.ParseAllScenarios(arg)
			if err != nil {
				return nil, err
			}
			scenarios = append(scenarios, dirScenarios...)
			continue
		}
		s, err := newtest.ParseScenario(arg)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	if len(scenarios) == 0 {
		return nil, fmt.Errorf("no scenarios found in %v", args)
	}
	return scenarios, nil
}
