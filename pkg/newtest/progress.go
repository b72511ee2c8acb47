package newtest

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/newtron-network/fpverify/pkg/cli"
)

// ProgressReporter receives lifecycle callbacks during test execution.
type ProgressReporter interface {
	SuiteStart(scenarios []*Scenario)
	ScenarioStart(name string, index, total int)
	ScenarioEnd(result *ScenarioResult, index, total int)
	StepStart(scenario string, step *Step, index, total int)
	StepEnd(scenario string, result *StepResult, index, total int)
	SuiteEnd(results []*ScenarioResult, duration time.Duration)
}

// ConsoleProgress is an append-only terminal progress reporter.
// It never rewrites lines, so output is safe for pipes and CI logs.
type ConsoleProgress struct {
	W       io.Writer
	Verbose bool

	dotWidth int
}

// NewConsoleProgress creates a ConsoleProgress writing to stdout.
func NewConsoleProgress(verbose bool) *ConsoleProgress {
	return &ConsoleProgress{
		W:       os.Stdout,
		Verbose: verbose,
	}
}

func (p *ConsoleProgress) SuiteStart(scenarios []*Scenario) {
	if len(scenarios) == 0 {
		return
	}

	maxName := 0
	for _, s := range scenarios {
		if len(s.Name) > maxName {
			maxName = len(s.Name)
		}
	}
	p.dotWidth = maxName + 6

	fmt.Fprintf(p.W, "\nfpverify: %d scenarios\n\n", len(scenarios))
	fmt.Fprintf(p.W, "  %-4s  %-*s  %s\n", "#", p.dotWidth-6, "SCENARIO", "STEPS")
	for i, s := range scenarios {
		fmt.Fprintf(p.W, "  %-4d  %-*s  %d\n", i+1, p.dotWidth-6, s.Name, len(s.Steps))
	}
	fmt.Fprintln(p.W)
}

func (p *ConsoleProgress) ScenarioStart(name string, index, total int) {
	if p.Verbose {
		fmt.Fprintf(p.W, "  [%d/%d]  %s\n", index+1, total, name)
	}
}

func (p *ConsoleProgress) ScenarioEnd(result *ScenarioResult, index, total int) {
	tag := fmt.Sprintf("[%d/%d]", index+1, total)

	if p.Verbose {
		if result.DeployError != nil {
			fmt.Fprintf(p.W, "          %s\n", cli.Dim(result.DeployError.Error()))
		}
		if result.SkipReason != "" {
			fmt.Fprintf(p.W, "          %s\n", cli.Dim(result.SkipReason))
		}
		fmt.Fprintf(p.W, "          %s  (%s)\n\n", cli.Status(string(result.Status)), formatDuration(result.Duration))
		return
	}

	padded := cli.DotPad(result.Name, p.dotWidth)
	if result.Status == StepStatusSkipped {
		fmt.Fprintf(p.W, "  %-7s %s %s\n", tag, padded, cli.Status(string(result.Status)))
		return
	}
	fmt.Fprintf(p.W, "  %-7s %s %s  (%s)\n", tag, padded, cli.Status(string(result.Status)), formatDuration(result.Duration))
}

func (p *ConsoleProgress) StepStart(scenario string, step *Step, index, total int) {}

func (p *ConsoleProgress) StepEnd(scenario string, result *StepResult, index, total int) {
	if !p.Verbose {
		return
	}

	stepDot := cli.DotPad(result.Name, p.dotWidth-4)
	tag := fmt.Sprintf("[%d/%d]", index+1, total)
	fmt.Fprintf(p.W, "          %s %s %s  (%s)\n", tag, stepDot, cli.Status(string(result.Status)), formatDuration(result.Duration))

	if result.Status == StepStatusFailed || result.Status == StepStatusError {
		if result.Message != "" {
			fmt.Fprintf(p.W, "               %s\n", cli.Dim(result.Message))
		}
	}
}

func (p *ConsoleProgress) SuiteEnd(results []*ScenarioResult, duration time.Duration) {
	passed, failed, skipped, errored := 0, 0, 0, 0
	for _, r := range results {
		switch r.Status {
		case StepStatusPassed:
			passed++
		case StepStatusFailed:
			failed++
		case StepStatusSkipped:
			skipped++
		case StepStatusError:
			errored++
		}
	}

	fmt.Fprintf(p.W, "\n---\n")
	fmt.Fprintf(p.W, "fpverify: %d scenarios", len(results))

	var parts []string
	if passed > 0 {
		parts = append(parts, cli.Green(fmt.Sprintf("%d passed", passed)))
	}
	if failed > 0 {
		parts = append(parts, cli.Red(fmt.Sprintf("%d failed", failed)))
	}
	if errored > 0 {
		parts = append(parts, cli.Red(fmt.Sprintf("%d errored", errored)))
	}
	if skipped > 0 {
		parts = append(parts, cli.Yellow(fmt.Sprintf("%d skipped", skipped)))
	}
	if len(parts) > 0 {
		fmt.Fprintf(p.W, ", %s", strings.Join(parts, ", "))
	}
	fmt.Fprintf(p.W, " (%s)\n", formatDuration(duration))
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}
