package newtest

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// DateTimeFormat is the timestamp layout used in report headers.
const DateTimeFormat = "2006-01-02 15:04:05"

// StepStatus represents the outcome of a step or scenario.
type StepStatus string

const (
	StepStatusPassed  StepStatus = "PASS"
	StepStatusFailed  StepStatus = "FAIL"
	StepStatusSkipped StepStatus = "SKIP"
	StepStatusError   StepStatus = "ERROR"
)

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name        string
	Topology    string
	Platform    string
	Status      StepStatus
	Duration    time.Duration
	Steps       []StepResult
	DeployError error
	SkipReason  string // set when Status==StepStatusSkipped (e.g. "platform docker is incompatible")
}

// StepResult holds the result of a single step execution.
type StepResult struct {
	Name     string
	Action   StepAction
	Status   StepStatus
	Duration time.Duration
	Message  string
	Details  []DeviceResult
}

// DeviceResult holds the result for a single device within a multi-device step.
type DeviceResult struct {
	Device  string
	Status  StepStatus
	Message string
}

// ReportGenerator produces test reports from scenario results.
type ReportGenerator struct {
	Results []*ScenarioResult
	Now     func() time.Time
}

func (g *ReportGenerator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

// WriteMarkdown writes a markdown report to the given path.
func (g *ReportGenerator) WriteMarkdown(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return g.writeMarkdown(f)
}

func (g *ReportGenerator) writeMarkdown(w io.Writer) error {
	fmt.Fprintf(w, "# fpverify Report: %s\n\n", g.now().Format(DateTimeFormat))

	fmt.Fprintln(w, "| Scenario | Topology | Platform | Result | Duration | Note |")
	fmt.Fprintln(w, "|----------|----------|----------|--------|----------|------|")
	for _, r := range g.Results {
		note := r.SkipReason
		if r.DeployError != nil {
			note = r.DeployError.Error()
		}
		fmt.Fprintf(w, "| %s | %s | %s | %s | %s | %s |\n",
			r.Name, r.Topology, r.Platform, r.Status,
			r.Duration.Round(time.Millisecond), note)
	}

	hasFailures := false
	for _, r := range g.Results {
		for _, s := range r.Steps {
			if s.Status != StepStatusFailed && s.Status != StepStatusError {
				continue
			}
			if !hasFailures {
				fmt.Fprintf(w, "\n## Failures\n\n")
				hasFailures = true
			}
			fmt.Fprintf(w, "### %s\n", r.Name)
			fmt.Fprintf(w, "Step %s (%s): %s\n\n", s.Name, s.Action, s.Message)
			for _, d := range s.Details {
				if d.Status == StepStatusFailed || d.Status == StepStatusError {
					fmt.Fprintf(w, "  %s: %s\n", d.Device, d.Message)
				}
			}
		}
	}

	return nil
}

// WriteJUnit writes a JUnit XML report for CI integration.
func (g *ReportGenerator) WriteJUnit(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := xml.MarshalIndent(g.junit(), "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, append([]byte(xml.Header), data...), 0o644)
}

func (g *ReportGenerator) junit() junitTestSuites {
	suites := junitTestSuites{}

	for _, r := range g.Results {
		suite := junitTestSuite{
			Name: r.Name,
			Time: r.Duration.Seconds(),
		}

		// Scenario-level skip or deploy error: emit a single test case
		if len(r.Steps) == 0 && (r.Status == StepStatusSkipped || r.Status == StepStatusError) {
			suite.Tests = 1
			tc := junitTestCase{Name: r.Name, ClassName: r.Name}
			if r.Status == StepStatusSkipped {
				suite.Skipped = 1
				tc.Skipped = &junitSkipped{Message: r.SkipReason}
			} else {
				suite.Errors = 1
				msg := ""
				if r.DeployError != nil {
					msg = r.DeployError.Error()
				}
				tc.Error = &junitError{Message: msg, Type: "infra"}
			}
			suite.Cases = append(suite.Cases, tc)
			suites.Suites = append(suites.Suites, suite)
			continue
		}

		for _, s := range r.Steps {
			suite.Tests++
			tc := junitTestCase{
				Name:      s.Name,
				ClassName: r.Name,
				Time:      s.Duration.Seconds(),
			}

			switch s.Status {
			case StepStatusFailed:
				suite.Failures++
				tc.Failure = &junitFailure{
					Message: s.Message,
					Type:    string(s.Action),
				}
			case StepStatusSkipped:
				suite.Skipped++
				tc.Skipped = &junitSkipped{
					Message: s.Message,
				}
			case StepStatusError:
				suite.Errors++
				tc.Error = &junitError{
					Message: s.Message,
					Type:    string(s.Action),
				}
			}

			suite.Cases = append(suite.Cases, tc)
		}

		suites.Suites = append(suites.Suites, suite)
	}

	return suites
}

// JUnit XML types

type junitTestSuites struct {
	XMLName xml.Name         `xml:"testsuites"`
	Suites  []junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Errors   int             `xml:"errors,attr"`
	Skipped  int             `xml:"skipped,attr"`
	Time     float64         `xml:"time,attr"`
	Cases    []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	Skipped   *junitSkipped `xml:"skipped,omitempty"`
	Error     *junitError   `xml:"error,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
}

type junitSkipped struct {
	Message string `xml:"message,attr"`
}

type junitError struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
}
