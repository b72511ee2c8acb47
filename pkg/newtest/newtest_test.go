package newtest

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/newtron-network/fpverify/internal/testutil"
	"github.com/newtron-network/fpverify/pkg/device"
	"github.com/newtron-network/fpverify/pkg/fpcheck"
	"github.com/newtron-network/fpverify/pkg/metrics"
	"github.com/newtron-network/fpverify/pkg/topology"
	"github.com/newtron-network/fpverify/pkg/util"
)

const oneSwitchTopology = `# One switch
[type=openswitch name="Switch 1"] sw1
`

const oneSwitchBindings = `defaults:
  ssh_user: admin
  ssh_pass: admin
nodes:
  sw1:
    mgmt_ip: 10.0.0.11
`

// writeScenario writes a scenario with the one-switch topology and bindings
// next to it, and returns the scenario path.
func writeScenario(t *testing.T, scenario string) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"topology.txt":  oneSwitchTopology,
		"bindings.yaml": oneSwitchBindings,
		"scenario.yaml": scenario,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return filepath.Join(dir, "scenario.yaml")
}

func mustParse(t *testing.T, scenario string) *Scenario {
	t.Helper()
	s, err := ParseScenario(writeScenario(t, scenario))
	if err != nil {
		t.Fatalf("ParseScenario: %v", err)
	}
	return s
}

// fakeConnector hands out FakeDevices by node name and records connects.
type fakeConnector struct {
	devices   map[string]*testutil.FakeDevice
	connected []string
	err       error
}

func (f *fakeConnector) connect(_ context.Context, node *topology.Node) (device.Executor, error) {
	f.connected = append(f.connected, node.ID)
	if f.err != nil {
		return nil, f.err
	}
	return f.devices[node.ID], nil
}

func newTestRunner(devs map[string]*testutil.FakeDevice) (*Runner, *fakeConnector) {
	fc := &fakeConnector{devices: devs}
	return &Runner{Connect: fc.connect}, fc
}

const verifyScenario = `name: ospf-fp
description: OSPF FPs are programmed in ASIC
topology: topology.txt
bindings: bindings.yaml
platform_incompatible: [docker]
steps:
  - name: verify-ospf-fp
    action: verify-fp-ospf
    devices: [sw1]
`

// ============================================================================
// Parser Tests
// ============================================================================

func TestParseScenario(t *testing.T) {
	s := mustParse(t, verifyScenario)

	if s.Name != "ospf-fp" {
		t.Errorf("Name = %q, want %q", s.Name, "ospf-fp")
	}
	if diff := cmp.Diff([]string{"docker"}, s.PlatformIncompatible); diff != "" {
		t.Errorf("PlatformIncompatible mismatch (-want +got):\n%s", diff)
	}
	if len(s.Steps) != 1 {
		t.Fatalf("Steps = %d, want 1", len(s.Steps))
	}
	step := s.Steps[0]
	if step.Action != ActionVerifyFPOSPF {
		t.Errorf("Action = %q, want %q", step.Action, ActionVerifyFPOSPF)
	}
	if diff := cmp.Diff([]string{"sw1"}, step.Devices.Devices); diff != "" {
		t.Errorf("Devices mismatch (-want +got):\n%s", diff)
	}
}

func TestParseScenario_Defaults(t *testing.T) {
	s := mustParse(t, `name: defaults
topology: topology.txt
steps:
  - action: ssh-command
    devices: all
    command: uptime
  - action: wait
    duration: 2s
`)

	if s.Steps[0].Shell != device.ShellBash {
		t.Errorf("Shell = %q, want %q", s.Steps[0].Shell, device.ShellBash)
	}
	if s.Steps[0].Name != "ssh-command-1" {
		t.Errorf("Name = %q, want %q", s.Steps[0].Name, "ssh-command-1")
	}
	if !s.Steps[0].Devices.All {
		t.Error("Devices.All = false, want true")
	}
	if s.Steps[1].Duration != 2*time.Second {
		t.Errorf("Duration = %v, want 2s", s.Steps[1].Duration)
	}
}

func TestParseScenario_Errors(t *testing.T) {
	tests := []struct {
		name     string
		scenario string
		wantErr  string
	}{
		{
			name:     "missing name",
			scenario: "topology: t.txt\nsteps:\n  - action: wait\n    duration: 1s\n",
			wantErr:  "name is required",
		},
		{
			name:     "missing topology",
			scenario: "name: x\nsteps:\n  - action: wait\n    duration: 1s\n",
			wantErr:  "topology is required",
		},
		{
			name:     "no steps",
			scenario: "name: x\ntopology: t.txt\n",
			wantErr:  "at least one step",
		},
		{
			name:     "unknown action",
			scenario: "name: x\ntopology: t.txt\nsteps:\n  - action: provision\n",
			wantErr:  `unknown action "provision"`,
		},
		{
			name:     "verify without devices",
			scenario: "name: x\ntopology: t.txt\nsteps:\n  - action: verify-fp-ospf\n",
			wantErr:  "devices is required",
		},
		{
			name:     "ssh-command without command",
			scenario: "name: x\ntopology: t.txt\nsteps:\n  - action: ssh-command\n    devices: [sw1]\n",
			wantErr:  "command is required",
		},
		{
			name:     "ssh-command bad shell",
			scenario: "name: x\ntopology: t.txt\nsteps:\n  - action: ssh-command\n    devices: [sw1]\n    command: ls\n    shell: zsh\n",
			wantErr:  `unknown shell "zsh"`,
		},
		{
			name:     "wait without duration",
			scenario: "name: x\ntopology: t.txt\nsteps:\n  - action: wait\n",
			wantErr:  "duration is required",
		},
		{
			name:     "bad device selector",
			scenario: "name: x\ntopology: t.txt\nsteps:\n  - action: verify-fp-ospf\n    devices: some\n",
			wantErr:  "invalid device selector",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario(writeScenario(t, tt.scenario))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseAllScenarios(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"a.yaml":    verifyScenario,
		"notes.txt": "not a scenario",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.yaml"), 0o755); err != nil {
		t.Fatal(err)
	}

	scenarios, err := ParseAllScenarios(dir)
	if err != nil {
		t.Fatalf("ParseAllScenarios: %v", err)
	}
	if len(scenarios) != 1 || scenarios[0].Name != "ospf-fp" {
		t.Errorf("scenarios = %d, want [ospf-fp]", len(scenarios))
	}
}

func TestParseScenario_Shipped(t *testing.T) {
	s, err := ParseScenario("../../scenarios/ospf-fp.yaml")
	if err != nil {
		t.Fatalf("ParseScenario: %v", err)
	}
	if got := s.resolvePath(s.Topology); got != filepath.Join("../../scenarios", "lab", "topology.txt") {
		t.Errorf("topology path = %q", got)
	}
	if !s.incompatibleWith("docker") {
		t.Error("shipped scenario should be incompatible with docker")
	}
}

func TestDeviceSelector_Resolve(t *testing.T) {
	all := deviceSelector{All: true}
	if diff := cmp.Diff([]string{"a", "b", "c"}, all.Resolve([]string{"c", "a", "b"})); diff != "" {
		t.Errorf("all mismatch (-want +got):\n%s", diff)
	}
	list := deviceSelector{Devices: []string{"sw2"}}
	if diff := cmp.Diff([]string{"sw2"}, list.Resolve([]string{"sw1", "sw2"})); diff != "" {
		t.Errorf("list mismatch (-want +got):\n%s", diff)
	}
}

// ============================================================================
// Runner Tests
// ============================================================================

func TestRunScenario_Pass(t *testing.T) {
	s := mustParse(t, verifyScenario)
	dev := testutil.NewFakeDevice(testutil.OSPFGroupDump)
	r, _ := newTestRunner(map[string]*testutil.FakeDevice{"sw1": dev})
	r.Metrics = metrics.NewRecorder()
	var out bytes.Buffer
	r.Output = &out

	result, err := r.RunScenario(context.Background(), s, RunOptions{})
	if err != nil {
		t.Fatalf("RunScenario: %v", err)
	}
	if result.Status != StepStatusPassed {
		t.Fatalf("Status = %s, want PASS (deploy error: %v, steps: %+v)", result.Status, result.DeployError, result.Steps)
	}
	if !dev.Closed {
		t.Error("device not closed after scenario")
	}
	calls := dev.Calls()
	if len(calls) != 1 || calls[0].Cmd != fpcheck.Command || calls[0].Shell != device.ShellBash {
		t.Errorf("calls = %+v, want one bash %q", calls, fpcheck.Command)
	}
	if !strings.Contains(out.String(), "Verify OSPF FPs are programmed in ASIC") {
		t.Errorf("output missing banner:\n%s", out.String())
	}
	if got := promtest.ToFloat64(r.Metrics.Success.WithLabelValues("sw1", fpcheck.CheckName)); got != 1 {
		t.Errorf("success gauge = %v, want 1", got)
	}
	if got := promtest.ToFloat64(r.Metrics.Entries.WithLabelValues("sw1", "protocol")); got != 2 {
		t.Errorf("protocol gauge = %v, want 2", got)
	}
}

func TestRunScenario_AssertionFailure(t *testing.T) {
	s := mustParse(t, verifyScenario)
	dev := testutil.NewFakeDevice(testutil.WithoutLine(testutil.OSPFGroupDump, fpcheck.AllRoutersIP))
	r, _ := newTestRunner(map[string]*testutil.FakeDevice{"sw1": dev})
	r.Metrics = metrics.NewRecorder()

	result, _ := r.RunScenario(context.Background(), s, RunOptions{})
	if result.Status != StepStatusFailed {
		t.Fatalf("Status = %s, want FAIL", result.Status)
	}
	step := result.Steps[0]
	if want := "sw1: All Routers OSPF field entry missing"; step.Message != want {
		t.Errorf("Message = %q, want %q", step.Message, want)
	}
	if got := promtest.ToFloat64(r.Metrics.Success.WithLabelValues("sw1", fpcheck.CheckName)); got != 0 {
		t.Errorf("success gauge = %v, want 0", got)
	}
}

func TestRunScenario_DeviceErrorIsError(t *testing.T) {
	s := mustParse(t, verifyScenario)
	dev := testutil.NewFakeDevice("")
	dev.Errors[fpcheck.Command] = errors.New("connection reset")
	r, _ := newTestRunner(map[string]*testutil.FakeDevice{"sw1": dev})

	result, _ := r.RunScenario(context.Background(), s, RunOptions{})
	if result.Status != StepStatusError {
		t.Fatalf("Status = %s, want ERROR", result.Status)
	}
	if !strings.Contains(result.Steps[0].Message, "connection reset") {
		t.Errorf("Message = %q, want it to mention the device error", result.Steps[0].Message)
	}
}

func TestRunScenario_IncompatiblePlatformSkipsWithoutConnecting(t *testing.T) {
	s := mustParse(t, verifyScenario)
	r, fc := newTestRunner(map[string]*testutil.FakeDevice{})

	result, _ := r.RunScenario(context.Background(), s, RunOptions{Platform: "docker"})
	if result.Status != StepStatusSkipped {
		t.Fatalf("Status = %s, want SKIP", result.Status)
	}
	if result.SkipReason != "platform docker is incompatible" {
		t.Errorf("SkipReason = %q", result.SkipReason)
	}
	if len(fc.connected) != 0 {
		t.Errorf("connected = %v, want none", fc.connected)
	}
}

func TestRunScenario_NodePlatformSkips(t *testing.T) {
	path := writeScenario(t, verifyScenario)
	bindings := oneSwitchBindings + "    platform: docker\n"
	if err := os.WriteFile(filepath.Join(filepath.Dir(path), "bindings.yaml"), []byte(bindings), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := ParseScenario(path)
	if err != nil {
		t.Fatal(err)
	}
	r, fc := newTestRunner(map[string]*testutil.FakeDevice{})

	result, _ := r.RunScenario(context.Background(), s, RunOptions{})
	if result.Status != StepStatusSkipped {
		t.Fatalf("Status = %s, want SKIP", result.Status)
	}
	if len(fc.connected) != 0 {
		t.Errorf("connected = %v, want none", fc.connected)
	}
}

func TestRunScenario_CheckSkipsInapplicableDevice(t *testing.T) {
	// No platform_incompatible on the scenario: the check itself skips docker.
	s := mustParse(t, strings.Replace(verifyScenario, "platform_incompatible: [docker]\n", "", 1))
	dev := testutil.NewFakeDevice(testutil.OSPFGroupDump)
	r, _ := newTestRunner(map[string]*testutil.FakeDevice{"sw1": dev})

	result, _ := r.RunScenario(context.Background(), s, RunOptions{Platform: "docker"})
	if result.Status != StepStatusSkipped {
		t.Fatalf("Status = %s, want SKIP", result.Status)
	}
	if len(dev.Calls()) != 0 {
		t.Errorf("calls = %+v, want none", dev.Calls())
	}
}

func TestRunScenario_MissingNode(t *testing.T) {
	s := mustParse(t, strings.Replace(verifyScenario, "[sw1]", "[sw9]", 1))
	r, fc := newTestRunner(map[string]*testutil.FakeDevice{})

	result, _ := r.RunScenario(context.Background(), s, RunOptions{})
	if result.Status != StepStatusError {
		t.Fatalf("Status = %s, want ERROR", result.Status)
	}
	if !errors.Is(result.DeployError, util.ErrNotFound) {
		t.Errorf("DeployError = %v, want ErrNotFound", result.DeployError)
	}
	var infra *InfraError
	if !errors.As(result.DeployError, &infra) || infra.Device != "sw9" {
		t.Errorf("DeployError = %v, want InfraError for sw9", result.DeployError)
	}
	if len(fc.connected) != 0 {
		t.Errorf("connected = %v, want none", fc.connected)
	}
}

func TestRunScenario_ConnectError(t *testing.T) {
	s := mustParse(t, verifyScenario)
	r, fc := newTestRunner(nil)
	fc.err = errors.New("no route to host")

	result, _ := r.RunScenario(context.Background(), s, RunOptions{})
	if result.Status != StepStatusError {
		t.Fatalf("Status = %s, want ERROR", result.Status)
	}
	var infra *InfraError
	if !errors.As(result.DeployError, &infra) || infra.Op != "connect" {
		t.Errorf("DeployError = %v, want connect InfraError", result.DeployError)
	}
}

func TestRunScenario_FailFast(t *testing.T) {
	s := mustParse(t, `name: fail-fast
topology: topology.txt
bindings: bindings.yaml
steps:
  - name: check-version
    action: ssh-command
    devices: [sw1]
    command: show version
    shell: vtysh
    expect:
      contains: OpenSwitch
  - name: verify
    action: verify-fp-ospf
    devices: [sw1]
`)
	dev := testutil.NewFakeDevice(testutil.OSPFGroupDump)
	dev.Outputs["show version"] = "SONiC"
	r, _ := newTestRunner(map[string]*testutil.FakeDevice{"sw1": dev})

	result, _ := r.RunScenario(context.Background(), s, RunOptions{})
	if result.Status != StepStatusFailed {
		t.Fatalf("Status = %s, want FAIL", result.Status)
	}
	if len(result.Steps) != 1 {
		t.Fatalf("Steps = %d, want 1 (fail-fast)", len(result.Steps))
	}
	if want := `sw1: output does not contain "OpenSwitch"`; result.Steps[0].Message != want {
		t.Errorf("Message = %q, want %q", result.Steps[0].Message, want)
	}
	calls := dev.Calls()
	if len(calls) != 1 || calls[0].Shell != device.ShellVtysh {
		t.Errorf("calls = %+v, want one vtysh call", calls)
	}
}

func TestRunScenario_SSHCommandNotContains(t *testing.T) {
	s := mustParse(t, `name: not-contains
topology: topology.txt
bindings: bindings.yaml
steps:
  - action: ssh-command
    devices: all
    command: dmesg
    expect:
      not_contains: "hw error"
`)
	dev := testutil.NewFakeDevice("")
	dev.Outputs["dmesg"] = "boot ok"
	r, _ := newTestRunner(map[string]*testutil.FakeDevice{"sw1": dev})

	result, _ := r.RunScenario(context.Background(), s, RunOptions{})
	if result.Status != StepStatusPassed {
		t.Fatalf("Status = %s, want PASS (%s)", result.Status, result.Steps[0].Message)
	}
}

func TestRunScenario_WaitInterrupted(t *testing.T) {
	s := mustParse(t, `name: wait
topology: topology.txt
steps:
  - action: wait
    duration: 1h
`)
	r, _ := newTestRunner(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, _ := r.RunScenario(ctx, s, RunOptions{})
	if result.Status != StepStatusError {
		t.Fatalf("Status = %s, want ERROR", result.Status)
	}
	if result.Steps[0].Message != "interrupted" {
		t.Errorf("Message = %q, want %q", result.Steps[0].Message, "interrupted")
	}
}

func TestRun_ProgressAndResults(t *testing.T) {
	pass := mustParse(t, verifyScenario)
	skip := mustParse(t, strings.Replace(verifyScenario, "name: ospf-fp", "name: ospf-fp-docker\nplatform: docker", 1))
	dev := testutil.NewFakeDevice(testutil.OSPFGroupDump)
	r, _ := newTestRunner(map[string]*testutil.FakeDevice{"sw1": dev})
	var buf bytes.Buffer
	r.Progress = &ConsoleProgress{W: &buf}

	results, err := r.Run(context.Background(), []*Scenario{pass, skip}, RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var got []StepStatus
	for _, res := range results {
		got = append(got, res.Status)
	}
	if diff := cmp.Diff([]StepStatus{StepStatusPassed, StepStatusSkipped}, got); diff != "" {
		t.Errorf("statuses mismatch (-want +got):\n%s", diff)
	}

	out := buf.String()
	for _, want := range []string{"fpverify: 2 scenarios", "ospf-fp-docker", "1 passed", "1 skipped"} {
		if !strings.Contains(out, want) {
			t.Errorf("progress output missing %q:\n%s", want, out)
		}
	}
}

func TestComputeOverallStatus(t *testing.T) {
	tests := []struct {
		name  string
		steps []StepStatus
		want  StepStatus
	}{
		{"all pass", []StepStatus{StepStatusPassed, StepStatusPassed}, StepStatusPassed},
		{"fail wins", []StepStatus{StepStatusError, StepStatusFailed}, StepStatusFailed},
		{"error", []StepStatus{StepStatusPassed, StepStatusError}, StepStatusError},
		{"all skipped", []StepStatus{StepStatusSkipped}, StepStatusSkipped},
		{"skip and pass", []StepStatus{StepStatusSkipped, StepStatusPassed}, StepStatusPassed},
		{"empty", nil, StepStatusPassed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var steps []StepResult
			for _, s := range tt.steps {
				steps = append(steps, StepResult{Status: s})
			}
			if got := computeOverallStatus(steps); got != tt.want {
				t.Errorf("computeOverallStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestExecuteStep_UnknownAction(t *testing.T) {
	r := &Runner{}
	result := r.executeStep(context.Background(), &Step{Name: "x", Action: "provision"})
	if result.Status != StepStatusError {
		t.Errorf("Status = %s, want ERROR", result.Status)
	}
	if !strings.Contains(result.Message, "unknown action: provision") {
		t.Errorf("Message = %q", result.Message)
	}
}

// ============================================================================
// Report Tests
// ============================================================================

func sampleResults() []*ScenarioResult {
	return []*ScenarioResult{
		{
			Name: "ospf-fp", Topology: "topology.txt", Status: StepStatusFailed,
			Duration: 1500 * time.Millisecond,
			Steps: []StepResult{{
				Name: "verify", Action: ActionVerifyFPOSPF, Status: StepStatusFailed,
				Message: "sw1: OSPF Protocol missing",
				Details: []DeviceResult{{Device: "sw1", Status: StepStatusFailed, Message: "OSPF Protocol missing"}},
			}},
		},
		{Name: "ospf-fp-docker", Platform: "docker", Status: StepStatusSkipped, SkipReason: "platform docker is incompatible"},
		{Name: "unreachable", Status: StepStatusError, DeployError: &InfraError{Op: "connect", Device: "sw1", Err: errors.New("timeout")}},
	}
}

func TestWriteMarkdown(t *testing.T) {
	g := &ReportGenerator{
		Results: sampleResults(),
		Now:     func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	}
	path := filepath.Join(t.TempDir(), "reports", "report.md")
	if err := g.WriteMarkdown(path); err != nil {
		t.Fatalf("WriteMarkdown: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	md := string(data)
	for _, want := range []string{
		"# fpverify Report: 2026-01-02 03:04:05",
		"| ospf-fp | topology.txt |  | FAIL | 1.5s |  |",
		"| ospf-fp-docker |  | docker | SKIP | 0s | platform docker is incompatible |",
		"newtest: connect sw1: timeout",
		"## Failures",
		"Step verify (verify-fp-ospf): sw1: OSPF Protocol missing",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestWriteJUnit(t *testing.T) {
	g := &ReportGenerator{Results: sampleResults()}
	path := filepath.Join(t.TempDir(), "junit.xml")
	if err := g.WriteJUnit(path); err != nil {
		t.Fatalf("WriteJUnit: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var suites junitTestSuites
	if err := xml.Unmarshal(data, &suites); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(suites.Suites) != 3 {
		t.Fatalf("suites = %d, want 3", len(suites.Suites))
	}

	type counts struct{ Tests, Failures, Errors, Skipped int }
	var got []counts
	for _, s := range suites.Suites {
		got = append(got, counts{s.Tests, s.Failures, s.Errors, s.Skipped})
	}
	want := []counts{{1, 1, 0, 0}, {1, 0, 0, 1}, {1, 0, 1, 0}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("suite counts mismatch (-want +got):\n%s", diff)
	}
	if f := suites.Suites[0].Cases[0].Failure; f == nil || f.Type != "verify-fp-ospf" {
		t.Errorf("failure = %+v, want type verify-fp-ospf", f)
	}
}

func TestInfraError(t *testing.T) {
	cause := &util.NodeNotFoundError{Node: "sw1"}
	err := &InfraError{Op: "topology", Device: "sw1", Err: cause}
	if want := `newtest: topology sw1: node "sw1" not found in topology`; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, util.ErrNotFound) {
		t.Error("errors.Is(err, ErrNotFound) = false, want true")
	}
}
