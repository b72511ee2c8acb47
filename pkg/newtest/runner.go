package newtest

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/newtron-network/fpverify/pkg/device"
	"github.com/newtron-network/fpverify/pkg/metrics"
	"github.com/newtron-network/fpverify/pkg/topology"
	"github.com/newtron-network/fpverify/pkg/util"
)

// Connector opens an executor for a bound topology node.
type Connector func(ctx context.Context, node *topology.Node) (device.Executor, error)

// Runner executes scenarios against the nodes of their topology.
type Runner struct {
	// Connect opens devices; defaults to SSH via device.DialNode.
	Connect  Connector
	Metrics  *metrics.Recorder
	Progress ProgressReporter
	// Output receives the raw command output of checks; nil discards it.
	Output io.Writer

	opts     RunOptions
	scenario *Scenario
	topo     *topology.Topology
	devices  map[string]device.Executor
}

// RunOptions controls Runner behavior from CLI flags.
type RunOptions struct {
	Platform string // overrides scenario and node platforms
	Bindings string // overrides the scenario's bindings file
}

// NewRunner creates a runner that connects to devices over SSH.
func NewRunner() *Runner {
	return &Runner{Connect: dialSSH}
}

func dialSSH(ctx context.Context, node *topology.Node) (device.Executor, error) {
	return device.DialNode(ctx, node)
}

// Run executes scenarios in order and returns one result per scenario.
func (r *Runner) Run(ctx context.Context, scenarios []*Scenario, opts RunOptions) ([]*ScenarioResult, error) {
	start := time.Now()
	r.progress(func(p ProgressReporter) { p.SuiteStart(scenarios) })

	results := make([]*ScenarioResult, 0, len(scenarios))
	for i, sc := range scenarios {
		r.progress(func(p ProgressReporter) { p.ScenarioStart(sc.Name, i, len(scenarios)) })
		result, err := r.RunScenario(ctx, sc, opts)
		if err != nil {
			return results, err
		}
		results = append(results, result)
		r.progress(func(p ProgressReporter) { p.ScenarioEnd(result, i, len(scenarios)) })
	}

	r.progress(func(p ProgressReporter) { p.SuiteEnd(results, time.Since(start)) })
	return results, nil
}

// RunScenario executes a single scenario. Infrastructure problems are
// reported in the result as ERROR rather than returned.
func (r *Runner) RunScenario(ctx context.Context, scenario *Scenario, opts RunOptions) (*ScenarioResult, error) {
	r.opts = opts
	r.scenario = scenario
	r.topo = nil
	r.devices = make(map[string]device.Executor)
	defer r.closeDevices()

	platform := opts.Platform
	if platform == "" {
		platform = scenario.Platform
	}
	result := &ScenarioResult{
		Name:     scenario.Name,
		Topology: scenario.Topology,
		Platform: platform,
	}
	start := time.Now()
	log := util.Logger.WithField("scenario", scenario.Name)

	if platform != "" && scenario.incompatibleWith(platform) {
		r.skip(result, platform)
		log.Infof("skipped: %s", result.SkipReason)
		return result, nil
	}

	if err := r.loadTopology(); err != nil {
		r.fail(result, start, err)
		return result, nil
	}

	targets, err := r.targets()
	if err != nil {
		r.fail(result, start, err)
		return result, nil
	}

	if platform == "" {
		for _, name := range targets {
			if p := r.platformFor(name); scenario.incompatibleWith(p) {
				r.skip(result, p)
				log.Infof("skipped: %s", result.SkipReason)
				return result, nil
			}
		}
	}

	if err := r.connectDevices(ctx, targets); err != nil {
		r.fail(result, start, err)
		return result, nil
	}

	r.runScenarioSteps(ctx, scenario, result)
	result.Duration = time.Since(start)
	log.Infof("finished: %s", result.Status)

	return result, nil
}

func (r *Runner) skip(result *ScenarioResult, platform string) {
	result.Status = StepStatusSkipped
	result.SkipReason = fmt.Sprintf("platform %s is incompatible", platform)
}

func (r *Runner) fail(result *ScenarioResult, start time.Time, err error) {
	util.Errorf("scenario %s: %v", result.Name, err)
	result.DeployError = err
	result.Status = StepStatusError
	result.Duration = time.Since(start)
}

// runScenarioSteps executes the steps of a scenario, appending results to
// result. Execution stops at the first failed or errored step.
func (r *Runner) runScenarioSteps(ctx context.Context, scenario *Scenario, result *ScenarioResult) {
	for i := range scenario.Steps {
		step := &scenario.Steps[i]
		r.progress(func(p ProgressReporter) { p.StepStart(scenario.Name, step, i, len(scenario.Steps)) })

		sr := r.executeStep(ctx, step)
		result.Steps = append(result.Steps, *sr)

		r.progress(func(p ProgressReporter) { p.StepEnd(scenario.Name, sr, i, len(scenario.Steps)) })

		if sr.Status == StepStatusFailed || sr.Status == StepStatusError {
			break
		}
	}

	result.Status = computeOverallStatus(result.Steps)
}

// loadTopology parses the scenario's topology and applies its bindings.
func (r *Runner) loadTopology() error {
	topo, err := topology.Load(r.scenario.resolvePath(r.scenario.Topology))
	if err != nil {
		return &InfraError{Op: "topology", Err: err}
	}

	bindingsPath := r.opts.Bindings
	if bindingsPath == "" {
		bindingsPath = r.scenario.resolvePath(r.scenario.Bindings)
	}
	if bindingsPath != "" {
		b, err := topology.LoadBindings(bindingsPath)
		if err != nil {
			return &InfraError{Op: "topology", Err: err}
		}
		if err := topo.Bind(b); err != nil {
			return &InfraError{Op: "topology", Err: err}
		}
	}

	r.topo = topo
	return nil
}

// targets returns the nodes referenced by any step, in first-use order.
func (r *Runner) targets() ([]string, error) {
	seen := make(map[string]bool)
	var names []string
	for i := range r.scenario.Steps {
		for _, name := range r.resolveDevices(&r.scenario.Steps[i]) {
			if seen[name] {
				continue
			}
			if r.topo.Get(name) == nil {
				return nil, &InfraError{Op: "topology", Device: name, Err: &util.NodeNotFoundError{Node: name}}
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	return names, nil
}

// connectDevices opens an executor for every target node.
func (r *Runner) connectDevices(ctx context.Context, names []string) error {
	connect := r.Connect
	if connect == nil {
		connect = dialSSH
	}
	for _, name := range names {
		util.WithDevice(name).Debugf("connecting")
		dev, err := connect(ctx, r.topo.Get(name))
		if err != nil {
			return &InfraError{Op: "connect", Device: name, Err: err}
		}
		r.devices[name] = dev
	}
	return nil
}

func (r *Runner) closeDevices() {
	for name, dev := range r.devices {
		if c, ok := dev.(io.Closer); ok {
			if err := c.Close(); err != nil {
				util.WithDevice(name).Debugf("close: %v", err)
			}
		}
	}
	r.devices = nil
}

// executeStep dispatches a step to its executor.
func (r *Runner) executeStep(ctx context.Context, step *Step) *StepResult {
	executor, ok := executors[step.Action]
	if !ok {
		err := &StepError{
			Step:   step.Name,
			Action: step.Action,
			Err:    fmt.Errorf("unknown action: %s", step.Action),
		}
		return &StepResult{
			Name:    step.Name,
			Action:  step.Action,
			Status:  StepStatusError,
			Message: err.Error(),
		}
	}

	start := time.Now()
	result := executor.Execute(ctx, r, step)
	result.Duration = time.Since(start)
	result.Name = step.Name
	result.Action = step.Action

	// Aggregate per-device details into Message when executors only set Details
	if result.Message == "" && len(result.Details) > 0 {
		var msgs []string
		for _, d := range result.Details {
			if d.Status != StepStatusPassed && d.Message != "" {
				msgs = append(msgs, d.Device+": "+d.Message)
			}
		}
		if len(msgs) > 0 {
			result.Message = strings.Join(msgs, "; ")
		}
	}

	return result
}

// progress calls fn with the ProgressReporter if one is set.
func (r *Runner) progress(fn func(ProgressReporter)) {
	if r.Progress != nil {
		fn(r.Progress)
	}
}

// resolveDevices resolves step.Devices to concrete device names.
func (r *Runner) resolveDevices(step *Step) []string {
	return step.Devices.Resolve(r.topo.NodeNames())
}

// platformFor returns the effective platform of a node: the run override,
// then the scenario platform, then the node's own.
func (r *Runner) platformFor(name string) string {
	if r.opts.Platform != "" {
		return r.opts.Platform
	}
	if r.scenario.Platform != "" {
		return r.scenario.Platform
	}
	return r.topo.Get(name).Platform()
}

// computeOverallStatus computes overall scenario status from step results.
func computeOverallStatus(steps []StepResult) StepStatus {
	hasError := false
	allSkipped := len(steps) > 0
	for _, s := range steps {
		if s.Status == StepStatusError {
			hasError = true
		}
		if s.Status == StepStatusFailed {
			return StepStatusFailed
		}
		if s.Status != StepStatusSkipped {
			allSkipped = false
		}
	}
	if hasError {
		return StepStatusError
	}
	if allSkipped {
		return StepStatusSkipped
	}
	return StepStatusPassed
}
