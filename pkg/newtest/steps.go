package newtest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/newtron-network/fpverify/pkg/device"
	"github.com/newtron-network/fpverify/pkg/fpcheck"
)

// stepExecutor executes a single step and returns its result.
type stepExecutor interface {
	Execute(ctx context.Context, r *Runner, step *Step) *StepResult
}

// executors maps each StepAction to its executor implementation.
var executors = map[StepAction]stepExecutor{
	ActionWait:         &waitExecutor{},
	ActionSSHCommand:   &sshCommandExecutor{},
	ActionVerifyFPOSPF: &verifyFPOSPFExecutor{},
}

// checkForDevices resolves devices, calls fn for each, and collects results.
// The step fails if any device fails, errors if any device errors, and is
// skipped only when every device was skipped.
func (r *Runner) checkForDevices(step *Step, fn func(dev device.Executor, name string) (StepStatus, string)) *StepResult {
	names := r.resolveDevices(step)
	if len(names) == 0 {
		return &StepResult{
			Status:  StepStatusError,
			Details: []DeviceResult{{Device: "(none)", Status: StepStatusError, Message: "no devices resolved"}},
		}
	}
	details := make([]DeviceResult, 0, len(names))

	for _, name := range names {
		dev, ok := r.devices[name]
		if !ok {
			details = append(details, DeviceResult{Device: name, Status: StepStatusError, Message: "device not connected"})
			continue
		}
		status, msg := fn(dev, name)
		details = append(details, DeviceResult{Device: name, Status: status, Message: msg})
	}

	return &StepResult{Status: aggregateDeviceStatus(details), Details: details}
}

func aggregateDeviceStatus(details []DeviceResult) StepStatus {
	hasFailure, hasError, allSkipped := false, false, true
	for _, d := range details {
		switch d.Status {
		case StepStatusFailed:
			hasFailure = true
		case StepStatusError:
			hasError = true
		}
		if d.Status != StepStatusSkipped {
			allSkipped = false
		}
	}
	switch {
	case hasError:
		return StepStatusError
	case hasFailure:
		return StepStatusFailed
	case allSkipped:
		return StepStatusSkipped
	}
	return StepStatusPassed
}

// ============================================================================
// waitExecutor
// ============================================================================

type waitExecutor struct{}

func (e *waitExecutor) Execute(ctx context.Context, r *Runner, step *Step) *StepResult {
	t := time.NewTimer(step.Duration)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
		return &StepResult{Status: StepStatusError, Message: "interrupted"}
	}
	return &StepResult{
		Status:  StepStatusPassed,
		Message: fmt.Sprintf("%s elapsed", step.Duration),
	}
}

// ============================================================================
// sshCommandExecutor
// ============================================================================

type sshCommandExecutor struct{}

func (e *sshCommandExecutor) Execute(ctx context.Context, r *Runner, step *Step) *StepResult {
	return r.checkForDevices(step, func(dev device.Executor, name string) (StepStatus, string) {
		output, err := dev.Exec(ctx, step.Command, step.Shell)
		if ctx.Err() != nil {
			return StepStatusError, "interrupted"
		}
		if step.Expect != nil {
			if step.Expect.Contains != "" && !strings.Contains(output, step.Expect.Contains) {
				return StepStatusFailed, fmt.Sprintf("output does not contain %q", step.Expect.Contains)
			}
			if step.Expect.NotContains != "" && strings.Contains(output, step.Expect.NotContains) {
				return StepStatusFailed, fmt.Sprintf("output contains %q", step.Expect.NotContains)
			}
			if step.Expect.Contains != "" {
				return StepStatusPassed, fmt.Sprintf("output contains %q", step.Expect.Contains)
			}
		}
		if err != nil {
			return StepStatusFailed, fmt.Sprintf("command failed: %s", err)
		}
		return StepStatusPassed, "command succeeded"
	})
}

// ============================================================================
// verifyFPOSPFExecutor
// ============================================================================

type verifyFPOSPFExecutor struct{}

func (e *verifyFPOSPFExecutor) Execute(ctx context.Context, r *Runner, step *Step) *StepResult {
	return r.checkForDevices(step, func(dev device.Executor, name string) (StepStatus, string) {
		if platform := r.platformFor(name); !fpcheck.Applicable(platform) {
			return StepStatusSkipped, fmt.Sprintf("not applicable on platform %s", platform)
		}

		res, err := fpcheck.Run(ctx, name, dev, r.Output)
		if res != nil && r.Metrics != nil {
			r.Metrics.ObserveCounts(name, res.Counts)
		}

		var aerr *fpcheck.AssertionError
		switch {
		case err == nil:
			r.observe(name, true)
			return StepStatusPassed, fmt.Sprintf("OSPF FP entries verified (%s)", res.Counts)
		case errors.As(err, &aerr):
			r.observe(name, false)
			return StepStatusFailed, aerr.Message
		default:
			r.observe(name, false)
			return StepStatusError, err.Error()
		}
	})
}

func (r *Runner) observe(name string, passed bool) {
	if r.Metrics != nil {
		r.Metrics.ObserveResult(name, fpcheck.CheckName, passed)
	}
}
