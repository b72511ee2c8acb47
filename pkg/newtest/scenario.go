// Package newtest runs YAML verification scenarios against the nodes of a
// topology. Each scenario names a topology declaration, the bindings used to
// reach its nodes, and a sequence of steps executed over SSH.
package newtest

import (
	"fmt"
	"sort"
	"time"

	"github.com/newtron-network/fpverify/pkg/device"
)

// Scenario is a parsed test scenario from a YAML file.
type Scenario struct {
	Name                 string   `yaml:"name"`
	Description          string   `yaml:"description"`
	Topology             string   `yaml:"topology"`
	Bindings             string   `yaml:"bindings,omitempty"`
	Platform             string   `yaml:"platform,omitempty"`
	PlatformIncompatible []string `yaml:"platform_incompatible,omitempty"`
	Steps                []Step   `yaml:"steps"`

	// dir is the directory of the scenario file; relative topology and
	// bindings paths resolve against it.
	dir string
}

// Step is a single action within a scenario.
// Fields are action-specific; the parser checks the required ones for
// each action type.
type Step struct {
	Name    string         `yaml:"name"`
	Action  StepAction     `yaml:"action"`
	Devices deviceSelector `yaml:"devices,omitempty"`

	// wait
	Duration time.Duration `yaml:"duration,omitempty"`

	// ssh-command
	Command string       `yaml:"command,omitempty"`
	Shell   device.Shell `yaml:"shell,omitempty"`

	Expect *ExpectBlock `yaml:"expect,omitempty"`
}

// StepAction identifies the type of step to execute.
type StepAction string

const (
	ActionWait         StepAction = "wait"
	ActionSSHCommand   StepAction = "ssh-command"
	ActionVerifyFPOSPF StepAction = "verify-fp-ospf"
)

// validActions is the set of all recognized step actions, derived from the
// executors map in steps.go at init time.
var validActions map[StepAction]bool

func init() {
	validActions = make(map[StepAction]bool, len(executors))
	for action := range executors {
		validActions[action] = true
	}
}

// deviceSelector handles the two YAML forms for the "devices" field:
//
//	devices: all        → All: true
//	devices: [sw1, sw2] → Devices: ["sw1", "sw2"]
type deviceSelector struct {
	All     bool
	Devices []string
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (ds *deviceSelector) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		if s == "all" {
			ds.All = true
			return nil
		}
		return fmt.Errorf("invalid device selector string: %q (expected \"all\")", s)
	}
	return unmarshal(&ds.Devices)
}

// Resolve returns the list of device names to target.
// If All is true, returns allDevices sorted for deterministic ordering.
func (ds *deviceSelector) Resolve(allDevices []string) []string {
	if ds.All {
		sorted := make([]string, len(allDevices))
		copy(sorted, allDevices)
		sort.Strings(sorted)
		return sorted
	}
	return ds.Devices
}

// ExpectBlock holds the expectations of an ssh-command step.
type ExpectBlock struct {
	Contains    string `yaml:"contains,omitempty"`
	NotContains string `yaml:"not_contains,omitempty"`
}

// incompatibleWith reports whether the scenario is marked inapplicable on platform.
func (s *Scenario) incompatibleWith(platform string) bool {
	for _, p := range s.PlatformIncompatible {
		if p == platform {
			return true
		}
	}
	return false
}
