package newtest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/newtron-network/fpverify/pkg/device"
)

// ParseScenario reads a YAML scenario file and returns a validated Scenario.
func ParseScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", path, err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	s.dir = filepath.Dir(path)

	applyDefaults(&s)
	if err := validateScenario(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ParseAllScenarios reads all .yaml files in dir and returns parsed scenarios.
func ParseAllScenarios(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading scenarios dir %s: %w", dir, err)
	}

	var scenarios []*Scenario
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		s, err := ParseScenario(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// applyDefaults fills in omitted step fields.
func applyDefaults(s *Scenario) {
	for i := range s.Steps {
		step := &s.Steps[i]
		if step.Action == ActionSSHCommand && step.Shell == "" {
			step.Shell = device.ShellBash
		}
		if step.Name == "" {
			step.Name = fmt.Sprintf("%s-%d", step.Action, i+1)
		}
	}
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("scenario in %s: name is required", s.dir)
	}
	if s.Topology == "" {
		return fmt.Errorf("scenario %s: topology is required", s.Name)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario %s: at least one step is required", s.Name)
	}
	for i := range s.Steps {
		step := &s.Steps[i]
		if !validActions[step.Action] {
			return fmt.Errorf("scenario %s step %d (%s): unknown action %q", s.Name, i, step.Name, step.Action)
		}
		if err := validateStepFields(s.Name, i, step); err != nil {
			return err
		}
	}
	return nil
}

// requireDevices checks that the step has a device selector.
func requireDevices(prefix string, step *Step) error {
	if !step.Devices.All && len(step.Devices.Devices) == 0 {
		return fmt.Errorf("%s: devices is required", prefix)
	}
	return nil
}

// stepValidation declares what fields each action requires.
type stepValidation struct {
	needsDevices bool     // must have a device selector
	fields       []string // required step-level fields
	custom       func(prefix string, step *Step) error
}

// stepValidations is the declarative validation table for all step actions.
var stepValidations = map[StepAction]stepValidation{
	ActionWait: {custom: func(prefix string, step *Step) error {
		if step.Duration <= 0 {
			return fmt.Errorf("%s: duration is required", prefix)
		}
		return nil
	}},
	ActionVerifyFPOSPF: {needsDevices: true},
	ActionSSHCommand: {needsDevices: true, fields: []string{"command"}, custom: func(prefix string, step *Step) error {
		switch step.Shell {
		case device.ShellBash, device.ShellVtysh:
			return nil
		}
		return fmt.Errorf("%s: unknown shell %q (expected bash or vtysh)", prefix, step.Shell)
	}},
}

// stepFieldGetter maps step-level field names to their accessor functions.
var stepFieldGetter = map[string]func(*Step) string{
	"command": func(s *Step) string { return s.Command },
}

// validateStepFields checks required fields per action type using the
// stepValidations table.
func validateStepFields(scenario string, index int, step *Step) error {
	prefix := fmt.Sprintf("scenario %s step %d (%s)", scenario, index, step.Name)

	v, ok := stepValidations[step.Action]
	if !ok {
		return nil // no validation rules for this action
	}

	if v.needsDevices {
		if err := requireDevices(prefix, step); err != nil {
			return err
		}
	}

	for _, field := range v.fields {
		getter, exists := stepFieldGetter[field]
		if !exists {
			return fmt.Errorf("%s: unknown validation field %q (bug)", prefix, field)
		}
		if getter(step) == "" {
			return fmt.Errorf("%s: %s is required", prefix, field)
		}
	}

	if v.custom != nil {
		if err := v.custom(prefix, step); err != nil {
			return err
		}
	}

	return nil
}

// resolvePath resolves p against the scenario directory unless it is absolute.
func (s *Scenario) resolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.dir, p)
}
