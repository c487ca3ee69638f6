package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a rule scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Sets are global sets installed before any rule.
	Sets map[string][]string `yaml:"sets,omitempty"`

	// Library lists rule library files to load.
	Library []string `yaml:"library,omitempty"`

	// Rules holds rule definitions in rule language, several per text.
	Rules string `yaml:"rules,omitempty"`

	// Words is the default word list for steps.
	Words []string `yaml:"words,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`
}

// Step applies or matches one rule. Exactly one of Apply and Match is set.
type Step struct {
	Apply string `yaml:"apply,omitempty"`
	Match string `yaml:"match,omitempty"`

	// Words overrides the scenario's word list.
	Words []string `yaml:"words,omitempty"`

	// Expect is the expected output; nil skips the check.
	Expect []string `yaml:"expect,omitempty"`

	// ExpectGroups is the expected grouped output of an apply step.
	ExpectGroups []GroupExpect `yaml:"expect_groups,omitempty"`

	// ExpectError is a substring of the expected error.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// GroupExpect is one expected output group.
type GroupExpect struct {
	Label string   `yaml:"label"`
	Words []string `yaml:"words"`
}

// Step actions.
const (
	ActionApply = "apply"
	ActionMatch = "match"
)

// Action returns the step's action and rule name.
func (s Step) Action() (action, rule string) {
	if s.Apply != "" {
		return ActionApply, s.Apply
	}
	return ActionMatch, s.Match
}

// LoadScenario reads and parses a scenario YAML file. Library paths are
// resolved relative to the file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	for i, p := range scenario.Library {
		if !filepath.IsAbs(p) {
			scenario.Library[i] = filepath.Join(base, p)
		}
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML without touching the filesystem.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "step:" vs "steps:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Rules == "" && len(s.Library) == 0 {
		return fmt.Errorf("rules or library is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		switch {
		case step.Apply == "" && step.Match == "":
			return fmt.Errorf("steps[%d]: apply or match is required", i)
		case step.Apply != "" && step.Match != "":
			return fmt.Errorf("steps[%d]: apply and match are exclusive", i)
		case step.Match != "" && step.ExpectGroups != nil:
			return fmt.Errorf("steps[%d]: expect_groups requires apply", i)
		case step.Words == nil && s.Words == nil:
			return fmt.Errorf("steps[%d]: no words (set words on the step or the scenario)", i)
		}
	}
	return nil
}
