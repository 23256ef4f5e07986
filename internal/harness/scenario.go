package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/svcstore/internal/config"
	"github.com/roach88/svcstore/internal/ir"
)

// Scenario is one collection test: a setup, ordered steps and expectations
// on the final state.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Collection configures the collection under test. An empty name
	// becomes "items".
	Collection config.ServiceConfig `yaml:"collection"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Expect is evaluated against the final state.
	Expect []Expectation `yaml:"expect,omitempty"`
}

// Step is one collection operation.
type Step struct {
	Op string `yaml:"op"`

	// Records feed add and update.
	Records []ir.Record `yaml:"records,omitempty"`

	// ID addresses update_temp, remove and the copy operations.
	ID any `yaml:"id,omitempty"`

	// TempID is the temp id promoted by update_temp.
	TempID any `yaml:"temp_id,omitempty"`

	// Set is merged into the copy made by create_copy.
	Set ir.Record `yaml:"set,omitempty"`

	// Qid, Query and Page feed paginate; Query, Temps and Copies feed find.
	Qid    string         `yaml:"qid,omitempty"`
	Query  map[string]any `yaml:"query,omitempty"`
	Page   *PageInput     `yaml:"page,omitempty"`
	Temps  bool           `yaml:"temps,omitempty"`
	Copies bool           `yaml:"copies,omitempty"`

	// Expect checks the result of a find step.
	Expect *FindExpect `yaml:"expect,omitempty"`

	// Error is the text the step's error must contain. Empty means the
	// step must succeed.
	Error string `yaml:"error,omitempty"`
}

// PageInput is a server page fed to paginate; only ids matter to the
// ledger, so records may be given as bare ids.
type PageInput struct {
	Total int   `yaml:"total"`
	Limit int   `yaml:"limit"`
	Skip  int   `yaml:"skip"`
	IDs   []any `yaml:"ids"`
}

// FindExpect is the expected outcome of a find.
type FindExpect struct {
	Total *int  `yaml:"total,omitempty"`
	IDs   []any `yaml:"ids,omitempty"`
}

// Expectation validates the final state.
type Expectation struct {
	Type string `yaml:"type"`

	// ID addresses record, no_record and copy_equals_record.
	ID any `yaml:"id,omitempty"`

	// Record holds the expected fields for record (subset match).
	Record ir.Record `yaml:"record,omitempty"`

	// Query, Temps and Copies parameterize find.
	Query  map[string]any `yaml:"query,omitempty"`
	Temps  bool           `yaml:"temps,omitempty"`
	Copies bool           `yaml:"copies,omitempty"`

	// Total and IDs are the expected find outcome.
	Total *int  `yaml:"total,omitempty"`
	IDs   []any `yaml:"ids,omitempty"`

	// Count is the expected number of temps.
	Count *int `yaml:"count,omitempty"`
}

// Step operations.
const (
	OpAdd        = "add"
	OpUpdate     = "update"
	OpUpdateTemp = "update_temp"
	OpRemove     = "remove"
	OpClear      = "clear"
	OpCreateCopy = "create_copy"
	OpCommitCopy = "commit_copy"
	OpResetCopy  = "reset_copy"
	OpClearCopy  = "clear_copy"
	OpPaginate   = "paginate"
	OpFind       = "find"
)

// Expectation types.
const (
	ExpectFind             = "find"
	ExpectRecord           = "record"
	ExpectNoRecord         = "no_record"
	ExpectCopyEqualsRecord = "copy_equals_record"
	ExpectTemps            = "temps"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "step:" vs "steps:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if scenario.Collection.Name == "" {
		scenario.Collection.Name = "items"
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
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	cfg := config.Config{Services: []config.ServiceConfig{s.Collection}}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("collection: %w", err)
	}
	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, e := range s.Expect {
		if err := validateExpectation(i, &e); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, s *Step) error {
	switch s.Op {
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	case OpAdd, OpUpdate:
		if len(s.Records) == 0 {
			return fmt.Errorf("steps[%d]: records are required for %s", index, s.Op)
		}
	case OpUpdateTemp:
		if s.ID == nil || s.TempID == nil {
			return fmt.Errorf("steps[%d]: id and temp_id are required for update_temp", index)
		}
	case OpRemove, OpCreateCopy, OpCommitCopy, OpResetCopy, OpClearCopy:
		if s.ID == nil {
			return fmt.Errorf("steps[%d]: id is required for %s", index, s.Op)
		}
	case OpPaginate:
		if s.Page == nil {
			return fmt.Errorf("steps[%d]: page is required for paginate", index)
		}
	case OpClear, OpFind:
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, s.Op)
	}
	return nil
}

func validateExpectation(index int, e *Expectation) error {
	switch e.Type {
	case "":
		return fmt.Errorf("expect[%d]: type is required", index)
	case ExpectFind:
		if e.Total == nil && e.IDs == nil {
			return fmt.Errorf("expect[%d]: total or ids is required for find", index)
		}
	case ExpectRecord:
		if e.ID == nil || len(e.Record) == 0 {
			return fmt.Errorf("expect[%d]: id and record are required for record", index)
		}
	case ExpectNoRecord, ExpectCopyEqualsRecord:
		if e.ID == nil {
			return fmt.Errorf("expect[%d]: id is required for %s", index, e.Type)
		}
	case ExpectTemps:
		if e.Count == nil {
			return fmt.Errorf("expect[%d]: count is required for temps", index)
		}
	default:
		return fmt.Errorf("expect[%d]: unknown type %q", index, e.Type)
	}
	return nil
}
