package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/svcstore/internal/ir"
)

// StateSnapshot is what golden files hold: the scenario name, its step
// trace and the final collection state.
type StateSnapshot struct {
	ScenarioName string
	Steps        []StepTrace
	State        map[string]any
}

// toCanonicalMap converts a StateSnapshot to a map[string]any for canonical
// JSON serialization.
func (s *StateSnapshot) toCanonicalMap() map[string]any {
	steps := make([]any, len(s.Steps))
	for i, st := range s.Steps {
		m := map[string]any{
			"index": st.Index,
			"op":    st.Op,
		}
		if st.ID != nil {
			m["id"] = st.ID
		}
		if st.Error != "" {
			m["error"] = st.Error
		}
		steps[i] = m
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"steps":         steps,
		"state":         s.State,
	}
}

// Canonical renders a result as the canonical JSON stored in golden files.
func Canonical(name string, result *Result) ([]byte, error) {
	snapshot := StateSnapshot{ScenarioName: name, Steps: result.Steps, State: result.State}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	out, err := Canonical(scenarioName, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, out)
	return nil
}
