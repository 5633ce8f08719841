package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/gridroute/internal/ir"
)

// Snapshot captures the structural outcome of a scenario: per-PET table
// sizes and traffic. Route ids and keys are left out so the snapshot only
// changes when a schedule does.
type Snapshot struct {
	ScenarioName string
	Operation    string
	Kind         string
	Options      string
	PETs         []PETOutcome
}

// toCanonicalMap converts a Snapshot to a map[string]any for canonical JSON
// serialization.
func (s *Snapshot) toCanonicalMap() map[string]any {
	pets := make([]any, len(s.PETs))
	for i, p := range s.PETs {
		var sent, recv, msgs int64
		for _, run := range p.Runs {
			sent += run.BytesSent
			recv += run.BytesRecv
			msgs += run.Messages
		}
		pets[i] = map[string]any{
			"pet":          p.PET,
			"status":       codeOrOK(p.Code),
			"send_entries": p.Route.SendEntries,
			"recv_entries": p.Route.RecvEntries,
			"send_items":   p.Route.SendItems,
			"recv_items":   p.Route.RecvItems,
			"rounds":       p.Route.Rounds,
			"bytes_sent":   sent,
			"bytes_recv":   recv,
			"messages":     msgs,
		}
	}
	return map[string]any{
		"scenario":  s.ScenarioName,
		"operation": s.Operation,
		"kind":      s.Kind,
		"options":   s.Options,
		"pets":      pets,
	}
}

// SnapshotOf builds the snapshot of a scenario result.
func SnapshotOf(scenario *Scenario, result *Result) *Snapshot {
	kind, _ := scenario.kind()
	return &Snapshot{
		ScenarioName: scenario.Name,
		Operation:    scenario.Operation,
		Kind:         kind.String(),
		Options:      result.Options.String(),
		PETs:         result.PETs,
	}
}

// Marshal returns the canonical JSON of the snapshot.
func (s *Snapshot) Marshal() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file in testdata/golden/<scenario name>.golden.
//
// To update golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Test failure (via goldie)
// occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's snapshot against the golden
// file without re-running the scenario.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	data, err := SnapshotOf(scenario, result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return nil
}
