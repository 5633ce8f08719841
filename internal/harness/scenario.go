package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/gridroute/internal/ir"
	"github.com/roach88/gridroute/internal/route"
)

// Scenario defines one route conformance scenario: a pair of layouts from a
// CUE bundle, the operation binding them, and assertions over the outcome
// of running it on every PET.
type Scenario struct {
	// Name uniquely identifies this scenario (and names its golden file).
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Layouts is a CUE file or package directory holding the layout and
	// weights definitions. Relative paths resolve against the scenario file.
	Layouts string `yaml:"layouts"`

	// PETs overrides the mesh size. Zero uses the largest PET count the
	// named layouts need.
	PETs int `yaml:"pets,omitempty"`

	// Operation is one of halo, redist, redistv, regrid, domlist.
	Operation string `yaml:"operation"`

	// Kind is the element kind ("R8" if empty).
	Kind string `yaml:"kind,omitempty"`

	// Src and Dst name layouts in the bundle. Halo uses Src only.
	Src string `yaml:"src"`
	Dst string `yaml:"dst,omitempty"`

	// Weights names the weight table of a regrid.
	Weights string `yaml:"weights,omitempty"`

	// Options is a route option list such as "sync,pack_pet".
	Options string `yaml:"options,omitempty"`

	// RankTrans maps destination axis k to source axis RankTrans[k].
	RankTrans []int `yaml:"rank_trans,omitempty"`

	// Runs is the number of times the bound route is run (1 if zero).
	Runs int `yaml:"runs,omitempty"`

	// Assertions validate the per-PET outcome.
	Assertions []Assertion `yaml:"assertions"`
}

// Operation names.
const (
	OpHalo    = "halo"
	OpRedist  = "redist"
	OpRedistV = "redistv"
	OpRegrid  = "regrid"
	OpDomList = "domlist"
)

// Assertion validates one property of a scenario result.
type Assertion struct {
	// Type is the assertion type (fill_exact, recv_regions, idempotent,
	// unmapped_count, error_code).
	Type string `yaml:"type"`

	// PET selects the PET an assertion inspects.
	PET *int `yaml:"pet,omitempty"`

	// Peer selects recv table entries for recv_regions.
	Peer *int `yaml:"peer,omitempty"`

	// Regions lists the expected recv regions in "[lo:hi,...]" form.
	Regions []string `yaml:"regions,omitempty"`

	// Count is the expected number of unmapped destination cells.
	Count int `yaml:"count,omitempty"`

	// Code is the expected route error code.
	Code string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertFillExact     = "fill_exact"
	AssertRecvRegions   = "recv_regions"
	AssertIdempotent    = "idempotent"
	AssertUnmappedCount = "unmapped_count"
	AssertErrorCode     = "error_code"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Layouts != "" && !filepath.IsAbs(scenario.Layouts) {
		scenario.Layouts = filepath.Join(filepath.Dir(path), scenario.Layouts)
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
	if s.Layouts == "" {
		return fmt.Errorf("layouts is required")
	}
	if _, err := os.Stat(s.Layouts); os.IsNotExist(err) {
		return fmt.Errorf("layouts not found: %s", s.Layouts)
	}
	if s.PETs < 0 {
		return fmt.Errorf("pets must be non-negative")
	}
	if s.Runs < 0 {
		return fmt.Errorf("runs must be non-negative")
	}
	if s.Src == "" {
		return fmt.Errorf("src is required")
	}

	switch s.Operation {
	case OpHalo:
		if s.Dst != "" {
			return fmt.Errorf("dst is not used by halo")
		}
	case OpRedist, OpRedistV, OpRegrid, OpDomList:
		if s.Dst == "" {
			return fmt.Errorf("dst is required for %s", s.Operation)
		}
	case "":
		return fmt.Errorf("operation is required")
	default:
		return fmt.Errorf("unknown operation %q", s.Operation)
	}
	if (s.Operation == OpRegrid) != (s.Weights != "") {
		return fmt.Errorf("weights is required for regrid and only for regrid")
	}
	if s.RankTrans != nil && s.Operation != OpRedist {
		return fmt.Errorf("rank_trans is only used by redist")
	}

	if _, err := s.kind(); err != nil {
		return err
	}
	if _, err := route.ParseOptions(s.Options); err != nil {
		return err
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scenario) kind() (ir.Kind, error) {
	if s.Kind == "" {
		return ir.KindR8, nil
	}
	return ir.ParseKind(s.Kind)
}

func (s *Scenario) runs() int {
	if s.Runs == 0 {
		return 1
	}
	return s.Runs
}

// validateAssertion checks that an assertion has the fields its type needs.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFillExact, AssertIdempotent:
	case AssertRecvRegions:
		if a.PET == nil || a.Peer == nil {
			return fmt.Errorf("assertions[%d]: pet and peer are required for recv_regions", index)
		}
	case AssertUnmappedCount:
		if a.PET == nil {
			return fmt.Errorf("assertions[%d]: pet is required for unmapped_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for unmapped_count", index)
		}
	case AssertErrorCode:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for error_code", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
