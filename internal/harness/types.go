package harness

import (
	"github.com/roach88/gridroute/internal/ir"
	"github.com/roach88/gridroute/internal/route"
)

// PETOutcome is what one PET observed while binding and running the
// scenario's route.
type PETOutcome struct {
	PET int `json:"pet"`

	// Code is the route error code of a failed bind or run, empty on
	// success.
	Code string `json:"code,omitempty"`

	// Err is the failure message, empty on success.
	Err string `json:"error,omitempty"`

	// Bound reports whether the route was bound when the scenario ended.
	Bound bool `json:"bound"`

	// Route summarises the bound route (zero counts if binding failed).
	Route ir.RouteRecord `json:"route"`

	// Runs holds one record per Run call.
	Runs []ir.RunRecord `json:"runs"`

	// Mismatches lists destination cells whose final value differs from the
	// serially computed reference.
	Mismatches []string `json:"mismatches,omitempty"`

	// Stable is false if any run after the first changed the destination.
	Stable bool `json:"stable"`

	// Unmapped lists destination cells no weight row covers (regrid only).
	Unmapped []int `json:"unmapped,omitempty"`

	// Recv lists the recv table regions per peer.
	Recv map[int][]string `json:"recv,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every assertion holds.
	Pass bool `json:"pass"`

	// Options are the normalized route options every PET used.
	Options route.Options `json:"options"`

	// PETs holds one outcome per PET, in PET order.
	PETs []PETOutcome `json:"pets"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result for size PETs.
func NewResult(size int) *Result {
	r := &Result{
		Pass:   true,
		PETs:   make([]PETOutcome, size),
		Errors: []string{},
	}
	for pet := range r.PETs {
		r.PETs[pet] = PETOutcome{PET: pet, Stable: true, Runs: []ir.RunRecord{}}
	}
	return r
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Failed reports whether any PET failed to bind or run.
func (r *Result) Failed() bool {
	for _, p := range r.PETs {
		if p.Code != "" {
			return true
		}
	}
	return false
}
