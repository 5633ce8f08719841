package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes the offending PETs to help debug the failure.
type AssertionError struct {
	Type     string   // Assertion type for categorization
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Details  []string // Per-PET context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	for _, d := range e.Details {
		fmt.Fprintf(&buf, "  %s\n", d)
	}
	return buf.String()
}

// maxDetails caps the cells listed per failing PET.
const maxDetails = 5

// assertFillExact checks that every PET bound, ran, and ended with every
// destination cell equal to the serially computed reference.
func assertFillExact(r *Result, _ Assertion) error {
	var details []string
	bad := 0
	for _, p := range r.PETs {
		if p.Code != "" {
			details = append(details, fmt.Sprintf("pet %d: %s", p.PET, p.Err))
			bad++
			continue
		}
		if len(p.Mismatches) == 0 {
			continue
		}
		bad++
		for i, m := range p.Mismatches {
			if i == maxDetails {
				details = append(details, fmt.Sprintf("pet %d: ... %d more", p.PET, len(p.Mismatches)-maxDetails))
				break
			}
			details = append(details, fmt.Sprintf("pet %d: %s", p.PET, m))
		}
	}
	if bad == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertFillExact,
		Expected: "every destination cell holds the transferred value",
		Actual:   fmt.Sprintf("%d PETs differ", bad),
		Details:  details,
	}
}

// assertRecvRegions checks the recv table entries of one PET for one peer,
// in table order.
func assertRecvRegions(r *Result, a Assertion) error {
	p, err := petOutcome(r, a)
	if err != nil {
		return err
	}
	got := p.Recv[*a.Peer]
	if slices.Equal(got, a.Regions) {
		return nil
	}
	return &AssertionError{
		Type:     AssertRecvRegions,
		Expected: fmt.Sprintf("pet %d receives %v from pet %d", p.PET, a.Regions, *a.Peer),
		Actual:   fmt.Sprintf("%v", got),
	}
}

// assertIdempotent checks that every PET completed every run and repeated
// runs left the destination unchanged.
func assertIdempotent(r *Result, _ Assertion) error {
	var details []string
	for _, p := range r.PETs {
		switch {
		case p.Code != "":
			details = append(details, fmt.Sprintf("pet %d: %s", p.PET, p.Err))
		case !p.Stable:
			details = append(details, fmt.Sprintf("pet %d: destination changed between runs", p.PET))
		}
	}
	if len(details) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertIdempotent,
		Expected: "repeated runs produce identical destinations",
		Actual:   fmt.Sprintf("%d PETs differ", len(details)),
		Details:  details,
	}
}

// assertUnmappedCount checks how many destination cells of one PET no
// weight row covers.
func assertUnmappedCount(r *Result, a Assertion) error {
	p, err := petOutcome(r, a)
	if err != nil {
		return err
	}
	if len(p.Unmapped) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertUnmappedCount,
		Expected: fmt.Sprintf("pet %d has %d unmapped cells", p.PET, a.Count),
		Actual:   fmt.Sprintf("%d unmapped: %v", len(p.Unmapped), p.Unmapped),
	}
}

// assertErrorCode checks that a PET failed with the given code. Without a
// pet, at least one PET must have failed with it.
func assertErrorCode(r *Result, a Assertion) error {
	if a.PET != nil {
		p, err := petOutcome(r, a)
		if err != nil {
			return err
		}
		if p.Code == a.Code {
			return nil
		}
		return &AssertionError{
			Type:     AssertErrorCode,
			Expected: fmt.Sprintf("pet %d fails with %s", p.PET, a.Code),
			Actual:   codeOrOK(p.Code),
		}
	}

	var codes []string
	for _, p := range r.PETs {
		if p.Code == a.Code {
			return nil
		}
		codes = append(codes, fmt.Sprintf("pet %d: %s", p.PET, codeOrOK(p.Code)))
	}
	return &AssertionError{
		Type:     AssertErrorCode,
		Expected: fmt.Sprintf("some pet fails with %s", a.Code),
		Actual:   strings.Join(codes, ", "),
	}
}

func petOutcome(r *Result, a Assertion) (*PETOutcome, error) {
	if *a.PET < 0 || *a.PET >= len(r.PETs) {
		return nil, &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("pet %d", *a.PET),
			Actual:   fmt.Sprintf("scenario ran on %d PETs", len(r.PETs)),
		}
	}
	return &r.PETs[*a.PET], nil
}

func codeOrOK(code string) string {
	if code == "" {
		return "ok"
	}
	return code
}

// EvaluateAssertions runs every assertion against a result and returns the
// failure messages.
func EvaluateAssertions(r *Result, assertions []Assertion) []string {
	var errors []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertFillExact:
			err = assertFillExact(r, a)
		case AssertRecvRegions:
			err = assertRecvRegions(r, a)
		case AssertIdempotent:
			err = assertIdempotent(r, a)
		case AssertUnmappedCount:
			err = assertUnmappedCount(r, a)
		case AssertErrorCode:
			err = assertErrorCode(r, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errors = append(errors, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errors
}
