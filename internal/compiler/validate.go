package compiler

import (
	"fmt"
	"math"
	"regexp"

	"github.com/roach88/gridroute/internal/ir"
	"github.com/roach88/gridroute/internal/weights"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported type for validation

	// Layout errors (E101-E109)
	ErrLayoutName      = "E101" // name must be a lower-case identifier
	ErrLayoutRank      = "E102" // rank outside 1..MaxRank
	ErrLayoutInvalid   = "E103" // decomposition or domain list fails its own checks
	ErrLayoutOverlap   = "E104" // two PETs or DEs own the same cell
	ErrLayoutDEPlace   = "E105" // DE layout places two DEs on one PET
	ErrLayoutUncovered = "E106" // cells owned by nobody

	// Weight table errors (E110-E119)
	ErrWeightsIndex     = "E110" // negative index
	ErrWeightsFactor    = "E111" // NaN or infinite factor
	ErrWeightsDuplicate = "E112" // same (dst, src) pair twice
	ErrWeightsEmptyRow  = "E113" // row with no terms
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks compiled layouts and weight tables.
// Returns all errors found (does not fail-fast).
func Validate(v any) []ValidationError {
	switch x := v.(type) {
	case *Layout:
		return validateLayout(x)
	case *weights.Table:
		return validateWeights(x)
	case weights.Table:
		return validateWeights(&x)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func validateLayout(l *Layout) []ValidationError {
	var errs []ValidationError

	if !namePattern.MatchString(l.Name) {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: fmt.Sprintf("layout name %q must match %s", l.Name, namePattern),
			Code:    ErrLayoutName,
		})
	}

	rank := len(l.GlobalCount())
	if rank < 1 || rank > ir.MaxRank {
		return append(errs, ValidationError{
			Field:   "global_count",
			Message: fmt.Sprintf("rank %d outside 1..%d", rank, ir.MaxRank),
			Code:    ErrLayoutRank,
		})
	}

	if l.Block != nil {
		return append(errs, validateBlock(l.Block)...)
	}
	return append(errs, validateList(l.List, l.DEs)...)
}

func validateBlock(d *ir.Decomposition) []ValidationError {
	if err := d.Validate(); err != nil {
		return []ValidationError{{Field: "shards", Message: err.Error(), Code: ErrLayoutInvalid}}
	}
	var errs []ValidationError
	owned := 0
	for p := 0; p < d.PETs(); p++ {
		if !d.HasData(p) {
			continue
		}
		ex := d.Exclusive(p)
		owned += ex.Count()
		for q := p + 1; q < d.PETs(); q++ {
			if d.HasData(q) && ex.Overlaps(d.Exclusive(q)) {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("shards[%d]", q),
					Message: fmt.Sprintf("pets %d and %d both own %s", p, q, ex.Intersect(d.Exclusive(q))),
					Code:    ErrLayoutOverlap,
				})
			}
		}
	}
	if len(errs) == 0 && owned != d.Domain().Count() {
		errs = append(errs, ValidationError{
			Field:   "shards",
			Message: fmt.Sprintf("pets own %d of %d cells", owned, d.Domain().Count()),
			Code:    ErrLayoutUncovered,
		})
	}
	return errs
}

func validateList(l *ir.DomainList, des ir.DELayout) []ValidationError {
	if err := l.Validate(); err != nil {
		return []ValidationError{{Field: "blocks", Message: err.Error(), Code: ErrLayoutInvalid}}
	}
	var errs []ValidationError

	seen := make(map[int]int, len(des))
	for de, pet := range des {
		if pet < 0 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("pets[%d]", de),
				Message: fmt.Sprintf("negative pet %d", pet),
				Code:    ErrLayoutDEPlace,
			})
			continue
		}
		if prev, ok := seen[pet]; ok {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("pets[%d]", de),
				Message: fmt.Sprintf("pet %d already hosts de %d", pet, prev),
				Code:    ErrLayoutDEPlace,
			})
		}
		seen[pet] = de
	}

	type owned struct {
		de     int
		region ir.Region
	}
	var all []owned
	total := 0
	for de, blocks := range l.Blocks {
		for _, b := range blocks {
			for _, o := range all {
				if o.region.Overlaps(b.Region) {
					errs = append(errs, ValidationError{
						Field:   fmt.Sprintf("blocks[%d]", de),
						Message: fmt.Sprintf("des %d and %d both own %s", o.de, de, o.region.Intersect(b.Region)),
						Code:    ErrLayoutOverlap,
					})
				}
			}
			all = append(all, owned{de, b.Region})
			total += b.Region.Count()
		}
	}
	domain := 1
	for _, n := range l.GlobalCount {
		domain *= n
	}
	if len(errs) == 0 && total != domain {
		errs = append(errs, ValidationError{
			Field:   "blocks",
			Message: fmt.Sprintf("des own %d of %d cells", total, domain),
			Code:    ErrLayoutUncovered,
		})
	}
	return errs
}

func validateWeights(t *weights.Table) []ValidationError {
	var errs []ValidationError
	type pair struct{ dst, src int }
	seen := make(map[pair]bool)
	for i, r := range t.Rows {
		if r.Dst < 0 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("rows[%d].dst", i),
				Message: fmt.Sprintf("negative destination index %d", r.Dst),
				Code:    ErrWeightsIndex,
			})
		}
		if len(r.Terms) == 0 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("rows[%d].terms", i),
				Message: fmt.Sprintf("row for destination %d has no terms", r.Dst),
				Code:    ErrWeightsEmptyRow,
			})
		}
		for j, term := range r.Terms {
			field := fmt.Sprintf("rows[%d].terms[%d]", i, j)
			if term.Src < 0 {
				errs = append(errs, ValidationError{
					Field:   field + ".src",
					Message: fmt.Sprintf("negative source index %d", term.Src),
					Code:    ErrWeightsIndex,
				})
			}
			if math.IsNaN(term.Factor) || math.IsInf(term.Factor, 0) {
				errs = append(errs, ValidationError{
					Field:   field + ".factor",
					Message: fmt.Sprintf("factor %v is not finite", term.Factor),
					Code:    ErrWeightsFactor,
				})
			}
			p := pair{r.Dst, term.Src}
			if seen[p] {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("destination %d lists source %d twice", r.Dst, term.Src),
					Code:    ErrWeightsDuplicate,
				})
			}
			seen[p] = true
		}
	}
	return errs
}
