package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

// twoPETResult returns a passing two-PET result.
func twoPETResult() *Result {
	r := NewResult(2)
	for i := range r.PETs {
		r.PETs[i].Bound = true
	}
	r.PETs[1].Recv = map[int][]string{0: {"[3:3]"}}
	r.PETs[1].Unmapped = []int{1}
	return r
}

func TestAssertFillExact(t *testing.T) {
	r := twoPETResult()
	assert.NoError(t, assertFillExact(r, Assertion{Type: AssertFillExact}))

	r.PETs[0].Mismatches = []string{"[0]: got -1, want 1", "[1]: got -1, want 2"}
	err := assertFillExact(r, Assertion{Type: AssertFillExact})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "1 PETs differ", ae.Actual)
	assert.Equal(t, []string{"pet 0: [0]: got -1, want 1", "pet 0: [1]: got -1, want 2"}, ae.Details)
}

func TestAssertFillExact_TruncatesDetails(t *testing.T) {
	r := twoPETResult()
	for i := 0; i < maxDetails+3; i++ {
		r.PETs[1].Mismatches = append(r.PETs[1].Mismatches, "cell")
	}
	var ae *AssertionError
	require.ErrorAs(t, assertFillExact(r, Assertion{}), &ae)
	require.Len(t, ae.Details, maxDetails+1)
	assert.Equal(t, "pet 1: ... 3 more", ae.Details[maxDetails])
}

func TestAssertFillExact_FailedPET(t *testing.T) {
	r := twoPETResult()
	r.PETs[1].Code = "COVERAGE"
	r.PETs[1].Err = "COVERAGE: no source for [4:5]"

	err := assertFillExact(r, Assertion{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pet 1: COVERAGE: no source")
}

func TestAssertRecvRegions(t *testing.T) {
	r := twoPETResult()

	assert.NoError(t, assertRecvRegions(r, Assertion{PET: intPtr(1), Peer: intPtr(0), Regions: []string{"[3:3]"}}))
	assert.NoError(t, assertRecvRegions(r, Assertion{PET: intPtr(0), Peer: intPtr(1)}))

	err := assertRecvRegions(r, Assertion{PET: intPtr(1), Peer: intPtr(0), Regions: []string{"[2:3]"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pet 1 receives [[2:3]] from pet 0")
	assert.Contains(t, err.Error(), "Actual: [[3:3]]")

	err = assertRecvRegions(r, Assertion{Type: AssertRecvRegions, PET: intPtr(5), Peer: intPtr(0)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenario ran on 2 PETs")
}

func TestAssertIdempotent(t *testing.T) {
	r := twoPETResult()
	assert.NoError(t, assertIdempotent(r, Assertion{}))

	r.PETs[0].Stable = false
	err := assertIdempotent(r, Assertion{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pet 0: destination changed between runs")
}

func TestAssertUnmappedCount(t *testing.T) {
	r := twoPETResult()
	assert.NoError(t, assertUnmappedCount(r, Assertion{PET: intPtr(0), Count: 0}))
	assert.NoError(t, assertUnmappedCount(r, Assertion{PET: intPtr(1), Count: 1}))

	err := assertUnmappedCount(r, Assertion{PET: intPtr(1), Count: 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 unmapped: [1]")
}

func TestAssertErrorCode(t *testing.T) {
	r := twoPETResult()
	r.PETs[1].Code = "OVERLAP"

	assert.NoError(t, assertErrorCode(r, Assertion{Code: "OVERLAP"}))
	assert.NoError(t, assertErrorCode(r, Assertion{PET: intPtr(1), Code: "OVERLAP"}))

	err := assertErrorCode(r, Assertion{PET: intPtr(0), Code: "OVERLAP"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Actual: ok")

	err = assertErrorCode(r, Assertion{Code: "COVERAGE"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pet 0: ok, pet 1: OVERLAP")
}

func TestEvaluateAssertions(t *testing.T) {
	r := twoPETResult()
	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertFillExact},
		{Type: AssertUnmappedCount, PET: intPtr(1), Count: 2},
		{Type: "trace_order"},
	})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "assertions[1]")
	assert.Contains(t, errs[1], `assertions[2]: unknown assertion type "trace_order"`)
}

func TestResult_AddError(t *testing.T) {
	r := NewResult(1)
	assert.True(t, r.Pass)
	assert.True(t, r.PETs[0].Stable)

	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
