package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenario writes a scenario next to a layouts file and returns its
// path.
func writeScenario(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "grids.cue"),
		[]byte("layout: line: {global_count: [8], grid: [2], halo: [1]}\n"), 0o644))
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "redist_transpose.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "redist_transpose", s.Name)
	assert.Equal(t, OpRedist, s.Operation)
	assert.Equal(t, "rows", s.Src)
	assert.Equal(t, "cols_t", s.Dst)
	assert.Equal(t, []int{1, 0}, s.RankTrans)
	assert.Equal(t, "async,vector", s.Options)
	assert.Equal(t, filepath.Join("testdata", "layouts"), s.Layouts)
	assert.Equal(t, 1, s.runs())
	require.Len(t, s.Assertions, 1)
	assert.Equal(t, AssertFillExact, s.Assertions[0].Type)
}

func TestLoadScenario_ResolvesLayoutsRelativeToFile(t *testing.T) {
	path := writeScenario(t, `
name: line
description: "halo on a line"
layouts: grids.cue
operation: halo
src: line
assertions:
  - type: fill_exact
`)
	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "grids.cue"), s.Layouts)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: line
description: "typo"
layouts: grids.cue
operation: halo
src: line
assertion:
  - type: fill_exact
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing name",
			body:    "description: d\nlayouts: grids.cue\noperation: halo\nsrc: line\nassertions: [{type: fill_exact}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			body:    "name: n\nlayouts: grids.cue\noperation: halo\nsrc: line\nassertions: [{type: fill_exact}]\n",
			wantErr: "description is required",
		},
		{
			name:    "layouts not found",
			body:    "name: n\ndescription: d\nlayouts: other.cue\noperation: halo\nsrc: line\nassertions: [{type: fill_exact}]\n",
			wantErr: "layouts not found",
		},
		{
			name:    "unknown operation",
			body:    "name: n\ndescription: d\nlayouts: grids.cue\noperation: scatter\nsrc: line\nassertions: [{type: fill_exact}]\n",
			wantErr: `unknown operation "scatter"`,
		},
		{
			name:    "halo with dst",
			body:    "name: n\ndescription: d\nlayouts: grids.cue\noperation: halo\nsrc: line\ndst: line\nassertions: [{type: fill_exact}]\n",
			wantErr: "dst is not used by halo",
		},
		{
			name:    "redist without dst",
			body:    "name: n\ndescription: d\nlayouts: grids.cue\noperation: redist\nsrc: line\nassertions: [{type: fill_exact}]\n",
			wantErr: "dst is required for redist",
		},
		{
			name:    "regrid without weights",
			body:    "name: n\ndescription: d\nlayouts: grids.cue\noperation: regrid\nsrc: line\ndst: line\nassertions: [{type: fill_exact}]\n",
			wantErr: "weights is required",
		},
		{
			name:    "rank_trans on halo",
			body:    "name: n\ndescription: d\nlayouts: grids.cue\noperation: halo\nsrc: line\nrank_trans: [0]\nassertions: [{type: fill_exact}]\n",
			wantErr: "rank_trans is only used by redist",
		},
		{
			name:    "bad kind",
			body:    "name: n\ndescription: d\nlayouts: grids.cue\noperation: halo\nsrc: line\nkind: R16\nassertions: [{type: fill_exact}]\n",
			wantErr: "R16",
		},
		{
			name:    "conflicting options",
			body:    "name: n\ndescription: d\nlayouts: grids.cue\noperation: halo\nsrc: line\noptions: sync,async\nassertions: [{type: fill_exact}]\n",
			wantErr: "exclusive",
		},
		{
			name:    "no assertions",
			body:    "name: n\ndescription: d\nlayouts: grids.cue\noperation: halo\nsrc: line\n",
			wantErr: "assertions list is required",
		},
		{
			name:    "recv_regions without peer",
			body:    "name: n\ndescription: d\nlayouts: grids.cue\noperation: halo\nsrc: line\nassertions: [{type: recv_regions, pet: 0}]\n",
			wantErr: "pet and peer are required",
		},
		{
			name:    "unmapped_count without pet",
			body:    "name: n\ndescription: d\nlayouts: grids.cue\noperation: halo\nsrc: line\nassertions: [{type: unmapped_count, count: 1}]\n",
			wantErr: "pet is required for unmapped_count",
		},
		{
			name:    "error_code without code",
			body:    "name: n\ndescription: d\nlayouts: grids.cue\noperation: halo\nsrc: line\nassertions: [{type: error_code}]\n",
			wantErr: "code is required",
		},
		{
			name:    "unknown assertion",
			body:    "name: n\ndescription: d\nlayouts: grids.cue\noperation: halo\nsrc: line\nassertions: [{type: trace_contains}]\n",
			wantErr: `unknown assertion type "trace_contains"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
