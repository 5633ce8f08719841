package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// harnessScenario returns the path of one of the harness package's
// scenario files.
func harnessScenario(name string) string {
	return filepath.Join("..", "harness", "testdata", "scenarios", name+".yaml")
}

// execute runs cmd with args and returns its stdout and stderr.
func execute(cmd *cobra.Command, args ...string) (string, string, error) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// writeFile writes content to dir/name, creating dir.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const lineLayouts = `package grids

layout: line: {global_count: [8], grid: [2], halo: [1]}
layout: fine: {global_count: [4], grid: [2]}
layout: coarse: {global_count: [2], grid: [2]}

weights: coarsen: rows: [{dst: 1, terms: [{src: 2, factor: 0.5}, {src: 3, factor: 0.5}]}]
`

const haloScenario = `name: line_halo
description: "Two PETs exchange one halo cell"
layouts: ../layouts
operation: halo
src: line
runs: 2
assertions:
  - type: fill_exact
  - type: idempotent
`

const failingScenario = `name: line_wrong
description: "Expects an error the route never raises"
layouts: ../layouts
operation: halo
src: line
assertions:
  - type: error_code
    code: OVERLAP
`

// writeWorkspace writes a layouts package and a scenarios directory holding
// the given scenario files, and returns the scenarios directory.
func writeWorkspace(t *testing.T, scenarios map[string]string) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "layouts"), "grids.cue", lineLayouts)
	dir := filepath.Join(root, "scenarios")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, body := range scenarios {
		writeFile(t, dir, name+".yaml", body)
	}
	return dir
}
