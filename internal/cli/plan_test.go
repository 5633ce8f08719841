package cli

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanCommand_Text(t *testing.T) {
	out, _, err := execute(NewPlanCommand(&RootOptions{Format: "text"}), harnessScenario("halo_line"))
	require.NoError(t, err)

	assert.Contains(t, out, "Plan for halo_line: halo on 4 PETs (ASYNC|PACK_XP)")
	for _, want := range []string{"✓ pet 0:", "✓ pet 1:", "✓ pet 2:", "✓ pet 3:"} {
		assert.Contains(t, out, want)
	}
	assert.Contains(t, out, "send: 2 entries, 2 items")
	assert.Contains(t, out, "rounds: 3")
}

func TestPlanCommand_JSON(t *testing.T) {
	out, _, err := execute(NewPlanCommand(&RootOptions{Format: "json"}), harnessScenario("regrid_coarsen"))
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   PlanResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "regrid", resp.Data.Operation)
	require.Len(t, resp.Data.PETs, 2)

	for _, p := range resp.Data.PETs {
		assert.Equal(t, "ok", p.Status)
		assert.Equal(t, "regrid", p.Route.Op)
		assert.NotEmpty(t, p.Route.Schedule)
		id, err := uuid.Parse(p.Route.ID)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), id.Version())
	}
	assert.Equal(t, resp.Data.PETs[0].Route.RouteKey, resp.Data.PETs[1].Route.RouteKey)
}

func TestPlanCommand_BindFailure(t *testing.T) {
	out, _, err := execute(NewPlanCommand(&RootOptions{Format: "text"}), harnessScenario("domlist_gap"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ pet 0: COVERAGE")
}

func TestPlanCommand_MissingScenario(t *testing.T) {
	_, _, err := execute(NewPlanCommand(&RootOptions{Format: "text"}), harnessScenario("nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load scenario")
}

func TestPlanCommand_OptionsOverride(t *testing.T) {
	out, _, err := execute(NewPlanCommand(&RootOptions{Format: "text"}),
		"--options", "sync,pack_pet", harnessScenario("halo_line"))
	require.NoError(t, err)
	assert.Contains(t, out, "Plan for halo_line: halo on 4 PETs (SYNC|PACK_PET)")
}

func TestPlanCommand_ConflictingOptions(t *testing.T) {
	_, _, err := execute(NewPlanCommand(&RootOptions{Format: "text"}),
		"--options", "async,sync", harnessScenario("halo_line"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to bind scenario")
}

func TestPlanCommand_Flags(t *testing.T) {
	cmd := NewPlanCommand(&RootOptions{Format: "text"})

	pets := cmd.Flags().Lookup("pets")
	require.NotNil(t, pets)
	assert.Equal(t, "0", pets.DefValue)
	require.NotNil(t, cmd.Flags().Lookup("options"))
}
