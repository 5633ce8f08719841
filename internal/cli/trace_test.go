package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gridroute/internal/ir"
	"github.com/roach88/gridroute/internal/store"
)

// seedStore writes two PETs' records of one halo route, the second with a
// failed run.
func seedStore(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "routes.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	routes := []ir.RouteRecord{
		{ID: "route-a", RouteKey: "3f9a0c1277aa55", Op: "halo", PET: 0, Kind: "R8", Rounds: 1, SendEntries: 1, RecvEntries: 1, Schedule: "round 0: 0<->1\n", Seq: 1},
		{ID: "route-b", RouteKey: "3f9a0c1277aa55", Op: "halo", PET: 1, Kind: "R8", Rounds: 1, SendEntries: 1, RecvEntries: 1, Schedule: "round 0: 1<->0\n", Seq: 2},
		{ID: "route-c", RouteKey: "77770000aaaa", Op: "redist", PET: 0, Kind: "I4", Rounds: 0, Seq: 5},
	}
	for _, r := range routes {
		require.NoError(t, st.WriteRoute(ctx, r))
	}
	runs := []ir.RunRecord{
		{RouteID: "route-a", Seq: 3, BytesSent: 8, BytesRecv: 8, Messages: 1, Status: "ok"},
		{RouteID: "route-b", Seq: 4, BytesSent: 8, BytesRecv: 0, Messages: 1, Status: "TRANSPORT"},
	}
	for _, r := range runs {
		_, _, err := st.WriteRun(ctx, r)
		require.NoError(t, err)
	}
	return dbPath
}

func TestTraceMissingDatabaseFlag(t *testing.T) {
	_, _, err := execute(NewTraceCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestTraceNonExistentDatabase(t *testing.T) {
	_, _, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", "/nonexistent/path/routes.db")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "database not found")
}

func TestTraceEmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "routes.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No routes recorded.")
}

func TestTraceTimeline(t *testing.T) {
	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", seedStore(t))
	require.NoError(t, err)

	assert.Contains(t, out, "[1] ROUTE route-a halo R8 pet=0 key=3f9a0c1277aa rounds=1")
	assert.Contains(t, out, "[3] RUN ok sent=8 recv=8 messages=1")
	assert.Contains(t, out, "[4] RUN TRANSPORT sent=8 recv=0 messages=1")
	assert.Contains(t, out, "[5] ROUTE route-c redist I4 pet=0")
	assert.Contains(t, out, "Routes:     3")
	assert.Contains(t, out, "Failures:   1")
	assert.NotContains(t, out, "Schedule:")
}

func TestTraceSingleRoute(t *testing.T) {
	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", seedStore(t), "--route", "route-b")
	require.NoError(t, err)

	assert.Contains(t, out, "ROUTE route-b")
	assert.NotContains(t, out, "route-a")
	assert.Contains(t, out, "Schedule:\n  round 0: 1<->0\n")
}

func TestTraceUnknownRoute(t *testing.T) {
	_, _, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", seedStore(t), "--route", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTraceByKeyJSON(t *testing.T) {
	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "json"}), "--db", seedStore(t), "--key", "3f9a0c1277aa55")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Routes, 2)
	assert.Equal(t, "route-a", resp.Data.Routes[0].Route.ID)
	assert.Equal(t, "route-b", resp.Data.Routes[1].Route.ID)
	assert.Equal(t, TraceStats{Routes: 2, Runs: 2, Failures: 1, BytesSent: 16, BytesRecv: 8, Messages: 2}, resp.Data.Stats)
}

func TestTraceRouteAndKeyExclusive(t *testing.T) {
	_, _, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", seedStore(t), "--route", "a", "--key", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none of the others can be")
}

func TestTraceAfterRun(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "routes.db")
	_, _, err := execute(NewRunCommand(&RootOptions{Format: "text"}), "--db", dbPath, harnessScenario("redist_transpose"))
	require.NoError(t, err)

	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "json"}), "--db", dbPath)
	require.NoError(t, err)

	var resp struct {
		Data TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Routes, 2)
	assert.Equal(t, 2, resp.Data.Stats.Runs)
	assert.Zero(t, resp.Data.Stats.Failures)
	for _, rt := range resp.Data.Routes {
		assert.Equal(t, "redist", rt.Route.Op)
		require.Len(t, rt.Runs, 1)
		assert.Greater(t, rt.Route.Seq, int64(0))
	}
}
