package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/gridroute/internal/ir"
)

// createTestStore opens a fresh store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRoute creates a route record with minimal required fields.
func createTestRoute(id, key string, pet int, seq int64) ir.RouteRecord {
	return ir.RouteRecord{
		ID:          id,
		RouteKey:    key,
		Op:          "halo",
		PET:         pet,
		Options:     9,
		Kind:        "R8",
		SendEntries: 2,
		RecvEntries: 2,
		SendItems:   2,
		RecvItems:   2,
		Rounds:      3,
		Schedule:    "pet 0/4 elem=8B rounds=3\n",
		Seq:         seq,
	}
}
