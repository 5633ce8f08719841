package store

import (
	"context"
	"testing"

	"github.com/roach88/gridroute/internal/ir"
)

func TestReadRoutes_EmptyStore(t *testing.T) {
	s := createTestStore(t)
	routes, err := s.ReadRoutes(context.Background())
	if err != nil {
		t.Fatalf("ReadRoutes() failed: %v", err)
	}
	if routes == nil || len(routes) != 0 {
		t.Errorf("ReadRoutes() = %v, want empty non-nil slice", routes)
	}
}

func TestReadRoutes_DeterministicOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Written out of order; equal seq falls back to id.
	for _, rec := range []ir.RouteRecord{
		createTestRoute("c", "k1", 0, 3),
		createTestRoute("b", "k1", 1, 1),
		createTestRoute("a", "k2", 0, 1),
	} {
		if err := s.WriteRoute(ctx, rec); err != nil {
			t.Fatalf("WriteRoute(%s) failed: %v", rec.ID, err)
		}
	}

	routes, err := s.ReadRoutes(ctx)
	if err != nil {
		t.Fatalf("ReadRoutes() failed: %v", err)
	}
	var ids []string
	for _, r := range routes {
		ids = append(ids, r.ID)
	}
	want := []string{"a", "b", "c"}
	if len(ids) != len(want) {
		t.Fatalf("got ids %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids = %v, want %v", ids, want)
			break
		}
	}

	byKey, err := s.ReadRoutesByKey(ctx, "k1")
	if err != nil {
		t.Fatalf("ReadRoutesByKey() failed: %v", err)
	}
	if len(byKey) != 2 || byKey[0].ID != "b" || byKey[1].ID != "c" {
		t.Errorf("ReadRoutesByKey(k1) = %+v", byKey)
	}
}

func TestReadRuns_OrderedBySeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"r1", "r2"} {
		if err := s.WriteRoute(ctx, createTestRoute(id, "k", 0, 1)); err != nil {
			t.Fatalf("WriteRoute() failed: %v", err)
		}
	}
	for _, run := range []ir.RunRecord{
		{RouteID: "r1", Seq: 5, Status: "ok"},
		{RouteID: "r2", Seq: 3, Status: "ok"},
		{RouteID: "r1", Seq: 2, Status: "TRANSPORT"},
	} {
		if _, _, err := s.WriteRun(ctx, run); err != nil {
			t.Fatalf("WriteRun() failed: %v", err)
		}
	}

	runs, err := s.ReadRuns(ctx, "r1")
	if err != nil {
		t.Fatalf("ReadRuns() failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].Seq != 2 || runs[0].Status != "TRANSPORT" || runs[1].Seq != 5 {
		t.Errorf("runs = %+v, want seq 2 then 5", runs)
	}

	none, err := s.ReadRuns(ctx, "missing")
	if err != nil {
		t.Fatalf("ReadRuns(missing) failed: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("ReadRuns(missing) = %v, want empty non-nil slice", none)
	}
}
