package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/gridroute/internal/ir"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

const routeColumns = `id, route_key, op, pet, options, kind, send_entries, recv_entries, send_items, recv_items, rounds, schedule, seq`

// ReadRoutes returns every route record.
// Results are ordered by seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if the store holds no routes.
func (s *Store) ReadRoutes(ctx context.Context) ([]ir.RouteRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+routeColumns+`
		FROM routes
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query routes: %w", err)
	}
	return collectRoutes(rows)
}

// ReadRoutesByKey returns the per-PET records of every route with the
// given structural key.
func (s *Store) ReadRoutesByKey(ctx context.Context, key string) ([]ir.RouteRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+routeColumns+`
		FROM routes
		WHERE route_key = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, key)
	if err != nil {
		return nil, fmt.Errorf("query routes by key: %w", err)
	}
	return collectRoutes(rows)
}

// ReadRoute returns one route by id, or ErrNotFound.
func (s *Store) ReadRoute(ctx context.Context, id string) (ir.RouteRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+routeColumns+` FROM routes WHERE id = ?`, id)
	rec, err := scanRoute(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.RouteRecord{}, fmt.Errorf("route %s: %w", id, ErrNotFound)
	}
	return rec, err
}

// ReadRuns returns the runs of one route ordered by seq ASC, id ASC.
func (s *Store) ReadRuns(ctx context.Context, routeID string) ([]ir.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, route_id, seq, bytes_sent, bytes_recv, messages, status
		FROM runs
		WHERE route_id = ?
		ORDER BY seq ASC, id ASC
	`, routeID)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []ir.RunRecord{}
	for rows.Next() {
		var r ir.RunRecord
		if err := rows.Scan(&r.ID, &r.RouteID, &r.Seq, &r.BytesSent, &r.BytesRecv, &r.Messages, &r.Status); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRoute(row scanner) (ir.RouteRecord, error) {
	var r ir.RouteRecord
	err := row.Scan(&r.ID, &r.RouteKey, &r.Op, &r.PET, &r.Options, &r.Kind,
		&r.SendEntries, &r.RecvEntries, &r.SendItems, &r.RecvItems, &r.Rounds, &r.Schedule, &r.Seq)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan route: %w", err)
	}
	return r, nil
}

func collectRoutes(rows *sql.Rows) ([]ir.RouteRecord, error) {
	defer rows.Close()
	routes := []ir.RouteRecord{}
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		routes = append(routes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate routes: %w", err)
	}
	return routes, nil
}
