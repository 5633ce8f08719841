package store

import (
	"context"
	"fmt"

	"github.com/roach88/gridroute/internal/ir"
)

// WriteRoute inserts a route summary.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - rewriting the same route
// id is silently ignored.
func (s *Store) WriteRoute(ctx context.Context, rec ir.RouteRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO routes
		(id, route_key, op, pet, options, kind, send_entries, recv_entries, send_items, recv_items, rounds, schedule, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.RouteKey,
		rec.Op,
		rec.PET,
		rec.Options,
		rec.Kind,
		rec.SendEntries,
		rec.RecvEntries,
		rec.SendItems,
		rec.RecvItems,
		rec.Rounds,
		rec.Schedule,
		rec.Seq,
	)
	if err != nil {
		return fmt.Errorf("write route: %w", err)
	}
	return nil
}

// WriteRun inserts a run record and returns its id. A second record for the
// same (route_id, seq) is ignored and the existing id returned.
//
// Note: The route referenced by RouteID must exist (foreign key constraint).
func (s *Store) WriteRun(ctx context.Context, rec ir.RunRecord) (id int64, inserted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(route_id, seq, bytes_sent, bytes_recv, messages, status)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(route_id, seq) DO NOTHING
	`,
		rec.RouteID,
		rec.Seq,
		rec.BytesSent,
		rec.BytesRecv,
		rec.Messages,
		rec.Status,
	)
	if err != nil {
		return 0, false, fmt.Errorf("write run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("write run: rows affected: %w", err)
	}
	if n == 1 {
		if id, err = res.LastInsertId(); err != nil {
			return 0, false, fmt.Errorf("write run: last insert id: %w", err)
		}
		inserted = true
	} else {
		err = tx.QueryRowContext(ctx, `SELECT id FROM runs WHERE route_id = ? AND seq = ?`, rec.RouteID, rec.Seq).Scan(&id)
		if err != nil {
			return 0, false, fmt.Errorf("write run: existing id: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("write run: commit: %w", err)
	}
	return id, inserted, nil
}
