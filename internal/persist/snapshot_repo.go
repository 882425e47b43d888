package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNoSnapshot is returned when a run has no stored snapshot.
var ErrNoSnapshot = errors.New("no snapshot stored")

// EntityRecord is one entity's persisted state inside a snapshot.
type EntityRecord struct {
	ID     uint64
	TypeID uint32
	Flags  uint32
	State  string // YAML document produced by the entity
}

// Snapshot is the persisted view of the world at the end of one frame.
type Snapshot struct {
	ID       uuid.UUID
	RunID    uuid.UUID
	Frame    uint64
	TakenAt  time.Time
	Entities []EntityRecord
}

type SnapshotRepo struct {
	db *DB
}

func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// Save writes the snapshot header and every entity row in one transaction.
// A zero ID is replaced with a fresh UUID.
func (r *SnapshotRepo) Save(ctx context.Context, s *Snapshot) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.TakenAt.IsZero() {
		s.TakenAt = time.Now()
	}

	tx, err := r.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("snapshot begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.db.rebind(
		`INSERT INTO frame_snapshots (id, run_id, frame, entity_count, taken_at)
		 VALUES ($1, $2, $3, $4, $5)`),
		s.ID.String(), s.RunID.String(), int64(s.Frame), len(s.Entities), s.TakenAt.UnixMilli(),
	); err != nil {
		return fmt.Errorf("snapshot insert: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, r.db.rebind(
		`INSERT INTO snapshot_entities (snapshot_id, entity_id, type_id, flags, state)
		 VALUES ($1, $2, $3, $4, $5)`))
	if err != nil {
		return fmt.Errorf("snapshot prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range s.Entities {
		if _, err := stmt.ExecContext(ctx, s.ID.String(), int64(e.ID), int64(e.TypeID), int64(e.Flags), e.State); err != nil {
			return fmt.Errorf("snapshot entity %d: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("snapshot commit: %w", err)
	}
	return nil
}

// Latest loads the highest-frame snapshot of a run.
func (r *SnapshotRepo) Latest(ctx context.Context, runID uuid.UUID) (*Snapshot, error) {
	var (
		id, run    string
		frame      int64
		takenMilli int64
	)
	err := r.db.SQL.QueryRowContext(ctx, r.db.rebind(
		`SELECT id, run_id, frame, taken_at FROM frame_snapshots
		 WHERE run_id = $1 ORDER BY frame DESC LIMIT 1`),
		runID.String(),
	).Scan(&id, &run, &frame, &takenMilli)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot latest: %w", err)
	}

	s := &Snapshot{
		Frame:   uint64(frame),
		TakenAt: time.UnixMilli(takenMilli),
	}
	if s.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("snapshot id: %w", err)
	}
	if s.RunID, err = uuid.Parse(run); err != nil {
		return nil, fmt.Errorf("snapshot run id: %w", err)
	}

	rows, err := r.db.SQL.QueryContext(ctx, r.db.rebind(
		`SELECT entity_id, type_id, flags, state FROM snapshot_entities
		 WHERE snapshot_id = $1 ORDER BY entity_id`),
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot entities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			entityID      int64
			typeID, flags int64
			e             EntityRecord
		)
		if err := rows.Scan(&entityID, &typeID, &flags, &e.State); err != nil {
			return nil, fmt.Errorf("scan snapshot entity: %w", err)
		}
		e.ID = uint64(entityID)
		e.TypeID = uint32(typeID)
		e.Flags = uint32(flags)
		s.Entities = append(s.Entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot entities: %w", err)
	}
	return s, nil
}

// Count returns how many snapshots a run has stored.
func (r *SnapshotRepo) Count(ctx context.Context, runID uuid.UUID) (int, error) {
	var n int
	err := r.db.SQL.QueryRowContext(ctx, r.db.rebind(
		`SELECT COUNT(*) FROM frame_snapshots WHERE run_id = $1`),
		runID.String(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("snapshot count: %w", err)
	}
	return n, nil
}

// Prune keeps the newest keep snapshots of a run and deletes the rest.
func (r *SnapshotRepo) Prune(ctx context.Context, runID uuid.UUID, keep int) (int64, error) {
	if keep <= 0 {
		return 0, fmt.Errorf("prune keep must be positive, got %d", keep)
	}

	tx, err := r.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("prune begin: %w", err)
	}
	defer tx.Rollback()

	var cutoff sql.NullInt64
	err = tx.QueryRowContext(ctx, r.db.rebind(
		`SELECT MIN(frame) FROM (
		   SELECT frame FROM frame_snapshots WHERE run_id = $1 ORDER BY frame DESC LIMIT $2
		 ) recent`),
		runID.String(), keep,
	).Scan(&cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune cutoff: %w", err)
	}
	if !cutoff.Valid {
		return 0, nil
	}

	if _, err := tx.ExecContext(ctx, r.db.rebind(
		`DELETE FROM snapshot_entities WHERE snapshot_id IN (
		   SELECT id FROM frame_snapshots WHERE run_id = $1 AND frame < $2
		 )`),
		runID.String(), cutoff.Int64,
	); err != nil {
		return 0, fmt.Errorf("prune entities: %w", err)
	}
	res, err := tx.ExecContext(ctx, r.db.rebind(
		`DELETE FROM frame_snapshots WHERE run_id = $1 AND frame < $2`),
		runID.String(), cutoff.Int64,
	)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("prune commit: %w", err)
	}
	return deleted, nil
}
