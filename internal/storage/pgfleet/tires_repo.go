package pgfleet

import (
	"context"
	"time"

	"github.com/BearBump/FleetTrack/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// assignedToType берётся из vehicles, отдельно не хранится.
const tireSelect = `
SELECT
  t.id, t.serial_number, t.brand, t.size, t.status, t.tread_depth,
  t.position, COALESCE(v.kind, ''), t.vehicle_id, t.mileage_at_install,
  t.notes, t.created_at, t.updated_at
FROM tires t
LEFT JOIN vehicles v ON v.id = t.vehicle_id
`

func scanTire(row pgx.Row) (*models.Tire, error) {
	var t models.Tire
	err := row.Scan(
		&t.ID, &t.SerialNumber, &t.Brand, &t.Size, &t.Status, &t.TreadDepth,
		&t.Position, &t.AssignedToType, &t.AssignedToID, &t.MileageAtInstall,
		&t.Notes, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Storage) CreateTire(ctx context.Context, t *models.Tire) (*models.Tire, error) {
	var out *models.Tire
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		var id uint64
		err := tx.QueryRow(ctx, `
INSERT INTO tires (serial_number, brand, size, status, tread_depth, notes, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
RETURNING id
`, t.SerialNumber, t.Brand, t.Size, t.Status, t.TreadDepth, t.Notes, now).Scan(&id)
		if err != nil {
			if pgCode(err) == pgUniqueViolation {
				return errors.Wrapf(models.ErrConflict, "serial number %q already registered", t.SerialNumber)
			}
			return errors.Wrap(err, "insert tire")
		}
		for _, h := range t.History {
			if err := insertTireHistory(ctx, tx, id, h); err != nil {
				return err
			}
		}
		out, err = getTire(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Storage) GetTire(ctx context.Context, id uint64) (*models.Tire, error) {
	return getTire(ctx, s.db, id)
}

func getTire(ctx context.Context, q querier, id uint64) (*models.Tire, error) {
	t, err := scanTire(q.QueryRow(ctx, tireSelect+`WHERE t.id = $1`, id))
	if err != nil {
		return nil, notFoundIfNoRows(err, "tire", id, "select tire")
	}
	if err := loadTireHistory(ctx, q, []*models.Tire{t}); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Storage) ListTires(ctx context.Context, f models.TireFilter) ([]*models.Tire, error) {
	rows, err := s.db.Query(ctx, tireSelect+`
WHERE ($1 = '' OR t.status = $1)
  AND ($2::bigint IS NULL OR t.vehicle_id = $2)
ORDER BY t.id ASC
`, f.Status, f.VehicleID)
	if err != nil {
		return nil, errors.Wrap(err, "select tires")
	}
	defer rows.Close()

	out := make([]*models.Tire, 0)
	for rows.Next() {
		t, err := scanTire(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan tire")
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}

	if err := loadTireHistory(ctx, s.db, out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateTire overwrites descriptive fields. Status and mounting are not touched here.
func (s *Storage) UpdateTire(ctx context.Context, t *models.Tire) (*models.Tire, error) {
	tag, err := s.db.Exec(ctx, `
UPDATE tires SET serial_number = $2, brand = $3, size = $4, notes = $5, updated_at = now()
WHERE id = $1
`, t.ID, t.SerialNumber, t.Brand, t.Size, t.Notes)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return nil, errors.Wrapf(models.ErrConflict, "serial number %q already registered", t.SerialNumber)
		}
		return nil, errors.Wrap(err, "update tire")
	}
	if tag.RowsAffected() == 0 {
		return nil, models.NotFound("tire", t.ID)
	}
	return getTire(ctx, s.db, t.ID)
}

func (s *Storage) DeleteTire(ctx context.Context, id uint64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM tires WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "delete tire")
	}
	if tag.RowsAffected() == 0 {
		return models.NotFound("tire", id)
	}
	return nil
}

// ApplyTireChange writes the prospective tire state and its history entry if
// the stored status still equals ExpectedStatus.
func (s *Storage) ApplyTireChange(ctx context.Context, c models.TireChange) (*models.Tire, error) {
	t := c.Tire
	var out *models.Tire
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx, `SELECT status FROM tires WHERE id = $1 FOR UPDATE`, t.ID).Scan(&status)
		if err != nil {
			return notFoundIfNoRows(err, "tire", t.ID, "lock tire")
		}
		if status != c.ExpectedStatus {
			return errors.Wrapf(models.ErrConflict, "tire %d changed status to %q", t.ID, status)
		}

		_, err = tx.Exec(ctx, `
UPDATE tires SET
  status = $2, tread_depth = $3, position = $4, vehicle_id = $5,
  mileage_at_install = $6, updated_at = now()
WHERE id = $1
`, t.ID, t.Status, t.TreadDepth, t.Position, t.AssignedToID, t.MileageAtInstall)
		if err != nil {
			if pgCode(err) == pgForeignKeyViolation && t.AssignedToID != nil {
				return models.NotFound("vehicle", *t.AssignedToID)
			}
			return errors.Wrap(err, "update tire state")
		}
		if err := insertTireHistory(ctx, tx, t.ID, c.Entry); err != nil {
			return err
		}

		out, err = getTire(ctx, tx, t.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func loadTireHistory(ctx context.Context, q querier, ts []*models.Tire) error {
	if len(ts) == 0 {
		return nil
	}
	byID := make(map[uint64]*models.Tire, len(ts))
	ids := make([]uint64, 0, len(ts))
	for _, t := range ts {
		t.History = []models.TireHistoryEntry{}
		byID[t.ID] = t
		ids = append(ids, t.ID)
	}

	rows, err := q.Query(ctx, `
SELECT tire_id, action, note, tread_depth, mileage, recorded_at
FROM tire_history
WHERE tire_id = ANY($1)
ORDER BY tire_id, id
`, ids)
	if err != nil {
		return errors.Wrap(err, "select tire history")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			tid uint64
			h   models.TireHistoryEntry
		)
		if err := rows.Scan(&tid, &h.Action, &h.Note, &h.TreadDepth, &h.Mileage, &h.Date); err != nil {
			return errors.Wrap(err, "scan tire history")
		}
		if t, ok := byID[tid]; ok {
			t.History = append(t.History, h)
		}
	}
	return errors.Wrap(rows.Err(), "rows")
}

func insertTireHistory(ctx context.Context, q querier, tireID uint64, h models.TireHistoryEntry) error {
	_, err := q.Exec(ctx, `
INSERT INTO tire_history (tire_id, action, note, tread_depth, mileage, recorded_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, tireID, h.Action, h.Note, h.TreadDepth, h.Mileage, h.Date.UTC())
	return errors.Wrap(err, "insert tire history")
}
