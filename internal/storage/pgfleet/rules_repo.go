package pgfleet

import (
	"context"
	"time"

	"github.com/BearBump/FleetTrack/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const ruleColumns = `
  id, name, type, applies_to, threshold_km, threshold_days, notes, created_at, updated_at`

func scanRule(row pgx.Row) (*models.MaintenanceRule, error) {
	var r models.MaintenanceRule
	err := row.Scan(&r.ID, &r.Name, &r.Type, &r.AppliesTo, &r.ThresholdKm, &r.ThresholdDays,
		&r.Notes, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Storage) CreateRule(ctx context.Context, r *models.MaintenanceRule) (*models.MaintenanceRule, error) {
	now := time.Now().UTC()
	out, err := scanRule(s.db.QueryRow(ctx, `
INSERT INTO maintenance_rules (name, type, applies_to, threshold_km, threshold_days, notes, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
RETURNING`+ruleColumns, r.Name, r.Type, r.AppliesTo, r.ThresholdKm, r.ThresholdDays, r.Notes, now))
	if err != nil {
		return nil, errors.Wrap(err, "insert rule")
	}
	return out, nil
}

func (s *Storage) GetRule(ctx context.Context, id uint64) (*models.MaintenanceRule, error) {
	r, err := scanRule(s.db.QueryRow(ctx, `SELECT`+ruleColumns+` FROM maintenance_rules WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundIfNoRows(err, "maintenance rule", id, "select rule")
	}
	return r, nil
}

func (s *Storage) ListRules(ctx context.Context) ([]*models.MaintenanceRule, error) {
	rows, err := s.db.Query(ctx, `SELECT`+ruleColumns+` FROM maintenance_rules ORDER BY id ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "select rules")
	}
	defer rows.Close()

	out := make([]*models.MaintenanceRule, 0)
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan rule")
		}
		out = append(out, r)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) UpdateRule(ctx context.Context, r *models.MaintenanceRule) (*models.MaintenanceRule, error) {
	out, err := scanRule(s.db.QueryRow(ctx, `
UPDATE maintenance_rules SET
  name = $2, type = $3, applies_to = $4, threshold_km = $5, threshold_days = $6,
  notes = $7, updated_at = now()
WHERE id = $1
RETURNING`+ruleColumns, r.ID, r.Name, r.Type, r.AppliesTo, r.ThresholdKm, r.ThresholdDays, r.Notes))
	if err != nil {
		return nil, notFoundIfNoRows(err, "maintenance rule", r.ID, "update rule")
	}
	return out, nil
}

func (s *Storage) DeleteRule(ctx context.Context, id uint64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM maintenance_rules WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "delete rule")
	}
	if tag.RowsAffected() == 0 {
		return models.NotFound("maintenance rule", id)
	}
	return nil
}
