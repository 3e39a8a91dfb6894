package pgfleet

import (
	"context"
	"time"

	"github.com/BearBump/FleetTrack/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const vehicleColumns = `
  id, kind, license_plate, model, capacity, status,
  mileage, fuel_level, tire_status,
  maintenance_due_date, last_service_date, last_service_mileage,
  notes, created_at, updated_at`

func scanVehicle(row pgx.Row) (*models.Vehicle, error) {
	var v models.Vehicle
	err := row.Scan(
		&v.ID, &v.Kind, &v.LicensePlate, &v.Model, &v.Capacity, &v.Status,
		&v.Mileage, &v.FuelLevel, &v.TireStatus,
		&v.MaintenanceDueDate, &v.LastServiceDate, &v.LastServiceMileage,
		&v.Notes, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Storage) CreateVehicle(ctx context.Context, v *models.Vehicle) (*models.Vehicle, error) {
	now := time.Now().UTC()
	row := s.db.QueryRow(ctx, `
INSERT INTO vehicles (
  kind, license_plate, model, capacity, status,
  mileage, fuel_level, tire_status,
  maintenance_due_date, last_service_date, last_service_mileage,
  notes, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$13)
RETURNING`+vehicleColumns,
		v.Kind, v.LicensePlate, v.Model, v.Capacity, v.Status,
		v.Mileage, v.FuelLevel, v.TireStatus,
		v.MaintenanceDueDate, v.LastServiceDate, v.LastServiceMileage,
		v.Notes, now)
	out, err := scanVehicle(row)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return nil, errors.Wrapf(models.ErrConflict, "license plate %q already registered", v.LicensePlate)
		}
		return nil, errors.Wrap(err, "insert vehicle")
	}
	return out, nil
}

func (s *Storage) GetVehicle(ctx context.Context, id uint64) (*models.Vehicle, error) {
	v, err := scanVehicle(s.db.QueryRow(ctx, `SELECT`+vehicleColumns+` FROM vehicles WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundIfNoRows(err, "vehicle", id, "select vehicle")
	}
	return v, nil
}

// ListVehicles returns all vehicles of the given kind; empty kind means every kind.
func (s *Storage) ListVehicles(ctx context.Context, kind string) ([]*models.Vehicle, error) {
	rows, err := s.db.Query(ctx, `
SELECT`+vehicleColumns+`
FROM vehicles
WHERE ($1 = '' OR kind = $1)
ORDER BY id ASC
`, kind)
	if err != nil {
		return nil, errors.Wrap(err, "select vehicles")
	}
	defer rows.Close()

	out := make([]*models.Vehicle, 0)
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan vehicle")
		}
		out = append(out, v)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// UpdateVehicle overwrites descriptive fields. Status is not touched here.
func (s *Storage) UpdateVehicle(ctx context.Context, v *models.Vehicle) (*models.Vehicle, error) {
	row := s.db.QueryRow(ctx, `
UPDATE vehicles SET
  license_plate = $2, model = $3, capacity = $4,
  mileage = $5, fuel_level = $6, tire_status = $7,
  maintenance_due_date = $8, last_service_date = $9, last_service_mileage = $10,
  notes = $11, updated_at = now()
WHERE id = $1
RETURNING`+vehicleColumns,
		v.ID, v.LicensePlate, v.Model, v.Capacity,
		v.Mileage, v.FuelLevel, v.TireStatus,
		v.MaintenanceDueDate, v.LastServiceDate, v.LastServiceMileage,
		v.Notes)
	out, err := scanVehicle(row)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return nil, errors.Wrapf(models.ErrConflict, "license plate %q already registered", v.LicensePlate)
		}
		return nil, notFoundIfNoRows(err, "vehicle", v.ID, "update vehicle")
	}
	return out, nil
}

// PatchVehicle применяет tracking-поля. Ручная смена статуса запрещена, пока
// у машины есть рейс in_progress.
func (s *Storage) PatchVehicle(ctx context.Context, id uint64, p models.VehiclePatch) (*models.Vehicle, error) {
	var out *models.Vehicle
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		v, err := scanVehicle(tx.QueryRow(ctx, `SELECT`+vehicleColumns+` FROM vehicles WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return notFoundIfNoRows(err, "vehicle", id, "lock vehicle")
		}

		if p.Status != nil && *p.Status != v.Status {
			busy, err := hasJourneyOnTruck(ctx, tx, id, 0, models.JourneyStatusInProgress)
			if err != nil {
				return err
			}
			if busy {
				return &models.TruckUnavailableError{TruckID: id}
			}
			if err := setVehicleStatus(ctx, tx, id, *p.Status); err != nil {
				return err
			}
		}

		applyVehiclePatch(v, p)
		_, err = tx.Exec(ctx, `
UPDATE vehicles SET
  mileage = $2, fuel_level = $3, tire_status = $4,
  maintenance_due_date = $5, last_service_date = $6, last_service_mileage = $7,
  notes = $8, updated_at = now()
WHERE id = $1
`, id, v.Mileage, v.FuelLevel, v.TireStatus,
			v.MaintenanceDueDate, v.LastServiceDate, v.LastServiceMileage, v.Notes)
		if err != nil {
			return errors.Wrap(err, "patch vehicle")
		}

		out, err = scanVehicle(tx.QueryRow(ctx, `SELECT`+vehicleColumns+` FROM vehicles WHERE id = $1`, id))
		return errors.Wrap(err, "reload vehicle")
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func applyVehiclePatch(v *models.Vehicle, p models.VehiclePatch) {
	if p.Mileage != nil {
		v.Mileage = *p.Mileage
	}
	if p.FuelLevel != nil {
		fl := *p.FuelLevel
		v.FuelLevel = &fl
	}
	if p.TireStatus != nil {
		v.TireStatus = *p.TireStatus
	}
	if p.MaintenanceDueDate != nil {
		d := *p.MaintenanceDueDate
		v.MaintenanceDueDate = &d
	}
	if p.LastServiceDate != nil {
		d := *p.LastServiceDate
		v.LastServiceDate = &d
	}
	if p.LastServiceMileage != nil {
		v.LastServiceMileage = *p.LastServiceMileage
	}
	if p.Notes != nil {
		v.Notes = *p.Notes
	}
}

func (s *Storage) DeleteVehicle(ctx context.Context, id uint64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM vehicles WHERE id = $1`, id)
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return errors.Wrapf(models.ErrConflict, "vehicle %d is referenced by journeys or tires", id)
		}
		return errors.Wrap(err, "delete vehicle")
	}
	if tag.RowsAffected() == 0 {
		return models.NotFound("vehicle", id)
	}
	return nil
}

func (s *Storage) SetVehicleStatus(ctx context.Context, id uint64, status string) error {
	return setVehicleStatus(ctx, s.db, id, status)
}

// HasActiveJourney reports whether a journey other than excludingJourneyID
// references the truck with one of the statuses.
func (s *Storage) HasActiveJourney(ctx context.Context, truckID, excludingJourneyID uint64, statuses ...string) (bool, error) {
	return hasJourneyOnTruck(ctx, s.db, truckID, excludingJourneyID, statuses...)
}

// RecordOdometer поднимает пробег, но никогда не уменьшает его.
func (s *Storage) RecordOdometer(ctx context.Context, id uint64, mileage float64) (bool, error) {
	tag, err := s.db.Exec(ctx, `
UPDATE vehicles SET mileage = $2, updated_at = now()
WHERE id = $1 AND mileage < $2
`, id, mileage)
	if err != nil {
		return false, errors.Wrap(err, "record odometer")
	}
	return tag.RowsAffected() > 0, nil
}

// setVehicleStatus is the only statement that writes vehicles.status.
func setVehicleStatus(ctx context.Context, q querier, id uint64, status string) error {
	tag, err := q.Exec(ctx, `UPDATE vehicles SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return errors.Wrap(err, "set vehicle status")
	}
	if tag.RowsAffected() == 0 {
		return models.NotFound("vehicle", id)
	}
	return nil
}

func hasJourneyOnTruck(ctx context.Context, q querier, truckID, excludingJourneyID uint64, statuses ...string) (bool, error) {
	if len(statuses) == 0 {
		statuses = []string{models.JourneyStatusInProgress}
	}
	var exists bool
	err := q.QueryRow(ctx, `
SELECT EXISTS (
  SELECT 1 FROM journeys
  WHERE truck_id = $1 AND id <> $2 AND status = ANY($3)
)`, truckID, excludingJourneyID, statuses).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "check truck journeys")
	}
	return exists, nil
}
