package pgfleet

import (
	"context"
	"time"

	"github.com/BearBump/FleetTrack/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const journeySelect = `
SELECT
  j.id, j.driver_id, j.truck_id, j.trailer_id,
  j.origin, j.destination, j.status,
  j.start_date, j.end_date,
  j.mileage_start, j.mileage_end, j.fuel_volume,
  j.tire_status, j.remarks, j.version,
  j.created_at, j.updated_at,
  u.name, u.email, u.role,
  t.license_plate, t.model,
  tr.license_plate, tr.model
FROM journeys j
JOIN users u ON u.id = j.driver_id
JOIN vehicles t ON t.id = j.truck_id
LEFT JOIN vehicles tr ON tr.id = j.trailer_id
`

func scanJourney(row pgx.Row) (*models.Journey, error) {
	var (
		j                      models.Journey
		driver                 models.UserRef
		truck                  models.VehicleRef
		trailerPlate, trailerM *string
	)
	err := row.Scan(
		&j.ID, &j.DriverID, &j.TruckID, &j.TrailerID,
		&j.Origin, &j.Destination, &j.Status,
		&j.StartDate, &j.EndDate,
		&j.MileageStart, &j.MileageEnd, &j.FuelVolume,
		&j.TireStatus, &j.Remarks, &j.Version,
		&j.CreatedAt, &j.UpdatedAt,
		&driver.Name, &driver.Email, &driver.Role,
		&truck.LicensePlate, &truck.Model,
		&trailerPlate, &trailerM,
	)
	if err != nil {
		return nil, err
	}
	driver.ID = j.DriverID
	truck.ID = j.TruckID
	j.Driver = &driver
	j.Truck = &truck
	if j.TrailerID != nil && trailerPlate != nil {
		j.Trailer = &models.VehicleRef{ID: *j.TrailerID, LicensePlate: *trailerPlate, Model: deref(trailerM)}
	}
	return &j, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// CreateJourney сохраняет рейс с первой записью журнала и переводит грузовик в assigned
// (in_use сохраняется) в одной транзакции.
func (s *Storage) CreateJourney(ctx context.Context, j *models.Journey) (*models.Journey, error) {
	var out *models.Journey
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		truckStatus, err := lockTruck(ctx, tx, j.TruckID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		var id uint64
		err = tx.QueryRow(ctx, `
INSERT INTO journeys (
  driver_id, truck_id, trailer_id, origin, destination, status,
  tire_status, remarks, version, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,1,$9,$9)
RETURNING id
`, j.DriverID, j.TruckID, j.TrailerID, j.Origin, j.Destination, j.Status,
			j.TireStatus, j.Remarks, now).Scan(&id)
		if err != nil {
			if pgCode(err) == pgForeignKeyViolation {
				return errors.Wrap(models.ErrNotFound, "journey reference")
			}
			return errors.Wrap(err, "insert journey")
		}

		for _, l := range j.Logs {
			if err := insertLog(ctx, tx, id, l); err != nil {
				return err
			}
		}

		if err := setVehicleStatus(ctx, tx, j.TruckID, models.TruckStatusOnAssign(truckStatus)); err != nil {
			return err
		}

		out, err = getJourney(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Storage) GetJourney(ctx context.Context, id uint64) (*models.Journey, error) {
	return getJourney(ctx, s.db, id)
}

func getJourney(ctx context.Context, q querier, id uint64) (*models.Journey, error) {
	j, err := scanJourney(q.QueryRow(ctx, journeySelect+`WHERE j.id = $1`, id))
	if err != nil {
		return nil, notFoundIfNoRows(err, "journey", id, "select journey")
	}
	if err := loadLogs(ctx, q, []*models.Journey{j}); err != nil {
		return nil, err
	}
	return j, nil
}

// ListJourneys returns journeys matching the filter, newest first.
func (s *Storage) ListJourneys(ctx context.Context, f models.JourneyFilter) ([]*models.Journey, error) {
	rows, err := s.db.Query(ctx, journeySelect+`
WHERE ($1::bigint IS NULL OR j.driver_id = $1)
  AND ($2::bigint IS NULL OR j.truck_id = $2)
  AND ($3 = '' OR j.status = $3)
ORDER BY j.created_at DESC, j.id DESC
`, f.DriverID, f.TruckID, f.Status)
	if err != nil {
		return nil, errors.Wrap(err, "select journeys")
	}
	defer rows.Close()

	out := make([]*models.Journey, 0)
	for rows.Next() {
		j, err := scanJourney(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan journey")
		}
		out = append(out, j)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}

	if err := loadLogs(ctx, s.db, out); err != nil {
		return nil, err
	}
	return out, nil
}

func loadLogs(ctx context.Context, q querier, js []*models.Journey) error {
	if len(js) == 0 {
		return nil
	}
	byID := make(map[uint64]*models.Journey, len(js))
	ids := make([]uint64, 0, len(js))
	for _, j := range js {
		j.Logs = []models.JourneyLog{}
		byID[j.ID] = j
		ids = append(ids, j.ID)
	}

	rows, err := q.Query(ctx, `
SELECT journey_id, status, note, logged_at
FROM journey_logs
WHERE journey_id = ANY($1)
ORDER BY journey_id, id
`, ids)
	if err != nil {
		return errors.Wrap(err, "select journey logs")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			jid uint64
			l   models.JourneyLog
		)
		if err := rows.Scan(&jid, &l.Status, &l.Note, &l.Timestamp); err != nil {
			return errors.Wrap(err, "scan journey log")
		}
		if j, ok := byID[jid]; ok {
			j.Logs = append(j.Logs, l)
		}
	}
	return errors.Wrap(rows.Err(), "rows")
}

func insertLog(ctx context.Context, q querier, journeyID uint64, l models.JourneyLog) error {
	_, err := q.Exec(ctx, `
INSERT INTO journey_logs (journey_id, status, note, logged_at)
VALUES ($1,$2,$3,$4)
`, journeyID, l.Status, l.Note, l.Timestamp.UTC())
	return errors.Wrap(err, "insert journey log")
}

// lockTruck берёт блокировку строки грузовика; все изменения рейсов одного
// грузовика проходят через неё последовательно.
func lockTruck(ctx context.Context, tx pgx.Tx, truckID uint64) (string, error) {
	var kind, status string
	err := tx.QueryRow(ctx, `SELECT kind, status FROM vehicles WHERE id = $1 FOR UPDATE`, truckID).Scan(&kind, &status)
	if err != nil {
		return "", notFoundIfNoRows(err, "truck", truckID, "lock truck")
	}
	if kind != models.VehicleKindTruck {
		return "", models.NotFound("truck", truckID)
	}
	return status, nil
}

// ApplyJourneyUpdate writes the prospective journey state if the stored
// version still matches, together with the log entry and the truck status.
func (s *Storage) ApplyJourneyUpdate(ctx context.Context, upd models.JourneyUpdate) (*models.Journey, error) {
	j := upd.Journey
	var out *models.Journey
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var truckID uint64
		if err := tx.QueryRow(ctx, `SELECT truck_id FROM journeys WHERE id = $1`, j.ID).Scan(&truckID); err != nil {
			return notFoundIfNoRows(err, "journey", j.ID, "select journey truck")
		}
		// порядок блокировок: грузовик, затем рейс
		if _, err := lockTruck(ctx, tx, truckID); err != nil {
			return err
		}

		var (
			storedStatus  string
			storedVersion int64
		)
		err := tx.QueryRow(ctx, `SELECT status, version FROM journeys WHERE id = $1 FOR UPDATE`, j.ID).
			Scan(&storedStatus, &storedVersion)
		if err != nil {
			return notFoundIfNoRows(err, "journey", j.ID, "lock journey")
		}
		if storedVersion != upd.ExpectedVersion {
			return errors.Wrapf(models.ErrConflict, "journey %d version %d, expected %d", j.ID, storedVersion, upd.ExpectedVersion)
		}

		statusChanged := storedStatus != j.Status
		if statusChanged && j.Status == models.JourneyStatusInProgress {
			busy, err := hasJourneyOnTruck(ctx, tx, truckID, j.ID, models.JourneyStatusInProgress)
			if err != nil {
				return err
			}
			if busy {
				return &models.TruckUnavailableError{TruckID: truckID}
			}
		}

		tag, err := tx.Exec(ctx, `
UPDATE journeys SET
  status = $3, start_date = $4, end_date = $5,
  mileage_start = $6, mileage_end = $7, fuel_volume = $8,
  tire_status = $9, remarks = $10,
  version = version + 1, updated_at = now()
WHERE id = $1 AND version = $2
`, j.ID, upd.ExpectedVersion, j.Status, j.StartDate, j.EndDate,
			j.MileageStart, j.MileageEnd, j.FuelVolume, j.TireStatus, j.Remarks)
		if err != nil {
			if pgCode(err) == pgUniqueViolation {
				return &models.TruckUnavailableError{TruckID: truckID}
			}
			return errors.Wrap(err, "update journey")
		}
		if tag.RowsAffected() == 0 {
			return errors.Wrapf(models.ErrConflict, "journey %d changed concurrently", j.ID)
		}

		if upd.Log != nil {
			if err := insertLog(ctx, tx, j.ID, *upd.Log); err != nil {
				return err
			}
		}

		if statusChanged {
			if err := setVehicleStatus(ctx, tx, truckID, models.TruckStatusFor(j.Status)); err != nil {
				return err
			}
		}

		out, err = getJourney(ctx, tx, j.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteJourney удаляет рейс (журнал каскадом) и освобождает грузовик, если
// на нём не осталось активных рейсов.
func (s *Storage) DeleteJourney(ctx context.Context, id uint64) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		var truckID uint64
		if err := tx.QueryRow(ctx, `SELECT truck_id FROM journeys WHERE id = $1`, id).Scan(&truckID); err != nil {
			return notFoundIfNoRows(err, "journey", id, "select journey truck")
		}
		if _, err := lockTruck(ctx, tx, truckID); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `DELETE FROM journeys WHERE id = $1`, id)
		if err != nil {
			return errors.Wrap(err, "delete journey")
		}
		if tag.RowsAffected() == 0 {
			return models.NotFound("journey", id)
		}

		others, err := hasJourneyOnTruck(ctx, tx, truckID, id,
			models.JourneyStatusToDo, models.JourneyStatusInProgress)
		if err != nil {
			return err
		}
		if !others {
			return setVehicleStatus(ctx, tx, truckID, models.VehicleStatusAvailable)
		}
		return nil
	})
}
