// Package memfleet is an in-memory fleet store with the same atomicity
// guarantees as pgfleet: every operation runs under one mutex, so the
// truck-scoped check-and-write of a journey update is serialised.
package memfleet

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BearBump/FleetTrack/internal/models"
	"github.com/pkg/errors"
)

type journeyRow struct {
	j    *models.Journey
	logs []models.JourneyLog
}

type Storage struct {
	mu sync.Mutex

	now func() time.Time

	nextID   uint64
	users    map[uint64]*models.User
	vehicles map[uint64]*models.Vehicle
	journeys map[uint64]*journeyRow
	rules    map[uint64]*models.MaintenanceRule
	tires    map[uint64]*models.Tire
}

func New() *Storage {
	return &Storage{
		now:      func() time.Time { return time.Now().UTC() },
		users:    make(map[uint64]*models.User),
		vehicles: make(map[uint64]*models.Vehicle),
		journeys: make(map[uint64]*journeyRow),
		rules:    make(map[uint64]*models.MaintenanceRule),
		tires:    make(map[uint64]*models.Tire),
	}
}

func (s *Storage) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Storage) Close() {}

func (s *Storage) id() uint64 {
	s.nextID++
	return s.nextID
}

// ---- users

func (s *Storage) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ex := range s.users {
		if strings.EqualFold(ex.Email, u.Email) {
			return nil, errors.Wrapf(models.ErrConflict, "email %q already registered", u.Email)
		}
	}
	c := *u
	c.ID = s.id()
	c.CreatedAt = s.now()
	c.UpdatedAt = c.CreatedAt
	s.users[c.ID] = &c
	out := c
	return &out, nil
}

func (s *Storage) GetUser(ctx context.Context, id uint64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, models.NotFound("user", id)
	}
	out := *u
	return &out, nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			out := *u
			return &out, nil
		}
	}
	return nil, errors.Wrapf(models.ErrNotFound, "user %q", email)
}

func (s *Storage) ListUsers(ctx context.Context, role string) ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		if role != "" && u.Role != role {
			continue
		}
		c := *u
		out = append(out, &c)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

// ---- vehicles

func cloneVehicle(v *models.Vehicle) *models.Vehicle {
	c := *v
	if v.FuelLevel != nil {
		f := *v.FuelLevel
		c.FuelLevel = &f
	}
	if v.MaintenanceDueDate != nil {
		d := *v.MaintenanceDueDate
		c.MaintenanceDueDate = &d
	}
	if v.LastServiceDate != nil {
		d := *v.LastServiceDate
		c.LastServiceDate = &d
	}
	return &c
}

func (s *Storage) plateTaken(plate string, except uint64) bool {
	for _, v := range s.vehicles {
		if v.ID != except && v.LicensePlate == plate {
			return true
		}
	}
	return false
}

func (s *Storage) CreateVehicle(ctx context.Context, v *models.Vehicle) (*models.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.plateTaken(v.LicensePlate, 0) {
		return nil, errors.Wrapf(models.ErrConflict, "license plate %q already registered", v.LicensePlate)
	}
	c := cloneVehicle(v)
	c.ID = s.id()
	c.CreatedAt = s.now()
	c.UpdatedAt = c.CreatedAt
	s.vehicles[c.ID] = c
	return cloneVehicle(c), nil
}

func (s *Storage) GetVehicle(ctx context.Context, id uint64) (*models.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vehicles[id]
	if !ok {
		return nil, models.NotFound("vehicle", id)
	}
	return cloneVehicle(v), nil
}

func (s *Storage) ListVehicles(ctx context.Context, kind string) ([]*models.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Vehicle, 0, len(s.vehicles))
	for _, v := range s.vehicles {
		if kind != "" && v.Kind != kind {
			continue
		}
		out = append(out, cloneVehicle(v))
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

func (s *Storage) UpdateVehicle(ctx context.Context, v *models.Vehicle) (*models.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.vehicles[v.ID]
	if !ok {
		return nil, models.NotFound("vehicle", v.ID)
	}
	if s.plateTaken(v.LicensePlate, v.ID) {
		return nil, errors.Wrapf(models.ErrConflict, "license plate %q already registered", v.LicensePlate)
	}
	c := cloneVehicle(v)
	c.Kind = cur.Kind
	c.Status = cur.Status
	c.CreatedAt = cur.CreatedAt
	c.UpdatedAt = s.now()
	s.vehicles[v.ID] = c
	return cloneVehicle(c), nil
}

func (s *Storage) PatchVehicle(ctx context.Context, id uint64, p models.VehiclePatch) (*models.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.vehicles[id]
	if !ok {
		return nil, models.NotFound("vehicle", id)
	}
	v := cloneVehicle(cur)
	if p.Status != nil && *p.Status != v.Status {
		if s.hasJourneyOnTruck(id, 0, models.JourneyStatusInProgress) {
			return nil, &models.TruckUnavailableError{TruckID: id}
		}
		v.Status = *p.Status
	}
	if p.Mileage != nil {
		v.Mileage = *p.Mileage
	}
	if p.FuelLevel != nil {
		f := *p.FuelLevel
		v.FuelLevel = &f
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
	v.UpdatedAt = s.now()
	s.vehicles[id] = v
	return cloneVehicle(v), nil
}

func (s *Storage) DeleteVehicle(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vehicles[id]; !ok {
		return models.NotFound("vehicle", id)
	}
	for _, r := range s.journeys {
		if r.j.TruckID == id || (r.j.TrailerID != nil && *r.j.TrailerID == id) {
			return errors.Wrapf(models.ErrConflict, "vehicle %d is referenced by journeys", id)
		}
	}
	for _, t := range s.tires {
		if t.AssignedToID != nil && *t.AssignedToID == id {
			return errors.Wrapf(models.ErrConflict, "vehicle %d has mounted tires", id)
		}
	}
	delete(s.vehicles, id)
	return nil
}

func (s *Storage) SetVehicleStatus(ctx context.Context, id uint64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setVehicleStatus(id, status)
}

func (s *Storage) HasActiveJourney(ctx context.Context, truckID, excludingJourneyID uint64, statuses ...string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasJourneyOnTruck(truckID, excludingJourneyID, statuses...), nil
}

func (s *Storage) RecordOdometer(ctx context.Context, id uint64, mileage float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vehicles[id]
	if !ok || v.Mileage >= mileage {
		return false, nil
	}
	v.Mileage = mileage
	v.UpdatedAt = s.now()
	return true, nil
}

// setVehicleStatus is the only place that writes Vehicle.Status.
func (s *Storage) setVehicleStatus(id uint64, status string) error {
	v, ok := s.vehicles[id]
	if !ok {
		return models.NotFound("vehicle", id)
	}
	v.Status = status
	v.UpdatedAt = s.now()
	return nil
}

func (s *Storage) hasJourneyOnTruck(truckID, excludingJourneyID uint64, statuses ...string) bool {
	if len(statuses) == 0 {
		statuses = []string{models.JourneyStatusInProgress}
	}
	for id, r := range s.journeys {
		if id == excludingJourneyID || r.j.TruckID != truckID {
			continue
		}
		for _, st := range statuses {
			if r.j.Status == st {
				return true
			}
		}
	}
	return false
}

// ---- journeys

func (s *Storage) resolve(r *journeyRow) *models.Journey {
	j := r.j.Clone()
	j.Logs = append([]models.JourneyLog{}, r.logs...)
	if u, ok := s.users[j.DriverID]; ok {
		j.Driver = u.Ref()
	}
	if v, ok := s.vehicles[j.TruckID]; ok {
		j.Truck = &models.VehicleRef{ID: v.ID, LicensePlate: v.LicensePlate, Model: v.Model}
	}
	if j.TrailerID != nil {
		if v, ok := s.vehicles[*j.TrailerID]; ok {
			j.Trailer = &models.VehicleRef{ID: v.ID, LicensePlate: v.LicensePlate, Model: v.Model}
		}
	}
	return j
}

func (s *Storage) truck(id uint64) (*models.Vehicle, error) {
	v, ok := s.vehicles[id]
	if !ok || v.Kind != models.VehicleKindTruck {
		return nil, models.NotFound("truck", id)
	}
	return v, nil
}

func (s *Storage) CreateJourney(ctx context.Context, j *models.Journey) (*models.Journey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.truck(j.TruckID)
	if err != nil {
		return nil, err
	}
	if _, ok := s.users[j.DriverID]; !ok {
		return nil, errors.Wrap(models.ErrNotFound, "journey reference")
	}
	if j.TrailerID != nil {
		if _, ok := s.vehicles[*j.TrailerID]; !ok {
			return nil, errors.Wrap(models.ErrNotFound, "journey reference")
		}
	}

	c := j.Clone()
	c.ID = s.id()
	c.Version = 1
	c.CreatedAt = s.now()
	c.UpdatedAt = c.CreatedAt
	c.Driver, c.Truck, c.Trailer = nil, nil, nil
	logs := c.Logs
	c.Logs = nil
	s.journeys[c.ID] = &journeyRow{j: c, logs: logs}

	if err := s.setVehicleStatus(t.ID, models.TruckStatusOnAssign(t.Status)); err != nil {
		return nil, err
	}
	return s.resolve(s.journeys[c.ID]), nil
}

func (s *Storage) GetJourney(ctx context.Context, id uint64) (*models.Journey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.journeys[id]
	if !ok {
		return nil, models.NotFound("journey", id)
	}
	return s.resolve(r), nil
}

func (s *Storage) ListJourneys(ctx context.Context, f models.JourneyFilter) ([]*models.Journey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Journey, 0, len(s.journeys))
	for _, r := range s.journeys {
		if f.DriverID != nil && r.j.DriverID != *f.DriverID {
			continue
		}
		if f.TruckID != nil && r.j.TruckID != *f.TruckID {
			continue
		}
		if f.Status != "" && r.j.Status != f.Status {
			continue
		}
		out = append(out, s.resolve(r))
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].CreatedAt.After(out[k].CreatedAt)
		}
		return out[i].ID > out[k].ID
	})
	return out, nil
}

func (s *Storage) ApplyJourneyUpdate(ctx context.Context, upd models.JourneyUpdate) (*models.Journey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j := upd.Journey
	r, ok := s.journeys[j.ID]
	if !ok {
		return nil, models.NotFound("journey", j.ID)
	}
	if r.j.Version != upd.ExpectedVersion {
		return nil, errors.Wrapf(models.ErrConflict, "journey %d version %d, expected %d", j.ID, r.j.Version, upd.ExpectedVersion)
	}
	truckID := r.j.TruckID
	statusChanged := r.j.Status != j.Status
	if statusChanged && j.Status == models.JourneyStatusInProgress &&
		s.hasJourneyOnTruck(truckID, j.ID, models.JourneyStatusInProgress) {
		return nil, &models.TruckUnavailableError{TruckID: truckID}
	}

	next := r.j.Clone()
	next.Status = j.Status
	next.StartDate = cloneTime(j.StartDate)
	next.EndDate = cloneTime(j.EndDate)
	next.MileageStart = cloneFloat(j.MileageStart)
	next.MileageEnd = cloneFloat(j.MileageEnd)
	next.FuelVolume = cloneFloat(j.FuelVolume)
	next.TireStatus = j.TireStatus
	next.Remarks = j.Remarks
	next.Version++
	next.UpdatedAt = s.now()

	if statusChanged {
		if err := s.setVehicleStatus(truckID, models.TruckStatusFor(j.Status)); err != nil {
			return nil, err
		}
	}

	r.j = next
	if upd.Log != nil {
		l := *upd.Log
		l.Timestamp = l.Timestamp.UTC()
		r.logs = append(r.logs, l)
	}
	return s.resolve(r), nil
}

func (s *Storage) DeleteJourney(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.journeys[id]
	if !ok {
		return models.NotFound("journey", id)
	}
	delete(s.journeys, id)
	if !s.hasJourneyOnTruck(r.j.TruckID, id, models.JourneyStatusToDo, models.JourneyStatusInProgress) {
		return s.setVehicleStatus(r.j.TruckID, models.VehicleStatusAvailable)
	}
	return nil
}

// ---- tires

func cloneTire(t *models.Tire) *models.Tire {
	c := *t
	c.TreadDepth = cloneFloat(t.TreadDepth)
	c.MileageAtInstall = cloneFloat(t.MileageAtInstall)
	if t.AssignedToID != nil {
		id := *t.AssignedToID
		c.AssignedToID = &id
	}
	c.History = make([]models.TireHistoryEntry, len(t.History))
	for i, h := range t.History {
		h.TreadDepth = cloneFloat(h.TreadDepth)
		h.Mileage = cloneFloat(h.Mileage)
		c.History[i] = h
	}
	return &c
}

func (s *Storage) serialTaken(serial string, except uint64) bool {
	for _, t := range s.tires {
		if t.ID != except && t.SerialNumber == serial {
			return true
		}
	}
	return false
}

func (s *Storage) CreateTire(ctx context.Context, t *models.Tire) (*models.Tire, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.serialTaken(t.SerialNumber, 0) {
		return nil, errors.Wrapf(models.ErrConflict, "serial number %q already registered", t.SerialNumber)
	}
	c := cloneTire(t)
	c.ID = s.id()
	c.CreatedAt = s.now()
	c.UpdatedAt = c.CreatedAt
	s.tires[c.ID] = c
	return cloneTire(c), nil
}

func (s *Storage) GetTire(ctx context.Context, id uint64) (*models.Tire, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tires[id]
	if !ok {
		return nil, models.NotFound("tire", id)
	}
	return cloneTire(t), nil
}

func (s *Storage) ListTires(ctx context.Context, f models.TireFilter) ([]*models.Tire, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Tire, 0, len(s.tires))
	for _, t := range s.tires {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.VehicleID != nil && (t.AssignedToID == nil || *t.AssignedToID != *f.VehicleID) {
			continue
		}
		out = append(out, cloneTire(t))
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

func (s *Storage) UpdateTire(ctx context.Context, t *models.Tire) (*models.Tire, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.tires[t.ID]
	if !ok {
		return nil, models.NotFound("tire", t.ID)
	}
	if s.serialTaken(t.SerialNumber, t.ID) {
		return nil, errors.Wrapf(models.ErrConflict, "serial number %q already registered", t.SerialNumber)
	}
	cur.SerialNumber = t.SerialNumber
	cur.Brand = t.Brand
	cur.Size = t.Size
	cur.Notes = t.Notes
	cur.UpdatedAt = s.now()
	return cloneTire(cur), nil
}

func (s *Storage) DeleteTire(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tires[id]; !ok {
		return models.NotFound("tire", id)
	}
	delete(s.tires, id)
	return nil
}

// ApplyTireChange пишет новое состояние шины, только если статус в хранилище
// не изменился с момента чтения.
func (s *Storage) ApplyTireChange(ctx context.Context, c models.TireChange) (*models.Tire, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := c.Tire
	cur, ok := s.tires[t.ID]
	if !ok {
		return nil, models.NotFound("tire", t.ID)
	}
	if cur.Status != c.ExpectedStatus {
		return nil, errors.Wrapf(models.ErrConflict, "tire %d changed status to %q", t.ID, cur.Status)
	}
	if t.AssignedToID != nil {
		if _, ok := s.vehicles[*t.AssignedToID]; !ok {
			return nil, models.NotFound("vehicle", *t.AssignedToID)
		}
	}

	next := cloneTire(cur)
	next.Status = t.Status
	next.TreadDepth = cloneFloat(t.TreadDepth)
	next.Position = t.Position
	next.AssignedToType = t.AssignedToType
	next.AssignedToID = nil
	if t.AssignedToID != nil {
		id := *t.AssignedToID
		next.AssignedToID = &id
	}
	next.MileageAtInstall = cloneFloat(t.MileageAtInstall)
	entry := c.Entry
	entry.TreadDepth = cloneFloat(entry.TreadDepth)
	entry.Mileage = cloneFloat(entry.Mileage)
	next.History = append(next.History, entry)
	next.UpdatedAt = s.now()
	s.tires[t.ID] = next
	return cloneTire(next), nil
}

// ---- maintenance rules

func cloneRule(r *models.MaintenanceRule) *models.MaintenanceRule {
	c := *r
	c.ThresholdKm = cloneFloat(r.ThresholdKm)
	if r.ThresholdDays != nil {
		d := *r.ThresholdDays
		c.ThresholdDays = &d
	}
	return &c
}

func (s *Storage) CreateRule(ctx context.Context, r *models.MaintenanceRule) (*models.MaintenanceRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := cloneRule(r)
	c.ID = s.id()
	c.CreatedAt = s.now()
	c.UpdatedAt = c.CreatedAt
	s.rules[c.ID] = c
	return cloneRule(c), nil
}

func (s *Storage) GetRule(ctx context.Context, id uint64) (*models.MaintenanceRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rules[id]
	if !ok {
		return nil, models.NotFound("maintenance rule", id)
	}
	return cloneRule(r), nil
}

func (s *Storage) ListRules(ctx context.Context) ([]*models.MaintenanceRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.MaintenanceRule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, cloneRule(r))
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

func (s *Storage) UpdateRule(ctx context.Context, r *models.MaintenanceRule) (*models.MaintenanceRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.rules[r.ID]
	if !ok {
		return nil, models.NotFound("maintenance rule", r.ID)
	}
	c := cloneRule(r)
	c.CreatedAt = cur.CreatedAt
	c.UpdatedAt = s.now()
	s.rules[r.ID] = c
	return cloneRule(c), nil
}

func (s *Storage) DeleteRule(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[id]; !ok {
		return models.NotFound("maintenance rule", id)
	}
	delete(s.rules, id)
	return nil
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
