package tires

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/BearBump/FleetTrack/internal/access"
	"github.com/BearBump/FleetTrack/internal/models"
)

type Repository interface {
	CreateTire(ctx context.Context, t *models.Tire) (*models.Tire, error)
	GetTire(ctx context.Context, id uint64) (*models.Tire, error)
	ListTires(ctx context.Context, f models.TireFilter) ([]*models.Tire, error)
	UpdateTire(ctx context.Context, t *models.Tire) (*models.Tire, error)
	DeleteTire(ctx context.Context, id uint64) error
	ApplyTireChange(ctx context.Context, c models.TireChange) (*models.Tire, error)
}

type VehicleFinder interface {
	FindByID(ctx context.Context, id uint64) (*models.Vehicle, error)
}

// Service ведёт склад шин. Все операции только для админа.
type Service struct {
	repo     Repository
	vehicles VehicleFinder
	now      func() time.Time
}

func New(repo Repository, vehicles VehicleFinder) *Service {
	return &Service{
		repo:     repo,
		vehicles: vehicles,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) List(ctx context.Context, actor models.Actor, f models.TireFilter) ([]*models.Tire, error) {
	if err := access.RequireAdmin(actor); err != nil {
		return nil, err
	}
	if f.Status != "" && !models.IsTireStatus(f.Status) {
		return nil, validation("status", "unknown tire status")
	}
	return s.repo.ListTires(ctx, f)
}

func (s *Service) Get(ctx context.Context, actor models.Actor, id uint64) (*models.Tire, error) {
	if err := access.RequireAdmin(actor); err != nil {
		return nil, err
	}
	return s.repo.GetTire(ctx, id)
}

// Create registers a tire in stock. Mounting goes through Assign.
func (s *Service) Create(ctx context.Context, actor models.Actor, t *models.Tire) (*models.Tire, error) {
	if err := access.RequireAdmin(actor); err != nil {
		return nil, err
	}
	t.SerialNumber = strings.TrimSpace(t.SerialNumber)
	if t.Status == "" {
		t.Status = models.TireStatusInStock
	}

	verr := validateTire(t)
	if t.Status == models.TireStatusMounted {
		verr.Add("status", "use assign to mount a tire")
	} else if !models.IsTireStatus(t.Status) {
		verr.Add("status", "unknown tire status")
	}
	if t.TreadDepth != nil && !nonNegative(*t.TreadDepth) {
		verr.Add("treadDepth", "must be a non-negative number")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	t.Position, t.AssignedToType, t.AssignedToID, t.MileageAtInstall = "", "", nil, nil
	t.History = []models.TireHistoryEntry{{
		Action:     models.TireActionCreated,
		TreadDepth: t.TreadDepth,
		Date:       s.now(),
	}}
	return s.repo.CreateTire(ctx, t)
}

// Update overwrites descriptive fields only; status, tread and mounting
// change through Assign, Unassign and RecordWear.
func (s *Service) Update(ctx context.Context, actor models.Actor, t *models.Tire) (*models.Tire, error) {
	if err := access.RequireAdmin(actor); err != nil {
		return nil, err
	}
	t.SerialNumber = strings.TrimSpace(t.SerialNumber)
	if err := validateTire(t).Err(); err != nil {
		return nil, err
	}
	return s.repo.UpdateTire(ctx, t)
}

func (s *Service) Delete(ctx context.Context, actor models.Actor, id uint64) error {
	if err := access.RequireAdmin(actor); err != nil {
		return err
	}
	return s.repo.DeleteTire(ctx, id)
}

// Assign mounts the tire on a vehicle. A mounted tire may be moved to another
// vehicle or position; a retired one may not.
func (s *Service) Assign(ctx context.Context, actor models.Actor, id uint64, m models.TireMount) (*models.Tire, error) {
	if err := access.RequireAdmin(actor); err != nil {
		return nil, err
	}
	m.Position = strings.TrimSpace(m.Position)

	verr := &models.ValidationError{}
	if m.VehicleType != models.VehicleKindTruck && m.VehicleType != models.VehicleKindTrailer {
		verr.Add("vehicleType", "must be truck or trailer")
	}
	if m.VehicleID == 0 {
		verr.Add("vehicleId", "is required")
	}
	if m.Position == "" {
		verr.Add("position", "is required")
	}
	if m.MileageAtInstall != nil && !nonNegative(*m.MileageAtInstall) {
		verr.Add("mileageAtInstall", "must be a non-negative number")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	t, err := s.repo.GetTire(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status == models.TireStatusRetired {
		return nil, validation("status", "retired tire cannot be mounted")
	}
	v, err := s.vehicles.FindByID(ctx, m.VehicleID)
	if err != nil {
		return nil, err
	}
	if v.Kind != m.VehicleType {
		return nil, models.NotFound(m.VehicleType, m.VehicleID)
	}

	expected := t.Status
	vid := v.ID
	t.Status = models.TireStatusMounted
	t.Position = m.Position
	t.AssignedToType = v.Kind
	t.AssignedToID = &vid
	t.MileageAtInstall = m.MileageAtInstall
	if t.MileageAtInstall == nil {
		mileage := v.Mileage
		t.MileageAtInstall = &mileage
	}
	return s.repo.ApplyTireChange(ctx, models.TireChange{
		Tire:           t,
		ExpectedStatus: expected,
		Entry: models.TireHistoryEntry{
			Action:  models.TireActionAssigned,
			Note:    m.Note,
			Mileage: t.MileageAtInstall,
			Date:    s.now(),
		},
	})
}

// Unassign returns a mounted tire to stock.
func (s *Service) Unassign(ctx context.Context, actor models.Actor, id uint64, note string) (*models.Tire, error) {
	if err := access.RequireAdmin(actor); err != nil {
		return nil, err
	}
	t, err := s.repo.GetTire(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != models.TireStatusMounted {
		return nil, validation("status", "tire is not mounted")
	}

	dismount(t)
	t.Status = models.TireStatusInStock
	return s.repo.ApplyTireChange(ctx, models.TireChange{
		Tire:           t,
		ExpectedStatus: models.TireStatusMounted,
		Entry:          models.TireHistoryEntry{Action: models.TireActionUnassigned, Note: note, Date: s.now()},
	})
}

// RecordWear stores a tread measurement. The only status change allowed here
// is retirement, which also dismounts the tire.
func (s *Service) RecordWear(ctx context.Context, actor models.Actor, id uint64, w models.TireWear) (*models.Tire, error) {
	if err := access.RequireAdmin(actor); err != nil {
		return nil, err
	}

	verr := &models.ValidationError{}
	if w.TreadDepth == nil && w.Status == "" {
		verr.Add("treadDepth", "is required")
	}
	if w.TreadDepth != nil && !nonNegative(*w.TreadDepth) {
		verr.Add("treadDepth", "must be a non-negative number")
	}
	if w.Mileage != nil && !nonNegative(*w.Mileage) {
		verr.Add("mileage", "must be a non-negative number")
	}
	if w.Status != "" && w.Status != models.TireStatusRetired {
		verr.Add("status", "only retired can be set here")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	t, err := s.repo.GetTire(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status == models.TireStatusRetired {
		return nil, validation("status", "tire is retired")
	}

	expected := t.Status
	action := models.TireActionWear
	if w.TreadDepth != nil {
		td := *w.TreadDepth
		t.TreadDepth = &td
	}
	if w.Status == models.TireStatusRetired {
		action = models.TireActionStatus
		dismount(t)
		t.Status = models.TireStatusRetired
	}
	return s.repo.ApplyTireChange(ctx, models.TireChange{
		Tire:           t,
		ExpectedStatus: expected,
		Entry: models.TireHistoryEntry{
			Action:     action,
			Note:       w.Note,
			TreadDepth: w.TreadDepth,
			Mileage:    w.Mileage,
			Date:       s.now(),
		},
	})
}

func dismount(t *models.Tire) {
	t.Position = ""
	t.AssignedToType = ""
	t.AssignedToID = nil
	t.MileageAtInstall = nil
}

func validateTire(t *models.Tire) *models.ValidationError {
	verr := &models.ValidationError{}
	if t.SerialNumber == "" {
		verr.Add("serialNumber", "is required")
	}
	return verr
}

func nonNegative(f float64) bool {
	return f >= 0 && !math.IsNaN(f) && !math.IsInf(f, 0)
}

func validation(field, reason string) error {
	return &models.ValidationError{Violations: []models.Violation{{Field: field, Reason: reason}}}
}
