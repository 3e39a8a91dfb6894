package vehicles

import (
	"context"
	"math"
	"strings"

	"github.com/BearBump/FleetTrack/internal/access"
	"github.com/BearBump/FleetTrack/internal/models"
	"github.com/pkg/errors"
)

type Repository interface {
	CreateVehicle(ctx context.Context, v *models.Vehicle) (*models.Vehicle, error)
	GetVehicle(ctx context.Context, id uint64) (*models.Vehicle, error)
	ListVehicles(ctx context.Context, kind string) ([]*models.Vehicle, error)
	UpdateVehicle(ctx context.Context, v *models.Vehicle) (*models.Vehicle, error)
	PatchVehicle(ctx context.Context, id uint64, p models.VehiclePatch) (*models.Vehicle, error)
	DeleteVehicle(ctx context.Context, id uint64) error
	SetVehicleStatus(ctx context.Context, id uint64, status string) error
	HasActiveJourney(ctx context.Context, truckID, excludingJourneyID uint64, statuses ...string) (bool, error)
	RecordOdometer(ctx context.Context, id uint64, mileage float64) (bool, error)
}

// Registry is the vehicle surface the journey lifecycle coordinates with.
type Registry struct {
	repo Repository
}

func New(repo Repository) *Registry {
	return &Registry{repo: repo}
}

func (r *Registry) FindByID(ctx context.Context, id uint64) (*models.Vehicle, error) {
	return r.repo.GetVehicle(ctx, id)
}

// Exists reports whether a vehicle of the given kind exists; empty kind
// accepts any.
func (r *Registry) Exists(ctx context.Context, id uint64, kind string) (bool, error) {
	v, err := r.repo.GetVehicle(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return kind == "" || v.Kind == kind, nil
}

func (r *Registry) SetStatus(ctx context.Context, id uint64, status string) error {
	if !models.IsVehicleStatus(status) {
		return validation("status", "unknown vehicle status")
	}
	return r.repo.SetVehicleStatus(ctx, id, status)
}

// HasActiveJourney: statuses по умолчанию только in_progress.
func (r *Registry) HasActiveJourney(ctx context.Context, truckID, excludingJourneyID uint64, statuses ...string) (bool, error) {
	return r.repo.HasActiveJourney(ctx, truckID, excludingJourneyID, statuses...)
}

// RecordOdometer raises the vehicle mileage; lower readings are ignored.
func (r *Registry) RecordOdometer(ctx context.Context, id uint64, mileage float64) (bool, error) {
	if mileage < 0 || math.IsNaN(mileage) || math.IsInf(mileage, 0) {
		return false, validation("mileage", "must be a non-negative number")
	}
	return r.repo.RecordOdometer(ctx, id, mileage)
}

func (r *Registry) List(ctx context.Context, kind string) ([]*models.Vehicle, error) {
	return r.repo.ListVehicles(ctx, kind)
}

// ListAvailable returns vehicles of the kind that can take a new journey.
func (r *Registry) ListAvailable(ctx context.Context, kind string) ([]*models.Vehicle, error) {
	vs, err := r.repo.ListVehicles(ctx, kind)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Vehicle, 0, len(vs))
	for _, v := range vs {
		if v.Status == models.VehicleStatusAvailable {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *Registry) Get(ctx context.Context, kind string, id uint64) (*models.Vehicle, error) {
	v, err := r.repo.GetVehicle(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.Kind != kind {
		return nil, models.NotFound(kind, id)
	}
	return v, nil
}

func (r *Registry) Create(ctx context.Context, actor models.Actor, v *models.Vehicle) (*models.Vehicle, error) {
	if err := access.RequireAdmin(actor); err != nil {
		return nil, err
	}
	if err := validateVehicle(v); err != nil {
		return nil, err
	}
	if v.Status == "" {
		v.Status = models.VehicleStatusAvailable
	}
	if v.TireStatus == "" {
		v.TireStatus = models.DefaultTireStatus
	}
	if v.Kind == models.VehicleKindTrailer {
		v.FuelLevel = nil
	}
	return r.repo.CreateVehicle(ctx, v)
}

func (r *Registry) Update(ctx context.Context, actor models.Actor, v *models.Vehicle) (*models.Vehicle, error) {
	if err := access.RequireAdmin(actor); err != nil {
		return nil, err
	}
	if _, err := r.Get(ctx, v.Kind, v.ID); err != nil {
		return nil, err
	}
	if err := validateVehicle(v); err != nil {
		return nil, err
	}
	if v.TireStatus == "" {
		v.TireStatus = models.DefaultTireStatus
	}
	return r.repo.UpdateVehicle(ctx, v)
}

// PatchTracking applies an operator tracking update. A manual status change
// is refused while the truck has a journey in progress.
func (r *Registry) PatchTracking(ctx context.Context, actor models.Actor, kind string, id uint64, p models.VehiclePatch) (*models.Vehicle, error) {
	if err := access.RequireAdmin(actor); err != nil {
		return nil, err
	}
	if _, err := r.Get(ctx, kind, id); err != nil {
		return nil, err
	}

	verr := &models.ValidationError{}
	if p.Mileage != nil && !nonNegative(*p.Mileage) {
		verr.Add("mileage", "must be a non-negative number")
	}
	if p.LastServiceMileage != nil && !nonNegative(*p.LastServiceMileage) {
		verr.Add("lastServiceMileage", "must be a non-negative number")
	}
	if p.FuelLevel != nil {
		if kind != models.VehicleKindTruck {
			verr.Add("fuelLevel", "only trucks track fuel level")
		} else if !nonNegative(*p.FuelLevel) {
			verr.Add("fuelLevel", "must be a non-negative number")
		}
	}
	if p.Status != nil && !models.IsVehicleStatus(*p.Status) {
		verr.Add("status", "unknown vehicle status")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}
	return r.repo.PatchVehicle(ctx, id, p)
}

func (r *Registry) Delete(ctx context.Context, actor models.Actor, kind string, id uint64) error {
	if err := access.RequireAdmin(actor); err != nil {
		return err
	}
	if _, err := r.Get(ctx, kind, id); err != nil {
		return err
	}
	return r.repo.DeleteVehicle(ctx, id)
}

func validateVehicle(v *models.Vehicle) error {
	verr := &models.ValidationError{}
	if v.Kind != models.VehicleKindTruck && v.Kind != models.VehicleKindTrailer {
		verr.Add("kind", "must be truck or trailer")
	}
	if strings.TrimSpace(v.LicensePlate) == "" {
		verr.Add("licensePlate", "is required")
	}
	if !nonNegative(v.Capacity) {
		verr.Add("capacity", "must be a non-negative number")
	}
	if !nonNegative(v.Mileage) {
		verr.Add("mileage", "must be a non-negative number")
	}
	if v.Status != "" && !models.IsVehicleStatus(v.Status) {
		verr.Add("status", "unknown vehicle status")
	}
	return verr.Err()
}

func nonNegative(f float64) bool {
	return f >= 0 && !math.IsNaN(f) && !math.IsInf(f, 0)
}

func validation(field, reason string) error {
	return &models.ValidationError{Violations: []models.Violation{{Field: field, Reason: reason}}}
}
