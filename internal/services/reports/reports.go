package reports

import (
	"context"

	"github.com/BearBump/FleetTrack/internal/access"
	"github.com/BearBump/FleetTrack/internal/models"
)

type Repository interface {
	ListJourneys(ctx context.Context, f models.JourneyFilter) ([]*models.Journey, error)
}

type Service struct {
	repo Repository
}

func New(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Summary(ctx context.Context, actor models.Actor, f models.JourneyFilter) (*models.Summary, error) {
	if err := access.RequireAdmin(actor); err != nil {
		return nil, err
	}
	js, err := s.repo.ListJourneys(ctx, f)
	if err != nil {
		return nil, err
	}
	return Summarize(js), nil
}

// Summarize folds journeys into totals. Mileage counts only positive
// mileageEnd - mileageStart deltas.
func Summarize(js []*models.Journey) *models.Summary {
	out := &models.Summary{
		PerTruck:  make(map[uint64]*models.Totals),
		PerDriver: make(map[uint64]*models.Totals),
	}
	for _, j := range js {
		var fuel, mileage float64
		if j.FuelVolume != nil {
			fuel = *j.FuelVolume
		}
		if j.MileageStart != nil && j.MileageEnd != nil && *j.MileageEnd > *j.MileageStart {
			mileage = *j.MileageEnd - *j.MileageStart
		}

		out.JourneysCount++
		out.TotalFuel += fuel
		out.TotalMileage += mileage
		add(out.PerTruck, j.TruckID, mileage, fuel)
		add(out.PerDriver, j.DriverID, mileage, fuel)
	}
	return out
}

func add(m map[uint64]*models.Totals, id uint64, mileage, fuel float64) {
	t, ok := m[id]
	if !ok {
		t = &models.Totals{}
		m[id] = t
	}
	t.Journeys++
	t.Mileage += mileage
	t.Fuel += fuel
}
