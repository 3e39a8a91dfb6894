package odometer

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"

	"github.com/BearBump/FleetTrack/internal/broker/kafka"
	"github.com/BearBump/FleetTrack/internal/broker/messages"
	"github.com/BearBump/FleetTrack/internal/models"
	"github.com/pkg/errors"
)

type VehicleRegistry interface {
	RecordOdometer(ctx context.Context, id uint64, mileage float64) (bool, error)
}

// Sync raises a truck's mileage to the mileageEnd of its finished journeys.
type Sync struct {
	vehicles VehicleRegistry

	totalEvents  atomic.Int64
	totalUpdated atomic.Int64
	totalSkipped atomic.Int64
}

func New(vehicles VehicleRegistry) *Sync {
	return &Sync{vehicles: vehicles}
}

type Stats struct {
	TotalEvents  int64 `json:"totalEvents"`
	TotalUpdated int64 `json:"totalUpdated"`
	TotalSkipped int64 `json:"totalSkipped"`
}

func (s *Sync) Stats() Stats {
	return Stats{
		TotalEvents:  s.totalEvents.Load(),
		TotalUpdated: s.totalUpdated.Load(),
		TotalSkipped: s.totalSkipped.Load(),
	}
}

// Handle is a kafka.Handler. Undecodable messages and trucks that no longer
// exist or bad readings are skipped; storage failures stop the consumer so the message is
// redelivered.
func (s *Sync) Handle(ctx context.Context, key, value []byte) error {
	s.totalEvents.Add(1)

	var ev messages.JourneyEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		s.totalSkipped.Add(1)
		return errors.Wrapf(kafka.ErrSkip, "decode journey event %q: %v", key, err)
	}
	if ev.Type == messages.JourneyEventDeleted || !ev.Finished() || ev.MileageEnd == nil {
		return nil
	}

	raised, err := s.vehicles.RecordOdometer(ctx, ev.TruckID, *ev.MileageEnd)
	if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrValidation) {
		s.totalSkipped.Add(1)
		return errors.Wrapf(kafka.ErrSkip, "truck %d: %v", ev.TruckID, err)
	}
	if err != nil {
		return errors.Wrap(err, "record odometer")
	}
	if raised {
		s.totalUpdated.Add(1)
		slog.Info("truck mileage synced", "truck_id", ev.TruckID, "journey_id", ev.JourneyID, "mileage", *ev.MileageEnd)
	}
	return nil
}
