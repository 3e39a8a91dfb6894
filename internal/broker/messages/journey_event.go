package messages

import (
	"strconv"
	"time"

	"github.com/BearBump/FleetTrack/internal/models"
	"github.com/google/uuid"
)

const (
	JourneyEventCreated       = "journey.created"
	JourneyEventStatusChanged = "journey.status_changed"
	JourneyEventTracking      = "journey.tracking_updated"
	JourneyEventDeleted       = "journey.deleted"
)

type JourneyEvent struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	JourneyID  uint64    `json:"journey_id"`
	TruckID    uint64    `json:"truck_id"`
	DriverID   uint64    `json:"driver_id"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status,omitempty"`
	MileageEnd *float64  `json:"mileage_end,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewJourneyEvent(typ, fromStatus string, j *models.Journey, at time.Time) JourneyEvent {
	return JourneyEvent{
		EventID:    uuid.NewString(),
		Type:       typ,
		JourneyID:  j.ID,
		TruckID:    j.TruckID,
		DriverID:   j.DriverID,
		FromStatus: fromStatus,
		ToStatus:   j.Status,
		MileageEnd: j.MileageEnd,
		OccurredAt: at.UTC(),
	}
}

// Key партиционирует по рейсу.
func (e JourneyEvent) Key() []byte {
	return []byte(strconv.FormatUint(e.JourneyID, 10))
}

// Finished reports whether the journey is finished after the event.
func (e JourneyEvent) Finished() bool {
	return e.ToStatus == models.JourneyStatusFinished
}
