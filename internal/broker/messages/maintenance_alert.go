package messages

import (
	"fmt"
	"time"

	"github.com/BearBump/FleetTrack/internal/models"
	"github.com/google/uuid"
)

type MaintenanceAlert struct {
	EventID   string                  `json:"event_id"`
	ScannedAt time.Time               `json:"scanned_at"`
	Alert     models.MaintenanceAlert `json:"alert"`
}

func NewMaintenanceAlert(a models.MaintenanceAlert, at time.Time) MaintenanceAlert {
	return MaintenanceAlert{EventID: uuid.NewString(), ScannedAt: at.UTC(), Alert: a}
}

func (m MaintenanceAlert) Key() []byte {
	return []byte(fmt.Sprintf("%s:%d", m.Alert.AssetType, m.Alert.AssetID))
}
