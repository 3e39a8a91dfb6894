package journeys

import (
	"fmt"
	"time"

	"github.com/BearBump/FleetTrack/internal/models"
)

type transition struct {
	From string
	To   string
}

// Все прочие переходы (включая X -> X) запрещены.
var transitionsTable = []transition{
	{From: models.JourneyStatusToDo, To: models.JourneyStatusInProgress},
	{From: models.JourneyStatusInProgress, To: models.JourneyStatusFinished},
}

func CanTransition(from, to string) bool {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.To == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to string) *models.InvalidTransitionError {
	if CanTransition(from, to) {
		return nil
	}
	return &models.InvalidTransitionError{From: from, To: to}
}

// enterStatus moves j into status and sets startDate/endDate the first time
// the corresponding status is reached.
func enterStatus(j *models.Journey, status string, at time.Time) {
	j.Status = status
	switch status {
	case models.JourneyStatusInProgress:
		if j.StartDate == nil {
			t := at
			j.StartDate = &t
		}
	case models.JourneyStatusFinished:
		if j.EndDate == nil {
			t := at
			j.EndDate = &t
		}
	}
}

func defaultTransitionNote(from, to string) string {
	return fmt.Sprintf("Status changed from %s to %s", from, to)
}
