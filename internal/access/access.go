package access

import "github.com/BearBump/FleetTrack/internal/models"

// CanAccess: админ видит всё, водитель только свои рейсы.
func CanAccess(j *models.Journey, actor models.Actor) bool {
	if actor.IsAdmin() {
		return true
	}
	return j != nil && actor.ID != 0 && j.DriverID == actor.ID
}

func RequireAdmin(actor models.Actor) error {
	if !actor.IsAdmin() {
		return models.ErrAccessDenied
	}
	return nil
}

func RequireJourney(j *models.Journey, actor models.Actor) error {
	if !CanAccess(j, actor) {
		return models.ErrAccessDenied
	}
	return nil
}
