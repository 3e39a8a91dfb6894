package journeys

import (
	"fmt"
	"math"
	"strings"

	"github.com/BearBump/FleetTrack/internal/models"
)

// Validate checks a prospective journey state. stored is the persisted
// journey, next is stored with the incoming changes overlaid, and status is
// the requested status if any. Every violation is collected; a status
// violation is also attached as Transition so callers can match
// models.ErrInvalidTransition.
func Validate(stored, next *models.Journey, status *string) *models.ValidationError {
	verr := &models.ValidationError{}

	startOK := checkMileage(verr, "mileageStart", next.MileageStart)
	endOK := checkMileage(verr, "mileageEnd", next.MileageEnd)
	if startOK && endOK && next.MileageStart != nil && next.MileageEnd != nil &&
		*next.MileageEnd <= *next.MileageStart {
		verr.Add("mileageEnd", fmt.Sprintf("must be greater than mileageStart (%g)", *next.MileageStart))
	}

	if fv := next.FuelVolume; fv != nil {
		if math.IsNaN(*fv) || *fv < 0 || *fv > models.MaxFuelVolume {
			verr.Add("fuelVolume", fmt.Sprintf("must be between 0 and %d", models.MaxFuelVolume))
		}
	}

	if status != nil {
		// переход проверяется от сохранённого статуса, а не от слитого
		if ite := checkTransition(stored.Status, *status); ite != nil {
			verr.Transition = ite
			verr.Add("status", ite.Error())
		}
	}

	if len(verr.Violations) == 0 {
		return nil
	}
	return verr
}

func checkMileage(verr *models.ValidationError, field string, v *float64) bool {
	if v == nil {
		return true
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 {
		verr.Add(field, "must be a non-negative number")
		return false
	}
	return true
}

func validateCreate(in models.JourneyCreateInput) error {
	verr := &models.ValidationError{}
	if in.DriverID == 0 {
		verr.Add("driver", "is required")
	}
	if in.TruckID == 0 {
		verr.Add("truck", "is required")
	}
	if in.TrailerID != nil && *in.TrailerID == 0 {
		verr.Add("trailer", "must be a valid id")
	}
	if strings.TrimSpace(in.Origin) == "" {
		verr.Add("origin", "is required")
	}
	if strings.TrimSpace(in.Destination) == "" {
		verr.Add("destination", "is required")
	}
	return verr.Err()
}

// mergeTracking overlays the provided fields onto a copy of j.
func mergeTracking(j *models.Journey, f models.TrackingFields) *models.Journey {
	next := j.Clone()
	if f.MileageStart != nil {
		v := *f.MileageStart
		next.MileageStart = &v
	}
	if f.MileageEnd != nil {
		v := *f.MileageEnd
		next.MileageEnd = &v
	}
	if f.FuelVolume != nil {
		v := *f.FuelVolume
		next.FuelVolume = &v
	}
	if f.TireStatus != nil {
		next.TireStatus = *f.TireStatus
	}
	if f.Remarks != nil {
		next.Remarks = *f.Remarks
	}
	return next
}
