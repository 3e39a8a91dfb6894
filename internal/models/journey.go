package models

import "time"

const (
	JourneyStatusToDo       = "to_do"
	JourneyStatusInProgress = "in_progress"
	JourneyStatusFinished   = "finished"
)

const (
	DefaultTireStatus = "ok"

	MaxFuelVolume = 1000
)

type Journey struct {
	ID        uint64  `json:"id"`
	DriverID  uint64  `json:"driverId"`
	TruckID   uint64  `json:"truckId"`
	TrailerID *uint64 `json:"trailerId,omitempty"`

	Origin      string `json:"origin"`
	Destination string `json:"destination"`

	Status    string     `json:"status"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`

	MileageStart *float64 `json:"mileageStart,omitempty"`
	MileageEnd   *float64 `json:"mileageEnd,omitempty"`
	FuelVolume   *float64 `json:"fuelVolume,omitempty"`
	TireStatus   string   `json:"tireStatus"`
	Remarks      string   `json:"remarks,omitempty"`

	Logs []JourneyLog `json:"logs"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Resolved references, filled on reads.
	Driver  *UserRef    `json:"driver,omitempty"`
	Truck   *VehicleRef `json:"truck,omitempty"`
	Trailer *VehicleRef `json:"trailer,omitempty"`
}

type JourneyLog struct {
	Status    string    `json:"status"`
	Note      string    `json:"note"`
	Timestamp time.Time `json:"timestamp"`
}

type UserRef struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type VehicleRef struct {
	ID           uint64 `json:"id"`
	LicensePlate string `json:"licensePlate"`
	Model        string `json:"model"`
}

type JourneyCreateInput struct {
	DriverID    uint64
	TruckID     uint64
	TrailerID   *uint64
	Origin      string
	Destination string
}

// JourneyUpdate is the prospective state of a journey after a status or
// tracking change. Storage applies it only if the stored version still equals
// ExpectedVersion.
type JourneyUpdate struct {
	Journey         *Journey
	ExpectedVersion int64
	// Log is set when the status changes.
	Log *JourneyLog
}

// TrackingFields is a partial update; nil means "not provided".
type TrackingFields struct {
	MileageStart *float64
	MileageEnd   *float64
	FuelVolume   *float64
	TireStatus   *string
	Remarks      *string
	Status       *string
	Note         *string
}

type JourneyFilter struct {
	DriverID *uint64
	TruckID  *uint64
	Status   string
}

// Clone returns a deep copy so callers can build a prospective state without
// touching the stored one.
func (j *Journey) Clone() *Journey {
	if j == nil {
		return nil
	}
	c := *j
	c.TrailerID = cloneUint(j.TrailerID)
	c.StartDate = cloneTime(j.StartDate)
	c.EndDate = cloneTime(j.EndDate)
	c.MileageStart = cloneFloat(j.MileageStart)
	c.MileageEnd = cloneFloat(j.MileageEnd)
	c.FuelVolume = cloneFloat(j.FuelVolume)
	c.Logs = append([]JourneyLog(nil), j.Logs...)
	if j.Driver != nil {
		d := *j.Driver
		c.Driver = &d
	}
	if j.Truck != nil {
		t := *j.Truck
		c.Truck = &t
	}
	if j.Trailer != nil {
		t := *j.Trailer
		c.Trailer = &t
	}
	return &c
}

func cloneUint(v *uint64) *uint64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
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
