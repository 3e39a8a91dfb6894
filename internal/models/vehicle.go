package models

import "time"

const (
	VehicleKindTruck   = "truck"
	VehicleKindTrailer = "trailer"
)

const (
	VehicleStatusAvailable   = "available"
	VehicleStatusMaintenance = "maintenance"
	VehicleStatusAssigned    = "assigned"
	VehicleStatusInUse       = "in_use"
)

type Vehicle struct {
	ID                 uint64     `json:"id"`
	Kind               string     `json:"kind"`
	LicensePlate       string     `json:"licensePlate"`
	Model              string     `json:"model"`
	Capacity           float64    `json:"capacity"`
	Status             string     `json:"status"`
	Mileage            float64    `json:"mileage"`
	FuelLevel          *float64   `json:"fuelLevel,omitempty"`
	TireStatus         string     `json:"tireStatus"`
	MaintenanceDueDate *time.Time `json:"maintenanceDueDate,omitempty"`
	LastServiceDate    *time.Time `json:"lastServiceDate,omitempty"`
	LastServiceMileage float64    `json:"lastServiceMileage"`
	Notes              string     `json:"notes,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// VehiclePatch carries the tracking fields an operator may change; nil means
// "leave as is".
type VehiclePatch struct {
	Mileage            *float64
	FuelLevel          *float64
	TireStatus         *string
	MaintenanceDueDate *time.Time
	LastServiceDate    *time.Time
	LastServiceMileage *float64
	Notes              *string
	Status             *string
}

func IsVehicleStatus(s string) bool {
	switch s {
	case VehicleStatusAvailable, VehicleStatusMaintenance, VehicleStatusAssigned, VehicleStatusInUse:
		return true
	}
	return false
}

// TruckStatusFor maps the status a journey has just entered to the status of
// its truck.
func TruckStatusFor(journeyStatus string) string {
	switch journeyStatus {
	case JourneyStatusInProgress:
		return VehicleStatusInUse
	case JourneyStatusToDo:
		return VehicleStatusAssigned
	default:
		return VehicleStatusAvailable
	}
}

// TruckStatusOnAssign is the status a truck takes when a new journey is
// created for it.
func TruckStatusOnAssign(current string) string {
	if current == VehicleStatusInUse {
		return VehicleStatusInUse
	}
	return VehicleStatusAssigned
}
