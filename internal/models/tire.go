package models

import "time"

const (
	TireStatusInStock = "in_stock"
	TireStatusMounted = "mounted"
	TireStatusRetired = "retired"
)

const (
	TireActionCreated    = "created"
	TireActionAssigned   = "assigned"
	TireActionUnassigned = "unassigned"
	TireActionWear       = "wear"
	TireActionStatus     = "status"
)

type TireHistoryEntry struct {
	Action     string    `json:"action"`
	Note       string    `json:"note,omitempty"`
	TreadDepth *float64  `json:"treadDepth,omitempty"`
	Mileage    *float64  `json:"mileage,omitempty"`
	Date       time.Time `json:"date"`
}

// Tire is a single tracked tire. AssignedToID and AssignedToType are set only
// while the tire is mounted.
type Tire struct {
	ID               uint64             `json:"id"`
	SerialNumber     string             `json:"serialNumber"`
	Brand            string             `json:"brand,omitempty"`
	Size             string             `json:"size,omitempty"`
	Status           string             `json:"status"`
	TreadDepth       *float64           `json:"treadDepth,omitempty"`
	Position         string             `json:"position,omitempty"`
	AssignedToType   string             `json:"assignedToType,omitempty"`
	AssignedToID     *uint64            `json:"assignedToId,omitempty"`
	MileageAtInstall *float64           `json:"mileageAtInstall,omitempty"`
	Notes            string             `json:"notes,omitempty"`
	History          []TireHistoryEntry `json:"history"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

// TireFilter: пустые поля не фильтруют.
type TireFilter struct {
	Status    string
	VehicleID *uint64
}

type TireMount struct {
	VehicleType      string
	VehicleID        uint64
	Position         string
	MileageAtInstall *float64
	Note             string
}

type TireWear struct {
	TreadDepth *float64
	Status     string
	Mileage    *float64
	Note       string
}

// TireChange is the prospective tire state written by assign, unassign and
// wear. It applies only while the stored status still equals ExpectedStatus.
type TireChange struct {
	Tire           *Tire
	ExpectedStatus string
	Entry          TireHistoryEntry
}

func IsTireStatus(s string) bool {
	switch s {
	case TireStatusInStock, TireStatusMounted, TireStatusRetired:
		return true
	}
	return false
}
