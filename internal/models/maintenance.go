package models

import "time"

const (
	RuleTypeTire     = "tire"
	RuleTypeOil      = "oil"
	RuleTypeRevision = "revision"
)

const (
	RuleAppliesToTruck   = "truck"
	RuleAppliesToTrailer = "trailer"
	RuleAppliesToAll     = "all"
)

const (
	AlertStatusUpcoming = "upcoming"
	AlertStatusOverdue  = "overdue"
)

type MaintenanceRule struct {
	ID            uint64    `json:"id"`
	Name          string    `json:"name"`
	Type          string    `json:"type"`
	AppliesTo     string    `json:"appliesTo"`
	ThresholdKm   *float64  `json:"thresholdKm,omitempty"`
	ThresholdDays *int      `json:"thresholdDays,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type MaintenanceAlert struct {
	AssetType    string     `json:"assetType"`
	AssetID      uint64     `json:"assetId"`
	LicensePlate string     `json:"licensePlate"`
	RuleID       uint64     `json:"ruleId,omitempty"`
	Rule         string     `json:"rule"`
	Type         string     `json:"type"`
	DueByDate    *time.Time `json:"dueByDate,omitempty"`
	DueByKm      *float64   `json:"dueByKm,omitempty"`
	Status       string     `json:"status"`
}
