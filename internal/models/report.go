package models

type Totals struct {
	Journeys int     `json:"journeys"`
	Mileage  float64 `json:"mileage"`
	Fuel     float64 `json:"fuel"`
}

type Summary struct {
	TotalFuel     float64            `json:"totalFuel"`
	TotalMileage  float64            `json:"totalMileage"`
	JourneysCount int                `json:"journeysCount"`
	PerTruck      map[uint64]*Totals `json:"perTruck"`
	PerDriver     map[uint64]*Totals `json:"perDriver"`
}
