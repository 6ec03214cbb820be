// Package drivers holds the static driver safety table the assistant answers from.
package drivers

type Status string

const (
	StatusActive   Status = "active"
	StatusOnBreak  Status = "on-break"
	StatusInactive Status = "inactive"
)

// Label is the human form used in replies ("on break").
func (s Status) Label() string {
	if s == StatusOnBreak {
		return "on break"
	}
	return string(s)
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

type Record struct {
	Name            string    `json:"name"`
	Status          Status    `json:"status"`
	Vehicle         string    `json:"vehicle"`
	SafetyScore     int       `json:"safety_score"`
	RiskLevel       RiskLevel `json:"risk_level"`
	DeliveryCount   int       `json:"delivery_count"`
	IncidentCount   int       `json:"incident_count"`
	LastActiveLabel string    `json:"last_active"`
}

var records = [...]Record{
	{
		Name:            "John Smith",
		Status:          StatusActive,
		Vehicle:         "Truck #001",
		SafetyScore:     92,
		RiskLevel:       RiskLow,
		DeliveryCount:   156,
		IncidentCount:   1,
		LastActiveLabel: "5 minutes ago",
	},
	{
		Name:            "Sarah Johnson",
		Status:          StatusActive,
		Vehicle:         "Van #003",
		SafetyScore:     88,
		RiskLevel:       RiskLow,
		DeliveryCount:   203,
		IncidentCount:   2,
		LastActiveLabel: "12 minutes ago",
	},
	{
		Name:            "Mike Davis",
		Status:          StatusOnBreak,
		Vehicle:         "Truck #002",
		SafetyScore:     76,
		RiskLevel:       RiskMedium,
		DeliveryCount:   89,
		IncidentCount:   4,
		LastActiveLabel: "2 hours ago",
	},
	{
		Name:            "Lisa Chen",
		Status:          StatusInactive,
		Vehicle:         "Van #001",
		SafetyScore:     65,
		RiskLevel:       RiskHigh,
		DeliveryCount:   45,
		IncidentCount:   6,
		LastActiveLabel: "1 day ago",
	},
}

// All returns a copy of the table in store order. Callers may sort or
// modify the result freely.
func All() []Record {
	out := make([]Record, len(records))
	copy(out, records[:])
	return out
}

// Len is the number of records in the table.
func Len() int { return len(records) }
