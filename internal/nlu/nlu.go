// Package nlu resolves operator questions that can be answered locally from
// the driver table, without a backend round trip.
package nlu

import (
	"fmt"
	"slices"
	"strings"

	"copilot/internal/drivers"
)

type Intent string

const (
	IntentHighRisk       Intent = "high_risk"
	IntentBestDriver     Intent = "best_driver"
	IntentDriverStatus   Intent = "driver_status"
	IntentMostDeliveries Intent = "most_deliveries"
)

type Answer struct {
	Intent Intent `json:"intent"`
	Text   string `json:"text"`
}

const noDrivers = "No drivers on record."

type pattern struct {
	intent   Intent
	keywords []string
	answer   func([]drivers.Record) string
}

// Evaluated top to bottom; the first pattern with a matching keyword wins.
var patterns = []pattern{
	{
		intent:   IntentHighRisk,
		keywords: []string{"high risk", "highest risk", "high-risk", "riskiest"},
		answer:   highRisk,
	},
	{
		intent:   IntentBestDriver,
		keywords: []string{"best driver", "top driver"},
		answer:   bestDriver,
	},
	{
		intent:   IntentDriverStatus,
		keywords: []string{"driver status"},
		answer:   driverStatus,
	},
	{
		intent:   IntentMostDeliveries,
		keywords: []string{"most deliveries"},
		answer:   mostDeliveries,
	},
}

// Resolve matches the utterance against the fixed intent table. The second
// result is false when nothing matched and the question has to go remote.
func Resolve(utterance string) (Answer, bool) {
	lower := strings.ToLower(utterance)

	for _, p := range patterns {
		if !containsAny(lower, p.keywords) {
			continue
		}
		return Answer{Intent: p.intent, Text: p.answer(drivers.All())}, true
	}

	return Answer{}, false
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func highRisk(recs []drivers.Record) string {
	i := slices.IndexFunc(recs, func(r drivers.Record) bool {
		return r.RiskLevel == drivers.RiskHigh
	})
	if i < 0 {
		return "No high-risk drivers found."
	}

	d := recs[i]
	return fmt.Sprintf("⚠️ High Risk Driver: %s (%s) — Safety Score: %d, Incidents: %d",
		d.Name, d.Vehicle, d.SafetyScore, d.IncidentCount)
}

func bestDriver(recs []drivers.Record) string {
	if len(recs) == 0 {
		return noDrivers
	}
	slices.SortStableFunc(recs, func(a, b drivers.Record) int {
		return b.SafetyScore - a.SafetyScore
	})

	d := recs[0]
	return fmt.Sprintf("🏅 Best Driver: %s — Safety Score: %d, Deliveries: %d, Vehicle: %s",
		d.Name, d.SafetyScore, d.DeliveryCount, d.Vehicle)
}

func driverStatus(recs []drivers.Record) string {
	lines := make([]string, 0, len(recs))
	for _, d := range recs {
		lines = append(lines, fmt.Sprintf("%s: %s (%s)", d.Name, d.Status.Label(), d.LastActiveLabel))
	}
	return strings.Join(lines, "\n")
}

func mostDeliveries(recs []drivers.Record) string {
	if len(recs) == 0 {
		return noDrivers
	}
	slices.SortStableFunc(recs, func(a, b drivers.Record) int {
		return b.DeliveryCount - a.DeliveryCount
	})

	d := recs[0]
	return fmt.Sprintf("🚚 Most Deliveries: %s — %d deliveries", d.Name, d.DeliveryCount)
}
