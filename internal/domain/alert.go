package domain

import "time"

type AlertType string

const (
	AlertRouteDeviation AlertType = "route_deviation"
	AlertLateArrival    AlertType = "late_arrival"
	AlertNoGPS          AlertType = "no_gps"
)

// Valid reports whether t is a known alert type.
func (t AlertType) Valid() bool {
	switch t {
	case AlertRouteDeviation, AlertLateArrival, AlertNoGPS:
		return true
	}
	return false
}

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Represents a monitoring violation. Alerts are immutable once created.
type Alert struct {
	ID        string         `json:"id"`
	Type      AlertType      `json:"type"`
	Severity  Severity       `json:"severity"`
	DriverID  string         `json:"driver_id"`
	TripID    string         `json:"trip_id,omitempty"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
}
