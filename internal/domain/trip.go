package domain

import "time"

const (
	TripScheduled  = "scheduled"
	TripInProgress = "in_progress"
	TripCompleted  = "completed"
)

// Represents a scheduled run of a driver towards a school.
type Trip struct {
	ID          string
	DriverID    string
	SchoolID    string
	ScheduledAt time.Time
	Destination GeoPoint
	Status      string
}

// Active reports whether the trip is still subject to monitoring.
func (t *Trip) Active() bool {
	return t.Status == TripScheduled || t.Status == TripInProgress
}
