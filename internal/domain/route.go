package domain

import "time"

// Represents a single student pickup request within a route.
// Location may be nil when only an address is known; it is then
// resolved by geocoding before optimization.
type Stop struct {
	StudentID string
	Location  *GeoPoint
	Address   string
}

// Represents the scheduled arrival at a single stop.
// The leg fields describe the leg that departs this stop, towards the next
// stop or back to the depot for the last one.
type StopETA struct {
	StudentID          string
	Location           GeoPoint
	Address            string
	EstimatedArrival   time.Time
	LegDurationSeconds int
	LegDistanceMeters  int
}

// Represents the stored, optimized route for a (driver, school) pair.
// An OptimizedRoute is replaced in full on regeneration and is only ever
// mutated by being marked inactive when superseded.
type OptimizedRoute struct {
	ID                   string
	DriverID             string
	SchoolID             string
	Depot                GeoPoint
	StopOrder            []string
	PerStopETA           []StopETA
	Geometry             string
	TotalDurationSeconds int
	TotalDistanceMeters  int
	ScheduledArrival     time.Time
	GeneratedAt          time.Time
	Active               bool
}

// Stops rebuilds the stop set the route was generated from.
func (r *OptimizedRoute) Stops() []Stop {
	out := make([]Stop, 0, len(r.PerStopETA))
	for _, s := range r.PerStopETA {
		loc := s.Location
		out = append(out, Stop{StudentID: s.StudentID, Location: &loc, Address: s.Address})
	}
	return out
}
