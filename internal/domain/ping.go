package domain

import "time"

// Represents one GPS update received from a driver.
// Pings form an append-only log that backs the heatmap and audit trail.
//
// ReceivedAt is always the server's clock. RecordedAt is the device's own
// timestamp, kept for the log only.
type LocationPing struct {
	ID         int64
	DriverID   string
	Location   GeoPoint
	Speed      *float64
	Heading    *float64
	Accuracy   *float64
	TripID     string
	RecordedAt *time.Time
	ReceivedAt time.Time
}

// In-memory per-driver state used for silence detection.
type DriverLiveState struct {
	LastPingAt time.Time
}

// Latest known position of a driver.
type LiveLocation struct {
	DriverID string    `json:"driver_id"`
	Location GeoPoint  `json:"location"`
	At       time.Time `json:"at"`
}

// One aggregated bucket of ping density.
type HeatmapCell struct {
	Lat    float64
	Lng    float64
	Hour   time.Time
	Weight int
}
