package dto

import (
	"school-transport-service/internal/domain"
	"time"
)

// RecordedAt is the device's own clock. It is stored with the ping but
// never drives monitoring; the server stamps the receive time itself.
type LocationPingRequest struct {
	Lat        float64    `json:"lat" validate:"gte=-90,lte=90"`
	Lng        float64    `json:"lng" validate:"gte=-180,lte=180"`
	Speed      *float64   `json:"speed" validate:"omitempty,gte=0"`
	Heading    *float64   `json:"heading" validate:"omitempty,gte=0,lt=360"`
	Accuracy   *float64   `json:"accuracy" validate:"omitempty,gte=0"`
	TripID     string     `json:"trip_id" validate:"omitempty,max=64"`
	RecordedAt *time.Time `json:"recorded_at"`
}

type DeviationResponse struct {
	Deviated         bool            `json:"deviated"`
	DistanceMeters   float64         `json:"distance_meters"`
	ExpectedLocation domain.GeoPoint `json:"expected_location"`
}

type LocationPingResponse struct {
	PingID     int64              `json:"ping_id"`
	ReceivedAt time.Time          `json:"received_at"`
	OutOfOrder bool               `json:"out_of_order"`
	NoGPSAlert *domain.Alert      `json:"no_gps_alert,omitempty"`
	Deviation  *DeviationResponse `json:"deviation,omitempty"`
}

type HeatmapCellResponse struct {
	Lat    float64   `json:"lat"`
	Lng    float64   `json:"lng"`
	Hour   time.Time `json:"hour"`
	Weight int       `json:"weight"`
}

type HeatmapResponse struct {
	DriverID string                `json:"driver_id"`
	Start    time.Time             `json:"start"`
	End      time.Time             `json:"end"`
	Cells    []HeatmapCellResponse `json:"cells"`
}
