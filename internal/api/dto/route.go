package dto

import (
	"school-transport-service/internal/domain"
	"time"
)

type GeoPointRequest struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

// A stop carries either a location or an address to geocode.
type StopRequest struct {
	StudentID string           `json:"student_id" validate:"required"`
	Location  *GeoPointRequest `json:"location" validate:"omitempty"`
	Address   string           `json:"address" validate:"required_without=Location"`
}

type CreateRouteRequest struct {
	DriverID         string          `json:"driver_id" validate:"required"`
	SchoolID         string          `json:"school_id" validate:"required"`
	Depot            GeoPointRequest `json:"depot"`
	Stops            []StopRequest   `json:"stops" validate:"required,min=1,max=25,dive"`
	ScheduledArrival time.Time       `json:"scheduled_arrival"`
}

type StopETAResponse struct {
	StudentID          string          `json:"student_id"`
	Location           domain.GeoPoint `json:"location"`
	Address            string          `json:"address,omitempty"`
	EstimatedArrival   time.Time       `json:"estimated_arrival"`
	LegDurationSeconds int             `json:"leg_duration_seconds"`
	LegDistanceMeters  int             `json:"leg_distance_meters"`
}

type RouteResponse struct {
	ID                   string            `json:"id"`
	DriverID             string            `json:"driver_id"`
	SchoolID             string            `json:"school_id"`
	Depot                domain.GeoPoint   `json:"depot"`
	StopOrder            []string          `json:"stop_order"`
	PerStopETA           []StopETAResponse `json:"per_stop_eta"`
	Geometry             string            `json:"geometry"`
	TotalDurationSeconds int               `json:"total_duration_seconds"`
	TotalDistanceMeters  int               `json:"total_distance_meters"`
	ScheduledArrival     time.Time         `json:"scheduled_arrival"`
	GeneratedAt          time.Time         `json:"generated_at"`
	Active               bool              `json:"active"`
	Regenerated          bool              `json:"regenerated"`
}
