package dto

import "time"

type LatenessResponse struct {
	TripID       string     `json:"trip_id"`
	Late         bool       `json:"late"`
	AlertRaised  bool       `json:"alert_raised"`
	DelayMinutes int        `json:"delay_minutes"`
	ETA          *time.Time `json:"eta,omitempty"`
	ScheduledAt  *time.Time `json:"scheduled_at,omitempty"`
}
