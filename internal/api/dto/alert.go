package dto

import "school-transport-service/internal/domain"

type ListAlertsResponse struct {
	Alerts []*domain.Alert `json:"alerts"`
}
