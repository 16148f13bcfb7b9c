package services

import (
	"context"
	"fmt"
	"school-transport-service/internal/domain"
	"school-transport-service/internal/ports"
	"time"

	"github.com/google/uuid"
)

// AlertRaiser is the slice of AlertService the monitors depend on.
type AlertRaiser interface {
	Raise(ctx context.Context, alert domain.Alert) (domain.Alert, error)
}

// AlertService persists alerts and hands them to the notification fan-out.
type AlertService struct {
	Repo      ports.AlertRepository
	Publisher ports.AlertPublisher
	Now       func() time.Time
}

func NewAlertService(repo ports.AlertRepository, publisher ports.AlertPublisher) *AlertService {
	return &AlertService{Repo: repo, Publisher: publisher, Now: time.Now}
}

// Raise assigns an id and creation time, persists the alert and publishes
// it. A persistence failure is returned; publishing is one-way and never
// fails the caller.
func (s *AlertService) Raise(ctx context.Context, alert domain.Alert) (domain.Alert, error) {
	if !alert.Type.Valid() {
		return domain.Alert{}, fmt.Errorf("raise alert: %w: unknown type %q", domain.ErrInvalidInput, alert.Type)
	}
	if alert.DriverID == "" {
		return domain.Alert{}, fmt.Errorf("raise alert: %w: driver id is required", domain.ErrInvalidInput)
	}

	alert.ID = uuid.NewString()
	alert.CreatedAt = s.Now().UTC()
	if alert.Severity == "" {
		alert.Severity = domain.SeverityWarning
	}
	if alert.Metadata == nil {
		alert.Metadata = map[string]any{}
	}

	if err := s.Repo.Create(ctx, &alert); err != nil {
		return domain.Alert{}, fmt.Errorf("raise alert type=%s: %w", alert.Type, err)
	}

	if s.Publisher != nil {
		// Delivery outlives the request that triggered the alert.
		s.Publisher.Publish(context.WithoutCancel(ctx), alert)
	}

	return alert, nil
}

// List returns alerts matching a subscriber's interest set, newest first.
func (s *AlertService) List(ctx context.Context, types []domain.AlertType, since time.Time, limit int) ([]*domain.Alert, error) {
	for _, t := range types {
		if !t.Valid() {
			return nil, fmt.Errorf("list alerts: %w: unknown type %q", domain.ErrInvalidInput, t)
		}
	}
	if limit <= 0 || limit > 500 {
		return nil, fmt.Errorf("list alerts: %w: limit must be between 1 and 500", domain.ErrInvalidInput)
	}

	alerts, err := s.Repo.ListByTypes(ctx, types, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return alerts, nil
}
