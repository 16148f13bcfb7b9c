package alerts

import (
	"context"
	"log"
	"school-transport-service/internal/domain"
)

// LogPublisher writes alerts to the process log. It is the fallback when no
// broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, alert domain.Alert) {
	log.Printf("alert: id=%s type=%s severity=%s driver=%s trip=%s metadata=%v",
		alert.ID, alert.Type, alert.Severity, alert.DriverID, alert.TripID, alert.Metadata)
}
