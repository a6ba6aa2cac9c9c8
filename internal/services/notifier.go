package services

import (
	"context"
	"time"

	"rental_app_backend/internal/events"
	"rental_app_backend/internal/models"
	"rental_app_backend/internal/notifications"
	"rental_app_backend/pkg/utils"
)

// Notifier queues outbound messages. notifications.Dispatcher implements it.
type Notifier interface {
	Enqueue(msg notifications.Message) error
}

// notify renders and queues a message, logging instead of failing.
func notify(n Notifier, build func(*models.Application) (notifications.Message, error), app *models.Application) {
	if n == nil {
		return
	}
	msg, err := build(app)
	if err != nil {
		utils.LogError(err, "Failed to render notification", map[string]interface{}{"application_id": app.ApplicationID})
		return
	}
	if err := n.Enqueue(msg); err != nil {
		utils.LogWarn(err, "Notification not queued", map[string]interface{}{"application_id": app.ApplicationID, "kind": msg.Kind})
	}
}

// publish announces a record change, logging instead of failing.
func publish(ctx context.Context, b events.Broker, eventType, applicationID string, now time.Time) {
	if b == nil {
		return
	}
	ev := events.ApplicationChanged{Type: eventType, ApplicationID: applicationID, OccurredAt: now}
	if err := b.Publish(ctx, ev); err != nil {
		utils.LogWarn(err, "Failed to publish application event", map[string]interface{}{"application_id": applicationID, "type": eventType})
	}
}
