package notifications

import (
	"context"

	"rental_app_backend/pkg/utils"
)

// LogSender writes messages to the log instead of delivering them.
// It is the development default.
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	utils.LogInfo("Notification (log driver)", map[string]interface{}{
		"kind":           msg.Kind,
		"application_id": msg.ApplicationID,
		"to":             msg.To,
		"subject":        msg.Subject,
		"sms":            msg.SMSTo != "",
	})
	return nil
}
