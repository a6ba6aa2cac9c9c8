// Package notifications sends applicant emails and texts in the background.
// Delivery is best effort: failures are logged and counted, never returned to the request that caused them.
package notifications

import (
	"context"
	"errors"
)

// Kind identifies the template of a message.
type Kind string

const (
	KindSubmissionReceived Kind = "submission_received"
	KindPaymentReceived    Kind = "payment_received"
	KindStatusChanged      Kind = "status_changed"
	KindIDRecovery         Kind = "id_recovery"
)

// Message is a rendered notification.
type Message struct {
	Kind          Kind   `json:"kind"`
	ApplicationID string `json:"application_id,omitempty"`
	To            string `json:"to"`
	Subject       string `json:"subject"`
	Body          string `json:"body"`
	// SMSTo is set when the applicant opted in to texts.
	SMSTo   string `json:"sms_to,omitempty"`
	SMSBody string `json:"sms_body,omitempty"`
}

// ErrNoRecipient is returned for messages without an email address.
var ErrNoRecipient = errors.New("message has no recipient")

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
