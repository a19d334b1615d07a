package gateway

import (
	"net/http"
	"time"
)

// EventKind is what a webhook delivery asks the service to do.
type EventKind string

const (
	EventCharged   EventKind = "charged"   // a recurring charge was captured
	EventCancelled EventKind = "cancelled" // the gateway ended the subscription
	EventIgnored   EventKind = "ignored"
)

// Event is a verified webhook delivery reduced to what the service acts on.
type Event struct {
	ID              string
	Type            string // gateway event type, e.g. subscription.charged
	Kind            EventKind
	SubscriptionRef string
	PaymentRef      string
	OrderRef        string
	PeriodEnd       *time.Time
}

// WebhookParser authenticates and decodes a raw webhook delivery.
type WebhookParser interface {
	ParseWebhook(body []byte, header http.Header) (Event, error)
}
