// Package payments wraps the external payment provider behind a narrow
// interface: issuing intents and turning raw webhook deliveries into
// verified, typed events. Nothing outside this package touches provider
// SDK types.
package payments

import "context"

// Intent is the provider-side record of an in-progress payment. Its ID is
// the reconciliation key between our ledger and webhook events.
type Intent struct {
	ID           string
	ClientSecret string
}

type EventKind string

const (
	EventSucceeded EventKind = "succeeded"
	EventCanceled  EventKind = "canceled"
	// EventOther covers every provider event type we do not act on. They
	// are acknowledged and discarded so new provider event types never
	// break delivery.
	EventOther EventKind = "other"
)

// Event is a verified webhook event reduced to what reconciliation needs.
// It is a trigger, not a data source: no amounts or credit counts cross
// this boundary.
type Event struct {
	Kind     EventKind
	IntentID string
	Type     string
}

type Provider interface {
	CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*Intent, error)
	VerifyAndParseEvent(payload []byte, sigHeader string) (*Event, error)
}
