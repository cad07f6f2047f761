package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	pkgerrors "github.com/nbylich/creditflow/pkg/errors"
)

// StripeProvider is immutable after construction and safe for concurrent
// use; one instance is shared by the issuer and the reconciler.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
}

func NewStripeProvider(secretKey, webhookSecret string) *StripeProvider {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeProvider{api: api, webhookSecret: webhookSecret}
}

func (p *StripeProvider) CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Params: stripe.Params{
			Context: ctx,
		},
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(currency),
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		slog.Error("failed to create payment intent", "amount_cents", amountCents, "currency", currency, "error", err)
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrPaymentProvider, err)
	}

	slog.Info("payment intent created", "intent_id", pi.ID, "amount_cents", amountCents, "currency", currency)
	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// VerifyAndParseEvent checks the signature over the exact raw payload bytes
// and reduces the provider event to the closed Kind enum. A failed
// signature check returns ErrVerificationFailed; callers must not mutate
// any state on that path.
func (p *StripeProvider) VerifyAndParseEvent(payload []byte, sigHeader string) (*Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		slog.Warn("webhook signature verification failed", "error", err)
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrVerificationFailed, err)
	}

	parsed := &Event{Kind: EventOther, Type: string(event.Type)}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		parsed.Kind = EventSucceeded
	case stripe.EventTypePaymentIntentCanceled:
		parsed.Kind = EventCanceled
	default:
		return parsed, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		slog.Error("failed to unmarshal payment intent from event", "event_type", event.Type, "error", err)
		return nil, fmt.Errorf("failed to unmarshal payment intent from event: %w", err)
	}
	parsed.IntentID = pi.ID

	return parsed, nil
}
