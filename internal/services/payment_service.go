package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	stderrors "errors"

	"github.com/nbylich/creditflow/internal/infrastructure/kafka"
	"github.com/nbylich/creditflow/internal/infrastructure/observability"
	"github.com/nbylich/creditflow/internal/infrastructure/redis"
	"github.com/nbylich/creditflow/internal/models"
	"github.com/nbylich/creditflow/internal/payments"
	"github.com/nbylich/creditflow/internal/plans"
	"github.com/nbylich/creditflow/internal/repository"
	pkgerrors "github.com/nbylich/creditflow/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

const paymentsTopic = "payments"

type IntentResult struct {
	ClientSecret  string `json:"client_secret"`
	TransactionID int64  `json:"transaction_id"`
}

type PaymentService interface {
	CreateIntent(ctx context.Context, userID int64, plan models.Plan) (*IntentResult, error)
	HandleWebhookEvent(ctx context.Context, payload []byte, sigHeader string) error
}

type paymentService struct {
	transactionRepo repository.TransactionRepository
	userRepo        repository.UserRepository
	provider        payments.Provider
	redisClient     redis.RedisClient
	kafkaProducer   kafka.KafkaProducer
	currency        string
	providerTimeout time.Duration
}

func NewPaymentService(
	transactionRepo repository.TransactionRepository,
	userRepo repository.UserRepository,
	provider payments.Provider,
	redisClient redis.RedisClient,
	kafkaProducer kafka.KafkaProducer,
	currency string,
	providerTimeout time.Duration,
) *paymentService {
	return &paymentService{
		transactionRepo: transactionRepo,
		userRepo:        userRepo,
		provider:        provider,
		redisClient:     redisClient,
		kafkaProducer:   kafkaProducer,
		currency:        currency,
		providerTimeout: providerTimeout,
	}
}

// CreateIntent resolves the plan, requests a provider intent and records a
// pending ledger row keyed by the provider intent id. Amount and credits
// come from the catalog only; nothing price-shaped is accepted from the
// caller. The provider is called before the insert so a provider failure
// leaves no orphaned pending row.
func (s *paymentService) CreateIntent(ctx context.Context, userID int64, plan models.Plan) (*IntentResult, error) {
	tracer := otel.Tracer("payment-service")
	ctx, span := tracer.Start(ctx, "CreateIntent")
	defer span.End()

	price, err := plans.Resolve(plan)
	if err != nil {
		slog.Error("unknown plan", "user_id", userID, "plan", plan, "error", err)
		span.SetStatus(codes.Error, "unknown plan")
		return nil, err
	}

	providerCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()

	// user_id and plan travel as provider-side metadata: a fallback
	// reconciliation key if the ledger lookup ever comes up empty.
	intent, err := s.provider.CreateIntent(providerCtx, price.AmountCents, s.currency, map[string]string{
		"user_id": fmt.Sprintf("%d", userID),
		"plan":    string(plan),
	})
	if err != nil {
		slog.Error("provider intent creation failed", "user_id", userID, "plan", plan, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider intent creation failed")
		return nil, err
	}

	tx := &models.Transaction{
		UserID:           userID,
		Plan:             plan,
		AmountCents:      price.AmountCents,
		Credits:          price.Credits,
		ProviderIntentID: intent.ID,
	}
	txID, err := s.transactionRepo.Create(ctx, tx)
	if err != nil {
		slog.Error("failed to record transaction", "user_id", userID, "provider_intent_id", intent.ID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to record transaction")
		return nil, err
	}

	s.publishAudit(ctx, "intent_issued", tx, nil)

	slog.Info("payment intent issued", "user_id", userID, "plan", plan, "transaction_id", txID, "provider_intent_id", intent.ID)
	return &IntentResult{ClientSecret: intent.ClientSecret, TransactionID: txID}, nil
}

// HandleWebhookEvent reconciles one provider delivery against the ledger.
// Deliveries are at-least-once and unordered; every ledger mutation is a
// conditional transition, so redelivery and reordering are safe without any
// dedup bookkeeping. An error return means the provider should retry;
// everything else (duplicates, unknown intents, unhandled event types) is
// acknowledged.
func (s *paymentService) HandleWebhookEvent(ctx context.Context, payload []byte, sigHeader string) error {
	tracer := otel.Tracer("payment-service")
	ctx, span := tracer.Start(ctx, "HandleWebhookEvent")
	defer span.End()

	event, err := s.provider.VerifyAndParseEvent(payload, sigHeader)
	if err != nil {
		// Never touches the ledger: a failed signature check stops here.
		observability.WebhookEvents.WithLabelValues("unknown", "verification_failed").Inc()
		slog.Warn("webhook rejected, possible tampering", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "verification failed")
		return err
	}

	if event.Kind == payments.EventOther {
		observability.WebhookEvents.WithLabelValues(event.Type, "ignored").Inc()
		slog.Info("unhandled webhook event type acknowledged", "event_type", event.Type)
		return nil
	}

	tx, err := s.transactionRepo.GetByIntentID(ctx, event.IntentID)
	if stderrors.Is(err, pkgerrors.ErrTransactionNotFound) {
		// An intent we never recorded. Retrying will not help the provider,
		// so acknowledge, but flag it: it can mean a crash between intent
		// creation and ledger insert.
		observability.WebhookEvents.WithLabelValues(event.Type, "unknown_intent").Inc()
		slog.Warn("webhook references unknown intent", "event_type", event.Type, "provider_intent_id", event.IntentID)
		s.publishAudit(ctx, "unknown_intent", nil, map[string]interface{}{
			"provider_intent_id": event.IntentID,
			"event_type":         event.Type,
		})
		return nil
	}
	if err != nil {
		observability.WebhookEvents.WithLabelValues(event.Type, "error").Inc()
		slog.Error("failed to look up transaction for webhook", "provider_intent_id", event.IntentID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "transaction lookup failed")
		return err
	}

	switch event.Kind {
	case payments.EventSucceeded:
		return s.reconcileSuccess(ctx, event, tx)
	case payments.EventCanceled:
		return s.reconcileCanceled(ctx, event, tx)
	default:
		observability.WebhookEvents.WithLabelValues(event.Type, "ignored").Inc()
		return nil
	}
}

func (s *paymentService) reconcileSuccess(ctx context.Context, event *payments.Event, tx *models.Transaction) error {
	applied, err := s.transactionRepo.TransitionToSuccess(ctx, tx.ID)
	if err != nil {
		observability.WebhookEvents.WithLabelValues(event.Type, "error").Inc()
		return err
	}
	if !applied {
		// Duplicate delivery or already canceled; the first delivery won.
		observability.WebhookEvents.WithLabelValues(event.Type, "duplicate").Inc()
		slog.Info("success event for terminal transaction ignored", "transaction_id", tx.ID, "provider_intent_id", tx.ProviderIntentID)
		return nil
	}

	// Credit amount comes from the ledger row, never from the event: the
	// event is a trigger, not a data source.
	newBalance, err := s.userRepo.AddCredits(ctx, tx.UserID, tx.Credits)
	if err != nil {
		observability.WebhookEvents.WithLabelValues(event.Type, "error").Inc()
		slog.Error("transaction succeeded but credit application failed, needs manual reconciliation",
			"transaction_id", tx.ID, "user_id", tx.UserID, "credits", tx.Credits, "error", err)
		return err
	}

	if err := s.redisClient.Del(ctx, fmt.Sprintf("user:%d:credits", tx.UserID)); err != nil {
		slog.Error("failed to invalidate credits cache", "user_id", tx.UserID, "error", err)
	}

	observability.WebhookEvents.WithLabelValues(event.Type, "applied").Inc()
	s.publishAudit(ctx, "payment_succeeded", tx, map[string]interface{}{"new_balance": newBalance})

	slog.Info("payment reconciled, credits applied", "transaction_id", tx.ID, "user_id", tx.UserID, "credits", tx.Credits, "new_balance", newBalance)
	return nil
}

func (s *paymentService) reconcileCanceled(ctx context.Context, event *payments.Event, tx *models.Transaction) error {
	applied, err := s.transactionRepo.TransitionToCanceled(ctx, tx.ID)
	if err != nil {
		observability.WebhookEvents.WithLabelValues(event.Type, "error").Inc()
		return err
	}
	if !applied {
		observability.WebhookEvents.WithLabelValues(event.Type, "duplicate").Inc()
		slog.Info("cancel event for terminal transaction ignored", "transaction_id", tx.ID, "provider_intent_id", tx.ProviderIntentID)
		return nil
	}

	observability.WebhookEvents.WithLabelValues(event.Type, "applied").Inc()
	s.publishAudit(ctx, "payment_canceled", tx, nil)

	slog.Info("payment canceled", "transaction_id", tx.ID, "user_id", tx.UserID, "provider_intent_id", tx.ProviderIntentID)
	return nil
}

// publishAudit sends a best-effort event to the payments topic. Audit
// delivery failures are logged, never surfaced: reconciliation outcome must
// not depend on the broker.
func (s *paymentService) publishAudit(ctx context.Context, eventType string, tx *models.Transaction, extra map[string]interface{}) {
	event := map[string]interface{}{
		"event_type": eventType,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}
	key := eventType
	if tx != nil {
		event["transaction_id"] = tx.ID
		event["user_id"] = tx.UserID
		event["plan"] = tx.Plan
		event["amount_cents"] = tx.AmountCents
		event["credits"] = tx.Credits
		event["provider_intent_id"] = tx.ProviderIntentID
		key = tx.ProviderIntentID
	}
	for k, v := range extra {
		event[k] = v
		if k == "provider_intent_id" {
			key = v.(string)
		}
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal audit event", "event_type", eventType, "error", err)
		return
	}
	if err := s.kafkaProducer.Send(ctx, paymentsTopic, key, eventBytes); err != nil {
		slog.Error("failed to send audit event", "event_type", eventType, "error", err)
	}
}
