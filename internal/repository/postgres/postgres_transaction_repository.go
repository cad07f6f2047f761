package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/nbylich/creditflow/internal/infrastructure/observability"
	"github.com/nbylich/creditflow/internal/models"
	pkgerrors "github.com/nbylich/creditflow/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type PostgresTransactionRepository struct {
	db *sql.DB
}

func NewPostgresTransactionRepository(db *sql.DB) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{db: db}
}

func (r *PostgresTransactionRepository) Create(ctx context.Context, tx *models.Transaction) (int64, error) {
	var err error
	tracer := otel.Tracer("transaction-repository")
	ctx, span := tracer.Start(ctx, "CreateTransaction")
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("CreateTransaction", status).Inc()
		observability.RepositoryDuration.WithLabelValues("CreateTransaction").Observe(time.Since(start).Seconds())
	}()

	if tx == nil {
		err = pkgerrors.ErrNilTransaction
		slog.Error("failed to create transaction", "method", "Create", "error", err)
		return 0, err
	}

	if tx.Plan != models.PlanBasic && tx.Plan != models.PlanAdvanced && tx.Plan != models.PlanBusiness {
		err = pkgerrors.ErrUnknownPlan
		slog.Error("invalid plan", "method", "Create", "plan", tx.Plan, "error", err)
		return 0, err
	}

	if tx.AmountCents <= 0 || tx.Credits <= 0 {
		err = fmt.Errorf("amount and credits must be positive")
		slog.Error("amount and credits must be positive", "method", "Create", "amount_cents", tx.AmountCents, "credits", tx.Credits, "error", err)
		return 0, err
	}

	if tx.ProviderIntentID == "" {
		err = fmt.Errorf("provider intent id is required")
		slog.Error("provider intent id is required", "method", "Create", "error", err)
		return 0, err
	}

	span.SetAttributes(
		attribute.Int64("user_id", tx.UserID),
		attribute.String("plan", string(tx.Plan)),
		attribute.Int64("amount_cents", tx.AmountCents),
		attribute.Int64("credits", tx.Credits),
		attribute.String("provider_intent_id", tx.ProviderIntentID),
	)

	// Rows are always born pending; the reconciler is the only writer of
	// terminal states.
	query := `INSERT INTO transactions (user_id, plan, amount_cents, credits, provider_intent_id, status) VALUES ($1, $2, $3, $4, $5, 'pending') RETURNING id, created_at`
	var txID int64
	var createdAt time.Time
	err = r.db.QueryRowContext(ctx, query, tx.UserID, tx.Plan, tx.AmountCents, tx.Credits, tx.ProviderIntentID).Scan(&txID, &createdAt)
	if err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			slog.Error("duplicate provider intent id", "method", "Create", "provider_intent_id", tx.ProviderIntentID, "error", err)
			err = pkgerrors.ErrDuplicateIntent
			return 0, err
		}
		slog.Error("failed to create transaction", "method", "Create", "user_id", tx.UserID, "plan", tx.Plan, "provider_intent_id", tx.ProviderIntentID, "error", err)
		return 0, fmt.Errorf("failed to create transaction: %w", err)
	}

	tx.ID = txID
	tx.Status = models.StatusPending
	tx.CreatedAt = createdAt
	slog.Info("transaction created", "method", "Create", "id", tx.ID, "user_id", tx.UserID, "plan", tx.Plan, "provider_intent_id", tx.ProviderIntentID)
	return txID, nil
}

func (r *PostgresTransactionRepository) GetByIntentID(ctx context.Context, intentID string) (*models.Transaction, error) {
	var err error
	tracer := otel.Tracer("transaction-repository")
	ctx, span := tracer.Start(ctx, "GetTransactionByIntentID")
	span.SetAttributes(attribute.String("provider_intent_id", intentID))
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("GetTransactionByIntentID", status).Inc()
		observability.RepositoryDuration.WithLabelValues("GetTransactionByIntentID").Observe(time.Since(start).Seconds())
	}()

	var tx models.Transaction
	query := `SELECT id, user_id, plan, amount_cents, credits, provider_intent_id, status, created_at FROM transactions WHERE provider_intent_id = $1`
	err = r.db.QueryRowContext(ctx, query, intentID).Scan(&tx.ID, &tx.UserID, &tx.Plan, &tx.AmountCents, &tx.Credits, &tx.ProviderIntentID, &tx.Status, &tx.CreatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		slog.Warn("transaction not found", "method", "GetByIntentID", "provider_intent_id", intentID)
		err = pkgerrors.ErrTransactionNotFound
		return nil, err
	}
	if err != nil {
		slog.Error("failed to get transaction by intent id", "method", "GetByIntentID", "provider_intent_id", intentID, "error", err)
		return nil, fmt.Errorf("failed to get transaction by intent id: %w", err)
	}

	return &tx, nil
}

func (r *PostgresTransactionRepository) TransitionToSuccess(ctx context.Context, id int64) (bool, error) {
	return r.transition(ctx, "TransitionToSuccess", id, models.StatusSuccess)
}

func (r *PostgresTransactionRepository) TransitionToCanceled(ctx context.Context, id int64) (bool, error) {
	return r.transition(ctx, "TransitionToCanceled", id, models.StatusCanceled)
}

// transition is a compare-and-set from pending to a terminal state. The
// status check lives inside the UPDATE itself so two concurrent webhook
// deliveries for the same transaction cannot both observe pending: exactly
// one caller gets a row count of 1. Terminal states never change again.
func (r *PostgresTransactionRepository) transition(ctx context.Context, method string, id int64, to models.StatusType) (bool, error) {
	var err error
	tracer := otel.Tracer("transaction-repository")
	ctx, span := tracer.Start(ctx, method)
	span.SetAttributes(
		attribute.Int64("transaction_id", id),
		attribute.String("to_status", string(to)),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues(method, status).Inc()
		observability.RepositoryDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}()

	if to != models.StatusSuccess && to != models.StatusCanceled {
		err = pkgerrors.ErrInvalidStatus
		slog.Error("invalid target status", "method", method, "status", to, "error", err)
		return false, err
	}

	query := `UPDATE transactions SET status = $1 WHERE id = $2 AND status = 'pending'`
	result, err := r.db.ExecContext(ctx, query, to, id)
	if err != nil {
		slog.Error("failed to transition transaction", "method", method, "transaction_id", id, "to_status", to, "error", err)
		return false, fmt.Errorf("failed to transition transaction: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Error("failed to read affected rows", "method", method, "transaction_id", id, "error", err)
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		slog.Info("transaction already terminal, transition skipped", "method", method, "transaction_id", id, "to_status", to)
		return false, nil
	}

	slog.Info("transaction transitioned", "method", method, "transaction_id", id, "to_status", to)
	return true, nil
}
