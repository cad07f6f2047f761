package repository

import (
	"context"

	"github.com/nbylich/creditflow/internal/models"
)

type TransactionRepository interface {
	Create(ctx context.Context, tx *models.Transaction) (int64, error)
	GetByIntentID(ctx context.Context, intentID string) (*models.Transaction, error)
	TransitionToSuccess(ctx context.Context, id int64) (bool, error)
	TransitionToCanceled(ctx context.Context, id int64) (bool, error)
}
