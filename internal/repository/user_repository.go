package repository

import (
	"context"

	"github.com/nbylich/creditflow/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	AddCredits(ctx context.Context, userID, delta int64) (newBalance int64, err error)
	GetCredits(ctx context.Context, userID int64) (int64, error)
}
