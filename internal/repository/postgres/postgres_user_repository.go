package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nbylich/creditflow/internal/models"
	pkgerrors "github.com/nbylich/creditflow/pkg/errors"
)

type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Create(ctx context.Context, user *models.User) error {
	if user == nil {
		return pkgerrors.ErrNilUser
	}
	if user.Username == "" || user.PasswordHash == "" {
		return fmt.Errorf("username and password are required")
	}

	query := `
	INSERT INTO users (username, password_hash, credit_balance)
	VALUES ($1, $2, 0)
	RETURNING id, created_at
	`
	err := r.db.QueryRowContext(
		ctx,
		query,
		user.Username,
		user.PasswordHash,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// AddCredits applies the delta as a single atomic UPDATE. The balance is
// never read first; concurrent increments cannot lose each other and the
// store rejects any delta that would drive the balance negative.
func (r *PostgresUserRepository) AddCredits(ctx context.Context, userID, delta int64) (newBalance int64, err error) {
	query := `
		UPDATE users
		SET credit_balance = credit_balance + $1
		WHERE id = $2
		AND (credit_balance + $1) >= 0
		RETURNING credit_balance
		`

	err = r.db.QueryRowContext(ctx, query, delta, userID).Scan(&newBalance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("user %d not found or balance would go negative (delta: %d): %w", userID, delta, pkgerrors.ErrUserNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to add credits: %w", err)
	}
	return newBalance, nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT id, username, credit_balance FROM users WHERE id = $1`
	var user models.User
	err := r.db.QueryRowContext(ctx, query, id).Scan(&user.ID, &user.Username, &user.CreditBalance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return &user, nil
}

func (r *PostgresUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if username == "" {
		return nil, fmt.Errorf("username cannot be empty")
	}

	query := `SELECT id, username, password_hash, credit_balance, created_at FROM users WHERE username = $1`

	var user models.User

	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.CreditBalance,
		&user.CreatedAt,
	)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrUserNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}

	return &user, nil
}

func (r *PostgresUserRepository) GetCredits(ctx context.Context, userID int64) (int64, error) {
	var balance int64
	query := `SELECT credit_balance FROM users WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, pkgerrors.ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get credit balance: %w", err)
	}
	return balance, nil
}
