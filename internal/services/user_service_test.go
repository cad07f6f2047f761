package service

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nbylich/creditflow/internal/models"
	pkgerrors "github.com/nbylich/creditflow/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeUserStore struct {
	*fakeUsers
	byUsername map[string]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		fakeUsers:  newFakeUsers(),
		byUsername: make(map[string]*models.User),
	}
}

func (u *fakeUserStore) Create(ctx context.Context, user *models.User) error {
	user.ID = int64(len(u.byUsername) + 1)
	u.byUsername[user.Username] = user
	return nil
}

func (u *fakeUserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	user, ok := u.byUsername[username]
	if !ok {
		return nil, pkgerrors.ErrUserNotFound
	}
	return user, nil
}

func TestUserService_Login(t *testing.T) {
	ctx := context.Background()
	jwtSecret := "secret"

	t.Run("SuccessfulLogin", func(t *testing.T) {
		users := newFakeUserStore()
		hash, _ := bcrypt.GenerateFromPassword([]byte("testpass"), bcrypt.DefaultCost)
		users.byUsername["alice"] = &models.User{ID: 1, Username: "alice", PasswordHash: string(hash)}

		svc := NewUserService(users, newFakeRedis(), &fakeProducer{}, jwtSecret)
		token, err := svc.Login(ctx, "alice", "testpass")
		require.NoError(t, err)
		require.NotEmpty(t, token)

		parsed, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
			return []byte(jwtSecret), nil
		})
		require.NoError(t, err)
		claims := parsed.Claims.(jwt.MapClaims)
		assert.Equal(t, float64(1), claims["user_id"])
	})

	t.Run("WrongPassword", func(t *testing.T) {
		users := newFakeUserStore()
		hash, _ := bcrypt.GenerateFromPassword([]byte("testpass"), bcrypt.DefaultCost)
		users.byUsername["alice"] = &models.User{ID: 1, Username: "alice", PasswordHash: string(hash)}

		svc := NewUserService(users, newFakeRedis(), &fakeProducer{}, jwtSecret)
		token, err := svc.Login(ctx, "alice", "wrongpass")
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidCredentials)
		assert.Empty(t, token)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		svc := NewUserService(newFakeUserStore(), newFakeRedis(), &fakeProducer{}, jwtSecret)
		token, err := svc.Login(ctx, "nobody", "testpass")
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidCredentials)
		assert.Empty(t, token)
	})
}

func TestUserService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("NewUserGetsToken", func(t *testing.T) {
		users := newFakeUserStore()
		svc := NewUserService(users, newFakeRedis(), &fakeProducer{}, "secret")

		token, err := svc.Register(ctx, "bob", "pass123")
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.Contains(t, users.byUsername, "bob")
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		users := newFakeUserStore()
		users.byUsername["bob"] = &models.User{ID: 1, Username: "bob"}
		svc := NewUserService(users, newFakeRedis(), &fakeProducer{}, "secret")

		token, err := svc.Register(ctx, "bob", "pass123")
		assert.ErrorIs(t, err, pkgerrors.ErrUsernameExists)
		assert.Empty(t, token)
	})

	t.Run("EmptyInput", func(t *testing.T) {
		svc := NewUserService(newFakeUserStore(), newFakeRedis(), &fakeProducer{}, "secret")
		_, err := svc.Register(ctx, "", "")
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
	})
}

func TestUserService_GetCredits(t *testing.T) {
	ctx := context.Background()

	t.Run("FallsBackToStoreAndCaches", func(t *testing.T) {
		users := newFakeUserStore()
		users.balances[1] = 250
		redisClient := newFakeRedis()
		svc := NewUserService(users, redisClient, &fakeProducer{}, "secret")

		balance, err := svc.GetCredits(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(250), balance)
		assert.Equal(t, "250", redisClient.store["user:1:credits"])
	})

	t.Run("ReadsFromCache", func(t *testing.T) {
		users := newFakeUserStore()
		users.balances[1] = 250
		redisClient := newFakeRedis()
		redisClient.store["user:1:credits"] = "300"
		svc := NewUserService(users, redisClient, &fakeProducer{}, "secret")

		balance, err := svc.GetCredits(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(300), balance)
	})
}
