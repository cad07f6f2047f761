package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	stderrors "errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nbylich/creditflow/internal/infrastructure/kafka"
	"github.com/nbylich/creditflow/internal/infrastructure/redis"
	"github.com/nbylich/creditflow/internal/models"
	"github.com/nbylich/creditflow/internal/repository"
	pkgerrors "github.com/nbylich/creditflow/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/bcrypt"
)

const usersTopic = "users"

type UserService interface {
	Register(ctx context.Context, username, password string) (string, error)
	Login(ctx context.Context, username, password string) (string, error)
	GetCredits(ctx context.Context, userID int64) (int64, error)
}

type userService struct {
	userRepo      repository.UserRepository
	redisClient   redis.RedisClient
	kafkaProducer kafka.KafkaProducer
	jwtSecret     string
}

func NewUserService(
	userRepo repository.UserRepository,
	redisClient redis.RedisClient,
	kafkaProducer kafka.KafkaProducer,
	jwtSecret string,
) *userService {
	return &userService{
		userRepo:      userRepo,
		redisClient:   redisClient,
		kafkaProducer: kafkaProducer,
		jwtSecret:     jwtSecret,
	}
}

func (s *userService) Register(ctx context.Context, username, password string) (string, error) {
	tracer := otel.Tracer("user-service")
	ctx, span := tracer.Start(ctx, "Register")
	defer span.End()

	if username == "" || password == "" {
		span.SetStatus(codes.Error, "empty username or password")
		return "", pkgerrors.ErrInvalidInput
	}

	existingUser, err := s.userRepo.GetByUsername(ctx, username)
	if existingUser != nil {
		span.SetStatus(codes.Error, "username already exists")
		slog.Warn("username already exists",
			"username", username,
			"existing_id", existingUser.ID)
		return "", pkgerrors.ErrUsernameExists
	}
	if err != nil && !stderrors.Is(err, pkgerrors.ErrUserNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user check failed")
		slog.Error("failed to check user existence",
			"username", username,
			"error", err)
		return "", fmt.Errorf("%w: failed to check user existence", pkgerrors.ErrInternal)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "password hashing failed")
		slog.Error("failed to hash password",
			"username", username,
			"error", err)
		return "", fmt.Errorf("%w: failed to hash password", pkgerrors.ErrInternal)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: string(hash),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user creation failed")
		slog.Error("failed to create user in DB",
			"username", username,
			"error", err)
		return "", fmt.Errorf("%w: failed to create user", pkgerrors.ErrInternal)
	}

	event := map[string]interface{}{
		"event_type": "user_registered",
		"user_id":    user.ID,
		"username":   username,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}
	eventBytes, err := json.Marshal(event)
	if err != nil {
		span.RecordError(err)
		slog.Error("failed to marshal kafka event",
			"user_id", user.ID,
			"error", err)
	} else {
		go func() {
			retries := 3
			for i := 0; i < retries; i++ {
				if err := s.kafkaProducer.Send(context.Background(), usersTopic, strconv.FormatInt(user.ID, 10), eventBytes); err == nil {
					slog.Info("user registration event sent",
						"user_id", user.ID,
						"username", username)
					return
				}
				time.Sleep(time.Second * time.Duration(i+1))
			}
			slog.Error("failed to send user registration event after retries",
				"user_id", user.ID,
				"username", username)
		}()
	}

	slog.Info("user registered successfully",
		"user_id", user.ID,
		"username", username)

	return s.issueToken(ctx, user.ID)
}

func (s *userService) Login(ctx context.Context, username, password string) (string, error) {
	tracer := otel.Tracer("user-service")
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		slog.Error("failed to login", "username", username, "error", err)
		return "", pkgerrors.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Error("invalid password", "username", username)
		return "", pkgerrors.ErrInvalidCredentials
	}

	token, err := s.issueToken(ctx, user.ID)
	if err != nil {
		return "", err
	}

	slog.Info("user logged in", "username", username, "user_id", user.ID)
	return token, nil
}

func (s *userService) issueToken(ctx context.Context, userID int64) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		slog.Error("failed to generate JWT", "error", err)
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	if err := s.redisClient.Set(ctx, fmt.Sprintf("user:%d:token", userID), tokenString, time.Hour); err != nil {
		slog.Error("failed to cache JWT", "user_id", userID, "error", err)
	}

	return tokenString, nil
}

func (s *userService) GetCredits(ctx context.Context, userID int64) (int64, error) {
	tracer := otel.Tracer("user-service")
	ctx, span := tracer.Start(ctx, "GetCredits")
	defer span.End()

	creditsKey := fmt.Sprintf("user:%d:credits", userID)
	creditsStr, err := s.redisClient.Get(ctx, creditsKey)
	if err == nil {
		balance, err := strconv.ParseInt(creditsStr, 10, 64)
		if err != nil {
			slog.Error("failed to parse cached credits", "user_id", userID, "value", creditsStr, "error", err)
		} else {
			return balance, nil
		}
	}

	balance, err := s.userRepo.GetCredits(ctx, userID)
	if err != nil {
		slog.Error("failed to get credits from Postgres", "user_id", userID, "error", err)
		return 0, fmt.Errorf("failed to get credits: %w", err)
	}

	if err := s.redisClient.Set(ctx, creditsKey, balance, 5*time.Minute); err != nil {
		slog.Error("failed to cache credits", "user_id", userID, "error", err)
	}

	return balance, nil
}
