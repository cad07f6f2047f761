package errors

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownPlan         = errors.New("unknown plan")
	ErrDuplicateIntent     = errors.New("payment intent already recorded")
	ErrPaymentProvider     = errors.New("payment provider request failed")
	ErrVerificationFailed  = errors.New("webhook signature verification failed")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrNilTransaction      = errors.New("transaction is nil")
	ErrInvalidStatus       = errors.New("invalid transaction status")
	ErrUserNotFound        = errors.New("user not found")
	ErrNilUser             = errors.New("user is nil")
	ErrInvalidCredentials  = fmt.Errorf("invalid credentials")
	ErrUsernameExists      = fmt.Errorf("username already exists")
	ErrInternal            = fmt.Errorf("internal error")
	ErrInvalidInput        = fmt.Errorf("ErrInvalidInput")
)
