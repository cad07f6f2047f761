package models

import "time"

type Transaction struct {
	ID               int64      `json:"id"`
	UserID           int64      `json:"user_id"`
	Plan             Plan       `json:"plan"`
	AmountCents      int64      `json:"amount_cents"`
	Credits          int64      `json:"credits"`
	ProviderIntentID string     `json:"provider_intent_id"`
	Status           StatusType `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
}

type Plan string

const (
	PlanBasic    Plan = "basic"
	PlanAdvanced Plan = "advanced"
	PlanBusiness Plan = "business"
)

type StatusType string

const (
	StatusPending  StatusType = "pending"
	StatusSuccess  StatusType = "success"
	StatusCanceled StatusType = "canceled"
)
