package models

import "time"

type PaymentIntentStatus string

const (
	PaymentIntentInitiated PaymentIntentStatus = "INITIATED"
	PaymentIntentSucceeded PaymentIntentStatus = "SUCCEEDED"
)

// PaymentIntentRecord tracks the processor intents of one user's checkout.
// A user has at most one INITIATED record.
type PaymentIntentRecord struct {
	ID              string              `json:"-"`
	UserID          string              `json:"userId"`
	SetupIntentID   string              `json:"setupIntentId"`
	PaymentIntentID string              `json:"paymentIntentId"`
	ClientSecret    string              `json:"clientSecret"`
	Status          PaymentIntentStatus `json:"status"`
	InitiationDate  time.Time           `json:"initiationDate"`
	EndDate         *time.Time          `json:"endDate"`
}
