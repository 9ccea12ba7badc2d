package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
	PaymentStatusDeclined  = "declined"
)

// PaymentAttempt is the ledger row written for every confirmation attempt.
type PaymentAttempt struct {
	ID                 uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID             string    `gorm:"type:varchar(64);index;not null"`
	PaymentIntentID    string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	Amount             int64     `gorm:"not null"` // minor units
	Currency           string    `gorm:"type:varchar(10);not null"`
	Status             string    `gorm:"type:varchar(20);not null"`
	DeclineCode        *string   `gorm:"type:varchar(64)"`
	ErrorID            *int
	OrderIDs           *string `gorm:"type:text"` // comma separated
	StripeEventPayload *string `gorm:"type:jsonb"`
	SucceededAt        *time.Time
	FailedAt           *time.Time
	CreatedAt          time.Time      `gorm:"autoCreateTime"`
	UpdatedAt          time.Time      `gorm:"autoUpdateTime"`
	DeletedAt          gorm.DeletedAt `gorm:"index"`
}

// Terminal reports whether webhooks may no longer change the row.
func (p PaymentAttempt) Terminal() bool {
	return p.Status == PaymentStatusSucceeded || p.Status == PaymentStatusDeclined
}
