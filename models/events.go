package models

import "time"

const (
	EventOrderPlaced   = "order_placed"
	EventPaymentFailed = "payment_failed"
)

type OrderPlacedEvent struct {
	EventType       string    `json:"event_type"`
	OrderID         string    `json:"order_id"`
	StoreID         string    `json:"store_id"`
	UserID          string    `json:"user_id"`
	PaymentIntentID string    `json:"payment_intent_id"`
	TotalAmount     int64     `json:"total_amount"`
	Currency        string    `json:"currency"`
	Timestamp       time.Time `json:"timestamp"`
}

type PaymentFailedEvent struct {
	EventType       string    `json:"event_type"`
	UserID          string    `json:"user_id"`
	PaymentIntentID string    `json:"payment_intent_id"`
	ErrorID         int       `json:"error_id"`
	Reason          string    `json:"reason"`
	Timestamp       time.Time `json:"timestamp"`
}
