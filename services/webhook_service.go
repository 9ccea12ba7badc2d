package services

import (
	"context"
	"errors"
	"time"

	"github.com/yashrajoria/checkout-service/models"
	"github.com/yashrajoria/checkout-service/providers"
	"github.com/yashrajoria/checkout-service/repository"
	"go.uber.org/zap"
)

const (
	EventPaymentIntentSucceeded = "payment_intent.succeeded"
	EventPaymentIntentFailed    = "payment_intent.payment_failed"
)

// WebhookService reconciles the payment ledger with processor notifications.
type WebhookService interface {
	HandleEvent(ctx context.Context, ev *providers.WebhookEvent) error
}

type webhookServiceImpl struct {
	ledger repository.PaymentRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewWebhookService(ledger repository.PaymentRepository, logger *zap.Logger) WebhookService {
	return &webhookServiceImpl{
		ledger: ledger,
		logger: logger,
		now:    time.Now,
	}
}

// HandleEvent updates the ledger row of the event's payment intent. Unknown
// event types, unknown intents and rows already in a terminal state are
// skipped without error so the processor stops redelivering.
func (s *webhookServiceImpl) HandleEvent(ctx context.Context, ev *providers.WebhookEvent) error {
	var status string
	switch ev.Type {
	case EventPaymentIntentSucceeded:
		status = models.PaymentStatusSucceeded
	case EventPaymentIntentFailed:
		status = models.PaymentStatusFailed
	default:
		s.logger.Info("Unhandled webhook event type", zap.String("event_type", ev.Type))
		return nil
	}

	attempt, err := s.ledger.FindByPaymentIntentID(ctx, ev.PaymentIntentID)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("Payment attempt not found for webhook",
			zap.String("event_id", ev.ID),
			zap.String("payment_intent_id", ev.PaymentIntentID),
		)
		return nil
	}
	if err != nil {
		return err
	}

	if attempt.Terminal() {
		s.logger.Info("Skipping duplicate payment webhook",
			zap.String("payment_intent_id", ev.PaymentIntentID),
			zap.String("status", attempt.Status),
		)
		return nil
	}

	now := s.now().UTC()
	updates := map[string]interface{}{
		"status":               status,
		"stripe_event_payload": string(ev.Payload),
	}
	switch status {
	case models.PaymentStatusSucceeded:
		updates["succeeded_at"] = &now
		// Checkout already gave up on this intent and recorded no orders.
		s.logger.Error("Payment succeeded after checkout reported it as failed",
			zap.String("user_id", attempt.UserID),
			zap.String("payment_intent_id", ev.PaymentIntentID),
			zap.Int64("amount", ev.Amount),
			zap.String("currency", ev.Currency),
		)
	case models.PaymentStatusFailed:
		updates["failed_at"] = &now
		if ev.DeclineCode != "" {
			updates["decline_code"] = ev.DeclineCode
		}
	}

	return s.ledger.UpdateByPaymentIntentID(ctx, ev.PaymentIntentID, updates)
}
