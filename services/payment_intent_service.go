package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/yashrajoria/checkout-service/common/errors"
	"github.com/yashrajoria/checkout-service/models"
	"github.com/yashrajoria/checkout-service/providers"
	"github.com/yashrajoria/checkout-service/repository"
	"go.uber.org/zap"
)

const (
	finalizeAttempts = 3
	finalizeBackoff  = 20 * time.Millisecond
)

// ConfirmOutcome describes a payment intent that was charged.
type ConfirmOutcome struct {
	PaymentIntentID string
	Amount          int64
	Currency        string
}

// PaymentIntentService owns the single in-progress payment intent of a user.
//
// A record moves INITIATED -> SUCCEEDED when a confirmation succeeds. When a
// confirmation fails the record stays INITIATED but points at a fresh
// placeholder intent, so the next checkout attempt can size and confirm it
// without running setup again.
type PaymentIntentService interface {
	EnsureSetupIntent(ctx context.Context, user *models.User) (*models.PaymentIntentRecord, *apperrors.Error)
	SizeAndConfirm(ctx context.Context, user *models.User, rec *models.PaymentIntentRecord, total int64, currency, paymentMethodID string) (*ConfirmOutcome, *apperrors.Error)
	Cancel(ctx context.Context, user *models.User, setupIntentID string) *apperrors.Error
	ListSavedMethods(ctx context.Context, user *models.User) ([]models.PaymentMethodView, *apperrors.Error)
}

type paymentIntentServiceImpl struct {
	intents           repository.PaymentIntentRepository
	carts             repository.CartRepository
	ledger            repository.PaymentRepository
	processor         providers.PaymentProcessor
	currency          CurrencyService
	locker            repository.CheckoutLocker
	placeholderAmount int64
	logger            *zap.Logger
	now               func() time.Time
}

func NewPaymentIntentService(
	intents repository.PaymentIntentRepository,
	carts repository.CartRepository,
	ledger repository.PaymentRepository,
	processor providers.PaymentProcessor,
	currency CurrencyService,
	locker repository.CheckoutLocker,
	placeholderAmount int64,
	logger *zap.Logger,
) PaymentIntentService {
	return &paymentIntentServiceImpl{
		intents:           intents,
		carts:             carts,
		ledger:            ledger,
		processor:         processor,
		currency:          currency,
		locker:            locker,
		placeholderAmount: placeholderAmount,
		logger:            logger,
		now:               time.Now,
	}
}

// EnsureSetupIntent returns the user's INITIATED record, creating the setup
// and payment intents on first use.
func (s *paymentIntentServiceImpl) EnsureSetupIntent(ctx context.Context, user *models.User) (*models.PaymentIntentRecord, *apperrors.Error) {
	if user.StripeID == "" {
		return nil, apperrors.New(http.StatusBadRequest, apperrors.ValidationError, "User has no payment customer", nil)
	}

	var rec *models.PaymentIntentRecord
	appErr := withUserLock(ctx, s.locker, s.logger, user.ID, func() *apperrors.Error {
		var err *apperrors.Error
		rec, err = s.ensureSetupIntent(ctx, user)
		return err
	})
	return rec, appErr
}

func (s *paymentIntentServiceImpl) ensureSetupIntent(ctx context.Context, user *models.User) (*models.PaymentIntentRecord, *apperrors.Error) {
	existing, err := s.intents.FindInitiated(ctx, user.ID)
	switch {
	case err == nil:
		return s.refreshSetupIntent(ctx, user, existing)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, apperrors.Internal(err)
	}

	cart, err := s.carts.FindByUserID(ctx, user.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("cart")
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	currency := user.Currency()
	var amount int64
	for _, item := range cart.Items {
		amount += convertItem(ctx, s.currency, item, currency, item.LineTotal())
	}
	if amount <= 0 {
		amount = s.placeholderAmount
	}

	si, err := s.processor.CreateSetupIntent(ctx, user.StripeID)
	if err != nil {
		s.logger.Error("Failed to create setup intent", zap.String("user_id", user.ID), zap.Error(err))
		return nil, apperrors.Internal(err)
	}
	pi, err := s.processor.CreatePaymentIntent(ctx, user.StripeID, amount, currency, "")
	if err != nil {
		s.logger.Error("Failed to create payment intent", zap.String("user_id", user.ID), zap.Error(err))
		return nil, apperrors.Internal(err)
	}

	rec := &models.PaymentIntentRecord{
		UserID:          user.ID,
		SetupIntentID:   si.ID,
		PaymentIntentID: pi.ID,
		ClientSecret:    si.ClientSecret,
		Status:          models.PaymentIntentInitiated,
		InitiationDate:  s.now().UTC(),
	}
	if err := s.intents.Create(ctx, rec); err != nil {
		return nil, apperrors.Internal(err)
	}

	s.logger.Info("Payment intent initiated",
		zap.String("user_id", user.ID),
		zap.String("payment_intent_id", pi.ID),
		zap.Int64("amount", amount),
		zap.String("currency", currency),
	)
	return rec, nil
}

// refreshSetupIntent mints a new setup intent when the stored one was
// already completed by the client, keeping the same payment intent.
func (s *paymentIntentServiceImpl) refreshSetupIntent(ctx context.Context, user *models.User, rec *models.PaymentIntentRecord) (*models.PaymentIntentRecord, *apperrors.Error) {
	current, err := s.processor.GetSetupIntent(ctx, rec.SetupIntentID)
	if err != nil {
		s.logger.Error("Failed to retrieve setup intent", zap.String("setup_intent_id", rec.SetupIntentID), zap.Error(err))
		return nil, apperrors.Internal(err)
	}

	if current.Status == providers.SetupIntentSucceeded {
		fresh, err := s.processor.CreateSetupIntent(ctx, user.StripeID)
		if err != nil {
			s.logger.Error("Failed to create setup intent", zap.String("user_id", user.ID), zap.Error(err))
			return nil, apperrors.Internal(err)
		}
		rec.SetupIntentID = fresh.ID
		rec.ClientSecret = fresh.ClientSecret
	}
	rec.InitiationDate = s.now().UTC()

	if err := s.intents.Update(ctx, rec); err != nil {
		return nil, apperrors.Internal(err)
	}
	return rec, nil
}

// SizeAndConfirm charges total on the record's payment intent. Only a
// succeeded confirmation marks the record SUCCEEDED; card declines and
// non-success statuses move the record onto a placeholder intent first.
func (s *paymentIntentServiceImpl) SizeAndConfirm(ctx context.Context, user *models.User, rec *models.PaymentIntentRecord, total int64, currency, paymentMethodID string) (*ConfirmOutcome, *apperrors.Error) {
	intentID := rec.PaymentIntentID

	_, err := s.processor.UpdatePaymentIntent(ctx, intentID, providers.PaymentIntentUpdate{
		Amount:          total,
		Currency:        currency,
		CustomerID:      user.StripeID,
		PaymentMethodID: paymentMethodID,
	})
	if err != nil {
		return nil, s.confirmFailure(ctx, user, rec, total, currency, err)
	}

	pi, err := s.processor.ConfirmPaymentIntent(ctx, intentID, paymentMethodID)
	if err != nil {
		return nil, s.confirmFailure(ctx, user, rec, total, currency, err)
	}

	if pi.Status != providers.PaymentIntentSucceeded {
		appErr := apperrors.New(http.StatusBadRequest, apperrors.PaymentNotCompleted, "",
			fmt.Errorf("payment intent %s ended in status %s", intentID, pi.Status))
		s.logger.Warn("Payment not completed",
			zap.String("user_id", user.ID),
			zap.String("payment_intent_id", intentID),
			zap.String("status", pi.Status),
		)
		s.replaceWithPlaceholder(ctx, user, rec, currency)
		s.recordAttempt(ctx, user.ID, intentID, total, currency, models.PaymentStatusFailed, appErr, "")
		return nil, appErr
	}

	now := s.now().UTC()
	rec.Status = models.PaymentIntentSucceeded
	rec.EndDate = &now
	s.recordAttempt(ctx, user.ID, intentID, total, currency, models.PaymentStatusSucceeded, nil, "")
	// The charge has been captured, so a record that cannot be finalized
	// must not stop the orders from being committed.
	if err := s.finalize(ctx, rec); err != nil {
		s.logger.Error("Payment succeeded but the intent record was not finalized",
			zap.String("user_id", user.ID),
			zap.String("payment_intent_id", intentID),
			zap.Int("attempts", finalizeAttempts),
			zap.Error(err),
		)
	}

	return &ConfirmOutcome{PaymentIntentID: intentID, Amount: total, Currency: currency}, nil
}

// finalize persists a SUCCEEDED record, retrying transient store errors.
func (s *paymentIntentServiceImpl) finalize(ctx context.Context, rec *models.PaymentIntentRecord) error {
	var err error
	for attempt := 1; attempt <= finalizeAttempts; attempt++ {
		if err = s.intents.Update(ctx, rec); err == nil {
			return nil
		}
		if attempt == finalizeAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Duration(attempt) * finalizeBackoff):
		}
	}
	return err
}

func (s *paymentIntentServiceImpl) confirmFailure(ctx context.Context, user *models.User, rec *models.PaymentIntentRecord, total int64, currency string, err error) *apperrors.Error {
	var decline *providers.DeclineError
	if !errors.As(err, &decline) {
		s.logger.Error("Payment confirmation failed",
			zap.String("user_id", user.ID),
			zap.String("payment_intent_id", rec.PaymentIntentID),
			zap.Error(err),
		)
		return apperrors.Internal(err)
	}

	failedID := rec.PaymentIntentID
	appErr := declinedError(decline)
	code := decline.DeclineCode
	if code == "" {
		code = decline.Code
	}
	s.logger.Warn("Card declined",
		zap.String("user_id", user.ID),
		zap.String("payment_intent_id", failedID),
		zap.String("decline_code", code),
	)

	s.replaceWithPlaceholder(ctx, user, rec, currency)
	s.recordAttempt(ctx, user.ID, failedID, total, currency, models.PaymentStatusDeclined, appErr, code)
	return appErr
}

// replaceWithPlaceholder points rec at a new minimal intent. The processor
// idempotency key is derived from the failed intent, so a retried recovery
// reuses the same placeholder.
func (s *paymentIntentServiceImpl) replaceWithPlaceholder(ctx context.Context, user *models.User, rec *models.PaymentIntentRecord, currency string) {
	failedID := rec.PaymentIntentID

	pi, err := s.processor.CreatePaymentIntent(ctx, user.StripeID, s.placeholderAmount, currency, "placeholder-"+failedID)
	if err != nil {
		s.logger.Error("Failed to create placeholder payment intent",
			zap.String("user_id", user.ID),
			zap.String("failed_payment_intent_id", failedID),
			zap.Error(err),
		)
		return
	}

	rec.PaymentIntentID = pi.ID
	if err := s.intents.Update(ctx, rec); err != nil {
		s.logger.Error("Failed to store placeholder payment intent",
			zap.String("user_id", user.ID),
			zap.String("payment_intent_id", pi.ID),
			zap.Error(err),
		)
		rec.PaymentIntentID = failedID
	}
}

func (s *paymentIntentServiceImpl) recordAttempt(ctx context.Context, userID, intentID string, amount int64, currency, status string, appErr *apperrors.Error, declineCode string) {
	now := s.now().UTC()
	attempt := &models.PaymentAttempt{
		UserID:          userID,
		PaymentIntentID: intentID,
		Amount:          amount,
		Currency:        currency,
		Status:          status,
	}
	if status == models.PaymentStatusSucceeded {
		attempt.SucceededAt = &now
	} else {
		attempt.FailedAt = &now
	}
	if appErr != nil {
		id := int(appErr.ErrorID)
		attempt.ErrorID = &id
	}
	if declineCode != "" {
		attempt.DeclineCode = &declineCode
	}

	if err := s.ledger.Create(ctx, attempt); err != nil {
		s.logger.Error("Failed to record payment attempt",
			zap.String("payment_intent_id", intentID),
			zap.String("status", status),
			zap.Error(err),
		)
	}
}

func (s *paymentIntentServiceImpl) Cancel(ctx context.Context, user *models.User, setupIntentID string) *apperrors.Error {
	rec, err := s.intents.FindBySetupIntent(ctx, setupIntentID, user.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("Payment intent")
	}
	if err != nil {
		return apperrors.Internal(err)
	}

	if err := s.intents.Delete(ctx, rec.ID); err != nil {
		return apperrors.Internal(err)
	}
	if err := s.processor.CancelPaymentIntent(ctx, rec.PaymentIntentID); err != nil {
		s.logger.Error("Failed to cancel payment intent",
			zap.String("payment_intent_id", rec.PaymentIntentID),
			zap.Error(err),
		)
		return apperrors.Internal(err)
	}
	return nil
}

func (s *paymentIntentServiceImpl) ListSavedMethods(ctx context.Context, user *models.User) ([]models.PaymentMethodView, *apperrors.Error) {
	if user.StripeID == "" {
		return nil, apperrors.NotFound("Payment methods")
	}

	methods, err := s.processor.ListCardMethods(ctx, user.StripeID)
	if err != nil {
		s.logger.Error("Failed to list payment methods", zap.String("user_id", user.ID), zap.Error(err))
		return nil, apperrors.Internal(err)
	}
	if len(methods) == 0 {
		return nil, apperrors.NotFound("Payment methods")
	}

	views := make([]models.PaymentMethodView, 0, len(methods))
	for _, m := range methods {
		views = append(views, models.PaymentMethodView{
			ID:             m.ID,
			Default:        false,
			Type:           m.Type,
			Brand:          m.Brand,
			Ending:         m.Last4,
			ExpirationDate: fmt.Sprintf("%02d/%d", m.ExpMonth, m.ExpYear),
		})
	}
	return views, nil
}

// withUserLock runs fn while holding the user's checkout lock.
func withUserLock(ctx context.Context, locker repository.CheckoutLocker, logger *zap.Logger, userID string, fn func() *apperrors.Error) *apperrors.Error {
	release, err := locker.Acquire(ctx, userID)
	if errors.Is(err, repository.ErrLockHeld) {
		return apperrors.Conflict(apperrors.CheckoutInProgress)
	}
	if err != nil {
		return apperrors.Internal(err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Failed to release checkout lock", zap.String("user_id", userID), zap.Error(err))
		}
	}()
	return fn()
}
