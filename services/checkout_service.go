package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/yashrajoria/checkout-service/common/errors"
	"github.com/yashrajoria/checkout-service/models"
	aws_pkg "github.com/yashrajoria/checkout-service/pkg/aws"
	"github.com/yashrajoria/checkout-service/repository"
	"go.uber.org/zap"
)

// CheckoutService turns a user's cart into paid orders.
type CheckoutService interface {
	// PlaceOrder runs the whole checkout. A non-empty idempotencyKey replays
	// the outcome of an earlier successful call with the same key and body.
	PlaceOrder(ctx context.Context, user *models.User, req *models.PlaceOrderRequest, idempotencyKey string) (*models.PlaceOrderOutcome, *apperrors.Error)
}

// CheckoutDeps groups the collaborators of the checkout service.
type CheckoutDeps struct {
	Carts       repository.CartRepository
	Addresses   repository.AddressRepository
	Intents     repository.PaymentIntentRepository
	Ledger      repository.PaymentRepository
	Committer   repository.OrderCommitter
	Locker      repository.CheckoutLocker
	Idempotency repository.IdempotencyStore
	Aggregator  CartAggregator
	Taxes       TaxService
	Payments    PaymentIntentService
	SNSClient   aws_pkg.SNSPublisher
	SNSTopicArn string
	Metrics     *aws_pkg.MetricsClient
	Logger      *zap.Logger
}

type checkoutServiceImpl struct {
	CheckoutDeps
	now func() time.Time
}

func NewCheckoutService(deps CheckoutDeps) CheckoutService {
	return &checkoutServiceImpl{CheckoutDeps: deps, now: time.Now}
}

func (s *checkoutServiceImpl) PlaceOrder(ctx context.Context, user *models.User, req *models.PlaceOrderRequest, idempotencyKey string) (*models.PlaceOrderOutcome, *apperrors.Error) {
	idemKey, reqHash := "", ""
	if idempotencyKey != "" {
		idemKey = user.ID + ":" + idempotencyKey
		reqHash = requestHash(req)
		outcome, appErr := s.replay(ctx, idemKey, reqHash)
		if appErr != nil || outcome != nil {
			return outcome, appErr
		}
	}

	var outcome *models.PlaceOrderOutcome
	appErr := withUserLock(ctx, s.Locker, s.Logger, user.ID, func() *apperrors.Error {
		var err *apperrors.Error
		outcome, err = s.placeOrder(ctx, user, req)
		return err
	})
	if appErr != nil {
		return nil, appErr
	}

	if idemKey != "" {
		if body, err := json.Marshal(idempotentCheckout{RequestHash: reqHash, Outcome: outcome}); err == nil {
			if err := s.Idempotency.SetIdempotency(ctx, idemKey, string(body)); err != nil {
				s.Logger.Warn("Failed to store checkout idempotency key", zap.String("user_id", user.ID), zap.Error(err))
			}
		}
	}
	return outcome, nil
}

// idempotentCheckout is the value stored under an idempotency key.
type idempotentCheckout struct {
	RequestHash string                    `json:"request_hash"`
	Outcome     *models.PlaceOrderOutcome `json:"outcome"`
}

func requestHash(req *models.PlaceOrderRequest) string {
	body, _ := json.Marshal(req)
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// replay returns the stored outcome for key. A key stored for a different
// request body is rejected instead of replayed.
func (s *checkoutServiceImpl) replay(ctx context.Context, key, reqHash string) (*models.PlaceOrderOutcome, *apperrors.Error) {
	stored, err := s.Idempotency.GetIdempotency(ctx, key)
	if err != nil {
		s.Logger.Warn("Failed to read checkout idempotency key", zap.Error(err))
		return nil, nil
	}
	if stored == "" {
		return nil, nil
	}
	var rec idempotentCheckout
	if err := json.Unmarshal([]byte(stored), &rec); err != nil || rec.Outcome == nil {
		s.Logger.Warn("Discarding unreadable idempotent checkout outcome", zap.Error(err))
		return nil, nil
	}
	if rec.RequestHash != reqHash {
		return nil, apperrors.New(http.StatusUnprocessableEntity, apperrors.IdempotencyKeyReused, "",
			errors.New("idempotency key reused with a different request body"))
	}
	return rec.Outcome, nil
}

func (s *checkoutServiceImpl) placeOrder(ctx context.Context, user *models.User, req *models.PlaceOrderRequest) (*models.PlaceOrderOutcome, *apperrors.Error) {
	start := s.now()

	// Preconditions, before anything is sent to the processor.
	cart, err := s.Carts.FindByUserID(ctx, user.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("cart")
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	address, err := s.Addresses.FindForUser(ctx, req.ShippingAddress, user.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("address")
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	rec, err := s.Intents.FindInitiated(ctx, user.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("payment intent")
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	orders, appErr := s.Aggregator.BuildDraftOrders(ctx, cart, user, DraftInput{
		Contact:           req.ContactInfo,
		ShippingAddressID: req.ShippingAddress,
		PaymentMethodID:   req.PaymentMethod,
		PaymentIntentID:   rec.PaymentIntentID,
	})
	if appErr != nil {
		return nil, appErr
	}

	for _, order := range orders {
		if err := s.Taxes.AttachTax(ctx, order, address); err != nil {
			s.Logger.Error("Tax calculation failed", zap.String("user_id", user.ID), zap.String("store_id", order.StoreID), zap.Error(err))
			return nil, apperrors.New(http.StatusBadGateway, apperrors.TaxCalculationFailed, "", err)
		}
	}

	var total int64
	for _, order := range orders {
		total += order.Summary.TotalAmount
	}
	currency := user.Currency()

	confirmed, appErr := s.Payments.SizeAndConfirm(ctx, user, rec, total, currency, req.PaymentMethod)
	if appErr != nil {
		s.paymentFailed(ctx, user, rec.PaymentIntentID, appErr)
		return nil, appErr
	}

	if err := s.Committer.Commit(ctx, user.ID, orders); err != nil {
		s.Logger.Error("Payment captured but orders were not committed",
			zap.String("user_id", user.ID),
			zap.String("payment_intent_id", confirmed.PaymentIntentID),
			zap.Int64("amount", total),
			zap.Error(err),
		)
		_ = s.Metrics.RecordCount(ctx, aws_pkg.MetricOrderCommitFailed, nil)
		return nil, apperrors.New(http.StatusInternalServerError, apperrors.OrderCommitFailed, "", err)
	}

	s.ordersPlaced(ctx, user, confirmed, orders)
	_ = s.Metrics.RecordLatency(ctx, aws_pkg.MetricCheckoutLatency, s.now().Sub(start), nil)

	return &models.PlaceOrderOutcome{
		Orders:          orders,
		PaymentIntentID: confirmed.PaymentIntentID,
		TotalAmount:     total,
		Currency:        currency,
	}, nil
}

// ordersPlaced runs the best-effort follow ups of a committed checkout.
func (s *checkoutServiceImpl) ordersPlaced(ctx context.Context, user *models.User, confirmed *ConfirmOutcome, orders []*models.Order) {
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	if err := s.Ledger.UpdateByPaymentIntentID(ctx, confirmed.PaymentIntentID, map[string]interface{}{
		"order_ids": strings.Join(ids, ","),
	}); err != nil {
		s.Logger.Warn("Failed to link orders to payment attempt", zap.String("payment_intent_id", confirmed.PaymentIntentID), zap.Error(err))
	}

	_ = s.Metrics.RecordCount(ctx, aws_pkg.MetricPaymentSucceeded, nil)
	_ = s.Metrics.RecordValue(ctx, aws_pkg.MetricOrdersCreated, float64(len(orders)), nil)

	for _, o := range orders {
		s.publish(ctx, models.EventOrderPlaced, models.OrderPlacedEvent{
			EventType:       models.EventOrderPlaced,
			OrderID:         o.ID,
			StoreID:         o.StoreID,
			UserID:          user.ID,
			PaymentIntentID: confirmed.PaymentIntentID,
			TotalAmount:     o.Summary.TotalAmount,
			Currency:        o.Summary.Currency,
			Timestamp:       s.now().UTC(),
		})
	}

	s.Logger.Info("Orders placed",
		zap.String("user_id", user.ID),
		zap.String("payment_intent_id", confirmed.PaymentIntentID),
		zap.Strings("order_ids", ids),
		zap.Int64("amount", confirmed.Amount),
		zap.String("currency", confirmed.Currency),
	)
}

func (s *checkoutServiceImpl) paymentFailed(ctx context.Context, user *models.User, intentID string, appErr *apperrors.Error) {
	metric := aws_pkg.MetricPaymentFailed
	if appErr.ErrorID >= apperrors.UnrecognizedDecline && appErr.ErrorID < apperrors.PaymentNotCompleted {
		metric = aws_pkg.MetricPaymentDeclined
	}
	_ = s.Metrics.RecordCount(ctx, metric, map[string]string{"ErrorID": strconv.Itoa(int(appErr.ErrorID))})

	s.publish(ctx, models.EventPaymentFailed, models.PaymentFailedEvent{
		EventType:       models.EventPaymentFailed,
		UserID:          user.ID,
		PaymentIntentID: intentID,
		ErrorID:         int(appErr.ErrorID),
		Reason:          appErr.Message,
		Timestamp:       s.now().UTC(),
	})
}

func (s *checkoutServiceImpl) publish(ctx context.Context, eventType string, event interface{}) {
	if s.SNSClient == nil || s.SNSTopicArn == "" {
		return
	}
	body, err := json.Marshal(event)
	if err != nil {
		s.Logger.Error("Failed to marshal event", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	if err := s.SNSClient.PublishWithType(ctx, s.SNSTopicArn, eventType, body); err != nil {
		s.Logger.Warn("Failed to publish event", zap.String("event_type", eventType), zap.Error(err))
	}
}
