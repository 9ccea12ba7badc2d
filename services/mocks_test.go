package services

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/yashrajoria/checkout-service/models"
	"github.com/yashrajoria/checkout-service/providers"
	"github.com/yashrajoria/checkout-service/repository"
)

// --- Repository mocks ---

type MockCartRepository struct {
	mock.Mock
}

func (m *MockCartRepository) FindByUserID(ctx context.Context, userID string) (*models.Cart, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Cart), args.Error(1)
}

func (m *MockCartRepository) DeleteByUserID(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type MockAddressRepository struct {
	mock.Mock
}

func (m *MockAddressRepository) FindForUser(ctx context.Context, addressID, userID string) (*models.Address, error) {
	args := m.Called(ctx, addressID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Address), args.Error(1)
}

type MockPaymentIntentRepository struct {
	mock.Mock
}

func (m *MockPaymentIntentRepository) FindInitiated(ctx context.Context, userID string) (*models.PaymentIntentRecord, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentIntentRecord), args.Error(1)
}

func (m *MockPaymentIntentRepository) FindBySetupIntent(ctx context.Context, setupIntentID, userID string) (*models.PaymentIntentRecord, error) {
	args := m.Called(ctx, setupIntentID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentIntentRecord), args.Error(1)
}

func (m *MockPaymentIntentRepository) Create(ctx context.Context, rec *models.PaymentIntentRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockPaymentIntentRepository) Update(ctx context.Context, rec *models.PaymentIntentRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockPaymentIntentRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, attempt *models.PaymentAttempt) error {
	args := m.Called(ctx, attempt)
	return args.Error(0)
}

func (m *MockPaymentRepository) FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.PaymentAttempt, error) {
	args := m.Called(ctx, paymentIntentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentAttempt), args.Error(1)
}

func (m *MockPaymentRepository) UpdateByPaymentIntentID(ctx context.Context, paymentIntentID string, updates map[string]interface{}) error {
	args := m.Called(ctx, paymentIntentID, updates)
	return args.Error(0)
}

type MockConversionRateRepository struct {
	mock.Mock
}

func (m *MockConversionRateRepository) FindByBase(ctx context.Context, base string) (*models.ConversionRate, error) {
	args := m.Called(ctx, base)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConversionRate), args.Error(1)
}

func (m *MockConversionRateRepository) Upsert(ctx context.Context, rate *models.ConversionRate) error {
	args := m.Called(ctx, rate)
	return args.Error(0)
}

func (m *MockConversionRateRepository) FindStale(ctx context.Context, now time.Time) ([]*models.ConversionRate, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ConversionRate), args.Error(1)
}

// --- Provider mocks ---

type MockExchangeRateProvider struct {
	mock.Mock
}

func (m *MockExchangeRateProvider) Latest(ctx context.Context, base string) (*providers.RateSet, error) {
	args := m.Called(ctx, base)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.RateSet), args.Error(1)
}

type MockPaymentProcessor struct {
	mock.Mock
}

func (m *MockPaymentProcessor) CreateSetupIntent(ctx context.Context, customerID string) (*providers.SetupIntent, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.SetupIntent), args.Error(1)
}

func (m *MockPaymentProcessor) GetSetupIntent(ctx context.Context, id string) (*providers.SetupIntent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.SetupIntent), args.Error(1)
}

func (m *MockPaymentProcessor) CreatePaymentIntent(ctx context.Context, customerID string, amount int64, currency, idempotencyKey string) (*providers.PaymentIntent, error) {
	args := m.Called(ctx, customerID, amount, currency, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.PaymentIntent), args.Error(1)
}

func (m *MockPaymentProcessor) UpdatePaymentIntent(ctx context.Context, id string, upd providers.PaymentIntentUpdate) (*providers.PaymentIntent, error) {
	args := m.Called(ctx, id, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.PaymentIntent), args.Error(1)
}

func (m *MockPaymentProcessor) ConfirmPaymentIntent(ctx context.Context, id, paymentMethodID string) (*providers.PaymentIntent, error) {
	args := m.Called(ctx, id, paymentMethodID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.PaymentIntent), args.Error(1)
}

func (m *MockPaymentProcessor) CancelPaymentIntent(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPaymentProcessor) ListCardMethods(ctx context.Context, customerID string) ([]providers.PaymentMethod, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]providers.PaymentMethod), args.Error(1)
}

type MockTaxEngine struct {
	mock.Mock
}

func (m *MockTaxEngine) Calculate(ctx context.Context, req providers.TaxRequest) (*providers.TaxResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.TaxResult), args.Error(1)
}

// --- Hand fakes ---

// fakeLocker is an in-process CheckoutLocker.
type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	acquires int
	err      error
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]bool{}}
}

func (l *fakeLocker) Acquire(_ context.Context, userID string) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	if l.held[userID] {
		return nil, repository.ErrLockHeld
	}
	l.held[userID] = true
	l.acquires++
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, userID)
		return nil
	}, nil
}

type fakeIdempotencyStore struct {
	values map[string]string
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{values: map[string]string{}}
}

func (f *fakeIdempotencyStore) GetIdempotency(_ context.Context, key string) (string, error) {
	return f.values[key], nil
}

func (f *fakeIdempotencyStore) SetIdempotency(_ context.Context, key, value string) error {
	f.values[key] = value
	return nil
}

// fixedRates converts with a static table keyed "FROM->TO".
type fixedRates map[string]float64

func (r fixedRates) Convert(_ context.Context, base, target string, amount int64) int64 {
	if base == target {
		return amount
	}
	rate, ok := r[base+"->"+target]
	if !ok {
		return amount
	}
	return ApplyRate(amount, rate)
}

// fakeCommitter records committed orders and mimics stock and cart effects.
type fakeCommitter struct {
	committed   []*models.Order
	stock       map[string]int
	cartDeleted bool
	err         error
}

func (c *fakeCommitter) Commit(_ context.Context, _ string, orders []*models.Order) error {
	if c.err != nil {
		return c.err
	}
	for _, o := range orders {
		o.ID = "order-" + o.StoreID
	}
	for _, d := range models.StockDecrements(orders) {
		if c.stock != nil {
			c.stock[d.ProductID] -= d.Quantity
		}
	}
	c.committed = append(c.committed, orders...)
	c.cartDeleted = true
	return nil
}

type publishedEvent struct {
	eventType string
	body      []byte
}

type fakeSNS struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (f *fakeSNS) Publish(ctx context.Context, topicArn string, message []byte) error {
	return f.PublishWithType(ctx, topicArn, "", message)
}

func (f *fakeSNS) PublishWithType(_ context.Context, _ string, eventType string, message []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{eventType: eventType, body: message})
	return nil
}

func (f *fakeSNS) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.eventType)
	}
	return out
}

// --- Fixtures ---

func price(v int64) *int64 { return &v }

func cartItem(productID, storeID string, cost int64, currency string, qty int) models.CartLineItem {
	return models.CartLineItem{
		Product: models.Product{
			ID:       productID,
			StoreID:  storeID,
			Name:     "Product " + productID,
			Cost:     cost,
			Currency: currency,
		},
		Info: models.CartInfo{Quantity: qty},
	}
}

func testUser() *models.User {
	return &models.User{
		ID:          "user-1",
		StripeID:    "cus_123",
		Email:       "buyer@example.com",
		Preferences: models.Preferences{Currency: "USD"},
	}
}
