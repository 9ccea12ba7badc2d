package providers

import (
	"context"
	"fmt"
	"time"
)

// RateSet is one base currency's multipliers as reported by the rate provider.
type RateSet struct {
	Base       string
	LastUpdate time.Time
	NextUpdate time.Time
	Rates      map[string]float64
}

// ExchangeRateProvider fetches current conversion rates.
type ExchangeRateProvider interface {
	// Latest returns every rate for base. Any transport failure or non-200
	// answer is an error.
	Latest(ctx context.Context, base string) (*RateSet, error)
}

const (
	SetupIntentSucceeded   = "succeeded"
	PaymentIntentSucceeded = "succeeded"
)

type SetupIntent struct {
	ID           string
	ClientSecret string
	Status       string
}

type PaymentIntent struct {
	ID           string
	ClientSecret string
	Status       string
	Amount       int64
	Currency     string
}

// PaymentIntentUpdate resizes an intent before confirmation. Amount is in
// minor units.
type PaymentIntentUpdate struct {
	Amount          int64
	Currency        string
	CustomerID      string
	PaymentMethodID string
}

type PaymentMethod struct {
	ID       string
	Type     string
	Brand    string
	Last4    string
	ExpMonth int64
	ExpYear  int64
}

// PaymentProcessor is the external processor holding setup and payment
// intents for a customer.
type PaymentProcessor interface {
	CreateSetupIntent(ctx context.Context, customerID string) (*SetupIntent, error)
	GetSetupIntent(ctx context.Context, id string) (*SetupIntent, error)
	// CreatePaymentIntent creates a card intent. A non-empty idempotencyKey
	// makes retries return the intent created by the first call.
	CreatePaymentIntent(ctx context.Context, customerID string, amount int64, currency, idempotencyKey string) (*PaymentIntent, error)
	UpdatePaymentIntent(ctx context.Context, id string, upd PaymentIntentUpdate) (*PaymentIntent, error)
	// ConfirmPaymentIntent returns a *DeclineError when the card is declined.
	ConfirmPaymentIntent(ctx context.Context, id, paymentMethodID string) (*PaymentIntent, error)
	CancelPaymentIntent(ctx context.Context, id string) error
	ListCardMethods(ctx context.Context, customerID string) ([]PaymentMethod, error)
}

// DeclineError is a card-class failure raised by the processor.
type DeclineError struct {
	Code        string
	DeclineCode string
	HTTPStatus  int
	Message     string
	Err         error
}

func (e *DeclineError) Error() string {
	code := e.DeclineCode
	if code == "" {
		code = e.Code
	}
	return fmt.Sprintf("card declined (%s): %s", code, e.Message)
}

func (e *DeclineError) Unwrap() error { return e.Err }

const (
	TaxBehaviorExclusive  = "exclusive"
	AddressSourceShipping = "shipping"
)

type TaxLineItem struct {
	Amount      int64
	Reference   string
	TaxBehavior string
}

type TaxRequest struct {
	Currency   string
	PostalCode string
	Country    string
	LineItems  []TaxLineItem
}

// TaxResult amounts are in minor units of the request currency.
type TaxResult struct {
	AmountTotal        int64
	TaxAmountInclusive int64
	TaxAmountExclusive int64
}

type TaxEngine interface {
	Calculate(ctx context.Context, req TaxRequest) (*TaxResult, error)
}

// WebhookEvent is a verified processor notification about a payment intent.
type WebhookEvent struct {
	ID              string
	Type            string
	PaymentIntentID string
	Amount          int64
	Currency        string
	DeclineCode     string
	Payload         []byte
}

type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}
