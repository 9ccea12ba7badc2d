package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"github.com/stripe/stripe-go/v80/webhook"
)

const cardMethod = "card"

// StripeProvider implements PaymentProcessor, TaxEngine and WebhookParser
// with a per-instance Stripe client.
type StripeProvider struct {
	sc         *client.API
	webhookKey string
}

// NewStripeProvider builds the client. backends may be nil for the default
// Stripe endpoints.
func NewStripeProvider(secretKey, webhookKey string, backends *stripe.Backends) *StripeProvider {
	return &StripeProvider{
		sc:         client.New(secretKey, backends),
		webhookKey: webhookKey,
	}
}

func (s *StripeProvider) CreateSetupIntent(ctx context.Context, customerID string) (*SetupIntent, error) {
	params := &stripe.SetupIntentParams{
		PaymentMethodTypes: stripe.StringSlice([]string{cardMethod}),
		Customer:           stripe.String(customerID),
	}
	params.Context = ctx

	si, err := s.sc.SetupIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create setup intent: %w", err)
	}
	return toSetupIntent(si), nil
}

func (s *StripeProvider) GetSetupIntent(ctx context.Context, id string) (*SetupIntent, error) {
	params := &stripe.SetupIntentParams{}
	params.Context = ctx

	si, err := s.sc.SetupIntents.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("stripe get setup intent %s: %w", id, err)
	}
	return toSetupIntent(si), nil
}

func (s *StripeProvider) CreatePaymentIntent(ctx context.Context, customerID string, amount int64, currency, idempotencyKey string) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		PaymentMethodTypes: stripe.StringSlice([]string{cardMethod}),
		Customer:           stripe.String(customerID),
		Amount:             stripe.Int64(amount),
		Currency:           stripe.String(strings.ToLower(currency)),
	}
	params.Context = ctx
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}

	pi, err := s.sc.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create payment intent: %w", err)
	}
	return toPaymentIntent(pi), nil
}

func (s *StripeProvider) UpdatePaymentIntent(ctx context.Context, id string, upd PaymentIntentUpdate) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		PaymentMethodTypes: stripe.StringSlice([]string{cardMethod}),
		Customer:           stripe.String(upd.CustomerID),
		Amount:             stripe.Int64(upd.Amount),
		Currency:           stripe.String(strings.ToLower(upd.Currency)),
		PaymentMethod:      stripe.String(upd.PaymentMethodID),
	}
	params.Context = ctx

	pi, err := s.sc.PaymentIntents.Update(id, params)
	if err != nil {
		return nil, fmt.Errorf("stripe update payment intent %s: %w", id, mapStripeError(err))
	}
	return toPaymentIntent(pi), nil
}

func (s *StripeProvider) ConfirmPaymentIntent(ctx context.Context, id, paymentMethodID string) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(paymentMethodID),
	}
	params.Context = ctx

	pi, err := s.sc.PaymentIntents.Confirm(id, params)
	if err != nil {
		return nil, fmt.Errorf("stripe confirm payment intent %s: %w", id, mapStripeError(err))
	}
	return toPaymentIntent(pi), nil
}

func (s *StripeProvider) CancelPaymentIntent(ctx context.Context, id string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx

	if _, err := s.sc.PaymentIntents.Cancel(id, params); err != nil {
		return fmt.Errorf("stripe cancel payment intent %s: %w", id, err)
	}
	return nil
}

func (s *StripeProvider) ListCardMethods(ctx context.Context, customerID string) ([]PaymentMethod, error) {
	params := &stripe.PaymentMethodListParams{
		Customer: stripe.String(customerID),
		Type:     stripe.String(cardMethod),
	}
	params.Context = ctx

	var methods []PaymentMethod
	it := s.sc.PaymentMethods.List(params)
	for it.Next() {
		pm := it.PaymentMethod()
		m := PaymentMethod{ID: pm.ID, Type: string(pm.Type)}
		if pm.Card != nil {
			m.Brand = string(pm.Card.Brand)
			m.Last4 = pm.Card.Last4
			m.ExpMonth = pm.Card.ExpMonth
			m.ExpYear = pm.Card.ExpYear
		}
		methods = append(methods, m)
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("stripe list payment methods: %w", err)
	}
	return methods, nil
}

// Calculate runs a Stripe Tax calculation for a shipping address.
func (s *StripeProvider) Calculate(ctx context.Context, req TaxRequest) (*TaxResult, error) {
	lineItems := make([]*stripe.TaxCalculationLineItemParams, 0, len(req.LineItems))
	for _, li := range req.LineItems {
		item := &stripe.TaxCalculationLineItemParams{
			Amount:    stripe.Int64(li.Amount),
			Reference: stripe.String(li.Reference),
		}
		if li.TaxBehavior != "" {
			item.TaxBehavior = stripe.String(li.TaxBehavior)
		}
		lineItems = append(lineItems, item)
	}

	params := &stripe.TaxCalculationParams{
		Currency: stripe.String(strings.ToLower(req.Currency)),
		CustomerDetails: &stripe.TaxCalculationCustomerDetailsParams{
			Address: &stripe.AddressParams{
				PostalCode: stripe.String(req.PostalCode),
				Country:    stripe.String(req.Country),
			},
			AddressSource: stripe.String(AddressSourceShipping),
		},
		LineItems: lineItems,
	}
	params.Context = ctx

	calc, err := s.sc.TaxCalculations.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe tax calculation: %w", err)
	}
	return &TaxResult{
		AmountTotal:        calc.AmountTotal,
		TaxAmountInclusive: calc.TaxAmountInclusive,
		TaxAmountExclusive: calc.TaxAmountExclusive,
	}, nil
}

// ParseWebhook verifies the Stripe-Signature header and extracts the
// payment intent carried by payment_intent.* events.
func (s *StripeProvider) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookKey)
	if err != nil {
		return nil, fmt.Errorf("verify webhook: %w", err)
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type), Payload: payload}
	if !strings.HasPrefix(out.Type, "payment_intent.") || event.Data == nil {
		return out, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("decode payment intent: %w", err)
	}
	out.PaymentIntentID = pi.ID
	out.Amount = pi.Amount
	out.Currency = strings.ToUpper(string(pi.Currency))
	if pi.LastPaymentError != nil {
		out.DeclineCode = string(pi.LastPaymentError.DeclineCode)
		if out.DeclineCode == "" {
			out.DeclineCode = string(pi.LastPaymentError.Code)
		}
	}
	return out, nil
}

// ---- Conversion helpers ----

// mapStripeError turns card errors into *DeclineError. Other errors are
// returned unchanged.
func mapStripeError(err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) || se.Type != stripe.ErrorTypeCard {
		return err
	}
	status := se.HTTPStatusCode
	if status == 0 {
		status = http.StatusPaymentRequired
	}
	return &DeclineError{
		Code:        string(se.Code),
		DeclineCode: string(se.DeclineCode),
		HTTPStatus:  status,
		Message:     se.Msg,
		Err:         err,
	}
}

func toSetupIntent(si *stripe.SetupIntent) *SetupIntent {
	return &SetupIntent{
		ID:           si.ID,
		ClientSecret: si.ClientSecret,
		Status:       string(si.Status),
	}
}

func toPaymentIntent(pi *stripe.PaymentIntent) *PaymentIntent {
	return &PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Currency:     strings.ToUpper(string(pi.Currency)),
	}
}
