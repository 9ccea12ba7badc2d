package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/yashrajoria/checkout-service/common/errors"
	"github.com/yashrajoria/checkout-service/models"
)

// DraftInput is the checkout data copied onto every draft order.
type DraftInput struct {
	Contact           models.ContactInfo
	ShippingAddressID string
	PaymentMethodID   string
	PaymentIntentID   string
}

// CartAggregator splits a cart into one draft order per store.
type CartAggregator interface {
	BuildDraftOrders(ctx context.Context, cart *models.Cart, user *models.User, in DraftInput) ([]*models.Order, *apperrors.Error)
}

type cartAggregatorImpl struct {
	currency      CurrencyService
	now           func() time.Time
	trackingToken func() string
}

func NewCartAggregator(currency CurrencyService) CartAggregator {
	return &cartAggregatorImpl{
		currency:      currency,
		now:           time.Now,
		trackingToken: uuid.NewString,
	}
}

// BuildDraftOrders keeps stores in the order they first appear in the cart.
// Prices are converted into the user's currency, so every summary subtotal
// equals the sum of its items' TotalPrice.
func (a *cartAggregatorImpl) BuildDraftOrders(ctx context.Context, cart *models.Cart, user *models.User, in DraftInput) ([]*models.Order, *apperrors.Error) {
	if cart == nil || len(cart.Items) == 0 {
		return nil, apperrors.NotFound("cart")
	}

	currency := user.Currency()
	now := a.now().UTC()

	var orders []*models.Order
	byStore := make(map[string]*models.Order)
	for _, item := range cart.Items {
		order, ok := byStore[item.Product.StoreID]
		if !ok {
			order = &models.Order{
				StoreID: item.Product.StoreID,
				Status:  models.OrderStatusPlaced,
				Dates:   models.OrderDates{Order: now},
				UserInfo: models.CustomerInfo{
					ID:    user.ID,
					Email: in.Contact.Email,
					Phone: in.Contact.Phone,
				},
				ShippingInfo: models.ShippingInfo{
					Address:        in.ShippingAddressID,
					Method:         models.ShippingMethodExpress,
					TrackingNumber: a.trackingToken(),
				},
				BillingInfo: models.BillingInfo{
					PaymentMethod:   in.PaymentMethodID,
					PaymentIntentID: in.PaymentIntentID,
				},
				Summary: models.OrderSummary{Currency: currency},
			}
			byStore[item.Product.StoreID] = order
			orders = append(orders, order)
		}

		line := models.OrderLineItem{
			ProductID:  item.Product.ID,
			StoreID:    item.Product.StoreID,
			Name:       item.Product.Name,
			Category:   item.Product.Category,
			Quantity:   item.Info.Quantity,
			Price:      convertItem(ctx, a.currency, item, currency, item.Product.Cost),
			Currency:   currency,
			Variants:   item.Info.Variants,
			Image:      item.Product.FirstImage(),
			TotalPrice: convertItem(ctx, a.currency, item, currency, item.LineTotal()),
		}
		order.Items = append(order.Items, line)
		order.Summary.Subtotal += line.TotalPrice
	}

	for _, o := range orders {
		o.Summary.Recompute()
	}
	return orders, nil
}

// convertItem converts amount from the item's currency into currency. Items
// without a currency are taken to be priced in currency already.
func convertItem(ctx context.Context, conv CurrencyService, item models.CartLineItem, currency string, amount int64) int64 {
	from := item.Product.Currency
	if from == "" {
		from = currency
	}
	return conv.Convert(ctx, from, currency, amount)
}
