package models

import "time"

type OrderStatus string

const (
	OrderStatusPlaced OrderStatus = "ORDER_PLACED"
)

const ShippingMethodExpress = "express"

type OrderDates struct {
	Order    time.Time  `json:"order"`
	Delivery *time.Time `json:"delivery,omitempty"`
}

type CustomerInfo struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type ShippingInfo struct {
	Address        string `json:"address"`
	Method         string `json:"method"`
	TrackingNumber string `json:"trackingNumber"`
}

type BillingInfo struct {
	PaymentMethod   string `json:"paymentMethod"`
	PaymentIntentID string `json:"paymentIntentId"`
}

// OrderLineItem is a cart line frozen into an order. Price and TotalPrice
// are in Currency, the buyer's settlement currency.
type OrderLineItem struct {
	ProductID  string    `json:"id"`
	StoreID    string    `json:"storeId"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	Quantity   int       `json:"quantity"`
	Price      int64     `json:"price"`
	Currency   string    `json:"currency"`
	Variants   []Variant `json:"variants"`
	Image      Media     `json:"image"`
	TotalPrice int64     `json:"totalPrice"`
}

type OrderSummary struct {
	Currency    string `json:"currency"`
	Subtotal    int64  `json:"subtotal"`
	Shipping    int64  `json:"shipping"`
	Taxes       int64  `json:"taxes"`
	TotalAmount int64  `json:"totalAmount"`
}

// Recompute sets TotalAmount from its parts.
func (s *OrderSummary) Recompute() {
	s.TotalAmount = s.Subtotal + s.Taxes + s.Shipping
}

// Order is one store's share of a checkout. It is a draft until the
// payment is confirmed and is never modified after it is stored.
type Order struct {
	ID           string          `json:"id,omitempty"`
	StoreID      string          `json:"storeId"`
	Status       OrderStatus     `json:"status"`
	Dates        OrderDates      `json:"dates"`
	UserInfo     CustomerInfo    `json:"userInfo"`
	ShippingInfo ShippingInfo    `json:"shippingInfo"`
	BillingInfo  BillingInfo     `json:"billingInfo"`
	Items        []OrderLineItem `json:"items"`
	Summary      OrderSummary    `json:"summary"`
}

// StockDecrement is the quantity to take out of one product's stock.
type StockDecrement struct {
	ProductID string
	Quantity  int
}

// StockDecrements collapses the items of orders into one entry per product,
// in first-seen order.
func StockDecrements(orders []*Order) []StockDecrement {
	var out []StockDecrement
	index := map[string]int{}
	for _, o := range orders {
		for _, it := range o.Items {
			if i, ok := index[it.ProductID]; ok {
				out[i].Quantity += it.Quantity
				continue
			}
			index[it.ProductID] = len(out)
			out = append(out, StockDecrement{ProductID: it.ProductID, Quantity: it.Quantity})
		}
	}
	return out
}
