package models

type ContactInfo struct {
	Email string `json:"email" binding:"required"`
	Phone string `json:"phone" binding:"required"`
}

type PlaceOrderRequest struct {
	ContactInfo     ContactInfo `json:"contactInfo" binding:"required"`
	ShippingAddress string      `json:"shippingAddress" binding:"required"`
	PaymentMethod   string      `json:"paymentMethod" binding:"required"`
}

type CalculateTaxesRequest struct {
	AddressID string `json:"addressId" binding:"required,max=50"`
}

// TaxBreakdown is the cart-level tax preview.
type TaxBreakdown struct {
	Total          int64 `json:"total"`
	InclusiveTaxes int64 `json:"inclusiveTaxes"`
	ExclusiveTaxes int64 `json:"exclusiveTaxes"`
}

type PaymentMethodView struct {
	ID             string `json:"id"`
	Brand          string `json:"brand"`
	Ending         string `json:"ending"`
	ExpirationDate string `json:"expirationDate"`
	Default        bool   `json:"default"`
	Type           string `json:"type"`
}

// PlaceOrderOutcome is returned when every order of a checkout is stored.
type PlaceOrderOutcome struct {
	Orders          []*Order `json:"orders"`
	PaymentIntentID string   `json:"paymentIntentId"`
	TotalAmount     int64    `json:"totalAmount"`
	Currency        string   `json:"currency"`
}
