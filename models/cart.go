package models

type CartInfo struct {
	Quantity int       `json:"amount"`
	Variants []Variant `json:"variants"`
}

// CartLineItem pairs a product snapshot with the user's selection.
type CartLineItem struct {
	Product Product  `json:"product"`
	Info    CartInfo `json:"cartInfo"`
}

// UnitPrice is the product cost plus every priced variant, in the product
// currency.
func (i CartLineItem) UnitPrice() int64 {
	price := i.Product.Cost
	for _, v := range i.Info.Variants {
		if v.Price != nil {
			price += *v.Price
		}
	}
	return price
}

// LineTotal is UnitPrice times quantity, in the product currency.
func (i CartLineItem) LineTotal() int64 {
	return i.UnitPrice() * int64(i.Info.Quantity)
}

type Cart struct {
	UserID string         `json:"userId"`
	Items  []CartLineItem `json:"items"`
}
